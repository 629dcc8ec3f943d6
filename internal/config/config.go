// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads FastStreamDB's process configuration from the
// environment, with an optional YAML file providing defaults underneath it.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConnectionMode selects the listener transport.
type ConnectionMode string

const (
	ModeUnixSocket ConnectionMode = "UNIX_SOCK"
	ModeTCP        ConnectionMode = "TCP"
)

// Config is the complete runtime configuration of the faststreamdb process.
type Config struct {
	KeyExpiry      time.Duration  `yaml:"key_expiry"`
	ConnectionMode ConnectionMode `yaml:"connection_mode"`
	UnixSockPath   string         `yaml:"unix_sock_path"`
	TCPHost        string         `yaml:"tcp_host"`
	TCPPort        int            `yaml:"tcp_port"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	MaxFrameBytes    uint32  `yaml:"max_frame_bytes"`
	MaxBytesPerSec   float64 `yaml:"max_bytes_per_sec"`
	StatsAddr        string  `yaml:"stats_addr"`
	StatsAllowCIDR   string  `yaml:"stats_allow_cidr"`
	ParsedAllowCIDRs []*net.IPNet
}

// defaults mirrors the table in spec.md §6 plus the ambient additions in
// SPEC_FULL.md §6.2.
func defaults() Config {
	return Config{
		KeyExpiry:      150 * time.Second,
		ConnectionMode: ModeUnixSocket,
		UnixSockPath:   "/tmp/fsdb.sock",
		TCPHost:        "127.0.0.1",
		TCPPort:        1273,
		LogLevel:       "info",
		LogFormat:      "json",
		MaxFrameBytes:  1 << 28,
		MaxBytesPerSec: 0,
		StatsAddr:      "",
		StatsAllowCIDR: "127.0.0.1/32",
	}
}

// Load builds a Config starting from defaults, overlaying an optional YAML
// file named by FSDB_CONFIG_FILE, and finally applying whichever environment
// variables from spec.md §6 / SPEC_FULL.md §6.2 are actually set. Env vars
// always win over the file, and the file always wins over the built-in
// defaults.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("FSDB_CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", path, err)
		}
	}

	if err := overlayEnv(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func overlayEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("FSDB_KEY_EXPIRY"); ok {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("FSDB_KEY_EXPIRY: %w", err)
		}
		if secs < 0 {
			return fmt.Errorf("FSDB_KEY_EXPIRY must be >= 0, got %d", secs)
		}
		cfg.KeyExpiry = time.Duration(secs) * time.Second
	}

	if v, ok := os.LookupEnv("FSDB_CONNECTION_MODE"); ok {
		mode := ConnectionMode(strings.ToUpper(strings.TrimSpace(v)))
		if mode != ModeUnixSocket && mode != ModeTCP {
			return fmt.Errorf("FSDB_CONNECTION_MODE must be UNIX_SOCK or TCP, got %q", v)
		}
		cfg.ConnectionMode = mode
	}

	if v, ok := os.LookupEnv("FSDB_UNIX_SOCK_PATH"); ok {
		cfg.UnixSockPath = v
	}

	if v, ok := os.LookupEnv("FSDB_TCP_HOST"); ok {
		cfg.TCPHost = v
	}

	if v, ok := os.LookupEnv("FSDB_TCP_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("FSDB_TCP_PORT: %w", err)
		}
		cfg.TCPPort = port
	}

	if v, ok := os.LookupEnv("FSDB_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("FSDB_LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}

	if v, ok := os.LookupEnv("FSDB_MAX_FRAME_BYTES"); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return fmt.Errorf("FSDB_MAX_FRAME_BYTES: %w", err)
		}
		cfg.MaxFrameBytes = uint32(n)
	}

	if v, ok := os.LookupEnv("FSDB_MAX_BYTES_PER_SEC"); ok {
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("FSDB_MAX_BYTES_PER_SEC: %w", err)
		}
		if n < 0 {
			return fmt.Errorf("FSDB_MAX_BYTES_PER_SEC must be >= 0, got %v", n)
		}
		cfg.MaxBytesPerSec = n
	}

	if v, ok := os.LookupEnv("FSDB_STATS_ADDR"); ok {
		cfg.StatsAddr = v
	}
	if v, ok := os.LookupEnv("FSDB_STATS_ALLOW_CIDR"); ok {
		cfg.StatsAllowCIDR = v
	}

	return nil
}

func (c *Config) validate() error {
	if c.ConnectionMode == ModeUnixSocket && c.UnixSockPath == "" {
		return fmt.Errorf("unix_sock_path is required in UNIX_SOCK mode")
	}
	if c.ConnectionMode == ModeTCP {
		if c.TCPHost == "" {
			return fmt.Errorf("tcp_host is required in TCP mode")
		}
		if c.TCPPort <= 0 || c.TCPPort > 65535 {
			return fmt.Errorf("tcp_port must be between 1 and 65535, got %d", c.TCPPort)
		}
	}
	if c.MaxFrameBytes == 0 {
		return fmt.Errorf("max_frame_bytes must be > 0")
	}

	cidrs, err := parseCIDRList(c.StatsAllowCIDR)
	if err != nil {
		return fmt.Errorf("stats_allow_cidr: %w", err)
	}
	c.ParsedAllowCIDRs = cidrs

	return nil
}

func parseCIDRList(raw string) ([]*net.IPNet, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var nets []*net.IPNet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		_, ipnet, err := net.ParseCIDR(part)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", part, err)
		}
		nets = append(nets, ipnet)
	}
	return nets, nil
}

// ListenAddr returns the TCP "host:port" string when ConnectionMode is TCP.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.TCPHost, strconv.Itoa(c.TCPPort))
}
