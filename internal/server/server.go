// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package server implements FastStreamDB's listener and per-connection
// loop: binding either a Unix domain socket or a TCP endpoint (spec.md
// §4.4), accepting connections, and running one session goroutine per
// connection. It wires the stream registry, the idle-expiry sweeper, the
// ingress throttle, and the operational stats surface together into one
// running process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/faststreamdb/faststreamdb/internal/config"
	"github.com/faststreamdb/faststreamdb/internal/registry"
	"github.com/faststreamdb/faststreamdb/internal/server/stats"
)

// Run binds the configured listener and blocks, accepting connections,
// until ctx is cancelled. It returns nil on clean shutdown, matching
// spec.md §6's "exit code 0 on clean shutdown" process contract.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ln, err := listen(cfg)
	if err != nil {
		return err
	}
	defer ln.Close()

	logger.Info("faststreamdb listening", "mode", cfg.ConnectionMode, "addr", ln.Addr())

	return serve(ctx, ln, cfg, logger)
}

// RunWithListener is Run with an already-bound listener, used by tests
// that want an ephemeral-port listener without going through
// config-driven bind logic.
func RunWithListener(ctx context.Context, ln net.Listener, cfg *config.Config, logger *slog.Logger) error {
	return serve(ctx, ln, cfg, logger)
}

func listen(cfg *config.Config) (net.Listener, error) {
	switch cfg.ConnectionMode {
	case config.ModeUnixSocket:
		// Unlink any stale socket left behind by an unclean prior exit,
		// per spec.md §4.4.
		if err := os.Remove(cfg.UnixSockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("removing stale unix socket %q: %w", cfg.UnixSockPath, err)
		}
		ln, err := net.Listen("unix", cfg.UnixSockPath)
		if err != nil {
			return nil, fmt.Errorf("binding unix socket %q: %w", cfg.UnixSockPath, err)
		}
		return ln, nil

	case config.ModeTCP:
		ln, err := net.Listen("tcp", cfg.ListenAddr())
		if err != nil {
			return nil, fmt.Errorf("binding tcp %q: %w", cfg.ListenAddr(), err)
		}
		return ln, nil

	default:
		return nil, fmt.Errorf("unknown connection mode %q", cfg.ConnectionMode)
	}
}

func serve(ctx context.Context, ln net.Listener, cfg *config.Config, logger *slog.Logger) error {
	reg := registry.New(nil)

	expiry := registry.NewExpiry(reg, cfg.KeyExpiry, nil)
	expiry.Start()
	defer expiry.Stop()

	mon := newProcessMonitor(logger)
	mon.Start(statsReportInterval)
	defer mon.Stop()

	var ingressBytes atomic.Int64

	reporter := newStatsReporter(reg, mon, logger, &ingressBytes)
	if err := reporter.Start(); err != nil {
		return fmt.Errorf("starting stats reporter: %w", err)
	}
	defer reporter.Stop()

	if cfg.StatsAddr != "" {
		var statsSrv *http.Server
		acl := stats.NewACL(cfg.ParsedAllowCIDRs)
		provider := func() stats.Snapshot {
			st := reg.Stats()
			ps := mon.Stats()
			return stats.Snapshot{
				StreamCount:        st.StreamCount,
				TotalBufferedBytes: st.TotalBufferedBytes,
				IngressMBps:        reporter.IngressMBps(),
				RSSBytes:           ps.RSSBytes,
				CPUPercent:         ps.CPUPercent,
			}
		}
		statsSrv = stats.NewServer(cfg.StatsAddr, acl, provider, logger)
		statsLn, err := net.Listen("tcp", cfg.StatsAddr)
		if err != nil {
			return fmt.Errorf("binding stats surface %q: %w", cfg.StatsAddr, err)
		}
		go func() {
			if err := statsSrv.Serve(statsLn); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
				logger.Error("stats surface error", "error", err)
			}
		}()
		defer func() {
			_ = stats.Shutdown(statsSrv, 5*time.Second)
		}()
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		ln.Close()
	}()

	return acceptLoop(ctx, ln, reg, cfg, logger, &ingressBytes)
}

// acceptLoop accepts connections until ctx is cancelled, backing off on
// consecutive transient Accept errors rather than hot-looping — grounded
// in the teacher's Run/RunWithListener accept loop shape.
func acceptLoop(ctx context.Context, ln net.Listener, reg *registry.Registry, cfg *config.Config, logger *slog.Logger, ingressBytes *atomic.Int64) error {
	consecutiveErrors := 0
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				logger.Info("server shutdown complete")
				return nil
			default:
				consecutiveErrors++
				logger.Error("accepting connection", "error", err, "consecutive_errors", consecutiveErrors)
				delay := time.Duration(consecutiveErrors) * 100 * time.Millisecond
				if delay > 5*time.Second {
					delay = 5 * time.Second
				}
				time.Sleep(delay)
				continue
			}
		}

		consecutiveErrors = 0
		sess := &session{
			conn:          conn,
			reg:           reg,
			logger:        logger,
			maxFrameBytes: cfg.MaxFrameBytes,
			bytesPerSec:   cfg.MaxBytesPerSec,
			ingressBytes:  ingressBytes,
		}
		go sess.run(ctx)
	}
}
