// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stats serves an operational HTTP surface reporting registry size
// and process resource usage (SPEC_FULL.md §2 component H). It reports
// aggregate counters only — never stream contents — so it never
// reintroduces the queryability-of-buffer-contents non-goal from
// spec.md §1.
package stats

import "net"

// ACL is a deny-by-default IP allowlist, grounded in the teacher's
// observability.ACL (internal/server/observability/acl.go): only remote
// addresses contained in at least one configured CIDR may reach the
// stats surface. The database otherwise trusts its local listener
// (spec.md §1), but the stats surface is a second listener and gets its
// own gate rather than inheriting that trust by default.
type ACL struct {
	nets []*net.IPNet
}

// NewACL builds an ACL from already-parsed CIDRs (see
// internal/config.Config.ParsedAllowCIDRs).
func NewACL(cidrs []*net.IPNet) *ACL {
	return &ACL{nets: cidrs}
}

// Allowed reports whether remoteAddr (a "host:port" or bare host string)
// is permitted by the ACL.
func (a *ACL) Allowed(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}

	for _, n := range a.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
