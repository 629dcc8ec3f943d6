// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// maxThrottleBurst caps a single rate-limiter reservation (and so the size
// of a single underlying Read) so one session can't front-load an enormous
// burst.
const maxThrottleBurst = 256 * 1024

// throttledReader is an io.Reader with token-bucket rate limiting,
// grounded in the teacher's ThrottledWriter (internal/agent/throttle.go)
// but applied to the ingress side: FastStreamDB has no backpressure frame
// (spec.md §7, §9), so the only way to defend against a fast producer is
// to read more slowly, which is invisible on the wire.
type throttledReader struct {
	r       io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

// newThrottledReader wraps r with a bytesPerSec token bucket. If
// bytesPerSec <= 0 it returns r unchanged (bypass), matching
// FSDB_MAX_BYTES_PER_SEC's documented default of unlimited.
func newThrottledReader(ctx context.Context, r io.Reader, bytesPerSec float64) io.Reader {
	if bytesPerSec <= 0 {
		return r
	}

	burst := int(bytesPerSec)
	if burst <= 0 || burst > maxThrottleBurst {
		burst = maxThrottleBurst
	}

	return &throttledReader{
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

func (tr *throttledReader) Read(p []byte) (int, error) {
	if len(p) > tr.limiter.Burst() {
		p = p[:tr.limiter.Burst()]
	}

	n, err := tr.r.Read(p)
	if n > 0 {
		if werr := tr.limiter.WaitN(tr.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
