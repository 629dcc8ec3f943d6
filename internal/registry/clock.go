// Copyright (c) 2026 The FastStreamDB Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package registry

import "time"

// Clock abstracts "now" so idle-expiry tests don't need to sleep real
// wall-clock seconds. Resolution of seconds is sufficient (spec.md §4.5).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock, backed by time.Now.
var RealClock Clock = realClock{}
