// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ratelimit

import "time"

func (l *Limiter) SetNow(f func() time.Time) {
	l.now = f
}
