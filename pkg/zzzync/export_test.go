// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zzzync

import "time"

var (
	ProtocolName    = protocolName
	ProtocolVersion = protocolVersion
)

func (s *Service) SetNow(f func() time.Time) {
	s.now = f
}
