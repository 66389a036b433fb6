// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fetch

var (
	ProtocolName    = protocolName
	ProtocolVersion = protocolVersion
)
