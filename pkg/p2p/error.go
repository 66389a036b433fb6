// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package p2p

import "errors"

var (
	// ErrProtocolNotSupported is returned when the remote peer does not
	// speak the requested protocol.
	ErrProtocolNotSupported = errors.New("protocol not supported")
	// ErrPeerNotFound is returned when no address is known for a peer.
	ErrPeerNotFound = errors.New("peer not found")
)

// ResetError is an error that is specifically handled inside p2p. If
// returned by a protocol handler the stream is reset instead of being
// closed, so the remote side observes an abort and not an end of stream.
// Handlers that return any other non-nil error also get their stream
// reset, ResetError only lets them carry the intent explicitly.
type ResetError struct {
	err error
}

// Reset wraps error and creates a special error that is treated specially
// by p2p. It causes the stream to be reset.
func Reset(err error) error {
	return &ResetError{
		err: err,
	}
}

// Unwrap returns an underlying error.
func (e *ResetError) Unwrap() error { return e.err }

// Error implements function of the standard go error interface.
func (e *ResetError) Error() string {
	return e.err.Error()
}
