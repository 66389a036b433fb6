// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package libp2p

import (
	"errors"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/tabcat/zzzync/pkg/p2p"
)

var (
	// fullCloseTimeout bounds the wait for the remote half-close.
	fullCloseTimeout = 30 * time.Second

	errExpectedEOF = errors.New("read: expected eof")
)

var _ p2p.Stream = (*stream)(nil)

// stream counts the ways a libp2p stream ends. Protocols acknowledge with
// a half-close and abort with a reset, so both are tracked apart.
type stream struct {
	network.Stream
	metrics metrics
}

func newStream(s network.Stream, metrics metrics) *stream {
	return &stream{Stream: s, metrics: metrics}
}

func (s *stream) CloseWrite() error {
	s.metrics.HalfClosedStreamCount.Inc()
	return s.Stream.CloseWrite()
}

func (s *stream) Reset() error {
	s.metrics.StreamResetCount.Inc()
	return s.Stream.Reset()
}

func (s *stream) Close() error {
	s.metrics.ClosedStreamCount.Inc()
	return s.Stream.Close()
}

// FullClose half-closes the stream and reads until the remote half-closes
// too. Any data left unread or a missing EOF resets the stream.
func (s *stream) FullClose() error {
	if err := s.CloseWrite(); err != nil {
		_ = s.Reset()
		return err
	}

	_ = s.SetReadDeadline(time.Now().Add(fullCloseTimeout))

	n, err := s.Read([]byte{0})
	switch {
	case n > 0 || err == nil:
		err = errExpectedEOF
	case errors.Is(err, io.EOF):
		return s.Close()
	}
	_ = s.Reset()
	return err
}
