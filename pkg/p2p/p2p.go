// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package p2p provides the peer-to-peer abstractions used
// across different protocols.
package p2p

import (
	"context"
	"io"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Service provides methods to handle p2p Peers and Protocols.
type Service interface {
	AddProtocol(ProtocolSpec) error
	// Connect to a peer addressed by a full multiaddr with a /p2p component.
	Connect(ctx context.Context, addr ma.Multiaddr) (peer.ID, error)
	Streamer
	Addresses() ([]ma.Multiaddr, error)
	ID() peer.ID
	io.Closer
}

// Streamer is able to create a new Stream.
type Streamer interface {
	NewStream(ctx context.Context, p peer.ID, protocolName, protocolVersion string) (Stream, error)
}

// Stream represents a bidirectional data Stream.
type Stream interface {
	io.ReadWriter
	// Close closes both directions of the stream.
	io.Closer
	// CloseWrite half-closes the stream. The remote side reads io.EOF.
	CloseWrite() error
	// Reset aborts both directions. The remote side reads an error
	// which is not io.EOF.
	Reset() error
	// FullClose half-closes the stream and waits for the remote to do
	// the same.
	FullClose() error
}

// ProtocolSpec defines a collection of Stream specifications with handlers.
type ProtocolSpec struct {
	Name    string
	Version string
	Handler HandlerFunc
}

// ID returns the libp2p protocol id of the spec.
func (s ProtocolSpec) ID() string {
	return NewStreamName(s.Name, s.Version)
}

// Peer holds information about a Peer.
type Peer struct {
	ID peer.ID
}

// HandlerFunc handles a received Stream from a Peer.
type HandlerFunc func(context.Context, Peer, Stream) error

// HandlerMiddleware decorates a HandlerFunc by returning a new one.
type HandlerMiddleware func(HandlerFunc) HandlerFunc

// NewStreamName constructs a libp2p compatible stream name out of
// protocol name and version.
func NewStreamName(protocol, version string) string {
	return "/" + protocol + "/" + version
}
