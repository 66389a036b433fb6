// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zzzync implements the push protocol. A dialer holding the key of a
// name proves it to a server, hands over a signed record pointing the name
// at a content root and streams the archive of the dag under that root. The
// server reconciles the record with its own, imports the dag and moves the
// pin of the name from the old root to the new one.
package zzzync

import (
	"context"
	"errors"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/carstream"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/namestore"
	"github.com/tabcat/zzzync/pkg/p2p"
	"github.com/tabcat/zzzync/pkg/pinning"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/tracing"
	"github.com/tabcat/zzzync/pkg/wire"
)

const (
	protocolName    = "zzzync"
	protocolVersion = "1.0.0"
)

var (
	ErrAuthorizationDenied = errors.New("authorization denied")
	ErrImportFailed        = errors.New("import failed")
	ErrUnexpectedData      = errors.New("unexpected data after acknowledgement")

	ErrAborted            = wire.ErrAborted
	ErrChallengeInvalid   = identity.ErrChallengeInvalid
	ErrRecordMalformed    = record.ErrRecordMalformed
	ErrRecordStale        = record.ErrRecordStale
	ErrUnsupportedKeyType = names.ErrUnsupportedKeyType
	ErrUnreferencedBlock  = carstream.ErrUnreferencedBlock
	ErrUnexpectedRoot     = carstream.ErrUnexpectedRoot
	ErrMaxSizeExceeded    = carstream.ErrMaxSizeExceeded

	// ErrRecordNotFound is returned by a RecordStore that has no record of
	// a name.
	ErrRecordNotFound = namestore.ErrNotFound
	// ErrNotPinned is returned by a PinLedger asked to unpin a root the
	// name does not pin.
	ErrNotPinned = pinning.ErrNotPinned
)

// Authorizer decides whether a name may push to this node.
type Authorizer interface {
	Authorize(ctx context.Context, n names.Name) (bool, error)
}

// AuthorizerFunc adapts a function to an Authorizer.
type AuthorizerFunc func(ctx context.Context, n names.Name) (bool, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, n names.Name) (bool, error) {
	return f(ctx, n)
}

// AllowAll authorizes every name.
var AllowAll Authorizer = AuthorizerFunc(func(context.Context, names.Name) (bool, error) {
	return true, nil
})

// RecordStore keeps the records of names. Resolve returns
// ErrRecordNotFound for unknown names. Publish stores locally, Republish
// propagates to routers.
type RecordStore interface {
	Resolve(ctx context.Context, n names.Name) (*record.Record, error)
	Publish(ctx context.Context, n names.Name, r *record.Record) error
	Republish(ctx context.Context, n names.Name, r *record.Record) error
}

// Importer drains validated blocks into the content store.
type Importer interface {
	Import(ctx context.Context, it blockstore.Iterator) (int, error)
}

// PinLedger keeps roots pinned for their names.
type PinLedger interface {
	Pin(ctx context.Context, pinner names.Name, root cid.Cid) error
	Unpin(ctx context.Context, pinner names.Name, root cid.Cid) error
}

// Advertiser announces this node as a holder of a name.
type Advertiser interface {
	Advertise(ctx context.Context, id cid.Cid, provider peer.ID) error
}

type Options struct {
	Streamer p2p.Streamer
	// Self is the peer id of this node, the responder in challenges.
	Self peer.ID

	Authorizer Authorizer
	Records    RecordStore
	Importer   Importer
	Pins       PinLedger
	// Advertiser, when set, is told about every name this node accepted a
	// push for.
	Advertiser Advertiser
	// MaxArchiveSize bounds the block data accepted in one push. Zero
	// means unbounded.
	MaxArchiveSize uint64

	Logger logging.Logger
	Tracer *tracing.Tracer
}

type Service struct {
	streamer       p2p.Streamer
	self           peer.ID
	authorizer     Authorizer
	records        RecordStore
	importer       Importer
	pins           PinLedger
	advertiser     Advertiser
	maxArchiveSize uint64
	logger         logging.Logger
	tracer         *tracing.Tracer
	metrics        metrics
	now            func() time.Time
}

func New(o Options) *Service {
	authorizer := o.Authorizer
	if authorizer == nil {
		authorizer = AllowAll
	}
	return &Service{
		streamer:       o.Streamer,
		self:           o.Self,
		authorizer:     authorizer,
		records:        o.Records,
		importer:       o.Importer,
		pins:           o.Pins,
		advertiser:     o.Advertiser,
		maxArchiveSize: o.MaxArchiveSize,
		logger:         o.Logger,
		tracer:         o.Tracer,
		metrics:        newMetrics(),
		now:            time.Now,
	}
}

func (s *Service) Protocol() p2p.ProtocolSpec {
	return p2p.ProtocolSpec{
		Name:    protocolName,
		Version: protocolVersion,
		Handler: s.handler,
	}
}
