// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch implements the libp2p fetch protocol. A peer asks for a
// value by identifier and the handler answers from the lookup registered
// for the identifier prefix.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multihash"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/car"
	"github.com/tabcat/zzzync/pkg/dag"
	"github.com/tabcat/zzzync/pkg/fetch/pb"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/namestore"
	"github.com/tabcat/zzzync/pkg/p2p"
	"github.com/tabcat/zzzync/pkg/p2p/protobuf"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/tracing"
	"resenje.org/singleflight"
)

const (
	protocolName    = "libp2p/fetch"
	protocolVersion = "0.0.1"

	RecordPrefix = names.RoutingPrefix
	BlockPrefix  = "/ipfs/"

	maxResponseSize = car.MaxSectionSize + 1024
)

var (
	ErrNotFound    = errors.New("fetch: not found")
	ErrFetchFailed = errors.New("fetch: failed")
)

// Lookup returns the value of an identifier, or ErrNotFound.
type Lookup func(ctx context.Context, identifier string) ([]byte, error)

// Resolver resolves the local record of a name.
type Resolver interface {
	Resolve(ctx context.Context, n names.Name) (*record.Record, error)
}

type Service struct {
	streamer  p2p.Streamer
	logger    logging.Logger
	tracer    *tracing.Tracer
	metrics   metrics
	flights   singleflight.Group
	lookups   map[string]Lookup
	lookupsMu sync.RWMutex
}

type Options struct {
	Streamer p2p.Streamer
	Logger   logging.Logger
	Tracer   *tracing.Tracer
}

func New(o Options) *Service {
	return &Service{
		streamer: o.Streamer,
		logger:   o.Logger,
		tracer:   o.Tracer,
		metrics:  newMetrics(),
		lookups:  make(map[string]Lookup),
	}
}

func (s *Service) Protocol() p2p.ProtocolSpec {
	return p2p.ProtocolSpec{
		Name:    protocolName,
		Version: protocolVersion,
		Handler: s.handler,
	}
}

// AddLookup registers the lookup for identifiers with the prefix.
func (s *Service) AddLookup(prefix string, l Lookup) {
	s.lookupsMu.Lock()
	defer s.lookupsMu.Unlock()

	s.lookups[prefix] = l
}

func (s *Service) lookup(identifier string) (Lookup, bool) {
	s.lookupsMu.RLock()
	defer s.lookupsMu.RUnlock()

	for prefix, l := range s.lookups {
		if strings.HasPrefix(identifier, prefix) {
			return l, true
		}
	}
	return nil, false
}

// Fetch asks the peer for the value of identifier. Concurrent calls for the
// same peer and identifier share one request and the returned slice.
func (s *Service) Fetch(ctx context.Context, p peer.ID, identifier string) ([]byte, error) {
	v, shared, err := s.flights.Do(ctx, p.String()+identifier, func(ctx context.Context) (interface{}, error) {
		return s.fetch(ctx, p, identifier)
	})
	if shared {
		s.metrics.SharedRequests.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Service) fetch(ctx context.Context, p peer.ID, identifier string) (data []byte, err error) {
	span, logger, ctx := s.tracer.StartPeerSpan(ctx, "fetch-p2p-fetch", p, s.logger)
	defer span.Finish()

	stream, err := s.streamer.NewStream(ctx, p, protocolName, protocolVersion)
	if err != nil {
		return nil, fmt.Errorf("new stream: %w", err)
	}
	defer func() {
		if err != nil {
			_ = stream.Reset()
		} else {
			go stream.FullClose()
		}
	}()

	w, r := protobuf.NewWriter(stream), protobuf.NewReaderSize(stream, maxResponseSize)
	if err := w.WriteMsgWithContext(ctx, &pb.FetchRequest{Identifier: identifier}); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	s.metrics.RequestsSent.Inc()

	var resp pb.FetchResponse
	if err := r.ReadMsgWithContext(ctx, &resp); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	logger.Tracef("fetch: %s from %s: %s", identifier, p, resp.Status)

	switch resp.Status {
	case pb.FetchResponse_OK:
		return resp.Data, nil
	case pb.FetchResponse_NOT_FOUND:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
	}
	return nil, fmt.Errorf("%w: %s: %s", ErrFetchFailed, identifier, resp.Status)
}

// FetchRecord fetches the record of the name and validates it.
func (s *Service) FetchRecord(ctx context.Context, p peer.ID, n names.Name) (*record.Record, error) {
	b, err := s.Fetch(ctx, p, n.RoutingKey())
	if err != nil {
		return nil, err
	}
	r, err := record.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	if err := record.Validate(n, r, time.Now()); err != nil {
		return nil, err
	}
	return r, nil
}

// FetchBlock fetches the block of the cid and checks its hash.
func (s *Service) FetchBlock(ctx context.Context, p peer.ID, c cid.Cid) (dag.Block, error) {
	b, err := s.Fetch(ctx, p, BlockPrefix+string(c.Hash()))
	if err != nil {
		return dag.Block{}, err
	}
	blk := dag.Block{Cid: c, Data: b}
	if err := blk.Check(); err != nil {
		return dag.Block{}, err
	}
	return blk, nil
}

func (s *Service) handler(ctx context.Context, p p2p.Peer, stream p2p.Stream) error {
	w, r := protobuf.NewWriterAndReader(stream)

	span, logger, ctx := s.tracer.StartPeerSpan(ctx, "fetch-p2p-handler", p.ID, s.logger)
	defer span.Finish()

	var req pb.FetchRequest
	if err := r.ReadMsgWithContext(ctx, &req); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	s.metrics.RequestsReceived.Inc()

	resp := &pb.FetchResponse{Status: pb.FetchResponse_ERROR}
	if l, ok := s.lookup(req.Identifier); ok {
		data, err := l(ctx, req.Identifier)
		switch {
		case err == nil:
			resp = &pb.FetchResponse{Status: pb.FetchResponse_OK, Data: data}
		case errors.Is(err, ErrNotFound):
			resp.Status = pb.FetchResponse_NOT_FOUND
		default:
			logger.Debugf("fetch: lookup %q for peer %s: %v", req.Identifier, p.ID, err)
		}
	}
	s.metrics.responses(resp.Status).Inc()

	if err := w.WriteMsgWithContext(ctx, resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// RecordLookup answers "/ipns/<multihash>" identifiers with the marshaled
// local record.
func RecordLookup(res Resolver) Lookup {
	return func(ctx context.Context, identifier string) ([]byte, error) {
		n, err := names.FromRoutingKey(identifier)
		if err != nil {
			return nil, err
		}
		r, err := res.Resolve(ctx, n)
		if err != nil {
			if errors.Is(err, namestore.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return r.Marshal(), nil
	}
}

// BlockLookup answers "/ipfs/<multihash>" identifiers with block data.
func BlockLookup(g blockstore.Getter) Lookup {
	return func(ctx context.Context, identifier string) ([]byte, error) {
		mh, err := multihash.Cast([]byte(strings.TrimPrefix(identifier, BlockPrefix)))
		if err != nil {
			return nil, err
		}
		// the store is keyed by multihash, any codec will do
		b, err := g.Get(ctx, cid.NewCidV1(cid.Raw, mh))
		if err != nil {
			if errors.Is(err, blockstore.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		return b.Data, nil
	}
}
