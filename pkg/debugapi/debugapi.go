// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debugapi exposes the debug API used to inspect the peers, records
// and pins of a running zzzync daemon.
package debugapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/p2p"
	"github.com/tabcat/zzzync/pkg/pinning"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/tracing"
)

// P2P is the part of the p2p service the debug API reports on.
type P2P interface {
	ID() peer.ID
	Addresses() ([]ma.Multiaddr, error)
	Peers() []p2p.Peer
}

// Records is the local record store.
type Records interface {
	Names(ctx context.Context) ([]names.Name, error)
	Resolve(ctx context.Context, n names.Name) (*record.Record, error)
	RepublishAll(ctx context.Context) error
}

// Pins lists the pinned roots.
type Pins interface {
	Get(ctx context.Context, root cid.Cid) (pinning.Pin, error)
	Pins(ctx context.Context) ([]cid.Cid, error)
}

type Options struct {
	Logger             logging.Logger
	Tracer             *tracing.Tracer
	CORSAllowedOrigins []string
}

// Service implements http.Handler interface to be used in HTTP server.
type Service struct {
	Options

	p2p             P2P
	records         Records
	pins            Pins
	metricsRegistry *prometheus.Registry

	// handler is changed in the Configure method
	handler   http.Handler
	handlerMu sync.RWMutex
}

// New creates a debug API service with only the routes that do not depend
// on the node: metrics, pprof, vars and health. They are served while the
// node is still starting.
func New(o Options) *Service {
	s := &Service{
		Options:         o,
		metricsRegistry: newMetricsRegistry(),
	}
	s.setRouter(s.newBasicRouter())
	return s
}

// Configure injects the node services and exposes all routes, including
// readiness. It is intended to be called once.
func (s *Service) Configure(p2p P2P, records Records, pins Pins) {
	s.p2p = p2p
	s.records = records
	s.pins = pins

	s.setRouter(s.newRouter())
}

// ServeHTTP implements http.Handler interface.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// protect handler as it is changed by the Configure method
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()

	h.ServeHTTP(w, r)
}
