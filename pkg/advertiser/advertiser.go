// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package advertiser announces this node as a holder of a name's content on
// a content router and finds the other holders.
package advertiser

import (
	"context"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/multiformats/go-multihash"
	"github.com/tabcat/zzzync/pkg/logging"
)

// dcoiKey prefixes the multihash of a cid before hashing it into the
// routing key of its dynamic content.
const dcoiKey = "/dcoi/"

const defaultMaxProviders = 20

var (
	ErrScopeUnset      = errors.New("advertise scope not set")
	ErrInvalidScope    = errors.New("invalid advertise scope")
	ErrForeignProvider = errors.New("provider is not the local node")
)

// Scope selects how far an advertisement reaches.
type Scope int

const (
	ScopeUnset Scope = iota
	// ScopeLocal keeps the provider record in the local routing table.
	ScopeLocal
	// ScopeGlobal announces the provider record to the network.
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeLocal:
		return "local"
	case ScopeGlobal:
		return "global"
	}
	return "unset"
}

// ParseScope parses "local" or "global".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "local":
		return ScopeLocal, nil
	case "global":
		return ScopeGlobal, nil
	case "":
		return ScopeUnset, ErrScopeUnset
	}
	return ScopeUnset, fmt.Errorf("%w: %q", ErrInvalidScope, s)
}

// ToDCID returns the routing cid under which holders of the dynamic content
// of c are advertised.
func ToDCID(c cid.Cid) (cid.Cid, error) {
	mh, err := multihash.Sum(append([]byte(dcoiKey), c.Hash()...), multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

type Options struct {
	// Scope must be set, there is no default.
	Scope Scope
	// MaxProviders bounds FindProviders results.
	MaxProviders int
	Logger       logging.Logger
}

type Advertiser struct {
	router       routing.ContentRouting
	self         peer.ID
	scope        Scope
	maxProviders int
	logger       logging.Logger
}

// New returns an advertiser providing as self on the router.
func New(router routing.ContentRouting, self peer.ID, o Options) (*Advertiser, error) {
	switch o.Scope {
	case ScopeLocal, ScopeGlobal:
	case ScopeUnset:
		return nil, ErrScopeUnset
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidScope, o.Scope)
	}
	n := o.MaxProviders
	if n <= 0 {
		n = defaultMaxProviders
	}
	return &Advertiser{
		router:       router,
		self:         self,
		scope:        o.Scope,
		maxProviders: n,
		logger:       o.Logger,
	}, nil
}

// Advertise provides the dcid of id. The router provides for the local node
// only, so provider must be it.
func (a *Advertiser) Advertise(ctx context.Context, id cid.Cid, provider peer.ID) error {
	if provider != a.self {
		return fmt.Errorf("%w: %s", ErrForeignProvider, provider)
	}
	dcid, err := ToDCID(id)
	if err != nil {
		return err
	}
	if err := a.router.Provide(ctx, dcid, a.scope == ScopeGlobal); err != nil {
		return fmt.Errorf("provide %s: %w", dcid, err)
	}
	if a.logger != nil {
		a.logger.Debugf("advertiser: provided %s for %s scope %s", dcid, id, a.scope)
	}
	return nil
}

// FindProviders returns the holders advertised for id. The channel is closed
// when the search ends or ctx is done.
func (a *Advertiser) FindProviders(ctx context.Context, id cid.Cid) (<-chan peer.AddrInfo, error) {
	dcid, err := ToDCID(id)
	if err != nil {
		return nil, err
	}
	return a.router.FindProvidersAsync(ctx, dcid, a.maxProviders), nil
}
