// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package namestore keeps the best known record of each name and propagates
// records to value routers.
package namestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru"
	"github.com/libp2p/go-libp2p/core/routing"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/storage"
	"resenje.org/multex"
)

const (
	keyPrefix        = "record-"
	defaultCacheSize = 1024
)

var ErrNotFound = errors.New("namestore: record not found")

type Options struct {
	// CacheSize is the number of resolved records kept in memory.
	CacheSize int
	// Routers receive every republished record.
	Routers []routing.ValueStore
	Logger  logging.Logger
}

// Store persists records in a state store.
type Store struct {
	store   storage.StateStorer
	mtx     *multex.Multex
	cache   *lru.Cache
	routers []routing.ValueStore
	logger  logging.Logger
	metrics metrics
	now     func() time.Time
}

func New(s storage.StateStorer, o Options) (*Store, error) {
	size := o.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Store{
		store:   s,
		mtx:     multex.New(),
		cache:   cache,
		routers: o.Routers,
		logger:  o.Logger,
		metrics: newMetrics(),
		now:     time.Now,
	}, nil
}

func key(n names.Name) string {
	return keyPrefix + n.String()
}

// Resolve returns the local record of the name or ErrNotFound.
func (s *Store) Resolve(ctx context.Context, n names.Name) (*record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v, ok := s.cache.Get(n); ok {
		s.metrics.CacheHits.Inc()
		return v.(*record.Record), nil
	}

	r := new(record.Record)
	if err := s.store.Get(key(n), r); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve %s: %w", n, err)
	}
	s.cache.Add(n, r)
	return r, nil
}

// Publish stores the record as the local record of the name. The record
// must be valid for the name and must not lose against the stored one, else
// ErrRecordStale is returned. Publishing the stored record again is a no-op.
func (s *Store) Publish(ctx context.Context, n names.Name, r *record.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(n, r, s.now()); err != nil {
		return err
	}

	k := key(n)
	s.mtx.Lock(k)
	defer s.mtx.Unlock(k)

	local, err := s.Resolve(ctx, n)
	switch {
	case errors.Is(err, ErrNotFound):
		local = nil
	case err != nil:
		return err
	}
	outcome, err := record.Reconcile(local, r)
	if err != nil {
		return fmt.Errorf("publish %s: %w", n, err)
	}
	if outcome == record.OutcomeEqual {
		return nil
	}

	if err := s.store.Put(k, r); err != nil {
		return fmt.Errorf("publish %s: %w", n, err)
	}
	s.cache.Add(n, r)
	s.metrics.Published.Inc()
	return nil
}

// Republish puts the record to every router. Failures of single routers do
// not stop the others and are returned together.
func (s *Store) Republish(ctx context.Context, n names.Name, r *record.Record) error {
	var errs *multierror.Error
	for i, router := range s.routers {
		if err := router.PutValue(ctx, n.RoutingKey(), r.Marshal()); err != nil {
			s.metrics.RepublishFailures.Inc()
			errs = multierror.Append(errs, fmt.Errorf("router %d: %w", i, err))
			continue
		}
		s.metrics.Republished.Inc()
	}
	return errs.ErrorOrNil()
}

// RepublishAll republishes every unexpired local record.
func (s *Store) RepublishAll(ctx context.Context) error {
	ns, err := s.Names(ctx)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, n := range ns {
		r, err := s.Resolve(ctx, n)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !r.EOL().After(s.now()) {
			if s.logger != nil {
				s.logger.Debugf("namestore: skip republish of expired record %s", n)
			}
			continue
		}
		if err := s.Republish(ctx, n, r); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("republish %s: %w", n, err))
		}
	}
	return errs.ErrorOrNil()
}

// Names returns every name with a local record.
func (s *Store) Names(ctx context.Context) ([]names.Name, error) {
	var ns []names.Name
	err := s.store.Iterate(keyPrefix, func(k, _ []byte) (bool, error) {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		n, err := names.Parse(strings.TrimPrefix(string(k), keyPrefix))
		if err != nil {
			return true, fmt.Errorf("invalid record key %q: %w", k, err)
		}
		ns = append(ns, n)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}
