// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
	"github.com/tabcat/zzzync/pkg/pinning"
)

var _ pinning.Store = (*Store)(nil)

// Store is an in-memory pin store that counts the calls made to it.
type Store struct {
	mu      sync.Mutex
	pins    map[cid.Cid]pinning.Pinners
	removed int
}

// NewStore is a convenient constructor for creating Store.
func NewStore() *Store {
	return &Store{pins: make(map[cid.Cid]pinning.Pinners)}
}

func (s *Store) Add(_ context.Context, root cid.Cid, pinners pinning.Pinners) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pins[root]; ok {
		return pinning.ErrAlreadyPinned
	}
	s.pins[root] = clone(pinners)
	return nil
}

func (s *Store) Get(_ context.Context, root cid.Cid) (pinning.Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pins[root]
	if !ok {
		return pinning.Pin{}, pinning.ErrNotPinned
	}
	return pinning.Pin{Root: root, Pinners: clone(p)}, nil
}

func (s *Store) SetMetadata(_ context.Context, root cid.Cid, pinners pinning.Pinners) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pins[root]; !ok {
		return pinning.ErrNotPinned
	}
	s.pins[root] = clone(pinners)
	return nil
}

func (s *Store) Remove(_ context.Context, root cid.Cid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pins[root]; ok {
		s.removed++
	}
	delete(s.pins, root)
	return nil
}

func (s *Store) Pins(_ context.Context) ([]cid.Cid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roots := make([]cid.Cid, 0, len(s.pins))
	for r := range s.pins {
		roots = append(roots, r)
	}
	return roots, nil
}

// Removed returns the number of pins removed.
func (s *Store) Removed() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removed
}

func clone(p pinning.Pinners) pinning.Pinners {
	c := make(pinning.Pinners, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}
