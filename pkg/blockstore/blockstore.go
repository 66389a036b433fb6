// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package blockstore keeps content addressed blocks in a state store. Blocks
// are keyed by multihash, so a block is found under any cid of its data.
package blockstore

import (
	"context"
	"errors"

	"github.com/ipfs/go-cid"
	"github.com/tabcat/zzzync/pkg/dag"
	"github.com/tabcat/zzzync/pkg/storage"
)

const keyPrefix = "block-"

var ErrNotFound = errors.New("blockstore: not found")

type Getter interface {
	Get(ctx context.Context, c cid.Cid) (dag.Block, error)
}

type Putter interface {
	Put(ctx context.Context, b dag.Block) error
}

type Hasser interface {
	Has(ctx context.Context, c cid.Cid) (bool, error)
}

// Store is the content store.
type Store interface {
	Getter
	Putter
	Hasser
}

var _ Store = (*store)(nil)

type store struct {
	s storage.StateStorer
}

// New returns a block store over the state store.
func New(s storage.StateStorer) Store {
	return &store{s: s}
}

func key(c cid.Cid) string {
	return keyPrefix + c.Hash().B58String()
}

// Get returns the block or ErrNotFound.
func (s *store) Get(ctx context.Context, c cid.Cid) (dag.Block, error) {
	if err := ctx.Err(); err != nil {
		return dag.Block{}, err
	}
	var d data
	if err := s.s.Get(key(c), &d); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return dag.Block{}, ErrNotFound
		}
		return dag.Block{}, err
	}
	return dag.Block{Cid: c, Data: d}, nil
}

// Put stores the block after checking its hash.
func (s *store) Put(ctx context.Context, b dag.Block) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Check(); err != nil {
		return err
	}
	return s.s.Put(key(b.Cid), data(b.Data))
}

func (s *store) Has(ctx context.Context, c cid.Cid) (bool, error) {
	if _, err := s.Get(ctx, c); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type data []byte

func (d data) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), d...), nil
}

func (d *data) UnmarshalBinary(b []byte) error {
	*d = append((*d)[:0], b...)
	return nil
}
