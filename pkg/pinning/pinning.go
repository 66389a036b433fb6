// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pinning keeps content roots pinned for as long as at least one
// named key points at them.
package pinning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/storage"
)

var (
	// ErrAlreadyPinned is returned by Store.Add when the root has a pin.
	ErrAlreadyPinned = errors.New("already pinned")
	// ErrNotPinned is returned when the root has no pin, or the pinner is
	// not one of its pinners.
	ErrNotPinned = errors.New("not pinned")
)

// Pinners maps each pinner to the time it last pinned the root.
type Pinners map[names.Name]time.Time

// Pin is the pin of a content root.
type Pin struct {
	Root    cid.Cid `json:"root"`
	Pinners Pinners `json:"pinners"`
}

// Store is the pin store.
type Store interface {
	// Add creates the pin of root.
	Add(ctx context.Context, root cid.Cid, pinners Pinners) error
	// Get returns the pin of root or ErrNotPinned.
	Get(ctx context.Context, root cid.Cid) (Pin, error)
	// SetMetadata replaces the pinners of an existing pin.
	SetMetadata(ctx context.Context, root cid.Cid, pinners Pinners) error
	// Remove deletes the pin of root.
	Remove(ctx context.Context, root cid.Cid) error
	// Pins returns all pinned roots.
	Pins(ctx context.Context) ([]cid.Cid, error)
}

const storePrefix = "root-pin-"

func rootPinKey(root cid.Cid) string {
	return storePrefix + root.String()
}

// NewStore is a convenient constructor for a pin store kept in a state store.
// Concurrent Add calls for one root are not serialized.
func NewStore(s storage.StateStorer) Store {
	return &store{s: s}
}

type store struct {
	s storage.StateStorer
}

func (s *store) Add(ctx context.Context, root cid.Cid, pinners Pinners) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := rootPinKey(root)
	switch err := s.s.Get(key, new(Pin)); {
	case err == nil:
		return ErrAlreadyPinned
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("unable to get pin %q: %w", root, err)
	}
	return s.s.Put(key, Pin{Root: root, Pinners: pinners})
}

func (s *store) Get(ctx context.Context, root cid.Cid) (Pin, error) {
	if err := ctx.Err(); err != nil {
		return Pin{}, err
	}
	var p Pin
	switch err := s.s.Get(rootPinKey(root), &p); {
	case errors.Is(err, storage.ErrNotFound):
		return Pin{}, ErrNotPinned
	case err != nil:
		return Pin{}, fmt.Errorf("unable to get pin %q: %w", root, err)
	}
	return p, nil
}

func (s *store) SetMetadata(ctx context.Context, root cid.Cid, pinners Pinners) error {
	if _, err := s.Get(ctx, root); err != nil {
		return err
	}
	return s.s.Put(rootPinKey(root), Pin{Root: root, Pinners: pinners})
}

func (s *store) Remove(ctx context.Context, root cid.Cid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.s.Delete(rootPinKey(root)); err != nil {
		return fmt.Errorf("unable to delete pin %q: %w", root, err)
	}
	return nil
}

func (s *store) Pins(ctx context.Context) ([]cid.Cid, error) {
	var roots []cid.Cid
	err := s.s.Iterate(storePrefix, func(key, val []byte) (stop bool, err error) {
		if err := ctx.Err(); err != nil {
			return true, err
		}
		var p Pin
		if err := json.Unmarshal(val, &p); err != nil {
			return true, fmt.Errorf("invalid pin %q: %w", strings.TrimPrefix(string(key), storePrefix), err)
		}
		roots = append(roots, p.Root)
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("iteration failed: %w", err)
	}
	return roots, nil
}
