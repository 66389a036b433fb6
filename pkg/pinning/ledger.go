// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pinning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/tabcat/zzzync/pkg/names"
	"resenje.org/multex"
)

// Ledger counts the pinners of each root over a Store. A root stays pinned
// while its pinner set is not empty. Changes of one root are serialized.
type Ledger struct {
	store Store
	mtx   *multex.Multex
	now   func() time.Time
}

// NewLedger returns a ledger over the pin store.
func NewLedger(s Store) *Ledger {
	return &Ledger{store: s, mtx: multex.New(), now: time.Now}
}

// Pin records pinner as a pinner of root. Pinning again only refreshes the
// pin time.
func (l *Ledger) Pin(ctx context.Context, pinner names.Name, root cid.Cid) error {
	k := root.KeyString()
	l.mtx.Lock(k)
	defer l.mtx.Unlock(k)

	now := l.now().UTC()

	err := l.store.Add(ctx, root, Pinners{pinner: now})
	if !errors.Is(err, ErrAlreadyPinned) {
		return err
	}

	p, err := l.store.Get(ctx, root)
	if err != nil {
		return fmt.Errorf("pin %s: %w", root, err)
	}
	if p.Pinners == nil {
		p.Pinners = make(Pinners)
	}
	p.Pinners[pinner] = now
	return l.store.SetMetadata(ctx, root, p.Pinners)
}

// Unpin removes pinner from the pinners of root and removes the pin when no
// pinner is left. It returns ErrNotPinned, leaving the store untouched, when
// pinner does not pin root.
func (l *Ledger) Unpin(ctx context.Context, pinner names.Name, root cid.Cid) error {
	k := root.KeyString()
	l.mtx.Lock(k)
	defer l.mtx.Unlock(k)

	p, err := l.store.Get(ctx, root)
	if err != nil {
		return err
	}
	if _, ok := p.Pinners[pinner]; !ok {
		return ErrNotPinned
	}

	delete(p.Pinners, pinner)
	if len(p.Pinners) == 0 {
		return l.store.Remove(ctx, root)
	}
	return l.store.SetMetadata(ctx, root, p.Pinners)
}

// Pinners returns the pinners of root.
func (l *Ledger) Pinners(ctx context.Context, root cid.Cid) (Pinners, error) {
	p, err := l.store.Get(ctx, root)
	if err != nil {
		return nil, err
	}
	return p.Pinners, nil
}
