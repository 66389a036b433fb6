// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blockstore

import (
	"context"
	"fmt"

	"github.com/tabcat/zzzync/pkg/dag"
)

// Iterator yields blocks until Next returns false, after which Err reports
// whether the sequence ended cleanly.
type Iterator interface {
	Next() bool
	Block() dag.Block
	Err() error
}

// Importer drains an iterator into a store.
type Importer struct {
	store Putter
}

func NewImporter(s Putter) *Importer {
	return &Importer{store: s}
}

// Import puts every block the iterator yields and returns the number of
// blocks imported. Blocks imported before a failure are kept.
func (i *Importer) Import(ctx context.Context, it Iterator) (n int, err error) {
	for it.Next() {
		b := it.Block()
		if err := i.store.Put(ctx, b); err != nil {
			return n, fmt.Errorf("put %s: %w", b.Cid, err)
		}
		n++
	}
	return n, it.Err()
}
