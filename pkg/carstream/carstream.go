// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package carstream validates an incoming archive against the root it is
// expected to carry.
//
// Blocks are yielded only after their cid was referenced by the root or by
// a block accepted before them. The reference set only grows, a block that
// arrives again is checked and skipped.
package carstream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/car"
	"github.com/tabcat/zzzync/pkg/dag"
)

var (
	ErrInvalidHeader     = car.ErrInvalidHeader
	ErrHashMismatch      = dag.ErrHashMismatch
	ErrUnsupportedCodec  = dag.ErrUnsupportedCodec
	ErrUnexpectedRoot    = errors.New("unexpected root")
	ErrUnreferencedBlock = errors.New("unreferenced block")
	ErrMaxSizeExceeded   = errors.New("max size exceeded")
	ErrConsumed          = errors.New("block stream already consumed")
)

// Options bound the archive.
type Options struct {
	// MaxSize is the largest total block data size accepted. Zero means
	// unbounded.
	MaxSize uint64
}

var _ blockstore.Iterator = (*Iterator)(nil)

// Iterator is a single pass sequence of validated blocks.
type Iterator struct {
	ctx        context.Context
	r          *car.Reader
	maxSize    uint64
	size       uint64
	pending    int
	references map[cid.Cid]bool
	block      dag.Block
	err        error
	done       bool
}

// New reads the archive header from r and checks that it declares root as
// its only root.
func New(ctx context.Context, r io.Reader, root cid.Cid, o Options) (*Iterator, error) {
	cr, err := car.NewReader(r)
	if err != nil {
		return nil, err
	}
	roots := cr.Roots()
	if len(roots) != 1 {
		return nil, fmt.Errorf("%w: %d roots", ErrInvalidHeader, len(roots))
	}
	if !roots[0].Equals(root) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrUnexpectedRoot, roots[0], root)
	}

	return &Iterator{
		ctx:        ctx,
		r:          cr,
		maxSize:    o.MaxSize,
		pending:    1,
		references: map[cid.Cid]bool{root: false},
	}, nil
}

// Next advances to the next valid block. It returns false when the archive
// ends or a block fails validation. Calling Next after the sequence ended
// makes Err report ErrConsumed.
func (it *Iterator) Next() bool {
	if it.done {
		if it.err == nil {
			it.err = ErrConsumed
		}
		return false
	}

	b, err := it.next()
	if err != nil {
		it.done = true
		it.block = dag.Block{}
		if !errors.Is(err, io.EOF) {
			it.err = err
		}
		return false
	}
	it.block = b
	return true
}

func (it *Iterator) next() (dag.Block, error) {
	if err := it.ctx.Err(); err != nil {
		return dag.Block{}, err
	}

	for {
		b, err := it.r.Next()
		if err != nil {
			return dag.Block{}, err
		}

		if err := b.Check(); err != nil {
			return dag.Block{}, err
		}
		accepted, ok := it.references[b.Cid]
		if !ok {
			return dag.Block{}, fmt.Errorf("%w: %s", ErrUnreferencedBlock, b.Cid)
		}
		// repeated blocks count against the limit as well
		size := it.size + uint64(b.Size())
		if it.maxSize > 0 && size > it.maxSize {
			return dag.Block{}, fmt.Errorf("%w: %d > %d at %s", ErrMaxSizeExceeded, size, it.maxSize, b.Cid)
		}
		it.size = size
		if accepted {
			continue
		}

		links, err := dag.Links(b)
		if err != nil {
			return dag.Block{}, err
		}
		it.references[b.Cid] = true
		it.pending--
		for _, l := range links {
			if _, ok := it.references[l]; !ok {
				it.references[l] = false
				it.pending++
			}
		}
		return b, nil
	}
}

// Block returns the block Next advanced to.
func (it *Iterator) Block() dag.Block {
	return it.block
}

// Err returns the error that ended the sequence, nil if the archive ended
// cleanly.
func (it *Iterator) Err() error {
	return it.err
}

// Size returns the total data size of the received blocks.
func (it *Iterator) Size() uint64 {
	return it.size
}

// Pending returns the number of referenced blocks not yet received.
func (it *Iterator) Pending() int {
	return it.pending
}
