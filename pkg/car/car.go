// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package car reads and writes CARv1 archives as streams.
//
// An archive is a varint length prefixed dag-cbor header
// {"roots": [cid, ...], "version": 1} followed by sections, each a varint
// length prefix of the cid bytes and the block data that follow it.
package car

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	carblockstore "github.com/ipld/go-car/v2/blockstore"
	carstorage "github.com/ipld/go-car/v2/storage"
	"github.com/tabcat/zzzync/pkg/dag"
)

const (
	// Version is the only supported archive version.
	Version = 1
	// MaxHeaderSize bounds the length of the encoded header.
	MaxHeaderSize = 32 << 10
	// MaxSectionSize bounds the length of a single section.
	MaxSectionSize = 2 << 20
)

var (
	ErrInvalidHeader  = errors.New("car: invalid header")
	ErrInvalidSection = errors.New("car: invalid section")
)

// Writer writes an archive.
type Writer struct {
	w carstorage.WritableCar
}

// NewWriter writes the archive header declaring the roots. Blocks are
// written as given, repeated blocks included.
func NewWriter(w io.Writer, roots ...cid.Cid) (*Writer, error) {
	for _, r := range roots {
		if !r.Defined() {
			return nil, fmt.Errorf("%w: undefined root", ErrInvalidHeader)
		}
	}
	cw, err := carstorage.NewWritable(w, roots,
		carv2.WriteAsCarV1(true),
		carblockstore.AllowDuplicatePuts(true),
	)
	if err != nil {
		return nil, err
	}
	return &Writer{w: cw}, nil
}

// Write appends a block section.
func (w *Writer) Write(ctx context.Context, b dag.Block) error {
	return w.w.Put(ctx, b.Cid.KeyString(), b.Data)
}

// Reader reads an archive one section at a time.
type Reader struct {
	r *carv2.BlockReader
}

// NewReader reads the archive header.
func NewReader(r io.Reader) (*Reader, error) {
	br, err := carv2.NewBlockReader(r,
		carv2.MaxAllowedHeaderSize(MaxHeaderSize),
		carv2.MaxAllowedSectionSize(MaxSectionSize),
		// block hashes are checked by the caller
		carv2.WithTrustedCAR(true),
	)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	if br.Version != Version {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidHeader, br.Version)
	}
	return &Reader{r: br}, nil
}

// Roots returns the roots declared by the header.
func (r *Reader) Roots() []cid.Cid {
	return r.r.Roots
}

// Next returns the next block. It returns io.EOF when the archive ends
// cleanly between sections. The block hash is not checked.
func (r *Reader) Next() (dag.Block, error) {
	b, err := r.r.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return dag.Block{}, io.EOF
		}
		return dag.Block{}, fmt.Errorf("%w: %w", ErrInvalidSection, err)
	}
	return dag.FromBlock(b), nil
}
