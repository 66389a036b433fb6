// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package car_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-varint"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/car"
	"github.com/tabcat/zzzync/pkg/dag"
	"github.com/tabcat/zzzync/pkg/statestore/mock"
)

func TestWriteRead(t *testing.T) {
	x := mustLeaf(t, "x")
	y := mustLeaf(t, "y")
	r := mustNode(t, x, y)

	var buf bytes.Buffer
	w, err := car.NewWriter(&buf, r.Cid)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range []dag.Block{r, x, y} {
		if err := w.Write(context.Background(), b); err != nil {
			t.Fatal(err)
		}
	}

	// canonical header: a map of two entries starting with "roots"
	raw := buf.Bytes()
	hl, n, err := varint.FromUvarint(raw)
	if err != nil {
		t.Fatal(err)
	}
	if hl == 0 || !bytes.HasPrefix(raw[n:], append([]byte{0xa2, 0x65}, "roots"...)) {
		t.Fatalf("unexpected header %x", raw[n:n+int(hl)])
	}

	cr, err := car.NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if roots := cr.Roots(); len(roots) != 1 || !roots[0].Equals(r.Cid) {
		t.Fatalf("got roots %v", roots)
	}
	for _, want := range []dag.Block{r, x, y} {
		got, err := cr.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !got.Cid.Equals(want.Cid) || !bytes.Equal(got.Data, want.Data) {
			t.Fatalf("got block %s, want %s", got.Cid, want.Cid)
		}
	}
	if _, err := cr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("got error %v, want %v", err, io.EOF)
	}
}

func TestWriter(t *testing.T) {
	x := mustLeaf(t, "x")
	y := mustLeaf(t, "y")

	if _, err := car.NewWriter(io.Discard, cid.Undef); !errors.Is(err, car.ErrInvalidHeader) {
		t.Fatalf("got error %v, want %v", err, car.ErrInvalidHeader)
	}

	var buf bytes.Buffer
	w, err := car.NewWriter(&buf, x.Cid, y.Cid)
	if err != nil {
		t.Fatal(err)
	}
	// repeated blocks are written as given
	for _, b := range []dag.Block{x, x} {
		if err := w.Write(context.Background(), b); err != nil {
			t.Fatal(err)
		}
	}

	cr, err := car.NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if roots := cr.Roots(); len(roots) != 2 || !roots[1].Equals(y.Cid) {
		t.Fatalf("got roots %v", roots)
	}
	for i := 0; i < 2; i++ {
		got, err := cr.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !got.Cid.Equals(x.Cid) {
			t.Fatalf("block %d: got %s, want %s", i, got.Cid, x.Cid)
		}
	}
	if _, err := cr.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("got error %v, want %v", err, io.EOF)
	}
}

func TestNewReader_invalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   []byte
	}{
		{name: "empty", in: nil},
		{name: "zero length", in: []byte{0x00}},
		{name: "truncated", in: []byte{0x05, 0xa2}},
		{name: "not cbor", in: []byte{0x01, 0xff}},
		{name: "too large", in: varint.ToUvarint(car.MaxHeaderSize + 1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := car.NewReader(bytes.NewReader(tc.in)); !errors.Is(err, car.ErrInvalidHeader) {
				t.Fatalf("got error %v, want %v", err, car.ErrInvalidHeader)
			}
		})
	}
}

func TestReader_invalidSection(t *testing.T) {
	x := mustLeaf(t, "x")

	header := func(t *testing.T) *bytes.Buffer {
		t.Helper()
		var buf bytes.Buffer
		if _, err := car.NewWriter(&buf, x.Cid); err != nil {
			t.Fatal(err)
		}
		return &buf
	}

	for _, tc := range []struct {
		name    string
		section []byte
	}{
		{name: "zero length", section: []byte{0x00}},
		{name: "too large", section: varint.ToUvarint(car.MaxSectionSize + 1)},
		{name: "truncated", section: append(varint.ToUvarint(100), x.Cid.Bytes()...)},
		{name: "bad cid", section: []byte{0x02, 0xff, 0xff}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			buf := header(t)
			buf.Write(tc.section)
			r, err := car.NewReader(buf)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := r.Next(); !errors.Is(err, car.ErrInvalidSection) {
				t.Fatalf("got error %v, want %v", err, car.ErrInvalidSection)
			}
		})
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	s := blockstore.New(mock.NewStateStore())

	// r -> {a, b}, a -> {z}, b -> {z}
	z := mustLeaf(t, "z")
	a := mustNode(t, z)
	b := mustNode(t, z, mustLeaf(t, "b"))
	r := mustNode(t, a, b)
	for _, blk := range []dag.Block{z, a, b, r, mustLeaf(t, "b")} {
		if err := s.Put(ctx, blk); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := car.Export(ctx, &buf, s, r.Cid); err != nil {
		t.Fatal(err)
	}

	cr, err := car.NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	var got []cid.Cid
	for {
		blk, err := cr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, blk.Cid)
	}
	want := []cid.Cid{r.Cid, a.Cid, z.Cid, b.Cid, mustLeaf(t, "b").Cid}
	if len(got) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equals(want[i]) {
			t.Errorf("block %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestExport_missingBlock(t *testing.T) {
	s := blockstore.New(mock.NewStateStore())
	x := mustLeaf(t, "x")

	err := car.Export(context.Background(), io.Discard, s, x.Cid)
	if !errors.Is(err, blockstore.ErrNotFound) {
		t.Fatalf("got error %v, want %v", err, blockstore.ErrNotFound)
	}
}

func mustLeaf(t *testing.T, data string) dag.Block {
	t.Helper()
	b, err := dag.NewLeaf([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func mustNode(t *testing.T, children ...dag.Block) dag.Block {
	t.Helper()
	links := make([]dag.Link, 0, len(children))
	for _, c := range children {
		links = append(links, dag.Link{Cid: c.Cid, Tsize: uint64(c.Size())})
	}
	b, err := dag.NewNode(links, nil)
	if err != nil {
		t.Fatal(err)
	}
	return b
}
