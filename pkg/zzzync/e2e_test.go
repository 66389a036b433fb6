// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zzzync_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/sirupsen/logrus"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/namestore"
	"github.com/tabcat/zzzync/pkg/p2p/libp2p"
	"github.com/tabcat/zzzync/pkg/pinning"
	"github.com/tabcat/zzzync/pkg/statestore/mock"
	"github.com/tabcat/zzzync/pkg/zzzync"
)

func TestPush_libp2p(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mn := mocknet.New()
	t.Cleanup(func() { _ = mn.Close() })

	logger := logging.New(io.Discard, logrus.ErrorLevel)

	h1, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	if err := mn.LinkAll(); err != nil {
		t.Fatal(err)
	}
	if err := mn.ConnectAllButSelf(); err != nil {
		t.Fatal(err)
	}

	dialer := libp2p.NewWithHost(h1, logger)
	responder := libp2p.NewWithHost(h2, logger)

	blocks := blockstore.New(mock.NewStateStore())
	records, err := namestore.New(mock.NewStateStore(), namestore.Options{Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	pins := pinning.NewLedger(pinning.NewStore(mock.NewStateStore()))

	server := zzzync.New(zzzync.Options{
		Self:     responder.ID(),
		Records:  records,
		Importer: blockstore.NewImporter(blocks),
		Pins:     pins,
		Logger:   logger,
	})
	if err := responder.AddProtocol(server.Protocol()); err != nil {
		t.Fatal(err)
	}
	client := zzzync.New(zzzync.Options{Streamer: dialer, Logger: logger})

	signer := newSigner(t)
	local := blockstore.New(mock.NewStateStore())
	rootA, _ := newDag(t, local, "a")
	rootB, blocksB := newDag(t, local, "b")

	if err := client.Push(ctx, responder.ID(), signer, newRecord(t, signer, rootA, 1), local); err != nil {
		t.Fatal(err)
	}
	assertPinners(t, pins, rootA, signer.Name())

	if err := client.Push(ctx, responder.ID(), signer, newRecord(t, signer, rootB, 2), local); err != nil {
		t.Fatal(err)
	}
	// the old root is unpinned after the acknowledgement
	waitUnpinned(t, pins, rootA)
	assertPinners(t, pins, rootB, signer.Name())
	for _, b := range blocksB {
		if ok, err := blocks.Has(ctx, b.Cid); err != nil || !ok {
			t.Fatalf("block %s not imported: %v", b.Cid, err)
		}
	}

	r, err := records.Resolve(ctx, signer.Name())
	if err != nil {
		t.Fatal(err)
	}
	if !r.Value().Equals(rootB) {
		t.Fatalf("got value %s, want %s", r.Value(), rootB)
	}

	t.Run("stale", func(t *testing.T) {
		err := client.Push(ctx, responder.ID(), signer, newRecord(t, signer, rootA, 1), local)
		if !errors.Is(err, zzzync.ErrAborted) {
			t.Fatalf("got error %v, want %v", err, zzzync.ErrAborted)
		}
	})
}

func waitUnpinned(t *testing.T, pins *pinning.Ledger, root cid.Cid) {
	t.Helper()

	for i := 0; i < 50; i++ {
		if _, err := pins.Pinners(context.Background(), root); errors.Is(err, pinning.ErrNotPinned) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s still pinned", root)
}
