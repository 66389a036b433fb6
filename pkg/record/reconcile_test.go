// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/tabcat/zzzync/pkg/record"
)

func TestReconcile(t *testing.T) {
	s := newSigner(t, crypto.Ed25519)
	eol := time.Now().Add(time.Hour)
	a := newCid(t, cid.DagProtobuf, "a")
	b := newCid(t, cid.DagProtobuf, "b")

	seq4 := newRecord(t, s, a, 4, eol)
	seq5 := newRecord(t, s, b, 5, eol)
	seq5SameValue := newRecord(t, s, a, 5, eol)
	seq4LaterEOL := newRecord(t, s, b, 4, eol.Add(time.Minute))
	seq4EarlierEOL := newRecord(t, s, b, 4, eol.Add(-time.Minute))
	seq4SameValueEarlierEOL := newRecord(t, s, a, 4, eol.Add(-time.Minute))

	for _, tc := range []struct {
		name          string
		local, remote *record.Record
		want          record.Outcome
		err           error
	}{
		{name: "no local record", remote: seq4, want: record.OutcomeAccept},
		{name: "local sequence greater", local: seq5, remote: seq4, err: record.ErrRecordStale},
		{name: "remote sequence greater", local: seq4, remote: seq5, want: record.OutcomeAccept},
		{name: "identical bytes", local: seq4, remote: seq4, want: record.OutcomeEqual},
		{name: "same value newer record", local: seq4, remote: seq5SameValue, want: record.OutcomeSameValue},
		{name: "same value older record", local: seq4, remote: seq4SameValueEarlierEOL, want: record.OutcomeEqual},
		{name: "same sequence later eol", local: seq4, remote: seq4LaterEOL, want: record.OutcomeAccept},
		{name: "same sequence earlier eol", local: seq4, remote: seq4EarlierEOL, err: record.ErrRecordStale},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := record.Reconcile(tc.local, tc.remote)
			if !errors.Is(err, tc.err) {
				t.Fatalf("got error %v, want %v", err, tc.err)
			}
			if err == nil && got != tc.want {
				t.Fatalf("got outcome %s, want %s", got, tc.want)
			}
		})
	}
}

func TestSelect_symmetric(t *testing.T) {
	s := newSigner(t, crypto.Ed25519)
	eol := time.Now().Add(time.Hour)

	// same sequence and eol, differing values: bytes decide on both peers
	x := newRecord(t, s, newCid(t, cid.Raw, "x"), 3, eol)
	y := newRecord(t, s, newCid(t, cid.Raw, "y"), 3, eol)

	winner := x
	if record.Select(x, y) == 1 {
		winner = y
	}
	other := y
	if record.Select(y, x) == 1 {
		other = x
	}
	if !winner.Equal(other) {
		t.Fatal("selection depends on argument order")
	}

	// the loser is stale against the winner, the winner is accepted
	loser := y
	if winner == y {
		loser = x
	}
	if _, err := record.Reconcile(winner, loser); !errors.Is(err, record.ErrRecordStale) {
		t.Fatalf("got error %v, want %v", err, record.ErrRecordStale)
	}
	if got, err := record.Reconcile(loser, winner); err != nil || got != record.OutcomeAccept {
		t.Fatalf("got %s %v, want %s", got, err, record.OutcomeAccept)
	}
}
