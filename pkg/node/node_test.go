// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/spf13/afero"
	"github.com/tabcat/zzzync/pkg/advertiser"
	"github.com/tabcat/zzzync/pkg/allowlist"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/keystore"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/node"
	"github.com/tabcat/zzzync/pkg/pinning"
	"github.com/tabcat/zzzync/pkg/storage"
	"github.com/tabcat/zzzync/pkg/zzzync"
)

func newKey(t *testing.T) crypto.PrivKey {
	t.Helper()

	k, err := keystore.GenerateKey(pb.KeyType_Ed25519)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func nameOf(t *testing.T, k crypto.PrivKey) names.Name {
	t.Helper()

	s, err := identity.NewSigner(k)
	if err != nil {
		t.Fatal(err)
	}
	return s.Name()
}

func newDaemon(t *testing.T, o node.Options) *node.Daemon {
	t.Helper()

	o.P2PAddr = "127.0.0.1:0"
	o.DisableWS = true
	o.DisableQUIC = true
	o.DHTMode = dht.ModeServer
	o.AdvertiseScope = advertiser.ScopeLocal
	o.Logger = logging.New(io.Discard, 0)

	d, err := node.NewDaemon(newKey(t), o)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := d.Shutdown(); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return d
}

func pushOptions(t *testing.T, d *node.Daemon, fsys afero.Fs) node.PushOptions {
	t.Helper()

	addrs, err := d.Addresses()
	if err != nil {
		t.Fatal(err)
	}
	if len(addrs) == 0 {
		t.Fatal("daemon has no addresses")
	}
	return node.PushOptions{
		Fs:     fsys,
		Path:   "site",
		Peer:   addrs[0],
		Logger: logging.New(io.Discard, 0),
	}
}

func waitUnpinned(t *testing.T, pins *pinning.Ledger, root cid.Cid) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, err := pins.Pinners(context.Background(), root)
		if errors.Is(err, pinning.ErrNotPinned) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s still pinned: %v", root, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPush(t *testing.T) {
	ctx := context.Background()
	d := newDaemon(t, node.Options{})

	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "site/index.html", []byte("<p>hello</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	publisher := newKey(t)
	name := nameOf(t, publisher)

	r1, err := node.Push(ctx, publisher, pushOptions(t, d, fsys))
	if err != nil {
		t.Fatal(err)
	}
	if r1.Sequence() != 1 {
		t.Fatalf("got sequence %d, want 1", r1.Sequence())
	}

	got, err := d.Records().Resolve(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(r1) {
		t.Fatalf("got record %s, want %s", got, r1)
	}
	pinners, err := d.Pins().Pinners(ctx, r1.Value())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := pinners[name]; !ok {
		t.Fatalf("%s not pinned by %s", r1.Value(), name)
	}

	t.Run("update", func(t *testing.T) {
		if err := afero.WriteFile(fsys, "site/index.html", []byte("<p>hello again</p>"), 0o644); err != nil {
			t.Fatal(err)
		}

		r2, err := node.Push(ctx, publisher, pushOptions(t, d, fsys))
		if err != nil {
			t.Fatal(err)
		}
		if r2.Sequence() != 2 {
			t.Fatalf("got sequence %d, want 2", r2.Sequence())
		}
		if r2.Value().Equals(r1.Value()) {
			t.Fatal("update did not change the root")
		}

		got, err := d.Records().Resolve(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Equal(r2) {
			t.Fatalf("got record %s, want %s", got, r2)
		}

		// the old root is unpinned after the push is acknowledged
		waitUnpinned(t, d.Pins(), r1.Value())
	})
}

func TestPush_notAllowed(t *testing.T) {
	ctx := context.Background()

	allowed := newKey(t)
	fsys := afero.NewOsFs()
	allowFile := t.TempDir() + "/allow.yaml"
	if err := allowlist.Write(fsys, allowFile, nameOf(t, allowed)); err != nil {
		t.Fatal(err)
	}
	d := newDaemon(t, node.Options{AllowFile: allowFile})

	site := afero.NewMemMapFs()
	if err := afero.WriteFile(site, "site", []byte("a file"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := node.Push(ctx, newKey(t), pushOptions(t, d, site)); !errors.Is(err, zzzync.ErrAborted) {
		t.Fatalf("got error %v, want %v", err, zzzync.ErrAborted)
	}
	if _, err := node.Push(ctx, allowed, pushOptions(t, d, site)); err != nil {
		t.Fatal(err)
	}
}

func TestNewDaemon_scopeUnset(t *testing.T) {
	_, err := node.NewDaemon(newKey(t), node.Options{
		P2PAddr:     "127.0.0.1:0",
		DisableWS:   true,
		DisableQUIC: true,
		Logger:      logging.New(io.Discard, 0),
	})
	if !errors.Is(err, advertiser.ErrScopeUnset) {
		t.Fatalf("got error %v, want %v", err, advertiser.ErrScopeUnset)
	}
}

func TestInitStateStore(t *testing.T) {
	logger := logging.New(io.Discard, 0)
	dir := t.TempDir()

	s, err := node.InitStateStore(logger, dir, "statestore")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("key", "value"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = node.InitStateStore(logger, dir, "statestore")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	var got string
	if err := s.Get("key", &got); err != nil {
		t.Fatal(err)
	}
	if got != "value" {
		t.Fatalf("got %q, want %q", got, "value")
	}

	mem, err := node.InitStateStore(logger, "", "statestore")
	if err != nil {
		t.Fatal(err)
	}
	defer mem.Close()
	if err := mem.Get("key", &got); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got error %v, want %v", err, storage.ErrNotFound)
	}
}

func TestParseDHTMode(t *testing.T) {
	for in, want := range map[string]dht.ModeOpt{
		"":       dht.ModeAuto,
		"auto":   dht.ModeAuto,
		"client": dht.ModeClient,
		"server": dht.ModeServer,
	} {
		got, err := node.ParseDHTMode(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("%q: got mode %v, want %v", in, got, want)
		}
	}
	if _, err := node.ParseDHTMode("full"); err == nil {
		t.Fatal("parsed invalid mode")
	}
}
