// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/crypto"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/spf13/afero"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/fetch"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/p2p/libp2p"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/tracing"
	"github.com/tabcat/zzzync/pkg/unixfs"
	"github.com/tabcat/zzzync/pkg/zzzync"
)

const (
	DefaultRecordLifetime = 24 * time.Hour
	DefaultRecordTTL      = 5 * time.Minute
)

type PushOptions struct {
	// DataDir keeps the imported blocks. Empty keeps them in memory.
	DataDir string
	// Fs is the file system Path is read from, the OS one when nil.
	Fs   afero.Fs
	Path string
	// Peer is the full address of the daemon, including its /p2p part.
	Peer ma.Multiaddr
	// Lifetime is how long the pushed record stays valid.
	Lifetime time.Duration
	TTL      time.Duration
	Hidden   bool
	Logger   logging.Logger
	Tracer   *tracing.Tracer
}

// Push imports the file or directory at o.Path, signs a record pointing to
// it with the next sequence the daemon expects and pushes both to the
// daemon. The publisher key is also the identity of the dialing host.
func Push(ctx context.Context, key crypto.PrivKey, o PushOptions) (r *record.Record, err error) {
	logger := o.Logger

	signer, err := identity.NewSigner(key)
	if err != nil {
		return nil, err
	}

	store, err := InitStateStore(logger, o.DataDir, "blockstore")
	if err != nil {
		return nil, fmt.Errorf("block store: %w", err)
	}
	defer func() {
		if e := store.Close(); e != nil && err == nil {
			err = fmt.Errorf("close block store: %w", e)
		}
	}()
	blocks := blockstore.New(store)

	fsys := o.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	entry, err := unixfs.NewImporter(fsys, blocks, unixfs.Options{Hidden: o.Hidden}).Import(ctx, o.Path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", o.Path, err)
	}
	logger.Debugf("push: imported %s as %s, %d bytes", o.Path, entry.Cid, entry.Size)

	p2ps, err := libp2p.New(ctx, libp2p.Options{
		PrivateKey:  key,
		Addr:        "127.0.0.1:0",
		DisableWS:   true,
		DisableQUIC: true,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("p2p service: %w", err)
	}
	defer p2ps.Close()

	daemon, err := p2ps.Connect(ctx, o.Peer)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", o.Peer, err)
	}

	var sequence uint64 = 1
	current, err := fetch.New(fetch.Options{Streamer: p2ps, Logger: logger, Tracer: o.Tracer}).FetchRecord(ctx, daemon, signer.Name())
	switch {
	case err == nil:
		sequence = current.Sequence() + 1
	case errors.Is(err, fetch.ErrNotFound):
	default:
		return nil, fmt.Errorf("fetch current record: %w", err)
	}

	lifetime := o.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultRecordLifetime
	}
	ttl := o.TTL
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	r, err = record.New(signer, entry.Cid, sequence, time.Now().Add(lifetime), ttl)
	if err != nil {
		return nil, err
	}

	z := zzzync.New(zzzync.Options{Streamer: p2ps, Logger: logger, Tracer: o.Tracer})
	if err := z.Push(ctx, daemon, signer, r.Marshal(), blocks); err != nil {
		return nil, err
	}
	logger.Infof("pushed %s to %s", r, daemon)
	return r, nil
}
