// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"fmt"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/record"
)

// ParseDHTMode parses "auto", "client" or "server".
func ParseDHTMode(s string) (dht.ModeOpt, error) {
	switch s {
	case "", "auto":
		return dht.ModeAuto, nil
	case "client":
		return dht.ModeClient, nil
	case "server":
		return dht.ModeServer, nil
	}
	return 0, fmt.Errorf("invalid dht mode %q", s)
}

// newDHT starts a kademlia DHT on the host that validates and selects name
// records with the record package rules.
func newDHT(ctx context.Context, h host.Host, mode dht.ModeOpt) (*dht.IpfsDHT, error) {
	kad, err := dht.New(ctx, h,
		dht.Mode(mode),
		dht.NamespacedValidator(names.RoutingNamespace, record.Validator{}),
	)
	if err != nil {
		return nil, fmt.Errorf("dht: %w", err)
	}
	if err := kad.Bootstrap(ctx); err != nil {
		_ = kad.Close()
		return nil, fmt.Errorf("dht bootstrap: %w", err)
	}
	return kad, nil
}
