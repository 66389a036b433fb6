// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"net/http"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/tabcat/zzzync/pkg/jsonhttp"
)

type addressesResponse struct {
	ID       peer.ID        `json:"id"`
	Underlay []ma.Multiaddr `json:"underlay"`
}

func (s *Service) addressesHandler(w http.ResponseWriter, _ *http.Request) {
	u, err := s.p2p.Addresses()
	if err != nil {
		s.Logger.Debugf("debug api: p2p addresses: %v", err)
		jsonhttp.InternalServerError(w, err)
		return
	}
	// encode as [] instead of null
	if u == nil {
		u = make([]ma.Multiaddr, 0)
	}
	jsonhttp.OK(w, addressesResponse{
		ID:       s.p2p.ID(),
		Underlay: u,
	})
}

type peersResponse struct {
	Peers []peer.ID `json:"peers"`
}

func (s *Service) peersHandler(w http.ResponseWriter, _ *http.Request) {
	peers := s.p2p.Peers()
	ids := make([]peer.ID, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID)
	}
	jsonhttp.OK(w, peersResponse{Peers: ids})
}
