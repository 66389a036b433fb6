// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/ipfs/go-cid"
	"github.com/tabcat/zzzync/pkg/jsonhttp"
	"github.com/tabcat/zzzync/pkg/pinning"
)

type pinsResponse struct {
	Roots []cid.Cid `json:"roots"`
}

func (s *Service) pinsHandler(w http.ResponseWriter, r *http.Request) {
	roots, err := s.pins.Pins(r.Context())
	if err != nil {
		s.Logger.Debugf("debug api: pins: %v", err)
		s.Logger.Error("debug api: pins")
		jsonhttp.InternalServerError(w, err)
		return
	}
	if roots == nil {
		roots = make([]cid.Cid, 0)
	}
	jsonhttp.OK(w, pinsResponse{Roots: roots})
}

func (s *Service) pinHandler(w http.ResponseWriter, r *http.Request) {
	root, err := cid.Decode(mux.Vars(r)["root"])
	if err != nil {
		s.Logger.Debugf("debug api: pin: parse root: %v", err)
		jsonhttp.BadRequest(w, "invalid root")
		return
	}

	p, err := s.pins.Get(r.Context(), root)
	if err != nil {
		if errors.Is(err, pinning.ErrNotPinned) {
			jsonhttp.NotFound(w, nil)
			return
		}
		s.Logger.Debugf("debug api: pin %s: %v", root, err)
		s.Logger.Errorf("debug api: pin %s", root)
		jsonhttp.InternalServerError(w, err)
		return
	}
	jsonhttp.OK(w, p)
}
