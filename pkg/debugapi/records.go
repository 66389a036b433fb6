// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tabcat/zzzync/pkg/jsonhttp"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/namestore"
)

type recordResponse struct {
	Name     names.Name `json:"name"`
	Value    string     `json:"value"`
	Sequence uint64     `json:"sequence"`
	EOL      time.Time  `json:"eol"`
	TTL      string     `json:"ttl"`
}

type recordsResponse struct {
	Names []names.Name `json:"names"`
}

func (s *Service) recordsHandler(w http.ResponseWriter, r *http.Request) {
	ns, err := s.records.Names(r.Context())
	if err != nil {
		s.Logger.Debugf("debug api: records: %v", err)
		s.Logger.Error("debug api: records: list names")
		jsonhttp.InternalServerError(w, err)
		return
	}
	if ns == nil {
		ns = make([]names.Name, 0)
	}
	jsonhttp.OK(w, recordsResponse{Names: ns})
}

func (s *Service) recordHandler(w http.ResponseWriter, r *http.Request) {
	n, err := names.Parse(mux.Vars(r)["name"])
	if err != nil {
		s.Logger.Debugf("debug api: record: parse name: %v", err)
		jsonhttp.BadRequest(w, "invalid name")
		return
	}

	rec, err := s.records.Resolve(r.Context(), n)
	if err != nil {
		if errors.Is(err, namestore.ErrNotFound) {
			jsonhttp.NotFound(w, nil)
			return
		}
		s.Logger.Debugf("debug api: record %s: %v", n, err)
		s.Logger.Errorf("debug api: record %s", n)
		jsonhttp.InternalServerError(w, err)
		return
	}

	jsonhttp.OK(w, recordResponse{
		Name:     n,
		Value:    rec.Value().String(),
		Sequence: rec.Sequence(),
		EOL:      rec.EOL(),
		TTL:      rec.TTL().String(),
	})
}

func (s *Service) republishHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.records.RepublishAll(r.Context()); err != nil {
		s.Logger.Debugf("debug api: republish: %v", err)
		s.Logger.Error("debug api: republish")
		jsonhttp.InternalServerError(w, err)
		return
	}
	jsonhttp.OK(w, nil)
}
