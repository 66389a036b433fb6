// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"errors"
	"time"

	libp2precord "github.com/libp2p/go-libp2p-record"
	"github.com/tabcat/zzzync/pkg/names"
)

// Namespace is the routing namespace of named records.
const Namespace = "ipns"

var _ libp2precord.Validator = Validator{}

// Validator validates named records stored under "/ipns/<multihash>"
// routing keys. It plugs into a namespaced libp2p record validator.
type Validator struct {
	// Now returns the current time, time.Now if nil.
	Now func() time.Time
}

func (v Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Validate implements libp2precord.Validator.
func (v Validator) Validate(key string, value []byte) error {
	name, err := names.FromRoutingKey(key)
	if err != nil {
		return err
	}
	r, err := Unmarshal(value)
	if err != nil {
		return err
	}
	return Validate(name, r, v.now())
}

// Select implements libp2precord.Validator. Values that do not decode are
// never selected.
func (v Validator) Select(_ string, values [][]byte) (int, error) {
	best := -1
	var bestRecord *Record
	for i, b := range values {
		r, err := Unmarshal(b)
		if err != nil {
			continue
		}
		if bestRecord == nil || Select(r, bestRecord) == 0 && !r.Equal(bestRecord) {
			best, bestRecord = i, r
		}
	}
	if best < 0 {
		return 0, errors.New("no usable record")
	}
	return best, nil
}
