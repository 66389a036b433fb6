// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bytes"
	"errors"
)

// ErrRecordStale is returned when the local record wins over the remote one.
var ErrRecordStale = errors.New("record stale")

// Outcome is the result of reconciling a remote record with the local one.
type Outcome int

const (
	// OutcomeAccept means the remote record points to new content which
	// must be imported.
	OutcomeAccept Outcome = iota
	// OutcomeSameValue means the remote record replaces the local one but
	// points to the same content, so nothing is imported.
	OutcomeSameValue
	// OutcomeEqual means there is nothing to import nor to persist.
	OutcomeEqual
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccept:
		return "accept"
	case OutcomeSameValue:
		return "same value"
	case OutcomeEqual:
		return "equal"
	}
	return "unknown"
}

// Reconcile decides what to do with a remote record given the local one,
// which may be nil. Both peers apply the same selection so they converge
// regardless of which one initiated.
func Reconcile(local, remote *Record) (Outcome, error) {
	if local == nil {
		return OutcomeAccept, nil
	}
	if local.Sequence() > remote.Sequence() {
		return 0, ErrRecordStale
	}
	if local.Equal(remote) {
		return OutcomeEqual, nil
	}

	remoteWins := Select(remote, local) == 0
	if local.Value().Equals(remote.Value()) {
		if remoteWins {
			return OutcomeSameValue, nil
		}
		return OutcomeEqual, nil
	}
	if !remoteWins {
		return 0, ErrRecordStale
	}
	return OutcomeAccept, nil
}

// Select returns the index of the better record: the higher sequence, then
// the later end of life, then the greater marshaled bytes. Ties pick a.
func Select(a, b *Record) int {
	switch {
	case a.Sequence() != b.Sequence():
		if a.Sequence() > b.Sequence() {
			return 0
		}
		return 1
	case !a.EOL().Equal(b.EOL()):
		if a.EOL().After(b.EOL()) {
			return 0
		}
		return 1
	case bytes.Compare(a.raw, b.raw) < 0:
		return 1
	}
	return 0
}
