// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zzzync

import (
	"fmt"
	"strconv"
)

// State is a step of a protocol run.
type State int

const (
	StateAwaitKey State = iota
	StateAuthorize
	StateChallenge
	StateAwaitResponse
	StateAwaitRecord
	StateReconcile
	StateImport
	StatePin
	StateRepublish
	StateUnpin
	StateClosed
	StateAborted
)

var stateNames = [...]string{
	StateAwaitKey:      "await-key",
	StateAuthorize:     "authorize",
	StateChallenge:     "challenge",
	StateAwaitResponse: "await-response",
	StateAwaitRecord:   "await-record",
	StateReconcile:     "reconcile",
	StateImport:        "import",
	StatePin:           "pin",
	StateRepublish:     "republish",
	StateUnpin:         "unpin",
	StateClosed:        "closed",
	StateAborted:       "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// AbortError ends a protocol run. State is the step that failed.
type AbortError struct {
	State  State
	Reason string
	Err    error
}

func abort(state State, reason string, err error) *AbortError {
	return &AbortError{State: state, Reason: reason, Err: err}
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

func (e *AbortError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("zzzync: %s: %s", e.State, e.Reason)
	}
	return fmt.Sprintf("zzzync: %s: %s: %v", e.State, e.Reason, e.Err)
}
