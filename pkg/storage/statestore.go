// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package storage defines the key-value state store contract shared by the
// record, pin and block stores.
package storage

import (
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the key is not present.
var ErrNotFound = errors.New("storage: not found")

// StateStorer defines methods required to get, set, delete values for different keys
// and close the underlying resources.
//
// Values implementing encoding.BinaryMarshaler and encoding.BinaryUnmarshaler
// are stored as returned by them, all other values are JSON encoded.
// Implementations must be safe for concurrent use.
type StateStorer interface {
	Get(key string, i interface{}) (err error)
	Put(key string, i interface{}) (err error)
	Delete(key string) (err error)
	Iterate(prefix string, iterFunc StateIterFunc) (err error)
	io.Closer
}

// StateIterFunc is used when iterating through StateStorer key/value pairs
type StateIterFunc func(key, value []byte) (stop bool, err error)
