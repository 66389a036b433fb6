// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package test provides the behavior tests shared by keystore.Service
// implementations.
package test

import (
	"errors"
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/tabcat/zzzync/pkg/keystore"
)

// Service is a utility testing function that can be used to test
// implementations of the keystore.Service interface.
func Service(t *testing.T, s keystore.Service, keyType pb.KeyType) {
	t.Helper()

	exists, err := s.Exists("zzzync")
	if err != nil {
		t.Fatal(err)
	}

	if exists {
		t.Fatal("should not exist")
	}

	// create a new key
	k1, created, err := s.Key("zzzync", "pass123456", keyType)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("key is not created")
	}
	if k1.Type() != keyType {
		t.Fatalf("got key type %s, want %s", k1.Type(), keyType)
	}

	exists, err = s.Exists("zzzync")
	if err != nil {
		t.Fatal(err)
	}

	if !exists {
		t.Fatal("should exist")
	}

	// get the existing key
	k2, created, err := s.Key("zzzync", "pass123456", keyType)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("key is created, but should not be")
	}
	if !k1.Equals(k2) {
		t.Fatal("two keys are not equal")
	}

	// invalid password
	_, _, err = s.Key("zzzync", "invalid password", keyType)
	if !errors.Is(err, keystore.ErrInvalidPassword) {
		t.Fatal(err)
	}

	// replace the key
	k3, err := keystore.GenerateKey(keyType)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetKey("zzzync", "pass123456", k3); err != nil {
		t.Fatal(err)
	}
	k4, created, err := s.Key("zzzync", "pass123456", keyType)
	if err != nil {
		t.Fatal(err)
	}
	if created || !k3.Equals(k4) {
		t.Fatal("key not replaced")
	}

	// create a different key
	k5, created, err := s.Key("swarm", "pass123456", keyType)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("key is not created")
	}
	if k1.Equals(k5) {
		t.Fatal("keys are equal, but should not be")
	}
}
