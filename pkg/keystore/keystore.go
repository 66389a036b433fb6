// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package keystore

import (
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/multiformats/go-multibase"
	"github.com/tabcat/zzzync/pkg/names"
)

// ErrInvalidPassword is returned when the password for decrypting content where
// private key is stored is not valid.
var ErrInvalidPassword = errors.New("invalid password")

// DefaultKeyType is the type of generated keys when none is given.
const DefaultKeyType = pb.KeyType_Ed25519

// Service for managing keystore private keys.
type Service interface {
	// Key returns private key for specified name that was encrypted with
	// provided password. If the private key does not exists it creates new one
	// of the key type with name and password, and returns with created set to
	// true.
	Key(name, password string, keyType pb.KeyType) (k crypto.PrivKey, created bool, err error)
	// SetKey stores the private key under the name, replacing any existing
	// one.
	SetKey(name, password string, k crypto.PrivKey) error
	// Exists returns true if the key with specified name exists.
	Exists(name string) (bool, error)
}

// GenerateKey generates a private key of a key type that can sign for
// names.
func GenerateKey(keyType pb.KeyType) (crypto.PrivKey, error) {
	if err := names.CheckKeyType(keyType); err != nil {
		return nil, err
	}
	sk, _, err := crypto.GenerateKeyPair(int(keyType), 256)
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", keyType, err)
	}
	return sk, nil
}

// ParseKeyType parses the key type names accepted on the command line.
func ParseKeyType(s string) (pb.KeyType, error) {
	switch s {
	case "ed25519", "Ed25519":
		return pb.KeyType_Ed25519, nil
	case "secp256k1", "Secp256k1":
		return pb.KeyType_Secp256k1, nil
	}
	return 0, fmt.Errorf("%w: %q", names.ErrUnsupportedKeyType, s)
}

// EncodeKey encodes a private key as base36 of its protobuf form, the
// format of keys passed in the environment.
func EncodeKey(k crypto.PrivKey) (string, error) {
	b, err := crypto.MarshalPrivateKey(k)
	if err != nil {
		return "", err
	}
	return multibase.Encode(multibase.Base36, b)
}

// DecodeKey decodes a key encoded by EncodeKey.
func DecodeKey(s string) (crypto.PrivKey, error) {
	_, b, err := multibase.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	k, err := crypto.UnmarshalPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if err := names.CheckKeyType(k.Type()); err != nil {
		return nil, err
	}
	return k, nil
}
