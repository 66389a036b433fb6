// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package names implements the self-certifying name of a publisher: the
// identity multihash of its public key.
package names

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// RoutingNamespace is the record validator namespace of names.
const RoutingNamespace = "ipns"

// RoutingPrefix is prepended to the multihash of a name to build its
// routing key.
const RoutingPrefix = "/" + RoutingNamespace + "/"

var (
	// ErrUnsupportedKeyType is returned for keys other than Ed25519 and
	// Secp256k1 and for names not encoded as identity multihashes.
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	// ErrInvalidName is returned when a name can not be decoded.
	ErrInvalidName = errors.New("invalid name")
)

var base36 = multibase.MustNewEncoder(multibase.Base36)

// Name is an immutable named key. The zero value is not a valid name.
type Name struct {
	mh string
}

// CheckKeyType returns ErrUnsupportedKeyType if the key can not be used to
// publish or authenticate.
func CheckKeyType(t pb.KeyType) error {
	switch t {
	case pb.KeyType_Ed25519, pb.KeyType_Secp256k1:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedKeyType, t)
}

// FromPublicKey derives the name of a public key.
func FromPublicKey(pk crypto.PubKey) (Name, error) {
	if pk == nil {
		return Name{}, ErrInvalidName
	}
	if err := CheckKeyType(pk.Type()); err != nil {
		return Name{}, err
	}
	raw, err := crypto.MarshalPublicKey(pk)
	if err != nil {
		return Name{}, fmt.Errorf("marshal public key: %w", err)
	}
	mh, err := multihash.Sum(raw, multihash.IDENTITY, -1)
	if err != nil {
		return Name{}, err
	}
	return Name{mh: string(mh)}, nil
}

// FromMultihash parses the multihash bytes of a name. Only identity
// multihashes over supported public keys are valid.
func FromMultihash(b []byte) (Name, error) {
	dmh, err := multihash.Decode(b)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if dmh.Code != multihash.IDENTITY {
		return Name{}, fmt.Errorf("%w: multihash code %#x", ErrUnsupportedKeyType, dmh.Code)
	}
	pk, err := crypto.UnmarshalPublicKey(dmh.Digest)
	if err != nil {
		if errors.Is(err, crypto.ErrBadKeyType) {
			return Name{}, fmt.Errorf("%w: %v", ErrUnsupportedKeyType, err)
		}
		return Name{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	if err := CheckKeyType(pk.Type()); err != nil {
		return Name{}, err
	}
	return Name{mh: string(b)}, nil
}

// FromRoutingKey parses a "/ipns/<multihash>" routing key.
func FromRoutingKey(key string) (Name, error) {
	if len(key) <= len(RoutingPrefix) || key[:len(RoutingPrefix)] != RoutingPrefix {
		return Name{}, fmt.Errorf("%w: routing key prefix", ErrInvalidName)
	}
	return FromMultihash([]byte(key[len(RoutingPrefix):]))
}

// Parse decodes the string form of a name: a libp2p-key CID in any
// multibase, or a peer id string.
func Parse(s string) (Name, error) {
	if c, err := cid.Decode(s); err == nil {
		if c.Type() != cid.Libp2pKey {
			return Name{}, fmt.Errorf("%w: cid codec %#x", ErrInvalidName, c.Type())
		}
		return FromMultihash(c.Hash())
	}
	id, err := peer.Decode(s)
	if err != nil {
		return Name{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}
	return FromMultihash([]byte(id))
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Name {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Bytes returns the multihash bytes.
func (n Name) Bytes() []byte {
	return []byte(n.mh)
}

// Digest returns the protobuf encoded public key.
func (n Name) Digest() []byte {
	dmh, err := multihash.Decode([]byte(n.mh))
	if err != nil {
		return nil
	}
	return dmh.Digest
}

// PublicKey extracts the public key embedded in the name.
func (n Name) PublicKey() (crypto.PubKey, error) {
	if n.IsZero() {
		return nil, ErrInvalidName
	}
	return crypto.UnmarshalPublicKey(n.Digest())
}

// PeerID returns the peer id of the key holder.
func (n Name) PeerID() peer.ID {
	return peer.ID(n.mh)
}

// RoutingKey returns the key under which records of the name are routed.
func (n Name) RoutingKey() string {
	return RoutingPrefix + n.mh
}

// Cid returns the CIDv1 libp2p-key form of the name.
func (n Name) Cid() cid.Cid {
	return cid.NewCidV1(cid.Libp2pKey, multihash.Multihash(n.mh))
}

// String returns the base36 libp2p-key CID.
func (n Name) String() string {
	if n.IsZero() {
		return ""
	}
	return n.Cid().Encode(base36)
}

func (n Name) Equal(o Name) bool {
	return bytes.Equal([]byte(n.mh), []byte(o.mh))
}

func (n Name) IsZero() bool {
	return n.mh == ""
}

// MarshalText implements encoding.TextMarshaler so names can be used as
// JSON object keys.
func (n Name) MarshalText() ([]byte, error) {
	if n.IsZero() {
		return nil, ErrInvalidName
	}
	return []byte(n.String()), nil
}

func (n *Name) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*n = v
	return nil
}
