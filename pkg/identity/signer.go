// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package identity

import (
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/tabcat/zzzync/pkg/names"
)

// Signer holds the private key of a publisher. The key never leaves it.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	PublicKey() crypto.PubKey
	Name() names.Name
}

type signer struct {
	sk   crypto.PrivKey
	name names.Name
}

// NewSigner returns a Signer for keys of a supported type.
func NewSigner(sk crypto.PrivKey) (Signer, error) {
	name, err := names.FromPublicKey(sk.GetPublic())
	if err != nil {
		return nil, err
	}
	return &signer{sk: sk, name: name}, nil
}

func (s *signer) Sign(data []byte) ([]byte, error) {
	return Sign(s.sk, data)
}

func (s *signer) PublicKey() crypto.PubKey {
	return s.sk.GetPublic()
}

func (s *signer) Name() names.Name {
	return s.name
}

// SignChallenge signs the challenge into a fixed size signature.
func SignChallenge(s Signer, challenge []byte) (sig [SignatureSize]byte, err error) {
	b, err := s.Sign(challenge)
	if err != nil {
		return sig, err
	}
	if len(b) != SignatureSize {
		return sig, ErrSignatureDecode
	}
	copy(sig[:], b)
	return sig, nil
}
