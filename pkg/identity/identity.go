// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package identity builds and verifies the handshake challenge and
// normalizes signatures of the supported key algorithms to a fixed size.
package identity

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/tabcat/zzzync/pkg/names"
)

const (
	// ChallengeProtocolID is the first component of every challenge.
	ChallengeProtocolID = "/zzzync/1.0.0"
	NonceSize           = 32
	// SignatureSize is the size of Ed25519 signatures and of compact
	// Secp256k1 signatures.
	SignatureSize = 64
)

var (
	ErrUnsupportedKeyType = names.ErrUnsupportedKeyType
	ErrSignatureDecode    = errors.New("signature decode")
	ErrChallengeInvalid   = errors.New("challenge invalid")
)

// Nonce is a single use random value of a handshake.
type Nonce [NonceSize]byte

// GenerateNonce returns a nonce read from crypto/rand.
func GenerateNonce() (n Nonce, err error) {
	if _, err := rand.Read(n[:]); err != nil {
		return n, fmt.Errorf("generate nonce: %w", err)
	}
	return n, nil
}

// BuildChallenge concatenates the protocol id, the responder peer id, the
// dialer name and both nonces. Both sides must build identical bytes.
func BuildChallenge(responder peer.ID, dialer names.Name, responderNonce, dialerNonce Nonce) []byte {
	b := make([]byte, 0, len(ChallengeProtocolID)+len(responder)+len(dialer.Bytes())+2*NonceSize)
	b = append(b, ChallengeProtocolID...)
	b = append(b, responder...)
	b = append(b, dialer.Bytes()...)
	b = append(b, responderNonce[:]...)
	b = append(b, dialerNonce[:]...)
	return b
}

// Sign signs data and returns a SignatureSize long signature.
func Sign(sk crypto.PrivKey, data []byte) ([]byte, error) {
	switch sk.Type() {
	case pb.KeyType_Ed25519:
		return sk.Sign(data)
	case pb.KeyType_Secp256k1:
		der, err := sk.Sign(data)
		if err != nil {
			return nil, err
		}
		return CompactFromDER(der)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, sk.Type())
}

// Verify checks a signature created by Sign. Malformed signature bytes
// return false with ErrSignatureDecode, a mismatch returns false and no
// error.
func Verify(pk crypto.PubKey, data, sig []byte) (bool, error) {
	if len(sig) != SignatureSize {
		return false, fmt.Errorf("%w: length %d", ErrSignatureDecode, len(sig))
	}
	switch pk.Type() {
	case pb.KeyType_Ed25519:
		return pk.Verify(data, sig)
	case pb.KeyType_Secp256k1:
		der, err := DERFromCompact(sig)
		if err != nil {
			return false, err
		}
		ok, err := pk.Verify(data, der)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrSignatureDecode, err)
		}
		return ok, nil
	}
	return false, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, pk.Type())
}

// VerifyChallenge verifies the dialer signature over the challenge with the
// public key embedded in the dialer name. Any failure is
// ErrChallengeInvalid.
func VerifyChallenge(dialer names.Name, challenge, sig []byte) error {
	pk, err := dialer.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChallengeInvalid, err)
	}
	ok, err := Verify(pk, challenge, sig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChallengeInvalid, err)
	}
	if !ok {
		return ErrChallengeInvalid
	}
	return nil
}
