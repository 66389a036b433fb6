// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package identity

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// CompactFromDER converts a DER encoded Secp256k1 signature into the
// 64 byte r||s form with a low s value.
func CompactFromDER(der []byte) ([]byte, error) {
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureDecode, err)
	}
	r, s := sig.R(), sig.S()
	if s.IsOverHalfOrder() {
		s.Negate()
	}
	rb, sb := r.Bytes(), s.Bytes()

	compact := make([]byte, SignatureSize)
	copy(compact[:32], rb[:])
	copy(compact[32:], sb[:])
	return compact, nil
}

// DERFromCompact converts a 64 byte r||s signature into DER. The s value
// must be in the lower half of the curve order, so every signature has a
// single compact form.
func DERFromCompact(compact []byte) ([]byte, error) {
	if len(compact) != SignatureSize {
		return nil, fmt.Errorf("%w: length %d", ErrSignatureDecode, len(compact))
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(compact[:32]); overflow || r.IsZero() {
		return nil, fmt.Errorf("%w: r out of range", ErrSignatureDecode)
	}
	if overflow := s.SetByteSlice(compact[32:]); overflow || s.IsZero() {
		return nil, fmt.Errorf("%w: s out of range", ErrSignatureDecode)
	}
	if s.IsOverHalfOrder() {
		return nil, fmt.Errorf("%w: s not canonical", ErrSignatureDecode)
	}
	return ecdsa.NewSignature(&r, &s).Serialize(), nil
}
