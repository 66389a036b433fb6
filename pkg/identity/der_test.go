// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package identity_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/tabcat/zzzync/pkg/identity"
)

func derSeeds(f *testing.F) {
	f.Helper()

	sk, _, err := crypto.GenerateSecp256k1Key(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	for _, m := range []string{"a", "b", "zzzync"} {
		der, err := sk.Sign([]byte(m))
		if err != nil {
			f.Fatal(err)
		}
		f.Add(der)
		f.Add(der[:len(der)-1])
	}
	f.Add([]byte{})
	f.Add([]byte{0x30, 0x00})
	f.Add([]byte{0x30, 0x06, 0x02, 0x01, 0x00, 0x02, 0x01, 0x01})
	f.Add(bytes.Repeat([]byte{0xff}, 72))
}

func FuzzCompactFromDER(f *testing.F) {
	derSeeds(f)

	f.Fuzz(func(t *testing.T, der []byte) {
		compact, err := identity.CompactFromDER(der)
		if err != nil {
			return
		}
		if len(compact) != identity.SignatureSize {
			t.Fatalf("got compact length %d", len(compact))
		}
		// every parsed signature has an encodable compact form
		back, err := identity.DERFromCompact(compact)
		if err != nil {
			t.Fatalf("compact from valid der not encodable: %v", err)
		}
		again, err := identity.CompactFromDER(back)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(again[:32], compact[:32]) {
			t.Fatalf("r changed: %x != %x", again[:32], compact[:32])
		}
	})
}

func FuzzDERFromCompact(f *testing.F) {
	f.Add(make([]byte, identity.SignatureSize))
	f.Add(bytes.Repeat([]byte{0xff}, identity.SignatureSize))
	f.Add(bytes.Repeat([]byte{0x01}, identity.SignatureSize))
	f.Add([]byte{0x01})

	f.Fuzz(func(t *testing.T, compact []byte) {
		der, err := identity.DERFromCompact(compact)
		if err != nil {
			return
		}
		got, err := identity.CompactFromDER(der)
		if err != nil {
			t.Fatalf("der from compact not parsable: %v", err)
		}
		if !bytes.Equal(got[:32], compact[:32]) {
			t.Fatalf("r changed: %x != %x", got[:32], compact[:32])
		}
	})
}

func TestDERRoundTrip(t *testing.T) {
	sk, pk, err := crypto.GenerateSecp256k1Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("challenge")
	der, err := sk.Sign(data)
	if err != nil {
		t.Fatal(err)
	}
	compact, err := identity.CompactFromDER(der)
	if err != nil {
		t.Fatal(err)
	}
	back, err := identity.DERFromCompact(compact)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := pk.Verify(data, back)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("re-encoded signature not verified")
	}
}

func TestDERFromCompact_highS(t *testing.T) {
	sk, pk, err := crypto.GenerateSecp256k1Key(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("challenge")
	der, err := sk.Sign(data)
	if err != nil {
		t.Fatal(err)
	}
	compact, err := identity.CompactFromDER(der)
	if err != nil {
		t.Fatal(err)
	}

	// n - s verifies as the same signature once normalized
	var s secp256k1.ModNScalar
	s.SetByteSlice(compact[32:])
	s.Negate()
	sb := s.Bytes()
	high := append(append([]byte(nil), compact[:32]...), sb[:]...)

	if _, err := identity.DERFromCompact(high); !errors.Is(err, identity.ErrSignatureDecode) {
		t.Fatalf("got error %v, want %v", err, identity.ErrSignatureDecode)
	}
	ok, err := identity.Verify(pk, data, high)
	if ok || !errors.Is(err, identity.ErrSignatureDecode) {
		t.Fatalf("got %v, %v, want false, %v", ok, err, identity.ErrSignatureDecode)
	}
	if ok, err := identity.Verify(pk, data, compact); err != nil || !ok {
		t.Fatalf("got %v, %v, want true, nil", ok, err)
	}
}
