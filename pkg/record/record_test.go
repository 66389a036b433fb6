// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record_test

import (
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/multiformats/go-multihash"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/record/pb"
)

func newSigner(t *testing.T, keyType int) identity.Signer {
	t.Helper()

	sk, _, err := crypto.GenerateKeyPairWithReader(keyType, 256, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	s, err := identity.NewSigner(sk)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newCid(t *testing.T, codec uint64, data string) cid.Cid {
	t.Helper()

	mh, err := multihash.Sum([]byte(data), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatal(err)
	}
	return cid.NewCidV1(codec, mh)
}

func newRecord(t *testing.T, s identity.Signer, root cid.Cid, seq uint64, eol time.Time) *record.Record {
	t.Helper()

	r, err := record.New(s, root, seq, eol, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewUnmarshalValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		keyType int
	}{
		{name: "ed25519", keyType: crypto.Ed25519},
		{name: "secp256k1", keyType: crypto.Secp256k1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newSigner(t, tc.keyType)
			root := newCid(t, cid.DagProtobuf, "root")
			eol := time.Now().Add(time.Hour).Round(0)

			r := newRecord(t, s, root, 7, eol)

			got, err := record.Unmarshal(r.Marshal())
			if err != nil {
				t.Fatal(err)
			}
			if !got.Value().Equals(root) {
				t.Errorf("got value %s, want %s", got.Value(), root)
			}
			if got.Sequence() != 7 {
				t.Errorf("got sequence %d, want 7", got.Sequence())
			}
			if !got.EOL().Equal(eol) {
				t.Errorf("got eol %s, want %s", got.EOL(), eol)
			}
			if got.TTL() != time.Hour {
				t.Errorf("got ttl %s, want %s", got.TTL(), time.Hour)
			}
			if !got.Equal(r) {
				t.Error("unmarshaled record differs")
			}

			if err := record.Validate(s.Name(), got, time.Now()); err != nil {
				t.Fatal(err)
			}

			other := newSigner(t, tc.keyType)
			if err := record.Validate(other.Name(), got, time.Now()); !errors.Is(err, record.ErrSignatureInvalid) {
				t.Fatalf("got error %v, want %v", err, record.ErrSignatureInvalid)
			}

			if err := record.Validate(s.Name(), got, eol.Add(time.Second)); !errors.Is(err, record.ErrRecordExpired) {
				t.Fatalf("got error %v, want %v", err, record.ErrRecordExpired)
			}
		})
	}
}

func TestUnmarshal_malformed(t *testing.T) {
	s := newSigner(t, crypto.Ed25519)
	r := newRecord(t, s, newCid(t, cid.Raw, "leaf"), 1, time.Now().Add(time.Hour))

	tamper := func(f func(e *pb.Record)) []byte {
		e := new(pb.Record)
		if err := proto.Unmarshal(r.Marshal(), e); err != nil {
			t.Fatal(err)
		}
		f(e)
		b, err := proto.Marshal(e)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}

	for _, tc := range []struct {
		name string
		in   []byte
	}{
		{name: "garbage", in: []byte{0xff, 0xff, 0xff}},
		{name: "too large", in: make([]byte, record.MaxSize+1)},
		{name: "sequence differs", in: tamper(func(e *pb.Record) { e.Sequence++ })},
		{name: "value differs", in: tamper(func(e *pb.Record) { e.Value = []byte("/ipfs/other") })},
		{name: "unsigned", in: tamper(func(e *pb.Record) { e.SignatureV2 = nil })},
		{name: "no data", in: tamper(func(e *pb.Record) { e.Data = nil })},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := record.Unmarshal(tc.in); !errors.Is(err, record.ErrRecordMalformed) {
				t.Fatalf("got error %v, want %v", err, record.ErrRecordMalformed)
			}
		})
	}

	t.Run("bad signature", func(t *testing.T) {
		b := tamper(func(e *pb.Record) { e.SignatureV2[0] ^= 0xff })
		got, err := record.Unmarshal(b)
		if err != nil {
			t.Fatal(err)
		}
		if err := record.Validate(s.Name(), got, time.Now()); !errors.Is(err, record.ErrSignatureInvalid) {
			t.Fatalf("got error %v, want %v", err, record.ErrSignatureInvalid)
		}
	})

	t.Run("foreign public key", func(t *testing.T) {
		b := tamper(func(e *pb.Record) { e.PubKey = newSigner(t, crypto.Ed25519).Name().Digest() })
		got, err := record.Unmarshal(b)
		if err != nil {
			t.Fatal(err)
		}
		if err := record.Validate(s.Name(), got, time.Now()); !errors.Is(err, record.ErrSignatureInvalid) {
			t.Fatalf("got error %v, want %v", err, record.ErrSignatureInvalid)
		}
	})
}

func TestParseValue(t *testing.T) {
	raw := newCid(t, cid.Raw, "a")
	dir := newCid(t, cid.DagProtobuf, "b")
	cbor := newCid(t, cid.DagCBOR, "c")
	mh, err := multihash.Sum([]byte("d"), multihash.SHA2_512, -1)
	if err != nil {
		t.Fatal(err)
	}
	sha512 := cid.NewCidV1(cid.Raw, mh)

	for _, tc := range []struct {
		name string
		in   string
		err  error
	}{
		{name: "raw", in: "/ipfs/" + raw.String()},
		{name: "dag-pb", in: "/ipfs/" + dir.String()},
		{name: "dag-pb v0", in: "/ipfs/" + cid.NewCidV0(dir.Hash()).String()},
		{name: "dag-cbor", in: "/ipfs/" + cbor.String(), err: record.ErrRecordMalformed},
		{name: "sha2-512", in: "/ipfs/" + sha512.String(), err: record.ErrRecordMalformed},
		{name: "no prefix", in: raw.String(), err: record.ErrRecordMalformed},
		{name: "ipns prefix", in: "/ipns/" + raw.String(), err: record.ErrRecordMalformed},
		{name: "not a cid", in: "/ipfs/hello", err: record.ErrRecordMalformed},
		{name: "empty", in: "", err: record.ErrRecordMalformed},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := record.ParseValue(tc.in)
			if !errors.Is(err, tc.err) {
				t.Fatalf("got error %v, want %v", err, tc.err)
			}
		})
	}
}

func TestValidator(t *testing.T) {
	s := newSigner(t, crypto.Ed25519)
	eol := time.Now().Add(time.Hour)
	r1 := newRecord(t, s, newCid(t, cid.Raw, "a"), 1, eol)
	r2 := newRecord(t, s, newCid(t, cid.Raw, "b"), 2, eol)

	v := record.Validator{}
	if err := v.Validate(s.Name().RoutingKey(), r1.Marshal()); err != nil {
		t.Fatal(err)
	}
	if err := v.Validate(newSigner(t, crypto.Ed25519).Name().RoutingKey(), r1.Marshal()); err == nil {
		t.Fatal("record validated under a foreign key")
	}

	i, err := v.Select(s.Name().RoutingKey(), [][]byte{r1.Marshal(), []byte("junk"), r2.Marshal()})
	if err != nil {
		t.Fatal(err)
	}
	if i != 2 {
		t.Fatalf("selected %d, want 2", i)
	}

	if _, err := v.Select(s.Name().RoutingKey(), [][]byte{[]byte("junk")}); err == nil {
		t.Fatal("selected junk")
	}
}
