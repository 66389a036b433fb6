// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record implements named records: signed, versioned pointers from
// a name to a content root, and the rules that pick the best of two.
package record

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gogo/protobuf/proto"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/record/pb"
)

const (
	// MaxSize is the maximum size of a marshaled record.
	MaxSize = 10 << 10
	// ValuePrefix is the required prefix of record values.
	ValuePrefix = "/ipfs/"

	signaturePrefix = "ipns-signature:"
)

var (
	ErrRecordMalformed  = errors.New("record malformed")
	ErrRecordTooLarge   = fmt.Errorf("%w: too large", ErrRecordMalformed)
	ErrSignatureInvalid = errors.New("record signature invalid")
	ErrRecordExpired    = errors.New("record expired")
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	if encMode, err = cbor.CanonicalEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if decMode, err = (cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}).DecMode(); err != nil {
		panic(err)
	}
}

// data is the signed part of a record.
type data struct {
	Value        []byte `cbor:"Value"`
	Validity     []byte `cbor:"Validity"`
	ValidityType uint64 `cbor:"ValidityType"`
	Sequence     uint64 `cbor:"Sequence"`
	TTL          uint64 `cbor:"TTL"`
}

// Record is an immutable, decoded named record together with its
// marshaled bytes.
type Record struct {
	entry *pb.Record
	raw   []byte
	value cid.Cid
	eol   time.Time
}

// New creates and signs a record pointing to root.
func New(signer identity.Signer, root cid.Cid, sequence uint64, eol time.Time, ttl time.Duration) (*Record, error) {
	if _, err := checkRoot(root); err != nil {
		return nil, err
	}

	d := data{
		Value:        []byte(ValuePrefix + root.String()),
		Validity:     []byte(eol.UTC().Format(time.RFC3339Nano)),
		ValidityType: uint64(pb.Record_EOL),
		Sequence:     sequence,
		TTL:          uint64(ttl.Nanoseconds()),
	}
	db, err := encMode.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal record data: %w", err)
	}
	sig, err := signer.Sign(append([]byte(signaturePrefix), db...))
	if err != nil {
		return nil, fmt.Errorf("sign record: %w", err)
	}

	entry := &pb.Record{
		Value:        d.Value,
		ValidityType: pb.Record_EOL,
		Validity:     d.Validity,
		Sequence:     d.Sequence,
		Ttl:          d.TTL,
		SignatureV2:  sig,
		Data:         db,
	}
	raw, err := proto.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return Unmarshal(raw)
}

// Unmarshal decodes a marshaled record and checks that its fields match
// the signed data. It does not verify the signature, see Validate.
func Unmarshal(b []byte) (*Record, error) {
	if len(b) > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(b))
	}

	entry := new(pb.Record)
	if err := proto.Unmarshal(b, entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordMalformed, err)
	}
	if len(entry.Data) == 0 || len(entry.SignatureV2) == 0 {
		return nil, fmt.Errorf("%w: unsigned", ErrRecordMalformed)
	}

	var d data
	if err := decMode.Unmarshal(entry.Data, &d); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrRecordMalformed, err)
	}
	if !bytes.Equal(d.Value, entry.Value) ||
		!bytes.Equal(d.Validity, entry.Validity) ||
		d.ValidityType != uint64(entry.ValidityType) ||
		d.Sequence != entry.Sequence ||
		d.TTL != entry.Ttl {
		return nil, fmt.Errorf("%w: fields do not match signed data", ErrRecordMalformed)
	}

	if entry.ValidityType != pb.Record_EOL {
		return nil, fmt.Errorf("%w: validity type %d", ErrRecordMalformed, entry.ValidityType)
	}
	eol, err := time.Parse(time.RFC3339Nano, string(entry.Validity))
	if err != nil {
		return nil, fmt.Errorf("%w: validity: %v", ErrRecordMalformed, err)
	}

	value, err := ParseValue(string(entry.Value))
	if err != nil {
		return nil, err
	}

	return &Record{
		entry: entry,
		raw:   append([]byte(nil), b...),
		value: value,
		eol:   eol,
	}, nil
}

// ParseValue parses a "/ipfs/<cid>" value. The cid must address a raw or
// dag-pb block hashed with sha2-256.
func ParseValue(v string) (cid.Cid, error) {
	if !strings.HasPrefix(v, ValuePrefix) {
		return cid.Undef, fmt.Errorf("%w: value %q", ErrRecordMalformed, v)
	}
	c, err := cid.Decode(strings.TrimPrefix(v, ValuePrefix))
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: value cid: %v", ErrRecordMalformed, err)
	}
	return checkRoot(c)
}

func checkRoot(c cid.Cid) (cid.Cid, error) {
	if !c.Defined() {
		return cid.Undef, fmt.Errorf("%w: undefined cid", ErrRecordMalformed)
	}
	switch c.Type() {
	case cid.Raw, cid.DagProtobuf:
	default:
		return cid.Undef, fmt.Errorf("%w: codec %#x", ErrRecordMalformed, c.Type())
	}
	if mh := c.Prefix().MhType; mh != multihash.SHA2_256 {
		return cid.Undef, fmt.Errorf("%w: hash %#x", ErrRecordMalformed, mh)
	}
	return c, nil
}

// Validate checks the record signature against the name, the embedded
// public key if any and the end of life.
func Validate(name names.Name, r *Record, now time.Time) error {
	pk, err := name.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if len(r.entry.PubKey) > 0 && !bytes.Equal(r.entry.PubKey, name.Digest()) {
		return fmt.Errorf("%w: public key does not match name", ErrSignatureInvalid)
	}
	ok, err := identity.Verify(pk, append([]byte(signaturePrefix), r.entry.Data...), r.entry.SignatureV2)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if !ok {
		return ErrSignatureInvalid
	}
	if now.After(r.eol) {
		return fmt.Errorf("%w: at %s", ErrRecordExpired, r.eol.Format(time.RFC3339))
	}
	return nil
}

// Value returns the content root the record points to.
func (r *Record) Value() cid.Cid {
	return r.value
}

func (r *Record) Sequence() uint64 {
	return r.entry.Sequence
}

// EOL returns the end of life of the record.
func (r *Record) EOL() time.Time {
	return r.eol
}

func (r *Record) TTL() time.Duration {
	return time.Duration(r.entry.Ttl)
}

// Marshal returns the marshaled record. The returned slice must not be
// modified.
func (r *Record) Marshal() []byte {
	return r.raw
}

// Equal reports whether both records marshal to the same bytes.
func (r *Record) Equal(o *Record) bool {
	return o != nil && bytes.Equal(r.raw, o.raw)
}

func (r *Record) MarshalBinary() ([]byte, error) {
	return r.raw, nil
}

func (r *Record) UnmarshalBinary(b []byte) error {
	v, err := Unmarshal(b)
	if err != nil {
		return err
	}
	*r = *v
	return nil
}

func (r *Record) String() string {
	return fmt.Sprintf("seq=%d value=%s eol=%s", r.Sequence(), r.value, r.eol.Format(time.RFC3339))
}
