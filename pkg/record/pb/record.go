// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pb holds the wire message of a named record. Field numbers
// follow the IPNS entry.
//
//	message Record {
//		enum ValidityType {
//			EOL = 0;
//		}
//		bytes value = 1;
//		ValidityType validityType = 3;
//		bytes validity = 4;
//		uint64 sequence = 5;
//		uint64 ttl = 6;
//		bytes pubKey = 7;
//		bytes signatureV2 = 8;
//		bytes data = 9;
//	}
package pb

import (
	"github.com/gogo/protobuf/proto"
)

type Record_ValidityType int32

const (
	// Record_EOL marks validity as an RFC3339 end of life timestamp.
	Record_EOL Record_ValidityType = 0
)

type Record struct {
	Value        []byte              `protobuf:"bytes,1,opt,name=value,proto3" json:"value,omitempty"`
	ValidityType Record_ValidityType `protobuf:"varint,3,opt,name=validityType,proto3" json:"validityType,omitempty"`
	Validity     []byte              `protobuf:"bytes,4,opt,name=validity,proto3" json:"validity,omitempty"`
	Sequence     uint64              `protobuf:"varint,5,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Ttl          uint64              `protobuf:"varint,6,opt,name=ttl,proto3" json:"ttl,omitempty"`
	PubKey       []byte              `protobuf:"bytes,7,opt,name=pubKey,proto3" json:"pubKey,omitempty"`
	SignatureV2  []byte              `protobuf:"bytes,8,opt,name=signatureV2,proto3" json:"signatureV2,omitempty"`
	Data         []byte              `protobuf:"bytes,9,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *Record) Reset()         { *m = Record{} }
func (m *Record) String() string { return proto.CompactTextString(m) }
func (*Record) ProtoMessage()    {}
