// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pb holds the messages of the libp2p fetch protocol.
//
//	message FetchRequest {
//		string identifier = 1;
//	}
//
//	message FetchResponse {
//		enum StatusCode {
//			OK = 0;
//			NOT_FOUND = 1;
//			ERROR = 2;
//		}
//		StatusCode status = 1;
//		bytes data = 2;
//	}
package pb

import (
	"strconv"

	"github.com/gogo/protobuf/proto"
)

type FetchRequest struct {
	Identifier string `protobuf:"bytes,1,opt,name=identifier,proto3" json:"identifier,omitempty"`
}

func (m *FetchRequest) Reset()         { *m = FetchRequest{} }
func (m *FetchRequest) String() string { return proto.CompactTextString(m) }
func (*FetchRequest) ProtoMessage()    {}

func (m *FetchRequest) GetIdentifier() string {
	if m != nil {
		return m.Identifier
	}
	return ""
}

type FetchResponse_StatusCode int32

const (
	FetchResponse_OK        FetchResponse_StatusCode = 0
	FetchResponse_NOT_FOUND FetchResponse_StatusCode = 1
	FetchResponse_ERROR     FetchResponse_StatusCode = 2
)

var FetchResponse_StatusCode_name = map[int32]string{
	0: "OK",
	1: "NOT_FOUND",
	2: "ERROR",
}

func (x FetchResponse_StatusCode) String() string {
	if s, ok := FetchResponse_StatusCode_name[int32(x)]; ok {
		return s
	}
	return strconv.Itoa(int(x))
}

type FetchResponse struct {
	Status FetchResponse_StatusCode `protobuf:"varint,1,opt,name=status,proto3" json:"status,omitempty"`
	Data   []byte                   `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *FetchResponse) Reset()         { *m = FetchResponse{} }
func (m *FetchResponse) String() string { return proto.CompactTextString(m) }
func (*FetchResponse) ProtoMessage()    {}

func (m *FetchResponse) GetStatus() FetchResponse_StatusCode {
	if m != nil {
		return m.Status
	}
	return FetchResponse_OK
}

func (m *FetchResponse) GetData() []byte {
	if m != nil {
		return m.Data
	}
	return nil
}
