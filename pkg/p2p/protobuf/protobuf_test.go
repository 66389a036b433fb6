// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package protobuf_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tabcat/zzzync/pkg/fetch/pb"
	"github.com/tabcat/zzzync/pkg/p2p/protobuf"
)

func TestReadMessages(t *testing.T) {
	r, pipe := io.Pipe()

	w := protobuf.NewWriter(pipe)

	messages := []string{"/ipns/first", "/ipns/second", "/ipfs/third"}

	go func() {
		for _, m := range messages {
			if err := w.WriteMsg(&pb.FetchRequest{
				Identifier: m,
			}); err != nil {
				_ = pipe.CloseWithError(err)
				return
			}
		}
		_ = pipe.Close()
	}()

	got, err := protobuf.ReadMessages(r, func() protobuf.Message { return new(pb.FetchRequest) })
	if err != nil {
		t.Fatal(err)
	}

	var gotMessages []string
	for _, m := range got {
		gotMessages = append(gotMessages, m.(*pb.FetchRequest).Identifier)
	}

	if diff := cmp.Diff(messages, gotMessages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestReadMsgWithContext(t *testing.T) {
	r, pipe := io.Pipe()
	defer pipe.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := protobuf.NewReader(r).ReadMsgWithContext(ctx, new(pb.FetchRequest))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got error %v, want %v", err, context.Canceled)
	}
}
