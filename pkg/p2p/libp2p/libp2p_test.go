// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package libp2p_test

import (
	"context"
	"errors"
	"io"
	"testing"

	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/sirupsen/logrus"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/p2p"
	"github.com/tabcat/zzzync/pkg/p2p/libp2p"
)

const (
	testProtocolName    = "testing"
	testProtocolVersion = "1.0.0"
)

func newServices(t *testing.T) (s1, s2 *libp2p.Service) {
	t.Helper()

	mn := mocknet.New()
	t.Cleanup(func() { _ = mn.Close() })

	logger := logging.New(io.Discard, logrus.ErrorLevel)

	h1, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	h2, err := mn.GenPeer()
	if err != nil {
		t.Fatal(err)
	}
	if err := mn.LinkAll(); err != nil {
		t.Fatal(err)
	}

	s1 = libp2p.NewWithHost(h1, logger)
	s2 = libp2p.NewWithHost(h2, logger)
	return s1, s2
}

func TestStream(t *testing.T) {
	s1, s2 := newServices(t)

	if err := s2.AddProtocol(p2p.ProtocolSpec{
		Name:    testProtocolName,
		Version: testProtocolVersion,
		Handler: func(_ context.Context, p p2p.Peer, stream p2p.Stream) error {
			if p.ID != s1.ID() {
				return errors.New("unexpected peer")
			}
			b, err := io.ReadAll(stream)
			if err != nil {
				return err
			}
			if _, err := stream.Write(append(b, '!')); err != nil {
				return err
			}
			return stream.CloseWrite()
		},
	}); err != nil {
		t.Fatal(err)
	}

	addrs, err := s2.Addresses()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	id, err := s1.Connect(ctx, addrs[0])
	if err != nil {
		t.Fatal(err)
	}
	if id != s2.ID() {
		t.Fatalf("got peer %s, want %s", id, s2.ID())
	}
	if peers := s1.Peers(); len(peers) != 1 || peers[0].ID != s2.ID() {
		t.Fatalf("got peers %v, want %s", peers, s2.ID())
	}

	stream, err := s1.NewStream(ctx, id, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	if _, err := stream.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := stream.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(stream)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello!" {
		t.Fatalf("got %q, want %q", got, "hello!")
	}

	if got := s2.Protocols(); len(got) != 1 || got[0] != "/testing/1.0.0" {
		t.Fatalf("got protocols %v", got)
	}
}

func TestStream_handlerErrorResets(t *testing.T) {
	s1, s2 := newServices(t)

	if err := s2.AddProtocol(p2p.ProtocolSpec{
		Name:    testProtocolName,
		Version: testProtocolVersion,
		Handler: func(_ context.Context, _ p2p.Peer, stream p2p.Stream) error {
			if _, err := stream.Read(make([]byte, 1)); err != nil {
				return err
			}
			return p2p.Reset(errors.New("rejected"))
		},
	}); err != nil {
		t.Fatal(err)
	}

	stream, err := s1.NewStream(context.Background(), s2.ID(), testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	if _, err := stream.Write([]byte{1}); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(stream); err == nil {
		t.Fatal("expected reset error, got eof")
	}
}

func TestNewStream_notSupported(t *testing.T) {
	s1, s2 := newServices(t)

	_, err := s1.NewStream(context.Background(), s2.ID(), "unknown", "0.0.0")
	if !errors.Is(err, p2p.ErrProtocolNotSupported) {
		t.Fatalf("got error %v, want %v", err, p2p.ErrProtocolNotSupported)
	}
}
