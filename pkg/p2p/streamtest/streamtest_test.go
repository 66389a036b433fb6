// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package streamtest_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/tabcat/zzzync/pkg/p2p"
	"github.com/tabcat/zzzync/pkg/p2p/streamtest"
)

const (
	testProtocolName    = "testing"
	testProtocolVersion = "1.0.1"
)

var testPeer = peer.ID("test-peer")

func TestRecorder(t *testing.T) {
	var answers = map[string]string{
		"What is your name?":           "Sir Lancelot of Camelot",
		"What is your quest?":          "To seek the Holy Grail.",
		"What is your favorite color?": "Blue.",
	}

	recorder := streamtest.New(
		streamtest.WithProtocols(
			newTestProtocol(func(_ context.Context, peer p2p.Peer, stream p2p.Stream) error {
				rw := bufio.NewReadWriter(bufio.NewReader(stream), bufio.NewWriter(stream))
				for {
					q, err := rw.ReadString('\n')
					if err != nil {
						if err == io.EOF {
							break
						}
						return fmt.Errorf("read: %w", err)
					}
					q = strings.TrimRight(q, "\n")
					if _, err = rw.WriteString(answers[q] + "\n"); err != nil {
						return fmt.Errorf("write: %w", err)
					}
					if err := rw.Flush(); err != nil {
						return fmt.Errorf("flush: %w", err)
					}
				}
				return nil
			}),
		),
	)

	ask := func(ctx context.Context, s p2p.Streamer, questions ...string) (answers []string, err error) {
		stream, err := s.NewStream(ctx, testPeer, testProtocolName, testProtocolVersion)
		if err != nil {
			return nil, fmt.Errorf("new stream: %w", err)
		}
		defer stream.Close()

		rw := bufio.NewReadWriter(bufio.NewReader(stream), bufio.NewWriter(stream))

		for _, q := range questions {
			if _, err := rw.WriteString(q + "\n"); err != nil {
				return nil, fmt.Errorf("write: %w", err)
			}
			if err := rw.Flush(); err != nil {
				return nil, fmt.Errorf("flush: %w", err)
			}

			a, err := rw.ReadString('\n')
			if err != nil {
				return nil, fmt.Errorf("read: %w", err)
			}
			answers = append(answers, strings.TrimRight(a, "\n"))
		}
		return answers, stream.FullClose()
	}

	questions := []string{"What is your name?", "What is your quest?", "What is your favorite color?"}

	aa, err := ask(context.Background(), recorder, questions...)
	if err != nil {
		t.Fatal(err)
	}

	for i, q := range questions {
		if aa[i] != answers[q] {
			t.Errorf("got answer %q for question %q, want %q", aa[i], q, answers[q])
		}
	}

	_, err = recorder.Records(testPeer, testProtocolName, "0.0.0")
	if !errors.Is(err, streamtest.ErrRecordsNotFound) {
		t.Errorf("got error %v, want %v", err, streamtest.ErrRecordsNotFound)
	}

	records, err := recorder.Records(testPeer, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}

	if l := len(records); l != 1 {
		t.Fatalf("got %v records, want 1", l)
	}

	record := records[0]

	if err := record.Err(); err != nil {
		t.Fatalf("got error from record %v, want nil", err)
	}

	wantIn := "What is your name?\nWhat is your quest?\nWhat is your favorite color?\n"
	if got := string(record.In()); got != wantIn {
		t.Errorf("got stream in %q, want %q", got, wantIn)
	}

	wantOut := "Sir Lancelot of Camelot\nTo seek the Holy Grail.\nBlue.\n"
	if got := string(record.Out()); got != wantOut {
		t.Errorf("got stream out %q, want %q", got, wantOut)
	}
}

func TestRecorder_closeWrite(t *testing.T) {
	recorder := streamtest.New(
		streamtest.WithProtocols(
			newTestProtocol(func(_ context.Context, _ p2p.Peer, stream p2p.Stream) error {
				if _, err := stream.Write([]byte("ack")); err != nil {
					return err
				}
				if err := stream.CloseWrite(); err != nil {
					return err
				}
				// the initiator may still write after our half-close
				b, err := io.ReadAll(stream)
				if err != nil {
					return err
				}
				if string(b) != "late" {
					return fmt.Errorf("got %q", b)
				}
				return nil
			}),
		),
	)

	stream, err := recorder.NewStream(context.Background(), testPeer, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}

	b, err := io.ReadAll(stream)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "ack" {
		t.Fatalf("got %q, want %q", b, "ack")
	}

	if _, err := stream.Write([]byte("late")); err != nil {
		t.Fatal(err)
	}
	if err := stream.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Write([]byte("closed")); !errors.Is(err, streamtest.ErrStreamClosed) {
		t.Fatalf("got error %v, want %v", err, streamtest.ErrStreamClosed)
	}

	records, err := recorder.Records(testPeer, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}
	if err := records[0].Err(); err != nil {
		t.Fatal(err)
	}
}

func TestRecorder_reset(t *testing.T) {
	handlerErr := errors.New("handler error")

	recorder := streamtest.New(
		streamtest.WithProtocols(
			newTestProtocol(func(_ context.Context, _ p2p.Peer, stream p2p.Stream) error {
				if _, err := stream.Read(make([]byte, 1)); err != nil {
					return err
				}
				return handlerErr
			}),
		),
	)

	stream, err := recorder.NewStream(context.Background(), testPeer, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := stream.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}

	// a failing handler resets the stream, which is not an end of stream
	if _, err := io.ReadAll(stream); !errors.Is(err, streamtest.ErrStreamReset) {
		t.Fatalf("got error %v, want %v", err, streamtest.ErrStreamReset)
	}

	records, err := recorder.Records(testPeer, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}
	if err := records[0].Err(); !errors.Is(err, handlerErr) {
		t.Fatalf("got error %v, want %v", err, handlerErr)
	}
}

func TestRecorder_localReset(t *testing.T) {
	started := make(chan struct{})
	recorder := streamtest.New(
		streamtest.WithProtocols(
			newTestProtocol(func(_ context.Context, _ p2p.Peer, stream p2p.Stream) error {
				close(started)
				_, err := io.ReadAll(stream)
				return err
			}),
		),
	)

	stream, err := recorder.NewStream(context.Background(), testPeer, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}
	<-started

	errC := make(chan error, 1)
	go func() {
		_, err := stream.Read(make([]byte, 1))
		errC <- err
	}()

	if err := stream.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := <-errC; !errors.Is(err, streamtest.ErrStreamReset) && !errors.Is(err, streamtest.ErrStreamClosed) {
		t.Fatalf("got error %v, want reset", err)
	}

	records, err := recorder.Records(testPeer, testProtocolName, testProtocolVersion)
	if err != nil {
		t.Fatal(err)
	}
	if err := records[0].Err(); !errors.Is(err, streamtest.ErrStreamReset) {
		t.Fatalf("got handler error %v, want %v", err, streamtest.ErrStreamReset)
	}
}

func TestRecorder_streamError(t *testing.T) {
	streamErr := errors.New("dial error")
	recorder := streamtest.New(
		streamtest.WithStreamError(func(peer.ID, string, string) error {
			return streamErr
		}),
	)

	_, err := recorder.NewStream(context.Background(), testPeer, testProtocolName, testProtocolVersion)
	if !errors.Is(err, streamErr) {
		t.Fatalf("got error %v, want %v", err, streamErr)
	}

	recorder = streamtest.New()
	_, err = recorder.NewStream(context.Background(), testPeer, testProtocolName, testProtocolVersion)
	if !errors.Is(err, streamtest.ErrStreamNotSupported) {
		t.Fatalf("got error %v, want %v", err, streamtest.ErrStreamNotSupported)
	}
}

func newTestProtocol(h p2p.HandlerFunc) p2p.ProtocolSpec {
	return p2p.ProtocolSpec{
		Name:    testProtocolName,
		Version: testProtocolVersion,
		Handler: h,
	}
}
