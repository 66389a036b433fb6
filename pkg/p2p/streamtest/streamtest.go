// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package streamtest provides an in-memory p2p.Streamer that runs protocol
// handlers against the streams it creates and records the exchanged bytes.
package streamtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/tabcat/zzzync/pkg/p2p"
)

var (
	ErrRecordsNotFound    = errors.New("records not found")
	ErrStreamNotSupported = errors.New("stream not supported")
	ErrStreamClosed       = errors.New("stream closed")
	ErrStreamReset        = errors.New("stream reset")

	noopMiddleware = func(f p2p.HandlerFunc) p2p.HandlerFunc {
		return f
	}
)

var _ p2p.Streamer = (*Recorder)(nil)

type Recorder struct {
	base        peer.ID
	records     map[string][]*Record
	recordsMu   sync.Mutex
	protocols   []p2p.ProtocolSpec
	middlewares []p2p.HandlerMiddleware
	streamErr   func(peer.ID, string, string) error
}

func WithProtocols(protocols ...p2p.ProtocolSpec) Option {
	return optionFunc(func(r *Recorder) {
		r.protocols = append(r.protocols, protocols...)
	})
}

func WithMiddlewares(middlewares ...p2p.HandlerMiddleware) Option {
	return optionFunc(func(r *Recorder) {
		r.middlewares = append(r.middlewares, middlewares...)
	})
}

// WithBaseAddr sets the peer id that handlers see as the stream initiator.
func WithBaseAddr(id peer.ID) Option {
	return optionFunc(func(r *Recorder) {
		r.base = id
	})
}

func WithStreamError(streamErr func(peer.ID, string, string) error) Option {
	return optionFunc(func(r *Recorder) {
		r.streamErr = streamErr
	})
}

func New(opts ...Option) *Recorder {
	r := &Recorder{
		records: make(map[string][]*Record),
	}

	r.middlewares = append(r.middlewares, noopMiddleware)

	for _, o := range opts {
		o.apply(r)
	}
	return r
}

func (r *Recorder) SetProtocols(protocols ...p2p.ProtocolSpec) {
	r.protocols = append(r.protocols, protocols...)
}

func (r *Recorder) NewStream(_ context.Context, addr peer.ID, protocolName, protocolVersion string) (p2p.Stream, error) {
	if r.streamErr != nil {
		err := r.streamErr(addr, protocolName, protocolVersion)
		if err != nil {
			return nil, err
		}
	}

	recordIn := newRecord()
	recordOut := newRecord()
	streamOut := newStream(recordIn, recordOut)
	streamIn := newStream(recordOut, recordIn)

	var handler p2p.HandlerFunc
	for _, p := range r.protocols {
		if p.Name == protocolName && p.Version == protocolVersion {
			handler = p.Handler
		}
	}
	if handler == nil {
		return nil, ErrStreamNotSupported
	}
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	record := &Record{in: recordIn, out: recordOut, done: make(chan struct{})}
	go func() {
		defer close(record.done)

		// pass a new context to handler,
		// do not cancel it with the client stream context
		err := handler(context.Background(), p2p.Peer{ID: r.base}, streamIn)
		if err != nil && !errors.Is(err, io.EOF) {
			record.setErr(err)
			_ = streamIn.Reset()
			return
		}
		_ = streamIn.Close()
	}()

	id := addr.String() + p2p.NewStreamName(protocolName, protocolVersion)

	r.recordsMu.Lock()
	defer r.recordsMu.Unlock()

	r.records[id] = append(r.records[id], record)
	return streamOut, nil
}

// Records returns all records of streams opened to the peer for the protocol.
// It waits for the handlers of those streams to return.
func (r *Recorder) Records(addr peer.ID, protocolName, protocolVersion string) ([]*Record, error) {
	id := addr.String() + p2p.NewStreamName(protocolName, protocolVersion)

	r.recordsMu.Lock()
	records, ok := r.records[id]
	r.recordsMu.Unlock()

	if !ok {
		return nil, ErrRecordsNotFound
	}
	// wait for all records goroutines to terminate
	for _, r := range records {
		<-r.done
	}
	return records, nil
}

type Record struct {
	in    *record
	out   *record
	err   error
	errMu sync.Mutex
	done  chan struct{}
}

// In returns the bytes written by the stream initiator.
func (r *Record) In() []byte {
	return r.in.bytes()
}

// Out returns the bytes written by the handler.
func (r *Record) Out() []byte {
	return r.out.bytes()
}

// Err returns the error the handler returned.
func (r *Record) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()

	return r.err
}

func (r *Record) setErr(err error) {
	r.errMu.Lock()
	defer r.errMu.Unlock()

	r.err = err
}

var _ p2p.Stream = (*stream)(nil)

type stream struct {
	in          *record
	out         *record
	readClosed  bool
	writeClosed bool
	lock        sync.Mutex
}

func newStream(in, out *record) *stream {
	return &stream{in: in, out: out}
}

func (s *stream) Read(p []byte) (int, error) {
	s.lock.Lock()
	closed := s.readClosed
	s.lock.Unlock()
	if closed {
		return 0, ErrStreamClosed
	}

	return s.out.Read(p)
}

func (s *stream) Write(p []byte) (int, error) {
	s.lock.Lock()
	closed := s.writeClosed
	s.lock.Unlock()
	if closed {
		return 0, ErrStreamClosed
	}

	return s.in.Write(p)
}

func (s *stream) CloseWrite() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.writeClosed {
		return ErrStreamClosed
	}

	s.writeClosed = true
	s.in.close()

	return nil
}

func (s *stream) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.readClosed = true
	if !s.writeClosed {
		s.writeClosed = true
		s.in.close()
	}

	return nil
}

func (s *stream) FullClose() error {
	if err := s.CloseWrite(); err != nil {
		return err
	}

	// We have to observe the EOF of the other side.
	n, err := s.out.Read(make([]byte, 1))
	_ = s.Close()
	if n > 0 || err == nil {
		return errors.New("read: expected eof")
	}
	if !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *stream) Reset() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.readClosed = true
	s.writeClosed = true
	s.in.reset()
	s.out.reset()

	return nil
}

// record is one direction of a stream. Writes never block.
type record struct {
	b       []byte
	c       int
	lock    sync.Mutex
	cond    *sync.Cond
	closed  bool
	aborted bool
}

func newRecord() *record {
	r := new(record)
	r.cond = sync.NewCond(&r.lock)
	return r
}

func (r *record) Read(p []byte) (n int, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for r.c == len(r.b) && !r.closed && !r.aborted {
		r.cond.Wait()
	}
	if r.aborted {
		return 0, ErrStreamReset
	}
	if r.c == len(r.b) {
		return 0, io.EOF
	}

	n = copy(p, r.b[r.c:])
	r.c += n

	return n, nil
}

func (r *record) Write(p []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.aborted {
		return 0, ErrStreamReset
	}
	if r.closed {
		return 0, ErrStreamClosed
	}

	r.b = append(r.b, p...)
	r.cond.Broadcast()

	return len(p), nil
}

func (r *record) close() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.closed = true
	r.cond.Broadcast()
}

func (r *record) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.aborted = true
	r.cond.Broadcast()
}

func (r *record) bytes() []byte {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]byte(nil), r.b...)
}

type Option interface {
	apply(*Recorder)
}
type optionFunc func(*Recorder)

func (f optionFunc) apply(r *Recorder) { f(r) }
