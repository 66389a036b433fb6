// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package protobuf reads and writes varint delimited protobuf messages
// over p2p streams.
package protobuf

import (
	"context"
	"errors"
	"io"

	ggio "github.com/gogo/protobuf/io"
	"github.com/gogo/protobuf/proto"
	"github.com/tabcat/zzzync/pkg/p2p"
)

// DefaultMaxSize bounds messages read by NewReader. Fetch responses carry
// full blocks and use NewReaderSize.
const DefaultMaxSize = 128 << 10

type Message = proto.Message

// Reader reads delimited messages.
type Reader struct {
	ggio.Reader
}

// Writer writes delimited messages.
type Writer struct {
	ggio.Writer
}

func NewWriterAndReader(s p2p.Stream) (Writer, Reader) {
	return NewWriter(s), NewReader(s)
}

func NewReader(r io.Reader) Reader {
	return NewReaderSize(r, DefaultMaxSize)
}

// NewReaderSize returns a reader that rejects messages larger than maxSize.
func NewReaderSize(r io.Reader, maxSize int) Reader {
	return Reader{Reader: ggio.NewDelimitedReader(r, maxSize)}
}

func NewWriter(w io.Writer) Writer {
	return Writer{Writer: ggio.NewDelimitedWriter(w)}
}

// ReadMessages reads messages until io.EOF.
func ReadMessages(r io.Reader, newMessage func() Message) (m []Message, err error) {
	pr := NewReader(r)
	for {
		msg := newMessage()
		err := pr.ReadMsg(msg)
		if errors.Is(err, io.EOF) {
			return m, nil
		}
		if err != nil {
			return nil, err
		}
		m = append(m, msg)
	}
}

// ReadMsgWithContext reads a message or returns the context error. The
// blocked read is left to the caller to unblock, usually by resetting the
// stream.
func (r Reader) ReadMsgWithContext(ctx context.Context, msg Message) error {
	return withContext(ctx, func() error { return r.ReadMsg(msg) })
}

// WriteMsgWithContext is the writing counterpart of ReadMsgWithContext.
func (w Writer) WriteMsgWithContext(ctx context.Context, msg Message) error {
	return withContext(ctx, func() error { return w.WriteMsg(msg) })
}

func withContext(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	errc := make(chan error, 1)
	go func() { errc <- f() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
