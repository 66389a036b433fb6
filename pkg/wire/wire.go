// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the binary framing of the zzzync protocol:
// unsigned varints, varint prefixed frames, named keys and the fixed size
// challenge frames.
//
// Every read and write takes a context. Any failure of the underlying
// stream, including a clean end of stream in the middle of a frame and a
// cancelled context, is reported as ErrAborted wrapping the cause.
package wire

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-multihash"
	"github.com/multiformats/go-varint"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/names"
)

const (
	// MaxVarintLen is the maximum number of bytes of an encoded varint.
	MaxVarintLen = binary.MaxVarintLen64
	// MaxKeyDigestSize bounds the digest of a named key. Protobuf encoded
	// Ed25519 and Secp256k1 public keys are 36 and 37 bytes long.
	MaxKeyDigestSize = 128
	// ResponseSize is the size of the challenge response frame.
	ResponseSize = identity.NonceSize + identity.SignatureSize
)

var (
	ErrAborted            = errors.New("aborted")
	ErrVarintOverflow     = errors.New("varint overflow")
	ErrFrameTooLarge      = errors.New("frame too large")
	ErrUnsupportedKeyType = names.ErrUnsupportedKeyType
)

// Response is the challenge response of the dialer.
type Response struct {
	Nonce     identity.Nonce
	Signature [identity.SignatureSize]byte
}

// ResetOnDone resets the stream when the context is done, which unblocks
// pending reads and writes. The returned function stops the watch.
func ResetOnDone(ctx context.Context, s interface{ Reset() error }) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		_ = s.Reset()
	})
}

func aborted(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", ErrAborted, cerr)
	}
	return fmt.Errorf("%w: %w", ErrAborted, err)
}

func readFull(ctx context.Context, r io.Reader, p []byte) error {
	if err := ctx.Err(); err != nil {
		return aborted(ctx, err)
	}
	if _, err := io.ReadFull(r, p); err != nil {
		return aborted(ctx, err)
	}
	return nil
}

func write(ctx context.Context, w io.Writer, p []byte) error {
	if err := ctx.Err(); err != nil {
		return aborted(ctx, err)
	}
	if _, err := w.Write(p); err != nil {
		return aborted(ctx, err)
	}
	return nil
}

// WriteVarint writes v as an unsigned LEB128 varint.
func WriteVarint(ctx context.Context, w io.Writer, v uint64) error {
	return write(ctx, w, varint.ToUvarint(v))
}

// ReadVarint reads an unsigned LEB128 varint one byte at a time so that
// no byte past the varint is consumed.
func ReadVarint(ctx context.Context, r io.Reader) (uint64, error) {
	var buf [MaxVarintLen]byte
	for i := 0; i < MaxVarintLen; i++ {
		if err := readFull(ctx, r, buf[i:i+1]); err != nil {
			return 0, err
		}
		if buf[i] < 0x80 {
			v, n := binary.Uvarint(buf[:i+1])
			if n <= 0 {
				return 0, ErrVarintOverflow
			}
			return v, nil
		}
	}
	return 0, ErrVarintOverflow
}

// WriteVarintPrefixed writes the length of b followed by b.
func WriteVarintPrefixed(ctx context.Context, w io.Writer, b []byte) error {
	frame := append(varint.ToUvarint(uint64(len(b))), b...)
	return write(ctx, w, frame)
}

// ReadVarintPrefixed reads a frame written by WriteVarintPrefixed. Frames
// longer than max are rejected before their body is read.
func ReadVarintPrefixed(ctx context.Context, r io.Reader, max uint64) ([]byte, error) {
	n, err := ReadVarint(ctx, r)
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, max)
	}
	b := make([]byte, n)
	if err := readFull(ctx, r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteNamedKey writes the hash code of the name followed by its varint
// prefixed digest.
func WriteNamedKey(ctx context.Context, w io.Writer, n names.Name) error {
	if n.IsZero() {
		return names.ErrInvalidName
	}
	frame := append(varint.ToUvarint(multihash.IDENTITY), varint.ToUvarint(uint64(len(n.Digest())))...)
	return write(ctx, w, append(frame, n.Digest()...))
}

// ReadNamedKey reads a named key. Only identity multihashes are
// supported, any other hash code is ErrUnsupportedKeyType.
func ReadNamedKey(ctx context.Context, r io.Reader) (names.Name, error) {
	code, err := ReadVarint(ctx, r)
	if err != nil {
		return names.Name{}, err
	}
	if code != multihash.IDENTITY {
		return names.Name{}, fmt.Errorf("%w: hash code %#x", ErrUnsupportedKeyType, code)
	}
	digest, err := ReadVarintPrefixed(ctx, r, MaxKeyDigestSize)
	if err != nil {
		return names.Name{}, err
	}
	mh, err := multihash.Encode(digest, multihash.IDENTITY)
	if err != nil {
		return names.Name{}, err
	}
	return names.FromMultihash(mh)
}

func WriteNonce(ctx context.Context, w io.Writer, nonce identity.Nonce) error {
	return write(ctx, w, nonce[:])
}

func ReadNonce(ctx context.Context, r io.Reader) (nonce identity.Nonce, err error) {
	err = readFull(ctx, r, nonce[:])
	return nonce, err
}

// WriteResponse writes the nonce and the signature as one frame.
func WriteResponse(ctx context.Context, w io.Writer, resp Response) error {
	var frame [ResponseSize]byte
	copy(frame[:], resp.Nonce[:])
	copy(frame[identity.NonceSize:], resp.Signature[:])
	return write(ctx, w, frame[:])
}

// ReadResponse reads the fixed size response frame as one block.
func ReadResponse(ctx context.Context, r io.Reader) (resp Response, err error) {
	var frame [ResponseSize]byte
	if err := readFull(ctx, r, frame[:]); err != nil {
		return resp, err
	}
	copy(resp.Nonce[:], frame[:identity.NonceSize])
	copy(resp.Signature[:], frame[identity.NonceSize:])
	return resp, nil
}
