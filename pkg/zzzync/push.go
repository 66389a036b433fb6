// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zzzync

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/car"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/tracing"
	"github.com/tabcat/zzzync/pkg/wire"
	"golang.org/x/sync/errgroup"
)

// Push proves ownership of the signer name to the peer, hands over the
// marshaled record and streams the dag under the record value read from
// blocks. It returns once the peer acknowledged the push by closing its
// write side. When the peer already holds the content it acknowledges
// early and the archive is cut short.
func (s *Service) Push(ctx context.Context, p peer.ID, signer identity.Signer, rawRecord []byte, blocks blockstore.Getter) (err error) {
	s.metrics.PushCount.Inc()

	span, logger, ctx := s.tracer.StartPeerSpan(ctx, "zzzync-p2p-push", p, s.logger)
	defer func() {
		if err != nil {
			s.metrics.PushFailedCount.Inc()
		}
		tracing.FinishSpan(span, err)
	}()

	name := signer.Name()
	rec, err := record.Unmarshal(rawRecord)
	if err != nil {
		return abort(StateAwaitRecord, "record invalid", err)
	}
	if err := record.Validate(name, rec, s.now()); err != nil {
		return abort(StateAwaitRecord, "record invalid", fmt.Errorf("%w: %w", ErrRecordMalformed, err))
	}

	stream, err := s.streamer.NewStream(ctx, p, protocolName, protocolVersion)
	if err != nil {
		return fmt.Errorf("new stream: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := wire.ResetOnDone(ctx, stream)
	defer func() {
		stop()
		if err != nil {
			_ = stream.Reset()
			return
		}
		_ = stream.Close()
	}()

	if err := wire.WriteNamedKey(ctx, stream, name); err != nil {
		return abort(StateAwaitKey, "write key", err)
	}
	nonce, err := wire.ReadNonce(ctx, stream)
	if err != nil {
		// the peer resets streams of names it does not authorize
		return abort(StateChallenge, "read nonce", err)
	}

	dialerNonce, err := identity.GenerateNonce()
	if err != nil {
		return abort(StateChallenge, "nonce", err)
	}
	sig, err := identity.SignChallenge(signer, identity.BuildChallenge(p, name, nonce, dialerNonce))
	if err != nil {
		return abort(StateChallenge, "sign challenge", err)
	}
	if err := wire.WriteResponse(ctx, stream, wire.Response{Nonce: dialerNonce, Signature: sig}); err != nil {
		return abort(StateAwaitResponse, "write response", err)
	}
	if err := wire.WriteVarintPrefixed(ctx, stream, rawRecord); err != nil {
		return abort(StateAwaitRecord, "write record", err)
	}

	var (
		acked     = make(chan struct{})
		exportErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	exportCtx, stopExport := context.WithCancel(gctx)
	defer stopExport()

	g.Go(func() error {
		n, err := stream.Read(make([]byte, 1))
		if n > 0 {
			return ErrUnexpectedData
		}
		if errors.Is(err, io.EOF) {
			close(acked)
			stopExport()
			return nil
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		return wireAborted(gctx, err)
	})
	g.Go(func() error {
		err := car.Export(exportCtx, abortWriter{stream}, blocks, rec.Value())
		if err != nil && !isClosed(acked) {
			if gctx.Err() != nil {
				// the acknowledgement read failed first
				return wireAborted(gctx, err)
			}
			exportErr = err
			// unblock the acknowledgement read
			_ = stream.Reset()
			return err
		}
		if err := stream.CloseWrite(); err != nil {
			return wireAborted(gctx, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		if exportErr != nil && !errors.Is(exportErr, ErrAborted) {
			return abort(StateImport, "export", exportErr)
		}
		// the peer reset the stream instead of acknowledging
		return abort(StateAborted, "not acknowledged", err)
	}

	logger.Debugf("zzzync: pushed %s to %s", rec, p)
	return nil
}

func isClosed(c chan struct{}) bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

// abortWriter marks stream write failures as aborts, apart from errors of
// the block source.
type abortWriter struct {
	w io.Writer
}

func (w abortWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return n, nil
}
