// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zzzync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ipfs/go-cid"
	"github.com/sirupsen/logrus"
	"github.com/tabcat/zzzync/pkg/car"
	"github.com/tabcat/zzzync/pkg/carstream"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/names"
	"github.com/tabcat/zzzync/pkg/p2p"
	"github.com/tabcat/zzzync/pkg/record"
	"github.com/tabcat/zzzync/pkg/tracing"
	"github.com/tabcat/zzzync/pkg/wire"
)

// handler runs the server side of a push. A returned error resets the
// stream, a nil error closes it.
func (s *Service) handler(ctx context.Context, p p2p.Peer, stream p2p.Stream) (err error) {
	s.metrics.HandledCount.Inc()

	span, logger, ctx := s.tracer.StartPeerSpan(ctx, "zzzync-p2p-handler", p.ID, s.logger)
	defer func() { tracing.FinishSpan(span, err) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := wire.ResetOnDone(ctx, stream)
	defer stop()

	if err := s.serve(ctx, logger, stream); err != nil {
		var a *AbortError
		if errors.As(err, &a) {
			s.metrics.AbortedCount.WithLabelValues(a.State.String()).Inc()
		}
		return err
	}
	return nil
}

func (s *Service) serve(ctx context.Context, logger *logrus.Entry, stream p2p.Stream) error {
	r := bufio.NewReader(stream)

	name, err := wire.ReadNamedKey(ctx, r)
	if err != nil {
		logger.Debugf("zzzync: read key: %v", err)
		return abort(StateAwaitKey, "bad key", err)
	}
	logger = logger.WithField("name", name.String())

	ok, err := s.authorizer.Authorize(ctx, name)
	if err != nil {
		logger.Errorf("zzzync: authorize: %v", err)
		return abort(StateAuthorize, "authorizer failed", err)
	}
	if !ok {
		logger.Debug("zzzync: name not allowed")
		return abort(StateAuthorize, "not allowed", ErrAuthorizationDenied)
	}

	nonce, err := identity.GenerateNonce()
	if err != nil {
		logger.Errorf("zzzync: %v", err)
		return abort(StateChallenge, "nonce", err)
	}
	if err := wire.WriteNonce(ctx, stream, nonce); err != nil {
		logger.Debugf("zzzync: write nonce: %v", err)
		return abort(StateChallenge, "write nonce", err)
	}

	resp, err := wire.ReadResponse(ctx, r)
	if err != nil {
		logger.Debugf("zzzync: read response: %v", err)
		return abort(StateAwaitResponse, "read response", err)
	}
	challenge := identity.BuildChallenge(s.self, name, nonce, resp.Nonce)
	if err := identity.VerifyChallenge(name, challenge, resp.Signature[:]); err != nil {
		logger.Debugf("zzzync: %v", err)
		return abort(StateAwaitResponse, "challenge invalid", err)
	}

	raw, err := wire.ReadVarintPrefixed(ctx, r, record.MaxSize)
	if err != nil {
		if errors.Is(err, wire.ErrFrameTooLarge) {
			err = fmt.Errorf("%w: %w", record.ErrRecordTooLarge, err)
		}
		logger.Debugf("zzzync: read record: %v", err)
		return abort(StateAwaitRecord, "record invalid", err)
	}
	remote, err := record.Unmarshal(raw)
	if err == nil {
		if verr := record.Validate(name, remote, s.now()); verr != nil {
			err = fmt.Errorf("%w: %w", ErrRecordMalformed, verr)
		}
	}
	if err != nil {
		logger.Debugf("zzzync: record: %v", err)
		return abort(StateAwaitRecord, "record invalid", err)
	}

	local, err := s.records.Resolve(ctx, name)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		local = nil
	case err != nil:
		logger.Errorf("zzzync: resolve: %v", err)
		return abort(StateReconcile, "resolve", err)
	}
	outcome, err := record.Reconcile(local, remote)
	if err != nil {
		logger.Debugf("zzzync: reconcile %s with %s: %v", remote, local, err)
		return abort(StateReconcile, "record stale", err)
	}
	s.metrics.OutcomeCount.WithLabelValues(outcome.String()).Inc()
	logger.Tracef("zzzync: reconcile %s: %s", remote, outcome)

	if outcome == record.OutcomeAccept {
		it, err := carstream.New(ctx, r, remote.Value(), carstream.Options{MaxSize: s.maxArchiveSize})
		if err != nil {
			logger.Debugf("zzzync: archive: %v", err)
			return abort(StateImport, "import failed", fmt.Errorf("%w: %w", ErrImportFailed, err))
		}
		n, err := s.importer.Import(ctx, it)
		if err != nil {
			logger.Debugf("zzzync: import after %d blocks: %v", n, err)
			return abort(StateImport, "import failed", fmt.Errorf("%w: %w", ErrImportFailed, err))
		}
		s.metrics.ImportedBlocks.Add(float64(n))
		s.metrics.ImportedBytes.Add(float64(it.Size()))
		logger.Tracef("zzzync: imported %d blocks under %s, %d referenced blocks not sent", n, remote.Value(), it.Pending())
	}

	if outcome != record.OutcomeEqual {
		if err := s.pins.Pin(ctx, name, remote.Value()); err != nil {
			logger.Errorf("zzzync: pin %s: %v", remote.Value(), err)
			return abort(StatePin, "pin", err)
		}
		if err := s.records.Publish(ctx, name, remote); err != nil {
			if errors.Is(err, record.ErrRecordStale) {
				// a concurrent push stored a better record
				logger.Debugf("zzzync: publish: %v", err)
				s.releasePin(ctx, logger, name, remote.Value())
				return abort(StateRepublish, "record stale", err)
			}
			logger.Errorf("zzzync: publish: %v", err)
			return abort(StateRepublish, "publish", err)
		}
	}

	// the local state is persisted, acknowledge by closing the write side
	if err := stream.CloseWrite(); err != nil {
		logger.Debugf("zzzync: close write: %v", err)
		return abort(StateRepublish, "acknowledge", fmt.Errorf("%w: %w", ErrAborted, err))
	}

	if outcome != record.OutcomeAccept {
		// the dialer stops at the next block once it sees the close
		if err := s.drain(ctx, r); err != nil {
			logger.Debugf("zzzync: drain: %v", err)
			return abort(StateClosed, "drain", err)
		}
	}

	if err := s.records.Republish(ctx, name, remote); err != nil {
		s.metrics.RepublishFailures.Inc()
		logger.Warningf("zzzync: republish %s: %v", remote, err)
	}
	if s.advertiser != nil {
		if err := s.advertiser.Advertise(ctx, name.Cid(), s.self); err != nil {
			s.metrics.AdvertiseFailures.Inc()
			logger.Warningf("zzzync: advertise %s: %v", name, err)
		}
	}

	if outcome == record.OutcomeAccept && local != nil && !local.Value().Equals(remote.Value()) {
		if err := s.pins.Unpin(ctx, name, local.Value()); err != nil {
			if !errors.Is(err, ErrNotPinned) {
				logger.Errorf("zzzync: unpin %s: %v", local.Value(), err)
				return abort(StateUnpin, "unpin", err)
			}
			logger.Debugf("zzzync: unpin %s: %v", local.Value(), err)
		}
	}

	logger.Debugf("zzzync: pushed %s", remote)
	return nil
}

// releasePin drops the pin of the name on root unless the stored record of
// the name still points to it.
func (s *Service) releasePin(ctx context.Context, logger *logrus.Entry, name names.Name, root cid.Cid) {
	current, err := s.records.Resolve(ctx, name)
	switch {
	case errors.Is(err, ErrRecordNotFound):
	case err != nil:
		logger.Errorf("zzzync: resolve: %v", err)
		return
	case current.Value().Equals(root):
		return
	}
	if err := s.pins.Unpin(ctx, name, root); err != nil && !errors.Is(err, ErrNotPinned) {
		logger.Errorf("zzzync: unpin %s: %v", root, err)
	}
}

// drain discards the rest of an archive that is not imported. Archives
// above the size limit are cut off.
func (s *Service) drain(ctx context.Context, r io.Reader) error {
	if s.maxArchiveSize > 0 {
		limit := int64(s.maxArchiveSize) + car.MaxHeaderSize + car.MaxSectionSize
		r = io.LimitReader(r, limit+1)
		n, err := io.Copy(io.Discard, r)
		if err != nil {
			return wireAborted(ctx, err)
		}
		if n > limit {
			return ErrMaxSizeExceeded
		}
		return nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return wireAborted(ctx, err)
	}
	return nil
}

func wireAborted(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", ErrAborted, cerr)
	}
	return fmt.Errorf("%w: %w", ErrAborted, err)
}
