// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ratelimit provides a mechanism to rate limit requests based on a string key,
// refill rate and burst amount. Under the hood, it's a token bucket of size burst amount,
// that refills at the refill rate. The number of tracked keys is bounded, the least
// recently used bucket is dropped first.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/tabcat/zzzync/pkg/p2p"
	"golang.org/x/time/rate"
)

// DefaultMaxKeys bounds the number of tracked keys.
const DefaultMaxKeys = 4096

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

type Limiter struct {
	mux     sync.Mutex
	limiter *lru.Cache
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

// New returns a new Limiter object with refresh rate and burst amount
func New(r time.Duration, b, maxKeys int) (*Limiter, error) {
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	cache, err := lru.New(maxKeys)
	if err != nil {
		return nil, err
	}
	return &Limiter{
		limiter: cache,
		rate:    rate.Every(r),
		burst:   b,
		now:     time.Now,
	}, nil
}

// Allow checks if the limiter that belongs to 'key' has not exceeded the limit.
func (l *Limiter) Allow(key string, count int) error {
	l.mux.Lock()
	defer l.mux.Unlock()

	var limiter *rate.Limiter
	if v, ok := l.limiter.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiter.Add(key, limiter)
	}

	if !limiter.AllowN(l.now(), count) {
		return ErrRateLimitExceeded
	}
	return nil
}

// Clear deletes the limiter that belongs to 'key'
func (l *Limiter) Clear(key string) {
	l.mux.Lock()
	defer l.mux.Unlock()

	l.limiter.Remove(key)
}

// Middleware rejects streams of peers that opened more streams than the
// limiter allows.
func Middleware(l *Limiter) p2p.HandlerMiddleware {
	return func(h p2p.HandlerFunc) p2p.HandlerFunc {
		return func(ctx context.Context, p p2p.Peer, s p2p.Stream) error {
			if err := l.Allow(p.ID.String(), 1); err != nil {
				return fmt.Errorf("peer %s: %w", p.ID, err)
			}
			return h(ctx, p, s)
		}
	}
}
