// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node defines the concept of a zzzync daemon by bootstrapping and
// injecting all necessary dependencies.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/routing"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/tabcat/zzzync/pkg/advertiser"
	"github.com/tabcat/zzzync/pkg/allowlist"
	"github.com/tabcat/zzzync/pkg/blockstore"
	"github.com/tabcat/zzzync/pkg/debugapi"
	"github.com/tabcat/zzzync/pkg/fetch"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/namestore"
	"github.com/tabcat/zzzync/pkg/p2p/libp2p"
	"github.com/tabcat/zzzync/pkg/pinning"
	"github.com/tabcat/zzzync/pkg/ratelimit"
	"github.com/tabcat/zzzync/pkg/tracing"
	"github.com/tabcat/zzzync/pkg/zzzync"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultRepublishInterval   = time.Hour
	DefaultAllowReloadInterval = allowlist.DefaultInterval
	DefaultRateLimitInterval   = time.Second
	DefaultRateLimitBurst      = 10
)

var ErrShutdownInProgress = errors.New("shutdown in progress")

type Daemon struct {
	p2pService         *libp2p.Service
	dht                *dht.IpfsDHT
	ctxCancel          context.CancelFunc
	debugAPIServer     *http.Server
	errorLogWriter     io.WriteCloser
	tracerCloser       io.Closer
	stateStoreCloser   io.Closer
	blockStoreCloser   io.Closer
	records            *namestore.Store
	pins               *pinning.Ledger
	workers            sync.WaitGroup
	shutdownInProgress bool
	shutdownMutex      sync.Mutex
}

type Options struct {
	// DataDir holds the state and block stores. Empty keeps them in memory.
	DataDir     string
	P2PAddr     string
	Bootnodes   []string
	DisableWS   bool
	DisableQUIC bool
	NATPortMap  bool
	DHTMode     dht.ModeOpt
	// DebugAPIAddr enables the debug API when set.
	DebugAPIAddr       string
	CORSAllowedOrigins []string
	// AllowFile is the allow list of names that may push. Empty accepts
	// every name.
	AllowFile           string
	AllowReloadInterval time.Duration
	MaxArchiveSize      uint64
	// AdvertiseScope must be set, there is no default.
	AdvertiseScope     advertiser.Scope
	RepublishInterval  time.Duration
	RateLimitInterval  time.Duration
	RateLimitBurst     int
	TracingEnabled     bool
	TracingEndpoint    string
	TracingServiceName string
	Logger             logging.Logger
}

func NewDaemon(key crypto.PrivKey, o Options) (d *Daemon, err error) {
	logger := o.Logger

	tracer, tracerCloser, err := tracing.NewTracer(&tracing.Options{
		Enabled:     o.TracingEnabled,
		Endpoint:    o.TracingEndpoint,
		ServiceName: o.TracingServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}

	ctx, ctxCancel := context.WithCancel(context.Background())
	d = &Daemon{
		ctxCancel:      ctxCancel,
		errorLogWriter: logger.WriterLevel(logrus.ErrorLevel),
		tracerCloser:   tracerCloser,
	}

	defer func() {
		if err != nil {
			if e := d.Shutdown(); e != nil {
				logger.Errorf("failed shutting down daemon: %v", e)
			}
		}
	}()

	var debugAPIService *debugapi.Service
	if o.DebugAPIAddr != "" {
		// set up basic debug api endpoints for debugging and /health endpoint
		debugAPIService = debugapi.New(debugapi.Options{
			Logger:             logger,
			Tracer:             tracer,
			CORSAllowedOrigins: o.CORSAllowedOrigins,
		})

		debugAPIListener, err := net.Listen("tcp", o.DebugAPIAddr)
		if err != nil {
			return nil, fmt.Errorf("debug api listener: %w", err)
		}

		debugAPIServer := &http.Server{
			IdleTimeout:       30 * time.Second,
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           debugAPIService,
			ErrorLog:          stdlog.New(d.errorLogWriter, "", 0),
		}

		go func() {
			logger.Infof("debug api address: %s", debugAPIListener.Addr())

			if err := debugAPIServer.Serve(debugAPIListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Debugf("debug api server: %v", err)
				logger.Error("unable to serve debug api")
			}
		}()

		d.debugAPIServer = debugAPIServer
	}

	stateStore, err := InitStateStore(logger, o.DataDir, "statestore")
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	d.stateStoreCloser = stateStore

	blockStore, err := InitStateStore(logger, o.DataDir, "blockstore")
	if err != nil {
		return nil, fmt.Errorf("block store: %w", err)
	}
	d.blockStoreCloser = blockStore

	p2ps, err := libp2p.New(ctx, libp2p.Options{
		PrivateKey:  key,
		Addr:        o.P2PAddr,
		DisableWS:   o.DisableWS,
		DisableQUIC: o.DisableQUIC,
		NATPortMap:  o.NATPortMap,
		Bootnodes:   o.Bootnodes,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("p2p service: %w", err)
	}
	d.p2pService = p2ps

	kad, err := newDHT(ctx, p2ps.Host(), o.DHTMode)
	if err != nil {
		return nil, err
	}
	d.dht = kad

	adv, err := advertiser.New(kad, p2ps.ID(), advertiser.Options{
		Scope:  o.AdvertiseScope,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("advertiser: %w", err)
	}

	records, err := namestore.New(stateStore, namestore.Options{
		Routers: []routing.ValueStore{kad},
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("namestore: %w", err)
	}
	d.records = records

	pinStore := pinning.NewStore(stateStore)
	d.pins = pinning.NewLedger(pinStore)
	blocks := blockstore.New(blockStore)

	authorizer := zzzync.AllowAll
	if o.AllowFile != "" {
		list, err := allowlist.New(afero.NewOsFs(), o.AllowFile, logger)
		if err != nil {
			return nil, fmt.Errorf("allow list: %w", err)
		}
		interval := o.AllowReloadInterval
		if interval <= 0 {
			interval = DefaultAllowReloadInterval
		}
		d.workers.Add(1)
		go func() {
			defer d.workers.Done()
			list.Watch(ctx, interval)
		}()
		authorizer = list
	} else {
		logger.Warning("no allow list, accepting pushes of every name")
	}

	limiter, err := newLimiter(o)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	zzzyncService := zzzync.New(zzzync.Options{
		Streamer:       p2ps,
		Self:           p2ps.ID(),
		Authorizer:     authorizer,
		Records:        records,
		Importer:       blockstore.NewImporter(blocks),
		Pins:           d.pins,
		Advertiser:     adv,
		MaxArchiveSize: o.MaxArchiveSize,
		Logger:         logger,
		Tracer:         tracer,
	})
	spec := zzzyncService.Protocol()
	spec.Handler = ratelimit.Middleware(limiter)(spec.Handler)
	if err = p2ps.AddProtocol(spec); err != nil {
		return nil, fmt.Errorf("zzzync service: %w", err)
	}

	fetchService := fetch.New(fetch.Options{
		Streamer: p2ps,
		Logger:   logger,
		Tracer:   tracer,
	})
	fetchService.AddLookup(fetch.RecordPrefix, fetch.RecordLookup(records))
	fetchService.AddLookup(fetch.BlockPrefix, fetch.BlockLookup(blocks))
	if err = p2ps.AddProtocol(fetchService.Protocol()); err != nil {
		return nil, fmt.Errorf("fetch service: %w", err)
	}

	interval := o.RepublishInterval
	if interval <= 0 {
		interval = DefaultRepublishInterval
	}
	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		republish(ctx, records, interval, logger)
	}()

	if debugAPIService != nil {
		debugAPIService.MustRegisterMetrics(logger, p2ps, records, zzzyncService, fetchService)

		// inject dependencies and configure full debug api http path routes
		debugAPIService.Configure(p2ps, records, pinStore)
	}

	return d, nil
}

func newLimiter(o Options) (*ratelimit.Limiter, error) {
	interval := o.RateLimitInterval
	if interval <= 0 {
		interval = DefaultRateLimitInterval
	}
	burst := o.RateLimitBurst
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}
	return ratelimit.New(interval, burst, ratelimit.DefaultMaxKeys)
}

// republish propagates all local records to the routers on every interval
// until ctx is done.
func republish(ctx context.Context, records *namestore.Store, interval time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := records.RepublishAll(ctx); err != nil {
				logger.Warningf("republish records: %v", err)
			}
		}
	}
}

// Addresses returns the full p2p addresses of the daemon.
func (d *Daemon) Addresses() ([]ma.Multiaddr, error) {
	return d.p2pService.Addresses()
}

// Records returns the local record store.
func (d *Daemon) Records() *namestore.Store {
	return d.records
}

// Pins returns the pin ledger of the daemon.
func (d *Daemon) Pins() *pinning.Ledger {
	return d.pins
}

func (d *Daemon) Shutdown() error {
	var mErr error

	// if a shutdown is already in process, return here
	d.shutdownMutex.Lock()
	if d.shutdownInProgress {
		d.shutdownMutex.Unlock()
		return ErrShutdownInProgress
	}
	d.shutdownInProgress = true
	d.shutdownMutex.Unlock()

	// tryClose is a convenient closure which decrease
	// repetitive io.Closer tryClose procedure.
	tryClose := func(c io.Closer, errMsg string) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", errMsg, err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var eg errgroup.Group
	if d.debugAPIServer != nil {
		eg.Go(func() error {
			if err := d.debugAPIServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("debug api server: %w", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		mErr = multierror.Append(mErr, err)
	}

	d.ctxCancel()
	d.workers.Wait()

	if d.dht != nil {
		tryClose(d.dht, "dht")
	}
	if d.p2pService != nil {
		tryClose(d.p2pService, "p2p server")
	}
	tryClose(d.tracerCloser, "tracer")
	tryClose(d.stateStoreCloser, "statestore")
	tryClose(d.blockStoreCloser, "blockstore")
	tryClose(d.errorLogWriter, "error log writer")

	return mErr
}
