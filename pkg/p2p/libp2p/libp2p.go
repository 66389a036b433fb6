// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package libp2p implements p2p.Service on top of a go-libp2p host.
package libp2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	libp2ppeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ws "github.com/libp2p/go-libp2p/p2p/transport/websocket"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/multiformats/go-multistream"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/p2p"
)

var _ p2p.Service = (*Service)(nil)

type Service struct {
	ctx         context.Context
	cancel      context.CancelFunc
	host        host.Host
	metrics     metrics
	protocols   []p2p.ProtocolSpec
	protocolsMu sync.Mutex
	logger      logging.Logger
}

type Options struct {
	PrivateKey  crypto.PrivKey
	Addr        string
	DisableWS   bool
	DisableQUIC bool
	NATPortMap  bool
	Bootnodes   []string
	Logger      logging.Logger
}

// New creates a libp2p host listening on the host:port of o.Addr and
// connects to the bootnodes.
func New(ctx context.Context, o Options) (*Service, error) {
	if o.PrivateKey == nil {
		return nil, errors.New("libp2p: private key required")
	}

	host, port, err := net.SplitHostPort(o.Addr)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}

	ip4Addr := "0.0.0.0"
	ip6Addr := "::"

	if host != "" {
		ip := net.ParseIP(host)
		if ip4 := ip.To4(); ip4 != nil {
			ip4Addr = ip4.String()
			ip6Addr = ""
		} else if ip6 := ip.To16(); ip6 != nil {
			ip6Addr = ip6.String()
			ip4Addr = ""
		}
	}

	var listenAddrs []string
	if ip4Addr != "" {
		listenAddrs = append(listenAddrs, fmt.Sprintf("/ip4/%s/tcp/%s", ip4Addr, port))
		if !o.DisableWS {
			listenAddrs = append(listenAddrs, fmt.Sprintf("/ip4/%s/tcp/%s/ws", ip4Addr, port))
		}
		if !o.DisableQUIC {
			listenAddrs = append(listenAddrs, fmt.Sprintf("/ip4/%s/udp/%s/quic-v1", ip4Addr, port))
		}
	}

	if ip6Addr != "" {
		listenAddrs = append(listenAddrs, fmt.Sprintf("/ip6/%s/tcp/%s", ip6Addr, port))
		if !o.DisableWS {
			listenAddrs = append(listenAddrs, fmt.Sprintf("/ip6/%s/tcp/%s/ws", ip6Addr, port))
		}
		if !o.DisableQUIC {
			listenAddrs = append(listenAddrs, fmt.Sprintf("/ip6/%s/udp/%s/quic-v1", ip6Addr, port))
		}
	}

	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(listenAddrs...),
		libp2p.Identity(o.PrivateKey),
		libp2p.DefaultSecurity,
		libp2p.DefaultMuxers,
		libp2p.Transport(tcp.NewTCPTransport),
	}

	if o.NATPortMap {
		// Attempt to open ports using uPNP for NATed hosts.
		opts = append(opts, libp2p.NATPortMap())
	}

	if !o.DisableWS {
		opts = append(opts, libp2p.Transport(ws.New))
	}

	if !o.DisableQUIC {
		opts = append(opts, libp2p.Transport(libp2pquic.NewTransport))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}

	s := NewWithHost(h, o.Logger)

	for _, a := range o.Bootnodes {
		addr, err := ma.NewMultiaddr(a)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("bootnode %s: %w", a, err)
		}

		if _, err := s.Connect(ctx, addr); err != nil {
			// bootnodes are best effort
			s.logger.Warningf("connect to bootnode %s: %v", a, err)
		}
	}

	return s, nil
}

// NewWithHost wraps an existing host, for example one created by mocknet.
// Closing the service closes the host.
func NewWithHost(h host.Host, logger logging.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		ctx:     ctx,
		cancel:  cancel,
		host:    h,
		metrics: newMetrics(),
		logger:  logger,
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			if c.Stat().Direction == network.DirInbound {
				s.metrics.HandledConnectionCount.Inc()
			}
		},
	})

	return s
}

// Host returns the underlying libp2p host.
func (s *Service) Host() host.Host {
	return s.host
}

func (s *Service) ID() libp2ppeer.ID {
	return s.host.ID()
}

func (s *Service) AddProtocol(p p2p.ProtocolSpec) (err error) {
	if p.Handler == nil {
		return fmt.Errorf("protocol %s: no handler", p.ID())
	}

	s.host.SetStreamHandler(protocol.ID(p.ID()), func(stream network.Stream) {
		peerID := stream.Conn().RemotePeer()
		st := newStream(stream, s.metrics)

		s.metrics.HandledStreamCount.Inc()
		if err := p.Handler(s.ctx, p2p.Peer{ID: peerID}, st); err != nil {
			s.metrics.StreamHandlerErrResetCount.Inc()
			_ = st.Reset()

			var re *p2p.ResetError
			if errors.As(err, &re) {
				s.logger.Debugf("handle protocol %s: peer %s: stream reset: %v", p.ID(), peerID, err)
				return
			}
			s.logger.Debugf("handle protocol %s: peer %s: %v", p.ID(), peerID, err)
			return
		}
		_ = st.Close()
	})

	s.protocolsMu.Lock()
	s.protocols = append(s.protocols, p)
	s.protocolsMu.Unlock()
	return nil
}

// Protocols returns the ids of all added protocols.
func (s *Service) Protocols() (ids []string) {
	s.protocolsMu.Lock()
	defer s.protocolsMu.Unlock()

	for _, p := range s.protocols {
		ids = append(ids, p.ID())
	}
	return ids
}

func (s *Service) Addresses() (addrs []ma.Multiaddr, err error) {
	// Build host multiaddress
	hostAddr, err := ma.NewMultiaddr(fmt.Sprintf("/p2p/%s", s.host.ID()))
	if err != nil {
		return nil, err
	}

	// Now we can build a full multiaddress to reach this host
	// by encapsulating both addresses:
	for _, addr := range s.host.Addrs() {
		addrs = append(addrs, addr.Encapsulate(hostAddr))
	}
	return addrs, nil
}

// Peers returns the currently connected peers.
func (s *Service) Peers() []p2p.Peer {
	ids := s.host.Network().Peers()
	peers := make([]p2p.Peer, 0, len(ids))
	for _, id := range ids {
		peers = append(peers, p2p.Peer{ID: id})
	}
	return peers
}

func (s *Service) Connect(ctx context.Context, addr ma.Multiaddr) (libp2ppeer.ID, error) {
	// Extract the peer ID from the multiaddr.
	info, err := libp2ppeer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return "", err
	}

	if err := s.host.Connect(ctx, *info); err != nil {
		return "", err
	}

	s.metrics.CreatedConnectionCount.Inc()
	s.logger.Debugf("peer %s connected", info.ID)
	return info.ID, nil
}

func (s *Service) NewStream(ctx context.Context, peerID libp2ppeer.ID, protocolName, protocolVersion string) (p2p.Stream, error) {
	streamName := p2p.NewStreamName(protocolName, protocolVersion)
	st, err := s.host.NewStream(ctx, peerID, protocol.ID(streamName))
	if err != nil {
		var ens multistream.ErrNotSupported[protocol.ID]
		if errors.As(err, &ens) {
			return nil, fmt.Errorf("create stream %q to %q: %w", streamName, peerID, p2p.ErrProtocolNotSupported)
		}
		return nil, fmt.Errorf("create stream %q to %q: %w", streamName, peerID, err)
	}
	s.metrics.CreatedStreamCount.Inc()
	return newStream(st, s.metrics), nil
}

func (s *Service) Close() error {
	s.cancel()
	return s.host.Close()
}
