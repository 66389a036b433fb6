// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tabcat/zzzync/pkg/advertiser"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/keystore"
	filekeystore "github.com/tabcat/zzzync/pkg/keystore/file"
	memkeystore "github.com/tabcat/zzzync/pkg/keystore/mem"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/node"
)

const daemonKeyName = "daemon"

func (c *command) initDaemonCmd() (err error) {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run a pinning daemon that accepts pushes",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			logger, err := newLogger(cmd, c.config.GetString(optionNameVerbosity))
			if err != nil {
				return fmt.Errorf("new logger: %w", err)
			}

			scope, err := advertiser.ParseScope(c.config.GetString(optionNameAdvertiseScope))
			if err != nil {
				return fmt.Errorf("%s: %w", optionNameAdvertiseScope, err)
			}
			mode, err := node.ParseDHTMode(c.config.GetString(optionNameDHTMode))
			if err != nil {
				return fmt.Errorf("%s: %w", optionNameDHTMode, err)
			}

			key, err := c.daemonKey(cmd, logger)
			if err != nil {
				return err
			}

			d, err := node.NewDaemon(key, node.Options{
				DataDir:             c.config.GetString(optionNameDataDir),
				P2PAddr:             c.config.GetString(optionNameP2PAddr),
				Bootnodes:           c.config.GetStringSlice(optionNameBootnodes),
				DisableWS:           !c.config.GetBool(optionNameP2PWSEnable),
				DisableQUIC:         !c.config.GetBool(optionNameP2PQUICEnable),
				NATPortMap:          c.config.GetBool(optionNameNATPortMap),
				DHTMode:             mode,
				DebugAPIAddr:        c.config.GetString(optionNameDebugAPIAddr),
				CORSAllowedOrigins:  c.config.GetStringSlice(optionCORSAllowedOrigins),
				AllowFile:           c.config.GetString(optionNameAllowFile),
				AllowReloadInterval: c.config.GetDuration(optionNameAllowReloadInterval),
				MaxArchiveSize:      c.config.GetUint64(optionNameMaxArchiveSize),
				AdvertiseScope:      scope,
				RepublishInterval:   c.config.GetDuration(optionNameRepublishInterval),
				RateLimitInterval:   c.config.GetDuration(optionNameRateLimitInterval),
				RateLimitBurst:      c.config.GetInt(optionNameRateLimitBurst),
				TracingEnabled:      c.config.GetBool(optionNameTracingEnabled),
				TracingEndpoint:     c.config.GetString(optionNameTracingEndpoint),
				TracingServiceName:  c.config.GetString(optionNameTracingServiceName),
				Logger:              logger,
			})
			if err != nil {
				return err
			}

			addrs, err := d.Addresses()
			if err != nil {
				return fmt.Errorf("get daemon addresses: %w", err)
			}
			for _, addr := range addrs {
				cmd.Println(addr)
			}

			interruptChannel := make(chan os.Signal, 1)
			signal.Notify(interruptChannel, syscall.SIGINT, syscall.SIGTERM)

			// Block main goroutine until it is interrupted
			sig := <-interruptChannel

			logger.Debugf("received signal: %v", sig)
			logger.Info("shutting down")

			// Shutdown
			done := make(chan struct{})
			go func() {
				defer close(done)

				if err := d.Shutdown(); err != nil {
					logger.Errorf("shutdown: %v", err)
				}
			}()

			// If shutdown function is blocking too long,
			// allow process termination by receiving another signal.
			select {
			case sig := <-interruptChannel:
				logger.Debugf("received signal: %v", sig)
			case <-done:
			}

			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	cmd.Flags().String(optionNameDataDir, filepath.Join(c.homeDir, ".zzzync"), "data directory, empty keeps everything in memory")
	cmd.Flags().String(optionNamePassword, "", "password for decrypting the daemon key")
	cmd.Flags().String(optionNamePasswordFile, "", "path to a file that contains password for decrypting the daemon key")
	cmd.Flags().String(optionNameDaemonKey, "", "base36 encoded daemon key, overrides the key in the data directory")
	cmd.Flags().String(optionNameP2PAddr, ":4001", "P2P listen address")
	cmd.Flags().Bool(optionNameP2PWSEnable, false, "enable P2P WebSocket transport")
	cmd.Flags().Bool(optionNameP2PQUICEnable, false, "enable P2P QUIC transport")
	cmd.Flags().Bool(optionNameNATPortMap, false, "try to open a port on the NAT device")
	cmd.Flags().StringSlice(optionNameBootnodes, nil, "initial nodes to connect to")
	cmd.Flags().String(optionNameDHTMode, "auto", "DHT mode: auto, client or server")
	cmd.Flags().String(optionNameDebugAPIAddr, "", "debug HTTP API listen address, empty disables it")
	cmd.Flags().StringSlice(optionCORSAllowedOrigins, []string{}, "origins with CORS headers enabled")
	cmd.Flags().String(optionNameAllowFile, "", "file listing the names allowed to push, empty allows every name")
	cmd.Flags().Duration(optionNameAllowReloadInterval, node.DefaultAllowReloadInterval, "how often the allow file is checked for changes")
	cmd.Flags().Uint64(optionNameMaxArchiveSize, 0, "maximum accepted archive size in bytes, 0 is unlimited")
	cmd.Flags().String(optionNameAdvertiseScope, "", "where pinned names are advertised: local or global")
	cmd.Flags().Duration(optionNameRepublishInterval, node.DefaultRepublishInterval, "how often records are republished")
	cmd.Flags().Duration(optionNameRateLimitInterval, node.DefaultRateLimitInterval, "interval in which one push per peer is allowed")
	cmd.Flags().Int(optionNameRateLimitBurst, node.DefaultRateLimitBurst, "pushes per peer allowed in a burst")
	c.setLoggerFlags(cmd)

	c.root.AddCommand(cmd)
	return nil
}

// daemonKey returns the key from the daemon key option or the key store of
// the data directory, creating a new key on first start.
func (c *command) daemonKey(cmd *cobra.Command, logger logging.Logger) (crypto.PrivKey, error) {
	if v := c.config.GetString(optionNameDaemonKey); v != "" {
		key, err := keystore.DecodeKey(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", optionNameDaemonKey, err)
		}
		return key, nil
	}

	var keys keystore.Service
	if dataDir := c.config.GetString(optionNameDataDir); dataDir != "" {
		keys = filekeystore.New(afero.NewOsFs(), filepath.Join(dataDir, "keys"))
	} else {
		logger.Warning("data directory not provided, daemon key is not persisted")
		keys = memkeystore.New()
	}

	exists, err := keys.Exists(daemonKeyName)
	if err != nil {
		return nil, err
	}
	password, err := c.password(cmd, exists)
	if err != nil {
		return nil, err
	}

	key, created, err := keys.Key(daemonKeyName, password, keystore.DefaultKeyType)
	if err != nil {
		return nil, fmt.Errorf("daemon key: %w", err)
	}
	signer, err := identity.NewSigner(key)
	if err != nil {
		return nil, err
	}
	if created {
		logger.Infof("new daemon key created: %s", signer.Name())
	} else {
		logger.Infof("using existing daemon key: %s", signer.Name())
	}
	return key, nil
}
