// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/keystore"
	"github.com/tabcat/zzzync/pkg/node"
	"github.com/tabcat/zzzync/pkg/tracing"
)

var errPublisherKeyMissing = errors.New("publisher key not provided, set " + optionNamePublisherKey + " or ZZZYNC_PUBLISHER_KEY")

func (c *command) initPushCmd() (err error) {
	cmd := &cobra.Command{
		Use:   "push <path>",
		Short: "Import a file or directory and push it to a daemon under the publisher name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			logger, err := newLogger(cmd, c.config.GetString(optionNameVerbosity))
			if err != nil {
				return fmt.Errorf("new logger: %w", err)
			}

			v := c.config.GetString(optionNamePublisherKey)
			if v == "" {
				return errPublisherKeyMissing
			}
			key, err := keystore.DecodeKey(v)
			if err != nil {
				return fmt.Errorf("%s: %w", optionNamePublisherKey, err)
			}

			peer, err := ma.NewMultiaddr(c.config.GetString(optionNamePeer))
			if err != nil {
				return fmt.Errorf("%s: %w", optionNamePeer, err)
			}

			tracer, tracerCloser, err := tracing.NewTracer(&tracing.Options{
				Enabled:     c.config.GetBool(optionNameTracingEnabled),
				Endpoint:    c.config.GetString(optionNameTracingEndpoint),
				ServiceName: c.config.GetString(optionNameTracingServiceName),
			})
			if err != nil {
				return fmt.Errorf("tracer: %w", err)
			}
			defer tracerCloser.Close()

			r, err := node.Push(context.Background(), key, node.PushOptions{
				DataDir:  c.config.GetString(optionNameDataDir),
				Path:     args[0],
				Peer:     peer,
				Lifetime: c.config.GetDuration(optionNameLifetime),
				TTL:      c.config.GetDuration(optionNameTTL),
				Hidden:   c.config.GetBool(optionNameHidden),
				Logger:   logger,
				Tracer:   tracer,
			})
			if err != nil {
				return err
			}

			signer, err := identity.NewSigner(key)
			if err != nil {
				return err
			}
			cmd.Println(signer.Name())
			cmd.Println(r.Value())
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	cmd.Flags().String(optionNameDataDir, "", "directory keeping the imported blocks, empty keeps them in memory")
	cmd.Flags().String(optionNamePublisherKey, "", "base36 encoded publisher key")
	cmd.Flags().String(optionNamePeer, "", "daemon multiaddr including its /p2p/ component")
	cmd.Flags().Duration(optionNameLifetime, node.DefaultRecordLifetime, "how long the pushed record is valid")
	cmd.Flags().Duration(optionNameTTL, node.DefaultRecordTTL, "how long resolvers may cache the pushed record")
	cmd.Flags().Bool(optionNameHidden, false, "include hidden files of directories")
	c.setLoggerFlags(cmd)

	c.root.AddCommand(cmd)
	return nil
}
