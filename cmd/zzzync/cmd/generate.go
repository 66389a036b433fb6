// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/keystore"
)

func (c *command) initGenerateCmd() (err error) {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a publisher key and print its name",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			keyType, err := keystore.ParseKeyType(c.config.GetString(optionNameKeyType))
			if err != nil {
				return err
			}
			key, err := keystore.GenerateKey(keyType)
			if err != nil {
				return err
			}
			signer, err := identity.NewSigner(key)
			if err != nil {
				return err
			}
			encoded, err := keystore.EncodeKey(key)
			if err != nil {
				return err
			}

			cmd.Println("name:", signer.Name())
			cmd.Println("key:", encoded)
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	cmd.Flags().String(optionNameKeyType, "ed25519", "key type: ed25519 or secp256k1")

	c.root.AddCommand(cmd)
	return nil
}
