// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tabcat/zzzync/cmd/zzzync/cmd"
	"github.com/tabcat/zzzync/pkg/identity"
	"github.com/tabcat/zzzync/pkg/keystore"
	"github.com/tabcat/zzzync/pkg/names"
)

func TestGenerateCmd(t *testing.T) {
	for _, keyType := range []string{"ed25519", "secp256k1"} {
		t.Run(keyType, func(t *testing.T) {
			var outputBuf bytes.Buffer
			if err := newCommand(t,
				cmd.WithArgs("generate", "--key-type", keyType),
				cmd.WithOutput(&outputBuf),
			).Execute(); err != nil {
				t.Fatal(err)
			}

			lines := strings.Split(strings.TrimSpace(outputBuf.String()), "\n")
			if len(lines) != 2 {
				t.Fatalf("got output %q", outputBuf.String())
			}
			name, err := names.Parse(strings.TrimPrefix(lines[0], "name: "))
			if err != nil {
				t.Fatal(err)
			}
			key, err := keystore.DecodeKey(strings.TrimPrefix(lines[1], "key: "))
			if err != nil {
				t.Fatal(err)
			}
			signer, err := identity.NewSigner(key)
			if err != nil {
				t.Fatal(err)
			}
			if !signer.Name().Equal(name) {
				t.Errorf("got name %s, want %s", name, signer.Name())
			}
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		err := newCommand(t,
			cmd.WithArgs("generate", "--key-type", "rsa"),
			cmd.WithOutput(new(bytes.Buffer)),
		).Execute()
		if err == nil {
			t.Fatal("rsa key generated")
		}
	})
}
