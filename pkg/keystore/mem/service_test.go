// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mem_test

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/tabcat/zzzync/pkg/keystore/mem"
	"github.com/tabcat/zzzync/pkg/keystore/test"
)

func TestService(t *testing.T) {
	t.Parallel()

	t.Run("ed25519", func(t *testing.T) {
		test.Service(t, mem.New(), pb.KeyType_Ed25519)
	})

	t.Run("secp256k1", func(t *testing.T) {
		test.Service(t, mem.New(), pb.KeyType_Secp256k1)
	})
}
