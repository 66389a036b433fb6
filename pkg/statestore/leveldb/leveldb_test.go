// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package leveldb_test

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/statestore/leveldb"
	"github.com/tabcat/zzzync/pkg/statestore/test"
	"github.com/tabcat/zzzync/pkg/storage"
)

func TestPersistentStateStore(t *testing.T) {
	logger := logging.New(io.Discard, logrus.ErrorLevel)

	test.Run(t, func(t *testing.T) storage.StateStorer {
		store, err := leveldb.NewStateStore(t.TempDir(), nil, logger)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}
		})

		return store
	})

	test.RunPersist(t, func(t *testing.T, dir string) storage.StateStorer {
		store, err := leveldb.NewStateStore(dir, &leveldb.Options{OpenFilesLimit: 64}, logger)
		if err != nil {
			t.Fatal(err)
		}

		return store
	})
}

func TestInMemoryStateStore(t *testing.T) {
	test.Run(t, func(t *testing.T) storage.StateStorer {
		store, err := leveldb.NewInMemoryStateStore(logging.New(io.Discard, 0))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() {
			if err := store.Close(); err != nil {
				t.Fatal(err)
			}
		})

		return store
	})
}
