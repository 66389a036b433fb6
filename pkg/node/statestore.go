// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"path/filepath"

	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/statestore/leveldb"
	"github.com/tabcat/zzzync/pkg/storage"
)

// InitStateStore opens the leveldb store called name under the data
// directory. When given an empty directory path, the function will instead
// initialize an in-memory store that will not be persisted.
func InitStateStore(logger logging.Logger, dataDir, name string) (storage.StateStorer, error) {
	if dataDir == "" {
		logger.Warningf("using in-mem %s, no node state will be persisted", name)
		return leveldb.NewInMemoryStateStore(logger)
	}
	return leveldb.NewStateStore(filepath.Join(dataDir, name), nil, logger)
}
