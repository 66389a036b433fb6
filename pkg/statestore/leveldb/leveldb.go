// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package leveldb implements the state store on goleveldb.
package leveldb

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	ldberr "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	ldbs "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/tabcat/zzzync/pkg/logging"
	"github.com/tabcat/zzzync/pkg/storage"
)

var _ storage.StateStorer = (*Store)(nil)

type Store struct {
	db *leveldb.DB
}

// Options tune the underlying database. Zero values keep the goleveldb
// defaults.
type Options struct {
	OpenFilesLimit     int
	BlockCacheCapacity int
	WriteBufferSize    int
}

func (o *Options) leveldb() *opt.Options {
	if o == nil {
		return nil
	}
	return &opt.Options{
		OpenFilesCacheCapacity: o.OpenFilesLimit,
		BlockCacheCapacity:     o.BlockCacheCapacity,
		WriteBuffer:            o.WriteBufferSize,
	}
}

// NewInMemoryStateStore creates a store that keeps its data in memory.
func NewInMemoryStateStore(_ logging.Logger) (*Store, error) {
	db, err := leveldb.Open(ldbs.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// NewStateStore opens the store at path. A corrupted database is recovered
// once before giving up.
func NewStateStore(path string, o *Options, l logging.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, o.leveldb())
	if ldberr.IsCorrupted(err) {
		l.Warningf("statestore %s corrupted, attempting recovery: %v", path, err)
		if db, err = leveldb.RecoverFile(path, o.leveldb()); err != nil {
			return nil, fmt.Errorf("statestore recovery: %w", err)
		}
		l.Warningf("statestore %s recovered", path)
	}
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Get decodes the value of key into i. It returns storage.ErrNotFound for
// missing keys.
func (s *Store) Get(key string, i interface{}) error {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return storage.Unmarshal(data, i)
}

func (s *Store) Put(key string, i interface{}) error {
	data, err := storage.Marshal(i)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), data, nil)
}

func (s *Store) Delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

// Iterate visits the entries with the prefix in key order. The slices
// passed to iterFunc are copies.
func (s *Store) Iterate(prefix string, iterFunc storage.StateIterFunc) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		stop, err := iterFunc(append([]byte(nil), iter.Key()...), append([]byte(nil), iter.Value()...))
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}
	return iter.Error()
}

func (s *Store) Close() error {
	return s.db.Close()
}
