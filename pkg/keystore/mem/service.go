// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mem keeps keys in memory for daemons started without a data
// directory.
package mem

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/tabcat/zzzync/pkg/keystore"
)

var _ keystore.Service = (*Service)(nil)

// Service holds keys by name. Only a digest of each password is kept.
type Service struct {
	mu   sync.Mutex
	keys map[string]entry
}

type entry struct {
	key      crypto.PrivKey
	password [sha256.Size]byte
}

func New() *Service {
	return &Service{keys: make(map[string]entry)}
}

func (s *Service) Exists(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.keys[name]
	return ok, nil
}

func (s *Service) SetKey(name, password string, k crypto.PrivKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[name] = entry{key: k, password: sha256.Sum256([]byte(password))}
	return nil
}

func (s *Service) Key(name, password string, keyType pb.KeyType) (k crypto.PrivKey, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest := sha256.Sum256([]byte(password))
	if e, ok := s.keys[name]; ok {
		if subtle.ConstantTimeCompare(e.password[:], digest[:]) != 1 {
			return nil, false, keystore.ErrInvalidPassword
		}
		return e.key, false, nil
	}

	k, err = keystore.GenerateKey(keyType)
	if err != nil {
		return nil, false, err
	}
	s.keys[name] = entry{key: k, password: digest}
	return k, true, nil
}
