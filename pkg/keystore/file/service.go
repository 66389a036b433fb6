// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package file

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/crypto/pb"
	"github.com/spf13/afero"
	"github.com/tabcat/zzzync/pkg/keystore"
)

// Service is the file-based keystore.Service implementation.
//
// Keys are stored in directory where each private key is stored in a file,
// which is encrypted with symmetric key using some password.
type Service struct {
	fs  afero.Fs
	dir string
}

// New creates new file-based keystore.Service implementation.
func New(fsys afero.Fs, dir string) *Service {
	return &Service{fs: fsys, dir: dir}
}

func (s *Service) Exists(name string) (bool, error) {
	data, err := s.read(name)
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

func (s *Service) Key(name, password string, keyType pb.KeyType) (pk crypto.PrivKey, created bool, err error) {
	data, err := s.read(name)
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		pk, err = keystore.GenerateKey(keyType)
		if err != nil {
			return nil, false, err
		}
		if err := s.SetKey(name, password, pk); err != nil {
			return nil, false, err
		}
		return pk, true, nil
	}

	pk, err = decryptKey(data, password)
	if err != nil {
		return nil, false, err
	}
	return pk, false, nil
}

func (s *Service) SetKey(name, password string, k crypto.PrivKey) error {
	d, err := encryptKey(k, password)
	if err != nil {
		return err
	}

	filename := s.keyFilename(name)
	if err := s.fs.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, filename, d, 0600)
}

func (s *Service) read(name string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.keyFilename(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return data, nil
}

func (s *Service) keyFilename(name string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.key", name))
}
