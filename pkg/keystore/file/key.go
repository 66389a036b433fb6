// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package file

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/tabcat/zzzync/pkg/keystore"
	"github.com/tabcat/zzzync/pkg/names"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

var _ keystore.Service = (*Service)(nil)

const (
	keyHeaderKDF = "scrypt"
	keyCipher    = "chacha20-poly1305"
	keyVersion   = 1

	// standard scrypt parameters
	scryptN     = 1 << 15
	scryptR     = 8
	scryptP     = 1
	scryptDKLen = chacha20poly1305.KeySize
)

// This format is inspired by Ethereum V3 keystore files, with the key
// encrypted by an AEAD instead of a cipher and a MAC.
type encryptedKey struct {
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Crypto  keyCripto `json:"crypto"`
	Version int       `json:"version"`
}

type keyCripto struct {
	Cipher     string    `json:"cipher"`
	CipherText string    `json:"ciphertext"`
	Nonce      string    `json:"nonce"`
	KDF        string    `json:"kdf"`
	KDFParams  kdfParams `json:"kdfparams"`
}

type kdfParams struct {
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	DKLen int    `json:"dklen"`
	Salt  string `json:"salt"`
}

func encryptKey(k crypto.PrivKey, password string) ([]byte, error) {
	data, err := crypto.MarshalPrivateKey(k)
	if err != nil {
		return nil, err
	}
	n, err := names.FromPublicKey(k.GetPublic())
	if err != nil {
		return nil, err
	}

	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptDKLen)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return json.Marshal(encryptedKey{
		Name: n.String(),
		Type: k.Type().String(),
		Crypto: keyCripto{
			Cipher:     keyCipher,
			CipherText: hex.EncodeToString(aead.Seal(nil, nonce, data, nil)),
			Nonce:      hex.EncodeToString(nonce),
			KDF:        keyHeaderKDF,
			KDFParams: kdfParams{
				N:     scryptN,
				R:     scryptR,
				P:     scryptP,
				DKLen: scryptDKLen,
				Salt:  hex.EncodeToString(salt),
			},
		},
		Version: keyVersion,
	})
}

func decryptKey(data []byte, password string) (crypto.PrivKey, error) {
	var k encryptedKey
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, err
	}
	if k.Version != keyVersion {
		return nil, fmt.Errorf("unsupported key version: %v", k.Version)
	}
	if k.Crypto.Cipher != keyCipher {
		return nil, fmt.Errorf("unsupported cipher: %v", k.Crypto.Cipher)
	}
	if k.Crypto.KDF != keyHeaderKDF {
		return nil, fmt.Errorf("unsupported kdf: %v", k.Crypto.KDF)
	}

	salt, err := hex.DecodeString(k.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("hex decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(k.Crypto.Nonce)
	if err != nil {
		return nil, fmt.Errorf("hex decode nonce: %w", err)
	}
	cipherText, err := hex.DecodeString(k.Crypto.CipherText)
	if err != nil {
		return nil, fmt.Errorf("hex decode cipher text: %w", err)
	}

	p := k.Crypto.KDFParams
	key, err := scrypt.Key([]byte(password), salt, p.N, p.R, p.P, p.DKLen)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}
	b, err := aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, keystore.ErrInvalidPassword
	}
	return crypto.UnmarshalPrivateKey(b)
}
