// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package wallet derives signing identities from BIP-39 mnemonics or raw
// seeds. The operator and treasury identities come from config; the
// seed-wallet request path derives per-request user identities.
package wallet

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/tyler-smith/go-bip39"
)

var ErrInvalidSecret = errors.New("invalid wallet secret")

// Wallet is an ed25519 signing identity with its ledger address
type Wallet struct {
	Mnemonic string
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	address  ledger.Address
}

// New generates a wallet from fresh 256-bit entropy
func New() (*Wallet, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return nil, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, err
	}
	return FromMnemonic(mnemonic)
}

// FromMnemonic derives a wallet from a BIP-39 mnemonic
func FromMnemonic(mnemonic string) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("%w: bad mnemonic", ErrInvalidSecret)
	}
	seed := bip39.NewSeed(mnemonic, "")
	w, err := FromSeed(seed[:ed25519.SeedSize])
	if err != nil {
		return nil, err
	}
	w.Mnemonic = mnemonic
	return w, nil
}

// FromSeed derives a wallet from a raw 32-byte seed
func FromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf(
			"%w: seed must be %d bytes",
			ErrInvalidSecret,
			ed25519.SeedSize,
		)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		priv:    priv,
		pub:     pub,
		address: ledger.AddressFromPublicKey(pub),
	}, nil
}

// FromSeedHex derives a wallet from a hex-encoded 32-byte seed
func FromSeedHex(s string) (*Wallet, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: bad hex seed", ErrInvalidSecret)
	}
	return FromSeed(seed)
}

// FromSecret accepts either a mnemonic or a hex seed
func FromSecret(secret string) (*Wallet, error) {
	if bip39.IsMnemonicValid(secret) {
		return FromMnemonic(secret)
	}
	return FromSeedHex(secret)
}

// Address returns the wallet's ledger address
func (w *Wallet) Address() ledger.Address {
	return w.address
}

// PublicKey returns the wallet's public key
func (w *Wallet) PublicKey() ed25519.PublicKey {
	return w.pub
}

// Sign signs a message with the wallet's private key
func (w *Wallet) Sign(msg []byte) []byte {
	return ed25519.Sign(w.priv, msg)
}
