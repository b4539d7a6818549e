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

// Package ledger defines the narrow client surface the coordinator uses
// to talk to the ledger, along with an in-memory implementation used by
// tests and local development. Nothing outside this package constructs
// or parses ledger blocks.
package ledger

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	addressPrefix  = "kta1"
	addressHashLen = 20
)

// ZeroAddress is the burn target for permanently locked LP shares
var ZeroAddress = Address(
	addressPrefix + strings.Repeat("0", addressHashLen*2),
)

/// Address is a ledger account address: a fixed prefix followed by the
// hex-encoded blake2b-160 hash of the account public key
type Address string

func (a Address) String() string {
	return string(a)
}

// Abbrev shortens an address for log and history output
func (a Address) Abbrev() string {
	s := string(a)
	if len(s) <= 14 {
		return s
	}
	return s[:10] + "..." + s[len(s)-4:]
}

// ParseAddress validates an address string
func ParseAddress(s string) (Address, error) {
	if !strings.HasPrefix(s, addressPrefix) {
		return "", ErrInvalidAddress
	}
	hexPart := strings.TrimPrefix(s, addressPrefix)
	if len(hexPart) != addressHashLen*2 {
		return "", ErrInvalidAddress
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return "", ErrInvalidAddress
	}
	return Address(s), nil
}

// AddressFromPublicKey derives the account address for a public key
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	hash, _ := blake2b.New(addressHashLen, nil)
	hash.Write(pub)
	return Address(addressPrefix + hex.EncodeToString(hash.Sum(nil)))
}

// deriveAddress builds a deterministic non-key address (storage and token
// accounts) from arbitrary seed material
func deriveAddress(parts ...[]byte) Address {
	hash, _ := blake2b.New(addressHashLen, nil)
	for _, p := range parts {
		hash.Write(p)
	}
	return Address(addressPrefix + hex.EncodeToString(hash.Sum(nil)))
}

// PairKey is the canonical identity of an unordered token pair: the two
// addresses joined in lexicographic order
func PairKey(a, b Address) string {
	if a < b {
		return string(a) + "|" + string(b)
	}
	return string(b) + "|" + string(a)
}

// SortPair orders two token addresses lexicographically
func SortPair(a, b Address) (Address, Address) {
	if a < b {
		return a, b
	}
	return b, a
}

// Account is a resolved ledger account reference
type Account struct {
	Address Address
}

// Balance is one token holding of an account
type Balance struct {
	Token  Address
	Amount *big.Int
}

// AccountInfo is the metadata view of an account
type AccountInfo struct {
	Name        string
	Description string
	Owner       Address
	// Metadata is opaque bytes; tokens store JSON here
	Metadata []byte
	// Supply is set for token accounts
	Supply *big.Int
}

// Permission is a delegated-capability bitmask on a storage account
type Permission uint32

const (
	// PermSendOnBehalf lets the grantee move any asset out of the
	// account in a transaction the grantee signs itself
	PermSendOnBehalf Permission = 1 << iota
	PermUpdateInfo
)

// Block is one published ledger block
type Block struct {
	Hash []byte
}

// HashHex returns the block hash as a hex string
func (b Block) HashHex() string {
	return hex.EncodeToString(b.Hash)
}

// PublishResult reports the blocks a publish settled into
type PublishResult struct {
	Blocks []Block
}

// FirstHash returns the first block hash in hex, or "" if empty
func (r *PublishResult) FirstHash() string {
	if r == nil || len(r.Blocks) == 0 {
		return ""
	}
	return r.Blocks[0].HashHex()
}

const (
	MetadataTypeToken   = "TOKEN"
	MetadataTypeLPToken = "LP_TOKEN"
)

// TokenMetadata is the JSON stored on plain token accounts
type TokenMetadata struct {
	Type     string `json:"type"`
	Symbol   string `json:"symbol"`
	Decimals uint   `json:"decimals"`
}

// LPTokenMetadata is the JSON stored on LP token accounts; it binds the
// token to its pool
type LPTokenMetadata struct {
	Type     string `json:"type"`
	Pool     string `json:"pool"`
	TokenA   string `json:"tokenA"`
	TokenB   string `json:"tokenB"`
	Decimals uint   `json:"decimals"`
}

// DecodeLPTokenMetadata parses account metadata as LP token metadata,
// returning false if the bytes aren't that shape
func DecodeLPTokenMetadata(data []byte) (*LPTokenMetadata, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var meta LPTokenMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false
	}
	if meta.Type != MetadataTypeLPToken || meta.Pool == "" {
		return nil, false
	}
	return &meta, true
}

// DecodeTokenMetadata parses account metadata as plain token metadata
func DecodeTokenMetadata(data []byte) (*TokenMetadata, bool) {
	if len(data) == 0 {
		return nil, false
	}
	var meta TokenMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, false
	}
	if meta.Type != MetadataTypeToken {
		return nil, false
	}
	return &meta, true
}
