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

package ledger

import (
	"crypto/ed25519"
	"math/big"

	"golang.org/x/crypto/blake2b"
)

// Signer produces signatures for ledger transactions
type Signer interface {
	Address() Address
	PublicKey() ed25519.PublicKey
	Sign(msg []byte) []byte
}

type opKind int

const (
	opSend opKind = iota
	opUpdatePermissions
	opSetMetadata
)

type txOp struct {
	kind opKind
	// onBehalfOf is the storage account acted on via delegated
	// permission; zero for direct operations
	onBehalfOf Address
	to         Address
	token      Address
	amount     *big.Int
	subject    Address
	perms      Permission
	metadata   []byte
}

// TxBuilder accumulates operations for a single atomic publish. All
// operations settle together or not at all.
type TxBuilder struct {
	signer Signer
	ops    []txOp
}

// NewTxBuilder starts a transaction signed by the given signer
func NewTxBuilder(signer Signer) *TxBuilder {
	return &TxBuilder{signer: signer}
}

// Signer returns the transaction's signing identity
func (b *TxBuilder) Signer() Signer {
	return b.signer
}

// OpCount returns the number of accumulated operations
func (b *TxBuilder) OpCount() int {
	return len(b.ops)
}

// Send transfers amount of token from the signer's account to the target
func (b *TxBuilder) Send(to Address, amount *big.Int, token Address) *TxBuilder {
	b.ops = append(b.ops, txOp{
		kind:   opSend,
		to:     to,
		token:  token,
		amount: new(big.Int).Set(amount),
	})
	return b
}

// SendOnBehalfOf transfers amount of token out of a storage account the
// signer holds SEND_ON_BEHALF on
func (b *TxBuilder) SendOnBehalfOf(
	account Address,
	to Address,
	amount *big.Int,
	token Address,
) *TxBuilder {
	b.ops = append(b.ops, txOp{
		kind:       opSend,
		onBehalfOf: account,
		to:         to,
		token:      token,
		amount:     new(big.Int).Set(amount),
	})
	return b
}

// UpdatePermissions grants the given permission set to subject on the
// signer's account, or on another account via onBehalfOf
func (b *TxBuilder) UpdatePermissions(
	subject Address,
	perms Permission,
	onBehalfOf Address,
) *TxBuilder {
	b.ops = append(b.ops, txOp{
		kind:       opUpdatePermissions,
		onBehalfOf: onBehalfOf,
		subject:    subject,
		perms:      perms,
	})
	return b
}

// SetMetadata replaces the metadata bytes on an account
func (b *TxBuilder) SetMetadata(account Address, data []byte) *TxBuilder {
	b.ops = append(b.ops, txOp{
		kind:       opSetMetadata,
		onBehalfOf: account,
		metadata:   data,
	})
	return b
}

// digest computes the canonical signing digest over all operations
func (b *TxBuilder) digest() []byte {
	hash, _ := blake2b.New256(nil)
	for _, op := range b.ops {
		hash.Write([]byte{byte(op.kind)})
		hash.Write([]byte(op.onBehalfOf))
		hash.Write([]byte(op.to))
		hash.Write([]byte(op.token))
		if op.amount != nil {
			hash.Write(op.amount.Bytes())
		}
		hash.Write([]byte(op.subject))
		hash.Write(op.metadata)
	}
	return hash.Sum(nil)
}
