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
	"context"
	"math/big"
)

// StorageAccountOpts configures a new storage account
type StorageAccountOpts struct {
	Name        string
	Description string
	// GrantOperatorSendOnBehalf grants the operator SEND_ON_BEHALF on the
	// new account at creation time
	GrantOperatorSendOnBehalf bool
	Owner                     Address
}

// Client is the full ledger surface the coordinator depends on. Every
// call honors the context deadline; Publish is never retried by the
// client itself.
type Client interface {
	// AccountFromAddress resolves an address string to an account
	AccountFromAddress(addr string) (Account, error)

	// BalancesOf returns all token holdings of an account
	BalancesOf(ctx context.Context, acct Account) ([]Balance, error)

	// AccountInfo returns the metadata view of an account
	AccountInfo(ctx context.Context, acct Account) (AccountInfo, error)

	// NewTransaction starts a transaction builder for the given signer
	NewTransaction(signer Signer) *TxBuilder

	// Publish submits the accumulated operations atomically
	Publish(ctx context.Context, tx *TxBuilder) (*PublishResult, error)

	// CreateStorageAccount creates a delegable account owned per opts
	CreateStorageAccount(
		ctx context.Context,
		opts StorageAccountOpts,
	) (Address, error)

	// CreateLPToken creates a supply-managed token whose metadata binds
	// it to a pool
	CreateLPToken(
		ctx context.Context,
		pool, tokenA, tokenB Address,
		decimals uint,
	) (Address, error)

	// MintSupply mints amount of token to an account
	MintSupply(
		ctx context.Context,
		token Address,
		to Address,
		amount *big.Int,
	) error

	// BurnSupply burns amount of token held at the token's own account
	// after having been positioned there by the holder
	BurnSupply(
		ctx context.Context,
		token Address,
		from Address,
		amount *big.Int,
	) error
}
