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

package pool

import (
	"errors"
)

var (
	// ErrInvalidInput is returned for malformed or out-of-range request
	// values
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientLiquidity is returned when a pool has no reserves to
	// quote against
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrInsufficientShares is returned when a mint or burn computes zero
	// shares, or a burn exceeds the holder's balance
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrSlippageExceeded is returned when a computed output falls below
	// the caller's minimum
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrPoolNotFound is returned for lookups of unknown pools or pairs
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolAlreadyExists is returned when creating a pool for a pair
	// that already has one
	ErrPoolAlreadyExists = errors.New("pool already exists")

	// ErrUnauthorized is returned when an anchor pool mutation comes from
	// an identity other than the pool's creator
	ErrUnauthorized = errors.New("unauthorized")

	// ErrPoolNotActive is returned when trading against a paused or
	// closed anchor pool
	ErrPoolNotActive = errors.New("pool not active")

	// ErrRefunded marks operations that failed after the user's deposit
	// settled. The matching unwind has already been attempted; the
	// underlying cause is wrapped alongside
	ErrRefunded = errors.New("refunded")
)
