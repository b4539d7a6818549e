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
	"errors"
)

var (
	// ErrInvalidAddress is returned for malformed address strings
	ErrInvalidAddress = errors.New("invalid address")

	// ErrAccountNotFound is returned for reads of unknown accounts
	ErrAccountNotFound = errors.New("account not found")

	// ErrTokenNotFound is returned for operations on unknown tokens
	ErrTokenNotFound = errors.New("token not found")

	// ErrInsufficientBalance is returned when a send exceeds the source
	// account's holdings
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotPermitted is returned when a signer lacks the required
	// permission on the source account
	ErrNotPermitted = errors.New("operation not permitted")

	// ErrLedgerTimeout is returned when a ledger call misses its deadline
	ErrLedgerTimeout = errors.New("ledger timeout")

	// ErrLedgerRejected is returned when the ledger refuses a publish
	ErrLedgerRejected = errors.New("ledger rejected transaction")
)
