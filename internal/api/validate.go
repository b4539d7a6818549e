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

package api

import (
	"fmt"
	"math/big"

	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/pool"
)

// parseAddr validates an address field
func parseAddr(field, s string) (ledger.Address, error) {
	if s == "" {
		return "", fmt.Errorf("%w: %s is required", pool.ErrInvalidInput, field)
	}
	addr, err := ledger.ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

// parseAmount parses a required positive decimal amount in atomic units
func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: %s is required", pool.ErrInvalidInput, field)
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf(
			"%w: %s is not a decimal amount",
			pool.ErrInvalidInput,
			field,
		)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf(
			"%w: %s must be positive",
			pool.ErrInvalidInput,
			field,
		)
	}
	return amount, nil
}

// parseOptionalAmount parses an optional non-negative decimal amount.
// Empty means unset and returns nil.
func parseOptionalAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf(
			"%w: %s is not a decimal amount",
			pool.ErrInvalidInput,
			field,
		)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf(
			"%w: %s must not be negative",
			pool.ErrInvalidInput,
			field,
		)
	}
	return amount, nil
}

// parseSlippage validates the slippage tolerance, defaulting when unset
func parseSlippage(p *float64) (float64, error) {
	if p == nil {
		return cpmm.DefaultSlippagePercent, nil
	}
	if *p < 0 || *p > 50 {
		return 0, fmt.Errorf(
			"%w: slippagePercent must be between 0 and 50",
			pool.ErrInvalidInput,
		)
	}
	return *p, nil
}
