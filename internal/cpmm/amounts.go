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

package cpmm

import (
	"errors"
	"math/big"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Pow10 returns 10^decimals as a big integer
func Pow10(decimals uint) *big.Int {
	return new(big.Int).Exp(
		big.NewInt(10),
		big.NewInt(int64(decimals)),
		nil,
	)
}

// ParseAmount parses a non-negative decimal string of atomic units
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAmount
	}
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return amount, nil
}

// HumanFloat converts an atomic amount to human units as a float64. It
// loses precision beyond ~15 significant digits and is only used for
// display and dust comparisons.
func HumanFloat(amount *big.Int, decimals uint) float64 {
	f := new(big.Float).SetInt(amount)
	f.Quo(f, new(big.Float).SetInt(Pow10(decimals)))
	out, _ := f.Float64()
	return out
}

// HumanString formats an atomic amount in human units, trimming trailing
// zeros after the decimal point
func HumanString(amount *big.Int, decimals uint) string {
	s := amount.String()
	if decimals == 0 {
		return s
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if uint(len(s)) <= decimals {
		s = strings.Repeat("0", int(decimals)-len(s)+1) + s
	}
	point := len(s) - int(decimals)
	frac := strings.TrimRight(s[point:], "0")
	out := s[:point]
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}
