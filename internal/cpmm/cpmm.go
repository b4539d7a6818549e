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

// Package cpmm implements constant-product market maker math over big
// integers. All division floors except the complementary deposit amount
// in OptimalLiquidity, which ceils so that a deposit never undershoots
// the pool ratio.
package cpmm

import (
	"errors"
	"math"
	"math/big"
)

const (
	// BpsDenom is the basis-point denominator for all fee math
	BpsDenom = 10_000

	// DefaultTotalFeeBps is the standard pool swap fee (0.30%)
	DefaultTotalFeeBps = 30

	// DefaultProtocolFeeBps is the slice of the swap input routed to the
	// treasury (0.05%); the remaining fee accrues to the pool reserves
	DefaultProtocolFeeBps = 5

	// MinimumLiquidity is subtracted from the first LP mint and burned to
	// the zero address, so an emptied pool can never be re-seeded at an
	// attacker-chosen share price
	MinimumLiquidity = 1000

	// DefaultSlippagePercent is applied to quotes when the caller doesn't
	// specify a tolerance
	DefaultSlippagePercent = 0.5
)

var ErrEmptyReserves = errors.New("empty reserves")

// SwapQuote is the result of SwapOutput
type SwapQuote struct {
	AmountOut *big.Int
	FeeAmount *big.Int
	// PriceImpact is |p_after - p_before| / p_before with prices measured
	// as reserveOut/reserveIn
	PriceImpact float64
}

// SwapOutput prices a swap of amountIn against the given reserves.
// amountInAfterFee = amountIn * (10000 - totalFeeBps) / 10000
// amountOut = reserveOut * amountInAfterFee / (reserveIn + amountInAfterFee)
func SwapOutput(
	amountIn, reserveIn, reserveOut *big.Int,
	totalFeeBps int64,
) (*SwapQuote, error) {
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrEmptyReserves
	}
	if amountIn.Sign() == 0 {
		return &SwapQuote{
			AmountOut: new(big.Int),
			FeeAmount: new(big.Int),
		}, nil
	}
	// We have to use big.Int here because the intermediate products
	// overflow uint64 for realistic reserve sizes
	bpsDenom := big.NewInt(BpsDenom)
	amountInAfterFee := new(big.Int).Div(
		new(big.Int).Mul(
			amountIn,
			big.NewInt(BpsDenom-totalFeeBps),
		),
		bpsDenom,
	)
	amountOut := new(big.Int).Div(
		new(big.Int).Mul(reserveOut, amountInAfterFee),
		new(big.Int).Add(reserveIn, amountInAfterFee),
	)
	feeAmount := new(big.Int).Div(
		new(big.Int).Mul(amountIn, big.NewInt(totalFeeBps)),
		bpsDenom,
	)
	return &SwapQuote{
		AmountOut:   amountOut,
		FeeAmount:   feeAmount,
		PriceImpact: priceImpact(reserveIn, reserveOut, amountInAfterFee, amountOut),
	}, nil
}

// priceImpact measures the relative change of the marginal price
// reserveOut/reserveIn caused by the swap
func priceImpact(
	reserveIn, reserveOut, amountInAfterFee, amountOut *big.Int,
) float64 {
	before := new(big.Rat).SetFrac(reserveOut, reserveIn)
	afterOut := new(big.Int).Sub(reserveOut, amountOut)
	afterIn := new(big.Int).Add(reserveIn, amountInAfterFee)
	if afterIn.Sign() == 0 || before.Sign() == 0 {
		return 0
	}
	after := new(big.Rat).SetFrac(afterOut, afterIn)
	diff := new(big.Rat).Sub(after, before)
	diff.Abs(diff)
	diff.Quo(diff, before)
	impact, _ := diff.Float64()
	return impact
}

// FeeSplit splits a swap input into the protocol fee (sent to the
// treasury) and the remainder deposited into the pool
func FeeSplit(amountIn *big.Int, protocolFeeBps int64) (*big.Int, *big.Int) {
	protocolFee := new(big.Int).Div(
		new(big.Int).Mul(amountIn, big.NewInt(protocolFeeBps)),
		big.NewInt(BpsDenom),
	)
	amountToPool := new(big.Int).Sub(amountIn, protocolFee)
	return protocolFee, amountToPool
}

// OptimalLiquidity computes the deposit amounts matching the current pool
// ratio. On an empty pool the desired amounts are returned unchanged.
// The complementary amount uses ceiling division so the deposit never
// falls below the pool ratio.
func OptimalLiquidity(
	aDesired, bDesired, reserveA, reserveB *big.Int,
) (*big.Int, *big.Int) {
	if reserveA.Sign() == 0 && reserveB.Sign() == 0 {
		return new(big.Int).Set(aDesired), new(big.Int).Set(bDesired)
	}
	bNeeded := divCeil(new(big.Int).Mul(aDesired, reserveB), reserveA)
	if bNeeded.Cmp(bDesired) <= 0 {
		return new(big.Int).Set(aDesired), bNeeded
	}
	aNeeded := divCeil(new(big.Int).Mul(bDesired, reserveA), reserveB)
	return aNeeded, new(big.Int).Set(bDesired)
}

func divCeil(num, denom *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(num, denom, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// LPToMint computes the LP shares minted for a deposit. The first deposit
// mints isqrt(a*b) total with MinimumLiquidity locked (minted to the zero
// address); locked is zero on subsequent deposits.
func LPToMint(
	a, b, reserveA, reserveB, totalShares *big.Int,
) (shares, locked *big.Int, err error) {
	if totalShares.Sign() == 0 {
		total := new(big.Int).Sqrt(new(big.Int).Mul(a, b))
		lock := big.NewInt(MinimumLiquidity)
		if total.Cmp(lock) <= 0 {
			// Deposit too small to cover the permanent lock
			return new(big.Int), total, nil
		}
		return new(big.Int).Sub(total, lock), lock, nil
	}
	if reserveA.Sign() == 0 || reserveB.Sign() == 0 {
		return nil, nil, ErrEmptyReserves
	}
	sharesA := new(big.Int).Div(
		new(big.Int).Mul(a, totalShares),
		reserveA,
	)
	sharesB := new(big.Int).Div(
		new(big.Int).Mul(b, totalShares),
		reserveB,
	)
	if sharesA.Cmp(sharesB) < 0 {
		return sharesA, new(big.Int), nil
	}
	return sharesB, new(big.Int), nil
}

// BurnToAmounts computes the pro-rata payout for burning shares
func BurnToAmounts(
	shares, totalShares, reserveA, reserveB *big.Int,
) (*big.Int, *big.Int) {
	if totalShares.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	a := new(big.Int).Div(
		new(big.Int).Mul(shares, reserveA),
		totalShares,
	)
	b := new(big.Int).Div(
		new(big.Int).Mul(shares, reserveB),
		totalShares,
	)
	return a, b
}

// MinAmountOut applies a slippage tolerance (in percent, e.g. 0.5) to a
// quoted output
func MinAmountOut(amountOut *big.Int, slippagePercent float64) *big.Int {
	slippageBps := int64(math.Round(slippagePercent * 100))
	if slippageBps < 0 {
		slippageBps = 0
	}
	if slippageBps > BpsDenom {
		slippageBps = BpsDenom
	}
	return new(big.Int).Div(
		new(big.Int).Mul(
			amountOut,
			big.NewInt(BpsDenom-slippageBps),
		),
		big.NewInt(BpsDenom),
	)
}
