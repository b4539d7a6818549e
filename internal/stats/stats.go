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

// Package stats derives the 24-hour view of a pool from the repository
// event tables and an injected reference-unit price map. Values that
// cannot be priced carry the Unknown sentinel rather than a zero, so
// callers can tell "no trading" from "no price data".
package stats

import (
	"time"

	"github.com/blinklabs-io/tidepool/internal/anchor"
	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

// Unknown marks a value that cannot be derived, usually for lack of
// price data
const Unknown = float64(-1)

// Window is the trailing period volume and fee figures cover
const Window = 24 * time.Hour

// PoolStats is the derived trailing-24h view of one pool. All monetary
// figures are in the calculator's reference unit.
type PoolStats struct {
	PoolAddress string
	SwapCount   int
	// TVL is the combined reserve value, or Unknown without prices
	TVL float64
	// Volume24h sums swap inputs over the window, or Unknown
	Volume24h float64
	// Fees24h is the fee share of Volume24h, or Unknown
	Fees24h float64
	// APY annualizes Fees24h against TVL as a percentage, or Unknown
	APY float64
}

// Calculator prices pool state in a reference unit. Prices maps token
// symbols to their reference-unit price and is supplied by the caller;
// there is no feed inside the coordinator.
type Calculator struct {
	store  *storage.Store
	prices map[string]float64
}

// NewCalculator builds a Calculator over the given repository and price
// map. Either may be nil; derived figures then come out Unknown or
// zero-count.
func NewCalculator(store *storage.Store, prices map[string]float64) *Calculator {
	return &Calculator{
		store:  store,
		prices: prices,
	}
}

// Calc derives stats for a standard pool from the standard event tables
func (c *Calculator) Calc(p *pool.Pool) *PoolStats {
	totalBps, _ := p.Fees()
	return c.calc(p, totalBps, c.standardSwaps)
}

// CalcAnchor derives stats for an anchor pool from the anchor event
// tables, using the pool's own fee rate
func (c *Calculator) CalcAnchor(ap *anchor.Pool) *PoolStats {
	return c.calc(ap.Pool, ap.FeeBps(), c.anchorSwaps)
}

func (c *Calculator) standardSwaps(poolAddress string) ([]*storage.SwapRow, error) {
	return c.store.SwapsSince(poolAddress, time.Now().Add(-Window))
}

func (c *Calculator) anchorSwaps(poolAddress string) ([]*storage.SwapRow, error) {
	return c.store.AnchorSwapsSince(poolAddress, time.Now().Add(-Window))
}

func (c *Calculator) calc(
	p *pool.Pool,
	feeBps int64,
	swaps func(string) ([]*storage.SwapRow, error),
) *PoolStats {
	logger := logging.GetLogger()
	stats := &PoolStats{
		PoolAddress: p.Address.String(),
		TVL:         Unknown,
		Volume24h:   Unknown,
		Fees24h:     Unknown,
		APY:         Unknown,
	}

	priceA, okA := c.price(p.SymbolA)
	priceB, okB := c.price(p.SymbolB)
	priced := okA && okB

	if priced {
		reserveA, reserveB := p.Reserves()
		stats.TVL = cpmm.HumanFloat(reserveA, p.DecimalsA)*priceA +
			cpmm.HumanFloat(reserveB, p.DecimalsB)*priceB
	}

	if c.store == nil {
		return stats
	}
	rows, err := swaps(p.Address.String())
	if err != nil {
		// Stale index: report what we can, the ledger stays the source
		// of truth
		logger.Warnf(
			"failed to read swap events for %s: %s",
			p.Address.Abbrev(),
			err,
		)
		return stats
	}
	stats.SwapCount = len(rows)
	if !priced {
		return stats
	}

	volume := 0.0
	for _, row := range rows {
		if row.AmountIn == nil || row.AmountIn.Sign() <= 0 {
			continue
		}
		if row.TokenIn == p.TokenA.String() {
			volume += cpmm.HumanFloat(row.AmountIn, p.DecimalsA) * priceA
		} else {
			volume += cpmm.HumanFloat(row.AmountIn, p.DecimalsB) * priceB
		}
	}
	stats.Volume24h = volume
	stats.Fees24h = volume * float64(feeBps) / float64(cpmm.BpsDenom)
	if stats.TVL > 0 {
		stats.APY = stats.Fees24h * 365 / stats.TVL * 100
	}
	return stats
}

func (c *Calculator) price(symbol string) (float64, bool) {
	if c.prices == nil {
		return 0, false
	}
	price, ok := c.prices[symbol]
	return price, ok
}