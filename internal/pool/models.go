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
	"math/big"
	"time"

	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

const (
	// defaultDecimals applies when token metadata carries no scale
	defaultDecimals = 9
	// lpDecimals is the scale of every LP token
	lpDecimals = 9
)

// Config carries the trade-protocol tuning shared by all pools built
// from it
type Config struct {
	// FeeTotalBps prices the swap curve
	FeeTotalBps int64
	// FeeProtocolBps is the slice of the swap input sent to the treasury
	// in TX1; the rest of the fee stays in the pool
	FeeProtocolBps int64
	// SettlementDelay is the wait between TX1 publish and TX2
	// construction
	SettlementDelay time.Duration
	// LedgerTimeout bounds every ledger call; zero means no deadline
	LedgerTimeout time.Duration
	// Tx2Retries bounds payout retries before the refund path
	Tx2Retries uint
	// Tx2RetryInterval overrides the initial backoff interval between
	// payout retries; zero keeps the backoff default
	Tx2RetryInterval time.Duration
}

// DefaultConfig returns the standard-pool protocol settings
func DefaultConfig() Config {
	return Config{
		FeeTotalBps:     cpmm.DefaultTotalFeeBps,
		FeeProtocolBps:  cpmm.DefaultProtocolFeeBps,
		SettlementDelay: time.Second,
		LedgerTimeout:   10 * time.Second,
		Tx2Retries:      3,
	}
}

// QuoteResult is the priced view of a prospective swap
type QuoteResult struct {
	PoolAddress ledger.Address
	TokenIn     ledger.Address
	TokenOut    ledger.Address
	AmountIn    *big.Int
	AmountOut   *big.Int
	FeeAmount   *big.Int
	PriceImpact float64
	// MinAmountOut applies the default slippage tolerance
	MinAmountOut *big.Int
}

// SwapResult reports a committed swap
type SwapResult struct {
	PoolAddress ledger.Address
	TokenIn     ledger.Address
	TokenOut    ledger.Address
	AmountIn    *big.Int
	AmountOut   *big.Int
	FeeAmount   *big.Int
	PriceImpact float64
	Tx1Hash     string
	Tx2Hash     string
}

// LiquidityResult reports a committed liquidity change
type LiquidityResult struct {
	PoolAddress ledger.Address
	AmountA     *big.Int
	AmountB     *big.Int
	// Shares is the amount minted (add) or burned (remove)
	Shares *big.Int
	// LockedShares is the permanent first-deposit lock, zero otherwise
	LockedShares *big.Int
	// TotalShares is the LP supply after the operation
	TotalShares *big.Int
	Tx1Hash     string
	Tx2Hash     string
}

// Position is one user's stake in one pool, derived from the ledger
type Position struct {
	PoolAddress  ledger.Address
	TokenA       ledger.Address
	TokenB       ledger.Address
	SymbolA      string
	SymbolB      string
	LPToken      ledger.Address
	Shares       *big.Int
	TotalShares  *big.Int
	SharePercent float64
	AmountA      *big.Int
	AmountB      *big.Int
	DecimalsA    uint
	DecimalsB    uint
}

// PriceUpdate is broadcast after every committed trade or liquidity
// change
type PriceUpdate struct {
	PoolAddress string  `json:"poolAddress"`
	TokenA      string  `json:"tokenA"`
	TokenB      string  `json:"tokenB"`
	SymbolA     string  `json:"symbolA"`
	SymbolB     string  `json:"symbolB"`
	ReserveA    string  `json:"reserveA"`
	ReserveB    string  `json:"reserveB"`
	Price       float64 `json:"price"`
	Time        int64   `json:"time"`
}

// Recorder persists post-trade bookkeeping. The standard implementation
// is *storage.Store; anchor pools substitute a recorder targeting the
// anchor tables.
type Recorder interface {
	SaveSnapshot(poolAddress string, reserveA, reserveB *big.Int) error
	RecordSwap(row *storage.SwapRow) error
}

// UpdateSink receives committed-state notifications from pools
type UpdateSink interface {
	PoolUpdated(update *PriceUpdate)
}
