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

package storage

import (
	"math/big"
)

// PoolRow is the durable index entry for a pool. Reserves are not
// persisted here; the ledger is their source of truth.
type PoolRow struct {
	PoolAddress    string `json:"poolAddress"`
	TokenA         string `json:"tokenA"`
	TokenB         string `json:"tokenB"`
	LPTokenAddress string `json:"lpTokenAddress"`
	Creator        string `json:"creator"`
	SymbolA        string `json:"symbolA"`
	SymbolB        string `json:"symbolB"`
	DecimalsA      uint   `json:"decimalsA"`
	DecimalsB      uint   `json:"decimalsB"`
}

// SnapshotRow is one timestamped reserve observation
type SnapshotRow struct {
	PoolAddress string   `json:"poolAddress"`
	Time        int64    `json:"time"`
	ReserveA    *big.Int `json:"reserveA"`
	ReserveB    *big.Int `json:"reserveB"`
}

// SwapRow is one recorded swap event
type SwapRow struct {
	PoolAddress  string   `json:"poolAddress"`
	TokenIn      string   `json:"tokenIn"`
	TokenOut     string   `json:"tokenOut"`
	AmountIn     *big.Int `json:"amountIn"`
	AmountOut    *big.Int `json:"amountOut"`
	FeeCollected *big.Int `json:"feeCollected"`
	User         string   `json:"user"`
	TxHash       string   `json:"txHash"`
	Time         int64    `json:"time"`
}

// VolumeStats aggregates swap events over a window
type VolumeStats struct {
	SwapCount int
	VolumeIn  *big.Int
	Fees      *big.Int
}

// AnchorRow is the durable index entry for an anchor pool
type AnchorRow struct {
	PoolRow
	FeeBps int64  `json:"feeBps"`
	Status string `json:"status"`
}

// HistoryRow is one line of the capped transaction log. Addresses are
// abbreviated and amounts human-scaled at write time.
type HistoryRow struct {
	Time    int64  `json:"time"`
	Kind    string `json:"kind"`
	Pool    string `json:"pool"`
	User    string `json:"user"`
	Summary string `json:"summary"`
}
