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
	"fmt"
	"math/big"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestSavePoolAndLoad(t *testing.T) {
	s := newTestStore(t)

	row := &PoolRow{
		PoolAddress:    "kta1pool",
		TokenA:         "kta1aaa",
		TokenB:         "kta1bbb",
		LPTokenAddress: "kta1lp",
		Creator:        "kta1creator",
		SymbolA:        "TKA",
		SymbolB:        "TKB",
		DecimalsA:      9,
		DecimalsB:      6,
	}
	if err := s.SavePool(row); err != nil {
		t.Fatalf("failed to save pool: %v", err)
	}

	loaded, err := s.LoadPools()
	if err != nil {
		t.Fatalf("failed to load pools: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(loaded))
	}
	if loaded[0].PoolAddress != "kta1pool" || loaded[0].SymbolB != "TKB" {
		t.Errorf("unexpected row: %+v", loaded[0])
	}

	// Upsert keeps a single row
	row.LPTokenAddress = "kta1lp2"
	if err := s.SavePool(row); err != nil {
		t.Fatalf("failed to upsert pool: %v", err)
	}
	loaded, err = s.LoadPools()
	if err != nil {
		t.Fatalf("failed to load pools: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 pool after upsert, got %d", len(loaded))
	}
	if loaded[0].LPTokenAddress != "kta1lp2" {
		t.Errorf("upsert didn't replace row: %+v", loaded[0])
	}
}

func TestGetPoolByPair(t *testing.T) {
	s := newTestStore(t)

	row := &PoolRow{
		PoolAddress: "kta1pool",
		TokenA:      "kta1aaa",
		TokenB:      "kta1bbb",
	}
	if err := s.SavePool(row); err != nil {
		t.Fatalf("failed to save pool: %v", err)
	}

	// Lookup works in both orders
	for _, pair := range [][2]string{
		{"kta1aaa", "kta1bbb"},
		{"kta1bbb", "kta1aaa"},
	} {
		found, err := s.GetPoolByPair(pair[0], pair[1])
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if found == nil || found.PoolAddress != "kta1pool" {
			t.Errorf("pair (%s, %s) not resolved", pair[0], pair[1])
		}
	}

	missing, err := s.GetPoolByPair("kta1ccc", "kta1ddd")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected no pool, got %+v", missing)
	}
}

func TestSnapshotDedup(t *testing.T) {
	s := newTestStore(t)

	// Two snapshots in the same second keep the first
	if err := s.SaveSnapshot(
		"kta1pool",
		big.NewInt(100),
		big.NewInt(200),
	); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	if err := s.SaveSnapshot(
		"kta1pool",
		big.NewInt(999),
		big.NewInt(999),
	); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}

	snap, err := s.GetSnapshotAt("kta1pool", 0)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if snap == nil {
		t.Fatal("expected a snapshot")
	}
	if snap.ReserveA.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("dedup failed, got reserveA %s", snap.ReserveA)
	}
}

func TestGetSnapshotAtCutoff(t *testing.T) {
	s := newTestStore(t)

	// A snapshot taken now is not visible one hour ago
	if err := s.SaveSnapshot(
		"kta1pool",
		big.NewInt(100),
		big.NewInt(200),
	); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}
	snap, err := s.GetSnapshotAt("kta1pool", 1)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if snap != nil {
		t.Errorf("expected no snapshot before cutoff, got %+v", snap)
	}
}

func TestRecordSwapAndVolume(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		err := s.RecordSwap(&SwapRow{
			PoolAddress:  "kta1pool",
			TokenIn:      "kta1aaa",
			TokenOut:     "kta1bbb",
			AmountIn:     big.NewInt(1_000_000),
			AmountOut:    big.NewInt(990_000),
			FeeCollected: big.NewInt(3_000),
			User:         "kta1user",
			TxHash:       fmt.Sprintf("hash%d", i),
		})
		if err != nil {
			t.Fatalf("failed to record swap: %v", err)
		}
	}
	// Another pool's swaps don't leak into the window
	err := s.RecordSwap(&SwapRow{
		PoolAddress: "kta1other",
		AmountIn:    big.NewInt(5),
	})
	if err != nil {
		t.Fatalf("failed to record swap: %v", err)
	}

	stats, err := s.Volume24h("kta1pool")
	if err != nil {
		t.Fatalf("failed to read volume: %v", err)
	}
	if stats.SwapCount != 3 {
		t.Errorf("expected 3 swaps, got %d", stats.SwapCount)
	}
	if stats.VolumeIn.Cmp(big.NewInt(3_000_000)) != 0 {
		t.Errorf("expected volume 3000000, got %s", stats.VolumeIn)
	}
	if stats.Fees.Cmp(big.NewInt(9_000)) != 0 {
		t.Errorf("expected fees 9000, got %s", stats.Fees)
	}

	rows, err := s.SwapsSince("kta1pool", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to read swaps: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(rows))
	}
}

func TestAnchorMirrors(t *testing.T) {
	s := newTestStore(t)

	row := &AnchorRow{
		PoolRow: PoolRow{
			PoolAddress: "kta1anchor",
			TokenA:      "kta1aaa",
			TokenB:      "kta1bbb",
			Creator:     "kta1creator",
		},
		FeeBps: 100,
		Status: "active",
	}
	if err := s.SaveAnchorPool(row); err != nil {
		t.Fatalf("failed to save anchor pool: %v", err)
	}

	loaded, err := s.LoadAnchorPools()
	if err != nil {
		t.Fatalf("failed to load anchor pools: %v", err)
	}
	if len(loaded) != 1 || loaded[0].FeeBps != 100 {
		t.Fatalf("unexpected anchor rows: %+v", loaded)
	}

	// Anchor events stay out of the standard tables
	err = s.RecordAnchorSwap(&SwapRow{
		PoolAddress: "kta1anchor",
		AmountIn:    big.NewInt(500),
	})
	if err != nil {
		t.Fatalf("failed to record anchor swap: %v", err)
	}
	stats, err := s.Volume24h("kta1anchor")
	if err != nil {
		t.Fatalf("failed to read volume: %v", err)
	}
	if stats.SwapCount != 0 {
		t.Errorf("anchor swap leaked into standard volume")
	}
	anchorStats, err := s.AnchorVolume24h("kta1anchor")
	if err != nil {
		t.Fatalf("failed to read anchor volume: %v", err)
	}
	if anchorStats.SwapCount != 1 {
		t.Errorf("expected 1 anchor swap, got %d", anchorStats.SwapCount)
	}
}

func TestHistoryCap(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < HistoryCap+10; i++ {
		err := s.AppendHistory(&HistoryRow{
			Kind:    "swap",
			Pool:    "kta1pool",
			Summary: fmt.Sprintf("entry %d", i),
		})
		if err != nil {
			t.Fatalf("failed to append history: %v", err)
		}
	}

	rows, err := s.History(0)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(rows) != HistoryCap {
		t.Fatalf("expected %d rows, got %d", HistoryCap, len(rows))
	}
	// Newest first
	if rows[0].Summary != fmt.Sprintf("entry %d", HistoryCap+9) {
		t.Errorf("unexpected newest entry: %s", rows[0].Summary)
	}

	limited, err := s.History(5)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(limited) != 5 {
		t.Errorf("expected 5 rows, got %d", len(limited))
	}
}

func TestHistorySeqSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.AppendHistory(&HistoryRow{
			Summary: fmt.Sprintf("entry %d", i),
		}); err != nil {
			t.Fatalf("failed to append history: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	s, err = NewStore(dir)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer func() {
		_ = s.Close()
	}()
	if err := s.AppendHistory(&HistoryRow{Summary: "after reopen"}); err != nil {
		t.Fatalf("failed to append history: %v", err)
	}
	rows, err := s.History(0)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows after reopen, got %d", len(rows))
	}
	if rows[0].Summary != "after reopen" {
		t.Errorf("unexpected newest entry: %s", rows[0].Summary)
	}
}

func TestLPPositionHint(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveLPPositionHint("kta1pool", "kta1user", "123456")
	if err != nil {
		t.Fatalf("failed to save hint: %v", err)
	}
	shares, err := s.GetLPPositionHint("kta1pool", "kta1user")
	if err != nil {
		t.Fatalf("failed to read hint: %v", err)
	}
	if shares != "123456" {
		t.Errorf("expected 123456, got %s", shares)
	}

	missing, err := s.GetLPPositionHint("kta1pool", "kta1nobody")
	if err != nil {
		t.Fatalf("failed to read hint: %v", err)
	}
	if missing != "" {
		t.Errorf("expected empty hint, got %s", missing)
	}
}

func TestPoolsFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.json")

	rows := []*PoolRow{
		{
			PoolAddress: "kta1pool1",
			TokenA:      "kta1aaa",
			TokenB:      "kta1bbb",
		},
		{
			PoolAddress: "kta1pool2",
			TokenA:      "kta1ccc",
			TokenB:      "kta1ddd",
		},
	}
	if err := WritePoolsFile(path, rows); err != nil {
		t.Fatalf("failed to write pools file: %v", err)
	}

	loaded, err := ReadPoolsFile(path)
	if err != nil {
		t.Fatalf("failed to read pools file: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(loaded))
	}

	// Missing file reads as empty
	none, err := ReadPoolsFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil rows, got %v", none)
	}
}
