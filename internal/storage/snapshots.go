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
	"time"

	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/dgraph-io/badger/v4"
)

func snapshotKey(prefix, poolAddress string, unixSec int64) []byte {
	return []byte(fmt.Sprintf("%s%s_%020d", prefix, poolAddress, unixSec))
}

func swapKey(prefix, poolAddress string, unixNano int64, seq uint64) []byte {
	return []byte(
		fmt.Sprintf("%s%s_%020d_%06d", prefix, poolAddress, unixNano, seq),
	)
}

// saveSnapshot inserts a reserve observation under the given key prefix,
// deduplicating at second resolution
func (s *Store) saveSnapshot(
	prefix, poolAddress string,
	reserveA, reserveB *big.Int,
) error {
	now := time.Now().Unix()
	row := &SnapshotRow{
		PoolAddress: poolAddress,
		Time:        now,
		ReserveA:    new(big.Int).Set(reserveA),
		ReserveB:    new(big.Int).Set(reserveB),
	}
	data, err := marshalValue(row)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	key := snapshotKey(prefix, poolAddress, now)
	return s.db.Update(func(txn *badger.Txn) error {
		// Dedup: a snapshot already taken this second wins
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
}

// SaveSnapshot records the current reserves of a standard pool
func (s *Store) SaveSnapshot(
	poolAddress string,
	reserveA, reserveB *big.Int,
) error {
	return s.saveSnapshot(snapshotKeyPrefix, poolAddress, reserveA, reserveB)
}

// getSnapshotAt returns the latest snapshot at or before the cutoff
func (s *Store) getSnapshotAt(
	prefix, poolAddress string,
	hoursAgo float64,
) (*SnapshotRow, error) {
	cutoff := time.Now().
		Add(-time.Duration(hoursAgo * float64(time.Hour))).
		Unix()
	var latest *SnapshotRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix + poolAddress + "_")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var row SnapshotRow
			err := it.Item().Value(func(val []byte) error {
				return unmarshalValue(val, &row)
			})
			if err != nil {
				continue
			}
			// Keys sort by zero-padded time, so rows arrive oldest first
			if row.Time > cutoff {
				break
			}
			tmpRow := row
			latest = &tmpRow
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return latest, nil
}

// GetSnapshotAt returns the latest standard-pool snapshot at or before
// the given number of hours ago
func (s *Store) GetSnapshotAt(
	poolAddress string,
	hoursAgo float64,
) (*SnapshotRow, error) {
	return s.getSnapshotAt(snapshotKeyPrefix, poolAddress, hoursAgo)
}

// recordSwap appends a swap event row under the given key prefix
func (s *Store) recordSwap(prefix string, row *SwapRow) error {
	if row.Time == 0 {
		row.Time = time.Now().Unix()
	}
	data, err := marshalValue(row)
	if err != nil {
		return fmt.Errorf("failed to marshal swap row: %w", err)
	}
	s.swapMu.Lock()
	s.swapSeq++
	seq := s.swapSeq
	s.swapMu.Unlock()
	key := swapKey(prefix, row.PoolAddress, time.Now().UnixNano(), seq)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// RecordSwap appends a standard-pool swap event
func (s *Store) RecordSwap(row *SwapRow) error {
	return s.recordSwap(swapKeyPrefix, row)
}

// swapsSince returns all swap rows for a pool recorded at or after the
// given time
func (s *Store) swapsSince(
	prefix, poolAddress string,
	since time.Time,
) ([]*SwapRow, error) {
	logger := logging.GetLogger()
	cutoff := since.Unix()
	var rows []*SwapRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix + poolAddress + "_")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var row SwapRow
				if err := unmarshalValue(val, &row); err != nil {
					logger.Warnf(
						"failed to unmarshal swap row %s: %s",
						string(item.Key()),
						err,
					)
					return nil
				}
				if row.Time >= cutoff {
					rows = append(rows, &row)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SwapsSince returns standard-pool swap events at or after the given time
func (s *Store) SwapsSince(
	poolAddress string,
	since time.Time,
) ([]*SwapRow, error) {
	return s.swapsSince(swapKeyPrefix, poolAddress, since)
}

// volumeStats aggregates swap rows over the trailing 24 hours. Sums are
// raw atomic units across both input tokens; callers needing a common
// unit convert per event via SwapsSince.
func (s *Store) volumeStats(prefix, poolAddress string) (*VolumeStats, error) {
	rows, err := s.swapsSince(
		prefix,
		poolAddress,
		time.Now().Add(-24*time.Hour),
	)
	if err != nil {
		return nil, err
	}
	stats := &VolumeStats{
		VolumeIn: new(big.Int),
		Fees:     new(big.Int),
	}
	for _, row := range rows {
		stats.SwapCount++
		if row.AmountIn != nil {
			stats.VolumeIn.Add(stats.VolumeIn, row.AmountIn)
		}
		if row.FeeCollected != nil {
			stats.Fees.Add(stats.Fees, row.FeeCollected)
		}
	}
	return stats, nil
}

// Volume24h aggregates standard-pool swap events over the last 24 hours
func (s *Store) Volume24h(poolAddress string) (*VolumeStats, error) {
	return s.volumeStats(swapKeyPrefix, poolAddress)
}
