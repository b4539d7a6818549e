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

// SaveAnchorPool upserts an anchor pool row. Anchor pools are keyed by
// pool address only; multiple anchor pools may cover the same pair.
func (s *Store) SaveAnchorPool(row *AnchorRow) error {
	data, err := marshalValue(row)
	if err != nil {
		return fmt.Errorf("failed to marshal anchor row: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(anchorKeyPrefix+row.PoolAddress), data)
	})
}

// GetAnchorPool loads a single anchor pool row by address
func (s *Store) GetAnchorPool(poolAddress string) (*AnchorRow, error) {
	var row AnchorRow
	found, err := s.getJSON(anchorKeyPrefix+poolAddress, &row)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &row, nil
}

// LoadAnchorPools returns all persisted anchor pool rows
func (s *Store) LoadAnchorPools() ([]*AnchorRow, error) {
	logger := logging.GetLogger()
	var rows []*AnchorRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(anchorKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var row AnchorRow
				if err := unmarshalValue(val, &row); err != nil {
					logger.Warnf(
						"failed to unmarshal anchor row %s: %s",
						string(item.Key()),
						err,
					)
					return nil
				}
				rows = append(rows, &row)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load anchor pools: %w", err)
	}
	return rows, nil
}

// SaveAnchorSnapshot records the current reserves of an anchor pool
func (s *Store) SaveAnchorSnapshot(
	poolAddress string,
	reserveA, reserveB *big.Int,
) error {
	return s.saveSnapshot(anchorSnapKeyPrefix, poolAddress, reserveA, reserveB)
}

// GetAnchorSnapshotAt returns the latest anchor-pool snapshot at or
// before the given number of hours ago
func (s *Store) GetAnchorSnapshotAt(
	poolAddress string,
	hoursAgo float64,
) (*SnapshotRow, error) {
	return s.getSnapshotAt(anchorSnapKeyPrefix, poolAddress, hoursAgo)
}

// RecordAnchorSwap appends an anchor-pool swap event
func (s *Store) RecordAnchorSwap(row *SwapRow) error {
	return s.recordSwap(anchorSwapKeyPrefix, row)
}

// AnchorSwapsSince returns anchor-pool swap events at or after the given
// time
func (s *Store) AnchorSwapsSince(
	poolAddress string,
	since time.Time,
) ([]*SwapRow, error) {
	return s.swapsSince(anchorSwapKeyPrefix, poolAddress, since)
}

// AnchorVolume24h aggregates anchor-pool swap events over the last 24
// hours
func (s *Store) AnchorVolume24h(poolAddress string) (*VolumeStats, error) {
	return s.volumeStats(anchorSwapKeyPrefix, poolAddress)
}
