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
	"encoding/json"
	"fmt"

	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/dgraph-io/badger/v4"
)

func marshalValue(val any) ([]byte, error) {
	return json.Marshal(val)
}

func unmarshalValue(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

// SavePool upserts a pool row and its pair index entry
func (s *Store) SavePool(row *PoolRow) error {
	data, err := marshalValue(row)
	if err != nil {
		return fmt.Errorf("failed to marshal pool row: %w", err)
	}
	pairKey := ledger.PairKey(
		ledger.Address(row.TokenA),
		ledger.Address(row.TokenB),
	)
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(
			[]byte(poolKeyPrefix+row.PoolAddress),
			data,
		); err != nil {
			return err
		}
		return txn.Set(
			[]byte(pairKeyPrefix+pairKey),
			[]byte(row.PoolAddress),
		)
	})
}

// GetPool loads a single pool row by address
func (s *Store) GetPool(poolAddress string) (*PoolRow, error) {
	var row PoolRow
	found, err := s.getJSON(poolKeyPrefix+poolAddress, &row)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &row, nil
}

// LoadPools returns all persisted pool rows
func (s *Store) LoadPools() ([]*PoolRow, error) {
	logger := logging.GetLogger()
	var rows []*PoolRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(poolKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var row PoolRow
				if err := unmarshalValue(val, &row); err != nil {
					logger.Warnf(
						"failed to unmarshal pool row %s: %s",
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
		return nil, fmt.Errorf("failed to load pools: %w", err)
	}
	return rows, nil
}

// GetPoolByPair resolves the unordered token pair to its pool row
func (s *Store) GetPoolByPair(tokenA, tokenB string) (*PoolRow, error) {
	pairKey := ledger.PairKey(
		ledger.Address(tokenA),
		ledger.Address(tokenB),
	)
	var poolAddress string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(pairKeyPrefix + pairKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			poolAddress = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetPool(poolAddress)
}

// SaveLPPositionHint caches a user's LP share count for listing
// acceleration. The on-ledger LP token balance remains authoritative.
func (s *Store) SaveLPPositionHint(
	poolAddress, user, shares string,
) error {
	key := lpHintKeyPrefix + poolAddress + "_" + user
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(shares))
	})
}

// GetLPPositionHint reads a cached share count, empty if absent
func (s *Store) GetLPPositionHint(poolAddress, user string) (string, error) {
	key := lpHintKeyPrefix + poolAddress + "_" + user
	var shares string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			shares = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return shares, nil
}
