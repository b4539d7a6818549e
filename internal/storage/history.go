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
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/dgraph-io/badger/v4"
)

// HistoryCap bounds the transaction log to the most recent entries
const HistoryCap = 1000

func historyKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", historyKeyPrefix, seq))
}

// loadHistorySeq recovers the last used history sequence number after a
// restart
func (s *Store) loadHistorySeq() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyKeyPrefix)
		// Keys are zero-padded, so the last key holds the max sequence
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		// Seek to the end of the history key range
		it.Seek([]byte(historyKeyPrefix + "~"))
		if !it.Valid() {
			return nil
		}
		key := string(it.Item().Key())
		seq, err := strconv.ParseUint(
			strings.TrimPrefix(key, historyKeyPrefix),
			10,
			64,
		)
		if err != nil {
			return fmt.Errorf("failed to parse history key %s: %w", key, err)
		}
		s.historySeq = seq
		return nil
	})
}

// AppendHistory adds one entry to the capped transaction log, evicting
// the oldest entry beyond the cap
func (s *Store) AppendHistory(row *HistoryRow) error {
	if row.Time == 0 {
		row.Time = time.Now().Unix()
	}
	data, err := marshalValue(row)
	if err != nil {
		return fmt.Errorf("failed to marshal history row: %w", err)
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.historySeq++
	seq := s.historySeq
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(historyKey(seq), data); err != nil {
			return err
		}
		if seq > HistoryCap {
			evict := historyKey(seq - HistoryCap)
			if err := txn.Delete(evict); err != nil &&
				err != badger.ErrKeyNotFound {
				return err
			}
		}
		return nil
	})
}

// History returns up to limit log entries, newest first. A limit of 0
// returns everything retained.
func (s *Store) History(limit int) ([]*HistoryRow, error) {
	logger := logging.GetLogger()
	if limit <= 0 || limit > HistoryCap {
		limit = HistoryCap
	}
	var rows []*HistoryRow
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(historyKeyPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(historyKeyPrefix + "~")); it.Valid(); it.Next() {
			if len(rows) >= limit {
				break
			}
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var row HistoryRow
				if err := unmarshalValue(val, &row); err != nil {
					logger.Warnf(
						"failed to unmarshal history row %s: %s",
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
		return nil, err
	}
	return rows, nil
}
