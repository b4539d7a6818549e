// Copyright 2025 Blink Labs Software
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

// Package storage is the durable index behind the pool registry: pool
// rows, LP position hints, reserve snapshots, swap events, anchor pool
// mirrors, and the capped transaction history. The ledger remains the
// source of truth; everything here is rebuildable.
package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/tidepool/internal/config"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/dgraph-io/badger/v4"
)

const (
	poolKeyPrefix       = "pool_"
	pairKeyPrefix       = "pair_"
	lpHintKeyPrefix     = "lphint_"
	snapshotKeyPrefix   = "snapshot_"
	swapKeyPrefix       = "swap_"
	anchorKeyPrefix     = "anchor_"
	anchorSnapKeyPrefix = "anchorsnap_"
	anchorSwapKeyPrefix = "anchorswap_"
	historyKeyPrefix    = "history_"

	badgerGCInterval     = 5 * time.Minute
	badgerGCDiscardRatio = 0.5
)

type Store struct {
	db         *badger.DB
	historyMu  sync.Mutex
	historySeq uint64
	swapMu     sync.Mutex
	swapSeq    uint64
	stopGC     chan struct{}
	gcOnce     sync.Once
}

var globalStore = &Store{}

// Load opens the store at the configured directory
func (s *Store) Load() error {
	cfg := config.GetConfig()
	return s.open(cfg.Storage.Directory)
}

// NewStore opens a store at an explicit directory
func NewStore(dir string) (*Store, error) {
	s := &Store{}
	if err := s.open(dir); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) open(dir string) error {
	badgerOpts := badger.DefaultOptions(dir).
		WithLogger(NewBadgerLogger()).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		return err
	}
	s.db = db
	s.stopGC = make(chan struct{})
	if err := s.loadHistorySeq(); err != nil {
		return err
	}
	go s.gcLoop()
	return nil
}

// Close stops background GC and closes the database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.gcOnce.Do(func() {
		close(s.stopGC)
	})
	return s.db.Close()
}

// gcLoop reclaims badger value log space periodically
func (s *Store) gcLoop() {
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC rewrites at most one file per call
			for {
				if err := s.db.RunValueLogGC(badgerGCDiscardRatio); err != nil {
					break
				}
			}
		}
	}
}

// getJSON loads and unmarshals a single key, reporting found=false for
// missing keys
func (s *Store) getJSON(key string, out any) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return unmarshalValue(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) setJSON(key string, val any) error {
	data, err := marshalValue(val)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func GetStore() *Store {
	return globalStore
}

// BadgerLogger is a wrapper type to give our logger the expected interface
type BadgerLogger struct {
	logger *logging.Logger
}

func NewBadgerLogger() *BadgerLogger {
	return &BadgerLogger{
		logger: logging.GetLogger(),
	}
}

func (b *BadgerLogger) Infof(msg string, args ...any) {
	b.logger.Infof(msg, args...)
}

func (b *BadgerLogger) Warningf(msg string, args ...any) {
	b.logger.Warnf(msg, args...)
}

func (b *BadgerLogger) Debugf(msg string, args ...any) {
	b.logger.Debugf(msg, args...)
}

func (b *BadgerLogger) Errorf(msg string, args ...any) {
	b.logger.Errorf(msg, args...)
}
