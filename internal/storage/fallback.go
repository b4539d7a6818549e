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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blinklabs-io/tidepool/internal/ledger"
)

// The pools file is a belt-and-braces fallback for the pool index: a
// JSON map keyed by pair key, rewritten after every pool creation and
// read only when the repository is unreachable or empty at startup.

// WritePoolsFile writes the full pool set to the fallback file
func WritePoolsFile(path string, rows []*PoolRow) error {
	byPair := make(map[string]*PoolRow, len(rows))
	for _, row := range rows {
		pairKey := ledger.PairKey(
			ledger.Address(row.TokenA),
			ledger.Address(row.TokenB),
		)
		byPair[pairKey] = row
	}
	data, err := json.MarshalIndent(byPair, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pools file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Write-then-rename so a crash never leaves a truncated file
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadPoolsFile loads pool rows from the fallback file. A missing file
// is not an error.
func ReadPoolsFile(path string) ([]*PoolRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var byPair map[string]*PoolRow
	if err := json.Unmarshal(data, &byPair); err != nil {
		return nil, fmt.Errorf("failed to parse pools file: %w", err)
	}
	rows := make([]*PoolRow, 0, len(byPair))
	for _, row := range byPair {
		rows = append(rows, row)
	}
	return rows, nil
}
