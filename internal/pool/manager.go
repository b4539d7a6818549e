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
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

// ManagerOpts configures a Manager
type ManagerOpts struct {
	Client   ledger.Client
	Operator ledger.Signer
	Treasury ledger.Address
	Store    *storage.Store
	Config   Config
	// PoolsFile is the JSON fallback read when the repository is empty
	// at startup and rewritten after every pool creation
	PoolsFile string
	// DiscoveryAddresses are candidate storage accounts probed by the
	// background discovery pass
	DiscoveryAddresses []string
	// DiscoveryDelay is the wait before the background pass begins
	DiscoveryDelay time.Duration
}

// Manager owns the pool registry. Lookups take the read side of the
// registry guard; creation and discovery take the write side.
type Manager struct {
	client   ledger.Client
	operator ledger.Signer
	treasury ledger.Address
	store    *storage.Store
	cfg      Config

	poolsFile          string
	discoveryAddresses []string
	discoveryDelay     time.Duration

	poolsMu   sync.RWMutex
	pools     map[string]*Pool
	byAddress map[ledger.Address]*Pool

	subscribers   []chan *PriceUpdate
	subscribersMu sync.RWMutex

	stopChan chan struct{}
	stopped  bool
}

// NewManager creates an empty registry
func NewManager(opts ManagerOpts) *Manager {
	return &Manager{
		client:             opts.Client,
		operator:           opts.Operator,
		treasury:           opts.Treasury,
		store:              opts.Store,
		cfg:                opts.Config,
		poolsFile:          opts.PoolsFile,
		discoveryAddresses: opts.DiscoveryAddresses,
		discoveryDelay:     opts.DiscoveryDelay,
		pools:              make(map[string]*Pool),
		byAddress:          make(map[ledger.Address]*Pool),
		stopChan:           make(chan struct{}),
	}
}

// Initialize loads persisted pools, repository first with the JSON file
// as fallback, and schedules the background discovery pass. Rows without
// an LP token address are legacy entries and are not activated.
func (m *Manager) Initialize(ctx context.Context) error {
	logger := logging.GetLogger()
	var rows []*storage.PoolRow
	if m.store != nil {
		var err error
		rows, err = m.store.LoadPools()
		if err != nil {
			logger.Warnf("failed to load pools from repository: %s", err)
		}
	}
	if len(rows) == 0 && m.poolsFile != "" {
		fileRows, err := storage.ReadPoolsFile(m.poolsFile)
		if err != nil {
			logger.Warnf("failed to read pools file: %s", err)
		} else if len(fileRows) > 0 {
			logger.Infof(
				"repository empty, loaded %d pools from %s",
				len(fileRows),
				m.poolsFile,
			)
			rows = fileRows
		}
	}

	loaded := 0
	for _, row := range rows {
		if row.LPTokenAddress == "" {
			logger.Debugf(
				"skipping legacy pool %s without LP token",
				row.PoolAddress,
			)
			continue
		}
		p := m.poolFromRow(row)
		if err := p.Init(ctx); err != nil {
			// Keep it registered; reserves load lazily on first use
			logger.Warnf(
				"failed to initialize pool %s: %s",
				p.Address.Abbrev(),
				err,
			)
		}
		m.register(p)
		loaded++
	}
	logger.Infof("pool manager initialized with %d pools", loaded)

	if len(m.discoveryAddresses) > 0 {
		go func() {
			select {
			case <-time.After(m.discoveryDelay):
			case <-m.stopChan:
				return
			}
			if err := m.DiscoverPools(context.Background()); err != nil {
				logger.Warnf("pool discovery failed: %s", err)
			}
		}()
	}
	return nil
}

// Stop shuts the manager down and closes all subscriber channels.
// Idempotent.
func (m *Manager) Stop() {
	m.poolsMu.Lock()
	if m.stopped {
		m.poolsMu.Unlock()
		return
	}
	m.stopped = true
	m.poolsMu.Unlock()

	close(m.stopChan)

	m.subscribersMu.Lock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	m.subscribersMu.Unlock()
}

// poolFromRow rehydrates a Pool from its persisted identity
func (m *Manager) poolFromRow(row *storage.PoolRow) *Pool {
	return New(
		Params{
			Address:   ledger.Address(row.PoolAddress),
			TokenA:    ledger.Address(row.TokenA),
			TokenB:    ledger.Address(row.TokenB),
			LPToken:   ledger.Address(row.LPTokenAddress),
			Creator:   ledger.Address(row.Creator),
			SymbolA:   row.SymbolA,
			SymbolB:   row.SymbolB,
			DecimalsA: row.DecimalsA,
			DecimalsB: row.DecimalsB,
		},
		Deps{
			Client:   m.client,
			Operator: m.operator,
			Treasury: m.treasury,
			Store:    m.store,
			Sink:     m,
		},
		m.cfg,
	)
}

// rowFromPool is the inverse of poolFromRow
func rowFromPool(p *Pool) *storage.PoolRow {
	return &storage.PoolRow{
		PoolAddress:    p.Address.String(),
		TokenA:         p.TokenA.String(),
		TokenB:         p.TokenB.String(),
		LPTokenAddress: p.LPToken.String(),
		Creator:        p.Creator.String(),
		SymbolA:        p.SymbolA,
		SymbolB:        p.SymbolB,
		DecimalsA:      p.DecimalsA,
		DecimalsB:      p.DecimalsB,
	}
}

// register adds a pool to both registry indexes
func (m *Manager) register(p *Pool) {
	m.poolsMu.Lock()
	defer m.poolsMu.Unlock()
	m.pools[ledger.PairKey(p.TokenA, p.TokenB)] = p
	m.byAddress[p.Address] = p
}

// CreatePool creates the on-ledger accounts for a new pair and registers
// the pool. The storage account is owned by the creator with delegated
// send granted to the operator; the LP token is bound to the pool by its
// metadata. Persistence failures after the ledger accounts exist do not
// undo the creation.
func (m *Manager) CreatePool(
	ctx context.Context,
	tokenA, tokenB ledger.Address,
	creator ledger.Address,
) (*Pool, error) {
	logger := logging.GetLogger()
	if tokenA == tokenB {
		return nil, fmt.Errorf(
			"%w: pool needs two distinct tokens",
			ErrInvalidInput,
		)
	}
	a, b := ledger.SortPair(tokenA, tokenB)
	if m.HasPool(a, b) {
		return nil, fmt.Errorf(
			"%w: pair %s/%s",
			ErrPoolAlreadyExists,
			a.Abbrev(),
			b.Abbrev(),
		)
	}

	symbolA, decimalsA, err := m.tokenMeta(ctx, a)
	if err != nil {
		return nil, err
	}
	symbolB, decimalsB, err := m.tokenMeta(ctx, b)
	if err != nil {
		return nil, err
	}

	poolAddr, err := m.client.CreateStorageAccount(ctx, ledger.StorageAccountOpts{
		Name: fmt.Sprintf("%s/%s pool", symbolA, symbolB),
		Description: fmt.Sprintf(
			"liquidity pool for %s/%s",
			symbolA,
			symbolB,
		),
		GrantOperatorSendOnBehalf: true,
		Owner:                     creator,
	})
	if err != nil {
		return nil, fmt.Errorf("pool account creation failed: %w", err)
	}
	lpToken, err := m.client.CreateLPToken(ctx, poolAddr, a, b, lpDecimals)
	if err != nil {
		return nil, fmt.Errorf("LP token creation failed: %w", err)
	}

	p := New(
		Params{
			Address:   poolAddr,
			TokenA:    a,
			TokenB:    b,
			LPToken:   lpToken,
			Creator:   creator,
			SymbolA:   symbolA,
			SymbolB:   symbolB,
			DecimalsA: decimalsA,
			DecimalsB: decimalsB,
		},
		Deps{
			Client:   m.client,
			Operator: m.operator,
			Treasury: m.treasury,
			Store:    m.store,
			Sink:     m,
		},
		m.cfg,
	)
	if err := p.Init(ctx); err != nil {
		logger.Warnf(
			"initial reserve read failed for new pool %s: %s",
			poolAddr.Abbrev(),
			err,
		)
	}
	m.register(p)
	m.persistPool(p)

	if m.store != nil {
		if err := m.store.AppendHistory(&storage.HistoryRow{
			Kind: "create",
			Pool: poolAddr.Abbrev(),
			User: creator.Abbrev(),
			Summary: fmt.Sprintf(
				"created pool %s/%s",
				symbolA,
				symbolB,
			),
		}); err != nil {
			logger.Warnf("history write failed: %s", err)
		}
	}
	logger.Infof(
		"created pool %s for %s/%s with LP token %s",
		poolAddr.Abbrev(),
		symbolA,
		symbolB,
		lpToken.Abbrev(),
	)
	return p, nil
}

// callCtx applies the configured per-call ledger deadline
func (m *Manager) callCtx(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	if m.cfg.LedgerTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.cfg.LedgerTimeout)
}

// tokenMeta fetches a token's symbol and decimals. A missing account is
// a hard error; unreadable metadata falls back to defaults.
func (m *Manager) tokenMeta(
	ctx context.Context,
	token ledger.Address,
) (string, uint, error) {
	callCtx, cancel := m.callCtx(ctx)
	defer cancel()
	info, err := m.client.AccountInfo(callCtx, ledger.Account{Address: token})
	if err != nil {
		return "", 0, fmt.Errorf(
			"%w: token %s: %s",
			ErrInvalidInput,
			token.Abbrev(),
			err,
		)
	}
	meta, ok := ledger.DecodeTokenMetadata(info.Metadata)
	if !ok {
		return "", defaultDecimals, nil
	}
	decimals := meta.Decimals
	if decimals == 0 {
		decimals = defaultDecimals
	}
	return meta.Symbol, decimals, nil
}

// persistPool writes the pool row to the repository and rewrites the
// fallback file. Both are non-critical; the ledger accounts already
// exist.
func (m *Manager) persistPool(p *Pool) {
	logger := logging.GetLogger()
	if m.store != nil {
		if err := m.store.SavePool(rowFromPool(p)); err != nil {
			logger.Warnf(
				"failed to persist pool %s: %s",
				p.Address.Abbrev(),
				err,
			)
		}
	}
	if m.poolsFile != "" {
		rows := make([]*storage.PoolRow, 0)
		for _, pool := range m.AllPools() {
			rows = append(rows, rowFromPool(pool))
		}
		if err := storage.WritePoolsFile(m.poolsFile, rows); err != nil {
			logger.Warnf("failed to write pools file: %s", err)
		}
	}
}

// GetPool returns the pool for an unordered token pair
func (m *Manager) GetPool(tokenA, tokenB ledger.Address) (*Pool, error) {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()
	p, ok := m.pools[ledger.PairKey(tokenA, tokenB)]
	if !ok {
		return nil, fmt.Errorf(
			"%w: no pool for %s/%s",
			ErrPoolNotFound,
			tokenA.Abbrev(),
			tokenB.Abbrev(),
		)
	}
	return p, nil
}

// GetPoolByAddress returns the pool at a storage account address
func (m *Manager) GetPoolByAddress(addr ledger.Address) (*Pool, error) {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()
	p, ok := m.byAddress[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, addr.Abbrev())
	}
	return p, nil
}

// HasPool reports whether a pool exists for the pair
func (m *Manager) HasPool(tokenA, tokenB ledger.Address) bool {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()
	_, ok := m.pools[ledger.PairKey(tokenA, tokenB)]
	return ok
}

// AllPools returns every registered pool, ordered by pair key
func (m *Manager) AllPools() []*Pool {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()
	keys := make([]string, 0, len(m.pools))
	for key := range m.pools {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pools := make([]*Pool, 0, len(keys))
	for _, key := range keys {
		pools = append(pools, m.pools[key])
	}
	return pools
}

// PoolCount returns the number of registered pools
func (m *Manager) PoolCount() int {
	m.poolsMu.RLock()
	defer m.poolsMu.RUnlock()
	return len(m.pools)
}

// SwapRoute resolves the pool for a swap. Only direct pairs are routed.
func (m *Manager) SwapRoute(
	tokenIn, tokenOut ledger.Address,
) (*Pool, error) {
	if tokenIn == tokenOut {
		return nil, fmt.Errorf(
			"%w: cannot swap a token for itself",
			ErrInvalidInput,
		)
	}
	return m.GetPool(tokenIn, tokenOut)
}

// History returns the most recent entries of the transaction log
func (m *Manager) History(limit int) ([]*storage.HistoryRow, error) {
	if m.store == nil {
		return nil, nil
	}
	return m.store.History(limit)
}

// PoolUpdated broadcasts a committed pool change to subscribers
func (m *Manager) PoolUpdated(update *PriceUpdate) {
	m.notifySubscribers(update)
}

// notifySubscribers sends an update to all subscribers without blocking
func (m *Manager) notifySubscribers(update *PriceUpdate) {
	m.subscribersMu.RLock()
	defer m.subscribersMu.RUnlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- update:
		default:
			// Channel full, skip
		}
	}
}

// Subscribe returns a channel that receives pool updates
func (m *Manager) Subscribe() <-chan *PriceUpdate {
	ch := make(chan *PriceUpdate, 100)
	m.subscribersMu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.subscribersMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription channel
func (m *Manager) Unsubscribe(ch <-chan *PriceUpdate) {
	m.subscribersMu.Lock()
	defer m.subscribersMu.Unlock()
	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(
				m.subscribers[:i],
				m.subscribers[i+1:]...,
			)
			close(sub)
			break
		}
	}
}
