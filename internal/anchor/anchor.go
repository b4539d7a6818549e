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

// Package anchor implements creator-managed pools: the same
// constant-product venue as the standard registry, but with a per-pool
// fee in place of the protocol split, a lifecycle status gating trades,
// and no one-pool-per-pair restriction. Events and snapshots go to the
// anchor tables so anchor volume never mixes with standard volume.
package anchor

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

// Status is an anchor pool's lifecycle state
type Status string

const (
	// StatusActive accepts swaps and deposits
	StatusActive Status = "active"

	// StatusPaused rejects swaps and deposits; reversible
	StatusPaused Status = "paused"

	// StatusClosed is terminal; only withdrawals remain possible
	StatusClosed Status = "closed"
)

const (
	// MinFeeBps and MaxFeeBps bound the creator-chosen swap fee
	MinFeeBps = 1
	MaxFeeBps = 1000

	defaultDecimals = 9
	lpDecimals      = 9
)

// Pool is an anchor pool: a standard pool plus the creator-managed fee
// and status
type Pool struct {
	*pool.Pool

	mu     sync.RWMutex
	feeBps int64
	status Status
}

// FeeBps returns the pool's current swap fee
func (a *Pool) FeeBps() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.feeBps
}

// Status returns the pool's lifecycle state
func (a *Pool) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Pool) active() bool {
	return a.Status() == StatusActive
}

// RegistryOpts configures a Registry
type RegistryOpts struct {
	Client   ledger.Client
	Operator ledger.Signer
	Store    *storage.Store
	// Config supplies timeouts, settlement delay and retry policy; the
	// fee fields are overridden per pool
	Config pool.Config
	// Sink receives post-commit updates; may be nil
	Sink pool.UpdateSink
}

// Registry owns the anchor pools, keyed by pool address. Unlike the
// standard registry a pair may be covered by any number of pools.
type Registry struct {
	client   ledger.Client
	operator ledger.Signer
	store    *storage.Store
	cfg      pool.Config
	sink     pool.UpdateSink

	mu    sync.RWMutex
	pools map[string]*Pool
}

// NewRegistry creates an empty anchor registry
func NewRegistry(opts RegistryOpts) *Registry {
	return &Registry{
		client:   opts.Client,
		operator: opts.Operator,
		store:    opts.Store,
		cfg:      opts.Config,
		sink:     opts.Sink,
		pools:    make(map[string]*Pool),
	}
}

// anchorRecorder routes a pool's bookkeeping into the anchor tables
type anchorRecorder struct {
	store *storage.Store
}

func (r anchorRecorder) SaveSnapshot(
	poolAddress string,
	reserveA, reserveB *big.Int,
) error {
	return r.store.SaveAnchorSnapshot(poolAddress, reserveA, reserveB)
}

func (r anchorRecorder) RecordSwap(row *storage.SwapRow) error {
	return r.store.RecordAnchorSwap(row)
}

// newInnerPool builds the underlying pool with the anchor fee curve: the
// whole fee accrues to the reserves, no treasury slice
func (r *Registry) newInnerPool(params pool.Params, feeBps int64) *pool.Pool {
	cfg := r.cfg
	cfg.FeeTotalBps = feeBps
	cfg.FeeProtocolBps = 0
	deps := pool.Deps{
		Client:   r.client,
		Operator: r.operator,
		Store:    r.store,
		Sink:     r.sink,
	}
	if r.store != nil {
		deps.Recorder = anchorRecorder{store: r.store}
	}
	return pool.New(params, deps, cfg)
}

// Initialize rehydrates the registry from the anchor tables
func (r *Registry) Initialize(ctx context.Context) error {
	logger := logging.GetLogger()
	if r.store == nil {
		return nil
	}
	rows, err := r.store.LoadAnchorPools()
	if err != nil {
		logger.Warnf("failed to load anchor pools: %s", err)
		return nil
	}
	loaded := 0
	for _, row := range rows {
		if row.LPTokenAddress == "" {
			logger.Warnf(
				"skipping anchor pool %s without LP token",
				row.PoolAddress,
			)
			continue
		}
		status := Status(row.Status)
		if status == "" {
			status = StatusActive
		}
		inner := r.newInnerPool(pool.Params{
			Address:   ledger.Address(row.PoolAddress),
			TokenA:    ledger.Address(row.TokenA),
			TokenB:    ledger.Address(row.TokenB),
			LPToken:   ledger.Address(row.LPTokenAddress),
			Creator:   ledger.Address(row.Creator),
			SymbolA:   row.SymbolA,
			SymbolB:   row.SymbolB,
			DecimalsA: row.DecimalsA,
			DecimalsB: row.DecimalsB,
		}, row.FeeBps)
		if err := inner.Init(ctx); err != nil {
			logger.Warnf(
				"failed to initialize anchor pool %s: %s",
				inner.Address.Abbrev(),
				err,
			)
		}
		ap := &Pool{Pool: inner, feeBps: row.FeeBps, status: status}
		r.register(ap)
		loaded++
	}
	logger.Infof("anchor registry initialized with %d pools", loaded)
	return nil
}

func (r *Registry) register(ap *Pool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools[ap.Address.String()] = ap
}

// Create provisions the on-ledger accounts for a new anchor pool and
// registers it active. The fee is the creator's choice within
// [MinFeeBps, MaxFeeBps].
func (r *Registry) Create(
	ctx context.Context,
	tokenA, tokenB ledger.Address,
	creator ledger.Address,
	feeBps int64,
) (*Pool, error) {
	logger := logging.GetLogger()
	if feeBps < MinFeeBps || feeBps > MaxFeeBps {
		return nil, fmt.Errorf(
			"%w: fee must be between %d and %d bps, got %d",
			pool.ErrInvalidInput,
			MinFeeBps,
			MaxFeeBps,
			feeBps,
		)
	}
	if tokenA == tokenB {
		return nil, fmt.Errorf(
			"%w: pool needs two distinct tokens",
			pool.ErrInvalidInput,
		)
	}
	a, b := ledger.SortPair(tokenA, tokenB)
	symbolA, decimalsA, err := r.tokenMeta(ctx, a)
	if err != nil {
		return nil, err
	}
	symbolB, decimalsB, err := r.tokenMeta(ctx, b)
	if err != nil {
		return nil, err
	}

	poolAddr, err := r.client.CreateStorageAccount(ctx, ledger.StorageAccountOpts{
		Name: fmt.Sprintf("%s/%s anchor pool", symbolA, symbolB),
		Description: fmt.Sprintf(
			"anchor pool for %s/%s at %d bps",
			symbolA,
			symbolB,
			feeBps,
		),
		GrantOperatorSendOnBehalf: true,
		Owner:                     creator,
	})
	if err != nil {
		return nil, fmt.Errorf("pool account creation failed: %w", err)
	}
	lpToken, err := r.client.CreateLPToken(ctx, poolAddr, a, b, lpDecimals)
	if err != nil {
		return nil, fmt.Errorf("LP token creation failed: %w", err)
	}

	inner := r.newInnerPool(pool.Params{
		Address:   poolAddr,
		TokenA:    a,
		TokenB:    b,
		LPToken:   lpToken,
		Creator:   creator,
		SymbolA:   symbolA,
		SymbolB:   symbolB,
		DecimalsA: decimalsA,
		DecimalsB: decimalsB,
	}, feeBps)
	if err := inner.Init(ctx); err != nil {
		logger.Warnf(
			"initial reserve read failed for anchor pool %s: %s",
			poolAddr.Abbrev(),
			err,
		)
	}
	ap := &Pool{Pool: inner, feeBps: feeBps, status: StatusActive}
	r.register(ap)
	r.persist(ap)
	r.history("create", creator, fmt.Sprintf(
		"created anchor pool %s/%s at %d bps",
		symbolA,
		symbolB,
		feeBps,
	), ap)
	logger.Infof(
		"created anchor pool %s for %s/%s at %d bps",
		poolAddr.Abbrev(),
		symbolA,
		symbolB,
		feeBps,
	)
	return ap, nil
}

// tokenMeta fetches a token's symbol and decimals. A missing account is
// a hard error; unreadable metadata falls back to defaults.
func (r *Registry) tokenMeta(
	ctx context.Context,
	token ledger.Address,
) (string, uint, error) {
	info, err := r.client.AccountInfo(ctx, ledger.Account{Address: token})
	if err != nil {
		return "", 0, fmt.Errorf(
			"%w: token %s: %s",
			pool.ErrInvalidInput,
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

// persist writes the anchor row. Non-critical; the ledger accounts
// already exist.
func (r *Registry) persist(ap *Pool) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveAnchorPool(rowFromAnchor(ap)); err != nil {
		logging.GetLogger().Warnf(
			"failed to persist anchor pool %s: %s",
			ap.Address.Abbrev(),
			err,
		)
	}
}

func (r *Registry) history(kind string, user ledger.Address, summary string, ap *Pool) {
	if r.store == nil {
		return
	}
	if err := r.store.AppendHistory(&storage.HistoryRow{
		Kind:    kind,
		Pool:    ap.Address.Abbrev(),
		User:    user.Abbrev(),
		Summary: summary,
	}); err != nil {
		logging.GetLogger().Warnf("history write failed: %s", err)
	}
}

func rowFromAnchor(ap *Pool) *storage.AnchorRow {
	ap.mu.RLock()
	defer ap.mu.RUnlock()
	return &storage.AnchorRow{
		PoolRow: storage.PoolRow{
			PoolAddress:    ap.Address.String(),
			TokenA:         ap.TokenA.String(),
			TokenB:         ap.TokenB.String(),
			LPTokenAddress: ap.LPToken.String(),
			Creator:        ap.Creator.String(),
			SymbolA:        ap.SymbolA,
			SymbolB:        ap.SymbolB,
			DecimalsA:      ap.DecimalsA,
			DecimalsB:      ap.DecimalsB,
		},
		FeeBps: ap.feeBps,
		Status: string(ap.status),
	}
}

// Get returns the anchor pool at an address
func (r *Registry) Get(addr ledger.Address) (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ap, ok := r.pools[addr.String()]
	if !ok {
		return nil, fmt.Errorf(
			"%w: no anchor pool at %s",
			pool.ErrPoolNotFound,
			addr.Abbrev(),
		)
	}
	return ap, nil
}

// All returns every anchor pool, ordered by address
func (r *Registry) All() []*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.pools))
	for key := range r.pools {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pools := make([]*Pool, 0, len(keys))
	for _, key := range keys {
		pools = append(pools, r.pools[key])
	}
	return pools
}

// ByCreator returns the anchor pools created by an address, ordered by
// pool address
func (r *Registry) ByCreator(creator ledger.Address) []*Pool {
	pools := make([]*Pool, 0)
	for _, ap := range r.All() {
		if ap.Creator == creator {
			pools = append(pools, ap)
		}
	}
	return pools
}

// Count returns the number of registered anchor pools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// UpdateFee retunes a pool's swap fee. Creator only; closed pools are
// immutable.
func (r *Registry) UpdateFee(
	poolAddress ledger.Address,
	caller ledger.Address,
	feeBps int64,
) error {
	if feeBps < MinFeeBps || feeBps > MaxFeeBps {
		return fmt.Errorf(
			"%w: fee must be between %d and %d bps, got %d",
			pool.ErrInvalidInput,
			MinFeeBps,
			MaxFeeBps,
			feeBps,
		)
	}
	ap, err := r.Get(poolAddress)
	if err != nil {
		return err
	}
	if ap.Creator != caller {
		return fmt.Errorf(
			"%w: only the creator may update pool %s",
			pool.ErrUnauthorized,
			poolAddress.Abbrev(),
		)
	}
	ap.mu.Lock()
	if ap.status == StatusClosed {
		ap.mu.Unlock()
		return fmt.Errorf("%w: pool is closed", pool.ErrPoolNotActive)
	}
	ap.feeBps = feeBps
	ap.mu.Unlock()
	ap.SetFees(feeBps, 0)

	r.persist(ap)
	r.history("update", caller, fmt.Sprintf(
		"set anchor pool fee to %d bps",
		feeBps,
	), ap)
	return nil
}

// UpdateStatus moves a pool through its lifecycle. Creator only; closed
// is terminal.
func (r *Registry) UpdateStatus(
	poolAddress ledger.Address,
	caller ledger.Address,
	status Status,
) error {
	switch status {
	case StatusActive, StatusPaused, StatusClosed:
	default:
		return fmt.Errorf(
			"%w: unknown status %q",
			pool.ErrInvalidInput,
			status,
		)
	}
	ap, err := r.Get(poolAddress)
	if err != nil {
		return err
	}
	if ap.Creator != caller {
		return fmt.Errorf(
			"%w: only the creator may update pool %s",
			pool.ErrUnauthorized,
			poolAddress.Abbrev(),
		)
	}
	ap.mu.Lock()
	if ap.status == StatusClosed {
		ap.mu.Unlock()
		return fmt.Errorf("%w: pool is closed", pool.ErrPoolNotActive)
	}
	ap.status = status
	ap.mu.Unlock()

	r.persist(ap)
	r.history("update", caller, fmt.Sprintf(
		"set anchor pool status to %s",
		status,
	), ap)
	return nil
}

// Swap trades against a specific anchor pool. The pool must be active.
func (r *Registry) Swap(
	ctx context.Context,
	userSigner ledger.Signer,
	poolAddress ledger.Address,
	tokenIn ledger.Address,
	amountIn, minAmountOut *big.Int,
) (*pool.SwapResult, error) {
	ap, err := r.Get(poolAddress)
	if err != nil {
		return nil, err
	}
	if !ap.active() {
		return nil, fmt.Errorf(
			"%w: pool %s is %s",
			pool.ErrPoolNotActive,
			poolAddress.Abbrev(),
			ap.Status(),
		)
	}
	return ap.Pool.Swap(ctx, userSigner, tokenIn, amountIn, minAmountOut)
}

// MintLP deposits liquidity into an anchor pool. The pool must be
// active.
func (r *Registry) MintLP(
	ctx context.Context,
	userSigner ledger.Signer,
	poolAddress ledger.Address,
	aDesired, bDesired, aMin, bMin *big.Int,
) (*pool.LiquidityResult, error) {
	ap, err := r.Get(poolAddress)
	if err != nil {
		return nil, err
	}
	if !ap.active() {
		return nil, fmt.Errorf(
			"%w: pool %s is %s",
			pool.ErrPoolNotActive,
			poolAddress.Abbrev(),
			ap.Status(),
		)
	}
	return ap.Pool.AddLiquidity(ctx, userSigner, aDesired, bDesired, aMin, bMin)
}

// RemoveLiquidity withdraws from an anchor pool. Withdrawals stay
// possible in every lifecycle state, including closed.
func (r *Registry) RemoveLiquidity(
	ctx context.Context,
	userSigner ledger.Signer,
	poolAddress ledger.Address,
	sharesToBurn, aMin, bMin *big.Int,
) (*pool.LiquidityResult, error) {
	ap, err := r.Get(poolAddress)
	if err != nil {
		return nil, err
	}
	return ap.Pool.RemoveLiquidity(ctx, userSigner, sharesToBurn, aMin, bMin)
}

// BestQuote prices a swap across every active anchor pool covering the
// pair and returns the winning quote with its pool
func (r *Registry) BestQuote(
	ctx context.Context,
	tokenIn, tokenOut ledger.Address,
	amountIn *big.Int,
) (*pool.QuoteResult, *Pool, error) {
	if tokenIn == tokenOut {
		return nil, nil, fmt.Errorf(
			"%w: cannot swap a token for itself",
			pool.ErrInvalidInput,
		)
	}
	a, b := ledger.SortPair(tokenIn, tokenOut)
	logger := logging.GetLogger()

	var best *pool.QuoteResult
	var bestPool *Pool
	for _, ap := range r.All() {
		if ap.TokenA != a || ap.TokenB != b || !ap.active() {
			continue
		}
		quote, err := ap.Quote(ctx, tokenIn, amountIn)
		if err != nil {
			logger.Debugf(
				"anchor pool %s cannot quote: %s",
				ap.Address.Abbrev(),
				err,
			)
			continue
		}
		if best == nil || quote.AmountOut.Cmp(best.AmountOut) > 0 {
			best = quote
			bestPool = ap
		}
	}
	if best == nil {
		return nil, nil, fmt.Errorf(
			"%w: no active anchor pool for %s/%s",
			pool.ErrPoolNotFound,
			tokenIn.Abbrev(),
			tokenOut.Abbrev(),
		)
	}
	return best, bestPool, nil
}