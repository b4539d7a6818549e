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

// Package pool implements the swap/liquidity engine: per-pair pools
// running the two-phase transaction protocol against the ledger, and
// the manager that owns the pool registry. The ledger is the source of
// truth for reserves and LP shares; pools cache reserves and the
// repository only accelerates listings.
package pool

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

// Params is the identity of a pool. TokenA always sorts before TokenB.
type Params struct {
	Address   ledger.Address
	TokenA    ledger.Address
	TokenB    ledger.Address
	LPToken   ledger.Address
	Creator   ledger.Address
	SymbolA   string
	SymbolB   string
	DecimalsA uint
	DecimalsB uint
}

// Deps wires a pool to its collaborators
type Deps struct {
	Client   ledger.Client
	Operator ledger.Signer
	Treasury ledger.Address
	Store    *storage.Store
	// Recorder defaults to Store when nil
	Recorder Recorder
	// Sink receives post-commit updates; may be nil
	Sink UpdateSink
}

// refreshFlight is one in-flight reserve refresh shared by concurrent
// callers
type refreshFlight struct {
	done chan struct{}
	err  error
}

// Pool is one constant-product pair venue backed by a ledger storage
// account. A single instance is shared by concurrent request handlers.
type Pool struct {
	Params

	client   ledger.Client
	operator ledger.Signer
	treasury ledger.Address
	store    *storage.Store
	recorder Recorder
	sink     UpdateSink

	mu       sync.Mutex
	cfg      Config
	reserveA *big.Int
	reserveB *big.Int
	refresh  *refreshFlight
}

// New builds a pool around cached-zero reserves. Call Init to fetch
// token metadata and the first reserve snapshot.
func New(params Params, deps Deps, cfg Config) *Pool {
	p := &Pool{
		Params:   params,
		client:   deps.Client,
		operator: deps.Operator,
		treasury: deps.Treasury,
		store:    deps.Store,
		recorder: deps.Recorder,
		sink:     deps.Sink,
		cfg:      cfg,
		reserveA: new(big.Int),
		reserveB: new(big.Int),
	}
	if p.recorder == nil && deps.Store != nil {
		p.recorder = deps.Store
	}
	if p.DecimalsA == 0 {
		p.DecimalsA = defaultDecimals
	}
	if p.DecimalsB == 0 {
		p.DecimalsB = defaultDecimals
	}
	return p
}

// Init fetches token decimals and symbols from the ledger and primes the
// reserve cache. A failed metadata read keeps whatever identity the pool
// was constructed with; only the reserve read reports an error.
func (p *Pool) Init(ctx context.Context) error {
	symbolA, decimalsA, okA := p.tokenInfo(ctx, p.TokenA)
	symbolB, decimalsB, okB := p.tokenInfo(ctx, p.TokenB)
	p.mu.Lock()
	if okA {
		if symbolA != "" {
			p.SymbolA = symbolA
		}
		p.DecimalsA = decimalsA
	}
	if okB {
		if symbolB != "" {
			p.SymbolB = symbolB
		}
		p.DecimalsB = decimalsB
	}
	p.mu.Unlock()
	return p.RefreshReserves(ctx)
}

// tokenInfo reads a token's symbol and decimals from its metadata
func (p *Pool) tokenInfo(
	ctx context.Context,
	token ledger.Address,
) (string, uint, bool) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()
	info, err := p.client.AccountInfo(callCtx, ledger.Account{Address: token})
	if err != nil {
		return "", 0, false
	}
	meta, ok := ledger.DecodeTokenMetadata(info.Metadata)
	if !ok {
		return "", 0, false
	}
	decimals := meta.Decimals
	if decimals == 0 {
		decimals = defaultDecimals
	}
	return meta.Symbol, decimals, true
}

// callCtx applies the configured per-call ledger deadline
func (p *Pool) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.LedgerTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.LedgerTimeout)
}

// Fees returns the pool's current fee configuration
func (p *Pool) Fees() (totalBps, protocolBps int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.FeeTotalBps, p.cfg.FeeProtocolBps
}

// SetFees replaces the pool's fee configuration. Used by anchor pools,
// whose creator may retune the fee.
func (p *Pool) SetFees(totalBps, protocolBps int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cfg.FeeTotalBps = totalBps
	p.cfg.FeeProtocolBps = protocolBps
}

// Reserves returns a copy of the cached reserves
func (p *Pool) Reserves() (*big.Int, *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.reserveA), new(big.Int).Set(p.reserveB)
}

// RefreshReserves reloads the cached reserves from the pool account's
// ledger balances. Concurrent callers share a single in-flight refresh
// instead of issuing parallel reads.
func (p *Pool) RefreshReserves(ctx context.Context) error {
	p.mu.Lock()
	if flight := p.refresh; flight != nil {
		p.mu.Unlock()
		select {
		case <-flight.done:
			return flight.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	flight := &refreshFlight{done: make(chan struct{})}
	p.refresh = flight
	p.mu.Unlock()

	callCtx, cancel := p.callCtx(ctx)
	defer cancel()
	balances, err := p.client.BalancesOf(
		callCtx,
		ledger.Account{Address: p.Address},
	)

	p.mu.Lock()
	if err == nil {
		reserveA, reserveB := new(big.Int), new(big.Int)
		for _, balance := range balances {
			switch balance.Token {
			case p.TokenA:
				reserveA.Set(balance.Amount)
			case p.TokenB:
				reserveB.Set(balance.Amount)
			}
		}
		p.reserveA = reserveA
		p.reserveB = reserveB
	}
	flight.err = err
	p.refresh = nil
	p.mu.Unlock()
	close(flight.done)
	return err
}

// symbolOf returns the display symbol for a pool token
func (p *Pool) symbolOf(token ledger.Address) string {
	if token == p.TokenA {
		return p.SymbolA
	}
	return p.SymbolB
}

// decimalsOf returns the decimal scale for a pool token
func (p *Pool) decimalsOf(token ledger.Address) uint {
	if token == p.TokenA {
		return p.DecimalsA
	}
	return p.DecimalsB
}

// orient maps a swap direction onto (tokenOut, reserveIn, reserveOut)
func (p *Pool) orient(
	tokenIn ledger.Address,
) (ledger.Address, *big.Int, *big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch tokenIn {
	case p.TokenA:
		return p.TokenB,
			new(big.Int).Set(p.reserveA),
			new(big.Int).Set(p.reserveB),
			nil
	case p.TokenB:
		return p.TokenA,
			new(big.Int).Set(p.reserveB),
			new(big.Int).Set(p.reserveA),
			nil
	default:
		return "", nil, nil, fmt.Errorf(
			"%w: token %s not in pool %s",
			ErrInvalidInput,
			tokenIn.Abbrev(),
			p.Address.Abbrev(),
		)
	}
}

// Quote prices a prospective swap against fresh reserves
func (p *Pool) Quote(
	ctx context.Context,
	tokenIn ledger.Address,
	amountIn *big.Int,
) (*QuoteResult, error) {
	if amountIn == nil || amountIn.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount", ErrInvalidInput)
	}
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	tokenOut, reserveIn, reserveOut, err := p.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	totalFeeBps, _ := p.Fees()
	quote, err := cpmm.SwapOutput(amountIn, reserveIn, reserveOut, totalFeeBps)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientLiquidity, err)
	}
	return &QuoteResult{
		PoolAddress: p.Address,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   quote.AmountOut,
		FeeAmount:   quote.FeeAmount,
		PriceImpact: quote.PriceImpact,
		MinAmountOut: cpmm.MinAmountOut(
			quote.AmountOut,
			cpmm.DefaultSlippagePercent,
		),
	}, nil
}

// lpSupply reads the LP token's current supply from the ledger
func (p *Pool) lpSupply(ctx context.Context) (*big.Int, error) {
	if p.LPToken == "" {
		return nil, fmt.Errorf("%w: pool has no LP token", ErrInvalidInput)
	}
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()
	info, err := p.client.AccountInfo(
		callCtx,
		ledger.Account{Address: p.LPToken},
	)
	if err != nil {
		return nil, err
	}
	if info.Supply == nil {
		return new(big.Int), nil
	}
	return info.Supply, nil
}

// balanceOf reads one token balance of an account
func (p *Pool) balanceOf(
	ctx context.Context,
	owner, token ledger.Address,
) (*big.Int, error) {
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()
	balances, err := p.client.BalancesOf(
		callCtx,
		ledger.Account{Address: owner},
	)
	if err != nil {
		return nil, err
	}
	for _, balance := range balances {
		if balance.Token == token {
			return balance.Amount, nil
		}
	}
	return new(big.Int), nil
}

// ResolveLPToken fills in a missing LP token address by scanning the
// user's holdings for a token whose metadata binds it to this pool.
// Discovered legacy pools reach this path.
func (p *Pool) ResolveLPToken(
	ctx context.Context,
	user ledger.Address,
) error {
	if p.LPToken != "" {
		return nil
	}
	callCtx, cancel := p.callCtx(ctx)
	defer cancel()
	balances, err := p.client.BalancesOf(
		callCtx,
		ledger.Account{Address: user},
	)
	if err != nil {
		return err
	}
	for _, balance := range balances {
		infoCtx, infoCancel := p.callCtx(ctx)
		info, err := p.client.AccountInfo(
			infoCtx,
			ledger.Account{Address: balance.Token},
		)
		infoCancel()
		if err != nil {
			continue
		}
		meta, ok := ledger.DecodeLPTokenMetadata(info.Metadata)
		if !ok || meta.Pool != p.Address.String() {
			continue
		}
		p.LPToken = balance.Token
		return nil
	}
	return fmt.Errorf(
		"%w: no LP token found for pool %s",
		ErrInvalidInput,
		p.Address.Abbrev(),
	)
}

// settle waits out the TX1 settlement delay
func (p *Pool) settle() {
	if p.cfg.SettlementDelay > 0 {
		time.Sleep(p.cfg.SettlementDelay)
	}
}

// afterCommit refreshes the cache and records the non-critical
// bookkeeping: reserve snapshot, optional swap event, history line, and
// the subscriber broadcast. Repository failures are logged, never
// surfaced; the ledger already holds the truth.
func (p *Pool) afterCommit(swapRow *storage.SwapRow, history *storage.HistoryRow) {
	logger := logging.GetLogger()
	refreshCtx, cancel := p.callCtx(context.Background())
	defer cancel()
	if err := p.RefreshReserves(refreshCtx); err != nil {
		logger.Warnf(
			"post-trade reserve refresh failed for %s: %s",
			p.Address.Abbrev(),
			err,
		)
	}
	reserveA, reserveB := p.Reserves()
	if p.recorder != nil {
		if err := p.recorder.SaveSnapshot(
			p.Address.String(),
			reserveA,
			reserveB,
		); err != nil {
			logger.Warnf(
				"snapshot write failed for %s: %s",
				p.Address.Abbrev(),
				err,
			)
		}
		if swapRow != nil {
			if err := p.recorder.RecordSwap(swapRow); err != nil {
				logger.Warnf(
					"swap event write failed for %s: %s",
					p.Address.Abbrev(),
					err,
				)
			}
		}
	}
	if p.store != nil && history != nil {
		if err := p.store.AppendHistory(history); err != nil {
			logger.Warnf("history write failed: %s", err)
		}
	}
	if p.sink != nil {
		p.sink.PoolUpdated(p.priceUpdate(reserveA, reserveB))
	}
}

// priceUpdate builds the broadcast payload for the current reserves
func (p *Pool) priceUpdate(reserveA, reserveB *big.Int) *PriceUpdate {
	var price float64
	humanA := cpmm.HumanFloat(reserveA, p.DecimalsA)
	humanB := cpmm.HumanFloat(reserveB, p.DecimalsB)
	if humanA > 0 {
		price = humanB / humanA
	}
	return &PriceUpdate{
		PoolAddress: p.Address.String(),
		TokenA:      p.TokenA.String(),
		TokenB:      p.TokenB.String(),
		SymbolA:     p.SymbolA,
		SymbolB:     p.SymbolB,
		ReserveA:    reserveA.String(),
		ReserveB:    reserveB.String(),
		Price:       price,
		Time:        time.Now().Unix(),
	}
}

// saveHint caches the user's on-ledger LP balance for listing
// acceleration. Failures are logged only.
func (p *Pool) saveHint(ctx context.Context, user ledger.Address) {
	if p.store == nil || p.LPToken == "" {
		return
	}
	shares, err := p.balanceOf(ctx, user, p.LPToken)
	if err != nil {
		return
	}
	if err := p.store.SaveLPPositionHint(
		p.Address.String(),
		user.String(),
		shares.String(),
	); err != nil {
		logging.GetLogger().
			Warnf("LP hint write failed for %s: %s", user.Abbrev(), err)
	}
}
