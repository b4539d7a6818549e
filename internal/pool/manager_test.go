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
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/storage"
	"github.com/blinklabs-io/tidepool/internal/wallet"
)

func newTestManager(
	t *testing.T,
	env *testEnv,
	store *storage.Store,
	poolsFile string,
) *Manager {
	t.Helper()
	m := NewManager(ManagerOpts{
		Client:    env.ledger,
		Operator:  env.operator,
		Treasury:  env.treasury.Address(),
		Store:     store,
		Config:    testConfig(),
		PoolsFile: poolsFile,
	})
	t.Cleanup(m.Stop)
	return m
}

func TestCreatePool(t *testing.T) {
	env := newTestEnv(t)
	store := newPoolTestStore(t)
	poolsFile := filepath.Join(t.TempDir(), "pools.json")
	m := newTestManager(t, env, store, poolsFile)
	ctx := context.Background()

	p, err := m.CreatePool(ctx, env.tka, env.tkb, env.user.Address())
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	wantA, wantB := ledger.SortPair(env.tka, env.tkb)
	if p.TokenA != wantA || p.TokenB != wantB {
		t.Errorf(
			"expected sorted pair %s/%s, got %s/%s",
			wantA, wantB, p.TokenA, p.TokenB,
		)
	}
	wantSymbolA := "TKA"
	if p.TokenA == env.tkb {
		wantSymbolA = "TKB"
	}
	if p.SymbolA != wantSymbolA {
		t.Errorf("expected symbol %s, got %s", wantSymbolA, p.SymbolA)
	}
	if p.Creator != env.user.Address() {
		t.Errorf("expected creator %s, got %s", env.user.Address(), p.Creator)
	}

	// Lookup works in both orders and by address
	got, err := m.GetPool(env.tkb, env.tka)
	if err != nil {
		t.Fatalf("failed to get pool: %v", err)
	}
	if got != p {
		t.Errorf("expected the same pool instance")
	}
	if _, err := m.GetPoolByAddress(p.Address); err != nil {
		t.Errorf("failed to get pool by address: %v", err)
	}

	// The operator can move pool funds, the LP token is bound to the pool
	if !env.ledger.HasPermission(
		p.Address, env.operator.Address(), ledger.PermSendOnBehalf,
	) {
		t.Errorf("expected operator SEND_ON_BEHALF on the pool account")
	}
	info, err := env.ledger.AccountInfo(
		ctx,
		ledger.Account{Address: p.LPToken},
	)
	if err != nil {
		t.Fatalf("failed to read LP token info: %v", err)
	}
	meta, ok := ledger.DecodeLPTokenMetadata(info.Metadata)
	if !ok {
		t.Fatalf("expected LP token metadata")
	}
	if meta.Pool != p.Address.String() {
		t.Errorf("expected LP metadata pool %s, got %s", p.Address, meta.Pool)
	}

	// Identity persisted to the repository and the fallback file
	rows, err := store.LoadPools()
	if err != nil {
		t.Fatalf("failed to load pools: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 persisted pool, got %d", len(rows))
	}
	if rows[0].LPTokenAddress != p.LPToken.String() {
		t.Errorf(
			"expected persisted LP token %s, got %s",
			p.LPToken,
			rows[0].LPTokenAddress,
		)
	}
	fileRows, err := storage.ReadPoolsFile(poolsFile)
	if err != nil {
		t.Fatalf("failed to read pools file: %v", err)
	}
	if len(fileRows) != 1 {
		t.Fatalf("expected 1 pool in fallback file, got %d", len(fileRows))
	}

	history, err := m.History(10)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	if len(history) != 1 || history[0].Kind != "create" {
		t.Errorf("expected a create history entry, got %+v", history)
	}
}

func TestCreatePoolDuplicate(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")
	ctx := context.Background()

	if _, err := m.CreatePool(
		ctx, env.tka, env.tkb, env.user.Address(),
	); err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	// The reversed order hits the same pair key
	_, err := m.CreatePool(ctx, env.tkb, env.tka, env.user.Address())
	if !errors.Is(err, ErrPoolAlreadyExists) {
		t.Fatalf("expected ErrPoolAlreadyExists, got %v", err)
	}
	if m.PoolCount() != 1 {
		t.Errorf("expected 1 pool, got %d", m.PoolCount())
	}
}

func TestCreatePoolRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")
	ctx := context.Background()

	_, err := m.CreatePool(ctx, env.tka, env.tka, env.user.Address())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for same token, got %v", err)
	}

	// A valid address with no account behind it
	stray, err := wallet.New()
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
	_, err = m.CreatePool(ctx, env.tka, stray.Address(), env.user.Address())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown token, got %v", err)
	}
	if m.PoolCount() != 0 {
		t.Errorf("expected no pools, got %d", m.PoolCount())
	}
}

func TestSwapRoute(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")
	ctx := context.Background()

	p, err := m.CreatePool(ctx, env.tka, env.tkb, env.user.Address())
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}

	got, err := m.SwapRoute(env.tkb, env.tka)
	if err != nil {
		t.Fatalf("failed to route: %v", err)
	}
	if got != p {
		t.Errorf("expected the created pool")
	}
	if _, err := m.SwapRoute(env.tka, env.tka); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for self swap, got %v", err)
	}
	other, err := env.ledger.CreateTokenAccount("OTHER", 9)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	if _, err := m.SwapRoute(env.tka, other); !errors.Is(err, ErrPoolNotFound) {
		t.Errorf("expected ErrPoolNotFound, got %v", err)
	}
}

func TestInitializeFromRepository(t *testing.T) {
	env := newTestEnv(t)
	store := newPoolTestStore(t)
	ctx := context.Background()

	// Persist one live pool and one legacy row by hand
	seeded := env.createPool(t, 1_000_000, 4_000_000)
	if err := store.SavePool(rowFromPool(seeded)); err != nil {
		t.Fatalf("failed to save pool: %v", err)
	}
	if err := store.SavePool(&storage.PoolRow{
		PoolAddress: "tide1deadbeef",
		TokenA:      env.tka.String(),
		TokenB:      env.tkb.String(),
	}); err != nil {
		t.Fatalf("failed to save pool: %v", err)
	}

	m := newTestManager(t, env, store, "")
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	// The legacy row has no LP token and stays dormant
	if m.PoolCount() != 1 {
		t.Fatalf("expected 1 pool, got %d", m.PoolCount())
	}
	p, err := m.GetPool(env.tka, env.tkb)
	if err != nil {
		t.Fatalf("failed to get pool: %v", err)
	}
	reserveA, reserveB := p.Reserves()
	if reserveA.Sign() == 0 || reserveB.Sign() == 0 {
		t.Errorf(
			"expected reserves primed from the ledger, got %s and %s",
			reserveA,
			reserveB,
		)
	}
}

func TestInitializeFileFallback(t *testing.T) {
	env := newTestEnv(t)
	poolsFile := filepath.Join(t.TempDir(), "pools.json")
	ctx := context.Background()

	seeded := env.createPool(t, 1_000_000, 4_000_000)
	if err := storage.WritePoolsFile(
		poolsFile,
		[]*storage.PoolRow{rowFromPool(seeded)},
	); err != nil {
		t.Fatalf("failed to write pools file: %v", err)
	}

	m := newTestManager(t, env, nil, poolsFile)
	if err := m.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize: %v", err)
	}
	if m.PoolCount() != 1 {
		t.Fatalf("expected 1 pool, got %d", m.PoolCount())
	}
	if !m.HasPool(env.tka, env.tkb) {
		t.Errorf("expected the pair registered")
	}
}

func TestUserPositions(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")
	ctx := context.Background()

	p, err := m.CreatePool(ctx, env.tka, env.tkb, env.user.Address())
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	env.ledger.Credit(env.user.Address(), env.tka, big.NewInt(1_000_000))
	env.ledger.Credit(env.user.Address(), env.tkb, big.NewInt(4_000_000))
	aDes, bDes := env.orientAmounts(
		p, big.NewInt(1_000_000), big.NewInt(4_000_000),
	)
	if _, err := p.AddLiquidity(ctx, env.user, aDes, bDes, nil, nil); err != nil {
		t.Fatalf("failed to seed pool: %v", err)
	}

	second, err := wallet.New()
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
	env.ledger.Credit(second.Address(), env.tka, big.NewInt(500_000))
	env.ledger.Credit(second.Address(), env.tkb, big.NewInt(2_000_000))
	aDes, bDes = env.orientAmounts(
		p, big.NewInt(500_000), big.NewInt(2_000_000),
	)
	if _, err := p.AddLiquidity(ctx, second, aDes, bDes, nil, nil); err != nil {
		t.Fatalf("failed to add liquidity: %v", err)
	}

	positions, err := m.UserPositions(ctx, second.Address())
	if err != nil {
		t.Fatalf("failed to list positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	pos := positions[0]
	if pos.PoolAddress != p.Address {
		t.Errorf("expected pool %s, got %s", p.Address, pos.PoolAddress)
	}
	if pos.LPToken != p.LPToken {
		t.Errorf("expected LP token %s, got %s", p.LPToken, pos.LPToken)
	}
	// 1000000 of 3000000 shares
	if pos.Shares.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("expected 1000000 shares, got %s", pos.Shares)
	}
	if pos.TotalShares.Cmp(big.NewInt(3_000_000)) != 0 {
		t.Errorf("expected total 3000000, got %s", pos.TotalShares)
	}
	if pos.SharePercent != 33.33 {
		t.Errorf("expected 33.33%%, got %v", pos.SharePercent)
	}
	wantA, wantB := env.orientAmounts(
		p, big.NewInt(500_000), big.NewInt(2_000_000),
	)
	if pos.AmountA.Cmp(wantA) != 0 || pos.AmountB.Cmp(wantB) != 0 {
		t.Errorf(
			"expected amounts %s and %s, got %s and %s",
			wantA, wantB, pos.AmountA, pos.AmountB,
		)
	}
}

func TestUserPositionsFiltersDust(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")
	ctx := context.Background()

	p, err := m.CreatePool(ctx, env.tka, env.tkb, env.user.Address())
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	env.ledger.Credit(
		env.user.Address(), env.tka, big.NewInt(1_000_000_000_000),
	)
	env.ledger.Credit(
		env.user.Address(), env.tkb, big.NewInt(1_000_000_000_000),
	)
	aDes, bDes := env.orientAmounts(
		p,
		big.NewInt(1_000_000_000_000),
		big.NewInt(1_000_000_000_000),
	)
	if _, err := p.AddLiquidity(ctx, env.user, aDes, bDes, nil, nil); err != nil {
		t.Fatalf("failed to seed pool: %v", err)
	}

	// One raw share out of a trillion is below both dust thresholds
	holder, err := wallet.New()
	if err != nil {
		t.Fatalf("failed to create wallet: %v", err)
	}
	env.ledger.Credit(holder.Address(), p.LPToken, big.NewInt(1))

	positions, err := m.UserPositions(ctx, holder.Address())
	if err != nil {
		t.Fatalf("failed to list positions: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected no positions, got %d", len(positions))
	}
}

func TestUserPositionsDiscoversForeignPool(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")
	ctx := context.Background()

	// A pool created outside this registry: accounts exist on the
	// ledger, shares are already in circulation
	poolAddr, err := env.ledger.CreateStorageAccount(ctx, ledger.StorageAccountOpts{
		Name:                      "foreign pool",
		GrantOperatorSendOnBehalf: true,
		Owner:                     env.user.Address(),
	})
	if err != nil {
		t.Fatalf("failed to create pool account: %v", err)
	}
	a, b := ledger.SortPair(env.tka, env.tkb)
	lpToken, err := env.ledger.CreateLPToken(ctx, poolAddr, a, b, 9)
	if err != nil {
		t.Fatalf("failed to create LP token: %v", err)
	}
	env.ledger.Credit(poolAddr, env.tka, big.NewInt(1_000_000))
	env.ledger.Credit(poolAddr, env.tkb, big.NewInt(4_000_000))
	if err := env.ledger.MintSupply(
		ctx, lpToken, env.user.Address(), big.NewInt(1_000_000),
	); err != nil {
		t.Fatalf("failed to mint: %v", err)
	}
	if err := env.ledger.MintSupply(
		ctx, lpToken, env.treasury.Address(), big.NewInt(1_000_000),
	); err != nil {
		t.Fatalf("failed to mint: %v", err)
	}

	positions, err := m.UserPositions(ctx, env.user.Address())
	if err != nil {
		t.Fatalf("failed to list positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	pos := positions[0]
	if pos.PoolAddress != poolAddr {
		t.Errorf("expected pool %s, got %s", poolAddr, pos.PoolAddress)
	}
	if pos.SharePercent != 50.0 {
		t.Errorf("expected 50%%, got %v", pos.SharePercent)
	}

	// The walk registered the pool for future lookups
	if !m.HasPool(env.tka, env.tkb) {
		t.Errorf("expected the discovered pair registered")
	}
	registered, err := m.GetPoolByAddress(poolAddr)
	if err != nil {
		t.Fatalf("failed to get discovered pool: %v", err)
	}
	if registered.LPToken != lpToken {
		t.Errorf(
			"expected LP token %s, got %s",
			lpToken,
			registered.LPToken,
		)
	}
}

func TestDiscoverPools(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A storage account holding exactly two tokens is a pool candidate
	candidate, err := env.ledger.CreateStorageAccount(ctx, ledger.StorageAccountOpts{
		Name:                      "candidate pool",
		GrantOperatorSendOnBehalf: true,
		Owner:                     env.user.Address(),
	})
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	env.ledger.Credit(candidate, env.tka, big.NewInt(5_000))
	env.ledger.Credit(candidate, env.tkb, big.NewInt(10_000))

	// Three balances make the pair ambiguous
	tkc, err := env.ledger.CreateTokenAccount("TKC", 6)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	crowded, err := env.ledger.CreateStorageAccount(ctx, ledger.StorageAccountOpts{
		Name:  "crowded account",
		Owner: env.user.Address(),
	})
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	env.ledger.Credit(crowded, env.tka, big.NewInt(1))
	env.ledger.Credit(crowded, env.tkb, big.NewInt(1))
	env.ledger.Credit(crowded, tkc, big.NewInt(1))

	m := NewManager(ManagerOpts{
		Client:   env.ledger,
		Operator: env.operator,
		Treasury: env.treasury.Address(),
		Config:   testConfig(),
		DiscoveryAddresses: []string{
			candidate.String(),
			crowded.String(),
			"not-an-address",
		},
	})
	t.Cleanup(m.Stop)

	if err := m.DiscoverPools(ctx); err != nil {
		t.Fatalf("failed to discover: %v", err)
	}
	if m.PoolCount() != 1 {
		t.Fatalf("expected 1 discovered pool, got %d", m.PoolCount())
	}
	p, err := m.GetPoolByAddress(candidate)
	if err != nil {
		t.Fatalf("failed to get discovered pool: %v", err)
	}
	if p.LPToken != "" {
		t.Errorf("expected no LP token on a discovered pool, got %s", p.LPToken)
	}

	// A second pass finds nothing new
	if err := m.DiscoverPools(ctx); err != nil {
		t.Fatalf("failed to discover: %v", err)
	}
	if m.PoolCount() != 1 {
		t.Errorf("expected 1 pool after rescan, got %d", m.PoolCount())
	}
}

func TestSubscribeReceivesSwapUpdates(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")
	ctx := context.Background()

	p, err := m.CreatePool(ctx, env.tka, env.tkb, env.user.Address())
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	env.ledger.Credit(env.user.Address(), env.tka, big.NewInt(1_000_000_000))
	env.ledger.Credit(env.user.Address(), env.tkb, big.NewInt(4_000_000_000))
	aDes, bDes := env.orientAmounts(
		p, big.NewInt(1_000_000_000), big.NewInt(4_000_000_000),
	)
	if _, err := p.AddLiquidity(ctx, env.user, aDes, bDes, nil, nil); err != nil {
		t.Fatalf("failed to seed pool: %v", err)
	}

	ch := m.Subscribe()
	env.ledger.Credit(env.user.Address(), env.tka, big.NewInt(10_000_000))
	if _, err := p.Swap(
		ctx, env.user, env.tka, big.NewInt(10_000_000), nil,
	); err != nil {
		t.Fatalf("failed to swap: %v", err)
	}

	select {
	case update := <-ch:
		if update.PoolAddress != p.Address.String() {
			t.Errorf(
				"expected update for %s, got %s",
				p.Address,
				update.PoolAddress,
			)
		}
		if update.Price <= 0 {
			t.Errorf("expected a positive price, got %v", update.Price)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a pool update")
	}

	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Errorf("expected the channel closed after unsubscribe")
	}
}

func TestManagerStop(t *testing.T) {
	env := newTestEnv(t)
	m := newTestManager(t, env, nil, "")

	ch := m.Subscribe()
	m.Stop()
	if _, open := <-ch; open {
		t.Errorf("expected subscriber channels closed on stop")
	}
	// Stopping twice is harmless
	m.Stop()
	// Updates after stop go nowhere
	m.PoolUpdated(&PriceUpdate{PoolAddress: "gone"})
}