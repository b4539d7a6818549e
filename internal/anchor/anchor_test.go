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

package anchor

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/storage"
	"github.com/blinklabs-io/tidepool/internal/wallet"
)

type testEnv struct {
	ledger   *ledger.MemoryLedger
	operator *wallet.Wallet
	creator  *wallet.Wallet
	user     *wallet.Wallet
	tka      ledger.Address
	tkb      ledger.Address
}

func testConfig() pool.Config {
	return pool.Config{
		FeeTotalBps:      cpmm.DefaultTotalFeeBps,
		FeeProtocolBps:   cpmm.DefaultProtocolFeeBps,
		SettlementDelay:  0,
		LedgerTimeout:    5 * time.Second,
		Tx2Retries:       2,
		Tx2RetryInterval: time.Millisecond,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	operator, err := wallet.New()
	if err != nil {
		t.Fatalf("failed to create operator wallet: %v", err)
	}
	creator, err := wallet.New()
	if err != nil {
		t.Fatalf("failed to create creator wallet: %v", err)
	}
	user, err := wallet.New()
	if err != nil {
		t.Fatalf("failed to create user wallet: %v", err)
	}
	ml := ledger.NewMemoryLedger(operator)
	tka, err := ml.CreateTokenAccount("TKA", 9)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	tkb, err := ml.CreateTokenAccount("TKB", 9)
	if err != nil {
		t.Fatalf("failed to create token: %v", err)
	}
	funds := big.NewInt(100_000_000_000_000)
	for _, addr := range []ledger.Address{creator.Address(), user.Address()} {
		ml.Credit(addr, tka, funds)
		ml.Credit(addr, tkb, funds)
	}
	return &testEnv{
		ledger:   ml,
		operator: operator,
		creator:  creator,
		user:     user,
		tka:      tka,
		tkb:      tkb,
	}
}

func (e *testEnv) newRegistry(s *storage.Store) *Registry {
	return NewRegistry(RegistryOpts{
		Client:   e.ledger,
		Operator: e.operator,
		Store:    s,
		Config:   testConfig(),
	})
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

// orientAmounts maps TKA/TKB amounts onto the pool's sorted A/B order
func (e *testEnv) orientAmounts(
	ap *Pool,
	amtTKA, amtTKB *big.Int,
) (*big.Int, *big.Int) {
	if ap.TokenA == e.tka {
		return amtTKA, amtTKB
	}
	return amtTKB, amtTKA
}

// createSeeded creates an anchor pool and seeds it with the creator's
// deposit
func (e *testEnv) createSeeded(
	t *testing.T,
	r *Registry,
	feeBps int64,
	seedTKA, seedTKB int64,
) *Pool {
	t.Helper()
	ctx := context.Background()
	ap, err := r.Create(ctx, e.tka, e.tkb, e.creator.Address(), feeBps)
	if err != nil {
		t.Fatalf("failed to create anchor pool: %v", err)
	}
	a, b := e.orientAmounts(ap, big.NewInt(seedTKA), big.NewInt(seedTKB))
	zero := big.NewInt(0)
	if _, err := r.MintLP(
		ctx,
		e.creator,
		ap.Address,
		a,
		b,
		zero,
		zero,
	); err != nil {
		t.Fatalf("failed to seed anchor pool: %v", err)
	}
	return ap
}

func TestCreateAnchorPool(t *testing.T) {
	env := newTestEnv(t)
	store := newTestStore(t)
	r := env.newRegistry(store)
	ctx := context.Background()

	ap, err := r.Create(ctx, env.tkb, env.tka, env.creator.Address(), 100)
	if err != nil {
		t.Fatalf("failed to create anchor pool: %v", err)
	}
	if ap.FeeBps() != 100 {
		t.Fatalf("expected fee 100 bps, got %d", ap.FeeBps())
	}
	if ap.Status() != StatusActive {
		t.Fatalf("expected status active, got %s", ap.Status())
	}
	a, b := ledger.SortPair(env.tka, env.tkb)
	if ap.TokenA != a || ap.TokenB != b {
		t.Fatalf("expected sorted pair %s/%s, got %s/%s", a, b, ap.TokenA, ap.TokenB)
	}
	if ap.Creator != env.creator.Address() {
		t.Fatalf("expected creator %s, got %s", env.creator.Address(), ap.Creator)
	}
	total, protocol := ap.Fees()
	if total != 100 || protocol != 0 {
		t.Fatalf("expected fees 100/0, got %d/%d", total, protocol)
	}
	if !env.ledger.HasPermission(
		ap.Address,
		env.operator.Address(),
		ledger.PermSendOnBehalf,
	) {
		t.Fatalf("expected operator SEND_ON_BEHALF on pool account")
	}
	info, err := env.ledger.AccountInfo(ctx, ledger.Account{Address: ap.LPToken})
	if err != nil {
		t.Fatalf("failed to read LP token account: %v", err)
	}
	meta, ok := ledger.DecodeLPTokenMetadata(info.Metadata)
	if !ok {
		t.Fatalf("expected LP token metadata on %s", ap.LPToken)
	}
	if meta.Pool != ap.Address.String() {
		t.Fatalf("expected LP metadata pool %s, got %s", ap.Address, meta.Pool)
	}

	if r.Count() != 1 {
		t.Fatalf("expected 1 anchor pool, got %d", r.Count())
	}
	got, err := r.Get(ap.Address)
	if err != nil {
		t.Fatalf("failed to get anchor pool: %v", err)
	}
	if got != ap {
		t.Fatalf("expected same pool instance from Get")
	}
	if len(r.ByCreator(env.creator.Address())) != 1 {
		t.Fatalf("expected 1 pool for creator")
	}
	if len(r.ByCreator(env.user.Address())) != 0 {
		t.Fatalf("expected no pools for user")
	}

	rows, err := store.LoadAnchorPools()
	if err != nil {
		t.Fatalf("failed to load anchor pools: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 persisted row, got %d", len(rows))
	}
	row := rows[0]
	if row.FeeBps != 100 || row.Status != "active" {
		t.Fatalf(
			"expected persisted fee 100 / status active, got %d/%s",
			row.FeeBps,
			row.Status,
		)
	}
	if row.LPTokenAddress != ap.LPToken.String() {
		t.Fatalf(
			"expected persisted LP token %s, got %s",
			ap.LPToken,
			row.LPTokenAddress,
		)
	}

	history, err := store.History(10)
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	found := false
	for _, h := range history {
		if h.Kind == "create" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a create event in history")
	}
}

func TestCreateAnchorPoolValidation(t *testing.T) {
	env := newTestEnv(t)
	r := env.newRegistry(nil)
	ctx := context.Background()
	creator := env.creator.Address()

	if _, err := r.Create(ctx, env.tka, env.tkb, creator, 0); !errors.Is(err, pool.ErrInvalidInput) {
		t.Fatalf("expected invalid input for fee 0, got %v", err)
	}
	if _, err := r.Create(ctx, env.tka, env.tkb, creator, 1001); !errors.Is(err, pool.ErrInvalidInput) {
		t.Fatalf("expected invalid input for fee 1001, got %v", err)
	}
	if _, err := r.Create(ctx, env.tka, env.tka, creator, 100); !errors.Is(err, pool.ErrInvalidInput) {
		t.Fatalf("expected invalid input for identical tokens, got %v", err)
	}
	if r.Count() != 0 {
		t.Fatalf("expected no pools after rejected creates, got %d", r.Count())
	}

	// Both fee bounds are inclusive
	if _, err := r.Create(ctx, env.tka, env.tkb, creator, MinFeeBps); err != nil {
		t.Fatalf("failed to create pool at minimum fee: %v", err)
	}
	if _, err := r.Create(ctx, env.tka, env.tkb, creator, MaxFeeBps); err != nil {
		t.Fatalf("failed to create pool at maximum fee: %v", err)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 pools, got %d", r.Count())
	}
}

func TestCreateMultiplePoolsSamePair(t *testing.T) {
	env := newTestEnv(t)
	r := env.newRegistry(nil)
	ctx := context.Background()

	first, err := r.Create(ctx, env.tka, env.tkb, env.creator.Address(), 30)
	if err != nil {
		t.Fatalf("failed to create first pool: %v", err)
	}
	second, err := r.Create(ctx, env.tka, env.tkb, env.user.Address(), 100)
	if err != nil {
		t.Fatalf("failed to create second pool: %v", err)
	}
	if first.Address == second.Address {
		t.Fatalf("expected distinct pool addresses")
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 pools for the same pair, got %d", r.Count())
	}
	if len(r.ByCreator(env.creator.Address())) != 1 {
		t.Fatalf("expected 1 pool for creator")
	}
	if len(r.ByCreator(env.user.Address())) != 1 {
		t.Fatalf("expected 1 pool for user")
	}
}

func TestAnchorSwapKeepsWholeFeeInPool(t *testing.T) {
	env := newTestEnv(t)
	store := newTestStore(t)
	r := env.newRegistry(store)
	ctx := context.Background()

	ap := env.createSeeded(t, r, 100, 1_000_000_000_000, 1_000_000_000_000)

	amountIn := big.NewInt(1_000_000_000)
	wantQuote, err := cpmm.SwapOutput(
		amountIn,
		big.NewInt(1_000_000_000_000),
		big.NewInt(1_000_000_000_000),
		100,
	)
	if err != nil {
		t.Fatalf("failed to compute reference output: %v", err)
	}

	res, err := r.Swap(ctx, env.user, ap.Address, env.tka, amountIn, big.NewInt(0))
	if err != nil {
		t.Fatalf("failed to swap: %v", err)
	}
	if res.AmountOut.Cmp(wantQuote.AmountOut) != 0 {
		t.Fatalf(
			"expected output %s, got %s",
			wantQuote.AmountOut,
			res.AmountOut,
		)
	}
	if res.FeeAmount.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("expected fee 10000000, got %s", res.FeeAmount)
	}

	// The whole input lands in the pool; there is no protocol slice
	poolIn := env.ledger.BalanceOf(ap.Address, env.tka)
	wantIn := big.NewInt(1_001_000_000_000)
	if poolIn.Cmp(wantIn) != 0 {
		t.Fatalf("expected pool input reserve %s, got %s", wantIn, poolIn)
	}
	userOut := env.ledger.BalanceOf(env.user.Address(), env.tkb)
	wantUserOut := new(big.Int).Add(
		big.NewInt(100_000_000_000_000),
		res.AmountOut,
	)
	if userOut.Cmp(wantUserOut) != 0 {
		t.Fatalf("expected user balance %s, got %s", wantUserOut, userOut)
	}

	// Swap events land in the anchor tables, not the standard ones
	anchorStats, err := store.AnchorVolume24h(ap.Address.String())
	if err != nil {
		t.Fatalf("failed to read anchor volume: %v", err)
	}
	if anchorStats.SwapCount != 1 {
		t.Fatalf("expected 1 anchor swap, got %d", anchorStats.SwapCount)
	}
	if anchorStats.VolumeIn.Cmp(amountIn) != 0 {
		t.Fatalf(
			"expected anchor volume %s, got %s",
			amountIn,
			anchorStats.VolumeIn,
		)
	}
	standardStats, err := store.Volume24h(ap.Address.String())
	if err != nil {
		t.Fatalf("failed to read standard volume: %v", err)
	}
	if standardStats.SwapCount != 0 {
		t.Fatalf(
			"expected no standard swaps, got %d",
			standardStats.SwapCount,
		)
	}
	snap, err := store.GetAnchorSnapshotAt(ap.Address.String(), 0)
	if err != nil {
		t.Fatalf("failed to read anchor snapshot: %v", err)
	}
	if snap == nil {
		t.Fatalf("expected an anchor snapshot after swap")
	}
}

func TestAnchorStatusGating(t *testing.T) {
	env := newTestEnv(t)
	r := env.newRegistry(nil)
	ctx := context.Background()
	creator := env.creator.Address()

	ap := env.createSeeded(t, r, 50, 1_000_000_000, 4_000_000_000)
	if err := r.UpdateStatus(ap.Address, creator, StatusPaused); err != nil {
		t.Fatalf("failed to pause pool: %v", err)
	}
	published := env.ledger.PublishCount()

	amountIn := big.NewInt(1_000_000)
	if _, err := r.Swap(
		ctx,
		env.user,
		ap.Address,
		env.tka,
		amountIn,
		big.NewInt(0),
	); !errors.Is(err, pool.ErrPoolNotActive) {
		t.Fatalf("expected pool not active, got %v", err)
	}
	a, b := env.orientAmounts(ap, big.NewInt(1_000_000), big.NewInt(4_000_000))
	if _, err := r.MintLP(
		ctx,
		env.user,
		ap.Address,
		a,
		b,
		big.NewInt(0),
		big.NewInt(0),
	); !errors.Is(err, pool.ErrPoolNotActive) {
		t.Fatalf("expected pool not active for deposit, got %v", err)
	}
	if env.ledger.PublishCount() != published {
		t.Fatalf("expected no transactions while paused")
	}

	// Paused is reversible
	if err := r.UpdateStatus(ap.Address, creator, StatusActive); err != nil {
		t.Fatalf("failed to reactivate pool: %v", err)
	}
	if _, err := r.Swap(
		ctx,
		env.user,
		ap.Address,
		env.tka,
		amountIn,
		big.NewInt(0),
	); err != nil {
		t.Fatalf("failed to swap after reactivation: %v", err)
	}
}

func TestAnchorUpdateFee(t *testing.T) {
	env := newTestEnv(t)
	store := newTestStore(t)
	r := env.newRegistry(store)
	ctx := context.Background()
	creator := env.creator.Address()

	ap := env.createSeeded(t, r, 100, 1_000_000_000_000, 1_000_000_000_000)

	if err := r.UpdateFee(ap.Address, env.user.Address(), 50); !errors.Is(err, pool.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for non-creator, got %v", err)
	}
	if err := r.UpdateStatus(ap.Address, env.user.Address(), StatusPaused); !errors.Is(err, pool.ErrUnauthorized) {
		t.Fatalf("expected unauthorized status update, got %v", err)
	}
	if err := r.UpdateFee(ap.Address, creator, 1500); !errors.Is(err, pool.ErrInvalidInput) {
		t.Fatalf("expected invalid input for fee 1500, got %v", err)
	}

	if err := r.UpdateFee(ap.Address, creator, 50); err != nil {
		t.Fatalf("failed to update fee: %v", err)
	}
	if ap.FeeBps() != 50 {
		t.Fatalf("expected fee 50 bps, got %d", ap.FeeBps())
	}
	total, protocol := ap.Fees()
	if total != 50 || protocol != 0 {
		t.Fatalf("expected fees 50/0, got %d/%d", total, protocol)
	}

	// Quotes follow the new fee
	amountIn := big.NewInt(1_000_000_000)
	want, err := cpmm.SwapOutput(
		amountIn,
		big.NewInt(1_000_000_000_000),
		big.NewInt(1_000_000_000_000),
		50,
	)
	if err != nil {
		t.Fatalf("failed to compute reference output: %v", err)
	}
	quote, err := ap.Quote(ctx, env.tka, amountIn)
	if err != nil {
		t.Fatalf("failed to quote: %v", err)
	}
	if quote.AmountOut.Cmp(want.AmountOut) != 0 {
		t.Fatalf("expected quote %s, got %s", want.AmountOut, quote.AmountOut)
	}

	row, err := store.GetAnchorPool(ap.Address.String())
	if err != nil {
		t.Fatalf("failed to read anchor row: %v", err)
	}
	if row == nil || row.FeeBps != 50 {
		t.Fatalf("expected persisted fee 50, got %+v", row)
	}
}

func TestAnchorClosedTerminal(t *testing.T) {
	env := newTestEnv(t)
	r := env.newRegistry(nil)
	ctx := context.Background()
	creator := env.creator.Address()

	ap := env.createSeeded(t, r, 100, 1_000_000, 4_000_000)
	if err := r.UpdateStatus(ap.Address, creator, StatusClosed); err != nil {
		t.Fatalf("failed to close pool: %v", err)
	}

	if err := r.UpdateStatus(ap.Address, creator, StatusActive); !errors.Is(err, pool.ErrPoolNotActive) {
		t.Fatalf("expected closed pool to stay closed, got %v", err)
	}
	if err := r.UpdateFee(ap.Address, creator, 10); !errors.Is(err, pool.ErrPoolNotActive) {
		t.Fatalf("expected fee update rejected on closed pool, got %v", err)
	}
	if _, err := r.Swap(
		ctx,
		env.user,
		ap.Address,
		env.tka,
		big.NewInt(1_000),
		big.NewInt(0),
	); !errors.Is(err, pool.ErrPoolNotActive) {
		t.Fatalf("expected swap rejected on closed pool, got %v", err)
	}
	a, b := env.orientAmounts(ap, big.NewInt(1_000), big.NewInt(4_000))
	if _, err := r.MintLP(
		ctx,
		env.user,
		ap.Address,
		a,
		b,
		big.NewInt(0),
		big.NewInt(0),
	); !errors.Is(err, pool.ErrPoolNotActive) {
		t.Fatalf("expected deposit rejected on closed pool, got %v", err)
	}

	// Withdrawal stays possible so providers are never locked in
	shares := env.ledger.BalanceOf(env.creator.Address(), ap.LPToken)
	if shares.Sign() <= 0 {
		t.Fatalf("expected creator to hold shares")
	}
	res, err := r.RemoveLiquidity(
		ctx,
		env.creator,
		ap.Address,
		shares,
		big.NewInt(0),
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("failed to withdraw from closed pool: %v", err)
	}
	if res.AmountA.Sign() <= 0 || res.AmountB.Sign() <= 0 {
		t.Fatalf(
			"expected positive withdrawal, got %s/%s",
			res.AmountA,
			res.AmountB,
		)
	}
}

func TestBestQuote(t *testing.T) {
	env := newTestEnv(t)
	r := env.newRegistry(nil)
	ctx := context.Background()

	cheap := env.createSeeded(t, r, 10, 1_000_000_000_000, 1_000_000_000_000)
	dear := env.createSeeded(t, r, 300, 1_000_000_000_000, 1_000_000_000_000)

	amountIn := big.NewInt(1_000_000_000)
	quote, best, err := r.BestQuote(ctx, env.tka, env.tkb, amountIn)
	if err != nil {
		t.Fatalf("failed to get best quote: %v", err)
	}
	if best.Address != cheap.Address {
		t.Fatalf(
			"expected cheapest pool %s, got %s",
			cheap.Address.Abbrev(),
			best.Address.Abbrev(),
		)
	}
	want, err := cpmm.SwapOutput(
		amountIn,
		big.NewInt(1_000_000_000_000),
		big.NewInt(1_000_000_000_000),
		10,
	)
	if err != nil {
		t.Fatalf("failed to compute reference output: %v", err)
	}
	if quote.AmountOut.Cmp(want.AmountOut) != 0 {
		t.Fatalf("expected quote %s, got %s", want.AmountOut, quote.AmountOut)
	}

	// Pausing the winner shifts the route to the remaining active pool
	if err := r.UpdateStatus(
		cheap.Address,
		env.creator.Address(),
		StatusPaused,
	); err != nil {
		t.Fatalf("failed to pause pool: %v", err)
	}
	_, best, err = r.BestQuote(ctx, env.tka, env.tkb, amountIn)
	if err != nil {
		t.Fatalf("failed to get best quote after pause: %v", err)
	}
	if best.Address != dear.Address {
		t.Fatalf("expected fallback pool %s, got %s", dear.Address, best.Address)
	}

	// No active pools means no route
	if err := r.UpdateStatus(
		dear.Address,
		env.creator.Address(),
		StatusClosed,
	); err != nil {
		t.Fatalf("failed to close pool: %v", err)
	}
	if _, _, err := r.BestQuote(ctx, env.tka, env.tkb, amountIn); !errors.Is(err, pool.ErrPoolNotFound) {
		t.Fatalf("expected no route, got %v", err)
	}
	if _, _, err := r.BestQuote(ctx, env.tka, env.tka, amountIn); !errors.Is(err, pool.ErrInvalidInput) {
		t.Fatalf("expected invalid input for self-swap, got %v", err)
	}
}

func TestAnchorMintAndRemoveRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	r := env.newRegistry(nil)
	ctx := context.Background()

	ap := env.createSeeded(t, r, 100, 1_000_000, 4_000_000)

	// First deposit minted sqrt(1e6 * 4e6) shares minus the lock
	creatorShares := env.ledger.BalanceOf(env.creator.Address(), ap.LPToken)
	if creatorShares.Cmp(big.NewInt(1_999_000)) != 0 {
		t.Fatalf("expected creator shares 1999000, got %s", creatorShares)
	}

	a, b := env.orientAmounts(ap, big.NewInt(500_000), big.NewInt(2_000_000))
	res, err := r.MintLP(ctx, env.user, ap.Address, a, b, big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("failed to mint LP: %v", err)
	}
	if res.Shares.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("expected 1000000 shares, got %s", res.Shares)
	}

	out, err := r.RemoveLiquidity(
		ctx,
		env.user,
		ap.Address,
		res.Shares,
		big.NewInt(0),
		big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("failed to remove liquidity: %v", err)
	}
	wantA, wantB := env.orientAmounts(ap, big.NewInt(500_000), big.NewInt(2_000_000))
	if out.AmountA.Cmp(wantA) != 0 || out.AmountB.Cmp(wantB) != 0 {
		t.Fatalf(
			"expected withdrawal %s/%s, got %s/%s",
			wantA,
			wantB,
			out.AmountA,
			out.AmountB,
		)
	}
	if env.ledger.SupplyOf(ap.LPToken).Cmp(big.NewInt(2_000_000)) != 0 {
		t.Fatalf(
			"expected LP supply back to 2000000, got %s",
			env.ledger.SupplyOf(ap.LPToken),
		)
	}
}

func TestRegistryInitialize(t *testing.T) {
	env := newTestEnv(t)
	store := newTestStore(t)
	ctx := context.Background()

	first := env.newRegistry(store)
	active := env.createSeeded(t, first, 40, 1_000_000_000_000, 1_000_000_000_000)
	paused, err := first.Create(ctx, env.tka, env.tkb, env.creator.Address(), 200)
	if err != nil {
		t.Fatalf("failed to create second pool: %v", err)
	}
	if err := first.UpdateStatus(
		paused.Address,
		env.creator.Address(),
		StatusPaused,
	); err != nil {
		t.Fatalf("failed to pause pool: %v", err)
	}

	// A row without an LP token is unusable and skipped
	if err := store.SaveAnchorPool(&storage.AnchorRow{
		PoolRow: storage.PoolRow{
			PoolAddress: "tide1deadbeef",
			TokenA:      env.tka.String(),
			TokenB:      env.tkb.String(),
		},
		FeeBps: 10,
		Status: "active",
	}); err != nil {
		t.Fatalf("failed to save legacy row: %v", err)
	}

	second := env.newRegistry(store)
	if err := second.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize registry: %v", err)
	}
	if second.Count() != 2 {
		t.Fatalf("expected 2 pools after initialize, got %d", second.Count())
	}

	gotActive, err := second.Get(active.Address)
	if err != nil {
		t.Fatalf("failed to get rehydrated pool: %v", err)
	}
	if gotActive.FeeBps() != 40 || gotActive.Status() != StatusActive {
		t.Fatalf(
			"expected 40 bps active, got %d bps %s",
			gotActive.FeeBps(),
			gotActive.Status(),
		)
	}
	gotPaused, err := second.Get(paused.Address)
	if err != nil {
		t.Fatalf("failed to get rehydrated paused pool: %v", err)
	}
	if gotPaused.FeeBps() != 200 || gotPaused.Status() != StatusPaused {
		t.Fatalf(
			"expected 200 bps paused, got %d bps %s",
			gotPaused.FeeBps(),
			gotPaused.Status(),
		)
	}

	// Reserves were primed from the ledger; trading resumes immediately
	reserveA, reserveB := gotActive.Reserves()
	if reserveA.Sign() <= 0 || reserveB.Sign() <= 0 {
		t.Fatalf("expected primed reserves, got %s/%s", reserveA, reserveB)
	}
	if _, err := second.Swap(
		ctx,
		env.user,
		active.Address,
		env.tka,
		big.NewInt(1_000_000),
		big.NewInt(0),
	); err != nil {
		t.Fatalf("failed to swap on rehydrated pool: %v", err)
	}

	// An empty status defaults to active
	row, err := store.GetAnchorPool(paused.Address.String())
	if err != nil {
		t.Fatalf("failed to read anchor row: %v", err)
	}
	row.Status = ""
	if err := store.SaveAnchorPool(row); err != nil {
		t.Fatalf("failed to rewrite anchor row: %v", err)
	}
	third := env.newRegistry(store)
	if err := third.Initialize(ctx); err != nil {
		t.Fatalf("failed to initialize registry: %v", err)
	}
	got, err := third.Get(paused.Address)
	if err != nil {
		t.Fatalf("failed to get pool: %v", err)
	}
	if got.Status() != StatusActive {
		t.Fatalf("expected default status active, got %s", got.Status())
	}
}