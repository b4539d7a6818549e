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
	"math/big"

	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

// AddLiquidity runs the full two-phase deposit with a server-held user
// signer. TX1 sends both legs to the pool atomically; TX2 mints the LP
// shares, with the permanent lock minted to the zero address on the
// first deposit. A mint failure after TX1 refunds both legs.
func (p *Pool) AddLiquidity(
	ctx context.Context,
	userSigner ledger.Signer,
	aDesired, bDesired, aMin, bMin *big.Int,
) (*LiquidityResult, error) {
	if aDesired == nil || bDesired == nil ||
		aDesired.Sign() <= 0 || bDesired.Sign() <= 0 {
		return nil, fmt.Errorf(
			"%w: deposit amounts must be positive",
			ErrInvalidInput,
		)
	}
	if aMin == nil {
		aMin = new(big.Int)
	}
	if bMin == nil {
		bMin = new(big.Int)
	}
	user := userSigner.Address()
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	reserveA, reserveB := p.Reserves()
	a, b := cpmm.OptimalLiquidity(aDesired, bDesired, reserveA, reserveB)
	if a.Cmp(aMin) < 0 || b.Cmp(bMin) < 0 {
		return nil, fmt.Errorf(
			"%w: pool ratio moved beyond minimums",
			ErrSlippageExceeded,
		)
	}
	totalShares, err := p.lpSupply(ctx)
	if err != nil {
		return nil, err
	}
	shares, locked, err := cpmm.LPToMint(a, b, reserveA, reserveB, totalShares)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientShares, err)
	}
	if shares.Sign() == 0 {
		return nil, fmt.Errorf("%w: deposit too small", ErrInsufficientShares)
	}

	// TX1: both legs settle together or not at all
	tx1 := p.client.NewTransaction(userSigner).
		Send(p.Address, a, p.TokenA).
		Send(p.Address, b, p.TokenB)
	tx1Ctx, tx1Cancel := p.callCtx(ctx)
	res1, err := p.client.Publish(tx1Ctx, tx1)
	tx1Cancel()
	if err != nil {
		return nil, fmt.Errorf("deposit failed: %w", err)
	}

	p.settle()
	if err := p.mintShares(user, shares, locked); err != nil {
		return nil, p.refundLiquidity(user, a, b, err)
	}

	newTotal := new(big.Int).Add(totalShares, shares)
	newTotal.Add(newTotal, locked)
	p.finishLiquidity(user, "add", fmt.Sprintf(
		"added %s %s and %s %s for %s LP",
		cpmm.HumanString(a, p.DecimalsA),
		p.SymbolA,
		cpmm.HumanString(b, p.DecimalsB),
		p.SymbolB,
		shares,
	))
	return &LiquidityResult{
		PoolAddress:  p.Address,
		AmountA:      a,
		AmountB:      b,
		Shares:       shares,
		LockedShares: locked,
		TotalShares:  newTotal,
		Tx1Hash:      res1.FirstHash(),
	}, nil
}

// CompleteAddLiquidity mints shares for a deposit whose TX1 the user
// published through their own wallet. Shares are priced against the
// reserves as they stood before the deposit, recovered by subtracting
// the claimed legs from the refreshed reserves.
func (p *Pool) CompleteAddLiquidity(
	ctx context.Context,
	user ledger.Address,
	a, b *big.Int,
) (*LiquidityResult, error) {
	if a == nil || b == nil || a.Sign() <= 0 || b.Sign() <= 0 {
		return nil, fmt.Errorf(
			"%w: deposit amounts must be positive",
			ErrInvalidInput,
		)
	}
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	postA, postB := p.Reserves()
	preA := new(big.Int).Sub(postA, a)
	preB := new(big.Int).Sub(postB, b)
	if preA.Sign() < 0 || preB.Sign() < 0 {
		return nil, fmt.Errorf(
			"%w: claimed deposit exceeds pool reserves",
			ErrInvalidInput,
		)
	}
	totalShares, err := p.lpSupply(ctx)
	if err != nil {
		return nil, err
	}
	shares, locked, err := cpmm.LPToMint(a, b, preA, preB, totalShares)
	if err != nil {
		// TX1 already settled; the deposit goes back
		return nil, p.refundLiquidity(
			user, a, b,
			fmt.Errorf("%w: %s", ErrInsufficientShares, err),
		)
	}
	if shares.Sign() == 0 {
		return nil, p.refundLiquidity(
			user, a, b,
			fmt.Errorf("%w: deposit too small", ErrInsufficientShares),
		)
	}
	if err := p.mintShares(user, shares, locked); err != nil {
		return nil, p.refundLiquidity(user, a, b, err)
	}

	newTotal := new(big.Int).Add(totalShares, shares)
	newTotal.Add(newTotal, locked)
	p.finishLiquidity(user, "add", fmt.Sprintf(
		"added %s %s and %s %s for %s LP",
		cpmm.HumanString(a, p.DecimalsA),
		p.SymbolA,
		cpmm.HumanString(b, p.DecimalsB),
		p.SymbolB,
		shares,
	))
	return &LiquidityResult{
		PoolAddress:  p.Address,
		AmountA:      new(big.Int).Set(a),
		AmountB:      new(big.Int).Set(b),
		Shares:       shares,
		LockedShares: locked,
		TotalShares:  newTotal,
	}, nil
}

// RemoveLiquidity runs the full two-phase withdrawal with a server-held
// user signer. TX1 parks the shares at the LP token account; TX2 burns
// them and pays both pool legs to the user in one delegated publish.
func (p *Pool) RemoveLiquidity(
	ctx context.Context,
	userSigner ledger.Signer,
	sharesToBurn, aMin, bMin *big.Int,
) (*LiquidityResult, error) {
	if sharesToBurn == nil || sharesToBurn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: shares must be positive", ErrInvalidInput)
	}
	if aMin == nil {
		aMin = new(big.Int)
	}
	if bMin == nil {
		bMin = new(big.Int)
	}
	user := userSigner.Address()
	if err := p.ResolveLPToken(ctx, user); err != nil {
		return nil, err
	}
	totalShares, err := p.lpSupply(ctx)
	if err != nil {
		return nil, err
	}
	if totalShares.Sign() == 0 {
		return nil, fmt.Errorf(
			"%w: no shares outstanding",
			ErrInsufficientShares,
		)
	}
	userShares, err := p.balanceOf(ctx, user, p.LPToken)
	if err != nil {
		return nil, err
	}
	if userShares.Cmp(sharesToBurn) < 0 {
		return nil, fmt.Errorf(
			"%w: holding %s, asked to burn %s",
			ErrInsufficientShares,
			userShares,
			sharesToBurn,
		)
	}
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	reserveA, reserveB := p.Reserves()
	a, b := cpmm.BurnToAmounts(sharesToBurn, totalShares, reserveA, reserveB)
	if a.Cmp(aMin) < 0 || b.Cmp(bMin) < 0 {
		return nil, fmt.Errorf(
			"%w: payout below minimums",
			ErrSlippageExceeded,
		)
	}

	// TX1: position the shares at the token account for the burn
	tx1 := p.client.NewTransaction(userSigner).
		Send(p.LPToken, sharesToBurn, p.LPToken)
	tx1Ctx, tx1Cancel := p.callCtx(ctx)
	res1, err := p.client.Publish(tx1Ctx, tx1)
	tx1Cancel()
	if err != nil {
		return nil, fmt.Errorf("share transfer failed: %w", err)
	}

	p.settle()
	res2, err := p.burnAndPayOut(user, sharesToBurn, a, b)
	if err != nil {
		return nil, err
	}

	p.finishLiquidity(user, "remove", fmt.Sprintf(
		"burned %s LP for %s %s and %s %s",
		sharesToBurn,
		cpmm.HumanString(a, p.DecimalsA),
		p.SymbolA,
		cpmm.HumanString(b, p.DecimalsB),
		p.SymbolB,
	))
	return &LiquidityResult{
		PoolAddress:  p.Address,
		AmountA:      a,
		AmountB:      b,
		Shares:       new(big.Int).Set(sharesToBurn),
		LockedShares: new(big.Int),
		TotalShares:  new(big.Int).Sub(totalShares, sharesToBurn),
		Tx1Hash:      res1.FirstHash(),
		Tx2Hash:      res2.FirstHash(),
	}, nil
}

// CompleteRemoveLiquidity burns and pays out shares the user already
// parked at the LP token account through their own wallet. A slippage
// violation at this stage returns the parked shares instead of burning
// them.
func (p *Pool) CompleteRemoveLiquidity(
	ctx context.Context,
	user ledger.Address,
	sharesToBurn, aMin, bMin *big.Int,
) (*LiquidityResult, error) {
	if sharesToBurn == nil || sharesToBurn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: shares must be positive", ErrInvalidInput)
	}
	if aMin == nil {
		aMin = new(big.Int)
	}
	if bMin == nil {
		bMin = new(big.Int)
	}
	if err := p.ResolveLPToken(ctx, user); err != nil {
		return nil, err
	}
	totalShares, err := p.lpSupply(ctx)
	if err != nil {
		return nil, err
	}
	if totalShares.Sign() == 0 {
		return nil, fmt.Errorf(
			"%w: no shares outstanding",
			ErrInsufficientShares,
		)
	}
	parked, err := p.balanceOf(ctx, p.LPToken, p.LPToken)
	if err != nil {
		return nil, err
	}
	if parked.Cmp(sharesToBurn) < 0 {
		return nil, fmt.Errorf(
			"%w: only %s LP positioned for burn",
			ErrInvalidInput,
			parked,
		)
	}
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	reserveA, reserveB := p.Reserves()
	a, b := cpmm.BurnToAmounts(sharesToBurn, totalShares, reserveA, reserveB)
	if a.Cmp(aMin) < 0 || b.Cmp(bMin) < 0 {
		p.returnParkedShares(user, sharesToBurn)
		return nil, fmt.Errorf(
			"%w: payout below minimums",
			ErrSlippageExceeded,
		)
	}

	res2, err := p.burnAndPayOut(user, sharesToBurn, a, b)
	if err != nil {
		return nil, err
	}

	p.finishLiquidity(user, "remove", fmt.Sprintf(
		"burned %s LP for %s %s and %s %s",
		sharesToBurn,
		cpmm.HumanString(a, p.DecimalsA),
		p.SymbolA,
		cpmm.HumanString(b, p.DecimalsB),
		p.SymbolB,
	))
	return &LiquidityResult{
		PoolAddress:  p.Address,
		AmountA:      a,
		AmountB:      b,
		Shares:       new(big.Int).Set(sharesToBurn),
		LockedShares: new(big.Int),
		TotalShares:  new(big.Int).Sub(totalShares, sharesToBurn),
		Tx2Hash:      res2.FirstHash(),
	}, nil
}

// mintShares performs the mint half of a deposit: the permanent lock
// first when this is the pool's opening deposit, then the user's shares
func (p *Pool) mintShares(user ledger.Address, shares, locked *big.Int) error {
	if locked.Sign() > 0 {
		err := p.tx2Retry(func() error {
			mintCtx, cancel := p.callCtx(context.Background())
			defer cancel()
			return p.client.MintSupply(
				mintCtx, p.LPToken, ledger.ZeroAddress, locked,
			)
		})
		if err != nil {
			return fmt.Errorf("lock mint failed: %w", err)
		}
	}
	err := p.tx2Retry(func() error {
		mintCtx, cancel := p.callCtx(context.Background())
		defer cancel()
		return p.client.MintSupply(mintCtx, p.LPToken, user, shares)
	})
	if err != nil {
		return fmt.Errorf("share mint failed: %w", err)
	}
	return nil
}

// burnAndPayOut performs the operator half of a withdrawal: burn the
// parked shares, then pay both pool legs to the user. A burn failure
// returns the parked shares; a payout failure after the burn re-mints
// them.
func (p *Pool) burnAndPayOut(
	user ledger.Address,
	shares, a, b *big.Int,
) (*ledger.PublishResult, error) {
	logger := logging.GetLogger()
	err := p.tx2Retry(func() error {
		burnCtx, cancel := p.callCtx(context.Background())
		defer cancel()
		return p.client.BurnSupply(burnCtx, p.LPToken, user, shares)
	})
	if err != nil {
		logger.Errorf(
			"burn failed for pool %s user %s, returning shares: %s",
			p.Address.Abbrev(),
			user.Abbrev(),
			err,
		)
		p.returnParkedShares(user, shares)
		return nil, fmt.Errorf(
			"liquidity not removed, shares %w: %w", ErrRefunded, err,
		)
	}

	payout := p.client.NewTransaction(p.operator)
	if a.Sign() > 0 {
		payout.SendOnBehalfOf(p.Address, user, a, p.TokenA)
	}
	if b.Sign() > 0 {
		payout.SendOnBehalfOf(p.Address, user, b, p.TokenB)
	}
	var res *ledger.PublishResult
	if payout.OpCount() > 0 {
		res, err = p.publishPayout(payout)
		if err != nil {
			// The burn settled; restore the shares rather than leave
			// the user burned without a payout
			logger.Errorf(
				"payout failed for pool %s user %s, re-minting %s LP: %s",
				p.Address.Abbrev(),
				user.Abbrev(),
				shares,
				err,
			)
			mintCtx, cancel := p.callCtx(context.Background())
			mintErr := p.client.MintSupply(mintCtx, p.LPToken, user, shares)
			cancel()
			if mintErr != nil {
				logger.Errorf(
					"re-mint of %s LP to %s failed: %s",
					shares,
					user.Abbrev(),
					mintErr,
				)
			}
			return nil, fmt.Errorf(
				"liquidity not removed, shares %w: %w", ErrRefunded, err,
			)
		}
	}
	return res, nil
}

// returnParkedShares sends LP tokens positioned for a burn back to
// their owner. Best effort; a failure leaves them parked at the token
// account for an operator to recover.
func (p *Pool) returnParkedShares(user ledger.Address, shares *big.Int) {
	logger := logging.GetLogger()
	tx := p.client.NewTransaction(p.operator).
		SendOnBehalfOf(p.LPToken, user, shares, p.LPToken)
	pubCtx, cancel := p.callCtx(context.Background())
	defer cancel()
	if _, err := p.client.Publish(pubCtx, tx); err != nil {
		logger.Errorf(
			"share return to %s failed, %s LP parked at token account: %s",
			user.Abbrev(),
			shares,
			err,
		)
	}
}

// refundLiquidity compensates a deposit whose mint half died: both legs
// go back to the user from the pool in one transaction. Returns the
// error to surface, wrapping cause.
func (p *Pool) refundLiquidity(
	user ledger.Address,
	a, b *big.Int,
	cause error,
) error {
	logger := logging.GetLogger()
	logger.Errorf(
		"deposit to pool %s by %s cannot be completed, refunding: %s",
		p.Address.Abbrev(),
		user.Abbrev(),
		cause,
	)
	tx := p.client.NewTransaction(p.operator)
	if a.Sign() > 0 {
		tx.SendOnBehalfOf(p.Address, user, a, p.TokenA)
	}
	if b.Sign() > 0 {
		tx.SendOnBehalfOf(p.Address, user, b, p.TokenB)
	}
	refundCtx, cancel := p.callCtx(context.Background())
	_, refundErr := p.client.Publish(refundCtx, tx)
	cancel()
	if refundErr != nil {
		logger.Errorf(
			"liquidity refund to %s failed, deposit remains in pool %s: %s",
			user.Abbrev(),
			p.Address.Abbrev(),
			refundErr,
		)
	} else if p.store != nil {
		if err := p.store.AppendHistory(&storage.HistoryRow{
			Kind: "refund",
			Pool: p.Address.Abbrev(),
			User: user.Abbrev(),
			Summary: fmt.Sprintf(
				"refunded %s %s and %s %s after failed deposit",
				cpmm.HumanString(a, p.DecimalsA),
				p.SymbolA,
				cpmm.HumanString(b, p.DecimalsB),
				p.SymbolB,
			),
		}); err != nil {
			logger.Warnf("history write failed: %s", err)
		}
	}
	refreshCtx, refreshCancel := p.callCtx(context.Background())
	defer refreshCancel()
	if err := p.RefreshReserves(refreshCtx); err != nil {
		logger.Warnf(
			"post-refund reserve refresh failed for %s: %s",
			p.Address.Abbrev(),
			err,
		)
	}
	return fmt.Errorf("liquidity not added, deposit %w: %w", ErrRefunded, cause)
}

// finishLiquidity runs the shared post-commit bookkeeping for liquidity
// changes: snapshot and broadcast via afterCommit, history line, and the
// position hint refresh
func (p *Pool) finishLiquidity(user ledger.Address, kind, summary string) {
	p.afterCommit(nil, &storage.HistoryRow{
		Kind:    kind,
		Pool:    p.Address.Abbrev(),
		User:    user.Abbrev(),
		Summary: summary,
	})
	p.saveHint(context.Background(), user)
}
