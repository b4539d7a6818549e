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
	"fmt"
	"math/big"

	"github.com/cenkalti/backoff/v4"

	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

// Swap runs the full two-phase swap with a server-held user signer.
// TX1 moves the input from the user (pool leg plus treasury leg in one
// atomic publish), then after the settlement delay TX2 pays the quoted
// output from the pool via delegated send. Failures before TX1 leave
// no trace; failures after TX1 fall through to the refund path.
func (p *Pool) Swap(
	ctx context.Context,
	userSigner ledger.Signer,
	tokenIn ledger.Address,
	amountIn *big.Int,
	minAmountOut *big.Int,
) (*SwapResult, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if minAmountOut == nil {
		minAmountOut = new(big.Int)
	}
	user := userSigner.Address()
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	tokenOut, reserveIn, reserveOut, err := p.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	totalFeeBps, protocolFeeBps := p.Fees()
	quote, err := cpmm.SwapOutput(amountIn, reserveIn, reserveOut, totalFeeBps)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientLiquidity, err)
	}
	// Nothing has been published yet, so a losing quote is a clean
	// rejection rather than a refund
	if quote.AmountOut.Cmp(minAmountOut) < 0 {
		return nil, fmt.Errorf(
			"%w: output %s below minimum %s",
			ErrSlippageExceeded,
			quote.AmountOut,
			minAmountOut,
		)
	}
	protocolFee, amountToPool := cpmm.FeeSplit(amountIn, protocolFeeBps)

	// TX1: both legs settle together or not at all
	tx1 := p.client.NewTransaction(userSigner).
		Send(p.Address, amountToPool, tokenIn)
	if protocolFee.Sign() > 0 {
		tx1.Send(p.treasury, protocolFee, tokenIn)
	}
	tx1Ctx, tx1Cancel := p.callCtx(ctx)
	res1, err := p.client.Publish(tx1Ctx, tx1)
	tx1Cancel()
	if err != nil {
		return nil, fmt.Errorf("deposit failed: %w", err)
	}

	// The deposit is on the ledger now; the rest of the protocol runs to
	// completion regardless of the caller's context
	p.settle()
	tx2 := p.client.NewTransaction(p.operator).
		SendOnBehalfOf(p.Address, user, quote.AmountOut, tokenOut)
	res2, err := p.publishPayout(tx2)
	if err != nil {
		return nil, p.refundAndFail(
			user, tokenIn, tokenOut, amountToPool, protocolFee, err,
		)
	}

	p.afterCommit(
		&storage.SwapRow{
			PoolAddress:  p.Address.String(),
			TokenIn:      tokenIn.String(),
			TokenOut:     tokenOut.String(),
			AmountIn:     new(big.Int).Set(amountIn),
			AmountOut:    new(big.Int).Set(quote.AmountOut),
			FeeCollected: new(big.Int).Set(quote.FeeAmount),
			User:         user.String(),
			TxHash:       res2.FirstHash(),
		},
		&storage.HistoryRow{
			Kind: "swap",
			Pool: p.Address.Abbrev(),
			User: user.Abbrev(),
			Summary: fmt.Sprintf(
				"swapped %s %s for %s %s",
				cpmm.HumanString(amountIn, p.decimalsOf(tokenIn)),
				p.symbolOf(tokenIn),
				cpmm.HumanString(quote.AmountOut, p.decimalsOf(tokenOut)),
				p.symbolOf(tokenOut),
			),
		},
	)
	return &SwapResult{
		PoolAddress: p.Address,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   quote.AmountOut,
		FeeAmount:   quote.FeeAmount,
		PriceImpact: quote.PriceImpact,
		Tx1Hash:     res1.FirstHash(),
		Tx2Hash:     res2.FirstHash(),
	}, nil
}

// CompleteSwap runs TX2 for a swap whose TX1 the user published through
// their own wallet. The deposit is recovered as the growth of the input
// reserve over the last cached view; the claimed output is validated
// against a recompute on the pre-deposit reserves before anything is
// paid out.
func (p *Pool) CompleteSwap(
	ctx context.Context,
	user ledger.Address,
	tokenOut ledger.Address,
	amountOut *big.Int,
) (*SwapResult, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	var tokenIn ledger.Address
	switch tokenOut {
	case p.TokenA:
		tokenIn = p.TokenB
	case p.TokenB:
		tokenIn = p.TokenA
	default:
		return nil, fmt.Errorf(
			"%w: token %s not in pool %s",
			ErrInvalidInput,
			tokenOut.Abbrev(),
			p.Address.Abbrev(),
		)
	}

	// Pre-deposit view is the cache as last seen; the refresh below
	// observes the deposit
	_, preIn, preOut, err := p.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	_, postIn, _, err := p.orient(tokenIn)
	if err != nil {
		return nil, err
	}
	deposit := new(big.Int).Sub(postIn, preIn)
	if deposit.Sign() <= 0 {
		return nil, fmt.Errorf(
			"%w: no deposit observed on pool %s",
			ErrInvalidInput,
			p.Address.Abbrev(),
		)
	}

	// The deposit is the pool leg only; scale back up to the full input
	// the user committed
	totalFeeBps, protocolFeeBps := p.Fees()
	impliedIn := new(big.Int).Mul(deposit, big.NewInt(cpmm.BpsDenom))
	impliedIn.Quo(impliedIn, big.NewInt(cpmm.BpsDenom-protocolFeeBps))
	impliedFee := new(big.Int).Sub(impliedIn, deposit)

	expected, err := cpmm.SwapOutput(impliedIn, preIn, preOut, totalFeeBps)
	if err != nil {
		return nil, p.refundAndFail(
			user, tokenIn, tokenOut, deposit, impliedFee,
			fmt.Errorf("%w: %s", ErrInsufficientLiquidity, err),
		)
	}
	if amountOut.Cmp(expected.AmountOut) > 0 {
		return nil, p.refundAndFail(
			user, tokenIn, tokenOut, deposit, impliedFee,
			fmt.Errorf(
				"%w: requested %s exceeds computed %s",
				ErrSlippageExceeded,
				amountOut,
				expected.AmountOut,
			),
		)
	}

	tx2 := p.client.NewTransaction(p.operator).
		SendOnBehalfOf(p.Address, user, amountOut, tokenOut)
	res2, err := p.publishPayout(tx2)
	if err != nil {
		return nil, p.refundAndFail(
			user, tokenIn, tokenOut, deposit, impliedFee, err,
		)
	}

	p.afterCommit(
		&storage.SwapRow{
			PoolAddress:  p.Address.String(),
			TokenIn:      tokenIn.String(),
			TokenOut:     tokenOut.String(),
			AmountIn:     impliedIn,
			AmountOut:    new(big.Int).Set(amountOut),
			FeeCollected: expected.FeeAmount,
			User:         user.String(),
			TxHash:       res2.FirstHash(),
		},
		&storage.HistoryRow{
			Kind: "swap",
			Pool: p.Address.Abbrev(),
			User: user.Abbrev(),
			Summary: fmt.Sprintf(
				"swapped %s %s for %s %s",
				cpmm.HumanString(impliedIn, p.decimalsOf(tokenIn)),
				p.symbolOf(tokenIn),
				cpmm.HumanString(amountOut, p.decimalsOf(tokenOut)),
				p.symbolOf(tokenOut),
			),
		},
	)
	return &SwapResult{
		PoolAddress: p.Address,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    impliedIn,
		AmountOut:   new(big.Int).Set(amountOut),
		FeeAmount:   expected.FeeAmount,
		PriceImpact: expected.PriceImpact,
		Tx2Hash:     res2.FirstHash(),
	}, nil
}

// tx2Retry runs one operator-side ledger operation under the payout
// retry policy: bounded exponential backoff on rejection, no retry
// after a timeout since a timed-out publish may still have settled.
// By TX2 time the deposit is already on the ledger, so attempts run on
// fresh deadlines rather than the caller's context.
func (p *Pool) tx2Retry(op func() error) error {
	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ledger.ErrLedgerTimeout) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0
	if p.cfg.Tx2RetryInterval > 0 {
		policy.InitialInterval = p.cfg.Tx2RetryInterval
	}
	return backoff.Retry(
		attempt,
		backoff.WithMaxRetries(policy, uint64(p.cfg.Tx2Retries)),
	)
}

// publishPayout publishes an operator transaction under the payout
// retry policy
func (p *Pool) publishPayout(
	tx *ledger.TxBuilder,
) (*ledger.PublishResult, error) {
	var result *ledger.PublishResult
	err := p.tx2Retry(func() error {
		pubCtx, cancel := p.callCtx(context.Background())
		defer cancel()
		res, err := p.client.Publish(pubCtx, tx)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// refundAndFail compensates a swap that died after TX1: the pool leg of
// the deposit goes back to the user and the event log records that only
// the protocol fee was collected. Returns the error to surface, wrapping
// cause.
func (p *Pool) refundAndFail(
	user, tokenIn, tokenOut ledger.Address,
	amountToPool, protocolFee *big.Int,
	cause error,
) error {
	logger := logging.GetLogger()
	logger.Errorf(
		"swap payout failed for pool %s user %s, refunding %s: %s",
		p.Address.Abbrev(),
		user.Abbrev(),
		amountToPool,
		cause,
	)
	refundHash := ""
	refundTx := p.client.NewTransaction(p.operator).
		SendOnBehalfOf(p.Address, user, amountToPool, tokenIn)
	refundCtx, cancel := p.callCtx(context.Background())
	res, refundErr := p.client.Publish(refundCtx, refundTx)
	cancel()
	if refundErr != nil {
		// Deposit is stranded in the pool until an operator steps in
		logger.Errorf(
			"refund of %s to %s failed, deposit remains in pool %s: %s",
			amountToPool,
			user.Abbrev(),
			p.Address.Abbrev(),
			refundErr,
		)
	} else {
		refundHash = res.FirstHash()
	}

	if p.recorder != nil && protocolFee != nil && protocolFee.Sign() > 0 {
		// The treasury leg of TX1 settled and stays settled; record a
		// fee-only event so volume is not inflated by the dead swap
		if err := p.recorder.RecordSwap(&storage.SwapRow{
			PoolAddress:  p.Address.String(),
			TokenIn:      tokenIn.String(),
			TokenOut:     tokenOut.String(),
			AmountIn:     new(big.Int),
			AmountOut:    new(big.Int),
			FeeCollected: new(big.Int).Set(protocolFee),
			User:         user.String(),
			TxHash:       refundHash,
		}); err != nil {
			logger.Warnf("fee event write failed: %s", err)
		}
	}
	if p.store != nil && refundErr == nil {
		if err := p.store.AppendHistory(&storage.HistoryRow{
			Kind: "refund",
			Pool: p.Address.Abbrev(),
			User: user.Abbrev(),
			Summary: fmt.Sprintf(
				"refunded %s %s after failed swap",
				cpmm.HumanString(amountToPool, p.decimalsOf(tokenIn)),
				p.symbolOf(tokenIn),
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
	return fmt.Errorf("swap not completed, deposit %w: %w", ErrRefunded, cause)
}
