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
	"math/big"

	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/logging"
)

// Positions smaller than both thresholds are treated as dust and
// dropped from listings
const (
	dustHumanAmount  = 1e-6
	dustSharePercent = 1e-4
)

// UserPositions discovers a user's LP stakes from the ledger: every
// token the user holds whose metadata binds it to a pool becomes a
// position, whether or not this coordinator created the pool. The
// repository is never consulted; LP tokens move freely between users
// and only the ledger knows the current holders.
func (m *Manager) UserPositions(
	ctx context.Context,
	user ledger.Address,
) ([]*Position, error) {
	logger := logging.GetLogger()
	balCtx, balCancel := m.callCtx(ctx)
	balances, err := m.client.BalancesOf(balCtx, ledger.Account{Address: user})
	balCancel()
	if err != nil {
		return nil, err
	}
	positions := make([]*Position, 0)
	for _, balance := range balances {
		if balance.Amount.Sign() <= 0 {
			continue
		}
		infoCtx, infoCancel := m.callCtx(ctx)
		info, err := m.client.AccountInfo(
			infoCtx,
			ledger.Account{Address: balance.Token},
		)
		infoCancel()
		if err != nil {
			continue
		}
		meta, ok := ledger.DecodeLPTokenMetadata(info.Metadata)
		if !ok {
			continue
		}
		p, err := m.poolForLPToken(ctx, balance.Token, meta)
		if err != nil {
			logger.Debugf(
				"cannot resolve pool for LP token %s: %s",
				balance.Token.Abbrev(),
				err,
			)
			continue
		}
		pos, err := m.buildPosition(ctx, p, balance.Amount)
		if err != nil {
			logger.Warnf(
				"failed to value position in pool %s: %s",
				p.Address.Abbrev(),
				err,
			)
			continue
		}
		if pos != nil {
			positions = append(positions, pos)
		}
	}
	return positions, nil
}

// poolForLPToken resolves the pool an LP token points at, lazily
// registering pools created outside this coordinator
func (m *Manager) poolForLPToken(
	ctx context.Context,
	token ledger.Address,
	meta *ledger.LPTokenMetadata,
) (*Pool, error) {
	poolAddr, err := ledger.ParseAddress(meta.Pool)
	if err != nil {
		return nil, err
	}
	if p, err := m.GetPoolByAddress(poolAddr); err == nil {
		return p, nil
	}
	logger := logging.GetLogger()
	a, b := ledger.SortPair(
		ledger.Address(meta.TokenA),
		ledger.Address(meta.TokenB),
	)
	p := New(
		Params{
			Address: poolAddr,
			TokenA:  a,
			TokenB:  b,
			LPToken: token,
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
			"failed to initialize discovered pool %s: %s",
			poolAddr.Abbrev(),
			err,
		)
	}
	m.register(p)
	m.persistPool(p)
	logger.Infof(
		"registered pool %s discovered via LP token %s",
		poolAddr.Abbrev(),
		token.Abbrev(),
	)
	return p, nil
}

// buildPosition values a share balance against current reserves.
// Returns nil for dust.
func (m *Manager) buildPosition(
	ctx context.Context,
	p *Pool,
	shares *big.Int,
) (*Position, error) {
	totalShares, err := p.lpSupply(ctx)
	if err != nil {
		return nil, err
	}
	if totalShares.Sign() == 0 {
		return nil, nil
	}
	if err := p.RefreshReserves(ctx); err != nil {
		return nil, err
	}
	reserveA, reserveB := p.Reserves()
	a, b := cpmm.BurnToAmounts(shares, totalShares, reserveA, reserveB)
	sharePercent := percentOf(shares, totalShares)
	humanA := cpmm.HumanFloat(a, p.DecimalsA)
	humanB := cpmm.HumanFloat(b, p.DecimalsB)
	if humanA < dustHumanAmount && humanB < dustHumanAmount &&
		sharePercent < dustSharePercent {
		return nil, nil
	}
	return &Position{
		PoolAddress:  p.Address,
		TokenA:       p.TokenA,
		TokenB:       p.TokenB,
		SymbolA:      p.SymbolA,
		SymbolB:      p.SymbolB,
		LPToken:      p.LPToken,
		Shares:       new(big.Int).Set(shares),
		TotalShares:  totalShares,
		SharePercent: sharePercent,
		AmountA:      a,
		AmountB:      b,
		DecimalsA:    p.DecimalsA,
		DecimalsB:    p.DecimalsB,
	}, nil
}

// percentOf returns shares over total as a percentage with basis-point
// resolution
func percentOf(shares, total *big.Int) float64 {
	if total.Sign() == 0 {
		return 0
	}
	bps := new(big.Int).Mul(shares, big.NewInt(cpmm.BpsDenom))
	bps.Quo(bps, total)
	return float64(bps.Int64()) / 100
}

// DiscoverPools probes the configured candidate addresses for storage
// accounts holding two distinct tokens and registers a pool for each
// pair found. A discovered pool has no known LP token; it becomes
// swappable immediately and the LP token resolves lazily when a holder
// removes liquidity.
func (m *Manager) DiscoverPools(ctx context.Context) error {
	logger := logging.GetLogger()
	discovered := 0
	for _, candidate := range m.discoveryAddresses {
		addr, err := ledger.ParseAddress(candidate)
		if err != nil {
			logger.Warnf("skipping invalid discovery address %q", candidate)
			continue
		}
		if _, err := m.GetPoolByAddress(addr); err == nil {
			continue
		}
		balCtx, balCancel := m.callCtx(ctx)
		balances, err := m.client.BalancesOf(
			balCtx,
			ledger.Account{Address: addr},
		)
		balCancel()
		if err != nil {
			logger.Warnf(
				"cannot read balances of candidate %s: %s",
				addr.Abbrev(),
				err,
			)
			continue
		}
		tokens := make([]ledger.Address, 0, 2)
		for _, balance := range balances {
			if balance.Amount.Sign() > 0 {
				tokens = append(tokens, balance.Token)
			}
		}
		if len(tokens) != 2 {
			if len(tokens) > 2 {
				logger.Warnf(
					"candidate %s holds %d tokens, cannot infer a pair",
					addr.Abbrev(),
					len(tokens),
				)
			}
			continue
		}
		a, b := ledger.SortPair(tokens[0], tokens[1])
		if m.HasPool(a, b) {
			continue
		}
		p := New(
			Params{Address: addr, TokenA: a, TokenB: b},
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
				"failed to initialize discovered pool %s: %s",
				addr.Abbrev(),
				err,
			)
		}
		m.register(p)
		m.persistPool(p)
		discovered++
	}
	if discovered > 0 {
		logger.Infof("discovered %d pools on ledger", discovered)
	}
	return nil
}
