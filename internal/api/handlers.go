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

package api

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blinklabs-io/tidepool/internal/anchor"
	"github.com/blinklabs-io/tidepool/internal/cpmm"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/metrics"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/stats"
	"github.com/blinklabs-io/tidepool/internal/storage"
	"github.com/blinklabs-io/tidepool/internal/version"
	"github.com/blinklabs-io/tidepool/internal/wallet"
)

func (s *Server) handleHealth(c *gin.Context) {
	count := s.manager.PoolCount()
	if s.anchors != nil {
		count += s.anchors.Count()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.GetVersionString(),
		"pools":   count,
	})
}

func (s *Server) handleListPools(c *gin.Context) {
	pools := s.manager.AllPools()
	views := make([]gin.H, 0, len(pools))
	for _, p := range pools {
		views = append(views, poolView(p))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handlePoolStats(c *gin.Context) {
	addr, err := parseAddr("address", c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	if p, err := s.manager.GetPoolByAddress(addr); err == nil {
		c.JSON(http.StatusOK, statsView(s.stats.Calc(p)))
		return
	}
	if s.anchors != nil {
		if ap, err := s.anchors.Get(addr); err == nil {
			c.JSON(http.StatusOK, statsView(s.stats.CalcAnchor(ap)))
			return
		}
	}
	respondError(c, fmt.Errorf("%w: %s", pool.ErrPoolNotFound, addr.Abbrev()))
}

type quoteRequest struct {
	TokenIn  string `json:"tokenIn"`
	TokenOut string `json:"tokenOut"`
	AmountIn string `json:"amountIn"`
}

// handleQuote prices the swap on both registries and returns the
// better output, tagged with its source
func (s *Server) handleQuote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	tokenIn, err := parseAddr("tokenIn", req.TokenIn)
	if err != nil {
		respondError(c, err)
		return
	}
	tokenOut, err := parseAddr("tokenOut", req.TokenOut)
	if err != nil {
		respondError(c, err)
		return
	}
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	var stdQuote *pool.QuoteResult
	p, stdErr := s.manager.SwapRoute(tokenIn, tokenOut)
	if stdErr == nil {
		stdQuote, stdErr = p.Quote(ctx, tokenIn, amountIn)
	}
	var anchorQuote *pool.QuoteResult
	var anchorErr error = pool.ErrPoolNotFound
	if s.anchors != nil {
		anchorQuote, _, anchorErr = s.anchors.BestQuote(
			ctx, tokenIn, tokenOut, amountIn,
		)
	}

	var best *pool.QuoteResult
	source := "standard"
	switch {
	case stdQuote == nil && anchorQuote == nil:
		err := stdErr
		if errors.Is(err, pool.ErrPoolNotFound) &&
			!errors.Is(anchorErr, pool.ErrPoolNotFound) {
			err = anchorErr
		}
		respondError(c, err)
		return
	case anchorQuote == nil:
		best = stdQuote
	case stdQuote == nil || anchorQuote.AmountOut.Cmp(stdQuote.AmountOut) > 0:
		best = anchorQuote
		source = "anchor"
	default:
		best = stdQuote
	}
	metrics.RecordQuote()
	c.JSON(http.StatusOK, quoteView(best, source))
}

type swapExecuteRequest struct {
	UserSeed        string   `json:"userSeed"`
	TokenIn         string   `json:"tokenIn"`
	TokenOut        string   `json:"tokenOut"`
	AmountIn        string   `json:"amountIn"`
	MinAmountOut    string   `json:"minAmountOut"`
	SlippagePercent *float64 `json:"slippagePercent"`
	// PoolAddress pins the swap to one pool instead of routing by pair
	PoolAddress string `json:"poolAddress"`
}

// handleSwapExecute runs both legs of a swap with a server-held user
// signer. Without an explicit minimum the output is quoted first and
// the slippage tolerance applied to it.
func (s *Server) handleSwapExecute(c *gin.Context) {
	var req swapExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	if req.UserSeed == "" {
		respondError(
			c,
			fmt.Errorf("%w: userSeed is required", pool.ErrInvalidInput),
		)
		return
	}
	signer, err := wallet.FromSecret(req.UserSeed)
	if err != nil {
		respondError(c, err)
		return
	}
	tokenIn, err := parseAddr("tokenIn", req.TokenIn)
	if err != nil {
		respondError(c, err)
		return
	}
	tokenOut, err := parseAddr("tokenOut", req.TokenOut)
	if err != nil {
		respondError(c, err)
		return
	}
	amountIn, err := parseAmount("amountIn", req.AmountIn)
	if err != nil {
		respondError(c, err)
		return
	}
	slippage, err := parseSlippage(req.SlippagePercent)
	if err != nil {
		respondError(c, err)
		return
	}
	minOut, err := parseOptionalAmount("minAmountOut", req.MinAmountOut)
	if err != nil {
		respondError(c, err)
		return
	}
	ctx := c.Request.Context()

	venue, err := s.resolveSwapVenue(
		ctx, req.PoolAddress, tokenIn, tokenOut, amountIn,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	if minOut == nil {
		quote, err := venue.quote(ctx, tokenIn, amountIn)
		if err != nil {
			respondError(c, err)
			return
		}
		minOut = cpmm.MinAmountOut(quote.AmountOut, slippage)
	}

	start := time.Now()
	res, err := venue.swap(ctx, signer, tokenIn, amountIn, minOut)
	recordSwapOutcome(venue.address(), start, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, swapView(res))
}

type swapCompleteRequest struct {
	UserAddress string `json:"userAddress"`
	PoolAddress string `json:"poolAddress"`
	TokenOut    string `json:"tokenOut"`
	AmountOut   string `json:"amountOut"`
}

// handleSwapComplete pays out a swap whose deposit the user published
// through their own wallet
func (s *Server) handleSwapComplete(c *gin.Context) {
	var req swapCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	user, err := parseAddr("userAddress", req.UserAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	poolAddr, err := parseAddr("poolAddress", req.PoolAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	tokenOut, err := parseAddr("tokenOut", req.TokenOut)
	if err != nil {
		respondError(c, err)
		return
	}
	amountOut, err := parseAmount("amountOut", req.AmountOut)
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := s.poolByAddress(poolAddr)
	if err != nil {
		respondError(c, err)
		return
	}

	start := time.Now()
	res, err := p.CompleteSwap(c.Request.Context(), user, tokenOut, amountOut)
	recordSwapOutcome(poolAddr, start, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, swapView(res))
}

type liquidityAddRequest struct {
	UserSeed    string `json:"userSeed"`
	UserAddress string `json:"userAddress"`
	TokenA      string `json:"tokenA"`
	TokenB      string `json:"tokenB"`
	AmountA     string `json:"amountA"`
	AmountB     string `json:"amountB"`
	AmountAMin  string `json:"amountAMin"`
	AmountBMin  string `json:"amountBMin"`
}

// handleLiquidityAdd deposits into the pair's pool, creating the pool
// when none exists. With a seed the server runs both legs; without one
// it reserves the pool and tells the caller to publish the deposit and
// finish via the keythings completion endpoint.
func (s *Server) handleLiquidityAdd(c *gin.Context) {
	var req liquidityAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	tokenA, err := parseAddr("tokenA", req.TokenA)
	if err != nil {
		respondError(c, err)
		return
	}
	tokenB, err := parseAddr("tokenB", req.TokenB)
	if err != nil {
		respondError(c, err)
		return
	}
	if tokenA == tokenB {
		respondError(
			c,
			fmt.Errorf("%w: pool needs two distinct tokens", pool.ErrInvalidInput),
		)
		return
	}
	amountA, err := parseAmount("amountA", req.AmountA)
	if err != nil {
		respondError(c, err)
		return
	}
	amountB, err := parseAmount("amountB", req.AmountB)
	if err != nil {
		respondError(c, err)
		return
	}
	minA, err := parseOptionalAmount("amountAMin", req.AmountAMin)
	if err != nil {
		respondError(c, err)
		return
	}
	minB, err := parseOptionalAmount("amountBMin", req.AmountBMin)
	if err != nil {
		respondError(c, err)
		return
	}

	var signer *wallet.Wallet
	var user ledger.Address
	if req.UserSeed != "" {
		signer, err = wallet.FromSecret(req.UserSeed)
		if err != nil {
			respondError(c, err)
			return
		}
		user = signer.Address()
	} else {
		user, err = parseAddr("userAddress", req.UserAddress)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	// Deposits are expressed against the sorted pair order
	if a, _ := ledger.SortPair(tokenA, tokenB); a != tokenA {
		amountA, amountB = amountB, amountA
		minA, minB = minB, minA
	}

	ctx := c.Request.Context()
	created := false
	p, err := s.manager.GetPool(tokenA, tokenB)
	if errors.Is(err, pool.ErrPoolNotFound) {
		p, err = s.manager.CreatePool(ctx, tokenA, tokenB, user)
		created = err == nil
		if created {
			s.updatePoolGauge()
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if signer == nil {
		c.JSON(http.StatusOK, gin.H{
			"requiresKeythingsLiquidity": true,
			"poolAddress":                p.Address.String(),
			"tokenA":                     p.TokenA.String(),
			"tokenB":                     p.TokenB.String(),
			"lpToken":                    p.LPToken.String(),
			"created":                    created,
		})
		return
	}

	res, err := p.AddLiquidity(ctx, signer, amountA, amountB, minA, minB)
	if err != nil {
		if errors.Is(err, pool.ErrRefunded) {
			metrics.RecordRefund()
		}
		respondError(c, err)
		return
	}
	metrics.RecordLiquidityOp("add")
	view := liquidityView(p, res)
	view["created"] = created
	c.JSON(http.StatusOK, view)
}

type liquidityCompleteRequest struct {
	UserAddress string `json:"userAddress"`
	PoolAddress string `json:"poolAddress"`
	AmountA     string `json:"amountA"`
	AmountB     string `json:"amountB"`
}

// handleLiquidityComplete mints shares for a deposit the user published
// through their own wallet. Amounts are in the pool's token order.
func (s *Server) handleLiquidityComplete(c *gin.Context) {
	var req liquidityCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	user, err := parseAddr("userAddress", req.UserAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	poolAddr, err := parseAddr("poolAddress", req.PoolAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	amountA, err := parseAmount("amountA", req.AmountA)
	if err != nil {
		respondError(c, err)
		return
	}
	amountB, err := parseAmount("amountB", req.AmountB)
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := s.poolByAddress(poolAddr)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := p.CompleteAddLiquidity(c.Request.Context(), user, amountA, amountB)
	if err != nil {
		if errors.Is(err, pool.ErrRefunded) {
			metrics.RecordRefund()
		}
		respondError(c, err)
		return
	}
	metrics.RecordLiquidityOp("add")
	c.JSON(http.StatusOK, liquidityView(p, res))
}

type liquidityRemoveRequest struct {
	UserAddress string `json:"userAddress"`
	PoolAddress string `json:"poolAddress"`
	Shares      string `json:"shares"`
	AmountAMin  string `json:"amountAMin"`
	AmountBMin  string `json:"amountBMin"`
}

// handleLiquidityRemoveComplete burns shares the user already parked at
// the LP token account and pays out both pool legs
func (s *Server) handleLiquidityRemoveComplete(c *gin.Context) {
	var req liquidityRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	user, err := parseAddr("userAddress", req.UserAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	poolAddr, err := parseAddr("poolAddress", req.PoolAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	shares, err := parseAmount("shares", req.Shares)
	if err != nil {
		respondError(c, err)
		return
	}
	minA, err := parseOptionalAmount("amountAMin", req.AmountAMin)
	if err != nil {
		respondError(c, err)
		return
	}
	minB, err := parseOptionalAmount("amountBMin", req.AmountBMin)
	if err != nil {
		respondError(c, err)
		return
	}
	p, err := s.poolByAddress(poolAddr)
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := p.CompleteRemoveLiquidity(
		c.Request.Context(), user, shares, minA, minB,
	)
	if err != nil {
		if errors.Is(err, pool.ErrRefunded) {
			metrics.RecordRefund()
		}
		respondError(c, err)
		return
	}
	metrics.RecordLiquidityOp("remove")
	c.JSON(http.StatusOK, liquidityView(p, res))
}

func (s *Server) handlePositions(c *gin.Context) {
	user, err := parseAddr("address", c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	positions, err := s.manager.UserPositions(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]gin.H, 0, len(positions))
	for _, pos := range positions {
		views = append(views, positionView(pos))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		respondError(
			c,
			fmt.Errorf("%w: limit is not a number", pool.ErrInvalidInput),
		)
		return
	}
	rows, err := s.manager.History(limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []*storage.HistoryRow{}
	}
	c.JSON(http.StatusOK, rows)
}

// swapVenue binds a resolved pool to the entry point that enforces its
// trading rules; anchor pool swaps go through the registry so the
// lifecycle status gate applies
type swapVenue struct {
	pool     *pool.Pool
	anchored bool
	registry *anchor.Registry
}

func (v *swapVenue) address() ledger.Address {
	return v.pool.Address
}

func (v *swapVenue) quote(
	ctx context.Context,
	tokenIn ledger.Address,
	amountIn *big.Int,
) (*pool.QuoteResult, error) {
	return v.pool.Quote(ctx, tokenIn, amountIn)
}

func (v *swapVenue) swap(
	ctx context.Context,
	signer ledger.Signer,
	tokenIn ledger.Address,
	amountIn, minOut *big.Int,
) (*pool.SwapResult, error) {
	if v.anchored {
		return v.registry.Swap(
			ctx, signer, v.pool.Address, tokenIn, amountIn, minOut,
		)
	}
	return v.pool.Swap(ctx, signer, tokenIn, amountIn, minOut)
}

// resolveSwapVenue picks the pool for a swap: an explicit pool address
// wins, otherwise the standard pair pool, otherwise the best active
// anchor pool
func (s *Server) resolveSwapVenue(
	ctx context.Context,
	poolAddress string,
	tokenIn, tokenOut ledger.Address,
	amountIn *big.Int,
) (*swapVenue, error) {
	if poolAddress != "" {
		addr, err := parseAddr("poolAddress", poolAddress)
		if err != nil {
			return nil, err
		}
		if p, err := s.manager.GetPoolByAddress(addr); err == nil {
			if err := matchesPair(p, tokenIn, tokenOut); err != nil {
				return nil, err
			}
			return &swapVenue{pool: p}, nil
		}
		if s.anchors != nil {
			if ap, err := s.anchors.Get(addr); err == nil {
				if err := matchesPair(ap.Pool, tokenIn, tokenOut); err != nil {
					return nil, err
				}
				return &swapVenue{
					pool:     ap.Pool,
					anchored: true,
					registry: s.anchors,
				}, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", pool.ErrPoolNotFound, addr.Abbrev())
	}

	p, err := s.manager.SwapRoute(tokenIn, tokenOut)
	if err == nil {
		return &swapVenue{pool: p}, nil
	}
	if errors.Is(err, pool.ErrPoolNotFound) && s.anchors != nil {
		_, ap, anchorErr := s.anchors.BestQuote(ctx, tokenIn, tokenOut, amountIn)
		if anchorErr == nil {
			return &swapVenue{
				pool:     ap.Pool,
				anchored: true,
				registry: s.anchors,
			}, nil
		}
	}
	return nil, err
}

// matchesPair checks that the pool trades exactly this token pair
func matchesPair(p *pool.Pool, tokenIn, tokenOut ledger.Address) error {
	a, b := ledger.SortPair(tokenIn, tokenOut)
	if tokenIn == tokenOut || a != p.TokenA || b != p.TokenB {
		return fmt.Errorf(
			"%w: pool %s does not trade %s/%s",
			pool.ErrInvalidInput,
			p.Address.Abbrev(),
			tokenIn.Abbrev(),
			tokenOut.Abbrev(),
		)
	}
	return nil
}

// poolByAddress resolves either registry to the inner trade engine.
// Completion endpoints use this: the deposit already settled, so the
// payout-or-refund protocol must run even on a paused anchor pool.
func (s *Server) poolByAddress(addr ledger.Address) (*pool.Pool, error) {
	if p, err := s.manager.GetPoolByAddress(addr); err == nil {
		return p, nil
	}
	if s.anchors != nil {
		if ap, err := s.anchors.Get(addr); err == nil {
			return ap.Pool, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", pool.ErrPoolNotFound, addr.Abbrev())
}

// updatePoolGauge refreshes the registered-pool metric across both
// registries
func (s *Server) updatePoolGauge() {
	count := s.manager.PoolCount()
	if s.anchors != nil {
		count += s.anchors.Count()
	}
	metrics.SetPoolCount(count)
}

// recordSwapOutcome tracks a swap attempt: committed, cleanly rejected,
// or unwound by the refund path
func recordSwapOutcome(addr ledger.Address, start time.Time, err error) {
	result := metrics.ResultCommitted
	if err != nil {
		result = metrics.ResultRejected
		if errors.Is(err, pool.ErrRefunded) {
			result = metrics.ResultRefunded
			metrics.RecordRefund()
		}
	}
	metrics.RecordSwap(addr.String(), result, time.Since(start))
}

func poolView(p *pool.Pool) gin.H {
	reserveA, reserveB := p.Reserves()
	humanA := cpmm.HumanFloat(reserveA, p.DecimalsA)
	humanB := cpmm.HumanFloat(reserveB, p.DecimalsB)
	var price float64
	if humanA > 0 {
		price = humanB / humanA
	}
	totalBps, protocolBps := p.Fees()
	return gin.H{
		"poolAddress":    p.Address.String(),
		"tokenA":         p.TokenA.String(),
		"tokenB":         p.TokenB.String(),
		"symbolA":        p.SymbolA,
		"symbolB":        p.SymbolB,
		"decimalsA":      p.DecimalsA,
		"decimalsB":      p.DecimalsB,
		"lpToken":        p.LPToken.String(),
		"reserveA":       reserveA.String(),
		"reserveB":       reserveB.String(),
		"reserveAHuman":  humanA,
		"reserveBHuman":  humanB,
		"price":          price,
		"feeTotalBps":    totalBps,
		"feeProtocolBps": protocolBps,
	}
}

// statValue renders the unknown sentinel as a string so clients can
// tell missing data apart from zero
func statValue(v float64) any {
	if v == stats.Unknown {
		return "unknown"
	}
	return v
}

func statsView(ps *stats.PoolStats) gin.H {
	return gin.H{
		"poolAddress": ps.PoolAddress,
		"swapCount":   ps.SwapCount,
		"tvl":         statValue(ps.TVL),
		"volume24h":   statValue(ps.Volume24h),
		"fees24h":     statValue(ps.Fees24h),
		"apy":         statValue(ps.APY),
	}
}

func quoteView(q *pool.QuoteResult, source string) gin.H {
	return gin.H{
		"poolAddress":  q.PoolAddress.String(),
		"tokenIn":      q.TokenIn.String(),
		"tokenOut":     q.TokenOut.String(),
		"amountIn":     q.AmountIn.String(),
		"amountOut":    q.AmountOut.String(),
		"feeAmount":    q.FeeAmount.String(),
		"priceImpact":  q.PriceImpact,
		"minAmountOut": q.MinAmountOut.String(),
		"source":       source,
	}
}

func swapView(res *pool.SwapResult) gin.H {
	return gin.H{
		"poolAddress": res.PoolAddress.String(),
		"tokenIn":     res.TokenIn.String(),
		"tokenOut":    res.TokenOut.String(),
		"amountIn":    res.AmountIn.String(),
		"amountOut":   res.AmountOut.String(),
		"feeAmount":   res.FeeAmount.String(),
		"priceImpact": res.PriceImpact,
		"tx1Hash":     res.Tx1Hash,
		"tx2Hash":     res.Tx2Hash,
	}
}

func liquidityView(p *pool.Pool, res *pool.LiquidityResult) gin.H {
	return gin.H{
		"poolAddress":  res.PoolAddress.String(),
		"tokenA":       p.TokenA.String(),
		"tokenB":       p.TokenB.String(),
		"amountA":      res.AmountA.String(),
		"amountB":      res.AmountB.String(),
		"shares":       res.Shares.String(),
		"lockedShares": res.LockedShares.String(),
		"totalShares":  res.TotalShares.String(),
		"tx1Hash":      res.Tx1Hash,
		"tx2Hash":      res.Tx2Hash,
	}
}

func positionView(pos *pool.Position) gin.H {
	return gin.H{
		"poolAddress":  pos.PoolAddress.String(),
		"tokenA":       pos.TokenA.String(),
		"tokenB":       pos.TokenB.String(),
		"symbolA":      pos.SymbolA,
		"symbolB":      pos.SymbolB,
		"lpToken":      pos.LPToken.String(),
		"shares":       pos.Shares.String(),
		"totalShares":  pos.TotalShares.String(),
		"sharePercent": pos.SharePercent,
		"amountA":      pos.AmountA.String(),
		"amountB":      pos.AmountB.String(),
		"amountAHuman": cpmm.HumanFloat(pos.AmountA, pos.DecimalsA),
		"amountBHuman": cpmm.HumanFloat(pos.AmountB, pos.DecimalsB),
	}
}
