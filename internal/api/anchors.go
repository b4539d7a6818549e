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
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blinklabs-io/tidepool/internal/anchor"
	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/metrics"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/wallet"
)

// anchorsRequired guards the anchor endpoints when no registry is wired
func (s *Server) anchorsRequired(c *gin.Context) bool {
	if s.anchors == nil {
		respondError(
			c,
			fmt.Errorf("%w: anchor pools are not enabled", pool.ErrPoolNotFound),
		)
		return false
	}
	return true
}

func (s *Server) handleAnchorList(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	pools := s.anchors.All()
	views := make([]gin.H, 0, len(pools))
	for _, ap := range pools {
		views = append(views, anchorView(ap))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleAnchorByCreator(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	creator, err := parseAddr("address", c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	pools := s.anchors.ByCreator(creator)
	views := make([]gin.H, 0, len(pools))
	for _, ap := range pools {
		views = append(views, anchorView(ap))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleAnchorGet(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	addr, err := parseAddr("address", c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	ap, err := s.anchors.Get(addr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anchorView(ap))
}

type anchorCreateRequest struct {
	CreatorSeed string `json:"creatorSeed"`
	TokenA      string `json:"tokenA"`
	TokenB      string `json:"tokenB"`
	FeeBps      int64  `json:"feeBps"`
}

// handleAnchorCreate opens a creator-managed pool with its own fee.
// The creator's identity is the wallet derived from the seed; later
// fee and status changes must come from the same wallet.
func (s *Server) handleAnchorCreate(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	var req anchorCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	creator, err := anchorCaller(req.CreatorSeed)
	if err != nil {
		respondError(c, err)
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

	ap, err := s.anchors.Create(
		c.Request.Context(), tokenA, tokenB, creator, req.FeeBps,
	)
	if err != nil {
		respondError(c, err)
		return
	}
	s.updatePoolGauge()
	c.JSON(http.StatusOK, anchorView(ap))
}

type anchorMintRequest struct {
	UserSeed    string `json:"userSeed"`
	PoolAddress string `json:"poolAddress"`
	AmountA     string `json:"amountA"`
	AmountB     string `json:"amountB"`
	AmountAMin  string `json:"amountAMin"`
	AmountBMin  string `json:"amountBMin"`
}

// handleAnchorMintLP deposits into an anchor pool. Amounts are in the
// pool's token order; the pool must be active.
func (s *Server) handleAnchorMintLP(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	var req anchorMintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	signer, err := anchorSigner(req.UserSeed)
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

	res, err := s.anchors.MintLP(
		c.Request.Context(), signer, poolAddr, amountA, amountB, minA, minB,
	)
	if err != nil {
		if errors.Is(err, pool.ErrRefunded) {
			metrics.RecordRefund()
		}
		respondError(c, err)
		return
	}
	metrics.RecordLiquidityOp("add")
	ap, err := s.anchors.Get(poolAddr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, liquidityView(ap.Pool, res))
}

type anchorFeeRequest struct {
	CreatorSeed string `json:"creatorSeed"`
	PoolAddress string `json:"poolAddress"`
	FeeBps      int64  `json:"feeBps"`
}

func (s *Server) handleAnchorUpdateFee(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	var req anchorFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	caller, err := anchorCaller(req.CreatorSeed)
	if err != nil {
		respondError(c, err)
		return
	}
	poolAddr, err := parseAddr("poolAddress", req.PoolAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.anchors.UpdateFee(poolAddr, caller, req.FeeBps); err != nil {
		respondError(c, err)
		return
	}
	ap, err := s.anchors.Get(poolAddr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anchorView(ap))
}

type anchorStatusRequest struct {
	CreatorSeed string `json:"creatorSeed"`
	PoolAddress string `json:"poolAddress"`
	Status      string `json:"status"`
}

func (s *Server) handleAnchorUpdateStatus(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	var req anchorStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	caller, err := anchorCaller(req.CreatorSeed)
	if err != nil {
		respondError(c, err)
		return
	}
	poolAddr, err := parseAddr("poolAddress", req.PoolAddress)
	if err != nil {
		respondError(c, err)
		return
	}
	err = s.anchors.UpdateStatus(poolAddr, caller, anchor.Status(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	ap, err := s.anchors.Get(poolAddr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, anchorView(ap))
}

type anchorRemoveRequest struct {
	UserSeed    string `json:"userSeed"`
	PoolAddress string `json:"poolAddress"`
	Shares      string `json:"shares"`
	AmountAMin  string `json:"amountAMin"`
	AmountBMin  string `json:"amountBMin"`
}

// handleAnchorRemoveLiquidity withdraws from an anchor pool. Allowed in
// every lifecycle state so holders can always exit.
func (s *Server) handleAnchorRemoveLiquidity(c *gin.Context) {
	if !s.anchorsRequired(c) {
		return
	}
	var req anchorRemoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %s", pool.ErrInvalidInput, err))
		return
	}
	signer, err := anchorSigner(req.UserSeed)
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

	res, err := s.anchors.RemoveLiquidity(
		c.Request.Context(), signer, poolAddr, shares, minA, minB,
	)
	if err != nil {
		if errors.Is(err, pool.ErrRefunded) {
			metrics.RecordRefund()
		}
		respondError(c, err)
		return
	}
	metrics.RecordLiquidityOp("remove")
	ap, err := s.anchors.Get(poolAddr)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, liquidityView(ap.Pool, res))
}

// anchorSigner derives the signing wallet for a user-funded operation
func anchorSigner(seed string) (*wallet.Wallet, error) {
	if seed == "" {
		return nil, fmt.Errorf(
			"%w: userSeed is required",
			pool.ErrInvalidInput,
		)
	}
	return wallet.FromSecret(seed)
}

// anchorCaller derives the identity for a creator-gated operation
func anchorCaller(seed string) (ledger.Address, error) {
	if seed == "" {
		return "", fmt.Errorf(
			"%w: creatorSeed is required",
			pool.ErrInvalidInput,
		)
	}
	w, err := wallet.FromSecret(seed)
	if err != nil {
		return "", err
	}
	return w.Address(), nil
}

func anchorView(ap *anchor.Pool) gin.H {
	view := poolView(ap.Pool)
	view["creator"] = ap.Creator.String()
	view["feeBps"] = ap.FeeBps()
	view["status"] = string(ap.Status())
	return view
}
