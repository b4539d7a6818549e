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
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blinklabs-io/tidepool/internal/ledger"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/wallet"
)

// respondError maps sentinel errors to a status code and a stable
// machine-readable code. The error text carries the detail; clients
// switch on the code.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	switch {
	case errors.Is(err, pool.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidAddress),
		errors.Is(err, wallet.ErrInvalidSecret):
		status = http.StatusBadRequest
		code = "INVALID_INPUT"
	case errors.Is(err, pool.ErrInsufficientLiquidity):
		status = http.StatusBadRequest
		code = "INSUFFICIENT_LIQUIDITY"
	case errors.Is(err, pool.ErrInsufficientShares):
		status = http.StatusBadRequest
		code = "INSUFFICIENT_SHARES"
	case errors.Is(err, pool.ErrSlippageExceeded):
		status = http.StatusBadRequest
		code = "SLIPPAGE_EXCEEDED"
	case errors.Is(err, pool.ErrUnauthorized):
		status = http.StatusForbidden
		code = "UNAUTHORIZED"
	case errors.Is(err, pool.ErrPoolNotFound):
		status = http.StatusNotFound
		code = "POOL_NOT_FOUND"
	case errors.Is(err, pool.ErrPoolAlreadyExists):
		status = http.StatusConflict
		code = "POOL_ALREADY_EXISTS"
	case errors.Is(err, pool.ErrPoolNotActive):
		status = http.StatusConflict
		code = "POOL_NOT_ACTIVE"
	case errors.Is(err, ledger.ErrLedgerTimeout):
		status = http.StatusGatewayTimeout
		code = "LEDGER_TIMEOUT"
	case errors.Is(err, ledger.ErrLedgerRejected):
		status = http.StatusBadGateway
		code = "LEDGER_REJECTED"
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"code":  code,
	})
}
