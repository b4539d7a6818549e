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

// Package metrics holds the Prometheus collectors for the coordinator.
// Collectors register against the default registry; the debug listener
// serves them via promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Swap results used as the "result" label value
const (
	ResultCommitted = "committed"
	ResultRejected  = "rejected"
	ResultRefunded  = "refunded"
)

var (
	// SwapsTotal counts swap executions by pool and outcome
	SwapsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidepool_swaps_total",
			Help: "Swap executions by pool and result",
		},
		[]string{"pool", "result"},
	)

	// SwapDuration tracks end-to-end swap latency including settlement
	SwapDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tidepool_swap_duration_seconds",
			Help:    "End-to-end swap duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
	)

	// QuotesTotal counts served quotes
	QuotesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidepool_quotes_total",
			Help: "Quotes served",
		},
	)

	// LiquidityOpsTotal counts liquidity operations by kind
	LiquidityOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidepool_liquidity_ops_total",
			Help: "Liquidity operations by kind",
		},
		[]string{"op"},
	)

	// RefundsTotal counts swaps and deposits unwound after a failed
	// payout
	RefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidepool_refunds_total",
			Help: "Operations refunded after a failed payout",
		},
	)

	// Pools tracks the number of registered pools, standard plus anchor
	Pools = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidepool_pools",
			Help: "Registered pools",
		},
	)
)

// RecordSwap records one swap execution
func RecordSwap(pool, result string, duration time.Duration) {
	SwapsTotal.WithLabelValues(pool, result).Inc()
	SwapDuration.Observe(duration.Seconds())
}

// RecordQuote records one served quote
func RecordQuote() {
	QuotesTotal.Inc()
}

// RecordLiquidityOp records one liquidity operation ("add" or "remove")
func RecordLiquidityOp(op string) {
	LiquidityOpsTotal.WithLabelValues(op).Inc()
}

// RecordRefund records one refunded operation
func RecordRefund() {
	RefundsTotal.Inc()
}

// SetPoolCount updates the registered-pool gauge
func SetPoolCount(count int) {
	Pools.Set(float64(count))
}