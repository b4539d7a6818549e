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

// Package api serves the coordinator's HTTP surface: pool listings and
// stats, swap quoting and execution, liquidity management, anchor pool
// administration, the transaction history feed, and a websocket price
// stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/blinklabs-io/tidepool/internal/anchor"
	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/pool"
	"github.com/blinklabs-io/tidepool/internal/stats"
	"github.com/blinklabs-io/tidepool/internal/storage"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidepool_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tidepool_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

const (
	defaultRateLimitRPS = 50
	// limiterSweepSize bounds the per-IP limiter table; crossing it
	// triggers a sweep of idle entries
	limiterSweepSize   = 1024
	limiterIdleTimeout = 10 * time.Minute
)

// Opts configures the API server
type Opts struct {
	Manager *pool.Manager
	Anchors *anchor.Registry
	Stats   *stats.Calculator
	Store   *storage.Store
	// ListenAddress is the host:port the server binds to
	ListenAddress string
	// RateLimitRPS is the per-client-IP request budget per second
	RateLimitRPS int
	// CORSOrigins lists allowed origins; "*" allows any
	CORSOrigins []string
}

// Server is the coordinator's HTTP front end. Handlers are thin: they
// parse and validate, call into the pool manager or anchor registry,
// and map sentinel errors to response codes.
type Server struct {
	manager *pool.Manager
	anchors *anchor.Registry
	stats   *stats.Calculator
	store   *storage.Store

	corsOrigins []string
	limiters    *ipLimiters
	hub         *priceHub
	router      *gin.Engine
	server      *http.Server
}

// NewServer wires the router, middleware, and price feed hub. Call
// Start to begin serving.
func NewServer(opts Opts) *Server {
	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = defaultRateLimitRPS
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		manager:     opts.Manager,
		anchors:     opts.Anchors,
		stats:       opts.Stats,
		store:       opts.Store,
		corsOrigins: opts.CORSOrigins,
		limiters:    newIPLimiters(rps),
		hub:         newPriceHub(opts.Manager),
		router:      router,
		server: &http.Server{
			Addr:         opts.ListenAddress,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware installs request IDs, access logging with metrics,
// CORS, and the per-IP rate limit, in that order
func (s *Server) setupMiddleware() {
	// Request ID middleware
	s.router.Use(func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	})

	// Logging and metrics middleware
	s.router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		logging.GetLogger().Infof(
			"%s %s %d %s ip=%s req=%s",
			c.Request.Method,
			path,
			status,
			duration,
			c.ClientIP(),
			c.Writer.Header().Get("X-Request-ID"),
		)
		requestsTotal.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(status),
		).Inc()
		requestDuration.WithLabelValues(c.Request.Method, route).
			Observe(duration.Seconds())
	})

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		allowed := false
		for _, o := range s.corsOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}
		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().
				Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			c.Writer.Header().
				Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	// Rate limiting middleware
	s.router.Use(func(c *gin.Context) {
		if !s.limiters.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
				"code":  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	})
}

// setupRoutes binds the HTTP surface
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/pools", s.handleListPools)
	s.router.GET("/pools/:address/stats", s.handlePoolStats)
	s.router.POST("/quote", s.handleQuote)

	swap := s.router.Group("/swap")
	{
		swap.POST("/execute", s.handleSwapExecute)
		swap.POST("/keythings/complete", s.handleSwapComplete)
	}

	liquidity := s.router.Group("/liquidity")
	{
		liquidity.POST("/add", s.handleLiquidityAdd)
		liquidity.POST("/keythings/complete", s.handleLiquidityComplete)
		liquidity.POST(
			"/keythings/remove-complete",
			s.handleLiquidityRemoveComplete,
		)
		liquidity.GET("/positions/:address", s.handlePositions)
	}

	anchors := s.router.Group("/anchor-pools")
	{
		anchors.GET("", s.handleAnchorList)
		anchors.GET("/creator/:address", s.handleAnchorByCreator)
		anchors.GET("/:address", s.handleAnchorGet)
		anchors.POST("/create", s.handleAnchorCreate)
		anchors.POST("/mint-lp", s.handleAnchorMintLP)
		anchors.POST("/update-fee", s.handleAnchorUpdateFee)
		anchors.POST("/update-status", s.handleAnchorUpdateStatus)
		anchors.POST("/remove-liquidity", s.handleAnchorRemoveLiquidity)
	}

	s.router.GET("/history", s.handleHistory)
	s.router.GET("/ws/prices", s.handlePriceFeed)
}

// Start begins serving and blocks until the listener fails or Stop is
// called
func (s *Server) Start() error {
	logger := logging.GetLogger()
	go s.hub.run()
	logger.Infof("api server listening on %s", s.server.Addr)
	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the price feed and drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.hub.stop()
	return s.server.Shutdown(ctx)
}

// ipLimiters hands out one token bucket per client IP
type ipLimiters struct {
	mu      sync.Mutex
	rps     int
	entries map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiters(rps int) *ipLimiters {
	return &ipLimiters{
		rps:     rps,
		entries: make(map[string]*limiterEntry),
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[ip]
	if !ok {
		if len(l.entries) >= limiterSweepSize {
			l.sweep()
		}
		e = &limiterEntry{
			limiter: rate.NewLimiter(rate.Limit(l.rps), l.rps*2),
		}
		l.entries[ip] = e
	}
	e.lastSeen = time.Now()
	return e.limiter.Allow()
}

// sweep drops entries idle beyond limiterIdleTimeout. Caller holds the
// lock.
func (l *ipLimiters) sweep() {
	cutoff := time.Now().Add(-limiterIdleTimeout)
	for ip, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, ip)
		}
	}
}
