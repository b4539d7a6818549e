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
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blinklabs-io/tidepool/internal/logging"
	"github.com/blinklabs-io/tidepool/internal/pool"
)

var wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "tidepool_api_ws_connections",
	Help: "Number of active websocket price feed connections",
})

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = 512
)

// priceHub fans pool updates out to websocket subscribers. Broadcasts
// run under the read lock; connections that fail a write are collected
// and pruned under the write lock afterwards.
type priceHub struct {
	manager  *pool.Manager
	updates  <-chan *pool.PriceUpdate
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	stopOnce sync.Once
}

func newPriceHub(manager *pool.Manager) *priceHub {
	return &priceHub{
		manager: manager,
		updates: manager.Subscribe(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// run consumes the update stream until the subscription closes, then
// drops every connection
func (h *priceHub) run() {
	for update := range h.updates {
		h.broadcast(update)
	}
	h.mu.Lock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
	wsConnections.Set(0)
	h.mu.Unlock()
}

// stop unsubscribes from the manager, which closes the update channel
// and unwinds run. Idempotent.
func (h *priceHub) stop() {
	h.stopOnce.Do(func() {
		h.manager.Unsubscribe(h.updates)
	})
}

func (h *priceHub) broadcast(update *pool.PriceUpdate) {
	var failed []*websocket.Conn
	h.mu.RLock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(update); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()
	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range failed {
		if _, ok := h.conns[conn]; ok {
			delete(h.conns, conn)
			conn.Close()
			wsConnections.Dec()
		}
	}
	h.mu.Unlock()
}

// serve upgrades the request and registers the connection. The read
// pump discards client frames and unregisters on error or close.
func (h *priceHub) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.GetLogger().Debugf("websocket upgrade failed: %s", err)
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	wsConnections.Inc()

	go func() {
		defer h.drop(conn)
		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *priceHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		wsConnections.Dec()
	}
	h.mu.Unlock()
	conn.Close()
}

// handlePriceFeed streams reserve and price updates for every pool the
// coordinator commits a change to
func (s *Server) handlePriceFeed(c *gin.Context) {
	s.hub.serve(c.Writer, c.Request)
}
