// Copyright 2024 Hedera Hashgraph, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/configuration"
	"github.com/hashgraph/hedera-rpc-relay/metrics"
	"github.com/hashgraph/hedera-rpc-relay/services"
)

// notification is the eth_subscription frame pushed to subscribers.
type notification struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  notificationParams `json:"params"`
}

type notificationParams struct {
	Subscription string `json:"subscription"`
	Result       any    `json:"result"`
}

// WSServer is the JSON-RPC WebSocket transport with subscription
// support.
type WSServer struct {
	log        *zap.Logger
	dispatcher *Dispatcher
	manager    *Manager

	newHeadsEnabled  bool
	maxSubscriptions int

	upgrader websocket.Upgrader
	http     *http.Server
}

// NewWSServer builds the WebSocket transport.
func NewWSServer(log *zap.Logger, cfg *configuration.Configuration, dispatcher *Dispatcher, manager *Manager) *WSServer {
	s := &WSServer{
		log:              log,
		dispatcher:       dispatcher,
		manager:          manager,
		newHeadsEnabled:  cfg.WSNewHeadsEnabled,
		maxSubscriptions: cfg.WSMaxSubscriptions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	routes := http.NewServeMux()
	routes.HandleFunc("/", s.handleUpgrade)
	routes.HandleFunc("/ws", s.handleUpgrade)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WSPort),
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving connections until Shutdown.
func (s *WSServer) ListenAndServe() error {
	s.log.Info("websocket server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown closes the listener; open connections end with their read
// loops.
func (s *WSServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *WSServer) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &wsConn{server: s, socket: socket, ip: clientIP(r)}
	metrics.Connections.Inc()
	defer func() {
		s.manager.UnsubscribeAll(conn)
		_ = socket.Close()
		metrics.Connections.Dec()
	}()
	conn.readLoop(r.Context())
}

// wsConn is one upgraded connection. Writes are serialized: the read
// loop and the poller's notifications share the socket.
type wsConn struct {
	server *WSServer
	socket *websocket.Conn
	ip     string

	writeMu sync.Mutex
}

// Notify implements Notifier.
func (c *wsConn) Notify(subscriptionID string, result any) {
	c.write(&notification{
		JSONRPC: "2.0",
		Method:  "eth_subscription",
		Params:  notificationParams{Subscription: subscriptionID, Result: result},
	})
}

func (c *wsConn) write(payload any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.socket.WriteJSON(payload); err != nil {
		c.server.log.Debug("websocket write failed", zap.Error(err))
	}
}

func (c *wsConn) readLoop(ctx context.Context) {
	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			return
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			c.write(errorResponse(nil, services.ErrParse))
			continue
		}
		c.serve(ctx, &req)
	}
}

func (c *wsConn) serve(ctx context.Context, req *request) {
	rc := NewRequestContext(c.ip, c.server.log)
	ctx = WithRequestContext(ctx, rc)

	switch req.Method {
	case "eth_subscribe":
		c.write(c.subscribe(req))
	case "eth_unsubscribe":
		c.write(c.unsubscribe(req))
	default:
		result, err := c.server.dispatcher.Execute(ctx, req.Method, req.Params)
		if err != nil {
			c.write(errorResponse(req.ID, err))
			return
		}
		c.write(resultResponse(req.ID, result))
	}
}

// subscribe handles eth_subscribe: logs with optional criteria,
// newHeads when enabled. Pending transactions are unsupported, Hedera
// has no mempool.
func (c *wsConn) subscribe(req *request) *response {
	if len(req.Params) == 0 {
		return errorResponse(req.ID, services.NewMissingRequiredParameter(0))
	}
	event, ok := req.Params[0].(string)
	if !ok {
		return errorResponse(req.ID, services.NewInvalidParameter(0, "expected a subscription event"))
	}

	if c.server.manager.Count(c) >= c.server.maxSubscriptions {
		return errorResponse(req.ID, services.ErrMaxSubscriptions)
	}

	switch event {
	case EventLogs:
		var criteria services.LogCriteria
		if err := decodeParam(req.Params, 1, &criteria); err != nil {
			return errorResponse(req.ID, err)
		}
		if criteria.BlockHash != "" || criteria.FromBlock != "" || criteria.ToBlock != "" {
			return errorResponse(req.ID, services.NewInvalidParameter(1, "block criteria are not allowed on subscriptions"))
		}
		return resultResponse(req.ID, c.server.manager.Subscribe(EventLogs, criteria, c))
	case EventNewHeads:
		if !c.server.newHeadsEnabled {
			return errorResponse(req.ID, services.ErrUnsupportedMethod)
		}
		return resultResponse(req.ID, c.server.manager.Subscribe(EventNewHeads, services.LogCriteria{}, c))
	default:
		return errorResponse(req.ID, services.ErrUnsupportedMethod)
	}
}

func (c *wsConn) unsubscribe(req *request) *response {
	if len(req.Params) == 0 {
		return errorResponse(req.ID, services.NewMissingRequiredParameter(0))
	}
	id, ok := req.Params[0].(string)
	if !ok {
		return errorResponse(req.ID, services.NewInvalidParameter(0, "expected a subscription id"))
	}
	return resultResponse(req.ID, c.server.manager.Unsubscribe(id, c))
}
