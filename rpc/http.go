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
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/configuration"
	"github.com/hashgraph/hedera-rpc-relay/services"
)

const requestDeadline = 60 * time.Second

// request is one JSON-RPC 2.0 request envelope. ID stays raw so the
// response echoes whatever shape the caller sent.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  []any           `json:"params"`
}

// response is one JSON-RPC 2.0 response envelope.
type response struct {
	JSONRPC string             `json:"jsonrpc"`
	ID      json.RawMessage    `json:"id"`
	Result  any                `json:"result,omitempty"`
	Error   *services.RPCError `json:"error,omitempty"`
}

func resultResponse(id json.RawMessage, result any) *response {
	return &response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, err error) *response {
	rpcErr, ok := services.AsRPCError(err)
	if !ok {
		rpcErr = services.NewInternalError(err)
	}
	return &response{JSONRPC: "2.0", ID: id, Error: rpcErr}
}

// Server is the JSON-RPC HTTP transport.
type Server struct {
	log        *zap.Logger
	dispatcher *Dispatcher
	readiness  func(ctx context.Context) error

	batchEnabled bool
	batchMaxSize int

	http *http.Server
}

// NewServer builds the HTTP transport. readiness is consulted by the
// readiness probe and may be nil.
func NewServer(log *zap.Logger, cfg *configuration.Configuration, dispatcher *Dispatcher, readiness func(ctx context.Context) error) *Server {
	s := &Server{
		log:          log,
		dispatcher:   dispatcher,
		readiness:    readiness,
		batchEnabled: cfg.BatchRequestsEnabled,
		batchMaxSize: cfg.BatchRequestsMaxSize,
	}

	router := mux.NewRouter()
	router.HandleFunc("/", s.handleRPC).Methods(http.MethodPost)
	router.HandleFunc("/health/liveness", s.handleLiveness).Methods(http.MethodGet)
	router.HandleFunc("/health/readiness", s.handleReadiness).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           cors.AllowAll().Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestDeadline)
	defer cancel()

	rc := NewRequestContext(clientIP(r), s.log)
	ctx = WithRequestContext(ctx, rc)

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, s.log, errorResponse(nil, services.ErrParse))
		return
	}

	if isBatch(raw) {
		s.handleBatch(ctx, w, rc, raw)
		return
	}

	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, s.log, errorResponse(nil, services.ErrParse))
		return
	}
	writeJSON(w, s.log, s.execute(ctx, rc, &req))
}

func (s *Server) handleBatch(ctx context.Context, w http.ResponseWriter, rc *RequestContext, raw json.RawMessage) {
	if !s.batchEnabled {
		writeJSON(w, s.log, errorResponse(nil, services.ErrInvalidRequest))
		return
	}

	var reqs []json.RawMessage
	if err := json.Unmarshal(raw, &reqs); err != nil || len(reqs) == 0 {
		writeJSON(w, s.log, errorResponse(nil, services.ErrInvalidRequest))
		return
	}
	if len(reqs) > s.batchMaxSize {
		writeJSON(w, s.log, errorResponse(nil,
			services.NewInvalidParameter(0, fmt.Sprintf("batch size %d exceeds limit %d", len(reqs), s.batchMaxSize))))
		return
	}

	responses := make([]*response, 0, len(reqs))
	for _, item := range reqs {
		var req request
		if err := json.Unmarshal(item, &req); err != nil {
			responses = append(responses, errorResponse(nil, services.ErrInvalidRequest))
			continue
		}
		responses = append(responses, s.execute(ctx, rc, &req))
	}
	writeJSON(w, s.log, responses)
}

// execute runs one request through the dispatcher and shapes the
// response envelope.
func (s *Server) execute(ctx context.Context, rc *RequestContext, req *request) *response {
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, services.ErrInvalidRequest)
	}

	result, err := s.dispatcher.Execute(ctx, req.Method, req.Params)
	if err != nil {
		rc.Logger.Debug("method failed",
			zap.String("method", req.Method),
			zap.Error(err))
		return errorResponse(req.ID, err)
	}

	rc.Logger.Debug("method served",
		zap.String("method", req.Method),
		zap.Duration("elapsed", time.Since(rc.StartedAt)))
	return resultResponse(req.ID, result)
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil {
		if err := s.readiness(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// isBatch reports whether the payload is a JSON array.
func isBatch(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// clientIP prefers the forwarded-for chain's first hop over the socket
// peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("unable to write response", zap.Error(err))
	}
}
