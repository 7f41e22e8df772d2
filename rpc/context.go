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

// Package rpc exposes the relay's services over JSON-RPC: an HTTP
// transport with batching, a WebSocket transport with subscriptions,
// and a dispatcher that validates, rate limits, and caches per method.
package rpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/logging"
)

type requestContextKey struct{}

// RequestContext carries per-request state through the dispatch
// pipeline. It never participates in cache keys.
type RequestContext struct {
	RequestID string
	IP        string
	StartedAt time.Time
	Logger    *zap.Logger
}

// RequestScoped marks the context as per-request for cache key
// derivation.
func (*RequestContext) RequestScoped() {}

// NewRequestContext creates the state for one inbound request and a
// logger annotated with its id.
func NewRequestContext(ip string, log *zap.Logger) *RequestContext {
	id := uuid.NewString()
	return &RequestContext{
		RequestID: id,
		IP:        ip,
		StartedAt: time.Now(),
		Logger:    log.With(zap.String("requestId", id)),
	}
}

// WithRequestContext attaches the request state to a context. The
// request logger rides along for upstream clients.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	ctx = context.WithValue(ctx, requestContextKey{}, rc)
	return logging.With(ctx, rc.Logger)
}

// FromContext extracts the request state, or nil outside a request.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
