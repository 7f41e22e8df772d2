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
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/cache"
	"github.com/hashgraph/hedera-rpc-relay/metrics"
	"github.com/hashgraph/hedera-rpc-relay/ratelimit"
	"github.com/hashgraph/hedera-rpc-relay/services"
)

// Handler executes one method against validated, normalized params.
type Handler func(ctx context.Context, params []any) (any, error)

// CachePolicy opts a method's results into the response cache.
type CachePolicy struct {
	// TTL of cached responses; zero uses the cache default.
	TTL time.Duration

	// SkipIndex lists pipe-separated param values, by index, whose
	// presence makes the response uncacheable. Moving block tags go
	// here so "latest" answers are never served stale. A missing
	// value at a declared index also skips.
	SkipIndex map[int]string

	// SkipField does the same for fields of object params, by field
	// name, across every object in the param list. An object missing
	// the field skips too: its effective value floats with the head.
	SkipField map[string]string
}

// allows reports whether a normalized param list may be cached.
func (p *CachePolicy) allows(params []any) bool {
	for index, skip := range p.SkipIndex {
		if index >= len(params) || params[index] == nil {
			return false
		}
		value, ok := params[index].(string)
		if ok && matchesAny(value, skip) {
			return false
		}
	}
	for _, param := range params {
		object, ok := param.(map[string]any)
		if !ok {
			continue
		}
		for field, skip := range p.SkipField {
			value, present := object[field]
			if !present {
				return false
			}
			s, ok := value.(string)
			if ok && matchesAny(s, skip) {
				return false
			}
		}
	}
	return true
}

func matchesAny(value, candidates string) bool {
	for _, candidate := range strings.Split(candidates, "|") {
		if value == candidate {
			return true
		}
	}
	return false
}

// MethodSpec binds a method name to its handler and dispatch policy.
type MethodSpec struct {
	Name    string
	Params  []ParamSpec
	Handler Handler

	// Cache enables response caching; nil methods are never cached.
	Cache *CachePolicy

	// Tier selects the method's rate limit bucket.
	Tier ratelimit.Tier

	// Mutating methods are refused in read-only mode.
	Mutating bool
}

// Dispatcher routes method calls through rate limiting, validation,
// and caching into the service layer.
type Dispatcher struct {
	log      *zap.Logger
	methods  map[string]*MethodSpec
	cache    *cache.Service
	limiter  *ratelimit.Limiter
	readOnly bool
}

// NewDispatcher creates a dispatcher. cache and limiter may be nil to
// disable the respective decorator.
func NewDispatcher(log *zap.Logger, cacheSvc *cache.Service, limiter *ratelimit.Limiter, readOnly bool) *Dispatcher {
	return &Dispatcher{
		log:      log,
		methods:  map[string]*MethodSpec{},
		cache:    cacheSvc,
		limiter:  limiter,
		readOnly: readOnly,
	}
}

// Register adds method specs to the routing table.
func (d *Dispatcher) Register(specs ...*MethodSpec) {
	for _, spec := range specs {
		d.methods[spec.Name] = spec
	}
}

// Methods lists the registered method names.
func (d *Dispatcher) Methods() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	return names
}

// Execute runs one method call end to end: lookup, read-only check,
// rate limit, validation, cache lookup, handler, cache store.
func (d *Dispatcher) Execute(ctx context.Context, method string, params []any) (any, error) {
	started := time.Now()
	defer func() {
		metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	}()

	spec, ok := d.methods[method]
	if !ok {
		metrics.Requests.WithLabelValues(method, "not_found").Inc()
		return nil, services.ErrNotFound
	}

	if d.readOnly && spec.Mutating {
		return nil, services.ErrUnsupportedMethod
	}

	if rc := FromContext(ctx); rc != nil && d.limiter != nil {
		if d.limiter.ShouldLimit(ctx, rc.IP, method, spec.Tier) {
			return nil, services.ErrIPRateLimitExceeded
		}
	}

	normalized, err := validateParams(spec.Params, params)
	if err != nil {
		metrics.Requests.WithLabelValues(method, "invalid").Inc()
		return nil, err
	}

	cacheable := d.cache != nil && spec.Cache != nil && spec.Cache.allows(normalized)
	var key string
	if cacheable {
		key = cache.Key(method, normalized...)
		var cached json.RawMessage
		if d.cache.Get(ctx, key, &cached) {
			metrics.Requests.WithLabelValues(method, "cached").Inc()
			return cached, nil
		}
	}

	result, err := spec.Handler(ctx, normalized)
	if err != nil {
		metrics.Requests.WithLabelValues(method, "error").Inc()
		return nil, err
	}
	metrics.Requests.WithLabelValues(method, "success").Inc()

	if cacheable && result != nil {
		d.cache.Set(ctx, key, result, spec.Cache.TTL)
	}
	return result, nil
}
