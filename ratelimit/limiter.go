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

package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/metrics"
)

// Tier classifies methods by cost. Expensive methods get the smallest
// budget.
type Tier int

const (
	// TierExpensive covers state-changing and heavy query methods.
	TierExpensive Tier = iota + 1

	// TierDefault covers ordinary read methods.
	TierDefault

	// TierCheap covers static and trivially cached methods.
	TierCheap
)

// Limits holds the per-window request budget for each tier.
type Limits struct {
	Expensive int
	Default   int
	Cheap     int
	Window    time.Duration
}

// Limiter applies tiered budgets to (ip, method) pairs. A nil Limiter
// or one constructed without a store never limits.
type Limiter struct {
	log    *zap.Logger
	store  Store
	limits Limits
}

// NewLimiter creates a limiter over the given counter store. store may
// be nil when rate limiting is disabled.
func NewLimiter(log *zap.Logger, store Store, limits Limits) *Limiter {
	return &Limiter{log: log, store: store, limits: limits}
}

// ShouldLimit counts this request and reports whether it exceeded the
// caller's budget for the method. Counter store failures never block
// traffic; they are logged and the request passes.
func (l *Limiter) ShouldLimit(ctx context.Context, ip, method string, tier Tier) bool {
	if l == nil || l.store == nil {
		return false
	}

	exceeded, err := l.store.IncrementAndCheck(ctx, Key(ip, method), l.limit(tier), l.limits.Window)
	if err != nil {
		l.log.Warn("rate limit store unavailable",
			zap.String("method", method),
			zap.Error(err))
		return false
	}
	if exceeded {
		metrics.RateLimited.WithLabelValues(method).Inc()
		l.log.Warn("ip rate limit exceeded",
			zap.String("ip", ip),
			zap.String("method", method))
	}
	return exceeded
}

func (l *Limiter) limit(tier Tier) int {
	switch tier {
	case TierExpensive:
		return l.limits.Expensive
	case TierCheap:
		return l.limits.Cheap
	default:
		return l.limits.Default
	}
}
