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

// Package cache implements the relay's two-tier response cache: an
// in-process LRU in front of the optional shared store. Values are
// stored JSON-encoded so both tiers hold the same representation.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/metrics"
	"github.com/hashgraph/hedera-rpc-relay/store"
)

// internalSize bounds the in-process tier.
const internalSize = 4096

const (
	tierInternal = "internal"
	tierShared   = "shared"

	resultHit  = "hit"
	resultMiss = "miss"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Service is the two-tier cache. Reads check the internal tier first,
// then the shared store; a shared hit repopulates the internal tier with
// the remaining TTL. Writes go to both tiers. The cache is best-effort:
// backend failures degrade to misses and are logged, never returned.
type Service struct {
	log        *zap.Logger
	masker     *Masker
	internal   *lru.Cache[string, entry]
	shared     store.Store
	defaultTTL time.Duration
	now        func() time.Time
}

// NewService creates a cache. shared may be nil, leaving only the
// internal tier active.
func NewService(log *zap.Logger, shared store.Store, defaultTTL time.Duration, masker *Masker) *Service {
	internal, _ := lru.New[string, entry](internalSize)
	return &Service{
		log:        log,
		masker:     masker,
		internal:   internal,
		shared:     shared,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get loads the cached value for key into dest and reports whether a
// usable value was found.
func (s *Service) Get(ctx context.Context, key string, dest any) bool {
	now := s.now()
	if e, ok := s.internal.Get(key); ok && !e.expired(now) {
		if err := json.Unmarshal(e.data, dest); err == nil {
			metrics.CacheOps.WithLabelValues(tierInternal, resultHit).Inc()
			return true
		}
		s.internal.Remove(key)
	}
	metrics.CacheOps.WithLabelValues(tierInternal, resultMiss).Inc()

	if s.shared == nil {
		return false
	}

	value, ttl, err := s.shared.Get(ctx, key)
	if err != nil {
		if err != store.ErrNotFound {
			s.log.Warn("shared cache read failed",
				zap.String("key", s.masker.Mask(key)),
				zap.Error(err))
		}
		metrics.CacheOps.WithLabelValues(tierShared, resultMiss).Inc()
		return false
	}

	if err := json.Unmarshal([]byte(value), dest); err != nil {
		s.log.Warn("shared cache entry undecodable",
			zap.String("key", s.masker.Mask(key)),
			zap.Error(err))
		metrics.CacheOps.WithLabelValues(tierShared, resultMiss).Inc()
		return false
	}

	metrics.CacheOps.WithLabelValues(tierShared, resultHit).Inc()
	s.internal.Add(key, entry{data: []byte(value), expiresAt: s.expiry(ttl)})
	return true
}

// Set stores value under key in both tiers. A non-positive TTL selects
// the configured default.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.log.Warn("cache value unencodable",
			zap.String("key", s.masker.Mask(key)),
			zap.Error(err))
		return
	}

	s.internal.Add(key, entry{data: data, expiresAt: s.expiry(ttl)})

	if s.shared != nil {
		if err := s.shared.Set(ctx, key, string(data), ttl); err != nil {
			s.log.Warn("shared cache write failed",
				zap.String("key", s.masker.Mask(key)),
				zap.Error(err))
		}
	}

	s.log.Debug("cache set",
		zap.String("key", s.masker.Mask(key)),
		zap.Duration("ttl", ttl))
}

// Delete removes key from both tiers.
func (s *Service) Delete(ctx context.Context, key string) {
	s.internal.Remove(key)
	if s.shared != nil {
		if err := s.shared.Delete(ctx, key); err != nil {
			s.log.Warn("shared cache delete failed",
				zap.String("key", s.masker.Mask(key)),
				zap.Error(err))
		}
	}
}

// Clear removes every key sharing the prefix from both tiers. An empty
// prefix clears everything.
func (s *Service) Clear(ctx context.Context, prefix string) {
	if prefix == "" {
		s.internal.Purge()
	} else {
		for _, key := range s.internal.Keys() {
			if strings.HasPrefix(key, prefix) {
				s.internal.Remove(key)
			}
		}
	}

	if s.shared != nil {
		if err := s.shared.DeletePrefix(ctx, prefix); err != nil {
			s.log.Warn("shared cache clear failed",
				zap.String("prefix", prefix),
				zap.Error(err))
		}
	}
}

func (s *Service) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
