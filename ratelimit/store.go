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

// Package ratelimit enforces per-IP, per-method request budgets. The
// counting primitive is increment-and-check: never a separate read
// followed by a write, so concurrent callers across replicas observe a
// consistent monotonic counter.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hashgraph/hedera-rpc-relay/store"
)

// Key builds the counter key for one caller and method.
func Key(ip, method string) string {
	return fmt.Sprintf("ratelimit:%s:%s", ip, method)
}

// Store counts requests within a window. The first increment of a key
// starts its window; the counter expires with the window and the next
// increment starts a fresh one.
type Store interface {
	// IncrementAndCheck adds one request to the key's counter and
	// reports whether the counter now exceeds limit.
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// lruCounterSize bounds the in-process counter table.
const lruCounterSize = 16384

type counter struct {
	count   int
	resetAt time.Time
}

// LRUStore is an in-process Store. Counters for distinct callers evict
// least-recently-used once the table is full.
type LRUStore struct {
	mu       sync.Mutex
	counters *lru.Cache[string, counter]
	now      func() time.Time
}

// NewLRUStore creates an empty in-process counter store.
func NewLRUStore() *LRUStore {
	counters, _ := lru.New[string, counter](lruCounterSize)
	return &LRUStore{counters: counters, now: time.Now}
}

// IncrementAndCheck implements Store.
func (s *LRUStore) IncrementAndCheck(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters.Get(key)
	if !ok || now.After(c.resetAt) {
		c = counter{resetAt: now.Add(window)}
	}
	c.count++
	s.counters.Add(key, c)
	return c.count > limit, nil
}

// SharedStore is a Store over the shared key-value store, giving all
// relay replicas one consistent counter per key.
type SharedStore struct {
	store store.Store
}

// NewSharedStore wraps the shared store as a rate-limit counter store.
func NewSharedStore(s store.Store) *SharedStore {
	return &SharedStore{store: s}
}

// IncrementAndCheck implements Store. The backing IncrBy applies the
// window TTL only when the counter is created, so the window is anchored
// at the first request.
func (s *SharedStore) IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := s.store.IncrBy(ctx, key, 1, window)
	if err != nil {
		return false, err
	}
	return count > int64(limit), nil
}
