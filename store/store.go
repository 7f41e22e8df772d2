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

// Package store provides the shared key-value store used by the cache,
// the rate limiter, and the HBAR spending plans. The primary backend is
// Redis so that multiple relay instances observe the same counters; a
// bounded in-memory backend serves single-instance deployments.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is a TTL-aware key-value store. Implementations must make
// IncrBy atomic: concurrent callers may never observe a lost update,
// and the TTL is applied exactly once, when the key is created.
type Store interface {
	// Get returns the value and its remaining TTL. A zero TTL means
	// the key does not expire.
	Get(ctx context.Context, key string) (string, time.Duration, error)

	// Set stores the value. A zero TTL stores it without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key sharing the prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// IncrBy atomically adds delta to the integer value at key,
	// creating it at delta with the given TTL when absent, and returns
	// the new value. The TTL of an existing key is never extended.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend connections.
	Close() error
}
