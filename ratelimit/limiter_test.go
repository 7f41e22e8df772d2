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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) IncrementAndCheck(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func testLimits() Limits {
	return Limits{Expensive: 2, Default: 4, Cheap: 8, Window: time.Minute}
}

func TestLimiterTiers(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(zap.NewNop(), NewLRUStore(), testLimits())

	for i := 0; i < 2; i++ {
		assert.False(t, l.ShouldLimit(ctx, "10.0.0.1", "eth_sendRawTransaction", TierExpensive))
	}
	assert.True(t, l.ShouldLimit(ctx, "10.0.0.1", "eth_sendRawTransaction", TierExpensive))

	// The default tier has its own, larger budget.
	for i := 0; i < 4; i++ {
		assert.False(t, l.ShouldLimit(ctx, "10.0.0.1", "eth_getBalance", TierDefault))
	}
	assert.True(t, l.ShouldLimit(ctx, "10.0.0.1", "eth_getBalance", TierDefault))
}

func TestLimiterDisabled(t *testing.T) {
	ctx := context.Background()

	var nilLimiter *Limiter
	assert.False(t, nilLimiter.ShouldLimit(ctx, "10.0.0.1", "eth_call", TierDefault))

	noStore := NewLimiter(zap.NewNop(), nil, testLimits())
	for i := 0; i < 100; i++ {
		assert.False(t, noStore.ShouldLimit(ctx, "10.0.0.1", "eth_call", TierDefault))
	}
}

func TestLimiterFailsOpen(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(zap.NewNop(), failingStore{}, testLimits())

	for i := 0; i < 10; i++ {
		assert.False(t, l.ShouldLimit(ctx, "10.0.0.1", "eth_call", TierDefault))
	}
}
