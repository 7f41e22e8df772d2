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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/cache"
	"github.com/hashgraph/hedera-rpc-relay/ratelimit"
	"github.com/hashgraph/hedera-rpc-relay/services"
)

func testCache(t *testing.T) *cache.Service {
	t.Helper()
	return cache.NewService(zap.NewNop(), nil, time.Hour, cache.NewMasker(nil))
}

func requestCtx(ip string) context.Context {
	return WithRequestContext(context.Background(), NewRequestContext(ip, zap.NewNop()))
}

func TestExecuteUnknownMethod(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, nil, false)

	_, err := d.Execute(context.Background(), "eth_unknown", nil)
	rpcErr, ok := services.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, services.ErrNotFound.Code, rpcErr.Code)
	assert.Equal(t, services.ErrNotFound.Message, rpcErr.Message)
}

func TestExecuteCachesResult(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), testCache(t), nil, false)

	calls := 0
	d.Register(&MethodSpec{
		Name: "eth_getBlockByNumber",
		Params: []ParamSpec{
			{Name: "blockNumber", Type: "blockNumber"},
		},
		Handler: func(context.Context, []any) (any, error) {
			calls++
			return map[string]string{"number": "0x10"}, nil
		},
		Cache: &CachePolicy{SkipIndex: map[int]string{0: movingTags}},
	})

	for i := 0; i < 3; i++ {
		result, err := d.Execute(context.Background(), "eth_getBlockByNumber", []any{"0x10"})
		require.NoError(t, err)
		require.NotNil(t, result)
	}
	assert.Equal(t, 1, calls, "cached params reach the handler once")
}

func TestExecuteSkipsCacheForMovingTags(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), testCache(t), nil, false)

	calls := 0
	d.Register(&MethodSpec{
		Name: "eth_getBlockByNumber",
		Params: []ParamSpec{
			{Name: "blockNumber", Type: "blockNumber"},
		},
		Handler: func(context.Context, []any) (any, error) {
			calls++
			return map[string]string{"number": "0x10"}, nil
		},
		Cache: &CachePolicy{SkipIndex: map[int]string{0: movingTags}},
	})

	for i := 0; i < 3; i++ {
		_, err := d.Execute(context.Background(), "eth_getBlockByNumber", []any{"latest"})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestExecuteSkipsCacheForFloatingObjectFields(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), testCache(t), nil, false)

	calls := 0
	d.Register(&MethodSpec{
		Name: "eth_getLogs",
		Params: []ParamSpec{
			{Name: "filter", Type: "filterObject"},
		},
		Handler: func(context.Context, []any) (any, error) {
			calls++
			return []any{}, nil
		},
		Cache: &CachePolicy{SkipField: map[string]string{
			"fromBlock": movingTags,
			"toBlock":   movingTags,
		}},
	})

	pinned := map[string]any{"fromBlock": "0x1", "toBlock": "0x5"}
	floating := map[string]any{"fromBlock": "0x1"}

	for i := 0; i < 2; i++ {
		_, err := d.Execute(context.Background(), "eth_getLogs", []any{pinned})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls, "pinned ranges cache")

	for i := 0; i < 2; i++ {
		_, err := d.Execute(context.Background(), "eth_getLogs", []any{floating})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls, "a missing toBlock floats with the head")
}

func TestExecuteReadOnlyRefusesMutating(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, nil, true)
	d.Register(&MethodSpec{
		Name: "eth_sendRawTransaction",
		Params: []ParamSpec{
			{Name: "transaction", Type: "hex"},
		},
		Handler: func(context.Context, []any) (any, error) {
			t.Fatal("handler must not run in read-only mode")
			return nil, nil
		},
		Mutating: true,
	})

	_, err := d.Execute(context.Background(), "eth_sendRawTransaction", []any{"0x00"})
	rpcErr, ok := services.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, services.ErrUnsupportedMethod.Code, rpcErr.Code)
	assert.Equal(t, services.ErrUnsupportedMethod.Message, rpcErr.Message)
}

func TestExecuteReadOnlyRefusalKeepsRateBudget(t *testing.T) {
	limiter := ratelimit.NewLimiter(zap.NewNop(), ratelimit.NewLRUStore(), ratelimit.Limits{
		Expensive: 1,
		Default:   1,
		Cheap:     1,
		Window:    time.Minute,
	})
	d := NewDispatcher(zap.NewNop(), nil, limiter, true)
	d.Register(&MethodSpec{
		Name:     "eth_sendRawTransaction",
		Handler:  func(context.Context, []any) (any, error) { return nil, nil },
		Tier:     ratelimit.TierExpensive,
		Mutating: true,
	})

	// Refused mutating calls never reach the limiter, so repeats keep
	// answering the read-only refusal instead of a rate limit.
	ctx := requestCtx("203.0.113.11")
	for i := 0; i < 3; i++ {
		_, err := d.Execute(ctx, "eth_sendRawTransaction", nil)
		rpcErr, ok := services.AsRPCError(err)
		require.True(t, ok)
		assert.Equal(t, services.ErrUnsupportedMethod.Message, rpcErr.Message)
	}
}

func TestExecuteRateLimits(t *testing.T) {
	limiter := ratelimit.NewLimiter(zap.NewNop(), ratelimit.NewLRUStore(), ratelimit.Limits{
		Expensive: 1,
		Default:   1,
		Cheap:     1,
		Window:    time.Minute,
	})
	d := NewDispatcher(zap.NewNop(), nil, limiter, false)
	d.Register(&MethodSpec{
		Name:    "eth_blockNumber",
		Handler: func(context.Context, []any) (any, error) { return "0x10", nil },
		Tier:    ratelimit.TierCheap,
	})

	ctx := requestCtx("203.0.113.9")
	_, err := d.Execute(ctx, "eth_blockNumber", nil)
	require.NoError(t, err)

	_, err = d.Execute(ctx, "eth_blockNumber", nil)
	rpcErr, ok := services.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, services.ErrIPRateLimitExceeded.Code, rpcErr.Code)

	// A different caller keeps its own budget.
	_, err = d.Execute(requestCtx("203.0.113.10"), "eth_blockNumber", nil)
	assert.NoError(t, err)
}

func TestExecuteValidatesParams(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil, nil, false)
	d.Register(&MethodSpec{
		Name: "eth_getBalance",
		Params: []ParamSpec{
			{Name: "address", Type: "address"},
			{Name: "blockNumber", Type: "blockNumber", Optional: true, Default: services.TagLatest},
		},
		Handler: func(_ context.Context, params []any) (any, error) {
			return params[1], nil
		},
	})

	_, err := d.Execute(context.Background(), "eth_getBalance", []any{"not-an-address"})
	rpcErr, ok := services.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, -32602, rpcErr.Code)

	_, err = d.Execute(context.Background(), "eth_getBalance", nil)
	rpcErr, ok = services.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, -32602, rpcErr.Code)

	result, err := d.Execute(context.Background(), "eth_getBalance",
		[]any{"0x05fba803be258049a27b820088bab1cad2058871"})
	require.NoError(t, err)
	assert.Equal(t, services.TagLatest, result, "absent optional takes its default")
}
