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
	"time"

	"github.com/hashgraph/hedera-rpc-relay/ratelimit"
	"github.com/hashgraph/hedera-rpc-relay/services"
)

// Services collects the service layer the method table binds to.
type Services struct {
	Common      *services.CommonService
	Block       *services.BlockService
	Transaction *services.TransactionService
	Fee         *services.FeeService
	Account     *services.AccountService
	Contract    *services.ContractService
	Filter      *services.FilterService
	Debug       *services.DebugService
	Net         *services.NetService
	Web3        *services.Web3Service

	ChainID string
}

// Block tags that move with the head and must never be cached.
const movingTags = "latest|pending|safe|finalized"

var (
	blockNumberParam = ParamSpec{Name: "blockNumber", Type: "blockNumber", Optional: true, Default: services.TagLatest}
	fullTxParam      = ParamSpec{Name: "fullTransactions", Type: "boolean", Optional: true, Default: false}
)

// Routes builds the full method table.
func Routes(s *Services) []*MethodSpec {
	specs := []*MethodSpec{
		{
			Name:    "eth_chainId",
			Handler: constant(s.ChainID),
			Cache:   &CachePolicy{},
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "eth_blockNumber",
			Handler: func(ctx context.Context, _ []any) (any, error) {
				return s.Common.BlockNumber(ctx)
			},
			Tier: ratelimit.TierCheap,
		},
		{
			Name: "eth_gasPrice",
			Handler: func(ctx context.Context, _ []any) (any, error) {
				return s.Fee.GasPrice(ctx)
			},
			Cache: &CachePolicy{TTL: time.Minute},
			Tier:  ratelimit.TierCheap,
		},
		{
			Name: "eth_feeHistory",
			Params: []ParamSpec{
				{Name: "blockCount", Type: "hex64"},
				{Name: "newestBlock", Type: "blockNumber"},
				{Name: "rewardPercentiles", Type: "array", Optional: true},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Fee.FeeHistory(ctx, paramString(params, 0), paramString(params, 1), paramFloats(params, 2))
			},
			Cache: &CachePolicy{TTL: time.Minute, SkipIndex: map[int]string{1: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name:    "eth_maxPriorityFeePerGas",
			Handler: constant(services.ZeroHex),
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "eth_getBalance",
			Params: []ParamSpec{
				{Name: "address", Type: "address"},
				blockNumberParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Account.GetBalance(ctx, paramString(params, 0), paramString(params, 1))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{1: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getTransactionCount",
			Params: []ParamSpec{
				{Name: "address", Type: "address"},
				blockNumberParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Account.GetTransactionCount(ctx, paramString(params, 0), paramString(params, 1))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{1: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name:    "eth_accounts",
			Handler: func(context.Context, []any) (any, error) { return s.Account.Accounts(), nil },
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "eth_getCode",
			Params: []ParamSpec{
				{Name: "address", Type: "address"},
				blockNumberParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Contract.GetCode(ctx, paramString(params, 0), paramString(params, 1))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{1: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getStorageAt",
			Params: []ParamSpec{
				{Name: "address", Type: "address"},
				{Name: "slot", Type: "hex64"},
				blockNumberParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Contract.GetStorageAt(ctx, paramString(params, 0), paramString(params, 1), paramString(params, 2))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{2: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_call",
			Params: []ParamSpec{
				{Name: "transaction", Type: "transactionObject"},
				blockNumberParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				var args services.CallArgs
				if err := decodeParam(params, 0, &args); err != nil {
					return nil, err
				}
				return s.Contract.Call(ctx, args, paramString(params, 1))
			},
			Cache: &CachePolicy{TTL: 15 * time.Second, SkipIndex: map[int]string{1: movingTags}},
			Tier:  ratelimit.TierExpensive,
		},
		{
			Name: "eth_estimateGas",
			Params: []ParamSpec{
				{Name: "transaction", Type: "transactionObject"},
				blockNumberParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				var args services.CallArgs
				if err := decodeParam(params, 0, &args); err != nil {
					return nil, err
				}
				return s.Contract.EstimateGas(ctx, args, paramString(params, 1))
			},
			Tier: ratelimit.TierExpensive,
		},
		{
			Name: "eth_sendRawTransaction",
			Params: []ParamSpec{
				{Name: "transaction", Type: "hex"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Contract.SendRawTransaction(ctx, paramString(params, 0))
			},
			Tier:     ratelimit.TierExpensive,
			Mutating: true,
		},
		{
			Name: "eth_getBlockByNumber",
			Params: []ParamSpec{
				{Name: "blockNumber", Type: "blockNumber"},
				fullTxParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Block.GetBlockByNumber(ctx, paramString(params, 0), paramBool(params, 1))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{0: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getBlockByHash",
			Params: []ParamSpec{
				{Name: "blockHash", Type: "blockHash"},
				fullTxParam,
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Block.GetBlockByHash(ctx, paramString(params, 0), paramBool(params, 1))
			},
			Cache: &CachePolicy{},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getBlockTransactionCountByNumber",
			Params: []ParamSpec{
				{Name: "blockNumber", Type: "blockNumber"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Block.GetBlockTransactionCountByNumber(ctx, paramString(params, 0))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{0: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getBlockTransactionCountByHash",
			Params: []ParamSpec{
				{Name: "blockHash", Type: "blockHash"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Block.GetBlockTransactionCountByHash(ctx, paramString(params, 0))
			},
			Cache: &CachePolicy{},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getBlockReceipts",
			Params: []ParamSpec{
				{Name: "blockNumber", Type: "blockNumber|blockHash"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Block.GetBlockReceipts(ctx, paramString(params, 0))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{0: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getTransactionByHash",
			Params: []ParamSpec{
				{Name: "transactionHash", Type: "transactionHash"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Transaction.GetTransactionByHash(ctx, paramString(params, 0))
			},
			Cache: &CachePolicy{},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getTransactionByBlockHashAndIndex",
			Params: []ParamSpec{
				{Name: "blockHash", Type: "blockHash"},
				{Name: "index", Type: "hex64"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Transaction.GetTransactionByBlockHashAndIndex(ctx, paramString(params, 0), paramString(params, 1))
			},
			Cache: &CachePolicy{},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getTransactionByBlockNumberAndIndex",
			Params: []ParamSpec{
				{Name: "blockNumber", Type: "blockNumber"},
				{Name: "index", Type: "hex64"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Transaction.GetTransactionByBlockNumberAndIndex(ctx, paramString(params, 0), paramString(params, 1))
			},
			Cache: &CachePolicy{SkipIndex: map[int]string{0: movingTags}},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getTransactionReceipt",
			Params: []ParamSpec{
				{Name: "transactionHash", Type: "transactionHash"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Transaction.GetTransactionReceipt(ctx, paramString(params, 0))
			},
			Cache: &CachePolicy{},
			Tier:  ratelimit.TierDefault,
		},
		{
			Name: "eth_getLogs",
			Params: []ParamSpec{
				{Name: "filter", Type: "filterObject", Optional: true, Default: map[string]any{}},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				var criteria services.LogCriteria
				if err := decodeParam(params, 0, &criteria); err != nil {
					return nil, err
				}
				return s.Common.GetLogs(ctx, criteria)
			},
			Cache: &CachePolicy{SkipField: map[string]string{
				"fromBlock": movingTags,
				"toBlock":   movingTags,
			}},
			Tier: ratelimit.TierExpensive,
		},
		{
			Name: "eth_newFilter",
			Params: []ParamSpec{
				{Name: "filter", Type: "filterObject", Optional: true, Default: map[string]any{}},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				var criteria services.LogCriteria
				if err := decodeParam(params, 0, &criteria); err != nil {
					return nil, err
				}
				return s.Filter.NewFilter(ctx, criteria)
			},
			Tier: ratelimit.TierDefault,
		},
		{
			Name: "eth_newBlockFilter",
			Handler: func(ctx context.Context, _ []any) (any, error) {
				return s.Filter.NewBlockFilter(ctx)
			},
			Tier: ratelimit.TierDefault,
		},
		{
			Name: "eth_newPendingTransactionFilter",
			Handler: func(context.Context, []any) (any, error) {
				return s.Filter.NewPendingTransactionFilter()
			},
			Tier: ratelimit.TierCheap,
		},
		{
			Name: "eth_uninstallFilter",
			Params: []ParamSpec{
				{Name: "filterId", Type: "hex"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Filter.UninstallFilter(ctx, paramString(params, 0))
			},
			Tier: ratelimit.TierDefault,
		},
		{
			Name: "eth_getFilterLogs",
			Params: []ParamSpec{
				{Name: "filterId", Type: "hex"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Filter.GetFilterLogs(ctx, paramString(params, 0))
			},
			Tier: ratelimit.TierExpensive,
		},
		{
			Name: "eth_getFilterChanges",
			Params: []ParamSpec{
				{Name: "filterId", Type: "hex"},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				return s.Filter.GetFilterChanges(ctx, paramString(params, 0))
			},
			Tier: ratelimit.TierDefault,
		},
		{
			Name: "debug_traceTransaction",
			Params: []ParamSpec{
				{Name: "transactionHash", Type: "transactionHash"},
				{Name: "tracer", Type: "tracerConfig", Optional: true},
			},
			Handler: func(ctx context.Context, params []any) (any, error) {
				var tracer struct {
					Tracer       string                 `json:"tracer"`
					TracerConfig services.TracerConfig `json:"tracerConfig"`
				}
				if err := decodeParam(params, 1, &tracer); err != nil {
					return nil, err
				}
				if tracer.Tracer != "" && tracer.Tracer != services.TracerCall && tracer.Tracer != services.TracerOpcode {
					return nil, services.NewInvalidParameter(1, "unknown tracer")
				}
				return s.Debug.TraceTransaction(ctx, paramString(params, 0), tracer.Tracer, tracer.TracerConfig)
			},
			Tier: ratelimit.TierExpensive,
		},
		{
			Name:    "net_version",
			Handler: func(context.Context, []any) (any, error) { return s.Net.Version(), nil },
			Tier:    ratelimit.TierCheap,
		},
		{
			Name:    "net_listening",
			Handler: func(context.Context, []any) (any, error) { return s.Net.Listening(), nil },
			Tier:    ratelimit.TierCheap,
		},
		{
			Name:    "web3_clientVersion",
			Handler: func(context.Context, []any) (any, error) { return s.Web3.ClientVersion(), nil },
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "web3_sha3",
			Params: []ParamSpec{
				{Name: "data", Type: "hex"},
			},
			Handler: func(_ context.Context, params []any) (any, error) {
				return s.Web3.Sha3(paramString(params, 0))
			},
			Tier: ratelimit.TierCheap,
		},
		{
			Name:    "eth_syncing",
			Handler: constant(false),
			Tier:    ratelimit.TierCheap,
		},
		{
			Name:    "eth_mining",
			Handler: constant(false),
			Tier:    ratelimit.TierCheap,
		},
		{
			Name:    "eth_hashrate",
			Handler: constant(services.ZeroHex),
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "eth_getUncleByBlockHashAndIndex",
			Params: []ParamSpec{
				{Name: "blockHash", Type: "blockHash", Optional: true},
				{Name: "index", Type: "hex64", Optional: true},
			},
			Handler: constant(nil),
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "eth_getUncleByBlockNumberAndIndex",
			Params: []ParamSpec{
				{Name: "blockNumber", Type: "blockNumber", Optional: true},
				{Name: "index", Type: "hex64", Optional: true},
			},
			Handler: constant(nil),
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "eth_getUncleCountByBlockHash",
			Params: []ParamSpec{
				{Name: "blockHash", Type: "blockHash", Optional: true},
			},
			Handler: constant(services.ZeroHex),
			Tier:    ratelimit.TierCheap,
		},
		{
			Name: "eth_getUncleCountByBlockNumber",
			Params: []ParamSpec{
				{Name: "blockNumber", Type: "blockNumber", Optional: true},
			},
			Handler: constant(services.ZeroHex),
			Tier:    ratelimit.TierCheap,
		},
	}

	unsupported := []string{
		"eth_coinbase",
		"eth_protocolVersion",
		"eth_getWork",
		"eth_submitWork",
		"eth_submitHashrate",
		"eth_sign",
		"eth_signTransaction",
		"eth_sendTransaction",
		"eth_blobBaseFee",
		"eth_getProof",
		"net_peerCount",
	}
	for _, name := range unsupported {
		specs = append(specs, &MethodSpec{
			Name:    name,
			Handler: unsupportedHandler,
			Tier:    ratelimit.TierCheap,
		})
	}
	return specs
}

// constant answers a fixed value regardless of params.
func constant(value any) Handler {
	return func(context.Context, []any) (any, error) {
		return value, nil
	}
}

func unsupportedHandler(context.Context, []any) (any, error) {
	return nil, services.ErrUnsupportedMethod
}

// paramFloats reads an optional array parameter of JSON numbers.
func paramFloats(params []any, i int) []float64 {
	if i >= len(params) || params[i] == nil {
		return nil
	}
	raw, _ := params[i].([]any)
	values := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			values = append(values, f)
		}
	}
	return values
}
