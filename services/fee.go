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

package services

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// blockGasLimit is the per-block gas ceiling used for usage ratios.
const blockGasLimit = 15_000_000

// FeeService answers the fee queries. Hedera has one network gas
// price, so fee history is synthetic: the current price repeated over
// the requested range.
type FeeService struct {
	log        *zap.Logger
	mirror     MirrorClient
	common     *CommonService
	buffer     int64
	maxResults int
	fixed      bool
}

// NewFeeService creates the fee service. buffer is a percentage added
// on top of the network gas price; maxResults caps eth_feeHistory;
// fixed selects the synthetic single-price history.
func NewFeeService(log *zap.Logger, mirror MirrorClient, common *CommonService, buffer int64, maxResults int, fixed bool) *FeeService {
	return &FeeService{
		log:        log,
		mirror:     mirror,
		common:     common,
		buffer:     buffer,
		maxResults: maxResults,
		fixed:      fixed,
	}
}

// GasPrice returns the network gas price in weibars, with the
// configured percentage buffer applied.
func (s *FeeService) GasPrice(ctx context.Context) (string, error) {
	tinybars, err := s.common.GasPriceTinybars(ctx)
	if err != nil {
		return "", err
	}
	buffered := tinybars + tinybars*s.buffer/100
	return TinybarsToWeibars(buffered), nil
}

// FeeHistory returns the fee history over blockCount blocks ending at
// newestTag. The block count is capped at the configured maximum.
func (s *FeeService) FeeHistory(ctx context.Context, blockCountHex, newestTag string, rewardPercentiles []float64) (*FeeHistory, error) {
	blockCount, err := HexToNumber(blockCountHex)
	if err != nil || blockCount < 1 {
		return nil, NewInvalidParameter(0, fmt.Sprintf("invalid block count %q", blockCountHex))
	}
	if blockCount > int64(s.maxResults) {
		blockCount = int64(s.maxResults)
	}

	newest, err := s.common.ResolveBlockTag(ctx, newestTag)
	if err != nil {
		return nil, err
	}
	oldest := newest - blockCount + 1
	if oldest < 0 {
		oldest = 0
		blockCount = newest + 1
	}

	price, err := s.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	history := &FeeHistory{
		OldestBlock:   NumberToHex(oldest),
		BaseFeePerGas: make([]string, 0, blockCount+1),
		GasUsedRatio:  make([]float64, 0, blockCount),
	}
	// One more base fee than blocks: the next block's expected fee.
	for i := int64(0); i <= blockCount; i++ {
		history.BaseFeePerGas = append(history.BaseFeePerGas, price)
	}

	ratios, err := s.gasUsedRatios(ctx, oldest, newest, blockCount)
	if err != nil {
		return nil, err
	}
	history.GasUsedRatio = ratios

	if len(rewardPercentiles) > 0 {
		history.Reward = make([][]string, 0, blockCount)
		for i := int64(0); i < blockCount; i++ {
			reward := make([]string, len(rewardPercentiles))
			for j := range reward {
				reward[j] = ZeroHex
			}
			history.Reward = append(history.Reward, reward)
		}
	}
	return history, nil
}

// gasUsedRatios computes the per-block gas usage. Fixed mode skips the
// block queries and reports a constant half-full ratio.
func (s *FeeService) gasUsedRatios(ctx context.Context, oldest, newest, count int64) ([]float64, error) {
	ratios := make([]float64, 0, count)
	if s.fixed {
		for i := int64(0); i < count; i++ {
			ratios = append(ratios, 0.5)
		}
		return ratios, nil
	}

	blocks, err := s.mirror.GetBlocks(ctx, mirror.BlocksParams{
		NumberQuery: fmt.Sprintf("gte:%s", strconv.FormatInt(oldest, 10)),
		Order:       "asc",
		Limit:       int(count),
	})
	if err != nil {
		return nil, mapMirrorError(err)
	}
	for _, block := range blocks {
		if block.Number > newest {
			break
		}
		ratio := float64(block.GasUsed) / blockGasLimit
		if ratio > 1 {
			ratio = 1
		}
		ratios = append(ratios, ratio)
	}
	for int64(len(ratios)) < count {
		ratios = append(ratios, 0.5)
	}
	return ratios, nil
}
