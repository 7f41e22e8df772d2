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
	"strconv"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// TransactionService answers the transaction lookups. Pending
// transactions do not exist on Hedera; every lookup that misses simply
// returns nil.
type TransactionService struct {
	log    *zap.Logger
	mirror MirrorClient
	common *CommonService
}

// NewTransactionService creates the transaction service.
func NewTransactionService(log *zap.Logger, mirror MirrorClient, common *CommonService) *TransactionService {
	return &TransactionService{log: log, mirror: mirror, common: common}
}

// GetTransactionByHash returns the transaction with the given hash, or
// nil when unknown.
func (s *TransactionService) GetTransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	result, err := s.mirror.GetContractResult(ctx, hash)
	if err != nil {
		return nil, mapMirrorError(err)
	}
	if result == nil || result.Hash == "" {
		return nil, nil
	}
	return toTransaction(result), nil
}

// GetTransactionByBlockHashAndIndex returns the transaction at the
// given position of the block, or nil.
func (s *TransactionService) GetTransactionByBlockHashAndIndex(ctx context.Context, blockHash, index string) (*Transaction, error) {
	position, err := HexToNumber(index)
	if err != nil {
		return nil, NewInvalidParameter(1, "invalid transaction index")
	}
	return s.byBlockParam(ctx, mirror.ContractResultsParams{
		BlockHash:        blockHash,
		TransactionIndex: strconv.FormatInt(position, 10),
	})
}

// GetTransactionByBlockNumberAndIndex returns the transaction at the
// given position of the block, or nil.
func (s *TransactionService) GetTransactionByBlockNumberAndIndex(ctx context.Context, tag, index string) (*Transaction, error) {
	number, err := s.common.ResolveBlockTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	position, err := HexToNumber(index)
	if err != nil {
		return nil, NewInvalidParameter(1, "invalid transaction index")
	}
	return s.byBlockParam(ctx, mirror.ContractResultsParams{
		BlockNumber:      strconv.FormatInt(number, 10),
		TransactionIndex: strconv.FormatInt(position, 10),
	})
}

// GetTransactionReceipt returns the receipt of the transaction, or nil
// while the result has not yet reached the mirror node.
func (s *TransactionService) GetTransactionReceipt(ctx context.Context, hash string) (*Receipt, error) {
	result, err := s.mirror.GetContractResult(ctx, hash)
	if err != nil {
		return nil, mapMirrorError(err)
	}
	if result == nil || result.Hash == "" {
		return nil, nil
	}

	effectiveGasPrice, err := s.effectiveGasPrice(ctx, result)
	if err != nil {
		return nil, err
	}
	return toReceipt(result, effectiveGasPrice), nil
}

func (s *TransactionService) byBlockParam(ctx context.Context, params mirror.ContractResultsParams) (*Transaction, error) {
	params.Limit = 1
	results, err := s.mirror.GetContractResults(ctx, params)
	if err != nil {
		return nil, mapMirrorError(err)
	}
	if len(results) == 0 || results[0].Hash == "" {
		return nil, nil
	}
	return toTransaction(&results[0]), nil
}

// effectiveGasPrice prefers the price the transaction paid; relay-paid
// transactions carry a zero price and fall back to the network price
// at execution time.
func (s *TransactionService) effectiveGasPrice(ctx context.Context, result *mirror.ContractResult) (string, error) {
	price := quantityOrZero(result.GasPrice)
	if price != ZeroHex {
		return price, nil
	}
	gasTinybars, err := s.common.GasPriceTinybars(ctx)
	if err != nil {
		return "", err
	}
	return TinybarsToWeibars(gasTinybars), nil
}
