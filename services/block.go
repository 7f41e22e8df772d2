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

// BlockService answers the block-shaped queries: blocks, per-block
// transaction counts, and per-block receipts.
type BlockService struct {
	log          *zap.Logger
	mirror       MirrorClient
	common       *CommonService
	maxGasPerSec int64
}

// NewBlockService creates the block service. maxGasPerSec becomes the
// reported block gas limit.
func NewBlockService(log *zap.Logger, mirror MirrorClient, common *CommonService, maxGasPerSec int64) *BlockService {
	return &BlockService{log: log, mirror: mirror, common: common, maxGasPerSec: maxGasPerSec}
}

// GetBlockByNumber returns the block at a tag or number, or nil when
// it does not exist. fullTx selects transaction objects over hashes.
func (s *BlockService) GetBlockByNumber(ctx context.Context, tag string, fullTx bool) (*Block, error) {
	number, err := s.common.ResolveBlockTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	block, err := s.common.BlockByNumber(ctx, number)
	if err != nil || block == nil {
		return nil, err
	}
	return s.shape(ctx, block, fullTx)
}

// GetBlockByHash returns the block with the given hash, or nil.
func (s *BlockService) GetBlockByHash(ctx context.Context, hash string, fullTx bool) (*Block, error) {
	block, err := s.common.BlockByHash(ctx, hash)
	if err != nil || block == nil {
		return nil, err
	}
	return s.shape(ctx, block, fullTx)
}

// GetBlockTransactionCountByNumber returns the quantity of
// transactions in the block, or nil when the block does not exist.
func (s *BlockService) GetBlockTransactionCountByNumber(ctx context.Context, tag string) (*string, error) {
	number, err := s.common.ResolveBlockTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	block, err := s.common.BlockByNumber(ctx, number)
	if err != nil || block == nil {
		return nil, err
	}
	count := NumberToHex(block.Count)
	return &count, nil
}

// GetBlockTransactionCountByHash returns the quantity of transactions
// in the block with the given hash, or nil.
func (s *BlockService) GetBlockTransactionCountByHash(ctx context.Context, hash string) (*string, error) {
	block, err := s.common.BlockByHash(ctx, hash)
	if err != nil || block == nil {
		return nil, err
	}
	count := NumberToHex(block.Count)
	return &count, nil
}

// GetBlockReceipts returns the receipts of every transaction in the
// block, or nil when the block does not exist. tag accepts a block
// number, a tag, or a block hash.
func (s *BlockService) GetBlockReceipts(ctx context.Context, tag string) ([]Receipt, error) {
	var block *mirror.Block
	var err error
	if len(tag) == 66 {
		block, err = s.common.BlockByHash(ctx, tag)
	} else {
		var number int64
		if number, err = s.common.ResolveBlockTag(ctx, tag); err != nil {
			return nil, err
		}
		block, err = s.common.BlockByNumber(ctx, number)
	}
	if err != nil || block == nil {
		return nil, err
	}

	results, err := s.resultsOf(ctx, block)
	if err != nil {
		return nil, err
	}
	logs, err := s.mirror.GetContractLogs(ctx, mirror.LogParams{
		FromTimestamp: "gte:" + block.Timestamp.From,
		ToTimestamp:   "lte:" + block.Timestamp.To,
		Order:         "asc",
	})
	if err != nil {
		return nil, mapMirrorError(err)
	}
	logsByHash := make(map[string][]mirror.ContractLog)
	for _, log := range logs {
		logsByHash[log.TransactionHash] = append(logsByHash[log.TransactionHash], log)
	}

	receipts := make([]Receipt, 0, len(results))
	for i := range results {
		result := results[i]
		result.Logs = logsByHash[result.Hash]
		receipts = append(receipts, *toReceipt(&result, quantityOrZero(result.GasPrice)))
	}
	return receipts, nil
}

// shape builds the Ethereum view of a mirror block, including its
// transactions.
func (s *BlockService) shape(ctx context.Context, block *mirror.Block, fullTx bool) (*Block, error) {
	results, err := s.resultsOf(ctx, block)
	if err != nil {
		return nil, err
	}

	transactions := make([]any, 0, len(results))
	for i := range results {
		if fullTx {
			transactions = append(transactions, toTransaction(&results[i]))
		} else {
			transactions = append(transactions, results[i].Hash)
		}
	}

	gasPriceTinybars, err := s.common.GasPriceTinybars(ctx)
	if err != nil {
		return nil, err
	}

	return &Block{
		Number:           NumberToHex(block.Number),
		Hash:             ToEthereumHash(block.Hash),
		ParentHash:       ToEthereumHash(block.PreviousHash),
		Nonce:            EmptyBlockNonce,
		Sha3Uncles:       EmptyUnclesHash,
		LogsBloom:        bloomOrEmpty(block.LogsBloom),
		TransactionsRoot: ToEthereumHash(block.Hash),
		StateRoot:        DefaultRootHash,
		ReceiptsRoot:     DefaultRootHash,
		Miner:            ZeroAddress,
		Difficulty:       ZeroHex,
		TotalDifficulty:  ZeroHex,
		ExtraData:        EmptyHex,
		Size:             NumberToHex(block.Size),
		GasLimit:         NumberToHex(s.maxGasPerSec),
		GasUsed:          NumberToHex(block.GasUsed),
		Timestamp:        NumberToHex(TimestampSeconds(block.Timestamp.From)),
		Transactions:     transactions,
		Uncles:           []string{},
		MixHash:          ZeroHash32,
		BaseFeePerGas:    TinybarsToWeibars(gasPriceTinybars),
	}, nil
}

// resultsOf lists the block's contract results in transaction order,
// dropping entries the mirror node could not attribute to a position.
func (s *BlockService) resultsOf(ctx context.Context, block *mirror.Block) ([]mirror.ContractResult, error) {
	results, err := s.mirror.GetContractResults(ctx, mirror.ContractResultsParams{
		BlockNumber: strconv.FormatInt(block.Number, 10),
		Order:       "asc",
	})
	if err != nil {
		return nil, mapMirrorError(err)
	}

	filtered := results[:0]
	for _, result := range results {
		if result.Hash == "" || result.TransactionIndex == nil {
			continue
		}
		filtered = append(filtered, result)
	}
	return filtered, nil
}

func bloomOrEmpty(bloom string) string {
	if bloom == "" || bloom == EmptyHex {
		return EmptyBloom
	}
	return bloom
}
