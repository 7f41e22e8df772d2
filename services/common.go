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
	"strings"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// Block tags understood by every block-number parameter.
const (
	TagLatest    = "latest"
	TagPending   = "pending"
	TagEarliest  = "earliest"
	TagSafe      = "safe"
	TagFinalized = "finalized"
)

// MirrorClient is the slice of the mirror node client the translation
// services consume. *mirror.Client implements it.
type MirrorClient interface {
	GetAccount(ctx context.Context, idOrAddress, timestamp string) (*mirror.Account, error)
	GetContract(ctx context.Context, idOrAddress string) (*mirror.Contract, error)
	GetContractResult(ctx context.Context, hash string) (*mirror.ContractResult, error)
	GetContractResults(ctx context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error)
	GetContractLogs(ctx context.Context, params mirror.LogParams) ([]mirror.ContractLog, error)
	GetContractStateSlot(ctx context.Context, address, slot, timestamp string) (string, error)
	GetBlocks(ctx context.Context, params mirror.BlocksParams) ([]mirror.Block, error)
	GetLatestBlock(ctx context.Context) (*mirror.Block, error)
	GetBlockByHashOrNumber(ctx context.Context, hashOrNumber string) (*mirror.Block, error)
	GetNetworkFees(ctx context.Context) (*mirror.NetworkFees, error)
	GetExchangeRate(ctx context.Context) (*mirror.ExchangeRate, error)
	GetToken(ctx context.Context, tokenID string) (*mirror.Token, error)
	GetTransactionByID(ctx context.Context, id string) (*mirror.Transaction, error)
	GetContractActions(ctx context.Context, hash string) ([]mirror.ContractAction, error)
	GetContractOpcodes(ctx context.Context, hash string, memory, stack, storage bool) (*mirror.OpcodeTrace, error)
	PostContractCall(ctx context.Context, request mirror.ContractCallRequest) (*mirror.ContractCallResponse, error)
}

// CommonService holds the lookups every other translation service
// needs: chain head, block tag resolution, range validation, and the
// log query engine.
type CommonService struct {
	log    *zap.Logger
	mirror MirrorClient
}

// NewCommonService creates the shared lookup service.
func NewCommonService(log *zap.Logger, mirror MirrorClient) *CommonService {
	return &CommonService{log: log, mirror: mirror}
}

// LatestBlock returns the chain head. An empty chain is an internal
// error: a reachable mirror node always has a genesis block.
func (s *CommonService) LatestBlock(ctx context.Context) (*mirror.Block, error) {
	block, err := s.mirror.GetLatestBlock(ctx)
	if err != nil {
		return nil, mapMirrorError(err)
	}
	if block == nil {
		return nil, NewInternalError(fmt.Errorf("mirror node reported no blocks"))
	}
	return block, nil
}

// BlockNumber returns the chain head number as a quantity.
func (s *CommonService) BlockNumber(ctx context.Context) (string, error) {
	block, err := s.LatestBlock(ctx)
	if err != nil {
		return "", err
	}
	return NumberToHex(block.Number), nil
}

// ResolveBlockTag maps a block-number parameter to a concrete number.
// latest and pending alias the head, safe and finalized resolve to the
// head, earliest to block zero.
func (s *CommonService) ResolveBlockTag(ctx context.Context, tag string) (int64, error) {
	switch strings.ToLower(tag) {
	case "", TagLatest, TagPending, TagSafe, TagFinalized:
		block, err := s.LatestBlock(ctx)
		if err != nil {
			return 0, err
		}
		return block.Number, nil
	case TagEarliest:
		return 0, nil
	default:
		number, err := HexToNumber(tag)
		if err != nil {
			return 0, NewInvalidParameter(0, fmt.Sprintf("invalid block number %q", tag))
		}
		return number, nil
	}
}

// BlockByNumber looks up one block, or nil when it does not exist yet.
func (s *CommonService) BlockByNumber(ctx context.Context, number int64) (*mirror.Block, error) {
	block, err := s.mirror.GetBlockByHashOrNumber(ctx, strconv.FormatInt(number, 10))
	if err != nil {
		return nil, mapMirrorError(err)
	}
	return block, nil
}

// BlockByHash looks up one block by its Ethereum (32-byte) or Hedera
// (48-byte) hash, or nil when unknown.
func (s *CommonService) BlockByHash(ctx context.Context, hash string) (*mirror.Block, error) {
	block, err := s.mirror.GetBlockByHashOrNumber(ctx, hash)
	if err != nil {
		return nil, mapMirrorError(err)
	}
	return block, nil
}

// ValidateBlockRange enforces from <= to and to <= head.
func ValidateBlockRange(from, to, head int64) error {
	if to > head {
		return NewRequestBeyondHeadBlock(to, head)
	}
	if from > to {
		return ErrInvalidBlockRange
	}
	return nil
}

// GetLogs answers eth_getLogs and backs the log filters and the logs
// subscription: it resolves the criteria to a consensus timestamp
// interval and queries the mirror node log endpoints.
func (s *CommonService) GetLogs(ctx context.Context, criteria LogCriteria) ([]Log, error) {
	var fromBlock, toBlock *mirror.Block
	var err error

	if criteria.BlockHash != "" {
		fromBlock, err = s.BlockByHash(ctx, criteria.BlockHash)
		if err != nil {
			return nil, err
		}
		if fromBlock == nil {
			return []Log{}, nil
		}
		toBlock = fromBlock
	} else {
		head, err := s.LatestBlock(ctx)
		if err != nil {
			return nil, err
		}
		from, err := s.ResolveBlockTag(ctx, criteria.FromBlock)
		if err != nil {
			return nil, err
		}
		to, err := s.ResolveBlockTag(ctx, criteria.ToBlock)
		if err != nil {
			return nil, err
		}
		if err := ValidateBlockRange(from, to, head.Number); err != nil {
			return nil, err
		}

		fromBlock, err = s.BlockByNumber(ctx, from)
		if err != nil {
			return nil, err
		}
		if to == head.Number {
			toBlock = head
		} else {
			toBlock, err = s.BlockByNumber(ctx, to)
			if err != nil {
				return nil, err
			}
		}
		if fromBlock == nil || toBlock == nil {
			return []Log{}, nil
		}
	}

	logs, err := s.mirror.GetContractLogs(ctx, mirror.LogParams{
		Addresses:     criteria.Addresses(),
		Topics:        criteria.TopicFilters(),
		FromTimestamp: "gte:" + fromBlock.Timestamp.From,
		ToTimestamp:   "lte:" + toBlock.Timestamp.To,
		Order:         "asc",
	})
	if err != nil {
		return nil, mapMirrorError(err)
	}
	return toLogs(logs), nil
}

// GasPriceTinybars returns the current network gas price for Ethereum
// transactions in tinybars.
func (s *CommonService) GasPriceTinybars(ctx context.Context) (int64, error) {
	fees, err := s.mirror.GetNetworkFees(ctx)
	if err != nil {
		return 0, mapMirrorError(err)
	}
	if fees == nil {
		return 0, NewInternalError(fmt.Errorf("mirror node reported no fee schedule"))
	}
	gas := fees.EthereumGasTinybars()
	if gas <= 0 {
		return 0, NewInternalError(fmt.Errorf("fee schedule has no EthereumTransaction entry"))
	}
	return gas, nil
}
