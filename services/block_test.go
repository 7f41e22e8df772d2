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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

const testMaxGasPerSec = 15_000_000

func newBlockService(m *mockMirror) *BlockService {
	log := zap.NewNop()
	return NewBlockService(log, m, NewCommonService(log, m), testMaxGasPerSec)
}

func TestGetBlockByNumberShape(t *testing.T) {
	txHash := "0x" + hexChars(64)
	orphan := contractResult("0x"+hexChars(64), 9)
	orphan.TransactionIndex = nil
	m := &mockMirror{
		getBlockByHashOrNumber: blockByNumberStub(9),
		getContractResults: func(_ context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error) {
			assert.Equal(t, "9", params.BlockNumber)
			assert.Equal(t, "asc", params.Order)
			return []mirror.ContractResult{*contractResult(txHash, 9), *orphan}, nil
		},
	}
	s := newBlockService(m)

	block, err := s.GetBlockByNumber(context.Background(), "0x9", false)
	require.NoError(t, err)
	require.NotNil(t, block)

	assert.Equal(t, "0x9", block.Number)
	assert.Len(t, block.Hash, 66)
	assert.Len(t, block.ParentHash, 66)
	assert.Equal(t, EmptyBlockNonce, block.Nonce)
	assert.Equal(t, EmptyUnclesHash, block.Sha3Uncles)
	assert.Equal(t, EmptyBloom, block.LogsBloom)
	assert.Equal(t, ZeroAddress, block.Miner)
	assert.Equal(t, "0xe4e1c0", block.GasLimit)
	assert.Equal(t, NumberToHex(1700000009), block.Timestamp)
	assert.Equal(t, TinybarsToWeibars(71), block.BaseFeePerGas)
	assert.Empty(t, block.Uncles)

	// Unattributed results are dropped; hashes only without fullTx.
	require.Len(t, block.Transactions, 1)
	assert.Equal(t, txHash, block.Transactions[0])
}

func TestGetBlockByNumberFullTransactions(t *testing.T) {
	txHash := "0x" + hexChars(64)
	m := &mockMirror{
		getBlockByHashOrNumber: blockByNumberStub(9),
		getContractResults: func(context.Context, mirror.ContractResultsParams) ([]mirror.ContractResult, error) {
			return []mirror.ContractResult{*contractResult(txHash, 9)}, nil
		},
	}
	s := newBlockService(m)

	block, err := s.GetBlockByNumber(context.Background(), "0x9", true)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)

	tx, ok := block.Transactions[0].(*Transaction)
	require.True(t, ok)
	assert.Equal(t, txHash, tx.Hash)
	assert.Equal(t, "0x9", tx.BlockNumber)
	assert.Equal(t, "0x7", tx.Nonce)
}

func TestGetBlockByNumberMissing(t *testing.T) {
	s := newBlockService(&mockMirror{getBlockByHashOrNumber: blockByNumberStub()})

	block, err := s.GetBlockByNumber(context.Background(), "0x63", false)
	require.NoError(t, err)
	assert.Nil(t, block)
}

func TestGetBlockTransactionCount(t *testing.T) {
	known := mirrorBlock(12)
	m := &mockMirror{
		getBlockByHashOrNumber: func(_ context.Context, hashOrNumber string) (*mirror.Block, error) {
			if hashOrNumber == "12" || hashOrNumber == known.Hash {
				return known, nil
			}
			return nil, nil
		},
	}
	s := newBlockService(m)
	ctx := context.Background()

	count, err := s.GetBlockTransactionCountByNumber(ctx, "0xc")
	require.NoError(t, err)
	require.NotNil(t, count)
	assert.Equal(t, "0x2", *count)

	count, err = s.GetBlockTransactionCountByHash(ctx, known.Hash)
	require.NoError(t, err)
	require.NotNil(t, count)
	assert.Equal(t, "0x2", *count)

	count, err = s.GetBlockTransactionCountByHash(ctx, "0x"+hexChars(96))
	require.NoError(t, err)
	assert.Nil(t, count)
}

func TestGetBlockReceipts(t *testing.T) {
	block := mirrorBlock(9)
	txHash := "0x" + hexChars(64)
	logIndex := int64(0)
	m := &mockMirror{
		getBlockByHashOrNumber: func(_ context.Context, hashOrNumber string) (*mirror.Block, error) {
			if hashOrNumber == "9" || hashOrNumber == ToEthereumHash(block.Hash) {
				return block, nil
			}
			return nil, nil
		},
		getContractResults: func(context.Context, mirror.ContractResultsParams) ([]mirror.ContractResult, error) {
			return []mirror.ContractResult{*contractResult(txHash, 9)}, nil
		},
		getContractLogs: func(_ context.Context, params mirror.LogParams) ([]mirror.ContractLog, error) {
			assert.Equal(t, "gte:"+block.Timestamp.From, params.FromTimestamp)
			assert.Equal(t, "lte:"+block.Timestamp.To, params.ToTimestamp)
			return []mirror.ContractLog{
				{TransactionHash: txHash, BlockNumber: 9, TransactionIndex: &logIndex},
				{TransactionHash: "0x" + hexChars(63) + "0", BlockNumber: 9, TransactionIndex: &logIndex},
			}, nil
		},
	}
	s := newBlockService(m)

	receipts, err := s.GetBlockReceipts(context.Background(), "0x9")
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, txHash, receipts[0].TransactionHash)
	assert.Equal(t, "0x1", receipts[0].Status)
	assert.Equal(t, "0x47", receipts[0].EffectiveGasPrice)

	// Only the logs of this transaction are attached.
	require.Len(t, receipts[0].Logs, 1)
	assert.Equal(t, txHash, receipts[0].Logs[0].TransactionHash)

	// The same block is addressable by its Ethereum hash.
	byHash, err := s.GetBlockReceipts(context.Background(), ToEthereumHash(block.Hash))
	require.NoError(t, err)
	assert.Equal(t, receipts, byHash)
}

func TestGetBlockReceiptsMissingBlock(t *testing.T) {
	s := newBlockService(&mockMirror{getBlockByHashOrNumber: blockByNumberStub()})

	receipts, err := s.GetBlockReceipts(context.Background(), "0x63")
	require.NoError(t, err)
	assert.Nil(t, receipts)
}
