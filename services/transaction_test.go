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

func newTransactionService(m *mockMirror) *TransactionService {
	log := zap.NewNop()
	return NewTransactionService(log, m, NewCommonService(log, m))
}

func TestGetTransactionByHash(t *testing.T) {
	txHash := "0x" + hexChars(64)
	result := contractResult(txHash, 9)
	result.MaxFeePerGas = "0x59"
	result.MaxPriorityFeePerGas = "0x1"
	m := &mockMirror{
		getContractResult: func(_ context.Context, hash string) (*mirror.ContractResult, error) {
			assert.Equal(t, txHash, hash)
			return result, nil
		},
	}
	s := newTransactionService(m)

	tx, err := s.GetTransactionByHash(context.Background(), txHash)
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, txHash, tx.Hash)
	assert.Equal(t, "0x9", tx.BlockNumber)
	assert.Len(t, tx.BlockHash, 66)
	assert.Equal(t, "0x7", tx.Nonce)
	assert.Equal(t, "0x2", tx.Type)
	require.NotNil(t, tx.To)
	assert.Equal(t, result.To, *tx.To)
	assert.Equal(t, "0xa9059cbb", tx.Input)
	assert.Equal(t, ZeroHex, tx.Value)

	// Type-2 results carry the fee-market fields.
	assert.Equal(t, "0x59", tx.MaxFeePerGas)
	assert.Equal(t, "0x1", tx.MaxPriorityFeePerGas)
}

func TestGetTransactionByHashUnknown(t *testing.T) {
	s := newTransactionService(&mockMirror{})

	tx, err := s.GetTransactionByHash(context.Background(), "0x"+hexChars(64))
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestGetTransactionByBlockNumberAndIndex(t *testing.T) {
	txHash := "0x" + hexChars(64)
	var captured mirror.ContractResultsParams
	m := &mockMirror{
		getContractResults: func(_ context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error) {
			captured = params
			return []mirror.ContractResult{*contractResult(txHash, 100)}, nil
		},
	}
	s := newTransactionService(m)

	tx, err := s.GetTransactionByBlockNumberAndIndex(context.Background(), TagLatest, "0x1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, txHash, tx.Hash)

	assert.Equal(t, "100", captured.BlockNumber)
	assert.Equal(t, "1", captured.TransactionIndex)
	assert.Equal(t, 1, captured.Limit)
}

func TestGetTransactionByBlockHashAndIndex(t *testing.T) {
	blockHash := "0x" + hexChars(64)
	var captured mirror.ContractResultsParams
	m := &mockMirror{
		getContractResults: func(_ context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error) {
			captured = params
			return nil, nil
		},
	}
	s := newTransactionService(m)

	tx, err := s.GetTransactionByBlockHashAndIndex(context.Background(), blockHash, "0x0")
	require.NoError(t, err)
	assert.Nil(t, tx)
	assert.Equal(t, blockHash, captured.BlockHash)
	assert.Equal(t, "0", captured.TransactionIndex)

	_, err = s.GetTransactionByBlockHashAndIndex(context.Background(), blockHash, "nope")
	rpcErr, ok := AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestGetTransactionReceipt(t *testing.T) {
	txHash := "0x" + hexChars(64)
	result := contractResult(txHash, 9)
	m := &mockMirror{
		getContractResult: func(context.Context, string) (*mirror.ContractResult, error) {
			return result, nil
		},
	}
	s := newTransactionService(m)

	receipt, err := s.GetTransactionReceipt(context.Background(), txHash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, txHash, receipt.TransactionHash)
	assert.Equal(t, "0x1", receipt.Status)
	assert.Equal(t, "0x47", receipt.EffectiveGasPrice)
	assert.Equal(t, EmptyBloom, receipt.LogsBloom)
	assert.Equal(t, DefaultRootHash, receipt.Root)
	assert.Nil(t, receipt.ContractAddress)
	assert.Empty(t, receipt.RevertReason)
}

func TestGetTransactionReceiptRelayPaidPrice(t *testing.T) {
	// A zero gas price means the relay paid; the receipt reports the
	// network price at execution time instead.
	result := contractResult("0x"+hexChars(64), 9)
	result.GasPrice = "0x0"
	m := &mockMirror{
		getContractResult: func(context.Context, string) (*mirror.ContractResult, error) {
			return result, nil
		},
	}
	s := newTransactionService(m)

	receipt, err := s.GetTransactionReceipt(context.Background(), result.Hash)
	require.NoError(t, err)
	assert.Equal(t, TinybarsToWeibars(71), receipt.EffectiveGasPrice)
}

func TestGetTransactionReceiptReverted(t *testing.T) {
	result := contractResult("0x"+hexChars(64), 9)
	result.Result = "CONTRACT_REVERT_EXECUTED"
	result.Status = "0x0"
	result.ErrorMessage = "0x08c379a0"
	m := &mockMirror{
		getContractResult: func(context.Context, string) (*mirror.ContractResult, error) {
			return result, nil
		},
	}
	s := newTransactionService(m)

	receipt, err := s.GetTransactionReceipt(context.Background(), result.Hash)
	require.NoError(t, err)
	assert.Equal(t, ZeroHex, receipt.Status)
	assert.Equal(t, "0x08c379a0", receipt.RevertReason)
}

func TestGetTransactionReceiptContractCreation(t *testing.T) {
	result := contractResult("0x"+hexChars(64), 9)
	result.To = ""
	result.Address = "0x000000000000000000000000000000000000040a"
	result.CreatedContractIDs = []string{"0.0.1034"}
	m := &mockMirror{
		getContractResult: func(context.Context, string) (*mirror.ContractResult, error) {
			return result, nil
		},
	}
	s := newTransactionService(m)

	receipt, err := s.GetTransactionReceipt(context.Background(), result.Hash)
	require.NoError(t, err)
	assert.Nil(t, receipt.To)
	require.NotNil(t, receipt.ContractAddress)
	assert.Equal(t, result.Address, *receipt.ContractAddress)
}

func TestGetTransactionReceiptPending(t *testing.T) {
	s := newTransactionService(&mockMirror{})

	receipt, err := s.GetTransactionReceipt(context.Background(), "0x"+hexChars(64))
	require.NoError(t, err)
	assert.Nil(t, receipt)
}
