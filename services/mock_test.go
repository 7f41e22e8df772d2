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
	"strings"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// mockMirror implements MirrorClient with function fields; each test
// wires only the endpoints it touches.
type mockMirror struct {
	getAccount             func(ctx context.Context, idOrAddress, timestamp string) (*mirror.Account, error)
	getContract            func(ctx context.Context, idOrAddress string) (*mirror.Contract, error)
	getContractResult      func(ctx context.Context, hash string) (*mirror.ContractResult, error)
	getContractResults     func(ctx context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error)
	getContractLogs        func(ctx context.Context, params mirror.LogParams) ([]mirror.ContractLog, error)
	getContractStateSlot   func(ctx context.Context, address, slot, timestamp string) (string, error)
	getBlocks              func(ctx context.Context, params mirror.BlocksParams) ([]mirror.Block, error)
	getLatestBlock         func(ctx context.Context) (*mirror.Block, error)
	getBlockByHashOrNumber func(ctx context.Context, hashOrNumber string) (*mirror.Block, error)
	getNetworkFees         func(ctx context.Context) (*mirror.NetworkFees, error)
	getExchangeRate        func(ctx context.Context) (*mirror.ExchangeRate, error)
	getToken               func(ctx context.Context, tokenID string) (*mirror.Token, error)
	getTransactionByID     func(ctx context.Context, id string) (*mirror.Transaction, error)
	getContractActions     func(ctx context.Context, hash string) ([]mirror.ContractAction, error)
	getContractOpcodes     func(ctx context.Context, hash string, memory, stack, storage bool) (*mirror.OpcodeTrace, error)
	postContractCall       func(ctx context.Context, request mirror.ContractCallRequest) (*mirror.ContractCallResponse, error)
}

func (m *mockMirror) GetAccount(ctx context.Context, idOrAddress, timestamp string) (*mirror.Account, error) {
	if m.getAccount == nil {
		return nil, nil
	}
	return m.getAccount(ctx, idOrAddress, timestamp)
}

func (m *mockMirror) GetContract(ctx context.Context, idOrAddress string) (*mirror.Contract, error) {
	if m.getContract == nil {
		return nil, nil
	}
	return m.getContract(ctx, idOrAddress)
}

func (m *mockMirror) GetContractResult(ctx context.Context, hash string) (*mirror.ContractResult, error) {
	if m.getContractResult == nil {
		return nil, nil
	}
	return m.getContractResult(ctx, hash)
}

func (m *mockMirror) GetContractResults(ctx context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error) {
	if m.getContractResults == nil {
		return nil, nil
	}
	return m.getContractResults(ctx, params)
}

func (m *mockMirror) GetContractLogs(ctx context.Context, params mirror.LogParams) ([]mirror.ContractLog, error) {
	if m.getContractLogs == nil {
		return nil, nil
	}
	return m.getContractLogs(ctx, params)
}

func (m *mockMirror) GetContractStateSlot(ctx context.Context, address, slot, timestamp string) (string, error) {
	if m.getContractStateSlot == nil {
		return "", nil
	}
	return m.getContractStateSlot(ctx, address, slot, timestamp)
}

func (m *mockMirror) GetBlocks(ctx context.Context, params mirror.BlocksParams) ([]mirror.Block, error) {
	if m.getBlocks == nil {
		return nil, nil
	}
	return m.getBlocks(ctx, params)
}

func (m *mockMirror) GetLatestBlock(ctx context.Context) (*mirror.Block, error) {
	if m.getLatestBlock == nil {
		return mirrorBlock(100), nil
	}
	return m.getLatestBlock(ctx)
}

func (m *mockMirror) GetBlockByHashOrNumber(ctx context.Context, hashOrNumber string) (*mirror.Block, error) {
	if m.getBlockByHashOrNumber == nil {
		return nil, nil
	}
	return m.getBlockByHashOrNumber(ctx, hashOrNumber)
}

func (m *mockMirror) GetNetworkFees(ctx context.Context) (*mirror.NetworkFees, error) {
	if m.getNetworkFees == nil {
		return &mirror.NetworkFees{Fees: []mirror.NetworkFee{
			{Gas: 71, TransactionType: "EthereumTransaction"},
		}}, nil
	}
	return m.getNetworkFees(ctx)
}

func (m *mockMirror) GetExchangeRate(ctx context.Context) (*mirror.ExchangeRate, error) {
	if m.getExchangeRate == nil {
		return &mirror.ExchangeRate{CurrentRate: mirror.Rate{CentEquivalent: 12, HbarEquivalent: 1}}, nil
	}
	return m.getExchangeRate(ctx)
}

func (m *mockMirror) GetToken(ctx context.Context, tokenID string) (*mirror.Token, error) {
	if m.getToken == nil {
		return nil, nil
	}
	return m.getToken(ctx, tokenID)
}

func (m *mockMirror) GetTransactionByID(ctx context.Context, id string) (*mirror.Transaction, error) {
	if m.getTransactionByID == nil {
		return nil, nil
	}
	return m.getTransactionByID(ctx, id)
}

func (m *mockMirror) GetContractActions(ctx context.Context, hash string) ([]mirror.ContractAction, error) {
	if m.getContractActions == nil {
		return nil, nil
	}
	return m.getContractActions(ctx, hash)
}

func (m *mockMirror) GetContractOpcodes(ctx context.Context, hash string, memory, stack, storage bool) (*mirror.OpcodeTrace, error) {
	if m.getContractOpcodes == nil {
		return nil, nil
	}
	return m.getContractOpcodes(ctx, hash, memory, stack, storage)
}

func (m *mockMirror) PostContractCall(ctx context.Context, request mirror.ContractCallRequest) (*mirror.ContractCallResponse, error) {
	if m.postContractCall == nil {
		return nil, nil
	}
	return m.postContractCall(ctx, request)
}

// mirrorBlock builds a plausible mirror block with a 48-byte hash.
func mirrorBlock(number int64) *mirror.Block {
	return &mirror.Block{
		Number:       number,
		Hash:         fmt.Sprintf("0x%064x", number) + strings.Repeat("f", 32),
		PreviousHash: fmt.Sprintf("0x%064x", number-1) + strings.Repeat("f", 32),
		Count:        2,
		Size:         1024,
		GasUsed:      600_000,
		Timestamp: mirror.TimestampRange{
			From: fmt.Sprintf("%d.000000000", 1700000000+number),
			To:   fmt.Sprintf("%d.999999999", 1700000000+number),
		},
	}
}

// contractResult builds a plausible successful contract result.
func contractResult(hash string, blockNumber int64) *mirror.ContractResult {
	index := int64(0)
	txType := int64(2)
	return &mirror.ContractResult{
		Amount:             0,
		BlockGasUsed:       600_000,
		BlockHash:          fmt.Sprintf("0x%064x", blockNumber) + strings.Repeat("f", 32),
		BlockNumber:        blockNumber,
		From:               "0x05fba803be258049a27b820088bab1cad2058871",
		To:                 "0x0000000000000000000000000000000000000409",
		FunctionParameters: "0xa9059cbb",
		GasLimit:           400_000,
		GasPrice:           "0x47",
		GasUsed:            250_000,
		Hash:               hash,
		Nonce:              7,
		Result:             "SUCCESS",
		Status:             "0x1",
		Timestamp:          "1700000100.000000000",
		TransactionIndex:   &index,
		Type:               &txType,
		V:                  1,
		R:                  "0x" + strings.Repeat("11", 32),
		S:                  "0x" + strings.Repeat("22", 32),
	}
}
