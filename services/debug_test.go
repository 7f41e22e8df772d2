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

func traceActions() []mirror.ContractAction {
	return []mirror.ContractAction{
		{
			CallDepth:         0,
			CallOperationType: "CALL",
			From:              "0x05fba803be258049a27b820088bab1cad2058871",
			To:                "0x0000000000000000000000000000000000000409",
			Gas:               400_000,
			GasUsed:           250_000,
			Input:             "0xa9059cbb",
			ResultData:        "0x01",
			ResultDataType:    "OUTPUT",
		},
		{
			CallDepth:         1,
			CallOperationType: "DELEGATECALL",
			From:              "0x0000000000000000000000000000000000000409",
			To:                "0x000000000000000000000000000000000000040a",
			Gas:               300_000,
			GasUsed:           100_000,
			ResultDataType:    "OUTPUT",
		},
		{
			CallDepth:         2,
			CallOperationType: "STATICCALL",
			From:              "0x000000000000000000000000000000000000040a",
			To:                "0x000000000000000000000000000000000000040b",
			Gas:               200_000,
			GasUsed:           50_000,
			ResultData:        "revert here",
			ResultDataType:    "REVERT_REASON",
			Value:             25,
		},
		{
			CallDepth:         1,
			CallOperationType: "CALL",
			From:              "0x0000000000000000000000000000000000000409",
			To:                "0x000000000000000000000000000000000000040c",
			Gas:               100_000,
			GasUsed:           10_000,
			ResultDataType:    "OUTPUT",
		},
	}
}

func TestTraceTransactionNestsFrames(t *testing.T) {
	m := &mockMirror{
		getContractActions: func(context.Context, string) ([]mirror.ContractAction, error) {
			return traceActions(), nil
		},
	}
	s := NewDebugService(zap.NewNop(), m, true)

	result, err := s.TraceTransaction(context.Background(), "0x"+hexChars(64), TracerCall, TracerConfig{})
	require.NoError(t, err)

	root, ok := result.(*CallFrame)
	require.True(t, ok)
	assert.Equal(t, "CALL", root.Type)
	assert.Equal(t, "0x61a80", root.Gas)
	assert.Equal(t, "0x3d090", root.GasUsed)
	assert.Equal(t, "0xa9059cbb", root.Input)
	assert.Equal(t, "0x01", root.Output)

	// Two direct children; the STATICCALL nests under the first.
	require.Len(t, root.Calls, 2)
	assert.Equal(t, "DELEGATECALL", root.Calls[0].Type)
	assert.Equal(t, "CALL", root.Calls[1].Type)

	require.Len(t, root.Calls[0].Calls, 1)
	nested := root.Calls[0].Calls[0]
	assert.Equal(t, "STATICCALL", nested.Type)
	assert.Equal(t, "revert here", nested.Error)
	assert.Empty(t, nested.Output)
	assert.Equal(t, TinybarsToWeibars(25), nested.Value)
}

func TestTraceTransactionOnlyTopCall(t *testing.T) {
	m := &mockMirror{
		getContractActions: func(context.Context, string) ([]mirror.ContractAction, error) {
			return traceActions(), nil
		},
	}
	s := NewDebugService(zap.NewNop(), m, true)

	result, err := s.TraceTransaction(context.Background(), "0x"+hexChars(64), TracerCall, TracerConfig{OnlyTopCall: true})
	require.NoError(t, err)

	root := result.(*CallFrame)
	assert.Equal(t, "CALL", root.Type)
	assert.Empty(t, root.Calls)
}

func TestTraceTransactionUnknown(t *testing.T) {
	s := NewDebugService(zap.NewNop(), &mockMirror{}, true)

	result, err := s.TraceTransaction(context.Background(), "0x"+hexChars(64), TracerCall, TracerConfig{})
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestTraceTransactionOpcodes(t *testing.T) {
	var gotMemory, gotStack, gotStorage bool
	m := &mockMirror{
		getContractOpcodes: func(_ context.Context, _ string, memory, stack, storage bool) (*mirror.OpcodeTrace, error) {
			gotMemory, gotStack, gotStorage = memory, stack, storage
			return &mirror.OpcodeTrace{
				Gas:    250_000,
				Failed: true,
				Opcodes: []mirror.Opcode{
					{PC: 0, Op: "PUSH1", Gas: 250_000, GasCost: 3, Depth: 1, Stack: []string{"0x60"}},
					{PC: 2, Op: "REVERT", Gas: 249_997, GasCost: 0, Depth: 1, Reason: "0x08c379a0"},
				},
			}, nil
		},
	}
	s := NewDebugService(zap.NewNop(), m, true)

	result, err := s.TraceTransaction(context.Background(), "0x"+hexChars(64), TracerOpcode, TracerConfig{
		EnableMemory:   true,
		DisableStorage: true,
	})
	require.NoError(t, err)

	assert.True(t, gotMemory)
	assert.True(t, gotStack)
	assert.False(t, gotStorage)

	trace, ok := result.(*OpcodeLog)
	require.True(t, ok)
	assert.True(t, trace.Failed)
	assert.Equal(t, int64(250_000), trace.Gas)
	assert.Equal(t, EmptyHex, trace.ReturnValue)
	require.Len(t, trace.StructLogs, 2)
	assert.Equal(t, "PUSH1", trace.StructLogs[0].Op)
	assert.Equal(t, "0x08c379a0", trace.StructLogs[1].Reason)
}

func TestTraceTransactionDisabled(t *testing.T) {
	s := NewDebugService(zap.NewNop(), &mockMirror{}, false)

	_, err := s.TraceTransaction(context.Background(), "0x"+hexChars(64), TracerCall, TracerConfig{})
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}
