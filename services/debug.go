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

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// Tracer names accepted by debug_traceTransaction.
const (
	TracerCall   = "callTracer"
	TracerOpcode = "opcodeLogger"
)

// TracerConfig is the optional second half of the tracer parameter.
type TracerConfig struct {
	OnlyTopCall    bool `json:"onlyTopCall,omitempty"`
	EnableMemory   bool `json:"enableMemory,omitempty"`
	DisableStack   bool `json:"disableStack,omitempty"`
	DisableStorage bool `json:"disableStorage,omitempty"`
}

// CallFrame is the callTracer response shape.
type CallFrame struct {
	Type    string      `json:"type"`
	From    string      `json:"from"`
	To      string      `json:"to,omitempty"`
	Value   string      `json:"value,omitempty"`
	Gas     string      `json:"gas"`
	GasUsed string      `json:"gasUsed"`
	Input   string      `json:"input"`
	Output  string      `json:"output,omitempty"`
	Error   string      `json:"error,omitempty"`
	Calls   []CallFrame `json:"calls,omitempty"`
}

// OpcodeLog is the opcodeLogger response shape.
type OpcodeLog struct {
	Gas         int64         `json:"gas"`
	Failed      bool          `json:"failed"`
	ReturnValue string        `json:"returnValue"`
	StructLogs  []OpcodeEntry `json:"structLogs"`
}

// OpcodeEntry is one executed instruction of an opcode trace.
type OpcodeEntry struct {
	PC      int64             `json:"pc"`
	Op      string            `json:"op"`
	Gas     int64             `json:"gas"`
	GasCost int64             `json:"gasCost"`
	Depth   int64             `json:"depth"`
	Stack   []string          `json:"stack,omitempty"`
	Memory  []string          `json:"memory,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
	Reason  string            `json:"reason,omitempty"`
}

// DebugService answers debug_traceTransaction from the mirror node's
// recorded actions and opcode traces.
type DebugService struct {
	log     *zap.Logger
	mirror  MirrorClient
	enabled bool
}

// NewDebugService creates the debug service. When enabled is false
// every operation answers UNSUPPORTED_METHOD.
func NewDebugService(log *zap.Logger, mirror MirrorClient, enabled bool) *DebugService {
	return &DebugService{log: log, mirror: mirror, enabled: enabled}
}

// TraceTransaction re-plays a recorded execution through the named
// tracer, or nil when the transaction is unknown.
func (s *DebugService) TraceTransaction(ctx context.Context, hash, tracer string, config TracerConfig) (any, error) {
	if !s.enabled {
		return nil, ErrUnsupportedMethod
	}

	switch tracer {
	case TracerOpcode:
		return s.traceOpcodes(ctx, hash, config)
	default:
		return s.traceCalls(ctx, hash, config)
	}
}

func (s *DebugService) traceCalls(ctx context.Context, hash string, config TracerConfig) (any, error) {
	actions, err := s.mirror.GetContractActions(ctx, hash)
	if err != nil {
		return nil, mapMirrorError(err)
	}
	if len(actions) == 0 {
		return nil, nil
	}

	// Actions arrive in execution order; each frame nests under the
	// most recent frame one level up.
	children := make([][]int, len(actions))
	lastAtDepth := map[int64]int{actions[0].CallDepth: 0}
	for i := 1; i < len(actions); i++ {
		parent := 0
		if j, ok := lastAtDepth[actions[i].CallDepth-1]; ok {
			parent = j
		}
		children[parent] = append(children[parent], i)
		lastAtDepth[actions[i].CallDepth] = i
	}

	var build func(i int) CallFrame
	build = func(i int) CallFrame {
		frame := toCallFrame(actions[i])
		if config.OnlyTopCall && i == 0 {
			return frame
		}
		for _, child := range children[i] {
			frame.Calls = append(frame.Calls, build(child))
		}
		return frame
	}
	root := build(0)
	return &root, nil
}

func (s *DebugService) traceOpcodes(ctx context.Context, hash string, config TracerConfig) (any, error) {
	trace, err := s.mirror.GetContractOpcodes(ctx, hash, config.EnableMemory, !config.DisableStack, !config.DisableStorage)
	if err != nil {
		return nil, mapMirrorError(err)
	}
	if trace == nil {
		return nil, nil
	}

	logs := make([]OpcodeEntry, len(trace.Opcodes))
	for i, op := range trace.Opcodes {
		logs[i] = OpcodeEntry{
			PC:      op.PC,
			Op:      op.Op,
			Gas:     op.Gas,
			GasCost: op.GasCost,
			Depth:   op.Depth,
			Stack:   op.Stack,
			Memory:  op.Memory,
			Storage: op.Storage,
			Reason:  op.Reason,
		}
	}
	return &OpcodeLog{
		Gas:         trace.Gas,
		Failed:      trace.Failed,
		ReturnValue: orEmptyHex(trace.ReturnValue),
		StructLogs:  logs,
	}, nil
}

func toCallFrame(action mirror.ContractAction) CallFrame {
	frame := CallFrame{
		Type:    action.CallOperationType,
		From:    action.From,
		To:      action.To,
		Gas:     NumberToHex(action.Gas),
		GasUsed: NumberToHex(action.GasUsed),
		Input:   orEmptyHex(action.Input),
	}
	if action.Value > 0 {
		frame.Value = TinybarsToWeibars(action.Value)
	}
	if action.ResultDataType == "REVERT_REASON" || action.ResultDataType == "ERROR" {
		frame.Error = action.ResultData
	} else {
		frame.Output = orEmptyHex(action.ResultData)
	}
	return frame
}
