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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashgraph/hedera-rpc-relay/services"
)

func TestValidateType(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		value    any
		ok       bool
	}{
		{"address", "address", "0x05fba803be258049a27b820088bab1cad2058871", true},
		{"address too short", "address", "0x05fba8", false},
		{"address not a string", "address", 7.0, false},
		{"block tag", "blockNumber", "latest", true},
		{"block quantity", "blockNumber", "0x10", true},
		{"block nonsense", "blockNumber", "newest", false},
		{"block hash", "blockHash", "0x" + hexChars(64), true},
		{"block hash short", "blockHash", "0x" + hexChars(40), false},
		{"hex empty", "hex", "0x", true},
		{"hex data", "hex", "0xdeadbeef", true},
		{"hex no prefix", "hex", "deadbeef", false},
		{"hex64 slot", "hex64", "0x0", true},
		{"hex64 full", "hex64", "0x" + hexChars(64), true},
		{"hex64 overlong", "hex64", "0x" + hexChars(65), false},
		{"boolean", "boolean", true, true},
		{"boolean string", "boolean", "true", false},
		{"array", "array", []any{25.0}, true},
		{"object", "transactionObject", map[string]any{"to": "0x1"}, true},
		{"object scalar", "filterObject", "0x1", false},
		{"tracer", "tracerType", "callTracer", true},
		{"tracer unknown", "tracerType", "stateTracer", false},
		{"compound matches first", "blockNumber|blockHash", "0x10", true},
		{"compound matches second", "blockNumber|blockHash", "0x" + hexChars(64), true},
		{"compound matches neither", "blockNumber|blockHash", "xyz", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateType(tt.typeName, tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateParamsNormalizes(t *testing.T) {
	specs := []ParamSpec{
		{Name: "address", Type: "address"},
		{Name: "blockNumber", Type: "blockNumber", Optional: true, Default: services.TagLatest},
	}

	normalized, err := validateParams(specs, []any{"0x05fba803be258049a27b820088bab1cad2058871"})
	require.NoError(t, err)
	require.Len(t, normalized, 2)
	assert.Equal(t, services.TagLatest, normalized[1])

	normalized, err = validateParams(specs, []any{"0x05fba803be258049a27b820088bab1cad2058871", "0x10"})
	require.NoError(t, err)
	assert.Equal(t, "0x10", normalized[1])

	// Explicit null falls back to the default too.
	normalized, err = validateParams(specs, []any{"0x05fba803be258049a27b820088bab1cad2058871", nil})
	require.NoError(t, err)
	assert.Equal(t, services.TagLatest, normalized[1])
}

func TestValidateParamsErrors(t *testing.T) {
	specs := []ParamSpec{
		{Name: "address", Type: "address"},
	}

	_, err := validateParams(specs, nil)
	rpcErr, ok := services.AsRPCError(err)
	require.True(t, ok)
	assert.Contains(t, rpcErr.Message, "Missing value")

	_, err = validateParams(specs, []any{"bogus"})
	rpcErr, ok = services.AsRPCError(err)
	require.True(t, ok)
	assert.Equal(t, -32602, rpcErr.Code)

	_, err = validateParams(specs, []any{"0x05fba803be258049a27b820088bab1cad2058871", "extra"})
	rpcErr, ok = services.AsRPCError(err)
	require.True(t, ok)
	assert.Contains(t, rpcErr.Message, "unexpected parameter")
}

func hexChars(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = "0123456789abcdef"[i%16]
	}
	return string(buf)
}
