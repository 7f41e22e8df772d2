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

package mirror

import "strings"

// Block is one entry of the blocks endpoints. Hash is the 48-byte
// Hedera block hash; Ethereum-shaped responses truncate it to 32 bytes.
type Block struct {
	Count        int64          `json:"count"`
	HapiVersion  string         `json:"hapi_version"`
	Hash         string         `json:"hash"`
	Name         string         `json:"name"`
	Number       int64          `json:"number"`
	PreviousHash string         `json:"previous_hash"`
	Size         int64          `json:"size"`
	Timestamp    TimestampRange `json:"timestamp"`
	GasUsed      int64          `json:"gas_used"`
	LogsBloom    string         `json:"logs_bloom"`
}

// TimestampRange is a consensus-timestamp interval in seconds.nanos
// form, inclusive on both ends.
type TimestampRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Account is the subset of the accounts endpoint the relay reads.
type Account struct {
	Account       string  `json:"account"`
	Balance       Balance `json:"balance"`
	EthereumNonce int64   `json:"ethereum_nonce"`
	EvmAddress    string  `json:"evm_address"`
}

// Balance is an account balance snapshot in tinybars.
type Balance struct {
	Balance   int64  `json:"balance"`
	Timestamp string `json:"timestamp"`
}

// Contract is the subset of the contracts endpoint the relay reads.
type Contract struct {
	ContractID       string `json:"contract_id"`
	EvmAddress       string `json:"evm_address"`
	FileID           string `json:"file_id"`
	Nonce            int64  `json:"nonce"`
	RuntimeBytecode  string `json:"runtime_bytecode"`
	CreatedTimestamp string `json:"created_timestamp"`
}

// ContractResult is one contract execution result. Detail lookups by
// hash include Logs; list queries leave it empty.
type ContractResult struct {
	Address              string        `json:"address"`
	Amount               int64         `json:"amount"`
	BlockGasUsed         int64         `json:"block_gas_used"`
	BlockHash            string        `json:"block_hash"`
	BlockNumber          int64         `json:"block_number"`
	CallResult           string        `json:"call_result"`
	ChainID              string        `json:"chain_id"`
	ContractID           string        `json:"contract_id"`
	CreatedContractIDs   []string      `json:"created_contract_ids"`
	ErrorMessage         string        `json:"error_message"`
	FailedInitcode       string        `json:"failed_initcode"`
	From                 string        `json:"from"`
	FunctionParameters   string        `json:"function_parameters"`
	GasConsumed          int64         `json:"gas_consumed"`
	GasLimit             int64         `json:"gas_limit"`
	GasPrice             string        `json:"gas_price"`
	GasUsed              int64         `json:"gas_used"`
	Hash                 string        `json:"hash"`
	Logs                 []ContractLog `json:"logs,omitempty"`
	MaxFeePerGas         string        `json:"max_fee_per_gas"`
	MaxPriorityFeePerGas string        `json:"max_priority_fee_per_gas"`
	Nonce                int64         `json:"nonce"`
	R                    string        `json:"r"`
	Result               string        `json:"result"`
	S                    string        `json:"s"`
	Status               string        `json:"status"`
	Timestamp            string        `json:"timestamp"`
	To                   string        `json:"to"`
	TransactionIndex     *int64        `json:"transaction_index"`
	Type                 *int64        `json:"type"`
	V                    int64         `json:"v"`
}

// Succeeded reports whether the execution completed without reverting.
func (r *ContractResult) Succeeded() bool {
	return r.Result == "SUCCESS" || r.Status == "0x1"
}

// ContractLog is one log entry from the contract log endpoints.
type ContractLog struct {
	Address          string   `json:"address"`
	BlockHash        string   `json:"block_hash"`
	BlockNumber      int64    `json:"block_number"`
	ContractID       string   `json:"contract_id"`
	Data             string   `json:"data"`
	Index            int64    `json:"index"`
	Timestamp        string   `json:"timestamp"`
	Topics           []string `json:"topics"`
	TransactionHash  string   `json:"transaction_hash"`
	TransactionIndex *int64   `json:"transaction_index"`
}

// ContractState is one storage slot value.
type ContractState struct {
	Address    string `json:"address"`
	ContractID string `json:"contract_id"`
	Slot       string `json:"slot"`
	Timestamp  string `json:"timestamp"`
	Value      string `json:"value"`
}

// NetworkFees is the network fee schedule.
type NetworkFees struct {
	Fees      []NetworkFee `json:"fees"`
	Timestamp string       `json:"timestamp"`
}

// NetworkFee is the gas price in tinybars for one transaction type.
type NetworkFee struct {
	Gas             int64  `json:"gas"`
	TransactionType string `json:"transaction_type"`
}

// EthereumGasTinybars returns the gas price for Ethereum transactions,
// or 0 when the schedule has no such entry.
func (f *NetworkFees) EthereumGasTinybars() int64 {
	for _, fee := range f.Fees {
		if fee.TransactionType == "EthereumTransaction" {
			return fee.Gas
		}
	}
	return 0
}

// ExchangeRate is the network HBAR/cent exchange rate.
type ExchangeRate struct {
	CurrentRate Rate   `json:"current_rate"`
	NextRate    Rate   `json:"next_rate"`
	Timestamp   string `json:"timestamp"`
}

// Rate expresses cents per HBAR as a fraction.
type Rate struct {
	CentEquivalent int64 `json:"cent_equivalent"`
	HbarEquivalent int64 `json:"hbar_equivalent"`
	ExpirationTime int64 `json:"expiration_time"`
}

// Cents returns whole cents per HBAR, floored.
func (r Rate) Cents() int64 {
	if r.HbarEquivalent == 0 {
		return 0
	}
	return r.CentEquivalent / r.HbarEquivalent
}

// Token is the subset of the tokens endpoint the relay reads.
type Token struct {
	TokenID  string `json:"token_id"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
	Type     string `json:"type"`
}

// Transaction is one entry of the transactions endpoint, used by the
// expense pipeline to read the actually charged fee.
type Transaction struct {
	TransactionID      string `json:"transaction_id"`
	ChargedTxFee       int64  `json:"charged_tx_fee"`
	ConsensusTimestamp string `json:"consensus_timestamp"`
	Name               string `json:"name"`
	Result             string `json:"result"`
}

// ContractAction is one call-frame action of an execution trace.
type ContractAction struct {
	CallDepth         int64  `json:"call_depth"`
	CallOperationType string `json:"call_operation_type"`
	CallType          string `json:"call_type"`
	Caller            string `json:"caller"`
	CallerType        string `json:"caller_type"`
	From              string `json:"from"`
	Gas               int64  `json:"gas"`
	GasUsed           int64  `json:"gas_used"`
	Index             int64  `json:"index"`
	Input             string `json:"input"`
	Recipient         string `json:"recipient"`
	RecipientType     string `json:"recipient_type"`
	ResultData        string `json:"result_data"`
	ResultDataType    string `json:"result_data_type"`
	Timestamp         string `json:"timestamp"`
	To                string `json:"to"`
	Value             int64  `json:"value"`
}

// OpcodeTrace is the opcode-level trace of one transaction.
type OpcodeTrace struct {
	Address     string   `json:"address"`
	ContractID  string   `json:"contract_id"`
	Failed      bool     `json:"failed"`
	Gas         int64    `json:"gas"`
	Opcodes     []Opcode `json:"opcodes"`
	ReturnValue string   `json:"return_value"`
}

// Opcode is one executed instruction of an opcode trace.
type Opcode struct {
	Depth   int64             `json:"depth"`
	Gas     int64             `json:"gas"`
	GasCost int64             `json:"gas_cost"`
	Memory  []string          `json:"memory"`
	Op      string            `json:"op"`
	PC      int64             `json:"pc"`
	Reason  string            `json:"reason"`
	Stack   []string          `json:"stack"`
	Storage map[string]string `json:"storage"`
}

// ContractCallRequest is the POST body of the contracts/call endpoint.
// Value is tinybars; Gas and GasPrice are plain integers.
type ContractCallRequest struct {
	Block    string `json:"block,omitempty"`
	Data     string `json:"data,omitempty"`
	Estimate bool   `json:"estimate"`
	From     string `json:"from,omitempty"`
	Gas      int64  `json:"gas,omitempty"`
	GasPrice int64  `json:"gasPrice,omitempty"`
	To       string `json:"to,omitempty"`
	Value    int64  `json:"value,omitempty"`
}

// ContractCallResponse is the success body of contracts/call.
type ContractCallResponse struct {
	Result string `json:"result"`
}

// Links carries the cursor to the next page of a paginated response.
type Links struct {
	Next string `json:"next"`
}

// FormatTransactionID converts an SDK transaction id
// (0.0.1001@1718000000.000000001) to the mirror node's path form
// (0.0.1001-1718000000-000000001).
func FormatTransactionID(id string) string {
	parts := strings.SplitN(id, "@", 2)
	if len(parts) != 2 {
		return id
	}
	return parts[0] + "-" + strings.Replace(parts[1], ".", "-", 1)
}
