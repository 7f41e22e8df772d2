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

// Package services translates between Ethereum JSON-RPC semantics and
// Hedera semantics: mirror node entities become Ethereum-shaped blocks,
// transactions, receipts, and logs, and raw Ethereum submissions become
// consensus-node transactions.
package services

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// Fixed Ethereum-shape constants. Hedera has no state trie, uncles, or
// block nonces; the relay substitutes the canonical empty values.
const (
	ZeroAddress = "0x0000000000000000000000000000000000000000"
	ZeroHex     = "0x0"
	EmptyHex    = "0x"

	// ZeroHash32 substitutes unavailable 32-byte fields.
	ZeroHash32 = "0x0000000000000000000000000000000000000000000000000000000000000000"

	// EmptyUnclesHash is keccak256(rlp([])), the uncle hash of every
	// block the relay reports.
	EmptyUnclesHash = "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347"

	// DefaultRootHash substitutes the receipt root and state root.
	DefaultRootHash = "0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421"

	// EmptyBlockNonce is the fixed 8-byte block nonce.
	EmptyBlockNonce = "0x0000000000000000"
)

// EmptyBloom is the 256-byte all-zero logs bloom, substituted when the
// mirror node reports no bloom.
var EmptyBloom = "0x" + strings.Repeat("00", 256)

// TinybarToWeibarCoef converts tinybars to weibars: 1 HBAR is 10^8
// tinybars and 10^18 weibars.
var TinybarToWeibarCoef = big.NewInt(10_000_000_000)

// Block is an Ethereum-shaped block. Transactions holds hashes or full
// Transaction objects depending on the request.
type Block struct {
	Number           string   `json:"number"`
	Hash             string   `json:"hash"`
	ParentHash       string   `json:"parentHash"`
	Nonce            string   `json:"nonce"`
	Sha3Uncles       string   `json:"sha3Uncles"`
	LogsBloom        string   `json:"logsBloom"`
	TransactionsRoot string   `json:"transactionsRoot"`
	StateRoot        string   `json:"stateRoot"`
	ReceiptsRoot     string   `json:"receiptsRoot"`
	Miner            string   `json:"miner"`
	Difficulty       string   `json:"difficulty"`
	TotalDifficulty  string   `json:"totalDifficulty"`
	ExtraData        string   `json:"extraData"`
	Size             string   `json:"size"`
	GasLimit         string   `json:"gasLimit"`
	GasUsed          string   `json:"gasUsed"`
	Timestamp        string   `json:"timestamp"`
	Transactions     []any    `json:"transactions"`
	Uncles           []string `json:"uncles"`
	MixHash          string   `json:"mixHash"`
	BaseFeePerGas    string   `json:"baseFeePerGas"`
}

// Transaction is an Ethereum-shaped transaction object.
type Transaction struct {
	BlockHash            string  `json:"blockHash"`
	BlockNumber          string  `json:"blockNumber"`
	From                 string  `json:"from"`
	Gas                  string  `json:"gas"`
	GasPrice             string  `json:"gasPrice"`
	Hash                 string  `json:"hash"`
	Input                string  `json:"input"`
	Nonce                string  `json:"nonce"`
	To                   *string `json:"to"`
	TransactionIndex     string  `json:"transactionIndex"`
	Value                string  `json:"value"`
	Type                 string  `json:"type"`
	ChainID              string  `json:"chainId,omitempty"`
	MaxFeePerGas         string  `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string  `json:"maxPriorityFeePerGas,omitempty"`
	V                    string  `json:"v"`
	R                    string  `json:"r"`
	S                    string  `json:"s"`
}

// Receipt is an Ethereum-shaped transaction receipt.
type Receipt struct {
	TransactionHash   string  `json:"transactionHash"`
	TransactionIndex  string  `json:"transactionIndex"`
	BlockHash         string  `json:"blockHash"`
	BlockNumber       string  `json:"blockNumber"`
	From              string  `json:"from"`
	To                *string `json:"to"`
	CumulativeGasUsed string  `json:"cumulativeGasUsed"`
	GasUsed           string  `json:"gasUsed"`
	ContractAddress   *string `json:"contractAddress"`
	Logs              []Log   `json:"logs"`
	LogsBloom         string  `json:"logsBloom"`
	Status            string  `json:"status"`
	EffectiveGasPrice string  `json:"effectiveGasPrice"`
	Root              string  `json:"root"`
	Type              string  `json:"type"`
	RevertReason      string  `json:"revertReason,omitempty"`
}

// Log is an Ethereum-shaped log entry.
type Log struct {
	Address          string   `json:"address"`
	BlockHash        string   `json:"blockHash"`
	BlockNumber      string   `json:"blockNumber"`
	Data             string   `json:"data"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
	Topics           []string `json:"topics"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
}

// FeeHistory is the eth_feeHistory response shape.
type FeeHistory struct {
	OldestBlock   string     `json:"oldestBlock"`
	BaseFeePerGas []string   `json:"baseFeePerGas"`
	GasUsedRatio  []float64  `json:"gasUsedRatio"`
	Reward        [][]string `json:"reward,omitempty"`
}

// CallArgs is the transaction object parameter of eth_call,
// eth_estimateGas, and the prechecked view of eth_sendRawTransaction.
// All fields arrive as hex strings on the wire.
type CallArgs struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Gas      string `json:"gas,omitempty"`
	GasPrice string `json:"gasPrice,omitempty"`
	Value    string `json:"value,omitempty"`
	Data     string `json:"data,omitempty"`
	Input    string `json:"input,omitempty"`
}

// LogCriteria is the filter object parameter of eth_getLogs,
// eth_newFilter, and logs subscriptions.
type LogCriteria struct {
	BlockHash string `json:"blockHash,omitempty"`
	FromBlock string `json:"fromBlock,omitempty"`
	ToBlock   string `json:"toBlock,omitempty"`
	Address   any    `json:"address,omitempty"`
	Topics    []any  `json:"topics,omitempty"`
}

// Addresses normalizes the address criterion, which the wire allows as
// a single string or a list.
func (c LogCriteria) Addresses() []string {
	switch v := c.Address.(type) {
	case string:
		return []string{v}
	case []any:
		var addresses []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				addresses = append(addresses, s)
			}
		}
		return addresses
	case []string:
		return v
	}
	return nil
}

// TopicFilters normalizes the topics criterion into per-position
// OR-lists. A null position matches anything and yields an empty list.
func (c LogCriteria) TopicFilters() [][]string {
	filters := make([][]string, 0, len(c.Topics))
	for _, position := range c.Topics {
		switch v := position.(type) {
		case string:
			filters = append(filters, []string{v})
		case []any:
			var alternatives []string
			for _, item := range v {
				if s, ok := item.(string); ok {
					alternatives = append(alternatives, s)
				}
			}
			filters = append(filters, alternatives)
		default:
			filters = append(filters, nil)
		}
	}
	return filters
}

// NumberToHex renders a non-negative integer as an Ethereum quantity.
func NumberToHex(n int64) string {
	return hexutil.EncodeUint64(uint64(n))
}

// HexToNumber parses an Ethereum quantity.
func HexToNumber(s string) (int64, error) {
	n, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// TinybarsToWeibars scales a tinybar amount up to weibars, rendered as
// a quantity.
func TinybarsToWeibars(tinybars int64) string {
	weibars := new(big.Int).Mul(big.NewInt(tinybars), TinybarToWeibarCoef)
	return "0x" + weibars.Text(16)
}

// WeibarsToTinybars floors a weibar-hex amount down to tinybars.
func WeibarsToTinybars(weibarsHex string) (int64, error) {
	weibars, err := hexutil.DecodeBig(weibarsHex)
	if err != nil {
		return 0, err
	}
	tinybars := new(big.Int).Div(weibars, TinybarToWeibarCoef)
	if !tinybars.IsInt64() {
		return 0, fmt.Errorf("value %s exceeds the representable tinybar range", weibarsHex)
	}
	return tinybars.Int64(), nil
}

// ToEthereumHash truncates a 48-byte Hedera block hash to the 32 bytes
// Ethereum tooling expects.
func ToEthereumHash(hederaHash string) string {
	if len(hederaHash) >= 66 {
		return hederaHash[:66]
	}
	return hederaHash
}

// TimestampSeconds extracts the whole-second part of a mirror node
// consensus timestamp (seconds.nanoseconds).
func TimestampSeconds(timestamp string) int64 {
	seconds, _ := strconv.ParseInt(strings.SplitN(timestamp, ".", 2)[0], 10, 64)
	return seconds
}

// toTransaction shapes one contract result as an Ethereum transaction.
func toTransaction(result *mirror.ContractResult) *Transaction {
	tx := &Transaction{
		BlockHash:        ToEthereumHash(result.BlockHash),
		BlockNumber:      NumberToHex(result.BlockNumber),
		From:             result.From,
		Gas:              NumberToHex(result.GasLimit),
		GasPrice:         quantityOrZero(result.GasPrice),
		Hash:             result.Hash,
		Input:            orEmptyHex(result.FunctionParameters),
		Nonce:            NumberToHex(result.Nonce),
		TransactionIndex: indexOrZero(result.TransactionIndex),
		Value:            TinybarsToWeibars(result.Amount),
		Type:             typeOrZero(result.Type),
		ChainID:          result.ChainID,
		V:                NumberToHex(result.V),
		R:                result.R,
		S:                result.S,
	}
	if result.To != "" {
		to := result.To
		tx.To = &to
	}
	if result.Type != nil && *result.Type == 2 {
		tx.MaxFeePerGas = quantityOrZero(result.MaxFeePerGas)
		tx.MaxPriorityFeePerGas = quantityOrZero(result.MaxPriorityFeePerGas)
	}
	return tx
}

// toReceipt shapes one contract result as an Ethereum receipt.
func toReceipt(result *mirror.ContractResult, effectiveGasPrice string) *Receipt {
	receipt := &Receipt{
		TransactionHash:   result.Hash,
		TransactionIndex:  indexOrZero(result.TransactionIndex),
		BlockHash:         ToEthereumHash(result.BlockHash),
		BlockNumber:       NumberToHex(result.BlockNumber),
		From:              result.From,
		CumulativeGasUsed: NumberToHex(result.BlockGasUsed),
		GasUsed:           NumberToHex(result.GasUsed),
		Logs:              toLogs(result.Logs),
		LogsBloom:         EmptyBloom,
		Status:            ZeroHex,
		EffectiveGasPrice: effectiveGasPrice,
		Root:              DefaultRootHash,
		Type:              typeOrZero(result.Type),
	}
	if result.To != "" {
		to := result.To
		receipt.To = &to
	}
	if result.Succeeded() {
		receipt.Status = "0x1"
	} else if result.ErrorMessage != "" {
		receipt.RevertReason = result.ErrorMessage
	}
	if len(result.CreatedContractIDs) > 0 && result.Address != "" {
		address := result.Address
		receipt.ContractAddress = &address
	}
	return receipt
}

// toLog shapes one mirror log entry.
func toLog(log mirror.ContractLog) Log {
	return Log{
		Address:          log.Address,
		BlockHash:        ToEthereumHash(log.BlockHash),
		BlockNumber:      NumberToHex(log.BlockNumber),
		Data:             orEmptyHex(log.Data),
		LogIndex:         NumberToHex(log.Index),
		Topics:           log.Topics,
		TransactionHash:  log.TransactionHash,
		TransactionIndex: indexOrZero(log.TransactionIndex),
	}
}

func toLogs(logs []mirror.ContractLog) []Log {
	shaped := make([]Log, 0, len(logs))
	for _, log := range logs {
		shaped = append(shaped, toLog(log))
	}
	return shaped
}

// quantityOrZero normalizes a mirror hex field that may be empty or
// zero-padded into a minimal quantity.
func quantityOrZero(hex string) string {
	if hex == "" || hex == EmptyHex {
		return ZeroHex
	}
	value, ok := new(big.Int).SetString(strings.TrimPrefix(hex, "0x"), 16)
	if !ok {
		return ZeroHex
	}
	return "0x" + value.Text(16)
}

func orEmptyHex(hex string) string {
	if hex == "" {
		return EmptyHex
	}
	return hex
}

func indexOrZero(index *int64) string {
	if index == nil {
		return ZeroHex
	}
	return NumberToHex(*index)
}

func typeOrZero(t *int64) string {
	if t == nil {
		return ZeroHex
	}
	return NumberToHex(*t)
}
