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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// RPCError is a JSON-RPC 2.0 error object. Every error surfaced to a
// caller is one of the predefined values below or derived from one via
// the constructor helpers; handlers never invent codes inline.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Error implements error.
func (e *RPCError) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// MarshalJSON keeps the wire shape stable even if the struct grows.
func (e *RPCError) MarshalJSON() ([]byte, error) {
	type wire RPCError
	return json.Marshal((*wire)(e))
}

// Protocol errors, codes per the JSON-RPC 2.0 specification.
var (
	// ErrParse is returned when the request body is not valid JSON.
	ErrParse = &RPCError{Code: -32700, Message: "Unable to parse JSON"}

	// ErrInvalidRequest is returned when the request envelope is not a
	// well-formed JSON-RPC 2.0 request.
	ErrInvalidRequest = &RPCError{Code: -32600, Message: "Invalid request"}

	// ErrInternal wraps any unexpected failure, exposing only the
	// message of the predefined value.
	ErrInternal = &RPCError{Code: -32603, Message: "Unknown error invoking RPC"}
)

// Policy and lifecycle errors.
var (
	// ErrUnsupportedMethod is returned for methods the relay declares
	// unsupported and for mutating methods in read-only mode.
	ErrUnsupportedMethod = &RPCError{Code: -32601, Message: "Unsupported JSON-RPC method"}

	// ErrNotFound is returned for methods the relay has never heard of.
	ErrNotFound = &RPCError{Code: -32601, Message: "Method not found"}

	// ErrIPRateLimitExceeded is returned when the caller's per-IP
	// request budget for the method is exhausted.
	ErrIPRateLimitExceeded = &RPCError{Code: -32605, Message: "IP Rate limit exceeded"}

	// ErrHbarRateLimitExceeded is returned when the caller's spending
	// plan cannot cover the submission.
	ErrHbarRateLimitExceeded = &RPCError{Code: -32606, Message: "HBAR Rate limit exceeded"}

	// ErrMaxSubscriptions is returned when a connection is already at
	// its subscription cap.
	ErrMaxSubscriptions = &RPCError{Code: -32608, Message: "Exceeded maximum allowed subscriptions"}

	// ErrFilterNotFound is returned for expired, uninstalled, or
	// unknown filter ids.
	ErrFilterNotFound = &RPCError{Code: -32001, Message: "Filter not found"}

	// ErrNonceTooLow is returned when the network refuses a submission
	// with WRONG_NONCE.
	ErrNonceTooLow = &RPCError{Code: 32001, Message: "Nonce too low"}

	// ErrRequestTimeout is returned when an upstream did not answer in
	// time; the operation may still have reached consensus.
	ErrRequestTimeout = &RPCError{Code: -32010, Message: "Request timeout. Please try again"}

	// ErrInvalidBlockRange is returned when fromBlock exceeds toBlock.
	ErrInvalidBlockRange = &RPCError{Code: -39013, Message: "Invalid block range"}
)

// NewInvalidParameter builds the semantic validation error for the
// parameter at the given position.
func NewInvalidParameter(index int, reason string) *RPCError {
	return &RPCError{
		Code:    -32602,
		Message: fmt.Sprintf("Invalid parameter %d: %s", index, reason),
	}
}

// NewInvalidParameterField builds the validation error for a named
// field of an object parameter.
func NewInvalidParameterField(index int, field, reason string) *RPCError {
	return &RPCError{
		Code:    -32602,
		Message: fmt.Sprintf("Invalid parameter '%s' for %s at position %d: %s", field, "object", index, reason),
	}
}

// NewMissingRequiredParameter builds the error for an absent required
// parameter position.
func NewMissingRequiredParameter(index int) *RPCError {
	return &RPCError{
		Code:    -32602,
		Message: fmt.Sprintf("Missing value for required parameter %d", index),
	}
}

// NewInvalidContractAddress builds the error for a malformed `to`
// address on a contract call.
func NewInvalidContractAddress(address string) *RPCError {
	return &RPCError{
		Code:    -32012,
		Message: fmt.Sprintf("Invalid Contract Address: %q", address),
	}
}

// NewRequestBeyondHeadBlock builds the error for a block range
// reaching past the chain head.
func NewRequestBeyondHeadBlock(requested, head int64) *RPCError {
	return &RPCError{
		Code:    -32000,
		Message: fmt.Sprintf("Request beyond head block: requested %d, head %d", requested, head),
	}
}

// NewUnsupportedChainID builds the precheck error for a transaction
// signed for another chain.
func NewUnsupportedChainID(actual, expected string) *RPCError {
	return &RPCError{
		Code:    -32102,
		Message: fmt.Sprintf("ChainId (%s) not supported. The correct chainId is %s", actual, expected),
	}
}

// NewGasPriceTooLow builds the precheck error for a gas price below
// the network minimum.
func NewGasPriceTooLow(gasPrice, minimum string) *RPCError {
	return &RPCError{
		Code:    -32009,
		Message: fmt.Sprintf("Gas price '%s' is below configured minimum gas price '%s'", gasPrice, minimum),
	}
}

// NewGasLimitTooLow builds the precheck error for a gas limit under
// the transaction's intrinsic gas.
func NewGasLimitTooLow(gasLimit, intrinsic uint64) *RPCError {
	return &RPCError{
		Code:    -32003,
		Message: fmt.Sprintf("Intrinsic gas exceeds gas limit: %d < %d", gasLimit, intrinsic),
	}
}

// NewGasLimitTooHigh builds the precheck error for a gas limit over
// the per-second network ceiling.
func NewGasLimitTooHigh(gasLimit, ceiling int64) *RPCError {
	return &RPCError{
		Code:    -32005,
		Message: fmt.Sprintf("Transaction gas limit '%d' exceeds block gas limit '%d'", gasLimit, ceiling),
	}
}

// NewInsufficientFunds builds the precheck error for a sender balance
// that cannot cover value plus fees.
func NewInsufficientFunds(address string) *RPCError {
	return &RPCError{
		Code:    -32000,
		Message: fmt.Sprintf("Insufficient funds for transfer from %s", address),
	}
}

// NewOversizedTransaction builds the error for a raw transaction
// exceeding the configured size limit.
func NewOversizedTransaction(size, limit int) *RPCError {
	return &RPCError{
		Code:    -32201,
		Message: fmt.Sprintf("Oversized data: transaction size %d, transaction limit %d", size, limit),
	}
}

// NewContractRevert builds the execution-revert error: success-shaped
// at the transport level, code 3 with the revert payload as data.
func NewContractRevert(detail, data string) *RPCError {
	message := "execution reverted"
	if detail != "" {
		message = fmt.Sprintf("execution reverted: %s", detail)
	}
	return &RPCError{Code: 3, Message: message, Data: data}
}

// NewInternalError wraps an unexpected failure. Only the predefined
// message is exposed; the cause lands in the data field.
func NewInternalError(err error) *RPCError {
	e := &RPCError{Code: ErrInternal.Code, Message: ErrInternal.Message}
	if err != nil {
		e.Data = err.Error()
	}
	return e
}

// AsRPCError extracts the typed JSON-RPC error from err when it
// carries one.
func AsRPCError(err error) (*RPCError, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return nil, false
}

// mapMirrorError translates a typed mirror node failure into the
// caller-facing error: throttling and upstream timeouts become
// REQUEST_TIMEOUT, unimplemented operations UNSUPPORTED_METHOD, and
// anything else the internal wrapper.
func mapMirrorError(err error) *RPCError {
	var mirrorErr *mirror.Error
	if errors.As(err, &mirrorErr) {
		switch {
		case mirrorErr.IsRateLimit():
			return ErrRequestTimeout
		case mirrorErr.IsNotSupported():
			return ErrUnsupportedMethod
		}
	}
	return NewInternalError(err)
}
