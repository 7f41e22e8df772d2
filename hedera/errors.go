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

package hedera

import (
	"errors"
	"fmt"
	"strings"

	hederasdk "github.com/hashgraph/hedera-sdk-go/v2"
)

// Statuses the relay inspects by name.
const (
	StatusWrongNonce          = "WRONG_NONCE"
	StatusTransactionOversize = "TRANSACTION_OVERSIZE"
)

// SDKError is a typed consensus-node failure. Status carries the HAPI
// precheck or receipt status when one exists. Timeout and
// connection-drop classifications matter to callers: the transaction
// may still have reached consensus.
type SDKError struct {
	Status  string
	Message string
	Err     error
}

// Error implements error.
func (e *SDKError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("consensus node returned %s", e.Status)
	}
	return e.Message
}

// Unwrap exposes the underlying SDK error.
func (e *SDKError) Unwrap() error {
	return e.Err
}

// IsWrongNonce reports a WRONG_NONCE precheck.
func (e *SDKError) IsWrongNonce() bool {
	return e.Status == StatusWrongNonce
}

// IsOversize reports that the payload cannot fit the chunk budget.
func (e *SDKError) IsOversize() bool {
	return e.Status == StatusTransactionOversize
}

// IsGRPCTimeout reports that the SDK gave up waiting on the node.
func (e *SDKError) IsGRPCTimeout() bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "timeout exceeded") ||
		strings.Contains(msg, "context deadline")
}

// IsConnectionDropped reports that the connection failed mid-request.
func (e *SDKError) IsConnectionDropped() bool {
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection dropped") ||
		strings.Contains(msg, "transport is closing") ||
		strings.Contains(msg, "eof")
}

// wrapSDKError types an error coming out of the SDK, extracting the
// HAPI status from precheck and receipt failures.
func wrapSDKError(err error) *SDKError {
	var precheck hederasdk.ErrHederaPreCheckStatus
	if errors.As(err, &precheck) {
		return &SDKError{Status: precheck.Status.String(), Message: err.Error(), Err: err}
	}
	var receipt hederasdk.ErrHederaReceiptStatus
	if errors.As(err, &receipt) {
		return &SDKError{Status: receipt.Status.String(), Message: err.Error(), Err: err}
	}
	return &SDKError{Message: err.Error(), Err: err}
}
