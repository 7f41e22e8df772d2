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

import "context"

// EventSink receives execution events from the client so the expense
// pipeline can charge spending plans post-hoc. *hbar.ExpenseTracker
// implements it. A nil sink drops events.
type EventSink interface {
	// TransactionExecuted reports a submitted transaction by its SDK
	// id, the transaction constructor name, and the caller address the
	// expense is attributed to.
	TransactionExecuted(ctx context.Context, transactionID, constructor, caller string)

	// QueryExecuted reports a paid query and its cost.
	QueryExecuted(ctx context.Context, query string, costTinybars int64)
}

// Prechecker is the pre-emptive budget check consulted before paying
// for file transactions. *hbar.Limiter implements it.
type Prechecker interface {
	ShouldLimit(ctx context.Context, method, constructor, caller string, estimatedTinybars int64) bool
}
