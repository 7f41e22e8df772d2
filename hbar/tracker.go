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

package hbar

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// TransactionReader is the slice of the mirror client the tracker
// consumes.
type TransactionReader interface {
	GetTransactionByID(ctx context.Context, id string) (*mirror.Transaction, error)
}

// Record lookup schedule. Mirror ingest usually lands a transaction
// record within a few seconds of consensus, well past the mirror
// client's own request retry settings.
const (
	RecordLookupAttempts = 10
	RecordLookupDelay    = 2 * time.Second
)

// ExpenseTracker receives execution events from the consensus client
// and performs post-hoc accounting: it looks up the charged fee on the
// mirror node and books it against the caller's plan. Mirror records
// appear a moment after consensus, so lookups retry with a short delay.
type ExpenseTracker struct {
	log      *zap.Logger
	reader   TransactionReader
	limiter  *Limiter
	attempts int
	delay    time.Duration
}

// NewExpenseTracker creates a tracker retrying record lookups up to
// attempts times, delay apart.
func NewExpenseTracker(log *zap.Logger, reader TransactionReader, limiter *Limiter, attempts int, delay time.Duration) *ExpenseTracker {
	if attempts < 1 {
		attempts = 1
	}
	return &ExpenseTracker{
		log:      log,
		reader:   reader,
		limiter:  limiter,
		attempts: attempts,
		delay:    delay,
	}
}

// TransactionExecuted books the actual fee of a submitted transaction.
func (t *ExpenseTracker) TransactionExecuted(ctx context.Context, transactionID, constructor, caller string) {
	id := mirror.FormatTransactionID(transactionID)

	var record *mirror.Transaction
	for attempt := 0; attempt < t.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.delay):
			}
		}

		result, err := t.reader.GetTransactionByID(ctx, id)
		if err != nil {
			t.log.Warn("unable to fetch transaction record",
				zap.String("transactionId", id),
				zap.Error(err))
			return
		}
		if result != nil {
			record = result
			break
		}
	}

	if record == nil {
		t.log.Warn("transaction record not found, expense not booked",
			zap.String("transactionId", id),
			zap.String("constructor", constructor))
		return
	}

	t.limiter.AddExpense(ctx, caller, record.ChargedTxFee)
	t.log.Debug("transaction expense booked",
		zap.String("transactionId", id),
		zap.String("constructor", constructor),
		zap.String("caller", caller),
		zap.Int64("chargedTinybars", record.ChargedTxFee))
}

// QueryExecuted books a query cost against the operator plan. Query
// costs carry no caller attribution.
func (t *ExpenseTracker) QueryExecuted(ctx context.Context, query string, costTinybars int64) {
	t.limiter.AddOperatorExpense(ctx, costTinybars)
	t.log.Debug("query cost booked",
		zap.String("query", query),
		zap.Int64("costTinybars", costTinybars))
}
