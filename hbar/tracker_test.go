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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

type stubReader struct {
	calls   int
	results []*mirror.Transaction
	err     error
}

func (r *stubReader) GetTransactionByID(context.Context, string) (*mirror.Transaction, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if r.calls > len(r.results) {
		return nil, nil
	}
	return r.results[r.calls-1], nil
}

func TestTrackerBooksActualFee(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(10000)
	caller := "0x00000000000000000000000000000000000000aa"

	// The record is available only on the second lookup.
	reader := &stubReader{results: []*mirror.Transaction{
		nil,
		{TransactionID: "0.0.1001-1718000000-000000001", ChargedTxFee: 75},
	}}
	tracker := NewExpenseTracker(zap.NewNop(), reader, l, 3, time.Millisecond)

	tracker.TransactionExecuted(ctx, "0.0.1001@1718000000.000000001", "EthereumTransaction", caller)

	assert.Equal(t, 2, reader.calls)
	assert.Equal(t, int64(75), l.Spent(ctx, OperatorPlanID))

	plan, err := l.resolvePlan(ctx, caller)
	assert.NoError(t, err)
	assert.Equal(t, int64(75), l.Spent(ctx, plan.ID))
}

func TestTrackerGivesUpAfterAttempts(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(10000)

	reader := &stubReader{}
	tracker := NewExpenseTracker(zap.NewNop(), reader, l, 3, time.Millisecond)

	tracker.TransactionExecuted(ctx, "0.0.1001@1718000000.000000001", "EthereumTransaction", "0xaa")

	assert.Equal(t, 3, reader.calls)
	assert.Equal(t, int64(0), l.Spent(ctx, OperatorPlanID))
}

func TestTrackerStopsOnReaderError(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(10000)

	reader := &stubReader{err: errors.New("mirror down")}
	tracker := NewExpenseTracker(zap.NewNop(), reader, l, 3, time.Millisecond)

	tracker.TransactionExecuted(ctx, "0.0.1001@1718000000.000000001", "EthereumTransaction", "0xaa")

	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, int64(0), l.Spent(ctx, OperatorPlanID))
}

func TestTrackerQueryCost(t *testing.T) {
	ctx := context.Background()
	l := newTestLimiter(10000)
	tracker := NewExpenseTracker(zap.NewNop(), &stubReader{}, l, 1, 0)

	tracker.QueryExecuted(ctx, "FileInfoQuery", 22)

	assert.Equal(t, int64(22), l.Spent(ctx, OperatorPlanID))
}
