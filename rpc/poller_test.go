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
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/mirror"
	"github.com/hashgraph/hedera-rpc-relay/services"
)

// mockMirror implements services.MirrorClient with function fields; the
// poller tests only wire the endpoints they touch.
type mockMirror struct {
	getLatestBlock         func(ctx context.Context) (*mirror.Block, error)
	getBlockByHashOrNumber func(ctx context.Context, hashOrNumber string) (*mirror.Block, error)
	getContractResults     func(ctx context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error)
	getContractLogs        func(ctx context.Context, params mirror.LogParams) ([]mirror.ContractLog, error)
	getNetworkFees         func(ctx context.Context) (*mirror.NetworkFees, error)
}

func (m *mockMirror) GetAccount(context.Context, string, string) (*mirror.Account, error) {
	return nil, nil
}

func (m *mockMirror) GetContract(context.Context, string) (*mirror.Contract, error) {
	return nil, nil
}

func (m *mockMirror) GetContractResult(context.Context, string) (*mirror.ContractResult, error) {
	return nil, nil
}

func (m *mockMirror) GetContractResults(ctx context.Context, params mirror.ContractResultsParams) ([]mirror.ContractResult, error) {
	if m.getContractResults == nil {
		return nil, nil
	}
	return m.getContractResults(ctx, params)
}

func (m *mockMirror) GetContractLogs(ctx context.Context, params mirror.LogParams) ([]mirror.ContractLog, error) {
	if m.getContractLogs == nil {
		return nil, nil
	}
	return m.getContractLogs(ctx, params)
}

func (m *mockMirror) GetContractStateSlot(context.Context, string, string, string) (string, error) {
	return "", nil
}

func (m *mockMirror) GetBlocks(context.Context, mirror.BlocksParams) ([]mirror.Block, error) {
	return nil, nil
}

func (m *mockMirror) GetLatestBlock(ctx context.Context) (*mirror.Block, error) {
	return m.getLatestBlock(ctx)
}

func (m *mockMirror) GetBlockByHashOrNumber(ctx context.Context, hashOrNumber string) (*mirror.Block, error) {
	return m.getBlockByHashOrNumber(ctx, hashOrNumber)
}

func (m *mockMirror) GetNetworkFees(ctx context.Context) (*mirror.NetworkFees, error) {
	if m.getNetworkFees == nil {
		return &mirror.NetworkFees{Fees: []mirror.NetworkFee{
			{Gas: 71, TransactionType: "EthereumTransaction"},
		}}, nil
	}
	return m.getNetworkFees(ctx)
}

func (m *mockMirror) GetExchangeRate(context.Context) (*mirror.ExchangeRate, error) {
	return nil, nil
}

func (m *mockMirror) GetToken(context.Context, string) (*mirror.Token, error) {
	return nil, nil
}

func (m *mockMirror) GetTransactionByID(context.Context, string) (*mirror.Transaction, error) {
	return nil, nil
}

func (m *mockMirror) GetContractActions(context.Context, string) ([]mirror.ContractAction, error) {
	return nil, nil
}

func (m *mockMirror) GetContractOpcodes(context.Context, string, bool, bool, bool) (*mirror.OpcodeTrace, error) {
	return nil, nil
}

func (m *mockMirror) PostContractCall(context.Context, mirror.ContractCallRequest) (*mirror.ContractCallResponse, error) {
	return nil, nil
}

func testBlock(number int64) *mirror.Block {
	return &mirror.Block{
		Number: number,
		Hash:   fmt.Sprintf("0x%064x", number) + "ffffffffffffffffffffffffffffffff",
		Timestamp: mirror.TimestampRange{
			From: fmt.Sprintf("%d.000000000", 1700000000+number),
			To:   fmt.Sprintf("%d.999999999", 1700000000+number),
		},
	}
}

func newTestPoller(m *mockMirror) (*Poller, *Manager) {
	log := zap.NewNop()
	common := services.NewCommonService(log, m)
	block := services.NewBlockService(log, m, common, 15_000_000)
	manager := NewManager()
	return NewPoller(log, common, block, manager, 10*time.Millisecond), manager
}

func TestPollerFirstSightingAnchorsCursor(t *testing.T) {
	m := &mockMirror{
		getLatestBlock: func(context.Context) (*mirror.Block, error) {
			return testBlock(50), nil
		},
	}
	poller, manager := newTestPoller(m)

	notifier := &recordingNotifier{}
	manager.Subscribe(EventNewHeads, services.LogCriteria{}, notifier)
	tags := manager.Tags()
	require.Len(t, tags, 1)

	// First poll only anchors: no history is replayed.
	poller.poll(context.Background(), tags[0], 50)
	assert.Empty(t, notifier.results)
	assert.Equal(t, int64(50), poller.lastPolled[tags[0].Tag])
}

func TestPollerDeliversNewHeadsInOrder(t *testing.T) {
	m := &mockMirror{
		getLatestBlock: func(context.Context) (*mirror.Block, error) {
			return testBlock(52), nil
		},
		getBlockByHashOrNumber: func(_ context.Context, hashOrNumber string) (*mirror.Block, error) {
			number, err := strconv.ParseInt(hashOrNumber, 10, 64)
			if err != nil {
				return nil, err
			}
			return testBlock(number), nil
		},
	}
	poller, manager := newTestPoller(m)

	notifier := &recordingNotifier{}
	manager.Subscribe(EventNewHeads, services.LogCriteria{}, notifier)
	tag := manager.Tags()[0]

	poller.poll(context.Background(), tag, 50)
	poller.poll(context.Background(), tag, 52)

	require.Len(t, notifier.results, 2)
	first := notifier.results[0].(*services.Block)
	second := notifier.results[1].(*services.Block)
	assert.Equal(t, services.NumberToHex(51), first.Number)
	assert.Equal(t, services.NumberToHex(52), second.Number)
	assert.Equal(t, int64(52), poller.lastPolled[tag.Tag])
}

func TestPollerSharesOneFetchAcrossSubscribers(t *testing.T) {
	logFetches := 0
	m := &mockMirror{
		getLatestBlock: func(context.Context) (*mirror.Block, error) {
			return testBlock(60), nil
		},
		getBlockByHashOrNumber: func(_ context.Context, hashOrNumber string) (*mirror.Block, error) {
			number, _ := strconv.ParseInt(hashOrNumber, 10, 64)
			return testBlock(number), nil
		},
		getContractLogs: func(_ context.Context, params mirror.LogParams) ([]mirror.ContractLog, error) {
			logFetches++
			return []mirror.ContractLog{{
				Address:         "0x05fba803be258049a27b820088bab1cad2058871",
				BlockNumber:     60,
				BlockHash:       strings.Repeat("ab", 48),
				TransactionHash: strings.Repeat("cd", 32),
				Data:            "0x01",
			}}, nil
		},
	}
	poller, manager := newTestPoller(m)

	criteria := services.LogCriteria{Address: "0x05fba803be258049a27b820088bab1cad2058871"}
	a := &recordingNotifier{}
	b := &recordingNotifier{}
	manager.Subscribe(EventLogs, criteria, a)
	manager.Subscribe(EventLogs, criteria, b)
	tags := manager.Tags()
	require.Len(t, tags, 1)

	poller.poll(context.Background(), tags[0], 59)
	poller.poll(context.Background(), tags[0], 60)

	assert.Equal(t, 1, logFetches, "shared tag polls upstream once")
	require.Len(t, a.results, 1)
	require.Len(t, b.results, 1)
	assert.Equal(t, a.results[0], b.results[0])
}

func TestPollerHoldsCursorOnFetchFailure(t *testing.T) {
	failing := true
	m := &mockMirror{
		getLatestBlock: func(context.Context) (*mirror.Block, error) {
			return testBlock(61), nil
		},
		getBlockByHashOrNumber: func(_ context.Context, hashOrNumber string) (*mirror.Block, error) {
			if failing {
				return nil, &mirror.Error{StatusCode: 500, Status: "error"}
			}
			number, _ := strconv.ParseInt(hashOrNumber, 10, 64)
			return testBlock(number), nil
		},
	}
	poller, manager := newTestPoller(m)

	notifier := &recordingNotifier{}
	manager.Subscribe(EventNewHeads, services.LogCriteria{}, notifier)
	tag := manager.Tags()[0]

	poller.poll(context.Background(), tag, 60)
	poller.poll(context.Background(), tag, 61)
	assert.Empty(t, notifier.results)
	assert.Equal(t, int64(60), poller.lastPolled[tag.Tag], "failed poll does not advance")

	failing = false
	poller.poll(context.Background(), tag, 61)
	require.Len(t, notifier.results, 1)
	assert.Equal(t, int64(61), poller.lastPolled[tag.Tag])
}
