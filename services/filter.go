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
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/cache"
	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

const (
	filterTypeLog      = "log"
	filterTypeNewBlock = "newBlock"

	filterKeyPrefix = "filterId:"
)

// filterRecord is the stored state of one server-side filter. A zero
// LastQueried means the filter has never been polled.
type filterRecord struct {
	ID             string      `json:"id"`
	Type           string      `json:"type"`
	Criteria       LogCriteria `json:"criteria"`
	FromBlock      int64       `json:"fromBlock"`
	ToBlock        string      `json:"toBlock,omitempty"`
	LastQueried    int64       `json:"lastQueried"`
	CreatedAtBlock int64       `json:"createdAtBlock"`
}

// FilterService implements the server-side filter API. Filters live in
// the cache under a filter TTL; every read refreshes the TTL, and
// expiry is indistinguishable from uninstallation for the caller.
type FilterService struct {
	log     *zap.Logger
	mirror  MirrorClient
	common  *CommonService
	cache   *cache.Service
	enabled bool
	ttl     time.Duration
}

// NewFilterService creates the filter service. When enabled is false
// every operation answers UNSUPPORTED_METHOD.
func NewFilterService(log *zap.Logger, mirror MirrorClient, common *CommonService, cacheSvc *cache.Service, enabled bool, ttl time.Duration) *FilterService {
	return &FilterService{
		log:     log,
		mirror:  mirror,
		common:  common,
		cache:   cacheSvc,
		enabled: enabled,
		ttl:     ttl,
	}
}

// NewFilter installs a log filter and returns its id. A "latest"
// fromBlock resolves to a concrete number at creation so later polls
// do not drift with the head.
func (s *FilterService) NewFilter(ctx context.Context, criteria LogCriteria) (string, error) {
	if !s.enabled {
		return "", ErrUnsupportedMethod
	}

	head, err := s.common.LatestBlock(ctx)
	if err != nil {
		return "", err
	}
	from, err := s.common.ResolveBlockTag(ctx, criteria.FromBlock)
	if err != nil {
		return "", err
	}
	to := head.Number
	if criteria.ToBlock != "" && criteria.ToBlock != TagLatest {
		to, err = s.common.ResolveBlockTag(ctx, criteria.ToBlock)
		if err != nil {
			return "", err
		}
	}
	if from > to {
		return "", ErrInvalidBlockRange
	}

	record := &filterRecord{
		ID:             newFilterID(),
		Type:           filterTypeLog,
		Criteria:       criteria,
		FromBlock:      from,
		ToBlock:        criteria.ToBlock,
		CreatedAtBlock: head.Number,
	}
	s.store(ctx, record)
	return record.ID, nil
}

// NewBlockFilter installs a new-block filter anchored at the current
// head.
func (s *FilterService) NewBlockFilter(ctx context.Context) (string, error) {
	if !s.enabled {
		return "", ErrUnsupportedMethod
	}

	head, err := s.common.LatestBlock(ctx)
	if err != nil {
		return "", err
	}
	record := &filterRecord{
		ID:             newFilterID(),
		Type:           filterTypeNewBlock,
		CreatedAtBlock: head.Number,
	}
	s.store(ctx, record)
	return record.ID, nil
}

// NewPendingTransactionFilter is unsupported: Hedera has no mempool.
func (s *FilterService) NewPendingTransactionFilter() (string, error) {
	return "", ErrUnsupportedMethod
}

// UninstallFilter removes the filter, reporting whether it existed.
// Uninstalling twice is not an error; the second call answers false.
func (s *FilterService) UninstallFilter(ctx context.Context, id string) (bool, error) {
	if !s.enabled {
		return false, ErrUnsupportedMethod
	}

	var record filterRecord
	if !s.cache.Get(ctx, filterKeyPrefix+id, &record) {
		return false, nil
	}
	s.cache.Delete(ctx, filterKeyPrefix+id)
	return true, nil
}

// GetFilterLogs returns every log matching a log filter's full range.
func (s *FilterService) GetFilterLogs(ctx context.Context, id string) ([]Log, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Type != filterTypeLog {
		return nil, ErrFilterNotFound
	}
	s.store(ctx, record)

	criteria := record.Criteria
	criteria.FromBlock = NumberToHex(record.FromBlock)
	return s.common.GetLogs(ctx, criteria)
}

// GetFilterChanges returns what happened since the previous poll: new
// logs for log filters, new block hashes for block filters.
func (s *FilterService) GetFilterChanges(ctx context.Context, id string) (any, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	head, err := s.common.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}

	switch record.Type {
	case filterTypeNewBlock:
		return s.blockChanges(ctx, record, head.Number)
	default:
		return s.logChanges(ctx, record, head.Number)
	}
}

// logChanges polls [lastQueried||fromBlock, min(toBlock, head)]. The
// mirror node log query is inclusive on both ends, so the cursor
// advances one past the last block seen.
func (s *FilterService) logChanges(ctx context.Context, record *filterRecord, head int64) ([]Log, error) {
	from := record.FromBlock
	if record.LastQueried > 0 {
		from = record.LastQueried
	}
	to := head
	if record.ToBlock != "" && record.ToBlock != TagLatest {
		bound, err := s.common.ResolveBlockTag(ctx, record.ToBlock)
		if err != nil {
			return nil, err
		}
		if bound < to {
			to = bound
		}
	}

	if from > to {
		record.LastQueried = from
		s.store(ctx, record)
		return []Log{}, nil
	}

	criteria := record.Criteria
	criteria.FromBlock = NumberToHex(from)
	criteria.ToBlock = NumberToHex(to)
	logs, err := s.common.GetLogs(ctx, criteria)
	if err != nil {
		return nil, err
	}

	// Logs arrive in ascending block order; the cursor moves one past
	// the last block seen, or past the head when the poll was empty.
	record.LastQueried = head + 1
	if len(logs) > 0 {
		last, _ := HexToNumber(logs[len(logs)-1].BlockNumber)
		record.LastQueried = last + 1
	}
	s.store(ctx, record)
	return logs, nil
}

// blockChanges returns the hashes of blocks past the cursor in
// ascending order.
func (s *FilterService) blockChanges(ctx context.Context, record *filterRecord, head int64) ([]string, error) {
	since := record.CreatedAtBlock
	if record.LastQueried > 0 {
		since = record.LastQueried
	}

	blocks, err := s.mirror.GetBlocks(ctx, mirror.BlocksParams{
		NumberQuery: "gt:" + strconv.FormatInt(since, 10),
		Order:       "asc",
	})
	if err != nil {
		return nil, mapMirrorError(err)
	}

	hashes := make([]string, 0, len(blocks))
	record.LastQueried = head
	for _, block := range blocks {
		hashes = append(hashes, ToEthereumHash(block.Hash))
		record.LastQueried = block.Number
	}
	s.store(ctx, record)
	return hashes, nil
}

// load fetches a live filter or reports FILTER_NOT_FOUND; expired and
// uninstalled filters are indistinguishable.
func (s *FilterService) load(ctx context.Context, id string) (*filterRecord, error) {
	if !s.enabled {
		return nil, ErrUnsupportedMethod
	}

	var record filterRecord
	if !s.cache.Get(ctx, filterKeyPrefix+id, &record) {
		return nil, ErrFilterNotFound
	}
	return &record, nil
}

// store writes the filter back, refreshing its TTL.
func (s *FilterService) store(ctx context.Context, record *filterRecord) {
	s.cache.Set(ctx, filterKeyPrefix+record.ID, record, s.ttl)
}

// newFilterID draws a fresh random 32-byte hex id.
func newFilterID() string {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	return "0x" + hex.EncodeToString(buf[:])
}
