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
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/hedera-rpc-relay/services"
)

const maxConcurrentTagFetches = 8

// Poller drives subscription notifications: one ticker, one head fetch
// per tick, one upstream fetch per distinct tag, fan-out per element.
// The ticker idles while no subscriptions exist.
type Poller struct {
	log      *zap.Logger
	common   *services.CommonService
	block    *services.BlockService
	manager  *Manager
	interval time.Duration

	mu         sync.Mutex
	lastPolled map[string]int64
}

// NewPoller creates a poller over the manager's tag set.
func NewPoller(log *zap.Logger, common *services.CommonService, block *services.BlockService, manager *Manager, interval time.Duration) *Poller {
	return &Poller{
		log:        log,
		common:     common,
		block:      block,
		manager:    manager,
		interval:   interval,
		lastPolled: map[string]int64{},
	}
}

// Run blocks polling until the context ends.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		tags := p.manager.Tags()
		if len(tags) == 0 {
			// Idle: wait for the first subscription instead of ticking.
			select {
			case <-ctx.Done():
				return
			case <-p.manager.wake:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		p.tick(ctx, tags)
	}
}

// tick fetches the head once and polls every tag against it.
func (p *Poller) tick(ctx context.Context, tags []TagInfo) {
	head, err := p.common.LatestBlock(ctx)
	if err != nil || head == nil {
		p.log.Warn("subscription poll skipped, no head block", zap.Error(err))
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentTagFetches)
	for _, tag := range tags {
		group.Go(func() error {
			p.poll(groupCtx, tag, head.Number)
			return nil
		})
	}
	_ = group.Wait()
}

// poll advances one tag to the head. The first sighting of a tag only
// anchors its cursor: subscribers receive what happens after they
// subscribe, not history.
func (p *Poller) poll(ctx context.Context, tag TagInfo, head int64) {
	p.mu.Lock()
	last, seen := p.lastPolled[tag.Tag]
	if !seen {
		p.lastPolled[tag.Tag] = head
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if head <= last {
		return
	}

	var results []any
	var err error
	switch tag.Event {
	case EventNewHeads:
		results, err = p.newHeads(ctx, last, head)
	case EventLogs:
		results, err = p.newLogs(ctx, tag.Criteria, last, head)
	default:
		return
	}
	if err != nil {
		p.log.Warn("subscription poll failed",
			zap.String("event", tag.Event),
			zap.Error(err))
		return
	}

	p.mu.Lock()
	p.lastPolled[tag.Tag] = head
	p.mu.Unlock()

	if len(results) > 0 {
		p.manager.Fanout(tag.Tag, results)
	}
}

// newHeads fetches the blocks in (last, head], in order.
func (p *Poller) newHeads(ctx context.Context, last, head int64) ([]any, error) {
	results := make([]any, 0, head-last)
	for number := last + 1; number <= head; number++ {
		block, err := p.block.GetBlockByNumber(ctx, services.NumberToHex(number), false)
		if err != nil {
			return nil, err
		}
		if block != nil {
			results = append(results, block)
		}
	}
	return results, nil
}

// newLogs fetches the logs of (last, head] matching the criteria.
func (p *Poller) newLogs(ctx context.Context, criteria services.LogCriteria, last, head int64) ([]any, error) {
	criteria.FromBlock = services.NumberToHex(last + 1)
	criteria.ToBlock = services.NumberToHex(head)
	logs, err := p.common.GetLogs(ctx, criteria)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(logs))
	for i := range logs {
		results[i] = logs[i]
	}
	return results, nil
}
