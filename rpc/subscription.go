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
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/hashgraph/hedera-rpc-relay/cache"
	"github.com/hashgraph/hedera-rpc-relay/metrics"
	"github.com/hashgraph/hedera-rpc-relay/services"
)

// Subscription event names.
const (
	EventNewHeads = "newHeads"
	EventLogs     = "logs"
)

// Notifier receives subscription notifications; a WebSocket connection
// implements it.
type Notifier interface {
	Notify(subscriptionID string, result any)
}

// subscription is one live eth_subscribe registration.
type subscription struct {
	id       string
	event    string
	criteria services.LogCriteria
	tag      string
	notifier Notifier
}

// TagInfo describes one distinct poll target: subscriptions sharing an
// event and criteria share a tag and therefore a single upstream
// fetch.
type TagInfo struct {
	Tag      string
	Event    string
	Criteria services.LogCriteria
}

// Manager tracks live subscriptions and fans poll results out to them.
type Manager struct {
	mu    sync.Mutex
	byID  map[string]*subscription
	byTag map[string]map[string]*subscription

	// wake is signalled when the tag set goes from empty to non-empty
	// so the poller can restart its ticker.
	wake chan struct{}
}

// NewManager creates an empty subscription manager.
func NewManager() *Manager {
	return &Manager{
		byID:  map[string]*subscription{},
		byTag: map[string]map[string]*subscription{},
		wake:  make(chan struct{}, 1),
	}
}

// Subscribe registers a subscription and returns its id.
func (m *Manager) Subscribe(event string, criteria services.LogCriteria, notifier Notifier) string {
	sub := &subscription{
		id:       newSubscriptionID(),
		event:    event,
		criteria: criteria,
		tag:      cache.Canonical([]any{event, criteria}),
		notifier: notifier,
	}

	m.mu.Lock()
	wasEmpty := len(m.byTag) == 0
	m.byID[sub.id] = sub
	peers, ok := m.byTag[sub.tag]
	if !ok {
		peers = map[string]*subscription{}
		m.byTag[sub.tag] = peers
	}
	peers[sub.id] = sub
	m.mu.Unlock()

	metrics.Subscriptions.WithLabelValues(event).Inc()
	if wasEmpty {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
	return sub.id
}

// Unsubscribe removes a subscription. Only its owner may remove it;
// unknown and foreign ids answer false.
func (m *Manager) Unsubscribe(id string, notifier Notifier) bool {
	m.mu.Lock()
	sub, ok := m.byID[id]
	if !ok || sub.notifier != notifier {
		m.mu.Unlock()
		return false
	}
	m.remove(sub)
	m.mu.Unlock()

	metrics.Subscriptions.WithLabelValues(sub.event).Dec()
	return true
}

// UnsubscribeAll removes every subscription owned by the notifier,
// typically on connection close.
func (m *Manager) UnsubscribeAll(notifier Notifier) {
	m.mu.Lock()
	var removed []*subscription
	for _, sub := range m.byID {
		if sub.notifier == notifier {
			m.remove(sub)
			removed = append(removed, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range removed {
		metrics.Subscriptions.WithLabelValues(sub.event).Dec()
	}
}

// Count reports the subscriptions owned by the notifier.
func (m *Manager) Count(notifier Notifier) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, sub := range m.byID {
		if sub.notifier == notifier {
			count++
		}
	}
	return count
}

// remove must run under mu.
func (m *Manager) remove(sub *subscription) {
	delete(m.byID, sub.id)
	peers := m.byTag[sub.tag]
	delete(peers, sub.id)
	if len(peers) == 0 {
		delete(m.byTag, sub.tag)
	}
}

// Tags snapshots the distinct poll targets.
func (m *Manager) Tags() []TagInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]TagInfo, 0, len(m.byTag))
	for tag, peers := range m.byTag {
		for _, sub := range peers {
			tags = append(tags, TagInfo{Tag: tag, Event: sub.event, Criteria: sub.criteria})
			break
		}
	}
	return tags
}

// Fanout delivers results to every subscriber of a tag, one
// notification per element, elements in order.
func (m *Manager) Fanout(tag string, results []any) {
	m.mu.Lock()
	subs := make([]*subscription, 0, len(m.byTag[tag]))
	for _, sub := range m.byTag[tag] {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, result := range results {
		for _, sub := range subs {
			sub.notifier.Notify(sub.id, result)
		}
	}
}

// newSubscriptionID draws a fresh random 16-byte hex id.
func newSubscriptionID() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return "0x" + hex.EncodeToString(buf[:])
}
