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

// Package metrics holds the relay's Prometheus collectors. Collectors
// register on the default registry and are exposed through /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Requests counts JSON-RPC method executions by outcome. Status is
	// "success" or the string form of the error code.
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_relay_method_requests_total",
		Help: "JSON-RPC method executions by method and status.",
	}, []string{"method", "status"})

	// RequestDuration observes method execution latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpc_relay_method_duration_seconds",
		Help:    "JSON-RPC method execution latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// CacheOps counts cache lookups by tier and result (hit or miss).
	CacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_relay_cache_operations_total",
		Help: "Cache lookups by tier and result.",
	}, []string{"tier", "result"})

	// RateLimited counts requests refused by the IP rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_relay_rate_limited_total",
		Help: "Requests refused by the IP rate limiter, by method.",
	}, []string{"method"})

	// UpstreamCalls counts calls to upstream systems. Target is
	// "mirror" or "consensus"; outcome is "success" or "error".
	UpstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_relay_upstream_calls_total",
		Help: "Upstream calls by target and outcome.",
	}, []string{"target", "outcome"})

	// UpstreamDuration observes upstream call latency by target.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpc_relay_upstream_duration_seconds",
		Help:    "Upstream call latency by target.",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})

	// HbarSpent accumulates tinybars charged against spending plans.
	HbarSpent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_relay_hbar_spent_tinybars_total",
		Help: "Tinybars charged against spending plans, by subscriber type.",
	}, []string{"subscriber_type"})

	// HbarRejections counts submissions refused by the HBAR limiter.
	HbarRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpc_relay_hbar_rejections_total",
		Help: "Submissions refused by the HBAR limiter, by subscriber type.",
	}, []string{"subscriber_type"})

	// Subscriptions tracks live WebSocket subscriptions by event.
	Subscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rpc_relay_subscriptions",
		Help: "Live WebSocket subscriptions by event.",
	}, []string{"event"})

	// Connections tracks open WebSocket connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rpc_relay_ws_connections",
		Help: "Open WebSocket connections.",
	})
)
