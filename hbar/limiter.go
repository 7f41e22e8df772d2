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
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/metrics"
	"github.com/hashgraph/hedera-rpc-relay/store"
)

// Limiter resolves spending plans and enforces their budgets. Plans and
// spend counters live in the shared store, so replicas enforce one
// consistent budget. A nil Limiter or a non-positive total disables
// limiting.
type Limiter struct {
	log    *zap.Logger
	store  store.Store
	total  int64
	window time.Duration
	now    func() time.Time
}

// NewLimiter creates a limiter with the given total operator budget per
// window, in tinybars.
func NewLimiter(log *zap.Logger, st store.Store, totalTinybars int64, window time.Duration) *Limiter {
	return &Limiter{
		log:    log,
		store:  st,
		total:  totalTinybars,
		window: window,
		now:    time.Now,
	}
}

// ShouldLimit reports whether the caller's next submission must be
// refused. With a positive estimate the check is pre-emptive: the call
// is refused when spent+estimate would exceed the plan. Store failures
// never block traffic.
func (l *Limiter) ShouldLimit(ctx context.Context, method, constructor, caller string, estimatedTinybars int64) bool {
	if l == nil || l.total <= 0 {
		return false
	}

	plan, err := l.resolvePlan(ctx, caller)
	if err != nil {
		l.log.Warn("unable to resolve spending plan",
			zap.String("caller", caller),
			zap.Error(err))
		return false
	}

	if l.exceeded(ctx, plan, estimatedTinybars) {
		l.refuse(plan, method, constructor, caller)
		return true
	}
	if plan.SubscriberType != Operator && l.exceeded(ctx, l.operatorPlan(), estimatedTinybars) {
		l.refuse(l.operatorPlan(), method, constructor, caller)
		return true
	}
	return false
}

// AddExpense charges the caller's plan and the operator plan. The spend
// counter is created with the window as its TTL, so budgets roll
// forward lazily when the window lapses.
func (l *Limiter) AddExpense(ctx context.Context, caller string, costTinybars int64) {
	if l == nil || l.total <= 0 || costTinybars <= 0 {
		return
	}

	plan, err := l.resolvePlan(ctx, caller)
	if err != nil {
		l.log.Warn("unable to resolve spending plan for expense",
			zap.String("caller", caller),
			zap.Error(err))
		return
	}

	l.charge(ctx, plan, costTinybars)
	if plan.SubscriberType != Operator {
		l.charge(ctx, l.operatorPlan(), costTinybars)
	}
}

// AddOperatorExpense charges the operator plan only. Query costs have
// no caller attribution.
func (l *Limiter) AddOperatorExpense(ctx context.Context, costTinybars int64) {
	if l == nil || l.total <= 0 || costTinybars <= 0 {
		return
	}
	l.charge(ctx, l.operatorPlan(), costTinybars)
}

// AssignPlan creates a plan of the given subscriber type and associates
// the address with it, replacing any previous association.
func (l *Limiter) AssignPlan(ctx context.Context, address string, subscriberType SubscriberType) (*SpendingPlan, error) {
	plan, err := l.createPlan(ctx, subscriberType)
	if err != nil {
		return nil, err
	}
	if err := l.store.Set(ctx, addressKey(address), plan.ID, 0); err != nil {
		return nil, err
	}
	return plan, nil
}

// Spent returns the tinybars charged against the plan in the current
// window.
func (l *Limiter) Spent(ctx context.Context, planID string) int64 {
	raw, _, err := l.store.Get(ctx, spentKey(planID))
	if err != nil {
		if err != store.ErrNotFound {
			l.log.Warn("unable to read plan spend", zap.String("plan", planID), zap.Error(err))
		}
		return 0
	}
	spent, _ := strconv.ParseInt(raw, 10, 64)
	return spent
}

func (l *Limiter) exceeded(ctx context.Context, plan *SpendingPlan, estimated int64) bool {
	spent := l.Spent(ctx, plan.ID)
	if estimated > 0 {
		return spent+estimated > plan.LimitTinybars
	}
	return spent >= plan.LimitTinybars
}

func (l *Limiter) charge(ctx context.Context, plan *SpendingPlan, cost int64) {
	if _, err := l.store.IncrBy(ctx, spentKey(plan.ID), cost, l.window); err != nil {
		l.log.Warn("unable to charge spending plan",
			zap.String("plan", plan.ID),
			zap.Int64("cost", cost),
			zap.Error(err))
		return
	}
	metrics.HbarSpent.WithLabelValues(string(plan.SubscriberType)).Add(float64(cost))
	l.log.Debug("hbar expense recorded",
		zap.String("plan", plan.ID),
		zap.String("subscriberType", string(plan.SubscriberType)),
		zap.Int64("costTinybars", cost))
}

func (l *Limiter) refuse(plan *SpendingPlan, method, constructor, caller string) {
	metrics.HbarRejections.WithLabelValues(string(plan.SubscriberType)).Inc()
	l.log.Warn("hbar budget exhausted",
		zap.String("plan", plan.ID),
		zap.String("subscriberType", string(plan.SubscriberType)),
		zap.String("method", method),
		zap.String("constructor", constructor),
		zap.String("caller", caller))
}

// resolvePlan finds the caller's plan, creating a BASIC one on first
// contact. An empty caller resolves to the operator plan.
func (l *Limiter) resolvePlan(ctx context.Context, caller string) (*SpendingPlan, error) {
	if caller == "" {
		return l.operatorPlan(), nil
	}

	planID, _, err := l.store.Get(ctx, addressKey(caller))
	if err == store.ErrNotFound {
		return l.associateNewPlan(ctx, caller)
	}
	if err != nil {
		return nil, err
	}

	raw, _, err := l.store.Get(ctx, planKey(planID))
	if err == store.ErrNotFound {
		// Stale association; rebuild the plan.
		return l.associateNewPlan(ctx, caller)
	}
	if err != nil {
		return nil, err
	}

	var plan SpendingPlan
	if err := unmarshalPlan(raw, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (l *Limiter) associateNewPlan(ctx context.Context, caller string) (*SpendingPlan, error) {
	plan, err := l.createPlan(ctx, Basic)
	if err != nil {
		return nil, err
	}
	if err := l.store.Set(ctx, addressKey(caller), plan.ID, 0); err != nil {
		return nil, err
	}
	return plan, nil
}

func (l *Limiter) createPlan(ctx context.Context, subscriberType SubscriberType) (*SpendingPlan, error) {
	plan := &SpendingPlan{
		ID:             uuid.NewString(),
		SubscriberType: subscriberType,
		LimitTinybars:  l.limitFor(subscriberType),
		WindowMillis:   l.window.Milliseconds(),
		CreatedAt:      l.now().UnixMilli(),
	}
	raw, err := marshalPlan(plan)
	if err != nil {
		return nil, err
	}
	if err := l.store.Set(ctx, planKey(plan.ID), raw, 0); err != nil {
		return nil, err
	}
	return plan, nil
}

func (l *Limiter) operatorPlan() *SpendingPlan {
	return &SpendingPlan{
		ID:             OperatorPlanID,
		SubscriberType: Operator,
		LimitTinybars:  l.total,
		WindowMillis:   l.window.Milliseconds(),
	}
}

// Caller plan budgets are fixed fractions of the operator total:
// privileged half, extended a quarter, basic a tenth.
func (l *Limiter) limitFor(subscriberType SubscriberType) int64 {
	switch subscriberType {
	case Operator:
		return l.total
	case Privileged:
		return l.total / 2
	case Extended:
		return l.total / 4
	default:
		return l.total / 10
	}
}
