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

// Package hbar budgets the relay's transaction spend. Every caller
// address maps to a spending plan with a windowed tinybar budget; the
// relay operator carries a global plan covering all spend. Submissions
// are refused pre-emptively on estimated fees and charged post-hoc from
// transaction records.
package hbar

import (
	"encoding/json"
	"strings"
)

// SubscriberType orders spending plans by privilege.
type SubscriberType string

const (
	// Basic is the default plan created lazily for unknown callers.
	Basic SubscriberType = "BASIC"

	// Extended is an upgraded caller plan.
	Extended SubscriberType = "EXTENDED"

	// Privileged is the largest caller plan.
	Privileged SubscriberType = "PRIVILEGED"

	// Operator is the relay operator's global plan. Its budget is the
	// configured total; every caller's spend counts against it too.
	Operator SubscriberType = "OPERATOR"
)

// OperatorPlanID keys the operator's global plan. It is fixed so that
// all replicas share one budget.
const OperatorPlanID = "operator"

// SpendingPlan is the durable description of one budget. The live spend
// and window position are kept in a separate expiring counter so that
// increments stay atomic across replicas.
type SpendingPlan struct {
	ID             string         `json:"id"`
	SubscriberType SubscriberType `json:"subscriberType"`
	LimitTinybars  int64          `json:"limitTinybars"`
	WindowMillis   int64          `json:"windowMillis"`
	CreatedAt      int64          `json:"createdAt"`
}

func planKey(id string) string {
	return "hbarlimit:plan:" + id
}

func addressKey(address string) string {
	return "hbarlimit:addr:" + strings.ToLower(address)
}

func spentKey(id string) string {
	return "hbarlimit:spent:" + id
}

func marshalPlan(plan *SpendingPlan) (string, error) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unmarshalPlan(raw string, plan *SpendingPlan) error {
	return json.Unmarshal([]byte(raw), plan)
}
