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

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RequestScoped marks argument types that never participate in cache
// keys. Request contexts implement it so that per-request values do not
// fragment the cache.
type RequestScoped interface {
	RequestScoped()
}

// Key builds the canonical cache key for a method call: the method name
// joined with the canonical form of each argument. Request-scoped
// arguments are skipped. Two calls with semantically equal arguments
// produce identical keys.
func Key(method string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		if skipArg(arg) {
			continue
		}
		parts = append(parts, Canonical(arg))
	}
	return strings.Join(parts, ":")
}

// Canonical renders one value deterministically. Strings pass through,
// scalars use their literal form, and composite values are JSON with
// stable key order (maps re-marshalled so insertion order is erased).
func Canonical(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return string(encoded)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return string(encoded)
	}
	return string(canonical)
}

func skipArg(arg any) bool {
	if arg == nil {
		return false
	}
	if _, ok := arg.(RequestScoped); ok {
		return true
	}
	if _, ok := arg.(context.Context); ok {
		return true
	}
	return false
}
