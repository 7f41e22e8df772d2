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
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashgraph/hedera-rpc-relay/services"
)

// ParamSpec declares one positional parameter of a method. Optional
// parameters may be absent; when they are, Default takes their place.
type ParamSpec struct {
	Name     string
	Type     string
	Optional bool
	Default  any
}

var (
	addressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	hashPattern     = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	hexPattern      = regexp.MustCompile(`^0x[0-9a-fA-F]*$`)
	hex32Pattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)
	quantityPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,16}$`)
)

var blockTags = map[string]bool{
	services.TagLatest:    true,
	services.TagPending:   true,
	services.TagEarliest:  true,
	services.TagSafe:      true,
	services.TagFinalized: true,
}

// validators keys the type catalog. A compound type "a|b" accepts a
// value either member accepts.
var validators = map[string]func(value any) error{
	"address": func(value any) error {
		return matchString(value, addressPattern, "a 20-byte hex address")
	},
	"blockHash": func(value any) error {
		return matchString(value, hashPattern, "a 32-byte hex hash")
	},
	"transactionHash": func(value any) error {
		return matchString(value, hashPattern, "a 32-byte hex hash")
	},
	"blockNumber": func(value any) error {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected a block number or tag")
		}
		if blockTags[s] || quantityPattern.MatchString(s) {
			return nil
		}
		return fmt.Errorf("expected a block number or tag")
	},
	"hex": func(value any) error {
		return matchString(value, hexPattern, "hex-encoded data")
	},
	"boolean": func(value any) error {
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected a boolean")
		}
		return nil
	},
	"array": func(value any) error {
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected an array")
		}
		return nil
	},
	"hex64": func(value any) error {
		return matchString(value, hex32Pattern, "a hex value of at most 32 bytes")
	},
	"transactionObject": objectValidator,
	"filterObject":      objectValidator,
	"tracerConfig":      objectValidator,
	"tracerType": func(value any) error {
		s, ok := value.(string)
		if !ok || (s != services.TracerCall && s != services.TracerOpcode) {
			return fmt.Errorf("expected %q or %q", services.TracerCall, services.TracerOpcode)
		}
		return nil
	},
}

func objectValidator(value any) error {
	if _, ok := value.(map[string]any); !ok {
		return fmt.Errorf("expected an object")
	}
	return nil
}

func matchString(value any, pattern *regexp.Regexp, want string) error {
	s, ok := value.(string)
	if !ok || !pattern.MatchString(s) {
		return fmt.Errorf("expected %s", want)
	}
	return nil
}

// validateType runs a catalog validator, resolving compound "a|b"
// types as any-match.
func validateType(typeName string, value any) error {
	parts := strings.Split(typeName, "|")
	var err error
	for _, part := range parts {
		validator, ok := validators[part]
		if !ok {
			return fmt.Errorf("unknown parameter type %q", part)
		}
		if err = validator(value); err == nil {
			return nil
		}
	}
	if len(parts) > 1 {
		return fmt.Errorf("expected one of %s", typeName)
	}
	return err
}

// validateParams checks params against the method's specs and returns
// the normalized slice: defaults filled in for absent optionals, fixed
// length, every value type-checked.
func validateParams(specs []ParamSpec, params []any) ([]any, error) {
	if len(params) > len(specs) {
		return nil, services.NewInvalidParameter(len(specs), "unexpected parameter")
	}

	normalized := make([]any, len(specs))
	for i, spec := range specs {
		if i >= len(params) || params[i] == nil {
			if !spec.Optional {
				return nil, services.NewMissingRequiredParameter(i)
			}
			normalized[i] = spec.Default
			continue
		}
		if err := validateType(spec.Type, params[i]); err != nil {
			return nil, services.NewInvalidParameter(i, fmt.Sprintf("%s: %s", spec.Name, err.Error()))
		}
		normalized[i] = params[i]
	}
	return normalized, nil
}

// paramString reads a normalized string parameter; absent optionals
// with no default read as "".
func paramString(params []any, i int) string {
	if i >= len(params) || params[i] == nil {
		return ""
	}
	s, _ := params[i].(string)
	return s
}

// paramBool reads a normalized boolean parameter.
func paramBool(params []any, i int) bool {
	if i >= len(params) || params[i] == nil {
		return false
	}
	b, _ := params[i].(bool)
	return b
}

// decodeParam re-marshals an object parameter into a typed struct.
func decodeParam[T any](params []any, i int, dest *T) error {
	if i >= len(params) || params[i] == nil {
		return nil
	}
	raw, err := json.Marshal(params[i])
	if err != nil {
		return services.NewInvalidParameter(i, "unable to encode parameter")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return services.NewInvalidParameter(i, "unable to decode parameter object")
	}
	return nil
}
