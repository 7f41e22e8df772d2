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
	"strings"

	"github.com/hashgraph/hedera-rpc-relay/configuration"
)

// Masker redacts sensitive configuration values from strings before
// they are logged. Keys embedding an operator key or store URL never
// reach the log stream in clear text.
type Masker struct {
	secrets []string
}

// NewMasker builds a masker over the given secret values. Empty values
// are ignored.
func NewMasker(secrets []string) *Masker {
	m := &Masker{}
	for _, s := range secrets {
		if len(s) > 0 {
			m.secrets = append(m.secrets, s)
		}
	}
	return m
}

// Mask replaces every occurrence of a secret value in s.
func (m *Masker) Mask(s string) string {
	if m == nil {
		return s
	}
	for _, secret := range m.secrets {
		s = strings.ReplaceAll(s, secret, configuration.MaskedValue)
	}
	return s
}
