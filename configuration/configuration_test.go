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

package configuration

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setRegistryEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for _, entry := range Registry {
		t.Setenv(entry.Key, envs[entry.Key])
	}
}

func TestLoadConfiguration(t *testing.T) {
	tests := map[string]struct {
		envs map[string]string

		check func(*testing.T, *Configuration)
		err   error
	}{
		"no envs set": {
			envs: map[string]string{},
			err:  errors.New("HEDERA_NETWORK must be populated"),
		},
		"read only minimal": {
			envs: map[string]string{
				ReadOnlyEnv:      "true",
				HederaNetworkEnv: "testnet",
				MirrorNodeURLEnv: "https://testnet.mirrornode.hedera.com/",
			},
			check: func(t *testing.T, cfg *Configuration) {
				assert.Equal(t, ReadOnly, cfg.Mode)
				assert.Equal(t, "0x12a", cfg.ChainID)
				assert.Equal(t, "https://testnet.mirrornode.hedera.com", cfg.MirrorNodeURL)
				assert.Equal(t, 7546, cfg.Port)
				assert.Equal(t, 8546, cfg.WSPort)
				assert.Equal(t, time.Hour, cfg.CacheTTL)
				assert.Equal(t, 5*time.Minute, cfg.FilterTTL)
				assert.Equal(t, StoreInternal, cfg.IPRateLimitStore)
				assert.Equal(t, int64(11000000000), cfg.HbarLimitTotal)
			},
		},
		"read write requires operator": {
			envs: map[string]string{
				HederaNetworkEnv: "testnet",
				MirrorNodeURLEnv: "https://testnet.mirrornode.hedera.com",
			},
			err: errors.New("OPERATOR_ID_MAIN must be populated"),
		},
		"read write full": {
			envs: map[string]string{
				HederaNetworkEnv: "mainnet",
				MirrorNodeURLEnv: "https://mainnet.mirrornode.hedera.com",
				OperatorIDEnv:    "0.0.1001",
				OperatorKeyEnv:   "302e020100300506032b657004220420ff",
				ChainIDEnv:       "295",
				JumboTxEnabledEnv: "true",
			},
			check: func(t *testing.T, cfg *Configuration) {
				assert.Equal(t, ReadWrite, cfg.Mode)
				assert.Equal(t, "0x127", cfg.ChainID)
				assert.Equal(t, "0.0.1001", cfg.OperatorID)
				assert.True(t, cfg.JumboTxEnabled)
			},
		},
		"hex chain id lowercased": {
			envs: map[string]string{
				ReadOnlyEnv:      "true",
				HederaNetworkEnv: "testnet",
				MirrorNodeURLEnv: "https://testnet.mirrornode.hedera.com",
				ChainIDEnv:       "0x12A",
			},
			check: func(t *testing.T, cfg *Configuration) {
				assert.Equal(t, "0x12a", cfg.ChainID)
			},
		},
		"non numeric chain id": {
			envs: map[string]string{
				ReadOnlyEnv:      "true",
				HederaNetworkEnv: "testnet",
				MirrorNodeURLEnv: "https://testnet.mirrornode.hedera.com",
				ChainIDEnv:       "0xhedera",
			},
			check: func(t *testing.T, cfg *Configuration) {
				assert.Equal(t, "0xNaN", cfg.ChainID)
			},
		},
		"shared store requires redis": {
			envs: map[string]string{
				ReadOnlyEnv:         "true",
				HederaNetworkEnv:    "testnet",
				MirrorNodeURLEnv:    "https://testnet.mirrornode.hedera.com",
				IPRateLimitStoreEnv: StoreShared,
			},
			err: errors.New("REDIS_URL must be populated"),
		},
		"invalid store": {
			envs: map[string]string{
				ReadOnlyEnv:         "true",
				HederaNetworkEnv:    "testnet",
				MirrorNodeURLEnv:    "https://testnet.mirrornode.hedera.com",
				IPRateLimitStoreEnv: "memcache",
			},
			err: errors.New("memcache is not a valid rate limit store"),
		},
		"invalid boolean": {
			envs: map[string]string{
				ReadOnlyEnv:       "true",
				HederaNetworkEnv:  "testnet",
				MirrorNodeURLEnv:  "https://testnet.mirrornode.hedera.com",
				JumboTxEnabledEnv: "banana",
			},
			err: errors.New("unable to parse JUMBO_TX_ENABLED banana"),
		},
		"invalid port": {
			envs: map[string]string{
				ReadOnlyEnv:      "true",
				HederaNetworkEnv: "testnet",
				MirrorNodeURLEnv: "https://testnet.mirrornode.hedera.com",
				PortEnv:          "bad port",
			},
			err: errors.New("unable to parse PORT bad port"),
		},
		"invalid read only flag": {
			envs: map[string]string{
				ReadOnlyEnv:      "maybe",
				HederaNetworkEnv: "testnet",
				MirrorNodeURLEnv: "https://testnet.mirrornode.hedera.com",
			},
			err: errors.New("unable to parse READ_ONLY maybe"),
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			setRegistryEnvs(t, test.envs)

			cfg, err := LoadConfiguration()
			if test.err != nil {
				assert.Nil(t, cfg)
				assert.Contains(t, err.Error(), test.err.Error())
			} else {
				assert.NoError(t, err)
				test.check(t, cfg)
			}
		})
	}
}

func TestCanonicalChainID(t *testing.T) {
	tests := map[string]struct {
		raw  string
		want string
	}{
		"decimal":          {raw: "298", want: "0x12a"},
		"decimal mainnet":  {raw: "295", want: "0x127"},
		"hex passthrough":  {raw: "0x12a", want: "0x12a"},
		"hex upper":        {raw: "0x12A", want: "0x12a"},
		"hex upper prefix": {raw: "0X12A", want: "0x12a"},
		"whitespace":       {raw: " 298 ", want: "0x12a"},
		"non numeric":      {raw: "0xhedera", want: "0xNaN"},
		"empty":            {raw: "", want: "0xNaN"},
		"negative":         {raw: "-1", want: "0xNaN"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, CanonicalChainID(test.raw))
		})
	}
}

func TestMasked(t *testing.T) {
	setRegistryEnvs(t, map[string]string{
		HederaNetworkEnv: "testnet",
		MirrorNodeURLEnv: "https://testnet.mirrornode.hedera.com",
		OperatorIDEnv:    "0.0.1001",
		OperatorKeyEnv:   "supersecret",
		RedisURLEnv:      "redis://:hunter2@localhost:6379",
	})

	cfg, err := LoadConfiguration()
	assert.NoError(t, err)

	masked := cfg.Masked()
	assert.Equal(t, MaskedValue, masked[OperatorKeyEnv])
	assert.Equal(t, MaskedValue, masked[RedisURLEnv])
	assert.Equal(t, "0.0.1001", masked[OperatorIDEnv])

	assert.ElementsMatch(
		t,
		[]string{"supersecret", "redis://:hunter2@localhost:6379"},
		cfg.SensitiveValues(),
	)
}
