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
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Mode is the setting that determines if the relay accepts
// state-changing submissions or serves reads only.
type Mode string

const (
	// ReadWrite is when the relay signs and submits transactions
	// to consensus nodes in addition to serving reads.
	ReadWrite Mode = "READ_WRITE"

	// ReadOnly is when the relay serves Mirror Node reads only and
	// refuses every state-changing method.
	ReadOnly Mode = "READ_ONLY"

	// MiddlewareVersion is reported by web3_clientVersion.
	MiddlewareVersion = "0.1.0"

	// ClientVersionPrefix prefixes MiddlewareVersion in web3_clientVersion.
	ClientVersionPrefix = "relay"
)

// Configuration is the parsed, typed view of the registry, resolved once
// at startup. Durations are converted from millisecond entries.
type Configuration struct {
	Mode    Mode
	ChainID string

	HederaNetwork string
	OperatorID    string
	OperatorKey   string

	Port     int
	WSPort   int
	LogLevel string

	MirrorNodeURL        string
	MirrorNodeRetries    int
	MirrorNodeRetryDelay time.Duration
	MirrorNodeTimeout    time.Duration
	MirrorNodeLimitParam int

	FileAppendMaxChunks       int
	FileAppendChunkSize       int
	JumboTxEnabled            bool
	MaxGasAllowanceHbar       int64
	MaxTransactionFeeFactor   int64
	ConsensusMaxExecutionTime time.Duration

	FeeHistoryMaxResults int
	FeeHistoryFixed      bool
	GasPriceBuffer       int64
	TxDefaultGas         int64
	MaxGasPerSec         int64
	SendRawTxSizeLimit   int

	FilterAPIEnabled bool
	FilterTTL        time.Duration
	DebugAPIEnabled  bool

	WSPollingInterval  time.Duration
	WSNewHeadsEnabled  bool
	WSMaxSubscriptions int

	CacheTTL time.Duration

	IPRateLimitStore  string
	RateLimitDisabled bool
	RateLimitTier1    int
	RateLimitTier2    int
	RateLimitTier3    int
	RateLimitDuration time.Duration

	HbarLimitTotal    int64
	HbarLimitDuration time.Duration

	RedisURL string

	BatchRequestsEnabled bool
	BatchRequestsMaxSize int

	raw map[string]string
}

// LoadConfiguration attempts to create a new Configuration using the
// ENVs in the environment. Every entry is resolved through the registry;
// a missing required entry fails fast naming the key.
func LoadConfiguration() (*Configuration, error) {
	config := &Configuration{raw: map[string]string{}}

	readOnlyValue := os.Getenv(ReadOnlyEnv)
	if len(readOnlyValue) > 0 {
		readOnly, err := strconv.ParseBool(readOnlyValue)
		if err != nil {
			return nil, fmt.Errorf("%w: unable to parse %s %s", err, ReadOnlyEnv, readOnlyValue)
		}
		if readOnly {
			config.Mode = ReadOnly
		} else {
			config.Mode = ReadWrite
		}
	} else {
		config.Mode = ReadWrite
	}

	for _, entry := range Registry {
		value := os.Getenv(entry.Key)
		if len(value) == 0 {
			if entry.requiredIn(config.Mode) {
				return nil, fmt.Errorf("%s must be populated", entry.Key)
			}
			value = entry.Default
		}
		if err := validateEntry(entry, value); err != nil {
			return nil, err
		}
		config.raw[entry.Key] = value
	}

	if config.raw[IPRateLimitStoreEnv] == StoreShared && len(config.raw[RedisURLEnv]) == 0 {
		return nil, fmt.Errorf("%s must be populated when %s is %q", RedisURLEnv, IPRateLimitStoreEnv, StoreShared)
	}

	config.ChainID = CanonicalChainID(config.raw[ChainIDEnv])
	config.HederaNetwork = config.raw[HederaNetworkEnv]
	config.OperatorID = config.raw[OperatorIDEnv]
	config.OperatorKey = config.raw[OperatorKeyEnv]
	config.Port = config.number(PortEnv)
	config.WSPort = config.number(WSPortEnv)
	config.LogLevel = config.raw[LogLevelEnv]
	config.MirrorNodeURL = strings.TrimSuffix(config.raw[MirrorNodeURLEnv], "/")
	config.MirrorNodeRetries = config.number(MirrorNodeRetriesEnv)
	config.MirrorNodeRetryDelay = config.millis(MirrorNodeRetryDelayEnv)
	config.MirrorNodeTimeout = config.millis(MirrorNodeTimeoutEnv)
	config.MirrorNodeLimitParam = config.number(MirrorNodeLimitParamEnv)
	config.FileAppendMaxChunks = config.number(FileAppendMaxChunksEnv)
	config.FileAppendChunkSize = config.number(FileAppendChunkSizeEnv)
	config.JumboTxEnabled = config.boolean(JumboTxEnabledEnv)
	config.MaxGasAllowanceHbar = config.number64(MaxGasAllowanceHbarEnv)
	config.MaxTransactionFeeFactor = config.number64(MaxTransactionFeeEnv)
	config.ConsensusMaxExecutionTime = config.millis(ConsensusMaxExecutionTimeEnv)
	config.FeeHistoryMaxResults = config.number(FeeHistoryMaxResultsEnv)
	config.FeeHistoryFixed = config.boolean(FeeHistoryFixedEnv)
	config.GasPriceBuffer = config.number64(GasPriceBufferEnv)
	config.TxDefaultGas = config.number64(TxDefaultGasEnv)
	config.MaxGasPerSec = config.number64(MaxGasPerSecEnv)
	config.SendRawTxSizeLimit = config.number(SendRawTxSizeLimitEnv)
	config.FilterAPIEnabled = config.boolean(FilterAPIEnabledEnv)
	config.FilterTTL = config.millis(FilterTTLEnv)
	config.DebugAPIEnabled = config.boolean(DebugAPIEnabledEnv)
	config.WSPollingInterval = config.millis(WSPollingIntervalEnv)
	config.WSNewHeadsEnabled = config.boolean(WSNewHeadsEnabledEnv)
	config.WSMaxSubscriptions = config.number(WSMaxSubscriptionsEnv)
	config.CacheTTL = config.millis(CacheTTLEnv)
	config.IPRateLimitStore = config.raw[IPRateLimitStoreEnv]
	config.RateLimitDisabled = config.boolean(RateLimitDisabledEnv)
	config.RateLimitTier1 = config.number(RateLimitTier1Env)
	config.RateLimitTier2 = config.number(RateLimitTier2Env)
	config.RateLimitTier3 = config.number(RateLimitTier3Env)
	config.RateLimitDuration = config.millis(RateLimitDurationEnv)
	config.HbarLimitTotal = config.number64(HbarLimitTotalEnv)
	config.HbarLimitDuration = config.millis(HbarLimitDurationEnv)
	config.RedisURL = config.raw[RedisURLEnv]
	config.BatchRequestsEnabled = config.boolean(BatchRequestsEnabledEnv)
	config.BatchRequestsMaxSize = config.number(BatchRequestsMaxSizeEnv)

	if config.Port <= 0 {
		return nil, fmt.Errorf("unable to use port %d", config.Port)
	}
	if config.WSPort <= 0 {
		return nil, fmt.Errorf("unable to use websocket port %d", config.WSPort)
	}
	if config.IPRateLimitStore != StoreInternal && config.IPRateLimitStore != StoreShared {
		return nil, fmt.Errorf("%s is not a valid rate limit store", config.IPRateLimitStore)
	}

	return config, nil
}

// CanonicalChainID converts a configured chain id into the canonical
// "0x"-prefixed lowercase hexadecimal form. Decimal input is converted,
// hexadecimal input is lowercased, and anything non-numeric becomes the
// literal "0xNaN".
func CanonicalChainID(raw string) string {
	value := strings.TrimSpace(raw)
	var parsed uint64
	var err error
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		parsed, err = strconv.ParseUint(value[2:], 16, 64)
	} else {
		parsed, err = strconv.ParseUint(value, 10, 64)
	}
	if err != nil {
		return "0xNaN"
	}
	return "0x" + strconv.FormatUint(parsed, 16)
}

// Masked returns the resolved configuration with sensitive entries
// replaced by MaskedValue, suitable for startup diagnostics.
func (c *Configuration) Masked() map[string]string {
	masked := make(map[string]string, len(c.raw))
	for _, entry := range Registry {
		value := c.raw[entry.Key]
		if entry.Sensitive && len(value) > 0 {
			value = MaskedValue
		}
		masked[entry.Key] = value
	}
	return masked
}

// SensitiveValues returns the non-empty raw values of sensitive entries.
// Log and cache layers use it to redact secrets from emitted strings.
func (c *Configuration) SensitiveValues() []string {
	var values []string
	for _, entry := range Registry {
		if !entry.Sensitive {
			continue
		}
		if value := c.raw[entry.Key]; len(value) > 0 {
			values = append(values, value)
		}
	}
	return values
}

func validateEntry(entry Entry, value string) error {
	if len(value) == 0 {
		return nil
	}
	switch entry.Type {
	case TypeNumber:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("%w: unable to parse %s %s", err, entry.Key, value)
		}
	case TypeBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%w: unable to parse %s %s", err, entry.Key, value)
		}
	}
	return nil
}

// Raw values are registry-validated before these accessors run, so
// parse errors cannot occur here.
func (c *Configuration) number(key string) int {
	v, _ := strconv.Atoi(c.raw[key])
	return v
}

func (c *Configuration) number64(key string) int64 {
	v, _ := strconv.ParseInt(c.raw[key], 10, 64)
	return v
}

func (c *Configuration) boolean(key string) bool {
	v, _ := strconv.ParseBool(c.raw[key])
	return v
}

func (c *Configuration) millis(key string) time.Duration {
	return time.Duration(c.number64(key)) * time.Millisecond
}
