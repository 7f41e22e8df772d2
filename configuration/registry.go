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

// EntryType describes how a registry entry's raw value is parsed.
type EntryType int

const (
	// TypeString is an uninterpreted string value.
	TypeString EntryType = iota

	// TypeNumber is a base-10 integer value.
	TypeNumber

	// TypeBoolean is a strconv.ParseBool value.
	TypeBoolean

	// TypeArray is a comma-separated list of strings.
	TypeArray
)

// Entry is a single enumerated configuration key. The registry is the
// complete configuration surface of the relay: values not listed here are
// never read from the environment.
type Entry struct {
	// Key is the environment variable name.
	Key string

	// Type determines parsing and validation of the raw value.
	Type EntryType

	// Default is the raw value used when the variable is unset. An empty
	// default on a non-required entry resolves to the zero value.
	Default string

	// RequiredIn lists the modes in which the entry must be populated.
	// Loading fails fast, naming the key, when a required entry is absent.
	RequiredIn []Mode

	// Sensitive entries are masked on any diagnostic export and redacted
	// from cache key logging.
	Sensitive bool
}

// Configuration surface keys.
const (
	ChainIDEnv                   = "CHAIN_ID"
	HederaNetworkEnv             = "HEDERA_NETWORK"
	OperatorIDEnv                = "OPERATOR_ID_MAIN"
	OperatorKeyEnv               = "OPERATOR_KEY_MAIN"
	ReadOnlyEnv                  = "READ_ONLY"
	PortEnv                      = "PORT"
	WSPortEnv                    = "WS_PORT"
	LogLevelEnv                  = "LOG_LEVEL"
	MirrorNodeURLEnv             = "MIRROR_NODE_URL"
	MirrorNodeRetriesEnv         = "MIRROR_NODE_RETRIES"
	MirrorNodeRetryDelayEnv      = "MIRROR_NODE_RETRY_DELAY"
	MirrorNodeTimeoutEnv         = "MIRROR_NODE_TIMEOUT"
	MirrorNodeLimitParamEnv      = "MIRROR_NODE_LIMIT_PARAM"
	FileAppendMaxChunksEnv       = "FILE_APPEND_MAX_CHUNKS"
	FileAppendChunkSizeEnv       = "FILE_APPEND_CHUNK_SIZE"
	JumboTxEnabledEnv            = "JUMBO_TX_ENABLED"
	MaxGasAllowanceHbarEnv       = "MAX_GAS_ALLOWANCE_HBAR"
	MaxTransactionFeeEnv         = "MAX_TRANSACTION_FEE_THRESHOLD"
	ConsensusMaxExecutionTimeEnv = "CONSENSUS_MAX_EXECUTION_TIME"
	FeeHistoryMaxResultsEnv      = "FEE_HISTORY_MAX_RESULTS"
	FeeHistoryFixedEnv           = "ETH_FEE_HISTORY_FIXED"
	GasPriceBufferEnv            = "GAS_PRICE_PERCENTAGE_BUFFER"
	TxDefaultGasEnv              = "TX_DEFAULT_GAS"
	MaxGasPerSecEnv              = "MAX_GAS_PER_SEC"
	SendRawTxSizeLimitEnv        = "SEND_RAW_TRANSACTION_SIZE_LIMIT"
	FilterAPIEnabledEnv          = "FILTER_API_ENABLED"
	FilterTTLEnv                 = "FILTER_TTL"
	DebugAPIEnabledEnv           = "DEBUG_API_ENABLED"
	WSPollingIntervalEnv         = "WS_POLLING_INTERVAL"
	WSNewHeadsEnabledEnv         = "WS_NEW_HEADS_ENABLED"
	WSMaxSubscriptionsEnv        = "WS_MAX_SUBSCRIPTIONS_PER_CONNECTION"
	CacheTTLEnv                  = "CACHE_TTL"
	IPRateLimitStoreEnv          = "IP_RATE_LIMIT_STORE"
	RateLimitDisabledEnv         = "RATE_LIMIT_DISABLED"
	RateLimitTier1Env            = "RATE_LIMIT_TIER1"
	RateLimitTier2Env            = "RATE_LIMIT_TIER2"
	RateLimitTier3Env            = "RATE_LIMIT_TIER3"
	RateLimitDurationEnv         = "RATE_LIMIT_DURATION"
	HbarLimitTotalEnv            = "HBAR_LIMIT_TOTAL_TINYBAR"
	HbarLimitDurationEnv         = "HBAR_LIMIT_DURATION"
	RedisURLEnv                  = "REDIS_URL"
	BatchRequestsEnabledEnv      = "BATCH_REQUESTS_ENABLED"
	BatchRequestsMaxSizeEnv      = "BATCH_REQUESTS_MAX_SIZE"
)

// Store selector values for IPRateLimitStoreEnv.
const (
	StoreInternal = "internal"
	StoreShared   = "shared"
)

// Registry enumerates every configuration entry the relay understands,
// with its type, default, required-ness per mode, and sensitivity.
var Registry = []Entry{
	{Key: ChainIDEnv, Type: TypeString, Default: "298"},
	{Key: HederaNetworkEnv, Type: TypeString, RequiredIn: []Mode{ReadOnly, ReadWrite}},
	{Key: OperatorIDEnv, Type: TypeString, RequiredIn: []Mode{ReadWrite}},
	{Key: OperatorKeyEnv, Type: TypeString, RequiredIn: []Mode{ReadWrite}, Sensitive: true},
	{Key: ReadOnlyEnv, Type: TypeBoolean, Default: "false"},
	{Key: PortEnv, Type: TypeNumber, Default: "7546"},
	{Key: WSPortEnv, Type: TypeNumber, Default: "8546"},
	{Key: LogLevelEnv, Type: TypeString, Default: "info"},
	{Key: MirrorNodeURLEnv, Type: TypeString, RequiredIn: []Mode{ReadOnly, ReadWrite}},
	{Key: MirrorNodeRetriesEnv, Type: TypeNumber, Default: "3"},
	{Key: MirrorNodeRetryDelayEnv, Type: TypeNumber, Default: "250"},
	{Key: MirrorNodeTimeoutEnv, Type: TypeNumber, Default: "10000"},
	{Key: MirrorNodeLimitParamEnv, Type: TypeNumber, Default: "100"},
	{Key: FileAppendMaxChunksEnv, Type: TypeNumber, Default: "20"},
	{Key: FileAppendChunkSizeEnv, Type: TypeNumber, Default: "5120"},
	{Key: JumboTxEnabledEnv, Type: TypeBoolean, Default: "false"},
	{Key: MaxGasAllowanceHbarEnv, Type: TypeNumber, Default: "0"},
	{Key: MaxTransactionFeeEnv, Type: TypeNumber, Default: "15000000"},
	{Key: ConsensusMaxExecutionTimeEnv, Type: TypeNumber, Default: "15000"},
	{Key: FeeHistoryMaxResultsEnv, Type: TypeNumber, Default: "10"},
	{Key: FeeHistoryFixedEnv, Type: TypeBoolean, Default: "true"},
	{Key: GasPriceBufferEnv, Type: TypeNumber, Default: "0"},
	{Key: TxDefaultGasEnv, Type: TypeNumber, Default: "400000"},
	{Key: MaxGasPerSecEnv, Type: TypeNumber, Default: "15000000"},
	{Key: SendRawTxSizeLimitEnv, Type: TypeNumber, Default: "131072"},
	{Key: FilterAPIEnabledEnv, Type: TypeBoolean, Default: "true"},
	{Key: FilterTTLEnv, Type: TypeNumber, Default: "300000"},
	{Key: DebugAPIEnabledEnv, Type: TypeBoolean, Default: "false"},
	{Key: WSPollingIntervalEnv, Type: TypeNumber, Default: "500"},
	{Key: WSNewHeadsEnabledEnv, Type: TypeBoolean, Default: "true"},
	{Key: WSMaxSubscriptionsEnv, Type: TypeNumber, Default: "10"},
	{Key: CacheTTLEnv, Type: TypeNumber, Default: "3600000"},
	{Key: IPRateLimitStoreEnv, Type: TypeString, Default: StoreInternal},
	{Key: RateLimitDisabledEnv, Type: TypeBoolean, Default: "false"},
	{Key: RateLimitTier1Env, Type: TypeNumber, Default: "100"},
	{Key: RateLimitTier2Env, Type: TypeNumber, Default: "800"},
	{Key: RateLimitTier3Env, Type: TypeNumber, Default: "1600"},
	{Key: RateLimitDurationEnv, Type: TypeNumber, Default: "60000"},
	{Key: HbarLimitTotalEnv, Type: TypeNumber, Default: "11000000000"},
	{Key: HbarLimitDurationEnv, Type: TypeNumber, Default: "86400000"},
	{Key: RedisURLEnv, Type: TypeString, Sensitive: true},
	{Key: BatchRequestsEnabledEnv, Type: TypeBoolean, Default: "true"},
	{Key: BatchRequestsMaxSizeEnv, Type: TypeNumber, Default: "100"},
}

// MaskedValue replaces sensitive values on diagnostic exports.
const MaskedValue = "**********"

func (e Entry) requiredIn(mode Mode) bool {
	for _, m := range e.RequiredIn {
		if m == mode {
			return true
		}
	}
	return false
}
