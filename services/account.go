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

package services

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// AccountService answers the account queries: balances and nonces.
// The relay holds no keys for callers, so eth_accounts is always
// empty.
type AccountService struct {
	log    *zap.Logger
	mirror MirrorClient
	common *CommonService
}

// NewAccountService creates the account service.
func NewAccountService(log *zap.Logger, mirror MirrorClient, common *CommonService) *AccountService {
	return &AccountService{log: log, mirror: mirror, common: common}
}

// GetBalance returns the account balance in weibars at the given block
// tag. Unknown accounts have a zero balance. Historical tags resolve
// through the block's closing timestamp.
func (s *AccountService) GetBalance(ctx context.Context, address, tag string) (string, error) {
	timestamp, err := s.historicalTimestamp(ctx, tag)
	if err != nil {
		return "", err
	}

	account, err := s.mirror.GetAccount(ctx, address, timestamp)
	if err != nil {
		return "", mapMirrorError(err)
	}
	if account == nil {
		return ZeroHex, nil
	}
	return TinybarsToWeibars(account.Balance.Balance), nil
}

// GetTransactionCount returns the account's Ethereum nonce at the
// given block tag. Unknown accounts have a zero nonce.
func (s *AccountService) GetTransactionCount(ctx context.Context, address, tag string) (string, error) {
	timestamp, err := s.historicalTimestamp(ctx, tag)
	if err != nil {
		return "", err
	}

	account, err := s.mirror.GetAccount(ctx, address, timestamp)
	if err != nil {
		return "", mapMirrorError(err)
	}
	if account == nil {
		return ZeroHex, nil
	}
	return NumberToHex(account.EthereumNonce), nil
}

// Accounts returns the empty account list.
func (s *AccountService) Accounts() []string {
	return []string{}
}

// historicalTimestamp maps a block tag to the mirror node timestamp
// filter selecting state as of that block. Latest-equivalent tags need
// no filter.
func (s *AccountService) historicalTimestamp(ctx context.Context, tag string) (string, error) {
	switch strings.ToLower(tag) {
	case "", TagLatest, TagPending, TagSafe, TagFinalized:
		return "", nil
	}

	number, err := s.common.ResolveBlockTag(ctx, tag)
	if err != nil {
		return "", err
	}
	block, err := s.common.BlockByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	if block == nil {
		head, err := s.common.LatestBlock(ctx)
		if err != nil {
			return "", err
		}
		return "", NewRequestBeyondHeadBlock(number, head.Number)
	}
	return "lte:" + block.Timestamp.To, nil
}
