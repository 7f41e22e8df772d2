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
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hashgraph/hedera-rpc-relay/configuration"
)

// NetService answers the net_* namespace. The relay fronts a single
// upstream, so listening is always false and peer count is not a
// meaningful concept.
type NetService struct {
	chainID string
}

// NewNetService creates the net service for the canonical chain id.
func NewNetService(chainID string) *NetService {
	return &NetService{chainID: chainID}
}

// Version returns the chain id in decimal, per net_version convention.
func (s *NetService) Version() string {
	value, err := strconv.ParseUint(strings.TrimPrefix(s.chainID, "0x"), 16, 64)
	if err != nil {
		// A 0xNaN chain id is preserved verbatim.
		return s.chainID
	}
	return strconv.FormatUint(value, 10)
}

// Listening reports whether the node accepts peer connections. The
// relay never does.
func (s *NetService) Listening() bool {
	return false
}

// Web3Service answers the web3_* namespace.
type Web3Service struct{}

// NewWeb3Service creates the web3 service.
func NewWeb3Service() *Web3Service {
	return &Web3Service{}
}

// ClientVersion identifies the relay build.
func (s *Web3Service) ClientVersion() string {
	return fmt.Sprintf("%s/%s", configuration.ClientVersionPrefix, configuration.MiddlewareVersion)
}

// Sha3 returns the Keccak-256 hash of the given hex data.
func (s *Web3Service) Sha3(data string) (string, error) {
	raw, err := hexutil.Decode(data)
	if err != nil {
		return "", NewInvalidParameter(0, "invalid hex data")
	}
	return hexutil.Encode(crypto.Keccak256(raw)), nil
}
