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
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/hedera"
	"github.com/hashgraph/hedera-rpc-relay/mirror"
)

// HTS redirect bytecode: calls into the token proxy precompile with
// the token address spliced between prefix and postfix.
const (
	redirectBytecodePrefix  = "6080604052348015600f57600080fd5b506000610167905077618dc65e"
	redirectBytecodePostfix = "600052366000602037600080366018016008845af43d806000803e8160008114605857816000f35b816000fd5b50"
)

// Intrinsic gas constants of the Ethereum fee schedule.
const (
	txBaseGas        = 21_000
	txCreateExtraGas = 32_000
	txDataZeroGas    = 4
	txDataNonZeroGas = 16
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ConsensusSubmitter is the slice of the consensus-node client the
// contract service consumes. *hedera.Client implements it.
type ConsensusSubmitter interface {
	SubmitEthereumTransaction(ctx context.Context, raw []byte, caller string, networkGasPriceTinybars, exchangeRateCents int64) (*hedera.SubmitResult, error)
	OperatorEvmAddress() string
}

// HbarLimiter is the pre-emptive budget check consulted before every
// submission. *hbar.Limiter implements it.
type HbarLimiter interface {
	ShouldLimit(ctx context.Context, method, constructor, caller string, estimatedTinybars int64) bool
}

// ContractService answers the contract-execution methods: eth_call,
// eth_estimateGas, eth_getCode, eth_getStorageAt, and
// eth_sendRawTransaction.
type ContractService struct {
	log          *zap.Logger
	mirror       MirrorClient
	common       *CommonService
	consensus    ConsensusSubmitter
	limiter      HbarLimiter
	chainID      string
	defaultGas   int64
	maxGasPerSec int64
	sizeLimit    int
}

// NewContractService creates the contract service. consensus may be
// nil in read-only mode; eth_sendRawTransaction is rejected before it
// is consulted.
func NewContractService(
	log *zap.Logger,
	mirror MirrorClient,
	common *CommonService,
	consensus ConsensusSubmitter,
	limiter HbarLimiter,
	chainID string,
	defaultGas, maxGasPerSec int64,
	sizeLimit int,
) *ContractService {
	return &ContractService{
		log:          log,
		mirror:       mirror,
		common:       common,
		consensus:    consensus,
		limiter:      limiter,
		chainID:      chainID,
		defaultGas:   defaultGas,
		maxGasPerSec: maxGasPerSec,
		sizeLimit:    sizeLimit,
	}
}

// Call simulates a contract execution against the mirror node and
// returns the return data.
func (s *ContractService) Call(ctx context.Context, args CallArgs, tag string) (string, error) {
	request, err := s.formatCallArgs(ctx, args)
	if err != nil {
		return "", err
	}

	number, err := s.common.ResolveBlockTag(ctx, tag)
	if err != nil {
		return "", err
	}
	request.Block = strconv.FormatInt(number, 10)

	response, err := s.mirror.PostContractCall(ctx, *request)
	if err != nil {
		if rpcErr := s.mapCallError(err); rpcErr != nil {
			return "", rpcErr
		}
		return EmptyHex, nil
	}
	if response == nil || response.Result == "" {
		return EmptyHex, nil
	}
	return response.Result, nil
}

// EstimateGas estimates the gas for a call. Estimation failures fall
// back to the configured default so that wallets keep working when the
// mirror node cannot simulate the transaction.
func (s *ContractService) EstimateGas(ctx context.Context, args CallArgs, tag string) (string, error) {
	request, err := s.formatCallArgs(ctx, args)
	if err != nil {
		return "", err
	}
	request.Estimate = true
	if tag != "" {
		number, err := s.common.ResolveBlockTag(ctx, tag)
		if err != nil {
			return "", err
		}
		request.Block = strconv.FormatInt(number, 10)
	}

	response, err := s.mirror.PostContractCall(ctx, *request)
	if err != nil {
		if rpcErr := s.mapCallError(err); rpcErr != nil && rpcErr.Code == 3 {
			return "", rpcErr
		}
		s.log.Debug("gas estimation failed, returning default", zap.Error(err))
		return NumberToHex(s.defaultGas), nil
	}
	if response == nil || response.Result == "" {
		return NumberToHex(s.defaultGas), nil
	}
	return response.Result, nil
}

// GetCode returns the runtime bytecode at an address. Token addresses
// answer with the HTS redirect stub; plain accounts and unknown
// addresses answer empty.
func (s *ContractService) GetCode(ctx context.Context, address, tag string) (string, error) {
	if tokenID, ok := tokenIDFromAddress(address); ok {
		token, err := s.mirror.GetToken(ctx, tokenID)
		if err != nil {
			return "", mapMirrorError(err)
		}
		if token != nil {
			return "0x" + redirectBytecodePrefix + strings.TrimPrefix(strings.ToLower(address), "0x") + redirectBytecodePostfix, nil
		}
	}

	contract, err := s.mirror.GetContract(ctx, address)
	if err != nil {
		return "", mapMirrorError(err)
	}
	if contract == nil || contract.RuntimeBytecode == "" {
		return EmptyHex, nil
	}
	return contract.RuntimeBytecode, nil
}

// GetStorageAt reads one storage slot at the given block tag. Unset
// slots read as thirty-two zero bytes.
func (s *ContractService) GetStorageAt(ctx context.Context, address, slot, tag string) (string, error) {
	var timestamp string
	switch strings.ToLower(tag) {
	case "", TagLatest, TagPending, TagSafe, TagFinalized:
	default:
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
		timestamp = "lte:" + block.Timestamp.To
	}

	value, err := s.mirror.GetContractStateSlot(ctx, address, slot, timestamp)
	if err != nil {
		return "", mapMirrorError(err)
	}
	if value == "" {
		return ZeroHash32, nil
	}
	return padHash32(value), nil
}

// SendRawTransaction prechecks and submits a signed raw transaction,
// returning its Ethereum hash. The relay does not serialize per-sender
// submissions; nonce ordering stays the caller's responsibility.
func (s *ContractService) SendRawTransaction(ctx context.Context, rawHex string) (string, error) {
	raw, err := hexutil.Decode(rawHex)
	if err != nil {
		return "", NewInvalidParameter(0, "invalid raw transaction encoding")
	}
	if len(raw) > s.sizeLimit {
		return "", NewOversizedTransaction(len(raw), s.sizeLimit)
	}

	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", NewInvalidParameter(0, fmt.Sprintf("unable to decode transaction: %v", err))
	}

	gasPriceTinybars, err := s.common.GasPriceTinybars(ctx)
	if err != nil {
		return "", err
	}
	sender, err := s.precheck(ctx, &tx, gasPriceTinybars)
	if err != nil {
		return "", err
	}

	if s.limiter != nil && s.limiter.ShouldLimit(ctx, "eth_sendRawTransaction", "EthereumTransaction", sender, 0) {
		return "", ErrHbarRateLimitExceeded
	}

	rate, err := s.mirror.GetExchangeRate(ctx)
	if err != nil {
		return "", mapMirrorError(err)
	}
	var cents int64
	if rate != nil {
		cents = rate.CurrentRate.Cents()
	}

	if _, err := s.consensus.SubmitEthereumTransaction(ctx, raw, sender, gasPriceTinybars, cents); err != nil {
		return "", s.mapSubmitError(err)
	}
	return crypto.Keccak256Hash(raw).Hex(), nil
}

// precheck validates chain id, gas price, gas limit bounds, value
// precision, and sender balance. It returns the recovered sender.
func (s *ContractService) precheck(ctx context.Context, tx *types.Transaction, gasPriceTinybars int64) (string, error) {
	if chainID := tx.ChainId(); chainID != nil && chainID.Sign() != 0 {
		if "0x"+chainID.Text(16) != s.chainID {
			return "", NewUnsupportedChainID("0x"+chainID.Text(16), s.chainID)
		}
	}

	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return "", NewInvalidParameter(0, fmt.Sprintf("unable to recover sender: %v", err))
	}
	from := strings.ToLower(sender.Hex())

	networkPriceWeibars := new(big.Int).Mul(big.NewInt(gasPriceTinybars), TinybarToWeibarCoef)
	if tx.GasFeeCap().Cmp(networkPriceWeibars) < 0 {
		return "", NewGasPriceTooLow(tx.GasFeeCap().String(), networkPriceWeibars.String())
	}

	intrinsic := intrinsicGas(tx.Data(), tx.To() == nil)
	if tx.Gas() < intrinsic {
		return "", NewGasLimitTooLow(tx.Gas(), intrinsic)
	}
	if int64(tx.Gas()) > s.maxGasPerSec {
		return "", NewGasLimitTooHigh(int64(tx.Gas()), s.maxGasPerSec)
	}

	// Weibar values below one tinybar cannot be represented on Hedera.
	if tx.Value().Sign() > 0 && tx.Value().Cmp(TinybarToWeibarCoef) < 0 {
		return "", NewInvalidParameter(0, "value is below the smallest representable tinybar amount")
	}

	account, err := s.mirror.GetAccount(ctx, from, "")
	if err != nil {
		return "", mapMirrorError(err)
	}
	if account == nil {
		return "", NewInsufficientFunds(from)
	}
	balanceWeibars := new(big.Int).Mul(big.NewInt(account.Balance.Balance), TinybarToWeibarCoef)
	fee := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasFeeCap())
	needed := new(big.Int).Add(tx.Value(), fee)
	if balanceWeibars.Cmp(needed) < 0 {
		return "", NewInsufficientFunds(from)
	}
	return from, nil
}

// formatCallArgs normalizes a wire transaction object into the mirror
// node call shape: input wins over data, values floor to tinybars, and
// a missing sender of a value transfer becomes the operator.
func (s *ContractService) formatCallArgs(ctx context.Context, args CallArgs) (*mirror.ContractCallRequest, error) {
	args = ContractCallFormat(args)

	if args.To != "" && !addressPattern.MatchString(args.To) {
		return nil, NewInvalidContractAddress(args.To)
	}
	if args.To == ZeroAddress {
		return nil, NewInvalidContractAddress(args.To)
	}

	request := &mirror.ContractCallRequest{
		To:   args.To,
		From: args.From,
		Data: args.Data,
	}

	if args.Value != "" {
		tinybars, err := WeibarsToTinybars(args.Value)
		if err != nil {
			return nil, NewInvalidParameter(0, fmt.Sprintf("invalid value %q", args.Value))
		}
		request.Value = tinybars
	}

	if args.Gas != "" {
		gas, err := HexToNumber(args.Gas)
		if err != nil {
			return nil, NewInvalidParameter(0, fmt.Sprintf("invalid gas %q", args.Gas))
		}
		if gas > s.maxGasPerSec {
			gas = s.maxGasPerSec
		}
		request.Gas = gas
	} else {
		request.Gas = s.defaultGas
	}

	if args.GasPrice != "" {
		price, err := HexToNumber(args.GasPrice)
		if err != nil {
			return nil, NewInvalidParameter(0, fmt.Sprintf("invalid gasPrice %q", args.GasPrice))
		}
		request.GasPrice = price
	} else {
		tinybars, err := s.common.GasPriceTinybars(ctx)
		if err != nil {
			return nil, err
		}
		request.GasPrice = tinybars
	}

	if request.From == "" && request.Value > 0 && s.consensus != nil {
		request.From = s.consensus.OperatorEvmAddress()
	}
	return request, nil
}

// ContractCallFormat applies the field-precedence rules of the wire
// shape: input overrides data and is then dropped.
func ContractCallFormat(args CallArgs) CallArgs {
	if args.Input != "" {
		args.Data = args.Input
		args.Input = ""
	}
	return args
}

// mapCallError translates a contracts/call failure per the execution
// policy: reverts become code-3 errors with the return data, benign
// simulation failures become empty results via ErrInvalidCallTarget.
func (s *ContractService) mapCallError(err error) *RPCError {
	var mirrorErr *mirror.Error
	if errors.As(err, &mirrorErr) {
		switch {
		case mirrorErr.StatusCode == 400 && mirrorErr.Status == "CONTRACT_REVERT_EXECUTED":
			return NewContractRevert(mirrorErr.Detail, mirrorErr.Data)
		case mirrorErr.StatusCode == 400 &&
			(mirrorErr.Status == "INVALID_TRANSACTION" || mirrorErr.Status == "FAIL_INVALID"):
			// Simulation against a non-existent target answers empty.
			return nil
		case mirrorErr.IsRateLimit():
			return ErrRequestTimeout
		case mirrorErr.IsNotSupported():
			return ErrUnsupportedMethod
		}
	}
	return NewInternalError(err)
}

// mapSubmitError translates a consensus submission failure.
func (s *ContractService) mapSubmitError(err error) error {
	if errors.Is(err, hedera.ErrBudgetExhausted) {
		return ErrHbarRateLimitExceeded
	}
	var sdkErr *hedera.SDKError
	if errors.As(err, &sdkErr) {
		switch {
		case sdkErr.IsWrongNonce():
			return ErrNonceTooLow
		case sdkErr.IsOversize():
			return &RPCError{Code: -32201, Message: "Oversized data: " + sdkErr.Message}
		case sdkErr.IsGRPCTimeout() || sdkErr.IsConnectionDropped():
			// The transaction may still have reached consensus.
			return ErrRequestTimeout
		}
	}
	if rpcErr, ok := AsRPCError(err); ok {
		return rpcErr
	}
	return NewInternalError(err)
}

// intrinsicGas computes the fee-schedule floor of a transaction.
func intrinsicGas(data []byte, create bool) uint64 {
	gas := uint64(txBaseGas)
	if create {
		gas += txCreateExtraGas
	}
	for _, b := range data {
		if b == 0 {
			gas += txDataZeroGas
		} else {
			gas += txDataNonZeroGas
		}
	}
	return gas
}

// tokenIDFromAddress recognizes long-zero addresses, which encode a
// Hedera entity number in the low eight bytes.
func tokenIDFromAddress(address string) (string, bool) {
	hex := strings.TrimPrefix(strings.ToLower(address), "0x")
	if len(hex) != 40 || !strings.HasPrefix(hex, strings.Repeat("0", 24)) {
		return "", false
	}
	num, err := strconv.ParseInt(hex[24:], 16, 64)
	if err != nil || num == 0 {
		return "", false
	}
	return fmt.Sprintf("0.0.%d", num), true
}

func padHash32(value string) string {
	hex := strings.TrimPrefix(value, "0x")
	if len(hex) < 64 {
		hex = strings.Repeat("0", 64-len(hex)) + hex
	}
	return "0x" + hex
}
