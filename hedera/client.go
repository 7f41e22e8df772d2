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

// Package hedera wraps the consensus node SDK: it signs and submits
// transactions as the relay operator, stages oversized Ethereum call
// data through the Hedera File Service, and reports every paid
// operation to the expense pipeline.
package hedera

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	ethtypes "github.com/ethereum/go-ethereum/core/types"
	hederasdk "github.com/hashgraph/hedera-sdk-go/v2"
	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/configuration"
	"github.com/hashgraph/hedera-rpc-relay/metrics"
)

// ErrBudgetExhausted refuses a submission whose estimated file fees
// exceed the caller's spending plan.
var ErrBudgetExhausted = errors.New("hedera: spending plan cannot cover estimated file fees")

// Approximate network fees in cents for the file transactions of the
// jumbo upload protocol, per full chunk.
const (
	fileCreateFeeCents = 5
	fileAppendFeeCents = 5

	tinybarsPerHbar = 100_000_000
)

// expenseEmitTimeout bounds one background expense booking. Mirror
// records lag consensus by a few seconds, so the window covers the
// tracker's full retry schedule.
const expenseEmitTimeout = 30 * time.Second

// SubmitResult reports a submitted Ethereum transaction. FileID is set
// when call data was staged through the File Service.
type SubmitResult struct {
	TransactionID string
	FileID        string
}

// network is the low-level consensus surface the client drives. The
// SDK-backed implementation is the only one outside tests.
type network interface {
	CreateFile(ctx context.Context, contents []byte) (fileID, transactionID string, err error)
	AppendFile(ctx context.Context, fileID string, contents []byte, chunkSize, maxChunks int) (transactionIDs []string, err error)
	FileSize(ctx context.Context, fileID string) (size, costTinybars int64, err error)
	DeleteFile(ctx context.Context, fileID string) (transactionID string, err error)
	SubmitEthereum(ctx context.Context, data []byte, fileID string, maxFeeTinybars, maxGasAllowanceHbar int64) (transactionID string, err error)
	Close() error
}

// Client submits transactions to consensus nodes as the relay
// operator.
type Client struct {
	log     *zap.Logger
	network network
	sink    EventSink
	limiter Prechecker

	operatorID  string
	operatorEvm string

	// pending tracks background expense bookings and file reclaims so
	// Close can drain them.
	pending sync.WaitGroup

	fileAppendChunkSize int
	fileAppendMaxChunks int
	jumboEnabled        bool
	maxGasAllowanceHbar int64
	maxFeeFactor        int64
}

// NewClient builds the SDK-backed client from the resolved
// configuration. sink and limiter may be nil.
func NewClient(log *zap.Logger, cfg *configuration.Configuration, sink EventSink, limiter Prechecker) (*Client, error) {
	sdk, err := hederasdk.ClientForName(cfg.HederaNetwork)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown hedera network %q", err, cfg.HederaNetwork)
	}

	operatorID, err := hederasdk.AccountIDFromString(cfg.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse %s", err, configuration.OperatorIDEnv)
	}
	operatorKey, err := hederasdk.PrivateKeyFromString(cfg.OperatorKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to parse %s", err, configuration.OperatorKeyEnv)
	}
	sdk.SetOperator(operatorID, operatorKey)

	executionTime := cfg.ConsensusMaxExecutionTime
	sdk.SetRequestTimeout(&executionTime)

	return &Client{
		log:                 log,
		network:             &sdkNetwork{client: sdk, operatorKey: operatorKey},
		sink:                sink,
		limiter:             limiter,
		operatorID:          operatorID.String(),
		operatorEvm:         "0x" + operatorKey.PublicKey().ToEvmAddress(),
		fileAppendChunkSize: cfg.FileAppendChunkSize,
		fileAppendMaxChunks: cfg.FileAppendMaxChunks,
		jumboEnabled:        cfg.JumboTxEnabled,
		maxGasAllowanceHbar: cfg.MaxGasAllowanceHbar,
		maxFeeFactor:        cfg.MaxTransactionFeeFactor,
	}, nil
}

// OperatorEvmAddress returns the operator's EVM address, used as the
// default sender of value-bearing simulations.
func (c *Client) OperatorEvmAddress() string {
	return c.operatorEvm
}

// Close drains in-flight expense bookings and file reclaims, then
// releases the SDK's node connections.
func (c *Client) Close() error {
	c.pending.Wait()
	return c.network.Close()
}

// SubmitEthereumTransaction signs and submits a raw Ethereum
// transaction. Call data above the chunk size is staged through the
// File Service unless jumbo transactions are enabled; the resulting
// file is reclaimed best-effort after a successful submission.
func (c *Client) SubmitEthereumTransaction(ctx context.Context, raw []byte, caller string, networkGasPriceTinybars, exchangeRateCents int64) (*SubmitResult, error) {
	var tx ethtypes.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: unable to decode raw transaction", err)
	}

	data := raw
	var fileID string
	if !c.jumboEnabled && len(tx.Data()) > c.fileAppendChunkSize {
		var err error
		if fileID, err = c.offloadCallData(ctx, &tx, caller, exchangeRateCents); err != nil {
			return nil, err
		}
		if data, err = encodeWithoutCallData(&tx); err != nil {
			return nil, err
		}
	}

	maxFeeTinybars := networkGasPriceTinybars * c.maxFeeFactor
	transactionID, err := c.network.SubmitEthereum(ctx, data, fileID, maxFeeTinybars, c.maxGasAllowanceHbar)
	c.observe("EthereumTransaction", err)
	if err != nil {
		return nil, wrapSDKError(err)
	}

	c.emitTransaction(transactionID, "EthereumTransaction", caller)
	if fileID != "" {
		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			c.reclaimFile(fileID)
		}()
	}
	return &SubmitResult{TransactionID: transactionID, FileID: fileID}, nil
}

// offloadCallData stages the transaction's call data, hex encoded, in
// a new HFS file and returns the file id.
func (c *Client) offloadCallData(ctx context.Context, tx *ethtypes.Transaction, caller string, exchangeRateCents int64) (string, error) {
	hexData := []byte(hex.EncodeToString(tx.Data()))

	chunks := (len(hexData) + c.fileAppendChunkSize - 1) / c.fileAppendChunkSize
	if chunks > c.fileAppendMaxChunks {
		return "", &SDKError{
			Status:  StatusTransactionOversize,
			Message: fmt.Sprintf("call data needs %d chunks, limit is %d", chunks, c.fileAppendMaxChunks),
		}
	}

	estimate := estimateFileFeesTinybars(len(hexData), c.fileAppendChunkSize, exchangeRateCents)
	if c.limiter != nil && c.limiter.ShouldLimit(ctx, "eth_sendRawTransaction", "FileCreateTransaction", caller, estimate) {
		return "", ErrBudgetExhausted
	}

	first := hexData
	if len(first) > c.fileAppendChunkSize {
		first = hexData[:c.fileAppendChunkSize]
	}
	fileID, transactionID, err := c.network.CreateFile(ctx, first)
	c.observe("FileCreateTransaction", err)
	if err != nil {
		return "", wrapSDKError(err)
	}
	c.emitTransaction(transactionID, "FileCreateTransaction", caller)

	if len(hexData) > c.fileAppendChunkSize {
		appendIDs, err := c.network.AppendFile(ctx, fileID, hexData[c.fileAppendChunkSize:], c.fileAppendChunkSize, c.fileAppendMaxChunks)
		c.observe("FileAppendTransaction", err)
		if err != nil {
			return "", wrapSDKError(err)
		}
		for _, id := range appendIDs {
			c.emitTransaction(id, "FileAppendTransaction", caller)
		}
	}

	size, cost, err := c.network.FileSize(ctx, fileID)
	c.observe("FileInfoQuery", err)
	if err != nil {
		return "", wrapSDKError(err)
	}
	if c.sink != nil {
		c.sink.QueryExecuted(ctx, "FileInfoQuery", cost)
	}
	if size == 0 {
		return "", fmt.Errorf("created file %s is empty", fileID)
	}
	return fileID, nil
}

// reclaimFile deletes a staged call data file. Failures only log: the
// file expires on its own and the submission already succeeded.
func (c *Client) reclaimFile(fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	transactionID, err := c.network.DeleteFile(ctx, fileID)
	c.observe("FileDeleteTransaction", err)
	if err != nil {
		c.log.Warn("unable to delete call data file",
			zap.String("fileId", fileID),
			zap.Error(err))
		return
	}
	c.emitTransaction(transactionID, "FileDeleteTransaction", "")
	c.log.Debug("call data file deleted", zap.String("fileId", fileID))
}

// emitTransaction books the expense in the background. The booking
// runs on a detached context: it outlives the request that triggered
// it, since mirror records appear only after consensus.
func (c *Client) emitTransaction(transactionID, constructor, caller string) {
	if c.sink == nil || transactionID == "" {
		return
	}
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), expenseEmitTimeout)
		defer cancel()
		c.sink.TransactionExecuted(ctx, transactionID, constructor, caller)
	}()
}

func (c *Client) observe(constructor string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.UpstreamCalls.WithLabelValues("consensus", outcome).Inc()
	if err != nil {
		c.log.Debug("consensus call failed",
			zap.String("constructor", constructor),
			zap.Error(err))
	}
}

// estimateFileFeesTinybars estimates the total file transaction fees
// for a hex payload of the given size: one create plus the appends,
// the last one pro-rated by its fill.
func estimateFileFeesTinybars(hexSize, chunkSize int, exchangeRateCents int64) int64 {
	if exchangeRateCents <= 0 || chunkSize <= 0 {
		return 0
	}
	fullAppends := hexSize/chunkSize - 1
	lastChunk := hexSize % chunkSize

	cents := float64(fileCreateFeeCents) + float64(fullAppends*fileAppendFeeCents)
	cents += float64(lastChunk) / float64(chunkSize) * fileAppendFeeCents
	return int64(cents / float64(exchangeRateCents) * tinybarsPerHbar)
}

// encodeWithoutCallData re-encodes a parsed transaction with its call
// data cleared and the original signature preserved, ready to carry a
// call data file reference instead.
func encodeWithoutCallData(tx *ethtypes.Transaction) ([]byte, error) {
	v, r, s := tx.RawSignatureValues()

	var inner ethtypes.TxData
	switch tx.Type() {
	case ethtypes.LegacyTxType:
		inner = &ethtypes.LegacyTx{
			Nonce:    tx.Nonce(),
			GasPrice: tx.GasPrice(),
			Gas:      tx.Gas(),
			To:       tx.To(),
			Value:    tx.Value(),
			V:        v,
			R:        r,
			S:        s,
		}
	case ethtypes.AccessListTxType:
		inner = &ethtypes.AccessListTx{
			ChainID:    tx.ChainId(),
			Nonce:      tx.Nonce(),
			GasPrice:   tx.GasPrice(),
			Gas:        tx.Gas(),
			To:         tx.To(),
			Value:      tx.Value(),
			AccessList: tx.AccessList(),
			V:          v,
			R:          r,
			S:          s,
		}
	case ethtypes.DynamicFeeTxType:
		inner = &ethtypes.DynamicFeeTx{
			ChainID:    tx.ChainId(),
			Nonce:      tx.Nonce(),
			GasTipCap:  tx.GasTipCap(),
			GasFeeCap:  tx.GasFeeCap(),
			Gas:        tx.Gas(),
			To:         tx.To(),
			Value:      tx.Value(),
			AccessList: tx.AccessList(),
			V:          v,
			R:          r,
			S:          s,
		}
	default:
		return nil, fmt.Errorf("unsupported transaction type %d", tx.Type())
	}
	return ethtypes.NewTx(inner).MarshalBinary()
}

// sdkNetwork drives the real SDK.
type sdkNetwork struct {
	client      *hederasdk.Client
	operatorKey hederasdk.PrivateKey
}

func (n *sdkNetwork) CreateFile(_ context.Context, contents []byte) (string, string, error) {
	response, err := hederasdk.NewFileCreateTransaction().
		SetKeys(n.operatorKey.PublicKey()).
		SetContents(contents).
		Execute(n.client)
	if err != nil {
		return "", "", err
	}
	receipt, err := response.GetReceipt(n.client)
	if err != nil {
		return "", response.TransactionID.String(), err
	}
	if receipt.FileID == nil {
		return "", response.TransactionID.String(), fmt.Errorf("file create receipt carries no file id")
	}
	return receipt.FileID.String(), response.TransactionID.String(), nil
}

func (n *sdkNetwork) AppendFile(_ context.Context, fileID string, contents []byte, chunkSize, maxChunks int) ([]string, error) {
	id, err := hederasdk.FileIDFromString(fileID)
	if err != nil {
		return nil, err
	}
	responses, err := hederasdk.NewFileAppendTransaction().
		SetFileID(id).
		SetContents(contents).
		SetMaxChunkSize(chunkSize).
		SetMaxChunks(uint64(maxChunks)).
		ExecuteAll(n.client)
	if err != nil {
		return nil, err
	}
	transactionIDs := make([]string, 0, len(responses))
	for _, response := range responses {
		transactionIDs = append(transactionIDs, response.TransactionID.String())
	}
	if len(responses) > 0 {
		if _, err := responses[len(responses)-1].GetReceipt(n.client); err != nil {
			return transactionIDs, err
		}
	}
	return transactionIDs, nil
}

func (n *sdkNetwork) FileSize(_ context.Context, fileID string) (int64, int64, error) {
	id, err := hederasdk.FileIDFromString(fileID)
	if err != nil {
		return 0, 0, err
	}
	query := hederasdk.NewFileInfoQuery().SetFileID(id)
	cost, err := query.GetCost(n.client)
	if err != nil {
		return 0, 0, err
	}
	info, err := query.Execute(n.client)
	if err != nil {
		return 0, cost.AsTinybar(), err
	}
	return info.Size, cost.AsTinybar(), nil
}

func (n *sdkNetwork) DeleteFile(_ context.Context, fileID string) (string, error) {
	id, err := hederasdk.FileIDFromString(fileID)
	if err != nil {
		return "", err
	}
	response, err := hederasdk.NewFileDeleteTransaction().
		SetFileID(id).
		Execute(n.client)
	if err != nil {
		return "", err
	}
	_, err = response.GetReceipt(n.client)
	return response.TransactionID.String(), err
}

func (n *sdkNetwork) SubmitEthereum(_ context.Context, data []byte, fileID string, maxFeeTinybars, maxGasAllowanceHbar int64) (string, error) {
	transaction := hederasdk.NewEthereumTransaction().
		SetEthereumData(data).
		SetMaxTransactionFee(hederasdk.HbarFromTinybar(maxFeeTinybars))
	if maxGasAllowanceHbar > 0 {
		transaction.SetMaxGasAllowanceHbar(hederasdk.NewHbar(float64(maxGasAllowanceHbar)))
	}
	if fileID != "" {
		id, err := hederasdk.FileIDFromString(fileID)
		if err != nil {
			return "", err
		}
		transaction.SetCallDataFileID(id)
	}

	response, err := transaction.Execute(n.client)
	if err != nil {
		return "", err
	}
	return response.TransactionID.String(), nil
}

func (n *sdkNetwork) Close() error {
	return n.client.Close()
}
