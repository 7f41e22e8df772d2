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

// Package mirror is the typed client for the Hedera Mirror Node REST
// API. Absence (HTTP 404) is an answer, not an error: lookups return
// nil. Rate limiting (429) and unimplemented operations (501) surface
// as typed errors; 5xx and transport failures retry with a fixed delay.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hashgraph/hedera-rpc-relay/configuration"
	"github.com/hashgraph/hedera-rpc-relay/logging"
	"github.com/hashgraph/hedera-rpc-relay/metrics"
)

const apiPrefix = "/api/v1"

// Client talks to one mirror node.
type Client struct {
	log        *zap.Logger
	http       *http.Client
	baseURL    string
	retries    int
	retryDelay time.Duration
	limitParam int
}

// NewClient creates a mirror node client from the resolved
// configuration.
func NewClient(log *zap.Logger, cfg *configuration.Configuration) *Client {
	return &Client{
		log:        log,
		http:       &http.Client{Timeout: cfg.MirrorNodeTimeout},
		baseURL:    cfg.MirrorNodeURL,
		retries:    cfg.MirrorNodeRetries,
		retryDelay: cfg.MirrorNodeRetryDelay,
		limitParam: cfg.MirrorNodeLimitParam,
	}
}

// GetAccount looks up an account by id, alias, or EVM address. A
// timestamp query ("lte:…") selects a historical balance snapshot.
func (c *Client) GetAccount(ctx context.Context, idOrAddress, timestamp string) (*Account, error) {
	values := url.Values{}
	values.Set("limit", "1")
	values.Set("transactions", "false")
	if timestamp != "" {
		values.Set("timestamp", timestamp)
	}
	path := fmt.Sprintf("%s/accounts/%s?%s", apiPrefix, url.PathEscape(idOrAddress), values.Encode())

	var account Account
	found, err := c.get(ctx, path, &account)
	if err != nil || !found {
		return nil, err
	}
	return &account, nil
}

// GetContract looks up a contract by id or EVM address.
func (c *Client) GetContract(ctx context.Context, idOrAddress string) (*Contract, error) {
	path := fmt.Sprintf("%s/contracts/%s", apiPrefix, url.PathEscape(idOrAddress))

	var contract Contract
	found, err := c.get(ctx, path, &contract)
	if err != nil || !found {
		return nil, err
	}
	return &contract, nil
}

// GetContractResult looks up one execution result by transaction hash.
func (c *Client) GetContractResult(ctx context.Context, hash string) (*ContractResult, error) {
	path := fmt.Sprintf("%s/contracts/results/%s", apiPrefix, url.PathEscape(hash))

	var result ContractResult
	found, err := c.get(ctx, path, &result)
	if err != nil || !found {
		return nil, err
	}
	return &result, nil
}

// ContractResultsParams filters the contract results listing. Query
// fields are already in mirror node form (for example BlockNumber "5"
// or Timestamp "lte:123.456").
type ContractResultsParams struct {
	From             string
	BlockNumber      string
	BlockHash        string
	Timestamp        []string
	TransactionIndex string
	Order            string
	Limit            int
}

func (p ContractResultsParams) encode(defaultLimit int) string {
	values := url.Values{}
	if p.From != "" {
		values.Set("from", p.From)
	}
	if p.BlockNumber != "" {
		values.Set("block.number", p.BlockNumber)
	}
	if p.BlockHash != "" {
		values.Set("block.hash", p.BlockHash)
	}
	for _, ts := range p.Timestamp {
		values.Add("timestamp", ts)
	}
	if p.TransactionIndex != "" {
		values.Set("transaction.index", p.TransactionIndex)
	}
	values.Set("order", orDefault(p.Order, "asc"))
	values.Set("limit", strconv.Itoa(limitOrDefault(p.Limit, defaultLimit)))
	return values.Encode()
}

// GetContractResults lists execution results, following pagination.
func (c *Client) GetContractResults(ctx context.Context, params ContractResultsParams) ([]ContractResult, error) {
	path := fmt.Sprintf("%s/contracts/results?%s", apiPrefix, params.encode(c.limitParam))

	var results []ContractResult
	for path != "" {
		var page struct {
			Results []ContractResult `json:"results"`
			Links   Links            `json:"links"`
		}
		found, err := c.get(ctx, path, &page)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		results = append(results, page.Results...)
		path = page.Links.Next
	}
	return results, nil
}

// LogParams filters the contract log endpoints. Topics holds OR-lists
// by position; timestamps are mirror node range queries.
type LogParams struct {
	Addresses     []string
	Topics        [][]string
	FromTimestamp string
	ToTimestamp   string
	Order         string
}

func (p LogParams) encode(defaultLimit int) string {
	values := url.Values{}
	if p.FromTimestamp != "" {
		values.Add("timestamp", p.FromTimestamp)
	}
	if p.ToTimestamp != "" {
		values.Add("timestamp", p.ToTimestamp)
	}
	for position, alternatives := range p.Topics {
		if position > 3 {
			break
		}
		for _, topic := range alternatives {
			values.Add(fmt.Sprintf("topic%d", position), topic)
		}
	}
	values.Set("order", orDefault(p.Order, "asc"))
	values.Set("limit", strconv.Itoa(defaultLimit))
	return values.Encode()
}

// GetContractLogs lists logs matching the params. Address filters fan
// out to the per-contract endpoint; results merge in ascending
// (block, index) order.
func (c *Client) GetContractLogs(ctx context.Context, params LogParams) ([]ContractLog, error) {
	var paths []string
	if len(params.Addresses) == 0 {
		paths = append(paths, fmt.Sprintf("%s/contracts/results/logs?%s", apiPrefix, params.encode(c.limitParam)))
	} else {
		for _, address := range params.Addresses {
			paths = append(paths, fmt.Sprintf("%s/contracts/%s/results/logs?%s",
				apiPrefix, url.PathEscape(address), params.encode(c.limitParam)))
		}
	}

	var logs []ContractLog
	for _, path := range paths {
		for path != "" {
			var page struct {
				Logs  []ContractLog `json:"logs"`
				Links Links         `json:"links"`
			}
			found, err := c.get(ctx, path, &page)
			if err != nil {
				return nil, err
			}
			if !found {
				break
			}
			logs = append(logs, page.Logs...)
			path = page.Links.Next
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
	return logs, nil
}

// GetContractStateSlot reads one storage slot, optionally at a
// historical timestamp ("lte:…"). Returns "" when the slot is unset.
func (c *Client) GetContractStateSlot(ctx context.Context, address, slot, timestamp string) (string, error) {
	values := url.Values{}
	values.Set("slot", slot)
	values.Set("limit", "1")
	if timestamp != "" {
		values.Set("timestamp", timestamp)
	}
	path := fmt.Sprintf("%s/contracts/%s/state?%s", apiPrefix, url.PathEscape(address), values.Encode())

	var page struct {
		State []ContractState `json:"state"`
	}
	found, err := c.get(ctx, path, &page)
	if err != nil || !found || len(page.State) == 0 {
		return "", err
	}
	return page.State[0].Value, nil
}

// BlocksParams filters the blocks listing.
type BlocksParams struct {
	NumberQuery string
	Order       string
	Limit       int
}

// GetBlocks lists blocks, following pagination.
func (c *Client) GetBlocks(ctx context.Context, params BlocksParams) ([]Block, error) {
	values := url.Values{}
	if params.NumberQuery != "" {
		values.Set("block.number", params.NumberQuery)
	}
	values.Set("order", orDefault(params.Order, "asc"))
	values.Set("limit", strconv.Itoa(limitOrDefault(params.Limit, c.limitParam)))
	path := fmt.Sprintf("%s/blocks?%s", apiPrefix, values.Encode())

	var blocks []Block
	for path != "" {
		var page struct {
			Blocks []Block `json:"blocks"`
			Links  Links   `json:"links"`
		}
		found, err := c.get(ctx, path, &page)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		blocks = append(blocks, page.Blocks...)
		path = page.Links.Next
	}
	return blocks, nil
}

// GetLatestBlock returns the current chain head, or nil on an empty
// chain.
func (c *Client) GetLatestBlock(ctx context.Context) (*Block, error) {
	path := fmt.Sprintf("%s/blocks?order=desc&limit=1", apiPrefix)

	var page struct {
		Blocks []Block `json:"blocks"`
	}
	found, err := c.get(ctx, path, &page)
	if err != nil || !found || len(page.Blocks) == 0 {
		return nil, err
	}
	return &page.Blocks[0], nil
}

// GetBlockByHashOrNumber looks up one block.
func (c *Client) GetBlockByHashOrNumber(ctx context.Context, hashOrNumber string) (*Block, error) {
	path := fmt.Sprintf("%s/blocks/%s", apiPrefix, url.PathEscape(hashOrNumber))

	var block Block
	found, err := c.get(ctx, path, &block)
	if err != nil || !found {
		return nil, err
	}
	return &block, nil
}

// GetNetworkFees returns the current fee schedule.
func (c *Client) GetNetworkFees(ctx context.Context) (*NetworkFees, error) {
	var fees NetworkFees
	found, err := c.get(ctx, apiPrefix+"/network/fees", &fees)
	if err != nil || !found {
		return nil, err
	}
	return &fees, nil
}

// GetExchangeRate returns the current HBAR exchange rate.
func (c *Client) GetExchangeRate(ctx context.Context) (*ExchangeRate, error) {
	var rate ExchangeRate
	found, err := c.get(ctx, apiPrefix+"/network/exchangerate", &rate)
	if err != nil || !found {
		return nil, err
	}
	return &rate, nil
}

// GetToken looks up a token by id.
func (c *Client) GetToken(ctx context.Context, tokenID string) (*Token, error) {
	path := fmt.Sprintf("%s/tokens/%s", apiPrefix, url.PathEscape(tokenID))

	var token Token
	found, err := c.get(ctx, path, &token)
	if err != nil || !found {
		return nil, err
	}
	return &token, nil
}

// GetTransactionByID looks up a transaction record by its mirror-form
// id (see FormatTransactionID).
func (c *Client) GetTransactionByID(ctx context.Context, id string) (*Transaction, error) {
	path := fmt.Sprintf("%s/transactions/%s", apiPrefix, url.PathEscape(id))

	var page struct {
		Transactions []Transaction `json:"transactions"`
	}
	found, err := c.get(ctx, path, &page)
	if err != nil || !found || len(page.Transactions) == 0 {
		return nil, err
	}
	return &page.Transactions[0], nil
}

// GetContractActions lists the call-frame actions of one transaction,
// following pagination.
func (c *Client) GetContractActions(ctx context.Context, hash string) ([]ContractAction, error) {
	path := fmt.Sprintf("%s/contracts/results/%s/actions?limit=%d",
		apiPrefix, url.PathEscape(hash), c.limitParam)

	var actions []ContractAction
	for path != "" {
		var page struct {
			Actions []ContractAction `json:"actions"`
			Links   Links            `json:"links"`
		}
		found, err := c.get(ctx, path, &page)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		actions = append(actions, page.Actions...)
		path = page.Links.Next
	}
	return actions, nil
}

// GetContractOpcodes returns the opcode trace of one transaction.
func (c *Client) GetContractOpcodes(ctx context.Context, hash string, memory, stack, storage bool) (*OpcodeTrace, error) {
	values := url.Values{}
	values.Set("memory", strconv.FormatBool(memory))
	values.Set("stack", strconv.FormatBool(stack))
	values.Set("storage", strconv.FormatBool(storage))
	path := fmt.Sprintf("%s/contracts/results/%s/opcodes?%s", apiPrefix, url.PathEscape(hash), values.Encode())

	var trace OpcodeTrace
	found, err := c.get(ctx, path, &trace)
	if err != nil || !found {
		return nil, err
	}
	return &trace, nil
}

// PostContractCall executes a read-only contract call. Mirror node
// error statuses surface as *Error for the caller to map.
func (c *Client) PostContractCall(ctx context.Context, request ContractCallRequest) (*ContractCallResponse, error) {
	var response ContractCallResponse
	found, err := c.post(ctx, apiPrefix+"/contracts/call", request, &response)
	if err != nil || !found {
		return nil, err
	}
	return &response, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) (bool, error) {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *Client) post(ctx context.Context, path string, body, dest any) (bool, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return false, fmt.Errorf("%w: unable to encode request body", err)
	}
	return c.do(ctx, http.MethodPost, path, encoded, dest)
}

// do runs one request with the retry policy: transport failures and
// 5xx retry up to the configured count; everything else is final.
func (c *Client) do(ctx context.Context, method, path string, body []byte, dest any) (bool, error) {
	log := logging.From(ctx)
	if log == nil {
		log = c.log
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		found, retryable, err := c.once(ctx, log, method, path, body, dest)
		if err == nil {
			return found, nil
		}
		if !retryable {
			return false, err
		}
		lastErr = err
	}
	return false, lastErr
}

func (c *Client) once(ctx context.Context, log *zap.Logger, method, path string, body []byte, dest any) (found, retryable bool, err error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, false, fmt.Errorf("%w: unable to build mirror request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.UpstreamDuration.WithLabelValues("mirror").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("mirror", "error").Inc()
		return false, true, fmt.Errorf("%w: mirror node unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.UpstreamCalls.WithLabelValues("mirror", "error").Inc()
		return false, true, fmt.Errorf("%w: unable to read mirror response", err)
	}

	log.Debug("mirror node request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.UpstreamCalls.WithLabelValues("mirror", "success").Inc()
		return false, false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		metrics.UpstreamCalls.WithLabelValues("mirror", "success").Inc()
		if dest != nil {
			if err := json.Unmarshal(payload, dest); err != nil {
				return false, false, fmt.Errorf("%w: unable to decode mirror response", err)
			}
		}
		return true, false, nil
	case resp.StatusCode >= 500:
		metrics.UpstreamCalls.WithLabelValues("mirror", "error").Inc()
		return false, true, newError(resp.StatusCode, payload)
	default:
		metrics.UpstreamCalls.WithLabelValues("mirror", "error").Inc()
		return false, false, newError(resp.StatusCode, payload)
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func limitOrDefault(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	return limit
}
