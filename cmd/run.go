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

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/hashgraph/hedera-rpc-relay/cache"
	"github.com/hashgraph/hedera-rpc-relay/configuration"
	"github.com/hashgraph/hedera-rpc-relay/hbar"
	"github.com/hashgraph/hedera-rpc-relay/hedera"
	"github.com/hashgraph/hedera-rpc-relay/mirror"
	"github.com/hashgraph/hedera-rpc-relay/ratelimit"
	"github.com/hashgraph/hedera-rpc-relay/rpc"
	"github.com/hashgraph/hedera-rpc-relay/services"
	"github.com/hashgraph/hedera-rpc-relay/store"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the JSON-RPC relay",
	RunE:  runRunCmd,
}

func runRunCmd(*cobra.Command, []string) error {
	cfg, err := configuration.LoadConfiguration()
	if err != nil {
		return fmt.Errorf("%w: unable to load configuration", err)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: unable to build logger", err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("configuration loaded",
		zap.String("chainId", cfg.ChainID),
		zap.String("network", cfg.HederaNetwork),
		zap.Bool("readOnly", cfg.Mode == configuration.ReadOnly))

	// Shared store first: the cache, the rate limiter, and the HBAR
	// budget can all sit on it.
	var shared store.Store
	if cfg.RedisURL != "" {
		if shared, err = store.NewRedisStore(cfg.RedisURL); err != nil {
			return fmt.Errorf("%w: unable to connect to redis", err)
		}
	}

	masker := cache.NewMasker(cfg.SensitiveValues())
	cacheSvc := cache.NewService(log, shared, cfg.CacheTTL, masker)

	var ipLimiter *ratelimit.Limiter
	if !cfg.RateLimitDisabled {
		var counters ratelimit.Store
		if cfg.IPRateLimitStore == configuration.StoreShared && shared != nil {
			counters = ratelimit.NewSharedStore(shared)
		} else {
			counters = ratelimit.NewLRUStore()
		}
		ipLimiter = ratelimit.NewLimiter(log, counters, ratelimit.Limits{
			Expensive: cfg.RateLimitTier1,
			Default:   cfg.RateLimitTier2,
			Cheap:     cfg.RateLimitTier3,
			Window:    cfg.RateLimitDuration,
		})
	}

	planStore := shared
	if planStore == nil {
		planStore = store.NewMemoryStore()
	}
	hbarLimiter := hbar.NewLimiter(log, planStore, cfg.HbarLimitTotal, cfg.HbarLimitDuration)

	mirrorClient := mirror.NewClient(log, cfg)
	tracker := hbar.NewExpenseTracker(log, mirrorClient, hbarLimiter, hbar.RecordLookupAttempts, hbar.RecordLookupDelay)

	var consensus services.ConsensusSubmitter
	var hederaClient *hedera.Client
	if cfg.Mode == configuration.ReadWrite {
		if hederaClient, err = hedera.NewClient(log, cfg, tracker, hbarLimiter); err != nil {
			return fmt.Errorf("%w: unable to build consensus client", err)
		}
		consensus = hederaClient
	}

	common := services.NewCommonService(log, mirrorClient)
	blockSvc := services.NewBlockService(log, mirrorClient, common, cfg.MaxGasPerSec)

	dispatcher := rpc.NewDispatcher(log, cacheSvc, ipLimiter, cfg.Mode == configuration.ReadOnly)
	dispatcher.Register(rpc.Routes(&rpc.Services{
		Common:      common,
		Block:       blockSvc,
		Transaction: services.NewTransactionService(log, mirrorClient, common),
		Fee:         services.NewFeeService(log, mirrorClient, common, cfg.GasPriceBuffer, cfg.FeeHistoryMaxResults, cfg.FeeHistoryFixed),
		Account:     services.NewAccountService(log, mirrorClient, common),
		Contract: services.NewContractService(log, mirrorClient, common, consensus, hbarLimiter,
			cfg.ChainID, cfg.TxDefaultGas, cfg.MaxGasPerSec, cfg.SendRawTxSizeLimit),
		Filter:  services.NewFilterService(log, mirrorClient, common, cacheSvc, cfg.FilterAPIEnabled, cfg.FilterTTL),
		Debug:   services.NewDebugService(log, mirrorClient, cfg.DebugAPIEnabled),
		Net:     services.NewNetService(cfg.ChainID),
		Web3:    services.NewWeb3Service(),
		ChainID: cfg.ChainID,
	})...)

	manager := rpc.NewManager()
	poller := rpc.NewPoller(log, common, blockSvc, manager, cfg.WSPollingInterval)

	readiness := func(ctx context.Context) error {
		_, err := mirrorClient.GetLatestBlock(ctx)
		return err
	}
	httpServer := rpc.NewServer(log, cfg, dispatcher, readiness)
	wsServer := rpc.NewWSServer(log, cfg, dispatcher, manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleSignals([]context.CancelFunc{cancel})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(httpServer.ListenAndServe)
	group.Go(wsServer.ListenAndServe)
	group.Go(func() error {
		poller.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		_ = wsServer.Shutdown(shutdownCtx)
		_ = httpServer.Shutdown(shutdownCtx)
		if hederaClient != nil {
			_ = hederaClient.Close()
		}
		if shared != nil {
			_ = shared.Close()
		}
		return nil
	})

	err = group.Wait()
	if SignalReceived {
		color.Red("relay halted after signal")
		return nil
	}
	return err
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parsed)
	return config.Build()
}
