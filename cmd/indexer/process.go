package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityLedger/internal/chain"
	"liquidityLedger/internal/config"
	"liquidityLedger/internal/ledger"
	"liquidityLedger/internal/manifest"
	"liquidityLedger/internal/mapping"
	"liquidityLedger/internal/processor"
	"liquidityLedger/internal/store"
	"liquidityLedger/internal/templates"
)

func runProcess(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProcess(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	m, err := manifest.LoadFile(cfg.Manifest)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	if m.ChainID != 0 {
		chainID, err := chainClient.GetChainID(ctx)
		if err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		if !chainID.IsUint64() || chainID.Uint64() != m.ChainID {
			return fmt.Errorf("rpc chain id %s does not match manifest chain id %d", chainID, m.ChainID)
		}
	}

	entities, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer entities.Close()

	// handlers write into a per-event set layered on a per-batch set; only
	// the checkpointer writes through to the backend
	batch := store.NewWriteSet(entities)
	events := store.NewWriteSet(batch)

	registry := templates.NewRegistry(events, logger)
	restored, err := registry.Restore(ctx)
	if err != nil {
		return err
	}

	balances := chain.NewRetryingBalances(chain.NewERC20Balances(chainClient), cfg.MaxRetries, cfg.RetryBackoff, logger)
	positions := ledger.NewLedger(events, balances, logger)
	handler := mapping.NewHandler(m, registry, positions, logger)

	proc := processor.NewProcessor(processor.Config{
		CheckpointEvery: cfg.CheckpointEvery,
		Checkpointer:    entities.checkpointer(cfg.StateName),
		Events:          events,
		Batch:           batch,
	}, handler, positions, logger)

	logger.Info("process start",
		zap.String("input", cfg.Input),
		zap.String("manifest", cfg.Manifest),
		zap.String("network", m.Network),
		zap.Int("factories", len(m.DataSources)),
		zap.Int("data_sources", restored),
		zap.Int("checkpoint_every", cfg.CheckpointEvery),
	)

	_, err = proc.Run(ctx, cfg.Input)
	return err
}
