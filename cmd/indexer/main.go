package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "DEX liquidity position ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("store", "memory", "entity store (memory, postgres)")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")
	root.PersistentFlags().String("journal", "./data/entities.jsonl", "entity journal JSONL path (memory store)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Apply typed events to the liquidity ledger",
		RunE:  runProcess,
	}

	processCmd.Flags().String("in", "", "input typed events JSONL")
	processCmd.Flags().String("manifest", "./subgraph.yaml", "subgraph manifest path")
	processCmd.Flags().String("rpc", "", "RPC URL for balanceOf queries")
	processCmd.Flags().String("state-name", "ledger", "state name in indexer_state")
	processCmd.Flags().Int("checkpoint-every", 500, "handled events between checkpoints")
	processCmd.Flags().Int("max-retries", 5, "maximum balanceOf retry attempts")
	processCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	root.AddCommand(processCmd)

	registerCmd := &cobra.Command{
		Use:   "register",
		Short: "Register a pool data source from a template",
		RunE:  runRegister,
	}

	registerCmd.Flags().String("template", "", "template name (QuickswapPair, SushiswapPair, ComethPair)")
	registerCmd.Flags().String("address", "", "pool contract address")
	registerCmd.Flags().Uint64("block", 0, "block the data source starts at")
	registerCmd.Flags().StringToString("context", nil, "context values as key=type:value (comma-separated)")

	root.AddCommand(registerCmd)

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a stored entity, or list ids of a type",
		RunE:  runShow,
	}

	showCmd.Flags().String("type", "", "entity type (User, LiquidityPosition, UserLiquidityPositionDayData, Exception, DataSource)")
	showCmd.Flags().String("id", "", "entity id; empty lists ids")

	root.AddCommand(showCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
