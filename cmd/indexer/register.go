package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liquidityLedger/internal/chain"
	"liquidityLedger/internal/config"
	"liquidityLedger/internal/model"
	"liquidityLedger/internal/templates"
)

func runRegister(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRegister(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	kind, err := templates.ParseKind(cfg.Template)
	if err != nil {
		return err
	}
	address, err := chain.ParseAddress(cfg.Address)
	if err != nil {
		return err
	}

	var dsContext model.DataSourceContext
	if len(cfg.Context) > 0 {
		dsContext = make(model.DataSourceContext, len(cfg.Context))
		for key, raw := range cfg.Context {
			value, err := model.ParseContextValue(raw)
			if err != nil {
				return fmt.Errorf("context %s: %w", key, err)
			}
			dsContext[key] = value
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entities, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer entities.Close()

	registry := templates.NewRegistry(entities, logger)
	if _, err := registry.Restore(ctx); err != nil {
		return err
	}
	return registry.CreateWithContext(ctx, kind, address, cfg.Block, dsContext)
}
