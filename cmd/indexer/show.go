package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"liquidityLedger/internal/config"
	"liquidityLedger/internal/model"
	"liquidityLedger/internal/store"
)

func runShow(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadShow(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entities, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer entities.Close()

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetIndent("", "  ")

	if cfg.ID == "" {
		ids, err := entities.IDs(ctx, cfg.EntityType)
		if err != nil {
			return err
		}
		return out.Encode(ids)
	}

	entity, err := newEntity(cfg.EntityType, cfg.ID)
	if err != nil {
		return err
	}
	found, err := entities.Load(ctx, entity)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%s %s not found", cfg.EntityType, cfg.ID)
	}
	return out.Encode(entity)
}

func newEntity(entityType, id string) (store.Entity, error) {
	switch entityType {
	case model.UserType:
		return &model.User{ID: id}, nil
	case model.LiquidityPositionType:
		return &model.LiquidityPosition{ID: id}, nil
	case model.UserLiquidityPositionDayDataType:
		return &model.UserLiquidityPositionDayData{ID: id}, nil
	case model.ExceptionType:
		return &model.Exception{ID: id}, nil
	case model.DataSourceType:
		return &model.DataSource{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}
}
