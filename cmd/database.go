package cmd

import (
	"fmt"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runDatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Initialize the entity store and run migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		store, db, err := openEntityStore(cfg, l)
		if err != nil {
			l.Sugar().Errorw("Failed to initialize entity store", zap.Error(err))
			return err
		}
		defer store.Close()
		if db != nil {
			defer db.Close()
		}

		l.Sugar().Infow("Entity store is ready", zap.String("backend", string(cfg.EntityStoreConfig.Backend)))
		return nil
	},
}
