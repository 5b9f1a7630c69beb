package cmd

import (
	"fmt"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/pkg/snapshot"
	"github.com/spf13/cobra"
)

var restoreSnapshotCmd = &cobra.Command{
	Use:   "restore-snapshot",
	Short: "Restore the entity store from a snapshot",
	Long:  "Restore the entity store from a snapshot created with create-snapshot for the same backend.",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if cfg.EntityStoreConfig.Backend == config.EntityStoreBackend_LevelDb {
			if cfg.SnapshotConfig.InputFile == "" {
				return fmt.Errorf("restore snapshot file path i.e. `input-file` must be specified")
			}
			store, _, err := openEntityStore(cfg, l)
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := snapshot.NewEntitySnapshotter(store, l, true).Import(cfg.SnapshotConfig.InputFile); err != nil {
				return fmt.Errorf("failed to restore snapshot: %w", err)
			}
			return nil
		}

		svc, err := snapshot.NewSnapshotService(&snapshot.SnapshotConfig{
			InputFile:  cfg.SnapshotConfig.InputFile,
			Host:       cfg.DatabaseConfig.Host,
			Port:       cfg.DatabaseConfig.Port,
			User:       cfg.DatabaseConfig.User,
			Password:   cfg.DatabaseConfig.Password,
			DbName:     cfg.DatabaseConfig.DbName,
			SchemaName: cfg.DatabaseConfig.SchemaName,
		}, l)
		if err != nil {
			return err
		}

		if err := svc.RestoreSnapshot(); err != nil {
			return fmt.Errorf("failed to restore snapshot: %w", err)
		}

		return nil
	},
}
