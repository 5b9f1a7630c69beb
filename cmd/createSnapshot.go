package cmd

import (
	"fmt"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/pkg/snapshot"
	"github.com/spf13/cobra"
)

var createSnapshotCmd = &cobra.Command{
	Use:   "create-snapshot",
	Short: "Create a snapshot of the entity store",
	Long:  "Create a snapshot of the entity store. Postgres stores are dumped with pg_dump, leveldb stores are exported as JSON lines.",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if cfg.EntityStoreConfig.Backend == config.EntityStoreBackend_LevelDb {
			if cfg.SnapshotConfig.OutputFile == "" {
				return fmt.Errorf("output path i.e. `output-file` must be specified")
			}
			store, _, err := openEntityStore(cfg, l)
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := snapshot.NewEntitySnapshotter(store, l, true).Export(cfg.SnapshotConfig.OutputFile); err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}
			return nil
		}

		svc, err := snapshot.NewSnapshotService(&snapshot.SnapshotConfig{
			OutputFile: cfg.SnapshotConfig.OutputFile,
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

		if err := svc.CreateSnapshot(); err != nil {
			return fmt.Errorf("failed to create snapshot: %w", err)
		}

		return nil
	},
}
