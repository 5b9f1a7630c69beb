package cmd

import (
	"context"
	"fmt"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/pkg/eventSource/csvEventSource"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Apply decoded logs from a CSV file",
	Long:  "Apply decoded logs from a CSV file, in chain order, then exit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if cfg.ReplayConfig.InputFile == "" {
			return fmt.Errorf("input path i.e. `replay.input-file` must be specified")
		}
		if err := cfg.Validate(); err != nil {
			l.Sugar().Errorw("Invalid configuration", zap.Error(err))
			return err
		}

		e, err := buildEngine(cfg, l)
		if err != nil {
			l.Sugar().Errorw("Failed to build engine", zap.Error(err))
			return err
		}
		defer e.Close(l)

		source := csvEventSource.NewCsvEventSource(&csvEventSource.CsvEventSourceConfig{
			InputFile:    cfg.ReplayConfig.InputFile,
			BatchSize:    cfg.IndexerConfig.BatchSize,
			ShowProgress: true,
		}, l)
		defer source.Close()

		n := e.startNotifier(context.Background(), nil, l)
		defer n.Stop()

		if err := e.pipeline.Run(context.Background(), source); err != nil {
			return fmt.Errorf("failed to replay %s: %w", cfg.ReplayConfig.InputFile, err)
		}
		return nil
	},
}
