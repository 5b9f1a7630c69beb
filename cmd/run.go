package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/internal/metrics/prometheus"
	"github.com/range-protocol/vault-sidecar/internal/shutdown"
	"github.com/range-protocol/vault-sidecar/pkg/eventSource/natsEventSource"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Consume decoded logs from NATS and apply them",
	RunE: func(cmd *cobra.Command, args []string) error {
		initCommandFlags(cmd)
		cfg := config.NewConfig()

		l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
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

		source, err := natsEventSource.NewNatsEventSource(&natsEventSource.NatsEventSourceConfig{
			Url:       cfg.NatsConfig.Url,
			Subject:   cfg.NatsConfig.Subject,
			Stream:    cfg.NatsConfig.Stream,
			Consumer:  cfg.NatsConfig.Consumer,
			BatchSize: cfg.IndexerConfig.BatchSize,

			StateRootSubject: cfg.NatsConfig.StateRootSubject,
		}, l)
		if err != nil {
			e.Close(l)
			l.Sugar().Errorw("Failed to connect to NATS", zap.Error(err))
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if e.prometheus != nil {
			prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, e.prometheus.Registry(), l).Start(ctx)
		}

		n := e.startNotifier(ctx, source, l)

		runErr := make(chan error, 1)
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			err := e.pipeline.Run(ctx, source)
			if err != nil && !errors.Is(err, context.Canceled) {
				l.Sugar().Errorw("Pipeline stopped", zap.Error(err))
				runErr <- err
			}
			cancel()
		}()

		if head, err := e.ethereumClient.GetBlockNumberUint64(ctx); err != nil {
			l.Sugar().Warnw("Failed to reach the ethereum node, external reads will be unavailable", zap.Error(err))
		} else {
			chainId, _ := e.ethereumClient.GetChainId(ctx)
			l.Sugar().Infow("Connected to ethereum node",
				zap.Uint64("headBlock", head),
				zap.Uint64("chainId", chainId),
			)
		}

		l.Sugar().Infow("Started vault sidecar",
			zap.Strings("factories", cfg.GetFactoryAddresses()),
			zap.String("entityStore", string(cfg.EntityStoreConfig.Backend)),
		)

		shutdown.ListenForShutdown(ctx, shutdown.CreateGracefulShutdownChannel(), cancel, stopped, func() {
			n.Stop()
			if err := source.Close(); err != nil {
				l.Sugar().Errorw("Failed to close event source", zap.Error(err))
			}
			e.Close(l)
		}, 5*time.Second, l)

		select {
		case err := <-runErr:
			return err
		default:
			return nil
		}
	},
}
