package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/metrics/prometheus"
	"github.com/range-protocol/vault-sidecar/pkg/clients/ethereum"
	"github.com/range-protocol/vault-sidecar/pkg/contractCaller/sequentialContractCaller"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore/levelDbEntityStore"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore/postgresEntityStore"
	"github.com/range-protocol/vault-sidecar/pkg/eventBus"
	"github.com/range-protocol/vault-sidecar/pkg/monitoring"
	"github.com/range-protocol/vault-sidecar/pkg/notifier"
	"github.com/range-protocol/vault-sidecar/pkg/pipeline"
	"github.com/range-protocol/vault-sidecar/pkg/postgres"
	"github.com/range-protocol/vault-sidecar/pkg/postgres/migrations"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/handlers"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/stateManager"
	"go.uber.org/zap"
)

// engine is everything needed to apply logs, built from the global config.
type engine struct {
	store          entityStore.IEntityStore
	db             *sql.DB
	ethereumClient *ethereum.Client
	stateManager   *stateManager.VaultStateManager
	eventBus       *eventBus.EventBus
	pipeline       *pipeline.Pipeline
	metricsSink    *metrics.MetricsSink
	prometheus     *prometheus.PrometheusMetricsClient
}

// openEntityStore opens the configured backend. For Postgres the migrations are run
// first; the returned *sql.DB must be closed by the caller.
func openEntityStore(cfg *config.Config, l *zap.Logger) (entityStore.IEntityStore, *sql.DB, error) {
	switch cfg.EntityStoreConfig.Backend {
	case config.EntityStoreBackend_LevelDb:
		store, err := levelDbEntityStore.NewLevelDbEntityStore(cfg.EntityStoreConfig.LevelDbPath, l)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case config.EntityStoreBackend_Postgres:
		pgConfig := postgres.PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
		pgConfig.CreateDbIfNotExists = true
		pgConfig.MaxOpenConns = cfg.IndexerConfig.Workers + 2

		pg, err := postgres.NewPostgres(pgConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to setup postgres connection: %w", err)
		}
		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			pg.Db.Close()
			return nil, nil, fmt.Errorf("failed to create gorm instance: %w", err)
		}
		migrator := migrations.NewMigrator(pg.Db, grm, l)
		if err := migrator.MigrateAll(); err != nil {
			pg.Db.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		return postgresEntityStore.NewPostgresEntityStore(grm, l), pg.Db, nil
	default:
		return nil, nil, fmt.Errorf("unknown entity store backend %q", cfg.EntityStoreConfig.Backend)
	}
}

func buildEngine(cfg *config.Config, l *zap.Logger) (*engine, error) {
	clients, pm, err := metrics.InitMetricsSinksFromConfig(cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics clients: %w", err)
	}
	ms, err := metrics.NewMetricsSink(&metrics.MetricsSinkConfig{}, clients)
	if err != nil {
		return nil, fmt.Errorf("failed to setup metrics sink: %w", err)
	}

	store, db, err := openEntityStore(cfg, l)
	if err != nil {
		return nil, err
	}

	client := ethereum.NewClient(ethereum.ConvertGlobalConfigToEthereumConfig(&cfg.EthereumRpcConfig), l)
	cc, err := sequentialContractCaller.NewSequentialContractCaller(client, l)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to setup contract caller: %w", err)
	}

	registry := monitoring.NewRegistry(store, ms, l)
	eb := eventBus.NewEventBus(l)
	sm := stateManager.NewVaultStateManager(store, registry, eb, ms, l, cfg)
	if _, err := handlers.NewVaultHandlers(sm, cc, cc.PoolAdapters(), registry, ms, l, cfg); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to register vault handlers: %w", err)
	}

	return &engine{
		store:          store,
		db:             db,
		ethereumClient: client,
		stateManager:   sm,
		eventBus:       eb,
		pipeline:       pipeline.NewPipeline(sm, ms, l, cfg),
		metricsSink:    ms,
		prometheus:     pm,
	}, nil
}

// startNotifier subscribes a notifier to the engine's commit notifications.
// publisher may be nil.
func (e *engine) startNotifier(ctx context.Context, publisher notifier.IStateRootPublisher, l *zap.Logger) *notifier.Notifier {
	n := notifier.NewNotifier(e.eventBus, publisher, e.metricsSink, l)
	n.Start(ctx)
	return n
}

func (e *engine) Close(l *zap.Logger) {
	e.pipeline.Close()
	if err := e.store.Close(); err != nil {
		l.Sugar().Errorw("Failed to close entity store", zap.Error(err))
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			l.Sugar().Errorw("Failed to close database", zap.Error(err))
		}
	}
}
