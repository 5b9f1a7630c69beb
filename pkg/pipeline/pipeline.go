package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/metrics/metricsTypes"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/eventSource"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/stateManager"
	"go.uber.org/zap"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 1024
)

type Pipeline struct {
	stateManager *stateManager.VaultStateManager
	pool         pond.Pool
	metricsSink  *metrics.MetricsSink
	logger       *zap.Logger
	globalConfig *config.Config
}

// BatchResult summarises one applied batch.
type BatchResult struct {
	Applied    int64
	Skipped    int64
	Vaults     int
	StateRoots []*entities.VaultStateRoot
}

func NewPipeline(
	sm *stateManager.VaultStateManager,
	ms *metrics.MetricsSink,
	l *zap.Logger,
	cfg *config.Config,
) *Pipeline {
	workers := cfg.IndexerConfig.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.IndexerConfig.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Pipeline{
		stateManager: sm,
		pool:         pond.NewPool(workers, pond.WithQueueSize(queueSize)),
		metricsSink:  ms,
		logger:       l,
		globalConfig: cfg,
	}
}

// partition groups logs by the vault they apply to, keeping chain order within
// each vault. Logs nothing handles are dropped.
func (p *Pipeline) partition(logs []*storage.TransactionLog) (map[string][]*storage.TransactionLog, []string, int64, error) {
	sorted := slices.Clone(logs)
	slices.SortStableFunc(sorted, func(a, b *storage.TransactionLog) int {
		switch {
		case a.IsBefore(b):
			return -1
		case b.IsBefore(a):
			return 1
		default:
			return 0
		}
	})

	partitions := make(map[string][]*storage.TransactionLog)
	order := make([]string, 0)
	skipped := int64(0)
	for _, log := range sorted {
		key, err := p.stateManager.PartitionKey(log)
		if err != nil {
			if !p.stateManager.IsInterestingLog(log) {
				skipped++
				continue
			}
			return nil, nil, 0, fmt.Errorf("failed to partition log %s/%d: %w", log.TransactionHash, log.LogIndex, err)
		}
		if _, ok := partitions[key]; !ok {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], log)
	}
	return partitions, order, skipped, nil
}

// ProcessBatch applies a batch of logs. Each vault's logs run sequentially on one
// worker; different vaults run in parallel. The first failure cancels the
// remaining vaults and is returned.
func (p *Pipeline) ProcessBatch(ctx context.Context, logs []*storage.TransactionLog) (*BatchResult, error) {
	start := time.Now()
	partitions, order, skipped, err := p.partition(logs)
	if err != nil {
		p.logger.Sugar().Errorw("Failed to partition batch", zap.Error(err))
		return nil, err
	}

	applied := xsync.NewCounter()
	ignored := xsync.NewCounter()
	ignored.Add(skipped)

	group := p.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, vault := range order {
		vaultLogs := partitions[vault]
		group.SubmitErr(func() error {
			for _, log := range vaultLogs {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				committed, err := p.stateManager.HandleLogStateChange(groupCtx, log)
				if err != nil {
					return fmt.Errorf("vault %s: log %s/%d (%s): %w", vault, log.TransactionHash, log.LogIndex, log.EventName, err)
				}
				if committed == nil {
					ignored.Inc()
					continue
				}
				applied.Inc()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
			err = ctx.Err()
		}
		p.logger.Sugar().Errorw("Failed to process batch",
			zap.Int("logs", len(logs)),
			zap.Int("vaults", len(order)),
			zap.Error(err),
		)
		return nil, err
	}

	result := &BatchResult{
		Applied: applied.Value(),
		Skipped: ignored.Value(),
		Vaults:  len(order),
	}
	if p.globalConfig.IndexerConfig.StateRoots {
		roots, err := p.stateManager.FlushStateRoots()
		if err != nil {
			p.logger.Sugar().Errorw("Failed to flush state roots", zap.Error(err))
			return nil, err
		}
		result.StateRoots = roots
	}

	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_BatchDuration, time.Since(start), nil)
	p.logger.Sugar().Debugw("Processed batch",
		zap.Int("logs", len(logs)),
		zap.Int64("applied", result.Applied),
		zap.Int64("skipped", result.Skipped),
		zap.Int("vaults", result.Vaults),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Run consumes batches from the source until it is exhausted or ctx is done.
func (p *Pipeline) Run(ctx context.Context, source eventSource.IEventSource) error {
	p.logger.Sugar().Infow("Starting pipeline",
		zap.Int("workers", p.pool.MaxConcurrency()),
		zap.Strings("events", p.stateManager.GetRegisteredEvents()),
	)
	return source.Run(ctx, func(ctx context.Context, logs []*storage.TransactionLog) error {
		_, err := p.ProcessBatch(ctx, logs)
		return err
	})
}

func (p *Pipeline) Close() {
	p.pool.StopAndWait()
}
