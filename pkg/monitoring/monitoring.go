package monitoring

import (
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/metrics/metricsTypes"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"go.uber.org/zap"
)

// IMonitoringRegistry tracks the vault addresses whose events are delivered.
type IMonitoringRegistry interface {
	RegisterForMonitoring(address string)
	IsMonitored(address string) bool
}

// Registry caches monitored addresses in memory. A cache miss falls back to the
// presence of the Vault record, so registrations survive restarts. Only positive
// lookups are cached; unrelated addresses on the stream never grow the cache.
type Registry struct {
	store       entityStore.IEntityStore
	cache       *xsync.Map[string, struct{}]
	logger      *zap.Logger
	metricsSink *metrics.MetricsSink
}

func NewRegistry(store entityStore.IEntityStore, ms *metrics.MetricsSink, l *zap.Logger) *Registry {
	return &Registry{
		store:       store,
		cache:       xsync.NewMap[string, struct{}](),
		logger:      l,
		metricsSink: ms,
	}
}

func (r *Registry) RegisterForMonitoring(address string) {
	address = utils.NormalizeAddress(address)
	if _, loaded := r.cache.LoadOrStore(address, struct{}{}); loaded {
		return
	}
	r.logger.Sugar().Infow("Registered vault for monitoring", zap.String("vault", address))
	_ = r.metricsSink.Incr(metricsTypes.Metric_Incr_VaultRegistered, nil, 1)
}

func (r *Registry) IsMonitored(address string) bool {
	address = utils.NormalizeAddress(address)
	if _, ok := r.cache.Load(address); ok {
		return true
	}
	_, found, err := r.store.Get(entities.EntityType_Vault, address)
	if err != nil {
		r.logger.Sugar().Errorw("Failed to check vault registration",
			zap.String("vault", address),
			zap.Error(err),
		)
		return false
	}
	if !found {
		return false
	}
	r.cache.Store(address, struct{}{})
	return true
}
