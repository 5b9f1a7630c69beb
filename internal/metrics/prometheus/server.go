package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PrometheusServerConfig struct {
	Port int
}

type PrometheusServer struct {
	config   *PrometheusServerConfig
	registry *prometheus.Registry
	logger   *zap.Logger
}

func NewPrometheusServer(cfg *PrometheusServerConfig, registry *prometheus.Registry, l *zap.Logger) *PrometheusServer {
	return &PrometheusServer{
		config:   cfg,
		registry: registry,
		logger:   l,
	}
}

// Start serves /metrics until ctx is cancelled.
func (ps *PrometheusServer) Start(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ps.registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", ps.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ps.logger.Sugar().Info("Shutting down prometheus server")
		if err := httpServer.Shutdown(context.Background()); err != nil {
			ps.logger.Sugar().Errorw("Failed to shutdown prometheus server", zap.Error(err))
		}
	}()
	go func() {
		ps.logger.Sugar().Infow("Starting prometheus server", zap.Int("port", ps.config.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			ps.logger.Sugar().Fatalw("Failed to start prometheus server", zap.Error(err))
		}
	}()
}
