package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/range-protocol/vault-sidecar/internal/metrics/metricsTypes"
	"github.com/range-protocol/vault-sidecar/internal/metrics/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type recordingClient struct {
	names  []string
	labels [][]metricsTypes.MetricsLabel
	err    error
}

func (r *recordingClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	r.names = append(r.names, name)
	r.labels = append(r.labels, labels)
	return r.err
}

func (r *recordingClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	return r.Incr(name, labels, value)
}

func (r *recordingClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	return r.Incr(name, labels, 0)
}

func Test_MetricsSink(t *testing.T) {
	defaultLabel := metricsTypes.MetricsLabel{Name: "chain", Value: "mainnet"}

	t.Run("Fans out to every client with default labels", func(t *testing.T) {
		a, b := &recordingClient{}, &recordingClient{}
		sink, err := NewMetricsSink(&MetricsSinkConfig{DefaultLabels: []metricsTypes.MetricsLabel{defaultLabel}}, []metricsTypes.IMetricsClient{a, b})
		assert.Nil(t, err)

		err = sink.Incr(metricsTypes.Metric_Incr_EventProcessed, []metricsTypes.MetricsLabel{{Name: metricsTypes.Label_EventName, Value: "Minted"}}, 1)
		assert.Nil(t, err)
		assert.Nil(t, sink.Gauge(metricsTypes.Metric_Gauge_LastProcessedBlock, 10, nil))

		for _, c := range []*recordingClient{a, b} {
			assert.Equal(t, []string{metricsTypes.Metric_Incr_EventProcessed, metricsTypes.Metric_Gauge_LastProcessedBlock}, c.names)
			assert.Equal(t, []metricsTypes.MetricsLabel{defaultLabel, {Name: metricsTypes.Label_EventName, Value: "Minted"}}, c.labels[0])
			assert.Equal(t, []metricsTypes.MetricsLabel{defaultLabel}, c.labels[1])
		}
	})
	t.Run("Stops on the first client error", func(t *testing.T) {
		a, b := &recordingClient{err: errors.New("unreachable")}, &recordingClient{}
		sink, _ := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{a, b})

		assert.NotNil(t, sink.Timing(metricsTypes.Metric_Timing_BatchDuration, time.Second, nil))
		assert.Len(t, b.names, 0)
	})
	t.Run("Noop sink accepts everything", func(t *testing.T) {
		sink := NewNoopMetricsSink()
		assert.Nil(t, sink.Incr("anything", nil, 1))
	})
	t.Run("Prometheus client tolerates unknown metrics and missing labels", func(t *testing.T) {
		client, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{Metrics: metricsTypes.MetricTypes}, zap.NewNop())
		assert.Nil(t, err)

		sink, _ := NewMetricsSink(&MetricsSinkConfig{DefaultLabels: []metricsTypes.MetricsLabel{defaultLabel}}, []metricsTypes.IMetricsClient{client})
		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_HandlerError, []metricsTypes.MetricsLabel{{Name: metricsTypes.Label_EventName, Value: "Burned"}}, 1))
		assert.Nil(t, sink.Incr("not_registered", nil, 1))

		families, err := client.Registry().Gather()
		assert.Nil(t, err)
		found := false
		for _, f := range families {
			if f.GetName() == metricsTypes.Metric_Incr_HandlerError {
				found = true
				assert.Equal(t, float64(1), f.GetMetric()[0].GetCounter().GetValue())
			}
		}
		assert.True(t, found)
	})
}
