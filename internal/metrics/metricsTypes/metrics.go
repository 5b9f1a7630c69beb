package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

const (
	Label_EventName = "eventName"
	Label_Method    = "method"
	Label_Reason    = "reason"
)

var (
	Metric_Incr_EventProcessed          = "events_processed"
	Metric_Incr_EventDuplicate          = "events_duplicate"
	Metric_Incr_EventOutOfOrder         = "events_out_of_order"
	Metric_Incr_HandlerError            = "handler_errors"
	Metric_Incr_ExternalReadUnavailable = "external_read_unavailable"
	Metric_Incr_VaultRegistered         = "vaults_registered"
	Metric_Incr_EntitiesWritten         = "entities_written"
	Metric_Incr_StateRootPublishFailed  = "state_root_publish_failed"

	Metric_Gauge_LastProcessedBlock = "last_processed_block"
	Metric_Gauge_LastStateRootBlock = "last_state_root_block"

	Metric_Timing_HandlerDuration = "handler_duration"
	Metric_Timing_BatchDuration   = "batch_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		{Name: Metric_Incr_EventProcessed, Labels: []string{Label_EventName}},
		{Name: Metric_Incr_EventDuplicate, Labels: []string{Label_EventName}},
		{Name: Metric_Incr_EventOutOfOrder, Labels: []string{Label_EventName}},
		{Name: Metric_Incr_HandlerError, Labels: []string{Label_EventName, Label_Reason}},
		{Name: Metric_Incr_ExternalReadUnavailable, Labels: []string{Label_Method}},
		{Name: Metric_Incr_VaultRegistered, Labels: []string{}},
		{Name: Metric_Incr_EntitiesWritten, Labels: []string{Label_EventName}},
		{Name: Metric_Incr_StateRootPublishFailed, Labels: []string{}},
	},
	MetricsType_Gauge: {
		{Name: Metric_Gauge_LastProcessedBlock, Labels: []string{}},
		{Name: Metric_Gauge_LastStateRootBlock, Labels: []string{}},
	},
	MetricsType_Timing: {
		{Name: Metric_Timing_HandlerDuration, Labels: []string{Label_EventName}},
		{Name: Metric_Timing_BatchDuration, Labels: []string{}},
	},
}
