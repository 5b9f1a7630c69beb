package notifier

import (
	"context"

	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/metrics/metricsTypes"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/eventBus/eventBusTypes"
	"go.uber.org/zap"
)

const (
	consumerId        eventBusTypes.ConsumerId = "notifier"
	defaultBufferSize                          = 1024
)

// IStateRootPublisher forwards committed state roots to downstream readers.
type IStateRootPublisher interface {
	PublishStateRoot(ctx context.Context, root *entities.VaultStateRoot) error
}

// Notifier consumes commit notifications from the event bus. It records what each
// commit wrote, logs every state root and forwards roots to an optional publisher.
type Notifier struct {
	bus         eventBusTypes.IEventBus
	publisher   IStateRootPublisher
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger

	consumer *eventBusTypes.Consumer
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewNotifier builds a notifier. publisher may be nil.
func NewNotifier(bus eventBusTypes.IEventBus, publisher IStateRootPublisher, ms *metrics.MetricsSink, l *zap.Logger) *Notifier {
	return &Notifier{
		bus:         bus,
		publisher:   publisher,
		metricsSink: ms,
		logger:      l,
	}
}

// Start subscribes to the bus and handles events until Stop is called or ctx is done.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.consumer = &eventBusTypes.Consumer{
		Id:      consumerId,
		Context: ctx,
		Channel: make(chan *eventBusTypes.Event, defaultBufferSize),
	}
	n.bus.Subscribe(n.consumer)

	go func() {
		defer close(n.done)
		for {
			select {
			case event := <-n.consumer.Channel:
				n.handle(ctx, event)
			case <-ctx.Done():
				n.drain()
				return
			}
		}
	}()
}

// drain handles the events already buffered when the notifier stops.
func (n *Notifier) drain() {
	for {
		select {
		case event := <-n.consumer.Channel:
			n.handle(context.Background(), event)
		default:
			return
		}
	}
}

// Stop unsubscribes and waits for buffered events to be handled.
func (n *Notifier) Stop() {
	if n.consumer == nil {
		return
	}
	n.bus.Unsubscribe(n.consumer)
	n.cancel()
	<-n.done
}

func (n *Notifier) handle(ctx context.Context, event *eventBusTypes.Event) {
	switch event.Name {
	case eventBusTypes.Event_EventCommitted:
		data, ok := event.Data.(*eventBusTypes.CommittedEventData)
		if !ok {
			return
		}
		_ = n.metricsSink.Incr(metricsTypes.Metric_Incr_EntitiesWritten, []metricsTypes.MetricsLabel{
			{Name: metricsTypes.Label_EventName, Value: data.EventName},
		}, float64(len(data.Operations)))
	case eventBusTypes.Event_StateRootGenerated:
		data, ok := event.Data.(*eventBusTypes.StateRootData)
		if !ok || data.StateRoot == nil {
			return
		}
		root := data.StateRoot
		n.logger.Sugar().Infow("State root generated",
			zap.String("vault", root.Vault),
			zap.Uint64("blockNumber", root.BlockNumber),
			zap.String("stateRoot", root.StateRoot),
		)
		_ = n.metricsSink.Gauge(metricsTypes.Metric_Gauge_LastStateRootBlock, float64(root.BlockNumber), nil)
		if n.publisher == nil {
			return
		}
		if err := n.publisher.PublishStateRoot(ctx, root); err != nil {
			n.logger.Sugar().Errorw("Failed to publish state root",
				zap.String("vault", root.Vault),
				zap.Uint64("blockNumber", root.BlockNumber),
				zap.Error(err),
			)
			_ = n.metricsSink.Incr(metricsTypes.Metric_Incr_StateRootPublishFailed, nil, 1)
		}
	}
}
