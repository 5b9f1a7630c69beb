package eventBus

import (
	"context"
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/pkg/eventBus/eventBusTypes"
	"github.com/stretchr/testify/assert"
)

func setup() *EventBus {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	return NewEventBus(l)
}

func Test_EventBus(t *testing.T) {
	t.Run("Delivers to every subscribed consumer", func(t *testing.T) {
		eb := setup()
		a := &eventBusTypes.Consumer{Id: "a", Context: context.Background(), Channel: make(chan *eventBusTypes.Event, 10)}
		b := &eventBusTypes.Consumer{Id: "b", Context: context.Background(), Channel: make(chan *eventBusTypes.Event, 10)}
		eb.Subscribe(a)
		eb.Subscribe(b)

		eb.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_EventCommitted,
			Data: &eventBusTypes.CommittedEventData{EventName: "Transfer", LogIndex: 3},
		})

		assert.Len(t, a.Channel, 1)
		assert.Len(t, b.Channel, 1)
		received := <-a.Channel
		data, ok := received.Data.(*eventBusTypes.CommittedEventData)
		assert.True(t, ok)
		assert.Equal(t, uint64(3), data.LogIndex)
	})
	t.Run("A full consumer does not block publishing", func(t *testing.T) {
		eb := setup()
		c := &eventBusTypes.Consumer{Id: "slow", Context: context.Background(), Channel: make(chan *eventBusTypes.Event, 2)}
		eb.Subscribe(c)

		for i := 0; i < 10; i++ {
			eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_EventCommitted})
		}
		assert.Len(t, c.Channel, 2)
	})
	t.Run("Unsubscribed and cancelled consumers receive nothing", func(t *testing.T) {
		eb := setup()
		gone := &eventBusTypes.Consumer{Id: "gone", Context: context.Background(), Channel: make(chan *eventBusTypes.Event, 10)}
		ctx, cancel := context.WithCancel(context.Background())
		cancelled := &eventBusTypes.Consumer{Id: "cancelled", Context: ctx, Channel: make(chan *eventBusTypes.Event, 10)}
		eb.Subscribe(gone)
		eb.Subscribe(cancelled)
		eb.Unsubscribe(gone)
		cancel()

		eb.Publish(&eventBusTypes.Event{Name: eventBusTypes.Event_StateRootGenerated})
		assert.Len(t, gone.Channel, 0)
		assert.Len(t, cancelled.Channel, 0)
	})
}
