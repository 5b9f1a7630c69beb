package eventBusTypes

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
)

const (
	Event_EventCommitted     = "eventCommitted"
	Event_StateRootGenerated = "stateRootGenerated"
)

type Event struct {
	Name string
	Data any
}

type ConsumerId string

type Consumer struct {
	Id      ConsumerId
	Context context.Context
	Channel chan *Event
}

// ConsumerList holds the subscribed consumers keyed by id.
type ConsumerList struct {
	consumers *xsync.Map[ConsumerId, *Consumer]
}

func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: xsync.NewMap[ConsumerId, *Consumer](),
	}
}

func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.consumers.Store(consumer.Id, consumer)
}

func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.consumers.Delete(consumer.Id)
}

func (cl *ConsumerList) GetAll() []*Consumer {
	all := make([]*Consumer, 0, cl.consumers.Size())
	cl.consumers.Range(func(_ ConsumerId, c *Consumer) bool {
		all = append(all, c)
		return true
	})
	return all
}

type IEventBus interface {
	Subscribe(consumer *Consumer)
	Unsubscribe(consumer *Consumer)
	Publish(event *Event)
}

// CommittedEventData is published after the records changed by one log are written.
type CommittedEventData struct {
	Vault           string
	EventName       string
	TransactionHash string
	LogIndex        uint64
	BlockNumber     uint64
	Operations      []*entityStore.Operation
}

type StateRootData struct {
	StateRoot *entities.VaultStateRoot
}
