package natsEventSource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/eventSource"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"go.uber.org/zap"
)

const (
	defaultBatchSize = 500
	fetchMaxWait     = 2 * time.Second
	ackWait          = 60 * time.Second
	maxDeliver       = 10
)

type NatsEventSourceConfig struct {
	Url       string
	Subject   string
	Stream    string
	Consumer  string
	BatchSize int
	// StateRootSubject is where PublishStateRoot sends roots; empty disables it.
	StateRootSubject string
}

// NatsEventSource pulls decoded logs from a JetStream durable consumer. A fetched
// batch is acknowledged only after the handler succeeded; on failure it is
// negatively acknowledged and redelivered.
type NatsEventSource struct {
	config *NatsEventSourceConfig
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

func NewNatsEventSource(cfg *NatsEventSourceConfig, l *zap.Logger) (*NatsEventSource, error) {
	conn, err := nats.Connect(cfg.Url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			l.Sugar().Warnw("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			l.Sugar().Infow("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &NatsEventSource{
		config: cfg,
		conn:   conn,
		js:     js,
		logger: l,
	}, nil
}

// StateRootSubject returns the subject for a vault's roots: <subject>.<vault>.
func StateRootSubject(subject string, vault string) string {
	return fmt.Sprintf("%s.%s", subject, vault)
}

// EncodeStateRoot is the message body published for a state root.
func EncodeStateRoot(root *entities.VaultStateRoot) ([]byte, error) {
	return json.Marshal(root)
}

// PublishStateRoot publishes a committed root on the shared connection. It is a
// no-op without a configured subject.
func (n *NatsEventSource) PublishStateRoot(ctx context.Context, root *entities.VaultStateRoot) error {
	if n.config.StateRootSubject == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeStateRoot(root)
	if err != nil {
		return err
	}
	return n.conn.Publish(StateRootSubject(n.config.StateRootSubject, root.Vault), data)
}

// DecodeMessage decodes a message body holding either a single log or a JSON array
// of logs.
func DecodeMessage(data []byte) ([]*storage.TransactionLog, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty message")
	}
	if trimmed[0] == '[' {
		logs := make([]*storage.TransactionLog, 0)
		if err := json.Unmarshal(trimmed, &logs); err != nil {
			return nil, err
		}
		return logs, nil
	}
	log := &storage.TransactionLog{}
	if err := json.Unmarshal(trimmed, log); err != nil {
		return nil, err
	}
	return []*storage.TransactionLog{log}, nil
}

func (n *NatsEventSource) consumer(ctx context.Context) (jetstream.Consumer, error) {
	return n.js.CreateOrUpdateConsumer(ctx, n.config.Stream, jetstream.ConsumerConfig{
		Durable:       n.config.Consumer,
		FilterSubject: n.config.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
}

func (n *NatsEventSource) Run(ctx context.Context, handler eventSource.BatchHandler) error {
	consumer, err := n.consumer(ctx)
	if err != nil {
		n.logger.Sugar().Errorw("Failed to create consumer",
			zap.String("stream", n.config.Stream),
			zap.String("consumer", n.config.Consumer),
			zap.Error(err),
		)
		return err
	}
	batchSize := n.config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	n.logger.Sugar().Infow("Consuming logs",
		zap.String("stream", n.config.Stream),
		zap.String("subject", n.config.Subject),
		zap.String("consumer", n.config.Consumer),
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		batch, err := consumer.Fetch(batchSize, jetstream.FetchMaxWait(fetchMaxWait))
		if err != nil {
			n.logger.Sugar().Errorw("Failed to fetch messages", zap.Error(err))
			return err
		}

		msgs := make([]jetstream.Msg, 0, batchSize)
		logs := make([]*storage.TransactionLog, 0, batchSize)
		for msg := range batch.Messages() {
			decoded, err := DecodeMessage(msg.Data())
			if err != nil {
				// undecodable messages are never retried
				n.logger.Sugar().Errorw("Dropping undecodable message",
					zap.String("subject", msg.Subject()),
					zap.Error(err),
				)
				_ = msg.Term()
				continue
			}
			msgs = append(msgs, msg)
			logs = append(logs, decoded...)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			n.logger.Sugar().Warnw("Fetch ended with error", zap.Error(err))
		}
		if len(msgs) == 0 {
			continue
		}

		if err := handler(ctx, logs); err != nil {
			for _, msg := range msgs {
				_ = msg.Nak()
			}
			return err
		}
		for _, msg := range msgs {
			if err := msg.Ack(); err != nil {
				n.logger.Sugar().Warnw("Failed to ack message", zap.String("subject", msg.Subject()), zap.Error(err))
			}
		}
	}
}

func (n *NatsEventSource) Close() error {
	if n.conn != nil {
		return n.conn.Drain()
	}
	return nil
}
