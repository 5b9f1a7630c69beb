package eventSource

import (
	"context"

	"github.com/range-protocol/vault-sidecar/pkg/storage"
)

// BatchHandler applies a batch of decoded logs. A returned error stops the source;
// the batch is not acknowledged.
type BatchHandler func(ctx context.Context, logs []*storage.TransactionLog) error

type IEventSource interface {
	Run(ctx context.Context, handler BatchHandler) error
	Close() error
}

// SplitByBlock cuts logs into batches of at least batchSize logs without splitting a
// block across two batches. The logs must already be in chain order.
func SplitByBlock(logs []*storage.TransactionLog, batchSize int) [][]*storage.TransactionLog {
	batches := make([][]*storage.TransactionLog, 0)
	if len(logs) == 0 {
		return batches
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	current := make([]*storage.TransactionLog, 0, batchSize)
	for _, log := range logs {
		if len(current) >= batchSize && current[len(current)-1].BlockNumber != log.BlockNumber {
			batches = append(batches, current)
			current = make([]*storage.TransactionLog, 0, batchSize)
		}
		current = append(current, log)
	}
	return append(batches, current)
}
