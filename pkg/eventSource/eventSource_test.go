package eventSource

import (
	"testing"

	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/stretchr/testify/assert"
)

func logsAt(blocks ...uint64) []*storage.TransactionLog {
	logs := make([]*storage.TransactionLog, 0, len(blocks))
	for i, b := range blocks {
		logs = append(logs, &storage.TransactionLog{BlockNumber: b, LogIndex: uint64(i)})
	}
	return logs
}

func Test_SplitByBlock(t *testing.T) {
	t.Run("Does not split a block", func(t *testing.T) {
		batches := SplitByBlock(logsAt(1, 1, 1, 2, 3, 3), 1)
		assert.Len(t, batches, 3)
		assert.Len(t, batches[0], 3)
		assert.Len(t, batches[1], 1)
		assert.Len(t, batches[2], 2)
	})
	t.Run("Keeps everything in one batch when it fits", func(t *testing.T) {
		batches := SplitByBlock(logsAt(1, 2, 3), 10)
		assert.Len(t, batches, 1)
		assert.Len(t, batches[0], 3)
	})
	t.Run("Empty input has no batches", func(t *testing.T) {
		assert.Len(t, SplitByBlock(nil, 5), 0)
	})
}
