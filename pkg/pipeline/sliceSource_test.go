package pipeline

import (
	"context"

	"github.com/range-protocol/vault-sidecar/pkg/eventSource"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
)

type sliceSource struct {
	batches [][]*storage.TransactionLog
}

func (s *sliceSource) Run(ctx context.Context, handler eventSource.BatchHandler) error {
	for _, batch := range s.batches {
		if err := handler(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *sliceSource) Close() error {
	return nil
}
