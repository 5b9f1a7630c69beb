package csvEventSource

import (
	"context"
	"os"
	"slices"

	"github.com/gocarina/gocsv"
	"github.com/range-protocol/vault-sidecar/pkg/eventSource"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type CsvEventSourceConfig struct {
	InputFile    string
	BatchSize    int
	ShowProgress bool
}

// CsvEventSource replays decoded logs exported to a CSV file, one row per log.
type CsvEventSource struct {
	config *CsvEventSourceConfig
	logger *zap.Logger
}

func NewCsvEventSource(cfg *CsvEventSourceConfig, l *zap.Logger) *CsvEventSource {
	return &CsvEventSource{
		config: cfg,
		logger: l,
	}
}

// ReadLogs loads every row of the input file in chain order.
func (c *CsvEventSource) ReadLogs() ([]*storage.TransactionLog, error) {
	file, err := os.Open(c.config.InputFile)
	if err != nil {
		return nil, xerrors.Errorf("failed to open %s: %w", c.config.InputFile, err)
	}
	defer file.Close()

	logs := make([]*storage.TransactionLog, 0)
	if err := gocsv.UnmarshalFile(file, &logs); err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", c.config.InputFile, err)
	}
	slices.SortStableFunc(logs, func(a, b *storage.TransactionLog) int {
		switch {
		case a.IsBefore(b):
			return -1
		case b.IsBefore(a):
			return 1
		default:
			return 0
		}
	})
	return logs, nil
}

func (c *CsvEventSource) Run(ctx context.Context, handler eventSource.BatchHandler) error {
	logs, err := c.ReadLogs()
	if err != nil {
		c.logger.Sugar().Errorw("Failed to read logs", zap.String("inputFile", c.config.InputFile), zap.Error(err))
		return err
	}
	c.logger.Sugar().Infow("Replaying logs",
		zap.String("inputFile", c.config.InputFile),
		zap.Int("count", len(logs)),
	)

	var bar *progressbar.ProgressBar
	if c.config.ShowProgress {
		bar = progressbar.Default(int64(len(logs)), "replaying")
	} else {
		bar = progressbar.DefaultSilent(int64(len(logs)), "replaying")
	}
	defer bar.Close()

	for _, batch := range eventSource.SplitByBlock(logs, c.config.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := handler(ctx, batch); err != nil {
			c.logger.Sugar().Errorw("Failed to handle batch",
				zap.Uint64("fromBlock", batch[0].BlockNumber),
				zap.Uint64("toBlock", batch[len(batch)-1].BlockNumber),
				zap.Error(err),
			)
			return err
		}
		_ = bar.Add(len(batch))
	}
	c.logger.Sugar().Infow("Finished replaying logs", zap.Int("count", len(logs)))
	return nil
}

func (c *CsvEventSource) Close() error {
	return nil
}
