package csvEventSource

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/stretchr/testify/assert"
)

const fixture = `transaction_hash,transaction_index,block_number,block_timestamp,address,arguments,event_name,log_index,output_data
0xbb,0,101,1212,0x1111111111111111111111111111111111111111,,Burned,0,"{""receiver"":""0x03"",""burnAmount"":10}"
0xaa,1,100,1200,0x1111111111111111111111111111111111111111,,Minted,4,"{""receiver"":""0x03"",""mintAmount"":100}"
0xaa,0,100,1200,0x2222222222222222222222222222222222222222,,VaultCreated,1,"{""vault"":""0x1111111111111111111111111111111111111111""}"
`

func setup(t *testing.T, batchSize int) *CsvEventSource {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	path := filepath.Join(t.TempDir(), "logs.csv")
	if err := os.WriteFile(path, []byte(fixture), 0644); err != nil {
		t.Fatal(err)
	}
	return NewCsvEventSource(&CsvEventSourceConfig{InputFile: path, BatchSize: batchSize}, l)
}

func Test_CsvEventSource(t *testing.T) {
	t.Run("Reads logs in chain order", func(t *testing.T) {
		source := setup(t, 10)
		logs, err := source.ReadLogs()
		assert.Nil(t, err)
		assert.Len(t, logs, 3)

		assert.Equal(t, "VaultCreated", logs[0].EventName)
		assert.Equal(t, "Minted", logs[1].EventName)
		assert.Equal(t, uint64(4), logs[1].LogIndex)
		assert.Equal(t, uint64(1200), logs[1].BlockTimestamp)
		assert.Equal(t, `{"receiver":"0x03","mintAmount":100}`, logs[1].OutputData)
		assert.Equal(t, "Burned", logs[2].EventName)
	})
	t.Run("Delivers one batch per block", func(t *testing.T) {
		source := setup(t, 1)
		batches := make([][]*storage.TransactionLog, 0)
		err := source.Run(context.Background(), func(ctx context.Context, logs []*storage.TransactionLog) error {
			batches = append(batches, logs)
			return nil
		})
		assert.Nil(t, err)
		assert.Len(t, batches, 2)
		assert.Len(t, batches[0], 2)
		assert.Equal(t, uint64(101), batches[1][0].BlockNumber)
	})
	t.Run("Stops on the first failed batch", func(t *testing.T) {
		source := setup(t, 1)
		calls := 0
		boom := errors.New("boom")
		err := source.Run(context.Background(), func(ctx context.Context, logs []*storage.TransactionLog) error {
			calls++
			return boom
		})
		assert.True(t, errors.Is(err, boom))
		assert.Equal(t, 1, calls)
	})
	t.Run("Missing files are reported", func(t *testing.T) {
		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		source := NewCsvEventSource(&CsvEventSourceConfig{InputFile: filepath.Join(t.TempDir(), "missing.csv")}, l)
		_, err := source.ReadLogs()
		assert.NotNil(t, err)
	})
}
