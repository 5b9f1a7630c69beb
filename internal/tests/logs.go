package tests

import (
	"encoding/json"
	"fmt"

	"github.com/range-protocol/vault-sidecar/pkg/storage"
)

// LogBuilder creates decoded logs in chain order with increasing log indexes.
type LogBuilder struct {
	Block     uint64
	Timestamp uint64
	logIndex  uint64
}

func NewLogBuilder(block uint64, timestamp uint64) *LogBuilder {
	return &LogBuilder{
		Block:     block,
		Timestamp: timestamp,
	}
}

// NextBlock moves to the following block, 12 seconds later.
func (b *LogBuilder) NextBlock() *LogBuilder {
	b.Block++
	b.Timestamp += 12
	b.logIndex = 0
	return b
}

// Log builds the next log of the current block. Output values are encoded as the
// non-indexed event output.
func (b *LogBuilder) Log(address string, eventName string, output map[string]interface{}) *storage.TransactionLog {
	log := NewTransactionLog(address, eventName, b.Block, b.logIndex, b.Timestamp, output)
	b.logIndex++
	return log
}

func NewTransactionLog(address string, eventName string, block uint64, logIndex uint64, timestamp uint64, output map[string]interface{}) *storage.TransactionLog {
	outputData := ""
	if output != nil {
		encoded, err := json.Marshal(output)
		if err != nil {
			panic(err)
		}
		outputData = string(encoded)
	}
	return &storage.TransactionLog{
		TransactionHash: fmt.Sprintf("0x%064x", block*1000+logIndex),
		BlockNumber:     block,
		BlockTimestamp:  timestamp,
		Address:         address,
		EventName:       eventName,
		LogIndex:        logIndex,
		OutputData:      outputData,
	}
}
