package storage

import (
	"time"
)

// Argument is a single decoded event argument as produced by the ABI decoder.
type Argument struct {
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Value   interface{} `json:"value"`
	Indexed bool        `json:"indexed"`
}

// TransactionLog is a decoded contract event. Arguments holds the JSON encoded
// []Argument list and OutputData the JSON encoded non-indexed outputs.
type TransactionLog struct {
	TransactionHash  string    `json:"transactionHash" csv:"transaction_hash"`
	TransactionIndex uint64    `json:"transactionIndex" csv:"transaction_index"`
	BlockNumber      uint64    `json:"blockNumber" csv:"block_number"`
	BlockTimestamp   uint64    `json:"blockTimestamp" csv:"block_timestamp"`
	Address          string    `json:"address" csv:"address"`
	Arguments        string    `json:"arguments" csv:"arguments"`
	EventName        string    `json:"eventName" csv:"event_name"`
	LogIndex         uint64    `json:"logIndex" csv:"log_index"`
	OutputData       string    `json:"outputData" csv:"output_data"`
	CreatedAt        time.Time `json:"-" csv:"-"`
}

// IsBefore reports whether l precedes other in chain order.
func (l *TransactionLog) IsBefore(other *TransactionLog) bool {
	if l.BlockNumber != other.BlockNumber {
		return l.BlockNumber < other.BlockNumber
	}
	return l.LogIndex < other.LogIndex
}

func (l *TransactionLog) IsSamePosition(other *TransactionLog) bool {
	return l.BlockNumber == other.BlockNumber && l.LogIndex == other.LogIndex
}
