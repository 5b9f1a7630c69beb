package entities

import (
	"math/big"

	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
)

// EventRecordBase holds the fields shared by the append-only event-log records.
type EventRecordBase struct {
	Id              string `json:"id"`
	Vault           string `json:"vault"`
	Timestamp       uint64 `json:"timestamp"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        uint64 `json:"logIndex"`
	BlockNumber     uint64 `json:"blockNumber"`
}

func (b *EventRecordBase) EntityId() string { return b.Id }

func (b *EventRecordBase) Base() *EventRecordBase { return b }

// IsSameEvent reports whether both records were produced by the same log.
func (b *EventRecordBase) IsSameEvent(other *EventRecordBase) bool {
	return b.TransactionHash == other.TransactionHash && b.LogIndex == other.LogIndex
}

type EventRecord interface {
	entityStore.Entity
	Base() *EventRecordBase
}

type Mint struct {
	EventRecordBase
	Receiver   string   `json:"receiver"`
	MintAmount *big.Int `json:"mintAmount"`
	Amount0In  *big.Int `json:"amount0In"`
	Amount1In  *big.Int `json:"amount1In"`
}

func (m *Mint) EntityType() string { return EntityType_Mint }

type Burn struct {
	EventRecordBase
	Receiver   string   `json:"receiver"`
	BurnAmount *big.Int `json:"burnAmount"`
	Amount0Out *big.Int `json:"amount0Out"`
	Amount1Out *big.Int `json:"amount1Out"`
}

func (b *Burn) EntityType() string { return EntityType_Burn }

type Swap struct {
	EventRecordBase
	ZeroForOne bool     `json:"zeroForOne"`
	Amount0    *big.Int `json:"amount0"`
	Amount1    *big.Int `json:"amount1"`
}

func (s *Swap) EntityType() string { return EntityType_Swap }

type FeeEarned struct {
	EventRecordBase
	Position string   `json:"position"`
	Amount0  *big.Int `json:"amount0"`
	Amount1  *big.Int `json:"amount1"`
}

func (f *FeeEarned) EntityType() string { return EntityType_FeeEarned }

type CollateralSupplied struct {
	EventRecordBase
	CollateralToken string   `json:"collateralToken"`
	AmountSupplied  *big.Int `json:"amountSupplied"`
}

func (c *CollateralSupplied) EntityType() string { return EntityType_CollateralSupplied }

type CollateralWithdrawn struct {
	EventRecordBase
	CollateralToken string   `json:"collateralToken"`
	AmountWithdrawn *big.Int `json:"amountWithdrawn"`
}

func (c *CollateralWithdrawn) EntityType() string { return EntityType_CollateralWithdrawn }

type GhoMinted struct {
	EventRecordBase
	CollateralToken string   `json:"collateralToken"`
	AmountMinted    *big.Int `json:"amountMinted"`
}

func (g *GhoMinted) EntityType() string { return EntityType_GhoMinted }

type GhoBurned struct {
	EventRecordBase
	CollateralToken string   `json:"collateralToken"`
	AmountBurned    *big.Int `json:"amountBurned"`
}

func (g *GhoBurned) EntityType() string { return EntityType_GhoBurned }

type PoolRepeg struct {
	EventRecordBase
}

func (p *PoolRepeg) EntityType() string { return EntityType_PoolRepeg }
