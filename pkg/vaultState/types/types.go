package types

import (
	"context"
	"errors"

	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
)

var (
	// ErrMissingRecord means a record that must exist was absent. It signals
	// an invariant violation or out-of-order delivery upstream.
	ErrMissingRecord      = errors.New("missing record")
	ErrZeroBalance        = errors.New("transfer from a zero balance")
	ErrNegativeBalance    = errors.New("balance would become negative")
	ErrVaultAlreadyExists = errors.New("vault already exists")
	ErrNoCurrentPosition  = errors.New("vault has no current position")
	ErrOutOfOrderEvent    = errors.New("event delivered out of order")
	ErrInvalidEventParams = errors.New("invalid event parameters")
	ErrIdCollision        = errors.New("event record id collision")
)

// EventHandler applies one decoded log to the records staged in uow.
type EventHandler func(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error

const (
	Event_VaultCreated           = "VaultCreated"
	Event_Transfer               = "Transfer"
	Event_Minted                 = "Minted"
	Event_Burned                 = "Burned"
	Event_TicksSet               = "TicksSet"
	Event_LiquidityAdded         = "LiquidityAdded"
	Event_LiquidityRemoved       = "LiquidityRemoved"
	Event_FeesEarned             = "FeesEarned"
	Event_FeesUpdated            = "FeesUpdated"
	Event_UpdateManagerParams    = "UpdateManagerParams"
	Event_OwnershipTransferred   = "OwnershipTransferred"
	Event_Swapped                = "Swapped"
	Event_InThePositionStatusSet = "InThePositionStatusSet"
	Event_CollateralSupplied     = "CollateralSupplied"
	Event_CollateralWithdrawn    = "CollateralWithdrawn"
	Event_GhoMinted              = "GHOMinted"
	Event_GhoBurned              = "GHOBurned"
	Event_PoolRepegged           = "PoolRepegged"
)

type SlotID string

type MerkleLeafPrefix []byte

var (
	MerkleLeafPrefix_VaultBlock  MerkleLeafPrefix = []byte("0x03")
	MerkleLeafPrefix_VaultChange MerkleLeafPrefix = []byte("0x04")
)
