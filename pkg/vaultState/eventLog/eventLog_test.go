package eventLog

import (
	"errors"
	"math/big"
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore/levelDbEntityStore"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"github.com/stretchr/testify/assert"
)

const vaultAddress = "0x1111111111111111111111111111111111111111"

func setup() (entityStore.IEntityStore, error) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	return levelDbEntityStore.NewInMemoryLevelDbEntityStore(l)
}

func newSwap(txHash string, logIndex uint64) *entities.Swap {
	return &entities.Swap{
		EventRecordBase: entities.EventRecordBase{
			Id:              utils.SwapId(vaultAddress, 1_700_000_000),
			Vault:           vaultAddress,
			Timestamp:       1_700_000_000,
			TransactionHash: txHash,
			LogIndex:        logIndex,
			BlockNumber:     200,
		},
		ZeroForOne: true,
		Amount0:    big.NewInt(10),
		Amount1:    big.NewInt(-9),
	}
}

func appendAndCommit(t *testing.T, store entityStore.IEntityStore, rec *entities.Swap) (*entities.Swap, bool, error) {
	uow := entityStore.NewUnitOfWork(store, rec.BlockNumber)
	stored, staged, err := Append(uow, rec)
	if err != nil {
		return nil, false, err
	}
	if _, err := uow.Commit(); err != nil {
		t.Fatal(err)
	}
	return stored, staged, nil
}

func Test_Append(t *testing.T) {
	t.Run("Writes a new record", func(t *testing.T) {
		store, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		stored, staged, err := appendAndCommit(t, store, newSwap("0xaa", 1))
		assert.Nil(t, err)
		assert.True(t, staged)
		assert.Equal(t, utils.SwapId(vaultAddress, 1_700_000_000), stored.Id)
	})
	t.Run("The same log is written once", func(t *testing.T) {
		store, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		_, _, err = appendAndCommit(t, store, newSwap("0xaa", 1))
		assert.Nil(t, err)
		_, staged, err := appendAndCommit(t, store, newSwap("0xaa", 1))
		assert.Nil(t, err)
		assert.False(t, staged)
	})
	t.Run("A colliding record from another log gets a suffixed id", func(t *testing.T) {
		store, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		_, _, err = appendAndCommit(t, store, newSwap("0xaa", 1))
		assert.Nil(t, err)

		second, staged, err := appendAndCommit(t, store, newSwap("0xaa", 2))
		assert.Nil(t, err)
		assert.True(t, staged)
		assert.Equal(t, utils.SwapId(vaultAddress, 1_700_000_000)+"-c8-2", second.Id)

		uow := entityStore.NewUnitOfWork(store, 0)
		first, err := entityStore.Load[entities.Swap](uow, entities.EntityType_Swap, utils.SwapId(vaultAddress, 1_700_000_000))
		assert.Nil(t, err)
		assert.Equal(t, uint64(1), first.LogIndex)

		// redelivery of the second log resolves to the suffixed record
		_, staged, err = appendAndCommit(t, store, newSwap("0xaa", 2))
		assert.Nil(t, err)
		assert.False(t, staged)
	})
	t.Run("Fails when the suffixed id is taken by another log", func(t *testing.T) {
		store, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		_, _, err = appendAndCommit(t, store, newSwap("0xaa", 1))
		assert.Nil(t, err)
		_, _, err = appendAndCommit(t, store, newSwap("0xbb", 2))
		assert.Nil(t, err)

		_, _, err = appendAndCommit(t, store, newSwap("0xcc", 2))
		assert.True(t, errors.Is(err, types.ErrIdCollision))
	})
}
