package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore/levelDbEntityStore"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setup() (*zap.Logger, *levelDbEntityStore.LevelDbEntityStore, error) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	store, err := levelDbEntityStore.NewInMemoryLevelDbEntityStore(l)
	return l, store, err
}

func Test_EntitySnapshotter(t *testing.T) {
	l, source, err := setup()
	if err != nil {
		t.Fatal(err)
	}
	defer source.Close()

	uow := entityStore.NewUnitOfWork(source, 10)
	vault := entities.NewVault("0x1111111111111111111111111111111111111111")
	vault.PositionCount = 2
	uow.Save(vault)
	uow.Save(&entities.User{Id: "0xaaaa000000000000000000000000000000000001"})
	uow.Save(&entities.VaultStateRoot{Id: "0x1111111111111111111111111111111111111111-10", Vault: vault.Id, BlockNumber: 10, StateRoot: "0xabc", Leaves: 3})
	if _, err := uow.Commit(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "entities.jsonl")

	t.Run("Export counts every record type", func(t *testing.T) {
		header, err := NewEntitySnapshotter(source, l, false).Export(path)
		assert.Nil(t, err)
		assert.Equal(t, 1, header.Counts[entities.EntityType_Vault])
		assert.Equal(t, 1, header.Counts[entities.EntityType_User])
		assert.Equal(t, 1, header.Counts[entities.EntityType_VaultStateRoot])
		assert.Equal(t, 0, header.Counts[entities.EntityType_Position])

		entries, err := os.ReadDir(filepath.Dir(path))
		assert.Nil(t, err)
		assert.Len(t, entries, 1)
	})
	t.Run("Import restores the records", func(t *testing.T) {
		_, target, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer target.Close()

		_, err = NewEntitySnapshotter(target, l, false).Import(path)
		assert.Nil(t, err)

		restored, err := entities.LoadVault(entityStore.NewUnitOfWork(target, 0), vault.Id)
		assert.Nil(t, err)
		assert.Equal(t, uint64(2), restored.PositionCount)
		assert.Equal(t, "0", restored.TotalSupply.String())

		root, err := entities.LoadVaultStateRoot(entityStore.NewUnitOfWork(target, 0), "0x1111111111111111111111111111111111111111-10")
		assert.Nil(t, err)
		assert.Equal(t, "0xabc", root.StateRoot)
	})
	t.Run("Truncated snapshots are rejected", func(t *testing.T) {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		// drop the last record
		lines := 0
		cut := len(data)
		for i := len(data) - 2; i >= 0; i-- {
			if data[i] == '\n' {
				cut = i + 1
				lines++
				break
			}
		}
		assert.Equal(t, 1, lines)
		truncated := filepath.Join(t.TempDir(), "truncated.jsonl")
		if err := os.WriteFile(truncated, data[:cut], 0644); err != nil {
			t.Fatal(err)
		}

		_, target, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer target.Close()
		_, err = NewEntitySnapshotter(target, l, false).Import(truncated)
		assert.NotNil(t, err)
	})
}

func Test_ResolveFilePath(t *testing.T) {
	t.Run("Empty paths stay empty", func(t *testing.T) {
		p, err := resolveFilePath("")
		assert.Nil(t, err)
		assert.Equal(t, "", p)
	})
	t.Run("Relative paths become absolute", func(t *testing.T) {
		p, err := resolveFilePath("snapshot.dump")
		assert.Nil(t, err)
		assert.True(t, filepath.IsAbs(p))
	})
}
