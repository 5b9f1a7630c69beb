package postgresEntityStore

import (
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/internal/tests"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/postgres"
	"github.com/stretchr/testify/assert"
)

func Test_PostgresEntityStore(t *testing.T) {
	if !tests.HasTestDatabase() {
		t.Skip("TEST_DB_HOST not set")
	}
	cfg := config.NewConfig()
	cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	dbName, _, grm, err := postgres.GetTestPostgresDatabase(cfg.DatabaseConfig, l)
	if err != nil {
		t.Fatal(err)
	}

	store := NewPostgresEntityStore(grm, l)

	t.Run("Upserts and reads back jsonb documents", func(t *testing.T) {
		err := store.Write([]*entityStore.Operation{
			{Kind: entityStore.OperationKind_Put, EntityType: "Vault", Id: "0x1", Data: []byte(`{"id": "0x1", "totalSupply": 1}`), BlockNumber: 1},
		})
		assert.Nil(t, err)

		err = store.Write([]*entityStore.Operation{
			{Kind: entityStore.OperationKind_Put, EntityType: "Vault", Id: "0x1", Data: []byte(`{"id": "0x1", "totalSupply": 115792089237316195423570985008687907853269984665640564039457584007913129639935}`), BlockNumber: 2},
		})
		assert.Nil(t, err)

		data, found, err := store.Get("Vault", "0x1")
		assert.Nil(t, err)
		assert.True(t, found)
		assert.Contains(t, string(data), "115792089237316195423570985008687907853269984665640564039457584007913129639935")
	})
	t.Run("A failing operation rolls back the whole write", func(t *testing.T) {
		err := store.Write([]*entityStore.Operation{
			{Kind: entityStore.OperationKind_Put, EntityType: "Vault", Id: "0x2", Data: []byte(`{"id": "0x2"}`)},
			{Kind: entityStore.OperationKind_Put, EntityType: "Vault", Id: "0x3", Data: []byte(`not json`)},
		})
		assert.NotNil(t, err)
		_, found, err := store.Get("Vault", "0x2")
		assert.Nil(t, err)
		assert.False(t, found)
	})
	t.Run("Deletes remove the record", func(t *testing.T) {
		err := store.Write([]*entityStore.Operation{{Kind: entityStore.OperationKind_Delete, EntityType: "Vault", Id: "0x1"}})
		assert.Nil(t, err)
		_, found, _ := store.Get("Vault", "0x1")
		assert.False(t, found)
	})
	t.Cleanup(func() {
		postgres.TeardownTestDatabase(dbName, cfg, grm, l)
	})
}
