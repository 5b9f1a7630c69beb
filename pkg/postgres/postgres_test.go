package postgres

import (
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/internal/tests"
	"github.com/range-protocol/vault-sidecar/pkg/postgres/migrations"
	"github.com/stretchr/testify/assert"
)

func Test_PostgresConfig(t *testing.T) {
	t.Run("Copies the database settings", func(t *testing.T) {
		pgConfig := PostgresConfigFromDbConfig(&config.DatabaseConfig{
			Host:       "db",
			Port:       6543,
			User:       "vaults",
			DbName:     "vault_sidecar",
			SchemaName: "indexer",
		})
		assert.Equal(t, "db", pgConfig.Host)
		assert.Equal(t, 6543, pgConfig.Port)
		assert.Equal(t, "vaults", pgConfig.Username)
		assert.Equal(t, "vault_sidecar", pgConfig.DbName)
		assert.Equal(t, "indexer", pgConfig.SchemaName)
	})
}

func Test_Postgres(t *testing.T) {
	if !tests.HasTestDatabase() {
		t.Skip("TEST_DB_HOST not set")
	}
	cfg := &config.Config{DatabaseConfig: *tests.GetDbConfigFromEnv()}

	testDbName, err := tests.GenerateTestDbName()
	if err != nil {
		t.Fatalf("Failed to generate test database name: %v", err)
	}
	cfg.DatabaseConfig.DbName = testDbName

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	pgConfig := PostgresConfigFromDbConfig(&cfg.DatabaseConfig)
	pgConfig.CreateDbIfNotExists = true
	pg, err := NewPostgres(pgConfig)
	if err != nil {
		t.Fatalf("Failed to setup postgres: %v", err)
	}

	grm, err := NewGormFromPostgresConnection(pg.Db)
	if err != nil {
		t.Fatalf("Failed to create gorm instance: %v", err)
	}
	defer TeardownTestDatabase(testDbName, cfg, grm, l)

	t.Run("Migrations run once", func(t *testing.T) {
		migrator := migrations.NewMigrator(pg.Db, grm, l)
		assert.Nil(t, migrator.MigrateAll())
		assert.Nil(t, migrator.MigrateAll())

		var count int64
		res := grm.Table("migrations").Count(&count)
		assert.Nil(t, res.Error)
		assert.Equal(t, int64(3), count)
	})
}
