package migrations

import (
	"database/sql"
	"time"

	_202510010900_bootstrapDb "github.com/range-protocol/vault-sidecar/pkg/postgres/migrations/202510010900_bootstrapDb"
	_202510010930_entities "github.com/range-protocol/vault-sidecar/pkg/postgres/migrations/202510010930_entities"
	_202510011015_entityVaultIndex "github.com/range-protocol/vault-sidecar/pkg/postgres/migrations/202510011015_entityVaultIndex"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Migration interface {
	Up(db *sql.DB, grm *gorm.DB) error
	GetName() string
}

type Migrator struct {
	Db     *sql.DB
	GDb    *gorm.DB
	Logger *zap.Logger
}

func NewMigrator(db *sql.DB, gDb *gorm.DB, l *zap.Logger) *Migrator {
	return &Migrator{
		Db:     db,
		GDb:    gDb,
		Logger: l,
	}
}

func (m *Migrator) MigrateAll() error {
	migrations := []Migration{
		&_202510010900_bootstrapDb.Migration{},
		&_202510010930_entities.Migration{},
		&_202510011015_entityVaultIndex.Migration{},
	}

	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *Migrator) Migrate(migration Migration) error {
	name := migration.GetName()

	var migrationRecord Migrations
	result := m.GDb.Find(&migrationRecord, "name = ?", name).Limit(1)

	// the migrations table does not exist before bootstrapping
	if result.Error != nil && name != "202510010900_bootstrapDb" {
		m.Logger.Sugar().Errorw("Failed to find migration", zap.String("name", name), zap.Error(result.Error))
		return result.Error
	}
	if result.Error == nil && result.RowsAffected > 0 {
		m.Logger.Sugar().Debugw("Migration already run", zap.String("name", name))
		return nil
	}

	m.Logger.Sugar().Infow("Running migration", zap.String("name", name))
	if err := migration.Up(m.Db, m.GDb); err != nil {
		m.Logger.Sugar().Errorw("Failed to run migration", zap.String("name", name), zap.Error(err))
		return err
	}

	migrationRecord = Migrations{
		Name: name,
	}
	if res := m.GDb.Create(&migrationRecord); res.Error != nil {
		m.Logger.Sugar().Errorw("Failed to record migration", zap.String("name", name), zap.Error(res.Error))
		return res.Error
	}
	return nil
}

type Migrations struct {
	Name      string    `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"default:current_timestamp;type:timestamp with time zone"`
	UpdatedAt time.Time `gorm:"default:null;type:timestamp with time zone"`
}
