package _202510011015_entityVaultIndex

import (
	"database/sql"

	"golang.org/x/xerrors"
	"gorm.io/gorm"
)

type Migration struct {
}

// Up indexes child records by their owning vault for per-vault reads.
func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `create index if not exists idx_entities_type_vault on entities (entity_type, (data->>'vault'))`
	if res := grm.Exec(query); res.Error != nil {
		return xerrors.Errorf("failed to create vault index: %w", res.Error)
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202510011015_entityVaultIndex"
}
