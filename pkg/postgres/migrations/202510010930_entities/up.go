package _202510010930_entities

import (
	"database/sql"

	"golang.org/x/xerrors"
	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`create table if not exists entities (
			entity_type varchar not null,
			id varchar not null,
			data jsonb not null,
			block_number bigint not null default 0,
			created_at timestamp with time zone default current_timestamp,
			updated_at timestamp with time zone default current_timestamp,
			primary key (entity_type, id)
		)`,
		`create index if not exists idx_entities_block_number on entities (block_number)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return xerrors.Errorf("failed to execute query %q: %w", query, res.Error)
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202510010930_entities"
}
