package _202510010900_bootstrapDb

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	query := `create table if not exists migrations (
		name text primary key,
		created_at timestamp with time zone default current_timestamp,
		updated_at timestamp with time zone default null
	)`
	_, err := db.Exec(query)
	return err
}

func (m *Migration) GetName() string {
	return "202510010900_bootstrapDb"
}
