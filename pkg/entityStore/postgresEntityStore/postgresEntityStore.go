package postgresEntityStore

import (
	"errors"
	"time"

	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EntityRecord struct {
	EntityType  string `gorm:"primaryKey"`
	Id          string `gorm:"primaryKey"`
	Data        string `gorm:"type:jsonb"`
	BlockNumber uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (EntityRecord) TableName() string {
	return "entities"
}

type PostgresEntityStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresEntityStore(db *gorm.DB, l *zap.Logger) *PostgresEntityStore {
	return &PostgresEntityStore{
		db:     db,
		logger: l,
	}
}

func (s *PostgresEntityStore) Get(entityType string, id string) ([]byte, bool, error) {
	var record EntityRecord
	res := s.db.Model(&EntityRecord{}).
		Where("entity_type = ? and id = ?", entityType, id).
		Take(&record)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, res.Error
	}
	return []byte(record.Data), true, nil
}

// Write applies the operations in a single transaction.
func (s *PostgresEntityStore) Write(ops []*entityStore.Operation) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, op := range ops {
			switch op.Kind {
			case entityStore.OperationKind_Put:
				record := &EntityRecord{
					EntityType:  op.EntityType,
					Id:          op.Id,
					Data:        string(op.Data),
					BlockNumber: op.BlockNumber,
				}
				res := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "entity_type"}, {Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{"data", "block_number", "updated_at"}),
				}).Create(record)
				if res.Error != nil {
					s.logger.Sugar().Errorw("Failed to upsert entity",
						zap.String("entityType", op.EntityType),
						zap.String("id", op.Id),
						zap.Error(res.Error),
					)
					return res.Error
				}
			case entityStore.OperationKind_Delete:
				res := tx.Where("entity_type = ? and id = ?", op.EntityType, op.Id).Delete(&EntityRecord{})
				if res.Error != nil {
					return res.Error
				}
			default:
				return xerrors.Errorf("unknown operation kind %q", op.Kind)
			}
		}
		return nil
	})
}

func (s *PostgresEntityStore) ListByType(entityType string) ([][]byte, error) {
	records := make([]*EntityRecord, 0)
	res := s.db.Model(&EntityRecord{}).
		Where("entity_type = ?", entityType).
		Order("id asc").
		Find(&records)
	if res.Error != nil {
		return nil, res.Error
	}
	values := make([][]byte, 0, len(records))
	for _, r := range records {
		values = append(values, []byte(r.Data))
	}
	return values, nil
}

// Close is a no-op; the gorm connection is owned by the caller.
func (s *PostgresEntityStore) Close() error {
	return nil
}
