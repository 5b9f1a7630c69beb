package levelDbEntityStore

import (
	"errors"

	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

type LevelDbEntityStore struct {
	db     *leveldb.DB
	logger *zap.Logger
	sync   bool
}

// NewLevelDbEntityStore opens (or creates) an on-disk store at path.
func NewLevelDbEntityStore(path string, l *zap.Logger) (*LevelDbEntityStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &LevelDbEntityStore{db: db, logger: l, sync: true}, nil
}

func NewInMemoryLevelDbEntityStore(l *zap.Logger) (*LevelDbEntityStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, xerrors.Errorf("failed to open in-memory leveldb: %w", err)
	}
	return &LevelDbEntityStore{db: db, logger: l}, nil
}

func (s *LevelDbEntityStore) Get(entityType string, id string) ([]byte, bool, error) {
	data, err := s.db.Get([]byte(entityStore.EntityKey(entityType, id)), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *LevelDbEntityStore) Write(ops []*entityStore.Operation) error {
	batch := new(leveldb.Batch)
	for _, op := range ops {
		switch op.Kind {
		case entityStore.OperationKind_Put:
			batch.Put([]byte(op.Key()), op.Data)
		case entityStore.OperationKind_Delete:
			batch.Delete([]byte(op.Key()))
		default:
			return xerrors.Errorf("unknown operation kind %q", op.Kind)
		}
	}
	if err := s.db.Write(batch, &opt.WriteOptions{Sync: s.sync}); err != nil {
		s.logger.Sugar().Errorw("Failed to write leveldb batch", zap.Int("operations", len(ops)), zap.Error(err))
		return err
	}
	return nil
}

func (s *LevelDbEntityStore) ListByType(entityType string) ([][]byte, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(entityStore.EntityKey(entityType, ""))), nil)
	defer iter.Release()

	values := make([][]byte, 0)
	for iter.Next() {
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		values = append(values, value)
	}
	return values, iter.Error()
}

func (s *LevelDbEntityStore) Close() error {
	return s.db.Close()
}
