package entityStore

import (
	"encoding/json"
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/xerrors"
)

// Entity is any record persisted by the reconciliation engine.
type Entity interface {
	EntityType() string
	EntityId() string
}

type OperationKind string

const (
	OperationKind_Put    OperationKind = "put"
	OperationKind_Delete OperationKind = "delete"
)

// Operation is a single staged write. Data is the JSON encoded entity for puts.
type Operation struct {
	Kind        OperationKind
	EntityType  string
	Id          string
	Data        []byte
	BlockNumber uint64
}

func (o *Operation) Key() string {
	return EntityKey(o.EntityType, o.Id)
}

func EntityKey(entityType string, id string) string {
	return entityType + ":" + id
}

// IEntityStore is the persistent key-value store holding every entity.
// Write applies all operations or none of them.
type IEntityStore interface {
	Get(entityType string, id string) ([]byte, bool, error)
	Write(ops []*Operation) error
	ListByType(entityType string) ([][]byte, error)
	Close() error
}

var ErrUnitOfWorkCommitted = errors.New("unit of work already committed")

type stagedEntry struct {
	entityType string
	id         string
	entity     Entity
	dirty      bool
	deleted    bool
}

// UnitOfWork stages every load and write made while applying one event. Loads
// return the same pointer for the same id, so components sharing a record see
// each other's changes; Commit writes all dirty records in one store write.
type UnitOfWork struct {
	store       IEntityStore
	blockNumber uint64
	entries     *orderedmap.OrderedMap[string, *stagedEntry]
	onCommit    []func()
	committed   bool
}

func NewUnitOfWork(store IEntityStore, blockNumber uint64) *UnitOfWork {
	return &UnitOfWork{
		store:       store,
		blockNumber: blockNumber,
		entries:     orderedmap.New[string, *stagedEntry](),
	}
}

func (u *UnitOfWork) BlockNumber() uint64 {
	return u.blockNumber
}

// Load returns the entity with the given id, or nil when it does not exist.
func Load[T any, PT interface {
	*T
	Entity
}](u *UnitOfWork, entityType string, id string) (PT, error) {
	key := EntityKey(entityType, id)
	if entry, ok := u.entries.Get(key); ok {
		if entry.deleted || entry.entity == nil {
			return nil, nil
		}
		typed, ok := entry.entity.(PT)
		if !ok {
			return nil, fmt.Errorf("entity %s is a %T", key, entry.entity)
		}
		return typed, nil
	}

	data, found, err := u.store.Get(entityType, id)
	if err != nil {
		return nil, xerrors.Errorf("failed to load %s: %w", key, err)
	}
	if !found {
		u.entries.Set(key, &stagedEntry{entityType: entityType, id: id})
		return nil, nil
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, xerrors.Errorf("failed to decode %s: %w", key, err)
	}
	typed := PT(&value)
	u.entries.Set(key, &stagedEntry{entityType: entityType, id: id, entity: typed})
	return typed, nil
}

// Save stages e to be written on Commit.
func (u *UnitOfWork) Save(e Entity) {
	key := EntityKey(e.EntityType(), e.EntityId())
	if entry, ok := u.entries.Get(key); ok {
		entry.entity = e
		entry.dirty = true
		entry.deleted = false
		return
	}
	u.entries.Set(key, &stagedEntry{
		entityType: e.EntityType(),
		id:         e.EntityId(),
		entity:     e,
		dirty:      true,
	})
}

func (u *UnitOfWork) Delete(entityType string, id string) {
	key := EntityKey(entityType, id)
	if entry, ok := u.entries.Get(key); ok {
		entry.entity = nil
		entry.dirty = true
		entry.deleted = true
		return
	}
	u.entries.Set(key, &stagedEntry{
		entityType: entityType,
		id:         id,
		dirty:      true,
		deleted:    true,
	})
}

// OnCommit registers fn to run after a successful Commit.
func (u *UnitOfWork) OnCommit(fn func()) {
	u.onCommit = append(u.onCommit, fn)
}

// Pending returns the operations Commit would write, in first-touch order.
func (u *UnitOfWork) Pending() ([]*Operation, error) {
	ops := make([]*Operation, 0)
	for pair := u.entries.Oldest(); pair != nil; pair = pair.Next() {
		entry := pair.Value
		if !entry.dirty {
			continue
		}
		if entry.deleted {
			ops = append(ops, &Operation{
				Kind:        OperationKind_Delete,
				EntityType:  entry.entityType,
				Id:          entry.id,
				BlockNumber: u.blockNumber,
			})
			continue
		}
		data, err := json.Marshal(entry.entity)
		if err != nil {
			return nil, xerrors.Errorf("failed to encode %s: %w", pair.Key, err)
		}
		ops = append(ops, &Operation{
			Kind:        OperationKind_Put,
			EntityType:  entry.entityType,
			Id:          entry.id,
			Data:        data,
			BlockNumber: u.blockNumber,
		})
	}
	return ops, nil
}

// Commit writes every staged change. A unit of work can only be committed once.
func (u *UnitOfWork) Commit() ([]*Operation, error) {
	if u.committed {
		return nil, ErrUnitOfWorkCommitted
	}
	ops, err := u.Pending()
	if err != nil {
		return nil, err
	}
	if len(ops) > 0 {
		if err := u.store.Write(ops); err != nil {
			return nil, xerrors.Errorf("failed to commit %d operations: %w", len(ops), err)
		}
	}
	u.committed = true
	for _, fn := range u.onCommit {
		fn()
	}
	return ops, nil
}
