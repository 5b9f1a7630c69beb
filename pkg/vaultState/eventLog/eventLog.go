package eventLog

import (
	"fmt"

	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
)

// Append stages an append-only event record. Records are never overwritten:
// a record already written by the same log makes Append a no-op, and a record
// written by a different log moves the new one to a suffixed id.
// The returned bool reports whether rec was staged.
func Append[T any, PT interface {
	*T
	entities.EventRecord
}](uow *entityStore.UnitOfWork, rec PT) (PT, bool, error) {
	base := rec.Base()

	existing, err := entityStore.Load[T, PT](uow, rec.EntityType(), base.Id)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		uow.Save(rec)
		return rec, true, nil
	}
	if existing.Base().IsSameEvent(base) {
		return existing, false, nil
	}

	suffixed := base.Id + utils.CollisionSuffix(base.BlockNumber, base.LogIndex)
	existing, err = entityStore.Load[T, PT](uow, rec.EntityType(), suffixed)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if existing.Base().IsSameEvent(base) {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("%w: %s %s", types.ErrIdCollision, rec.EntityType(), suffixed)
	}
	base.Id = suffixed
	uow.Save(rec)
	return rec, true, nil
}
