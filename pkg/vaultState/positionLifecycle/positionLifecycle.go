package positionLifecycle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/range-protocol/vault-sidecar/pkg/contractCaller"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/types/numbers"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"go.uber.org/zap"
)

// PositionLifecycleManager drives positions through NoPosition -> Open -> Closed.
// A position is closed at most once; its close fields are never overwritten.
type PositionLifecycleManager struct {
	logger *zap.Logger
	pools  contractCaller.PoolAdapters
}

func NewPositionLifecycleManager(l *zap.Logger, pools contractCaller.PoolAdapters) *PositionLifecycleManager {
	return &PositionLifecycleManager{
		logger: l,
		pools:  pools,
	}
}

type EventCoordinates struct {
	BlockNumber uint64
	Timestamp   uint64
}

// OpenRequest carries the range of a newly activated position.
type OpenRequest struct {
	LowerTick         int64
	UpperTick         int64
	PositionIdInVault string
	Token0Amount      *big.Int
	Token1Amount      *big.Int
}

func (m *PositionLifecycleManager) poolPrice(ctx context.Context, vault *entities.Vault, blockNumber uint64, opening bool) contractCaller.Result[*big.Int] {
	adapter, ok := m.pools.For(vault.PoolKind)
	if !ok {
		return contractCaller.Unavailable[*big.Int](fmt.Errorf("no pool adapter for pool kind %q", vault.PoolKind))
	}
	if opening {
		return adapter.OpeningPrice(ctx, vault.Pool, blockNumber)
	}
	return adapter.ClosingPrice(ctx, vault.Pool, blockNumber)
}

func (m *PositionLifecycleManager) currentPosition(uow *entityStore.UnitOfWork, vault *entities.Vault) (*entities.Position, error) {
	if !vault.HasCurrentPosition() {
		return nil, fmt.Errorf("%w: vault %s", types.ErrNoCurrentPosition, vault.Id)
	}
	position, err := entities.LoadPosition(uow, vault.CurrentPosition)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("%w: Position %s referenced by vault %s", types.ErrMissingRecord, vault.CurrentPosition, vault.Id)
	}
	return position, nil
}

// closeIfOpen sets the close fields of an open position. It reports whether the
// position was closed by this call.
func (m *PositionLifecycleManager) closeIfOpen(ctx context.Context, vault *entities.Vault, position *entities.Position, at EventCoordinates, implicit bool) bool {
	if !position.IsOpen() {
		m.logger.Sugar().Debugw("Position already closed",
			zap.String("vault", vault.Id),
			zap.String("position", position.Id),
			zap.Uint64("closedAtBlock", position.ClosedAtBlock),
		)
		return false
	}
	position.ClosedAtBlock = at.BlockNumber
	position.ClosedAtTimestamp = at.Timestamp
	position.ImplicitlyClosed = implicit

	price := m.poolPrice(ctx, vault, at.BlockNumber, false)
	if price.IsAvailable() {
		position.PriceSqrtAtClosing = price.Value
		position.PriceAtClosing = numbers.SqrtPriceX96ToPrice(price.Value).String()
	} else {
		m.logger.Sugar().Debugw("Closing price unavailable",
			zap.String("vault", vault.Id),
			zap.String("position", position.Id),
			zap.Error(price.Err),
		)
	}
	return true
}

// OpenPosition starts a new position for the vault's new range. A still open
// current position is closed implicitly first.
func (m *PositionLifecycleManager) OpenPosition(
	ctx context.Context,
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	req *OpenRequest,
	at EventCoordinates,
) (*entities.Position, error) {
	if vault.HasCurrentPosition() {
		previous, err := m.currentPosition(uow, vault)
		if err != nil {
			return nil, err
		}
		if m.closeIfOpen(ctx, vault, previous, at, true) {
			m.logger.Sugar().Infow("Implicitly closed position on range change",
				zap.String("vault", vault.Id),
				zap.String("position", previous.Id),
				zap.Uint64("blockNumber", at.BlockNumber),
			)
			uow.Save(previous)
		}
	}

	vault.PositionCount++
	position := entities.NewPosition(utils.PositionId(vault.Id, vault.PositionCount), vault.Id)
	position.LowerTick = req.LowerTick
	position.UpperTick = req.UpperTick
	position.PositionIdInVault = req.PositionIdInVault
	position.OpenedAtBlock = at.BlockNumber
	position.OpenedAtTimestamp = at.Timestamp
	if req.Token0Amount != nil {
		position.Token0Amount.Set(req.Token0Amount)
	}
	if req.Token1Amount != nil {
		position.Token1Amount.Set(req.Token1Amount)
	}

	price := m.poolPrice(ctx, vault, at.BlockNumber, true)
	if price.IsAvailable() {
		position.PriceSqrtAtOpening = price.Value
		position.PriceAtOpening = numbers.SqrtPriceX96ToPrice(price.Value).String()
	} else {
		m.logger.Sugar().Debugw("Opening price unavailable",
			zap.String("vault", vault.Id),
			zap.String("position", position.Id),
			zap.Error(price.Err),
		)
	}

	vault.CurrentPosition = position.Id
	vault.CurrentPositionIdInVault = req.PositionIdInVault
	vault.InThePosition = true
	vault.LowerTick = req.LowerTick
	vault.UpperTick = req.UpperTick
	vault.TicksLastUpdated = at.Timestamp

	uow.Save(position)
	uow.Save(vault)
	return position, nil
}

// RecordLiquidityAdded accrues deposited amounts on the current position. It never
// changes the lifecycle state.
func (m *PositionLifecycleManager) RecordLiquidityAdded(
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	amount0 *big.Int,
	amount1 *big.Int,
) (*entities.Position, error) {
	position, err := m.currentPosition(uow, vault)
	if err != nil {
		return nil, err
	}
	if !position.IsOpen() {
		m.logger.Sugar().Warnw("Liquidity added to a closed position",
			zap.String("vault", vault.Id),
			zap.String("position", position.Id),
		)
	}
	position.Token0Amount.Add(position.Token0Amount, amount0)
	position.Token1Amount.Add(position.Token1Amount, amount1)
	uow.Save(position)
	return position, nil
}

// RecordLiquidityRemoved accrues withdrawn amounts and closes the current position
// on its first removal. It reports whether this call closed the position; a closed
// position takes the vault out of position.
func (m *PositionLifecycleManager) RecordLiquidityRemoved(
	ctx context.Context,
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	amount0 *big.Int,
	amount1 *big.Int,
	at EventCoordinates,
) (*entities.Position, bool, error) {
	position, err := m.currentPosition(uow, vault)
	if err != nil {
		return nil, false, err
	}
	position.Token0Withdrawn.Add(position.Token0Withdrawn, amount0)
	position.Token1Withdrawn.Add(position.Token1Withdrawn, amount1)
	closed := m.closeIfOpen(ctx, vault, position, at, false)
	uow.Save(position)
	if closed {
		vault.InThePosition = false
		uow.Save(vault)
	}
	return position, closed, nil
}

// HasOpenPosition reports whether the vault's current position exists and is open.
func (m *PositionLifecycleManager) HasOpenPosition(uow *entityStore.UnitOfWork, vault *entities.Vault) (bool, error) {
	if !vault.HasCurrentPosition() {
		return false, nil
	}
	position, err := m.currentPosition(uow, vault)
	if err != nil {
		return false, err
	}
	return position.IsOpen(), nil
}

// ClosePosition closes the current position if it is still open. A vault without a
// current position is left as is.
func (m *PositionLifecycleManager) ClosePosition(
	ctx context.Context,
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	at EventCoordinates,
) (*entities.Position, bool, error) {
	if !vault.HasCurrentPosition() {
		return nil, false, nil
	}
	position, err := m.currentPosition(uow, vault)
	if err != nil {
		return nil, false, err
	}
	closed := m.closeIfOpen(ctx, vault, position, at, false)
	if closed {
		uow.Save(position)
	}
	return position, closed, nil
}

// RecordFeesEarned adds fees to the current position and to the vault totals.
func (m *PositionLifecycleManager) RecordFeesEarned(
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	fee0 *big.Int,
	fee1 *big.Int,
) (*entities.Position, error) {
	position, err := m.currentPosition(uow, vault)
	if err != nil {
		return nil, err
	}
	position.FeesEarned0.Add(position.FeesEarned0, fee0)
	position.FeesEarned1.Add(position.FeesEarned1, fee1)
	vault.TotalFeesEarned0.Add(vault.TotalFeesEarned0, fee0)
	vault.TotalFeesEarned1.Add(vault.TotalFeesEarned1, fee1)
	uow.Save(position)
	uow.Save(vault)
	return position, nil
}
