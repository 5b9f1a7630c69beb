package handlers

import (
	"context"
	"errors"
	"math/big"

	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/base"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/eventLog"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/positionLifecycle"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/rollups"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"go.uber.org/zap"
)

func tokenPair(params base.EventParams, names0 []string, names1 []string) (*big.Int, *big.Int, error) {
	amount0, err := params.Big(names0...)
	if err != nil {
		return nil, nil, err
	}
	amount1, err := params.Big(names1...)
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// handleTicksSet rolls the vault over to a new position for the new range.
func (h *VaultHandlers) handleTicksSet(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	lowerTick, err := params.Int64("lowerTick")
	if err != nil {
		return err
	}
	upperTick, err := params.Int64("upperTick")
	if err != nil {
		return err
	}

	req := &positionLifecycle.OpenRequest{
		LowerTick: lowerTick,
		UpperTick: upperTick,
	}
	if positionId := h.accessor.PositionId(ctx, vault.Id, log.BlockNumber); positionId.IsAvailable() {
		req.PositionIdInVault = positionId.Value
	} else {
		h.logger.Sugar().Debugw("Position id unavailable",
			zap.String("vault", vault.Id),
			zap.Error(positionId.Err),
		)
	}

	position, err := h.positions.OpenPosition(ctx, uow, vault, req, coordinates(log))
	if err != nil {
		return err
	}

	h.logger.Sugar().Infow("Opened position",
		zap.String("vault", vault.Id),
		zap.String("position", position.Id),
		zap.Int64("lowerTick", lowerTick),
		zap.Int64("upperTick", upperTick),
		zap.Uint64("blockNumber", log.BlockNumber),
	)
	return nil
}

func (h *VaultHandlers) handleLiquidityAdded(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	amount0, amount1, err := tokenPair(params,
		[]string{"amount0In", "amountXIn"},
		[]string{"amount1In", "amountYIn"},
	)
	if err != nil {
		return err
	}

	_, err = h.positions.RecordLiquidityAdded(uow, vault, amount0, amount1)
	if errors.Is(err, types.ErrNoCurrentPosition) {
		h.logger.Sugar().Warnw("Liquidity added without a current position",
			zap.String("vault", vault.Id),
			zap.String("transactionHash", log.TransactionHash),
			zap.Uint64("logIndex", log.LogIndex),
		)
		return nil
	}
	return err
}

func (h *VaultHandlers) handleLiquidityRemoved(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	amount0, amount1, err := tokenPair(params,
		[]string{"amount0Out", "amountXOut"},
		[]string{"amount1Out", "amountYOut"},
	)
	if err != nil {
		return err
	}

	position, closed, err := h.positions.RecordLiquidityRemoved(ctx, uow, vault, amount0, amount1, coordinates(log))
	if err != nil {
		return err
	}
	if closed {
		h.logger.Sugar().Infow("Closed position",
			zap.String("vault", vault.Id),
			zap.String("position", position.Id),
			zap.Uint64("blockNumber", log.BlockNumber),
		)
	}
	return nil
}

func (h *VaultHandlers) handleFeesEarned(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	fee0, fee1, err := tokenPair(params,
		[]string{"feesEarned0", "feesEarnedX"},
		[]string{"feesEarned1", "feesEarnedY"},
	)
	if err != nil {
		return err
	}

	position, err := h.positions.RecordFeesEarned(uow, vault, fee0, fee1)
	if err != nil {
		return err
	}

	vault.FeeEarnedEventCount++
	uow.Save(vault)
	if _, _, err := eventLog.Append(uow, &entities.FeeEarned{
		EventRecordBase: recordBase(utils.CounterRecordId(vault.Id, vault.FeeEarnedEventCount), vault, log),
		Position:        position.Id,
		Amount0:         fee0,
		Amount1:         fee1,
	}); err != nil {
		return err
	}

	_, _, err = rollups.AccumulateFees(uow, vault.Id, log.BlockTimestamp, fee0, fee1)
	return err
}

// handleInThePositionStatusSet mirrors the in-position flag. Leaving the position
// closes the current position; entering it requires an open one.
func (h *VaultHandlers) handleInThePositionStatusSet(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	inThePosition, err := params.Bool("inThePosition")
	if err != nil {
		return err
	}

	if inThePosition {
		open, err := h.positions.HasOpenPosition(uow, vault)
		if err != nil {
			return err
		}
		if !open {
			h.logger.Sugar().Warnw("In position status set without an open position",
				zap.String("vault", vault.Id),
				zap.String("transactionHash", log.TransactionHash),
				zap.Uint64("logIndex", log.LogIndex),
			)
			return nil
		}
	}

	vault.InThePosition = inThePosition
	uow.Save(vault)
	if inThePosition {
		return nil
	}

	position, closed, err := h.positions.ClosePosition(ctx, uow, vault, coordinates(log))
	if err != nil {
		return err
	}
	if closed {
		h.logger.Sugar().Infow("Closed position on leaving range",
			zap.String("vault", vault.Id),
			zap.String("position", position.Id),
			zap.Uint64("blockNumber", log.BlockNumber),
		)
	}
	return nil
}
