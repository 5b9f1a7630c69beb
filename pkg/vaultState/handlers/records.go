package handlers

import (
	"context"

	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/eventLog"
)

func (h *VaultHandlers) handleSwapped(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	zeroForOne, err := params.Bool("zeroForOne")
	if err != nil {
		return err
	}
	amount0, amount1, err := tokenPair(params,
		[]string{"amount0", "amountX"},
		[]string{"amount1", "amountY"},
	)
	if err != nil {
		return err
	}

	_, _, err = eventLog.Append(uow, &entities.Swap{
		EventRecordBase: recordBase(utils.SwapId(vault.Id, log.BlockTimestamp), vault, log),
		ZeroForOne:      zeroForOne,
		Amount0:         amount0,
		Amount1:         amount1,
	})
	return err
}

func (h *VaultHandlers) handleCollateralSupplied(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	amount, err := params.Big("amount")
	if err != nil {
		return err
	}
	vault.CollateralSuppliedCount++
	uow.Save(vault)
	_, _, err = eventLog.Append(uow, &entities.CollateralSupplied{
		EventRecordBase: recordBase(utils.CounterRecordId(vault.Id, vault.CollateralSuppliedCount), vault, log),
		CollateralToken: vault.Token1,
		AmountSupplied:  amount,
	})
	return err
}

func (h *VaultHandlers) handleCollateralWithdrawn(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	amount, err := params.Big("amount")
	if err != nil {
		return err
	}
	vault.CollateralWithdrawnCount++
	uow.Save(vault)
	_, _, err = eventLog.Append(uow, &entities.CollateralWithdrawn{
		EventRecordBase: recordBase(utils.CounterRecordId(vault.Id, vault.CollateralWithdrawnCount), vault, log),
		CollateralToken: vault.Token1,
		AmountWithdrawn: amount,
	})
	return err
}

func (h *VaultHandlers) handleGhoMinted(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	amount, err := params.Big("amount")
	if err != nil {
		return err
	}
	vault.GhoMintedCount++
	uow.Save(vault)
	_, _, err = eventLog.Append(uow, &entities.GhoMinted{
		EventRecordBase: recordBase(utils.CounterRecordId(vault.Id, vault.GhoMintedCount), vault, log),
		CollateralToken: vault.Token1,
		AmountMinted:    amount,
	})
	return err
}

func (h *VaultHandlers) handleGhoBurned(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	amount, err := params.Big("amount")
	if err != nil {
		return err
	}
	vault.GhoBurnedCount++
	uow.Save(vault)
	_, _, err = eventLog.Append(uow, &entities.GhoBurned{
		EventRecordBase: recordBase(utils.CounterRecordId(vault.Id, vault.GhoBurnedCount), vault, log),
		CollateralToken: vault.Token1,
		AmountBurned:    amount,
	})
	return err
}

func (h *VaultHandlers) handlePoolRepegged(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	vault.PoolRepegCount++
	uow.Save(vault)
	_, _, err = eventLog.Append(uow, &entities.PoolRepeg{
		EventRecordBase: recordBase(utils.CounterRecordId(vault.Id, vault.PoolRepegCount), vault, log),
	})
	return err
}
