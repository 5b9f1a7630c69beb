package handlers

import (
	"context"

	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"go.uber.org/zap"
)

func (h *VaultHandlers) handleFeesUpdated(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	managingFee, err := params.Big("managingFee")
	if err != nil {
		return err
	}
	performanceFee, err := params.Big("performanceFee")
	if err != nil {
		return err
	}
	vault.ManagingFee = managingFee
	vault.PerformanceFee = performanceFee
	uow.Save(vault)
	return nil
}

// handleUpdateManagerParams applies the manager fee split of legacy vaults. The
// treasury is optional in the event.
func (h *VaultHandlers) handleUpdateManagerParams(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	managerFee, err := params.Big("managerFeeBPS", "managerFee")
	if err != nil {
		return err
	}
	vault.ManagerFee = managerFee
	if params.Has("managerTreasury", "treasury") {
		treasury, err := params.Address("managerTreasury", "treasury")
		if err != nil {
			return err
		}
		vault.Treasury = treasury
	}
	uow.Save(vault)
	return nil
}

func (h *VaultHandlers) handleOwnershipTransferred(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	vault, err := h.loadVault(uow, log)
	if err != nil {
		return err
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	manager, err := params.Address("newManager", "newOwner")
	if err != nil {
		return err
	}
	h.logger.Sugar().Infow("Vault manager changed",
		zap.String("vault", vault.Id),
		zap.String("previousManager", vault.Manager),
		zap.String("newManager", manager),
	)
	vault.Manager = manager
	uow.Save(vault)
	return nil
}
