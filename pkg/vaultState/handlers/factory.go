package handlers

import (
	"context"
	"fmt"

	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/vaultAggregate"
	"go.uber.org/zap"
)

func (h *VaultHandlers) handleVaultCreated(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
	factory, ok := h.globalConfig.GetFactory(log.Address)
	if !ok {
		return fmt.Errorf("%w: %s is not a configured factory", types.ErrInvalidEventParams, log.Address)
	}
	params, err := h.ParseEventParams(log)
	if err != nil {
		return err
	}
	vault, err := params.Address("vault")
	if err != nil {
		return err
	}
	pool, err := params.Address("uniPool", "pool")
	if err != nil {
		return err
	}

	if !h.globalConfig.VaultFilter.IsAllowed(vault) {
		h.logger.Sugar().Infow("Ignoring vault excluded by configuration",
			zap.String("vault", vault),
			zap.String("factory", factory.Address),
		)
		return nil
	}

	_, err = h.aggregate.OnVaultCreated(ctx, uow, &vaultAggregate.CreatedVault{
		Factory:     factory,
		Vault:       vault,
		Pool:        pool,
		BlockNumber: log.BlockNumber,
		Timestamp:   log.BlockTimestamp,
	})
	return err
}
