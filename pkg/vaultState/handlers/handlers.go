package handlers

import (
	"context"
	"fmt"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/pkg/contractCaller"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/monitoring"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/balanceLedger"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/base"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/positionLifecycle"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/stateManager"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/vaultAggregate"
	"go.uber.org/zap"
)

// VaultHandlers applies vault and factory events to the vault records.
type VaultHandlers struct {
	base.BaseVaultState
	logger       *zap.Logger
	globalConfig *config.Config

	accessor  contractCaller.IVaultStateAccessor
	ledger    *balanceLedger.BalanceLedger
	positions *positionLifecycle.PositionLifecycleManager
	aggregate *vaultAggregate.VaultAggregateReconciler
}

// NewVaultHandlers builds the handlers and registers them with the state manager.
func NewVaultHandlers(
	sm *stateManager.VaultStateManager,
	accessor contractCaller.IVaultStateAccessor,
	pools contractCaller.PoolAdapters,
	registry monitoring.IMonitoringRegistry,
	ms *metrics.MetricsSink,
	l *zap.Logger,
	cfg *config.Config,
) (*VaultHandlers, error) {
	positions := positionLifecycle.NewPositionLifecycleManager(l, pools)
	h := &VaultHandlers{
		BaseVaultState: base.BaseVaultState{
			Logger: l,
		},
		logger:       l,
		globalConfig: cfg,
		accessor:     accessor,
		ledger:       balanceLedger.NewBalanceLedger(l),
		positions:    positions,
		aggregate:    vaultAggregate.NewVaultAggregateReconciler(accessor, pools, positions, registry, ms, l),
	}

	sm.RegisterFactoryHandler(types.Event_VaultCreated, h.handleVaultCreated)

	sm.RegisterHandler(types.Event_Transfer, h.withRefresh(h.handleTransfer))
	sm.RegisterHandler(types.Event_Minted, h.withRefresh(h.handleMinted))
	sm.RegisterHandler(types.Event_Burned, h.withRefresh(h.handleBurned))
	sm.RegisterHandler(types.Event_TicksSet, h.withRefresh(h.handleTicksSet))
	sm.RegisterHandler(types.Event_LiquidityAdded, h.withRefresh(h.handleLiquidityAdded))
	sm.RegisterHandler(types.Event_LiquidityRemoved, h.withRefresh(h.handleLiquidityRemoved))
	sm.RegisterHandler(types.Event_FeesEarned, h.withRefresh(h.handleFeesEarned))
	sm.RegisterHandler(types.Event_Swapped, h.withRefresh(h.handleSwapped))
	sm.RegisterHandler(types.Event_InThePositionStatusSet, h.withRefresh(h.handleInThePositionStatusSet))
	sm.RegisterHandler(types.Event_CollateralSupplied, h.withRefresh(h.handleCollateralSupplied))
	sm.RegisterHandler(types.Event_CollateralWithdrawn, h.withRefresh(h.handleCollateralWithdrawn))
	sm.RegisterHandler(types.Event_GhoMinted, h.withRefresh(h.handleGhoMinted))
	sm.RegisterHandler(types.Event_GhoBurned, h.withRefresh(h.handleGhoBurned))
	sm.RegisterHandler(types.Event_PoolRepegged, h.withRefresh(h.handlePoolRepegged))

	sm.RegisterHandler(types.Event_FeesUpdated, h.handleFeesUpdated)
	sm.RegisterHandler(types.Event_UpdateManagerParams, h.handleUpdateManagerParams)
	sm.RegisterHandler(types.Event_OwnershipTransferred, h.handleOwnershipTransferred)

	return h, nil
}

// loadVault loads the vault that emitted log. Vault events for an unknown vault
// are an invariant violation.
func (h *VaultHandlers) loadVault(uow *entityStore.UnitOfWork, log *storage.TransactionLog) (*entities.Vault, error) {
	address := utils.NormalizeAddress(log.Address)
	vault, err := entities.LoadVault(uow, address)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		return nil, fmt.Errorf("%w: Vault %s", types.ErrMissingRecord, address)
	}
	return vault, nil
}

func coordinates(log *storage.TransactionLog) positionLifecycle.EventCoordinates {
	return positionLifecycle.EventCoordinates{
		BlockNumber: log.BlockNumber,
		Timestamp:   log.BlockTimestamp,
	}
}

func recordBase(id string, vault *entities.Vault, log *storage.TransactionLog) entities.EventRecordBase {
	return entities.EventRecordBase{
		Id:              id,
		Vault:           vault.Id,
		Timestamp:       log.BlockTimestamp,
		TransactionHash: log.TransactionHash,
		LogIndex:        log.LogIndex,
		BlockNumber:     log.BlockNumber,
	}
}

// withRefresh runs the vault aggregate refresh after a balance or liquidity
// affecting handler succeeded.
func (h *VaultHandlers) withRefresh(handler types.EventHandler) types.EventHandler {
	return func(ctx context.Context, uow *entityStore.UnitOfWork, log *storage.TransactionLog) error {
		if err := handler(ctx, uow, log); err != nil {
			return err
		}
		vault, err := h.loadVault(uow, log)
		if err != nil {
			return err
		}
		report := h.aggregate.Refresh(ctx, uow, vault, log.BlockNumber)
		if !report.IsComplete() {
			h.logger.Sugar().Debugw("Vault refresh incomplete",
				zap.String("vault", vault.Id),
				zap.String("eventName", log.EventName),
				zap.Strings("unavailable", report.Unavailable),
			)
		}
		return nil
	}
}
