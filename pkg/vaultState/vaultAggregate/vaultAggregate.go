package vaultAggregate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/metrics/metricsTypes"
	"github.com/range-protocol/vault-sidecar/pkg/contractCaller"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/monitoring"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/positionLifecycle"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"go.uber.org/zap"
)

// VaultAggregateReconciler keeps the vault level aggregates in line with the
// contract. Local values are only replaced by reads that succeeded.
type VaultAggregateReconciler struct {
	logger      *zap.Logger
	accessor    contractCaller.IVaultStateAccessor
	pools       contractCaller.PoolAdapters
	positions   *positionLifecycle.PositionLifecycleManager
	registry    monitoring.IMonitoringRegistry
	metricsSink *metrics.MetricsSink
}

func NewVaultAggregateReconciler(
	accessor contractCaller.IVaultStateAccessor,
	pools contractCaller.PoolAdapters,
	positions *positionLifecycle.PositionLifecycleManager,
	registry monitoring.IMonitoringRegistry,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *VaultAggregateReconciler {
	return &VaultAggregateReconciler{
		logger:      l,
		accessor:    accessor,
		pools:       pools,
		positions:   positions,
		registry:    registry,
		metricsSink: ms,
	}
}

// RefreshReport lists the reads that were unavailable during a refresh.
type RefreshReport struct {
	Unavailable []string
}

func (r *RefreshReport) IsComplete() bool {
	return len(r.Unavailable) == 0
}

func (v *VaultAggregateReconciler) unavailable(report *RefreshReport, vault string, method string, err error) {
	report.Unavailable = append(report.Unavailable, method)
	v.logger.Sugar().Debugw("External read unavailable",
		zap.String("vault", vault),
		zap.String("method", method),
		zap.Error(err),
	)
	_ = v.metricsSink.Incr(metricsTypes.Metric_Incr_ExternalReadUnavailable, []metricsTypes.MetricsLabel{
		{Name: metricsTypes.Label_Method, Value: method},
	}, 1)
}

func setBig(dst *big.Int, src *big.Int) {
	if dst != nil && src != nil {
		dst.Set(src)
	}
}

// Refresh re-reads the contract state the vault aggregates mirror. It never fails:
// a field whose read is unavailable keeps its previous value.
func (v *VaultAggregateReconciler) Refresh(ctx context.Context, uow *entityStore.UnitOfWork, vault *entities.Vault, blockNumber uint64) *RefreshReport {
	report := &RefreshReport{}

	if supply := v.accessor.TotalSupply(ctx, vault.Id, blockNumber); supply.IsAvailable() {
		setBig(vault.TotalSupply, supply.Value)
	} else {
		v.unavailable(report, vault.Id, "totalSupply", supply.Err)
	}

	if vault.IsSingleToken() {
		if balance := v.accessor.BalanceInCollateralToken(ctx, vault.Id, blockNumber); balance.IsAvailable() {
			setBig(vault.Balance, balance.Value)
		} else {
			v.unavailable(report, vault.Id, "getBalanceInCollateralToken", balance.Err)
		}
		if managerBalance := v.accessor.ManagerBalance(ctx, vault.Id, blockNumber); managerBalance.IsAvailable() {
			setBig(vault.ManagerBalance, managerBalance.Value)
		} else {
			v.unavailable(report, vault.Id, "managerBalance", managerBalance.Err)
		}
	} else {
		if balances := v.accessor.UnderlyingBalances(ctx, vault.Id, blockNumber); balances.IsAvailable() {
			setBig(vault.Balance0, balances.Value.Amount0)
			setBig(vault.Balance1, balances.Value.Amount1)
		} else {
			v.unavailable(report, vault.Id, "getUnderlyingBalances", balances.Err)
		}
		if managerBalances := v.accessor.ManagerBalances(ctx, vault.Id, blockNumber); managerBalances.IsAvailable() {
			setBig(vault.ManagerBalance0, managerBalances.Value.Amount0)
			setBig(vault.ManagerBalance1, managerBalances.Value.Amount1)
		} else {
			v.unavailable(report, vault.Id, "managerBalances", managerBalances.Err)
		}
		if vault.Variant == config.VaultVariant_Legacy {
			if treasury := v.accessor.TreasuryBalances(ctx, vault.Id, blockNumber); treasury.IsAvailable() {
				setBig(vault.TreasuryBalance0, treasury.Value.Amount0)
				setBig(vault.TreasuryBalance1, treasury.Value.Amount1)
			} else {
				v.unavailable(report, vault.Id, "treasuryBalances", treasury.Err)
			}
		}
	}

	v.refreshLiquidity(ctx, report, vault, blockNumber)

	uow.Save(vault)
	return report
}

func (v *VaultAggregateReconciler) refreshLiquidity(ctx context.Context, report *RefreshReport, vault *entities.Vault, blockNumber uint64) {
	if !vault.InThePosition {
		vault.Liquidity.SetInt64(0)
		return
	}
	if vault.LiquidityFromVault {
		if liquidity := v.accessor.VaultLiquidity(ctx, vault.Id, blockNumber); liquidity.IsAvailable() {
			setBig(vault.Liquidity, liquidity.Value)
		} else {
			v.unavailable(report, vault.Id, "liquidity", liquidity.Err)
		}
		return
	}
	adapter, ok := v.pools.For(vault.PoolKind)
	if !ok {
		v.unavailable(report, vault.Id, "positions", fmt.Errorf("no pool adapter for pool kind %q", vault.PoolKind))
		return
	}
	if vault.CurrentPositionIdInVault == "" {
		v.unavailable(report, vault.Id, "positions", fmt.Errorf("vault %s has no pool position id", vault.Id))
		return
	}
	liquidity := adapter.LiquidityOf(ctx, vault.Pool, vault.CurrentPositionIdInVault, blockNumber)
	if liquidity.IsAvailable() {
		setBig(vault.Liquidity, liquidity.Value)
	} else {
		v.unavailable(report, vault.Id, "positions", liquidity.Err)
	}
}

// CreatedVault describes a VaultCreated event emitted by a factory.
type CreatedVault struct {
	Factory     *config.FactoryConfig
	Vault       string
	Pool        string
	BlockNumber uint64
	Timestamp   uint64
}

// OnVaultCreated initialises a vault exactly once. It reads the static metadata,
// seeds the initial position of a vault that is already in range and registers the
// vault for monitoring once the unit of work commits.
func (v *VaultAggregateReconciler) OnVaultCreated(ctx context.Context, uow *entityStore.UnitOfWork, created *CreatedVault) (*entities.Vault, error) {
	address := utils.NormalizeAddress(created.Vault)
	existing, err := entities.LoadVault(uow, address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrVaultAlreadyExists, address)
	}

	vault := entities.NewVault(address)
	vault.Factory = created.Factory.Address
	vault.Variant = created.Factory.Variant
	vault.PoolKind = created.Factory.PoolKind
	vault.DeleteEmptyBalances = created.Factory.DeleteEmptyBalances
	vault.LiquidityFromVault = created.Factory.LiquidityFromVault
	vault.Pool = utils.NormalizeAddress(created.Pool)
	vault.CreatedAtBlock = created.BlockNumber
	vault.CreatedAtTimestamp = created.Timestamp

	report := &RefreshReport{}
	md := v.accessor.VaultMetadata(ctx, address, vault.Variant, created.BlockNumber)
	applyString := func(dst *string, r contractCaller.Result[string], method string, isAddress bool) {
		if !r.IsAvailable() {
			v.unavailable(report, vault.Id, method, r.Err)
			return
		}
		if isAddress {
			*dst = utils.NormalizeAddress(r.Value)
		} else {
			*dst = r.Value
		}
	}
	applyString(&vault.Name, md.Name, "name", false)
	applyString(&vault.Token0, md.Token0, "token0", true)
	applyString(&vault.Token1, md.Token1, "token1", true)
	applyString(&vault.Token0Name, md.Token0Name, "token0.name", false)
	applyString(&vault.Token1Name, md.Token1Name, "token1.name", false)
	applyString(&vault.Manager, md.Manager, "manager", true)

	switch vault.Variant {
	case config.VaultVariant_Legacy:
		applyString(&vault.Treasury, md.Treasury, "treasury", true)
		if md.ManagerFee.IsAvailable() {
			setBig(vault.ManagerFee, md.ManagerFee.Value)
		} else {
			v.unavailable(report, vault.Id, "managerFee", md.ManagerFee.Err)
		}
		if md.TreasuryFee.IsAvailable() {
			setBig(vault.TreasuryFee, md.TreasuryFee.Value)
		} else {
			v.unavailable(report, vault.Id, "treasuryFee", md.TreasuryFee.Err)
		}
	default:
		if md.ManagingFee.IsAvailable() {
			setBig(vault.ManagingFee, md.ManagingFee.Value)
		} else {
			v.unavailable(report, vault.Id, "managingFee", md.ManagingFee.Err)
		}
		if md.PerformanceFee.IsAvailable() {
			setBig(vault.PerformanceFee, md.PerformanceFee.Value)
		} else {
			v.unavailable(report, vault.Id, "performanceFee", md.PerformanceFee.Err)
		}
	}

	if err := v.seedInitialPosition(ctx, uow, vault, created, report); err != nil {
		return nil, err
	}

	uow.Save(vault)
	uow.OnCommit(func() {
		v.registry.RegisterForMonitoring(address)
	})

	v.logger.Sugar().Infow("Vault created",
		zap.String("vault", vault.Id),
		zap.String("factory", vault.Factory),
		zap.String("variant", string(vault.Variant)),
		zap.Uint64("blockNumber", created.BlockNumber),
		zap.Strings("unavailable", report.Unavailable),
	)
	return vault, nil
}

// seedInitialPosition opens the first position of a vault deployed with an
// active range.
func (v *VaultAggregateReconciler) seedInitialPosition(
	ctx context.Context,
	uow *entityStore.UnitOfWork,
	vault *entities.Vault,
	created *CreatedVault,
	report *RefreshReport,
) error {
	inThePosition := v.accessor.InThePosition(ctx, vault.Id, created.BlockNumber)
	if !inThePosition.IsAvailable() {
		v.unavailable(report, vault.Id, "inThePosition", inThePosition.Err)
		return nil
	}
	// OpenPosition raises the in-position flag; without a seeded position it stays down.
	if !inThePosition.Value {
		return nil
	}

	ticks := v.accessor.Ticks(ctx, vault.Id, created.BlockNumber)
	if !ticks.IsAvailable() {
		v.unavailable(report, vault.Id, "ticks", ticks.Err)
		return nil
	}
	if ticks.Value.Lower == ticks.Value.Upper {
		return nil
	}

	req := &positionLifecycle.OpenRequest{
		LowerTick: ticks.Value.Lower,
		UpperTick: ticks.Value.Upper,
	}
	if positionId := v.accessor.PositionId(ctx, vault.Id, created.BlockNumber); positionId.IsAvailable() {
		req.PositionIdInVault = positionId.Value
	} else {
		v.unavailable(report, vault.Id, "getPositionID", positionId.Err)
	}

	_, err := v.positions.OpenPosition(ctx, uow, vault, req, positionLifecycle.EventCoordinates{
		BlockNumber: created.BlockNumber,
		Timestamp:   created.Timestamp,
	})
	return err
}
