package vaultAggregate

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/tests"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore/levelDbEntityStore"
	"github.com/range-protocol/vault-sidecar/pkg/monitoring"
	"github.com/range-protocol/vault-sidecar/pkg/types/numbers"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/positionLifecycle"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"github.com/stretchr/testify/assert"
)

const (
	factoryAddress = "0x0000000000000000000000000000000000000fac"
	vaultAddress   = "0x1111111111111111111111111111111111111111"
	poolAddress    = "0x2222222222222222222222222222222222222222"
	token0Address  = "0x3333333333333333333333333333333333333333"
	token1Address  = "0x4444444444444444444444444444444444444444"
)

type testHarness struct {
	store      entityStore.IEntityStore
	accessor   *tests.FakeVaultStateAccessor
	pool       *tests.FakePoolAdapter
	registry   *monitoring.Registry
	reconciler *VaultAggregateReconciler
}

func setup() (*testHarness, error) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	store, err := levelDbEntityStore.NewInMemoryLevelDbEntityStore(l)
	if err != nil {
		return nil, err
	}
	ms := metrics.NewNoopMetricsSink()
	accessor := tests.NewFakeVaultStateAccessor()
	pool := tests.NewFakePoolAdapter()
	pool.SetPrice(poolAddress, numbers.Q96)
	registry := monitoring.NewRegistry(store, ms, l)
	positions := positionLifecycle.NewPositionLifecycleManager(l, pool.PoolAdapters())

	return &testHarness{
		store:      store,
		accessor:   accessor,
		pool:       pool,
		registry:   registry,
		reconciler: NewVaultAggregateReconciler(accessor, pool.PoolAdapters(), positions, registry, ms, l),
	}, nil
}

func dualFactory() *config.FactoryConfig {
	return &config.FactoryConfig{
		Address:  factoryAddress,
		Variant:  config.VaultVariant_Dual,
		PoolKind: config.PoolKind_UniswapV3,
	}
}

func (h *testHarness) create(t *testing.T, factory *config.FactoryConfig) (*entities.Vault, error) {
	uow := entityStore.NewUnitOfWork(h.store, 100)
	vault, err := h.reconciler.OnVaultCreated(context.Background(), uow, &CreatedVault{
		Factory:     factory,
		Vault:       vaultAddress,
		Pool:        poolAddress,
		BlockNumber: 100,
		Timestamp:   1_700_000_000,
	})
	if err != nil {
		return nil, err
	}
	if _, err := uow.Commit(); err != nil {
		t.Fatal(err)
	}
	return vault, nil
}

func (h *testHarness) loadVault(t *testing.T) *entities.Vault {
	uow := entityStore.NewUnitOfWork(h.store, 0)
	v, err := entities.LoadVault(uow, vaultAddress)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func (h *testHarness) refresh(t *testing.T, blockNumber uint64) *RefreshReport {
	uow := entityStore.NewUnitOfWork(h.store, blockNumber)
	vault, err := entities.LoadVault(uow, vaultAddress)
	if err != nil {
		t.Fatal(err)
	}
	report := h.reconciler.Refresh(context.Background(), uow, vault, blockNumber)
	if _, err := uow.Commit(); err != nil {
		t.Fatal(err)
	}
	return report
}

func Test_OnVaultCreated(t *testing.T) {
	t.Run("Creates the vault with metadata and registers it after commit", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		state := h.accessor.Vault(vaultAddress)
		state.Name = "Range Vault"
		state.Token0 = "0x3333333333333333333333333333333333333333"
		state.Token1 = "0x4444444444444444444444444444444444444444"
		state.Token0Name = "WETH"
		state.Token1Name = "USDC"
		state.Manager = "0x5555555555555555555555555555555555555555"
		state.ManagingFee = big.NewInt(100)
		state.PerformanceFee = big.NewInt(250)

		uow := entityStore.NewUnitOfWork(h.store, 100)
		vault, err := h.reconciler.OnVaultCreated(context.Background(), uow, &CreatedVault{
			Factory:     dualFactory(),
			Vault:       vaultAddress,
			Pool:        poolAddress,
			BlockNumber: 100,
			Timestamp:   1_700_000_000,
		})
		assert.Nil(t, err)
		assert.False(t, h.registry.IsMonitored(vaultAddress))

		_, err = uow.Commit()
		assert.Nil(t, err)
		assert.True(t, h.registry.IsMonitored(vaultAddress))

		stored := h.loadVault(t)
		assert.NotNil(t, stored)
		assert.Equal(t, vault.Id, stored.Id)
		assert.Equal(t, "Range Vault", stored.Name)
		assert.Equal(t, token0Address, stored.Token0)
		assert.Equal(t, token1Address, stored.Token1)
		assert.Equal(t, "WETH", stored.Token0Name)
		assert.Equal(t, "USDC", stored.Token1Name)
		assert.Equal(t, "100", stored.ManagingFee.String())
		assert.Equal(t, "250", stored.PerformanceFee.String())
		assert.Equal(t, factoryAddress, stored.Factory)
		assert.Equal(t, config.VaultVariant_Dual, stored.Variant)
		assert.Equal(t, uint64(100), stored.CreatedAtBlock)
		assert.False(t, stored.HasCurrentPosition())
	})
	t.Run("A second creation of the same vault fails", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		_, err = h.create(t, dualFactory())
		assert.Nil(t, err)

		_, err = h.create(t, dualFactory())
		assert.True(t, errors.Is(err, types.ErrVaultAlreadyExists))
	})
	t.Run("Unavailable metadata leaves defaults", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		h.accessor.Revert("metadata", "inThePosition")
		vault, err := h.create(t, dualFactory())
		assert.Nil(t, err)
		assert.Equal(t, "", vault.Name)
		assert.Equal(t, "", vault.Token0)
		assert.Equal(t, "0", vault.ManagingFee.String())
		assert.False(t, vault.InThePosition)
	})
	t.Run("A vault deployed in range gets an initial position", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		state := h.accessor.Vault(vaultAddress)
		state.InThePosition = true
		state.LowerTick = -600
		state.UpperTick = 600
		state.PositionId = "0xabc"

		vault, err := h.create(t, dualFactory())
		assert.Nil(t, err)
		assert.True(t, vault.InThePosition)
		assert.Equal(t, uint64(1), vault.PositionCount)
		assert.Equal(t, utils.PositionId(vaultAddress, 1), vault.CurrentPosition)
		assert.Equal(t, "0xabc", vault.CurrentPositionIdInVault)
		assert.Equal(t, int64(-600), vault.LowerTick)
		assert.Equal(t, int64(600), vault.UpperTick)

		uow := entityStore.NewUnitOfWork(h.store, 0)
		position, err := entities.LoadPosition(uow, vault.CurrentPosition)
		assert.Nil(t, err)
		assert.NotNil(t, position)
		assert.True(t, position.IsOpen())
		assert.Equal(t, uint64(100), position.OpenedAtBlock)
	})
	t.Run("An empty range does not seed a position", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		h.accessor.Vault(vaultAddress).InThePosition = true
		vault, err := h.create(t, dualFactory())
		assert.Nil(t, err)
		assert.False(t, vault.HasCurrentPosition())
		assert.Equal(t, uint64(0), vault.PositionCount)
		assert.False(t, vault.InThePosition)
	})
	t.Run("Legacy vaults read the treasury fee split", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		state := h.accessor.Vault(vaultAddress)
		state.Treasury = "0x6666666666666666666666666666666666666666"
		state.ManagerFee = big.NewInt(500)
		state.TreasuryFee = big.NewInt(200)

		factory := dualFactory()
		factory.Variant = config.VaultVariant_Legacy
		vault, err := h.create(t, factory)
		assert.Nil(t, err)
		assert.Equal(t, "0x6666666666666666666666666666666666666666", vault.Treasury)
		assert.Equal(t, "500", vault.ManagerFee.String())
		assert.Equal(t, "200", vault.TreasuryFee.String())
		assert.Equal(t, "0", vault.ManagingFee.String())
	})
}

func Test_Refresh(t *testing.T) {
	t.Run("Copies available reads onto the vault", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		_, err = h.create(t, dualFactory())
		assert.Nil(t, err)

		state := h.accessor.Vault(vaultAddress)
		state.TotalSupply = big.NewInt(1000)
		state.Balance0 = big.NewInt(11)
		state.Balance1 = big.NewInt(22)
		state.ManagerBalance0 = big.NewInt(3)
		state.ManagerBalance1 = big.NewInt(4)

		report := h.refresh(t, 101)
		assert.True(t, report.IsComplete())

		vault := h.loadVault(t)
		assert.Equal(t, "1000", vault.TotalSupply.String())
		assert.Equal(t, "11", vault.Balance0.String())
		assert.Equal(t, "22", vault.Balance1.String())
		assert.Equal(t, "3", vault.ManagerBalance0.String())
		assert.Equal(t, "4", vault.ManagerBalance1.String())
		assert.Equal(t, "0", vault.Liquidity.String())
		assert.Equal(t, 0, h.accessor.Calls("treasuryBalances"))
	})
	t.Run("Unavailable reads keep the previous values", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		_, err = h.create(t, dualFactory())
		assert.Nil(t, err)

		state := h.accessor.Vault(vaultAddress)
		state.TotalSupply = big.NewInt(1000)
		state.Balance0 = big.NewInt(11)
		state.Balance1 = big.NewInt(22)
		h.refresh(t, 101)

		state.TotalSupply = big.NewInt(5000)
		state.Balance0 = big.NewInt(99)
		h.accessor.Revert("totalSupply", "getUnderlyingBalances")
		report := h.refresh(t, 102)
		assert.ElementsMatch(t, []string{"totalSupply", "getUnderlyingBalances"}, report.Unavailable)

		vault := h.loadVault(t)
		assert.Equal(t, "1000", vault.TotalSupply.String())
		assert.Equal(t, "11", vault.Balance0.String())
		assert.Equal(t, "22", vault.Balance1.String())
	})
	t.Run("Refreshing twice without changes is idempotent", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		_, err = h.create(t, dualFactory())
		assert.Nil(t, err)
		h.accessor.Vault(vaultAddress).TotalSupply = big.NewInt(77)

		h.refresh(t, 101)
		first := h.loadVault(t)
		h.refresh(t, 101)
		second := h.loadVault(t)
		assert.Equal(t, first, second)
	})
	t.Run("Liquidity follows the pool position while in range", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		state := h.accessor.Vault(vaultAddress)
		state.InThePosition = true
		state.LowerTick = -60
		state.UpperTick = 60
		state.PositionId = "0xabc"
		_, err = h.create(t, dualFactory())
		assert.Nil(t, err)

		h.pool.SetLiquidity("0xabc", big.NewInt(123456))
		h.refresh(t, 101)
		assert.Equal(t, "123456", h.loadVault(t).Liquidity.String())

		h.pool.SetReverting(true)
		report := h.refresh(t, 102)
		assert.Equal(t, []string{"positions"}, report.Unavailable)
		assert.Equal(t, "123456", h.loadVault(t).Liquidity.String())
	})
	t.Run("Liquidity can be read from the vault", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		state := h.accessor.Vault(vaultAddress)
		state.InThePosition = true
		state.LowerTick = -60
		state.UpperTick = 60
		state.Liquidity = big.NewInt(42)

		factory := dualFactory()
		factory.LiquidityFromVault = true
		_, err = h.create(t, factory)
		assert.Nil(t, err)

		h.refresh(t, 101)
		assert.Equal(t, "42", h.loadVault(t).Liquidity.String())
	})
	t.Run("Collateral vaults read single token balances", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		factory := dualFactory()
		factory.Variant = config.VaultVariant_Collateral
		_, err = h.create(t, factory)
		assert.Nil(t, err)

		state := h.accessor.Vault(vaultAddress)
		state.BalanceInCollateralToken = big.NewInt(900)
		state.ManagerBalance = big.NewInt(9)
		report := h.refresh(t, 101)
		assert.True(t, report.IsComplete())

		vault := h.loadVault(t)
		assert.Equal(t, "900", vault.Balance.String())
		assert.Equal(t, "9", vault.ManagerBalance.String())
		assert.Equal(t, 0, h.accessor.Calls("getUnderlyingBalances"))
	})
	t.Run("Legacy vaults read treasury balances", func(t *testing.T) {
		h, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer h.store.Close()

		factory := dualFactory()
		factory.Variant = config.VaultVariant_Legacy
		_, err = h.create(t, factory)
		assert.Nil(t, err)

		state := h.accessor.Vault(vaultAddress)
		state.TreasuryBalance0 = big.NewInt(5)
		state.TreasuryBalance1 = big.NewInt(6)
		h.refresh(t, 101)

		vault := h.loadVault(t)
		assert.Equal(t, "5", vault.TreasuryBalance0.String())
		assert.Equal(t, "6", vault.TreasuryBalance1.String())
	})
}
