package pipeline

import (
	"context"
	"math/rand"
	"testing"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/range-protocol/vault-sidecar/internal/logger"
	"github.com/range-protocol/vault-sidecar/internal/metrics"
	"github.com/range-protocol/vault-sidecar/internal/tests"
	"github.com/range-protocol/vault-sidecar/pkg/entities"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore"
	"github.com/range-protocol/vault-sidecar/pkg/entityStore/levelDbEntityStore"
	"github.com/range-protocol/vault-sidecar/pkg/eventBus"
	"github.com/range-protocol/vault-sidecar/pkg/monitoring"
	"github.com/range-protocol/vault-sidecar/pkg/storage"
	"github.com/range-protocol/vault-sidecar/pkg/types/numbers"
	"github.com/range-protocol/vault-sidecar/pkg/utils"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/handlers"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/stateManager"
	"github.com/range-protocol/vault-sidecar/pkg/vaultState/types"
	"github.com/stretchr/testify/assert"
)

const (
	factoryAddress = "0x0000000000000000000000000000000000000fac"
	vaultA         = "0x1111111111111111111111111111111111111111"
	vaultB         = "0x2222222222222222222222222222222222222222"
	poolA          = "0x3333333333333333333333333333333333333333"
	poolB          = "0x4444444444444444444444444444444444444444"
	stranger       = "0x5555555555555555555555555555555555555555"
	userA          = "0xaaaa000000000000000000000000000000000001"
	userB          = "0xbbbb000000000000000000000000000000000002"
)

func setup() (entityStore.IEntityStore, *Pipeline, error) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	store, err := levelDbEntityStore.NewInMemoryLevelDbEntityStore(l)
	if err != nil {
		return nil, nil, err
	}
	cfg := &config.Config{
		Factories: []config.FactoryConfig{
			{Address: factoryAddress, Variant: config.VaultVariant_Dual, PoolKind: config.PoolKind_UniswapV3},
		},
		IndexerConfig: config.IndexerConfig{
			Workers:             4,
			SkipDuplicateEvents: true,
			StateRoots:          true,
		},
	}
	ms := metrics.NewNoopMetricsSink()
	accessor := tests.NewFakeVaultStateAccessor()
	accessor.Vault(vaultA).Token1 = "0x00000000000000000000000000000000000000a1"
	accessor.Vault(vaultB).Token1 = "0x00000000000000000000000000000000000000b1"
	pool := tests.NewFakePoolAdapter()
	pool.SetPrice(poolA, numbers.Q96)
	pool.SetPrice(poolB, numbers.Q96)

	registry := monitoring.NewRegistry(store, ms, l)
	sm := stateManager.NewVaultStateManager(store, registry, eventBus.NewEventBus(l), ms, l, cfg)
	if _, err := handlers.NewVaultHandlers(sm, accessor, pool.PoolAdapters(), registry, ms, l, cfg); err != nil {
		return nil, nil, err
	}
	return store, NewPipeline(sm, ms, l, cfg), nil
}

func mintLogs(b *tests.LogBuilder, vault string, receiver string, shares string) []*storage.TransactionLog {
	return []*storage.TransactionLog{
		b.Log(vault, types.Event_Transfer, map[string]interface{}{
			"from":  utils.NullEthereumAddressHex,
			"to":    receiver,
			"value": shares,
		}),
		b.Log(vault, types.Event_Minted, map[string]interface{}{
			"receiver":   receiver,
			"mintAmount": shares,
			"amount0In":  shares,
			"amount1In":  "0",
		}),
	}
}

func Test_Pipeline(t *testing.T) {
	t.Run("Applies created vaults and their events from one batch", func(t *testing.T) {
		store, p, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		defer p.Close()

		b := tests.NewLogBuilder(100, 1_700_000_000)
		logs := []*storage.TransactionLog{
			b.Log(factoryAddress, types.Event_VaultCreated, map[string]interface{}{"vault": vaultA, "uniPool": poolA}),
			b.Log(factoryAddress, types.Event_VaultCreated, map[string]interface{}{"vault": vaultB, "uniPool": poolB}),
			b.Log(factoryAddress, types.Event_OwnershipTransferred, map[string]interface{}{"newOwner": userA}),
		}
		b.NextBlock()
		logs = append(logs, mintLogs(b, vaultA, userA, "100")...)
		logs = append(logs, mintLogs(b, vaultB, userB, "250")...)
		logs = append(logs, b.Log(stranger, types.Event_Transfer, map[string]interface{}{"from": userA, "to": userB, "value": "1"}))

		// delivery order within a batch does not matter
		rand.New(rand.NewSource(7)).Shuffle(len(logs), func(i, j int) { logs[i], logs[j] = logs[j], logs[i] })

		result, err := p.ProcessBatch(context.Background(), logs)
		assert.Nil(t, err)
		assert.Equal(t, int64(6), result.Applied)
		assert.Equal(t, int64(2), result.Skipped)
		assert.Equal(t, 3, result.Vaults)

		assert.Len(t, result.StateRoots, 2)
		for _, root := range result.StateRoots {
			assert.Equal(t, uint64(101), root.BlockNumber)
		}

		uow := entityStore.NewUnitOfWork(store, 0)
		balanceA, err := entities.LoadUserVaultBalance(uow, utils.UserVaultBalanceId(vaultA, userA))
		assert.Nil(t, err)
		assert.Equal(t, "100", balanceA.Balance.String())
		balanceB, err := entities.LoadUserVaultBalance(uow, utils.UserVaultBalanceId(vaultB, userB))
		assert.Nil(t, err)
		assert.Equal(t, "250", balanceB.Balance.String())

		// the block 100 roots were finalised when the vaults moved on
		rootA, err := entities.LoadVaultStateRoot(uow, utils.StateRootId(vaultA, 100))
		assert.Nil(t, err)
		assert.NotNil(t, rootA)
	})
	t.Run("A failing vault fails the batch", func(t *testing.T) {
		store, p, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		defer p.Close()

		b := tests.NewLogBuilder(100, 1_700_000_000)
		logs := []*storage.TransactionLog{
			b.Log(factoryAddress, types.Event_VaultCreated, map[string]interface{}{"vault": vaultA, "uniPool": poolA}),
		}
		b.NextBlock()
		// userA holds nothing yet
		logs = append(logs, b.Log(vaultA, types.Event_Transfer, map[string]interface{}{"from": userA, "to": userB, "value": "5"}))

		_, err = p.ProcessBatch(context.Background(), logs)
		assert.NotNil(t, err)
	})
	t.Run("Runs a source to completion", func(t *testing.T) {
		store, p, err := setup()
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()
		defer p.Close()

		b := tests.NewLogBuilder(100, 1_700_000_000)
		created := b.Log(factoryAddress, types.Event_VaultCreated, map[string]interface{}{"vault": vaultA, "uniPool": poolA})
		b.NextBlock()
		source := &sliceSource{batches: [][]*storage.TransactionLog{{created}, mintLogs(b, vaultA, userA, "10")}}

		assert.Nil(t, p.Run(context.Background(), source))
		vault, err := entities.LoadVault(entityStore.NewUnitOfWork(store, 0), vaultA)
		assert.Nil(t, err)
		assert.Equal(t, uint64(101), vault.LastEventBlock)
	})
}
