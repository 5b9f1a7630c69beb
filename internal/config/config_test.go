package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		EntityStoreConfig: EntityStoreConfig{Backend: EntityStoreBackend_Postgres},
		Factories: []FactoryConfig{
			{Address: "0xfactory", Variant: VaultVariant_Dual, PoolKind: PoolKind_UniswapV3},
		},
	}
}

func Test_Config(t *testing.T) {
	t.Run("VaultFilter", func(t *testing.T) {
		t.Run("Empty filter allows everything", func(t *testing.T) {
			f := &VaultFilter{}
			assert.True(t, f.IsAllowed("0xabc"))
		})
		t.Run("Allow list restricts", func(t *testing.T) {
			f := &VaultFilter{Allow: []string{"0xabc"}}
			assert.True(t, f.IsAllowed("0xABC"))
			assert.False(t, f.IsAllowed("0xdef"))
		})
		t.Run("Deny wins over allow", func(t *testing.T) {
			f := &VaultFilter{Allow: []string{"0xabc"}, Deny: []string{"0xabc"}}
			assert.False(t, f.IsAllowed("0xabc"))
		})
	})
	t.Run("GetFactory is case insensitive", func(t *testing.T) {
		cfg := validConfig()
		f, ok := cfg.GetFactory("0xFACTORY")
		assert.True(t, ok)
		assert.Equal(t, VaultVariant_Dual, f.Variant)

		_, ok = cfg.GetFactory("0xother")
		assert.False(t, ok)
		assert.Equal(t, []string{"0xfactory"}, cfg.GetFactoryAddresses())
	})
	t.Run("Validate", func(t *testing.T) {
		assert.Nil(t, validConfig().Validate())

		cfg := validConfig()
		cfg.EntityStoreConfig.Backend = "sqlite"
		assert.ErrorContains(t, cfg.Validate(), "unknown entity store backend")

		cfg = validConfig()
		cfg.EntityStoreConfig.Backend = EntityStoreBackend_LevelDb
		assert.ErrorContains(t, cfg.Validate(), EntityStoreLevelDbPath)
		cfg.EntityStoreConfig.LevelDbPath = "/tmp/vaults"
		assert.Nil(t, cfg.Validate())

		cfg = validConfig()
		cfg.Factories = nil
		assert.ErrorContains(t, cfg.Validate(), "at least one factory")

		cfg = validConfig()
		cfg.Factories[0].Variant = "triple"
		cfg.Factories[0].PoolKind = "curve"
		err := cfg.Validate()
		assert.ErrorContains(t, err, "unknown variant")
		assert.ErrorContains(t, err, "unknown pool kind")
	})
	t.Run("StringWithDefault", func(t *testing.T) {
		assert.Equal(t, "a", StringWithDefault("", "a"))
		assert.Equal(t, "b", StringWithDefault("b", "a"))
	})
	t.Run("NewConfig reads viper", func(t *testing.T) {
		viper.Reset()
		defer viper.Reset()

		viper.Set(EntityStoreLevelDbPath, "/tmp/vaults")
		viper.Set(VaultsAllow, []string{" 0xAAA ", ""})
		viper.Set(IndexerWorkers, 4)
		viper.Set(Factories, []map[string]interface{}{
			{"address": "0xFACTORY", "variant": "legacy", "pool_kind": "algebra", "delete_empty_balances": true},
		})

		cfg := NewConfig()
		assert.Equal(t, EntityStoreBackend_Postgres, cfg.EntityStoreConfig.Backend)
		assert.Equal(t, "/tmp/vaults", cfg.EntityStoreConfig.LevelDbPath)
		assert.Equal(t, []string{"0xaaa"}, cfg.VaultFilter.Allow)
		assert.Equal(t, 4, cfg.IndexerConfig.Workers)
		if assert.Len(t, cfg.Factories, 1) {
			f := cfg.Factories[0]
			assert.Equal(t, "0xfactory", f.Address)
			assert.Equal(t, VaultVariant_Legacy, f.Variant)
			assert.Equal(t, PoolKind_Algebra, f.PoolKind)
			assert.True(t, f.DeleteEmptyBalances)
		}
	})
}
