package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "VAULT_SIDECAR"

type EntityStoreBackend string

const (
	EntityStoreBackend_Postgres EntityStoreBackend = "postgres"
	EntityStoreBackend_LevelDb  EntityStoreBackend = "leveldb"
)

// VaultVariant selects the event shapes and external reads a vault family supports.
type VaultVariant string

const (
	// VaultVariant_Dual is the two-token vault with managing/performance fees.
	VaultVariant_Dual VaultVariant = "dual"
	// VaultVariant_Legacy is the two-token vault with manager/treasury fee splits.
	VaultVariant_Legacy VaultVariant = "legacy"
	// VaultVariant_Collateral is the single collateral-token vault (GHO family).
	VaultVariant_Collateral VaultVariant = "collateral"
)

type PoolKind string

const (
	PoolKind_UniswapV3 PoolKind = "uniswapV3"
	PoolKind_Algebra   PoolKind = "algebra"
)

type EthereumRpcConfig struct {
	BaseUrl              string
	ChunkedBatchCallSize int
}

type DatabaseConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
}

type EntityStoreConfig struct {
	Backend     EntityStoreBackend
	LevelDbPath string
}

type IndexerConfig struct {
	Workers             int
	QueueSize           int
	BatchSize           int
	SkipDuplicateEvents bool
	RejectOutOfOrder    bool
	StateRoots          bool
}

// VaultFilter holds per-deployment address allow/deny lists.
type VaultFilter struct {
	Allow []string
	Deny  []string
}

// IsAllowed reports whether events from the given vault should be processed.
// A non-empty allow list restricts processing to its members; the deny list always wins.
func (f *VaultFilter) IsAllowed(address string) bool {
	address = strings.ToLower(address)
	if slices.Contains(f.Deny, address) {
		return false
	}
	if len(f.Allow) == 0 {
		return true
	}
	return slices.Contains(f.Allow, address)
}

// FactoryConfig describes a vault factory and the variant of the vaults it deploys.
type FactoryConfig struct {
	Address             string       `mapstructure:"address"`
	Variant             VaultVariant `mapstructure:"variant"`
	PoolKind            PoolKind     `mapstructure:"pool_kind"`
	DeleteEmptyBalances bool         `mapstructure:"delete_empty_balances"`
	// LiquidityFromVault reads liquidity from the vault instead of the pool position.
	LiquidityFromVault bool `mapstructure:"liquidity_from_vault"`
}

type NatsConfig struct {
	Url      string
	Subject  string
	Stream   string
	Consumer string
	// StateRootSubject receives every committed state root when set.
	StateRootSubject string
}

type DataDogConfig struct {
	StatsdConfig struct {
		Enabled    bool
		Url        string
		SampleRate float64
	}
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type SnapshotConfig struct {
	OutputFile string
	InputFile  string
}

type ReplayConfig struct {
	InputFile string
}

type Config struct {
	Debug             bool
	EthereumRpcConfig EthereumRpcConfig
	DatabaseConfig    DatabaseConfig
	EntityStoreConfig EntityStoreConfig
	IndexerConfig     IndexerConfig
	VaultFilter       VaultFilter
	Factories         []FactoryConfig
	NatsConfig        NatsConfig
	DataDogConfig     DataDogConfig
	PrometheusConfig  PrometheusConfig
	SnapshotConfig    SnapshotConfig
	ReplayConfig      ReplayConfig
}

func StringWithDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func normalizeAddresses(addresses []string) []string {
	out := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

var (
	Debug = "debug"

	EthereumRpcBaseUrl              = "ethereum.rpc_url"
	EthereumRpcChunkedBatchCallSize = "ethereum.chunked_batch_call_size"

	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"

	EntityStoreBackendKey  = "entity_store.backend"
	EntityStoreLevelDbPath = "entity_store.leveldb_path"

	IndexerWorkers             = "indexer.workers"
	IndexerQueueSize           = "indexer.queue_size"
	IndexerBatchSize           = "indexer.batch_size"
	IndexerSkipDuplicateEvents = "indexer.skip_duplicate_events"
	IndexerRejectOutOfOrder    = "indexer.reject_out_of_order"
	IndexerStateRoots          = "indexer.state_roots"

	VaultsAllow = "vaults.allow"
	VaultsDeny  = "vaults.deny"

	Factories = "factories"

	NatsUrl      = "nats.url"
	NatsSubject  = "nats.subject"
	NatsStream   = "nats.stream"
	NatsConsumer = "nats.consumer"

	NatsStateRootSubject = "nats.state_root_subject"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	SnapshotOutputFile = "snapshot.output_file"
	SnapshotInputFile  = "snapshot.input_file"

	ReplayInputFile = "replay.input_file"
)

func NewConfig() *Config {
	cfg := &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		EthereumRpcConfig: EthereumRpcConfig{
			BaseUrl:              viper.GetString(normalizeFlagName(EthereumRpcBaseUrl)),
			ChunkedBatchCallSize: viper.GetInt(normalizeFlagName(EthereumRpcChunkedBatchCallSize)),
		},

		DatabaseConfig: DatabaseConfig{
			Host:       viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:       viper.GetInt(normalizeFlagName(DatabasePort)),
			User:       viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:   viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:     viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName: viper.GetString(normalizeFlagName(DatabaseSchemaName)),
		},

		EntityStoreConfig: EntityStoreConfig{
			Backend:     EntityStoreBackend(StringWithDefault(viper.GetString(normalizeFlagName(EntityStoreBackendKey)), string(EntityStoreBackend_Postgres))),
			LevelDbPath: viper.GetString(normalizeFlagName(EntityStoreLevelDbPath)),
		},

		IndexerConfig: IndexerConfig{
			Workers:             viper.GetInt(normalizeFlagName(IndexerWorkers)),
			QueueSize:           viper.GetInt(normalizeFlagName(IndexerQueueSize)),
			BatchSize:           viper.GetInt(normalizeFlagName(IndexerBatchSize)),
			SkipDuplicateEvents: viper.GetBool(normalizeFlagName(IndexerSkipDuplicateEvents)),
			RejectOutOfOrder:    viper.GetBool(normalizeFlagName(IndexerRejectOutOfOrder)),
			StateRoots:          viper.GetBool(normalizeFlagName(IndexerStateRoots)),
		},

		VaultFilter: VaultFilter{
			Allow: normalizeAddresses(viper.GetStringSlice(normalizeFlagName(VaultsAllow))),
			Deny:  normalizeAddresses(viper.GetStringSlice(normalizeFlagName(VaultsDeny))),
		},

		NatsConfig: NatsConfig{
			Url:      viper.GetString(normalizeFlagName(NatsUrl)),
			Subject:  viper.GetString(normalizeFlagName(NatsSubject)),
			Stream:   viper.GetString(normalizeFlagName(NatsStream)),
			Consumer: viper.GetString(normalizeFlagName(NatsConsumer)),

			StateRootSubject: viper.GetString(normalizeFlagName(NatsStateRootSubject)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		SnapshotConfig: SnapshotConfig{
			OutputFile: viper.GetString(normalizeFlagName(SnapshotOutputFile)),
			InputFile:  viper.GetString(normalizeFlagName(SnapshotInputFile)),
		},

		ReplayConfig: ReplayConfig{
			InputFile: viper.GetString(normalizeFlagName(ReplayInputFile)),
		},
	}
	cfg.DataDogConfig.StatsdConfig.Enabled = viper.GetBool(normalizeFlagName(DataDogStatsdEnabled))
	cfg.DataDogConfig.StatsdConfig.Url = viper.GetString(normalizeFlagName(DataDogStatsdUrl))
	cfg.DataDogConfig.StatsdConfig.SampleRate = viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate))

	factories := make([]FactoryConfig, 0)
	if err := viper.UnmarshalKey(Factories, &factories); err == nil {
		for i := range factories {
			factories[i].Address = strings.ToLower(factories[i].Address)
		}
		cfg.Factories = factories
	}

	return cfg
}

// GetFactory returns the configuration of the factory at the given address.
func (c *Config) GetFactory(address string) (*FactoryConfig, bool) {
	address = strings.ToLower(address)
	for i := range c.Factories {
		if c.Factories[i].Address == address {
			return &c.Factories[i], true
		}
	}
	return nil, false
}

func (c *Config) GetFactoryAddresses() []string {
	addresses := make([]string, 0, len(c.Factories))
	for _, f := range c.Factories {
		addresses = append(addresses, f.Address)
	}
	return addresses
}

func (c *Config) Validate() error {
	var errs []error
	switch c.EntityStoreConfig.Backend {
	case EntityStoreBackend_Postgres:
	case EntityStoreBackend_LevelDb:
		if c.EntityStoreConfig.LevelDbPath == "" {
			errs = append(errs, fmt.Errorf("%s is required for the leveldb backend", EntityStoreLevelDbPath))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown entity store backend %q", c.EntityStoreConfig.Backend))
	}
	if len(c.Factories) == 0 {
		errs = append(errs, errors.New("at least one factory must be configured"))
	}
	for _, f := range c.Factories {
		if f.Address == "" {
			errs = append(errs, errors.New("factory address must not be empty"))
		}
		switch f.Variant {
		case VaultVariant_Dual, VaultVariant_Legacy, VaultVariant_Collateral:
		default:
			errs = append(errs, fmt.Errorf("factory %s has unknown variant %q", f.Address, f.Variant))
		}
		switch f.PoolKind {
		case PoolKind_UniswapV3, PoolKind_Algebra:
		default:
			errs = append(errs, fmt.Errorf("factory %s has unknown pool kind %q", f.Address, f.PoolKind))
		}
	}
	return errors.Join(errs...)
}

func normalizeFlagName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}
