package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/range-protocol/vault-sidecar/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "vault-sidecar",
	Short: "Maintains Range vault state from decoded contract events",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(readConfigFile)
	initConfig(rootCmd)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", `Path to a config file (yaml, json or toml). Required to declare factories`)
	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String("ethereum.rpc-url", "", `e.g. "http://<hostname>:8545"`)
	rootCmd.PersistentFlags().Int("ethereum.chunked-batch-call-size", 10, `The number of calls to make in parallel when using the chunked batch call method`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "sidecar", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String("database.db-name", "vault_sidecar", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String("database.schema-name", "", `PostgreSQL schema name (default "public")`)

	rootCmd.PersistentFlags().String(config.EntityStoreBackendKey, string(config.EntityStoreBackend_Postgres), `Entity store backend ("postgres" or "leveldb")`)
	rootCmd.PersistentFlags().String("entity-store.leveldb-path", "", `Directory of the leveldb entity store`)

	rootCmd.PersistentFlags().Int(config.IndexerWorkers, 8, `Number of vaults applied in parallel`)
	rootCmd.PersistentFlags().Int("indexer.queue-size", 1024, `Maximum number of queued vault partitions`)
	rootCmd.PersistentFlags().Int("indexer.batch-size", 500, `Number of logs applied per batch`)
	rootCmd.PersistentFlags().Bool("indexer.skip-duplicate-events", true, `Record processed events and skip redeliveries`)
	rootCmd.PersistentFlags().Bool("indexer.reject-out-of-order", false, `Fail instead of warning when a vault event arrives out of order`)
	rootCmd.PersistentFlags().Bool("indexer.state-roots", true, `Compute a state root per vault and block`)

	rootCmd.PersistentFlags().StringSlice(config.VaultsAllow, nil, `Only process these vault addresses`)
	rootCmd.PersistentFlags().StringSlice(config.VaultsDeny, nil, `Never process these vault addresses`)

	rootCmd.PersistentFlags().Bool("datadog.statsd.enabled", false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String("datadog.statsd.url", "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64("datadog.statsd.sample-rate", 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool("prometheus.enabled", false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int("prometheus.port", 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(createSnapshotCmd)
	rootCmd.AddCommand(restoreSnapshotCmd)

	// bind any subcommand flags
	runCmd.PersistentFlags().String(config.NatsUrl, "nats://localhost:4222", `NATS server url`)
	runCmd.PersistentFlags().String(config.NatsSubject, "vaults.logs.>", `Subject carrying decoded logs`)
	runCmd.PersistentFlags().String(config.NatsStream, "VAULT_LOGS", `JetStream stream name`)
	runCmd.PersistentFlags().String(config.NatsConsumer, "vault-sidecar", `Durable consumer name`)
	runCmd.PersistentFlags().String(config.NatsStateRootSubject, "", `Subject to publish committed state roots on, disabled when empty`)
	replayCmd.PersistentFlags().String("replay.input-file", "", "Path to a CSV file of decoded logs (required)")
	createSnapshotCmd.PersistentFlags().String("snapshot.output-file", "", "Path to save the snapshot file to (required)")
	restoreSnapshotCmd.PersistentFlags().String("snapshot.input-file", "", "Path to the snapshot file (required)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

func readConfigFile() {
	if configFile == "" {
		return
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("Failed to read config file '%s' - %+v\n", configFile, err)
		os.Exit(1)
	}
}

// initCommandFlags binds the flags of a sub command, which are not visible to the
// root command's persistent flag set.
func initCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(config.KebabToSnakeCase(f.Name)); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
