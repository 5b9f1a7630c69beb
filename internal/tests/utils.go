package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/range-protocol/vault-sidecar/internal/config"
)

func getEnvWithDefault(key string, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetDbConfigFromEnv reads the test database settings from the environment.
// TEST_DB_HOST must be set for database backed tests to run.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(getEnvWithDefault("TEST_DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}
	return &config.DatabaseConfig{
		Host:     os.Getenv("TEST_DB_HOST"),
		Port:     port,
		User:     getEnvWithDefault("TEST_DB_USER", "postgres"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DbName:   getEnvWithDefault("TEST_DB_NAME", "vault_sidecar_test"),
	}
}

func HasTestDatabase() bool {
	return os.Getenv("TEST_DB_HOST") != ""
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}
