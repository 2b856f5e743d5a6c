package testutil

import (
	"os"
	"testing"
)

const (
	// Environment variables that point tests at real backing services
	TestRedisAddress  = "TEST_REDIS_ADDRESS"
	TestPostgresDSN   = "TEST_POSTGRES_DSN"
	TestMySQLDSN      = "TEST_MYSQL_DSN"
	TestPokemonAPIKey = "TEST_POKEMON_API_KEY"

	DefaultTestKey = "test-key"
)

// GetTestToken returns a value from environment variable or default
func GetTestToken(envVar, defaultValue string) string {
	if token := os.Getenv(envVar); token != "" {
		return token
	}
	return defaultValue
}

// GetTestPokemonAPIKey returns test API key for the Pokemon TCG API
func GetTestPokemonAPIKey() string {
	return GetTestToken(TestPokemonAPIKey, DefaultTestKey)
}

// RequireEnv skips the test unless envVar is set, and returns its value.
func RequireEnv(t testing.TB, envVar string) string {
	t.Helper()
	v := os.Getenv(envVar)
	if v == "" {
		t.Skipf("%s not set", envVar)
	}
	return v
}
