// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	HTTPPort    string
	Environment string
}

type DatabaseConfig struct {
	// Backend selects the document store: "postgres" or "memory".
	Backend  string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SyncConfig struct {
	// DeletePolicy is "any" (any sharer may delete) or "owner".
	DeletePolicy string
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			HTTPPort:    getEnv("HTTP_PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Backend:  getEnv("STORE_BACKEND", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "donezo"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Sync: SyncConfig{
			DeletePolicy: getEnv("DELETE_POLICY", "any"),
		},
	}, nil
}

// ValidateConfig rejects values outside the known sets.
func (c *Config) ValidateConfig() error {
	switch c.Database.Backend {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want postgres or memory)", c.Database.Backend)
	}
	switch c.Sync.DeletePolicy {
	case "any", "owner":
	default:
		return fmt.Errorf("unknown DELETE_POLICY %q (want any or owner)", c.Sync.DeletePolicy)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
