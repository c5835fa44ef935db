// Package config provides configuration loading from environment variables.
package config

import (
	"log/slog"
	"time"
)

// ServiceConfig holds configuration for the console service.
type ServiceConfig struct {
	Port              string
	MetricsPort       string
	APIKey            string
	ShutdownDrainWait time.Duration // Time to wait for load balancer to drain (0 to skip)
	ExportDir         string        // Directory receiving proxy export files
	SyncCommand       string        // Command template run on sync; "{file}" is replaced by the export path
	LogLevel          slog.Level
}

// LoadServiceConfig loads service configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Port:              GetEnv("PORT", "8080"),
		MetricsPort:       GetEnv("METRICS_PORT", "9090"),
		APIKey:            GetSecretFile(GetEnv("API_KEY_FILE", "")),
		ShutdownDrainWait: GetDurationEnv("SHUTDOWN_DRAIN_WAIT", 5*time.Second),
		ExportDir:         GetEnv("EXPORT_DIR", "./files/proxies"),
		SyncCommand:       GetEnv("SYNC_COMMAND", ""),
		LogLevel:          GetLevelEnv("LOG_LEVEL", slog.LevelInfo),
	}
}
