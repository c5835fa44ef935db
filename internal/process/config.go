package process

import (
	"os"
	"time"

	"opsconsole/internal/config"
)

// Config holds configuration for the process supervisor.
type Config struct {
	WorkingDirectory string        // default working directory (default: current directory)
	Shell            string        // shell used to run commands with "-c" (default: sh)
	MaxLogs          int           // retained log lines per job (default: 5000)
	MaxJobs          int           // retained jobs, oldest terminal evicted first (default: 0, unbounded)
	ShutdownTimeout  time.Duration // wait for readers on shutdown (default: 10s)
}

// LoadConfigFromEnv loads supervisor configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		WorkingDirectory: config.GetEnv("PROCESS_WORKDIR", ""),
		Shell:            config.GetEnv("PROCESS_SHELL", "sh"),
		MaxLogs:          config.GetIntEnv("PROCESS_MAX_LOGS", 5000),
		MaxJobs:          config.GetIntEnv("PROCESS_MAX_JOBS", 0),
		ShutdownTimeout:  config.GetDurationEnv("PROCESS_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.WorkingDirectory == "" {
		if wd, err := os.Getwd(); err == nil {
			c.WorkingDirectory = wd
		} else {
			c.WorkingDirectory = "."
		}
	}
	if c.Shell == "" {
		c.Shell = "sh"
	}
	if c.MaxLogs <= 0 {
		c.MaxLogs = 5000
	}
	if c.MaxJobs < 0 {
		c.MaxJobs = 0
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}
