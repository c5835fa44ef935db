package probe

import (
	"time"

	"opsconsole/internal/config"
)

// Config holds configuration for the probe sweeper.
type Config struct {
	Concurrency int           // concurrent probes per sweep (default: 50)
	Timeout     time.Duration // per-probe timeout (default: 10s)
	EchoURL     string        // identity echo endpoint returning {"origin": "..."}
	UserAgent   string        // User-Agent header sent with each probe
	Scheme      string        // scheme applied to normalized targets (default: http)
}

// LoadConfigFromEnv loads probe configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Concurrency: config.GetIntEnv("PROBE_CONCURRENCY", 50),
		Timeout:     config.GetDurationEnv("PROBE_TIMEOUT", 10*time.Second),
		EchoURL:     config.GetEnv("PROBE_ECHO_URL", "http://httpbin.org/ip"),
		UserAgent:   config.GetEnv("PROBE_USER_AGENT", "ProxyTester/1.0"),
		Scheme:      config.GetEnv("PROBE_SCHEME", "http"),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 50
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.EchoURL == "" {
		c.EchoURL = "http://httpbin.org/ip"
	}
	if c.UserAgent == "" {
		c.UserAgent = "ProxyTester/1.0"
	}
	if c.Scheme == "" {
		c.Scheme = "http"
	}
	return c
}
