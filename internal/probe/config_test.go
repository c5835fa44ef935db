package probe

import (
	"testing"
	"time"
)

func TestConfig_WithDefaults(t *testing.T) {
	t.Parallel()
	cfg := Config{}.withDefaults()

	if cfg.Concurrency != 50 {
		t.Errorf("Expected Concurrency 50, got %d", cfg.Concurrency)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Expected Timeout 10s, got %v", cfg.Timeout)
	}
	if cfg.EchoURL != "http://httpbin.org/ip" {
		t.Errorf("Expected default echo URL, got %q", cfg.EchoURL)
	}
	if cfg.UserAgent != "ProxyTester/1.0" {
		t.Errorf("Expected ProxyTester/1.0, got %q", cfg.UserAgent)
	}
	if cfg.Scheme != "http" {
		t.Errorf("Expected scheme http, got %q", cfg.Scheme)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PROBE_CONCURRENCY", "5")
	t.Setenv("PROBE_TIMEOUT", "250ms")
	t.Setenv("PROBE_ECHO_URL", "http://echo.internal/ip")
	t.Setenv("PROBE_SCHEME", "socks5")

	cfg := LoadConfigFromEnv()
	if cfg.Concurrency != 5 || cfg.Timeout != 250*time.Millisecond {
		t.Errorf("Unexpected limits: %+v", cfg)
	}
	if cfg.EchoURL != "http://echo.internal/ip" || cfg.Scheme != "socks5" {
		t.Errorf("Unexpected endpoints: %+v", cfg)
	}
	if cfg.UserAgent != "ProxyTester/1.0" {
		t.Errorf("Expected default user agent, got %q", cfg.UserAgent)
	}
}
