package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	if got := GetEnv("OPSCONSOLE_TEST_MISSING", "default"); got != "default" {
		t.Errorf("Expected 'default', got %q", got)
	}

	t.Setenv("OPSCONSOLE_TEST_GET_ENV", "custom")
	if got := GetEnv("OPSCONSOLE_TEST_GET_ENV", "default"); got != "custom" {
		t.Errorf("Expected 'custom', got %q", got)
	}
}

func TestGetIntEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"unset", "", 42},
		{"valid", "123", 123},
		{"negative", "-1", -1},
		{"invalid", "not-a-number", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPSCONSOLE_TEST_INT", tt.value)
			if got := GetIntEnv("OPSCONSOLE_TEST_INT", 42); got != tt.want {
				t.Errorf("GetIntEnv() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetDurationEnv(t *testing.T) {
	def := 5 * time.Second
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"unset", "", def},
		{"seconds", "30s", 30 * time.Second},
		{"milliseconds", "100ms", 100 * time.Millisecond},
		{"invalid", "not-a-duration", def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPSCONSOLE_TEST_DURATION", tt.value)
			if got := GetDurationEnv("OPSCONSOLE_TEST_DURATION", def); got != tt.want {
				t.Errorf("GetDurationEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"true", false, true},
		{"1", false, true},
		{"false", true, false},
		{"yes", false, false},
	}
	for _, tt := range tests {
		t.Setenv("OPSCONSOLE_TEST_BOOL", tt.value)
		if got := GetBoolEnv("OPSCONSOLE_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("GetBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetLevelEnv(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Setenv("OPSCONSOLE_TEST_LEVEL", tt.value)
		if got := GetLevelEnv("OPSCONSOLE_TEST_LEVEL", slog.LevelInfo); got != tt.want {
			t.Errorf("GetLevelEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetSecretFile(t *testing.T) {
	if got := GetSecretFile(""); got != "" {
		t.Errorf("Expected empty string for empty path, got %q", got)
	}
	if got := GetSecretFile("/nonexistent/path/to/secret"); got != "" {
		t.Errorf("Expected empty string for nonexistent file, got %q", got)
	}

	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("my-secret-value\n"), 0o600); err != nil {
		t.Fatalf("Failed to write secret: %v", err)
	}
	if got := GetSecretFile(path); got != "my-secret-value" {
		t.Errorf("Expected 'my-secret-value', got %q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "OPSCONSOLE_TEST_DOTENV=from-file\nOPSCONSOLE_TEST_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	t.Setenv("OPSCONSOLE_TEST_DOTENV", "")
	os.Unsetenv("OPSCONSOLE_TEST_DOTENV")
	t.Setenv("OPSCONSOLE_TEST_DOTENV_SET", "from-env")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv("OPSCONSOLE_TEST_DOTENV"); got != "from-file" {
		t.Errorf("Expected 'from-file', got %q", got)
	}
	if got := os.Getenv("OPSCONSOLE_TEST_DOTENV_SET"); got != "from-env" {
		t.Errorf("Expected existing value to win, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("Expected error for missing explicit env file")
	}
}

func TestLoadServiceConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("EXPORT_DIR", "/tmp/exports")
	t.Setenv("SYNC_COMMAND", "echo {file}")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadServiceConfig()
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.ExportDir != "/tmp/exports" {
		t.Errorf("Expected export dir /tmp/exports, got %q", cfg.ExportDir)
	}
	if cfg.SyncCommand != "echo {file}" {
		t.Errorf("Unexpected sync command %q", cfg.SyncCommand)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("Expected debug level, got %v", cfg.LogLevel)
	}
}
