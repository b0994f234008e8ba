package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URI", "MONGODB_URI", "HOST", "PORT", "LOG_LEVEL", "LOG_FORMAT", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURI != "mongodb://localhost:27017" {
		t.Fatalf("expected default uri, got %q", cfg.DatabaseURI)
	}
	if cfg.Addr() != ":8080" {
		t.Fatalf("expected addr :8080, got %q", cfg.Addr())
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("expected 10s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "diary.yaml")
	content := `database_uri: postgres://diary@localhost/diary
host: 127.0.0.1
port: 9000
log_level: debug
shutdown_timeout: 3s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURI != "postgres://diary@localhost/diary" || cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 3*time.Second || cfg.LogLevel != "debug" {
		t.Fatalf("file values not applied: %+v", cfg)
	}

	t.Setenv("MONGODB_URI", "mongodb://mongo:27017")
	t.Setenv("PORT", "7000")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURI != "mongodb://mongo:27017" || cfg.Port != 7000 {
		t.Fatalf("env did not override file: %+v", cfg)
	}

	t.Setenv("DATABASE_URI", "sqlite:///tmp/diary.db")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURI != "sqlite:///tmp/diary.db" {
		t.Fatalf("expected DATABASE_URI to win over MONGODB_URI, got %q", cfg.DatabaseURI)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"PORT", "eighty", "invalid PORT"},
		{"PORT", "70000", "out of range"},
		{"SHUTDOWN_TIMEOUT", "soon", "invalid SHUTDOWN_TIMEOUT"},
		{"LOG_FORMAT", "xml", "unknown log format"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadDotenv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("MONGODB_URI=mongodb://from-dotenv:27017\nPORT=9100\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("PORT", "9200")

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("MONGODB_URI") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURI != "mongodb://from-dotenv:27017" {
		t.Fatalf("expected uri from .env, got %q", cfg.DatabaseURI)
	}
	if cfg.Port != 9200 {
		t.Fatalf("expected existing PORT to win, got %d", cfg.Port)
	}

	if err := LoadDotenv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing .env to be ignored, got %v", err)
	}
}

func TestLogger(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger, err := cfg.Logger(&buf)
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"message":"shown"`) {
		t.Fatalf("unexpected log output %q", out)
	}

	cfg.LogLevel = "loud"
	if _, err := cfg.Logger(&buf); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
