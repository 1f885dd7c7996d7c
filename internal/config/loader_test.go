package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"ROOMBOOK_HTTP_PORT",
	"ROOMBOOK_ENV",
	"ROOMBOOK_LOG_LEVEL",
	"ROOMBOOK_STORE",
	"ROOMBOOK_SQLITE_DSN",
	"ROOMBOOK_POSTGRES_DSN",
	"ROOMBOOK_BOOTSTRAP_ADMIN",
	"ROOMBOOK_SHUTDOWN_TIMEOUT",
}

// clearEnv unsets every variable the loader reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.Store != StoreSQLite || cfg.SQLiteDSN != DefaultSQLiteDSN {
			t.Fatalf("unexpected default store %q dsn %q", cfg.Store, cfg.SQLiteDSN)
		}
		if cfg.Env != "development" || cfg.LogLevel != "info" {
			t.Fatalf("unexpected logging defaults env=%q level=%q", cfg.Env, cfg.LogLevel)
		}
		if cfg.BootstrapAdmin != "admin" || cfg.ShutdownTimeout != 10*time.Second {
			t.Fatalf("unexpected defaults %+v", cfg)
		}
	})

	t.Run("reads overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMBOOK_HTTP_PORT", "9090")
		t.Setenv("ROOMBOOK_ENV", "production")
		t.Setenv("ROOMBOOK_LOG_LEVEL", "WARN")
		t.Setenv("ROOMBOOK_STORE", "postgres")
		t.Setenv("ROOMBOOK_POSTGRES_DSN", "postgres://localhost/roombook")
		t.Setenv("ROOMBOOK_BOOTSTRAP_ADMIN", "root")
		t.Setenv("ROOMBOOK_SHUTDOWN_TIMEOUT", "3s")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if cfg.HTTPPort != 9090 || cfg.Env != "production" || cfg.LogLevel != "warn" {
			t.Fatalf("unexpected config %+v", cfg)
		}
		if cfg.Store != StorePostgres || cfg.PostgresDSN != "postgres://localhost/roombook" {
			t.Fatalf("unexpected store config %+v", cfg)
		}
		if cfg.BootstrapAdmin != "root" || cfg.ShutdownTimeout != 3*time.Second {
			t.Fatalf("unexpected config %+v", cfg)
		}
	})

	t.Run("errors when postgres has no dsn", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMBOOK_STORE", "postgres")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "required environment variables are not set: ROOMBOOK_POSTGRES_DSN"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("reports every invalid value", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("ROOMBOOK_HTTP_PORT", "abc")
		t.Setenv("ROOMBOOK_STORE", "mongo")
		t.Setenv("ROOMBOOK_SHUTDOWN_TIMEOUT", "-1s")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "environment variables have invalid values: ROOMBOOK_HTTP_PORT, ROOMBOOK_STORE, ROOMBOOK_SHUTDOWN_TIMEOUT"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_EnvFiles(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := strings.Join([]string{
		"ROOMBOOK_HTTP_PORT=7070",
		"ROOMBOOK_STORE=memory",
		"ROOMBOOK_BOOTSTRAP_ADMIN=from-file",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("ROOMBOOK_BOOTSTRAP_ADMIN", "from-env")

	cfg, err := Load(filepath.Join(dir, "missing.env"), path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.HTTPPort != 7070 || cfg.Store != StoreMemory {
		t.Fatalf("expected values from env file, got %+v", cfg)
	}
	if cfg.BootstrapAdmin != "from-env" {
		t.Fatalf("expected process environment to win, got %q", cfg.BootstrapAdmin)
	}
}
