package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable with ROOMBOOK_STORE.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// DefaultSQLiteDSN opens roombook.db in the working directory.
const DefaultSQLiteDSN = "file:roombook.db"

// Config captures environment driven configuration values for the reservation service.
type Config struct {
	HTTPPort        int
	Env             string
	LogLevel        string
	Store           string
	SQLiteDSN       string
	PostgresDSN     string
	BootstrapAdmin  string
	ShutdownTimeout time.Duration
}

// Load parses configuration values from the process environment after
// loading the given .env files. Files that do not exist are skipped and
// variables already set in the environment take precedence.
//
// The loader applies defaults for optional fields and reports every missing
// or invalid variable in one error.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", file, err)
		}
	}

	cfg := Config{
		HTTPPort:        8080,
		Env:             "development",
		LogLevel:        "info",
		Store:           StoreSQLite,
		SQLiteDSN:       DefaultSQLiteDSN,
		BootstrapAdmin:  "admin",
		ShutdownTimeout: 10 * time.Second,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := lookup("ROOMBOOK_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "ROOMBOOK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if env := lookup("ROOMBOOK_ENV"); env != "" {
		cfg.Env = env
	}

	if level := lookup("ROOMBOOK_LOG_LEVEL"); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "ROOMBOOK_LOG_LEVEL")
		}
	}

	if store := lookup("ROOMBOOK_STORE"); store != "" {
		switch strings.ToLower(store) {
		case StoreSQLite, StorePostgres, StoreMemory:
			cfg.Store = strings.ToLower(store)
		default:
			invalid = append(invalid, "ROOMBOOK_STORE")
		}
	}

	if dsn := lookup("ROOMBOOK_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	cfg.PostgresDSN = lookup("ROOMBOOK_POSTGRES_DSN")
	if cfg.Store == StorePostgres && cfg.PostgresDSN == "" {
		missing = append(missing, "ROOMBOOK_POSTGRES_DSN")
	}

	if admin := lookup("ROOMBOOK_BOOTSTRAP_ADMIN"); admin != "" {
		cfg.BootstrapAdmin = admin
	}

	if timeoutValue := lookup("ROOMBOOK_SHUTDOWN_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "ROOMBOOK_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	return cfg, nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
