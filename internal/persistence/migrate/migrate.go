// Package migrate applies embedded SQL migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// Up applies every pending migration found at the root of migrations and
// returns the resulting schema version.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect, migrations fs.FS, logger *slog.Logger) (int64, error) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return 0, fmt.Errorf("create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.InfoContext(ctx, "migration applied",
			"dialect", string(dialect),
			"version", r.Source.Version,
			"path", r.Source.Path,
			"duration", r.Duration,
		)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
