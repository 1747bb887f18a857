package user

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/mkrupp/store/internal/infra/logging"
)

// migrate brings the schema of db up to date with the embedded migrations.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS, log logging.Logger) error {
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("new migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	for _, result := range results {
		log.InfoContext(ctx, "migration applied",
			"version", result.Source.Version,
			"duration", result.Duration.String(),
		)
	}

	return nil
}
