package postgres

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every embedded migration that is not yet recorded in
// schema_migrations, each in its own transaction.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "postgres.Store.Migrate"

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := s.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`,
	); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for _, f := range files {
		var applied bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, f,
		).Scan(&applied); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if applied {
			continue
		}

		b, err := migrations.ReadFile("migrations/" + f)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		// simple protocol: the file holds several statements
		if _, err := tx.Exec(ctx, string(b)); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("%s: apply %s: %w", op, f, err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations(version) VALUES ($1)`, f,
		); err != nil {
			tx.Rollback(ctx)
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	return nil
}
