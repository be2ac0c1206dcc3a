package sqlite

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
// schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	const op = "sqlite.Store.Migrate"

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

	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`,
	); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	for _, f := range files {
		var applied bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`, f,
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

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		for _, stmt := range strings.Split(string(b), ";\n") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("%s: apply %s: %w", op, f, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations(version) VALUES (?)`, f,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	return nil
}
