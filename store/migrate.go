package store

import (
	"context"
	"strings"
)

// Migrate brings an existing database forward to the current schema. It's
// separate from InitSchema because InitSchema only handles a database that
// doesn't exist yet; Migrate handles one created by an older build that
// predates a given column. SQLite has no "ADD COLUMN IF NOT EXISTS", so the
// duplicate-column error is the signal that the migration already ran.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`ALTER TABLE jobs ADD COLUMN response_id INTEGER NOT NULL DEFAULT 0`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func isDuplicateColumn(err error) bool {
	return strings.Contains(err.Error(), "duplicate column name")
}
