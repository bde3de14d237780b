package db

import (
	"context"
	"database/sql"
	"fmt"
)

// SeedDev makes sure the counter row exists.  Records themselves are only
// ever created through a mint, so there is nothing else to seed.
func SeedDev(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO record_counter(singleton, next_id) VALUES (1, 0);`); err != nil {
		return fmt.Errorf("seed record_counter: %w", err)
	}
	return nil
}
