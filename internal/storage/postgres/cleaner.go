package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TableCleaner empties the destination tables before a full reload. Each
// clearing attempt runs in its own transaction so a failed truncate leaves
// nothing half-done before the delete fallback.
type TableCleaner struct {
	db *sqlx.DB
}

func NewTableCleaner(db *sqlx.DB) *TableCleaner {
	return &TableCleaner{db: db}
}

// Truncate wholesale-clears reviews and books and resets their id sequences.
func (c *TableCleaner) Truncate(ctx context.Context) error {
	return c.clear(ctx,
		"TRUNCATE TABLE reviews RESTART IDENTITY CASCADE",
		"TRUNCATE TABLE books RESTART IDENTITY CASCADE",
	)
}

// DeleteAll clears the tables row by row. Slower than Truncate but needs no
// table-level lock privileges; used as the fallback path.
func (c *TableCleaner) DeleteAll(ctx context.Context) error {
	return c.clear(ctx,
		"DELETE FROM reviews",
		"DELETE FROM books",
	)
}

func (c *TableCleaner) clear(ctx context.Context, statements ...string) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
