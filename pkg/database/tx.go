package database

import (
	"context"
	"fmt"
)

// WithTx runs fn inside a transaction on the scope's connection. If the
// connection is already inside a transaction (TxStatus other than idle),
// fn joins it and the outermost caller retains commit/rollback control.
// Otherwise WithTx begins a transaction, rolls back on error and commits
// on success. Repositories participate automatically because they issue
// their statements on the same scoped connection.
func WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, ok := GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if scope.Conn.Conn().PgConn().TxStatus() != 'I' {
		return fn(ctx)
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
