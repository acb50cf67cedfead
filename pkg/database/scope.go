package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Scope wraps a pooled connection checked out for the duration of one
// request. Repositories run their statements on this connection, so a
// transaction begun on it covers every repository call made inside it.
type Scope struct {
	Conn *pgxpool.Conn
}

// Close releases the connection back to the pool. It MUST be called.
func (s *Scope) Close() {
	if s.Conn == nil {
		return
	}
	s.Conn.Release()
}

// Acquire checks out a connection from the pool for one request.
// The returned Scope MUST be closed with defer scope.Close().
func (db *DB) Acquire(ctx context.Context) (*Scope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Scope{Conn: conn}, nil
}
