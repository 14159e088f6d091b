// Package store holds the pgx-backed persistence layer: the event queue
// driver, the counter store, the rule registry and the award ledger. All
// cross-worker coordination happens here through row locks and conflict
// targets; the packages above it never open transactions themselves.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the database operations we need from a pgxpool.Pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}
