package migrator

import (
	"context"
	"database/sql"
)

// Execer is what the migrator needs from a database handle. *sql.DB,
// *sql.Tx and *sql.Conn all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txBeginner is implemented by handles that can open a transaction. Apply
// installs the functions atomically when the Execer is one (*sql.DB and
// *sql.Conn).
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
