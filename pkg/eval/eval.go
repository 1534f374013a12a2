// Package eval executes generated plan SQL against PostgreSQL or an
// embedded SQLite database and converts the result to probabilities.
package eval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-logr/logr"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pthm/safeplan/pkg/compiler"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ProbabilityColumn is the column every generated query selects its
// probability into.
const ProbabilityColumn = "pUse"

// ErrUnknownDriver is returned by Open for unsupported drivers.
var ErrUnknownDriver = errors.New("safeplan: unknown driver")

// Row is one result row.
type Row struct {
	// Values holds the non-probability columns in select order.
	Values []any
	// P is the probability that the query holds for this row.
	P float64
}

// Result is the output of a plan query.
type Result struct {
	Columns []string
	Rows    []Row
}

// Engine runs plan queries.
type Engine struct {
	db     *sql.DB
	driver string
	log    logr.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report query execution.
func WithLogger(l logr.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Open connects to a database. driver is "postgres" (pgx) or "sqlite"
// (go-sqlite3 with the support functions registered).
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Engine, error) {
	var name string
	switch strings.ToLower(driver) {
	case DriverPostgres, "postgresql", "pgx":
		name, driver = "pgx", DriverPostgres
	case DriverSQLite, "sqlite3":
		name, driver = sqliteDriver, DriverSQLite
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}
	return New(db, driver, opts...), nil
}

// New wraps an open database. driver selects the dialect and is one of
// DriverPostgres or DriverSQLite.
func New(db *sql.DB, driver string, opts ...Option) *Engine {
	e := &Engine{db: db, driver: driver, log: logr.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DB returns the underlying connection pool.
func (e *Engine) DB() *sql.DB { return e.db }

// Driver returns the dialect of the engine.
func (e *Engine) Driver() string { return e.driver }

// Close closes the database.
func (e *Engine) Close() error { return e.db.Close() }

// Exec runs a statement without results, such as fixture DDL.
func (e *Engine) Exec(ctx context.Context, stmt string) error {
	_, err := e.db.ExecContext(ctx, stmt)
	return err
}

// Query runs direct-mode SQL. A NULL probability reads as zero.
func (e *Engine) Query(ctx context.Context, query string) (*Result, error) {
	return e.query(ctx, query, func(p sql.NullFloat64) float64 {
		if !p.Valid {
			return 0
		}
		return p.Float64
	})
}

// QueryUniversal runs universal-mode SQL. Each row value represents the
// probability that the query is false, in the representation params
// selects; it is converted to the probability that the query holds.
func (e *Engine) QueryUniversal(ctx context.Context, res compiler.Result, params compiler.Params) (*Result, error) {
	return e.query(ctx, res.SQL, func(p sql.NullFloat64) float64 {
		return holds(p, params)
	})
}

// Probability runs direct-mode SQL of a Boolean query. A query without
// result rows has probability zero.
func (e *Engine) Probability(ctx context.Context, query string) (float64, error) {
	r, err := e.Query(ctx, query)
	if err != nil {
		return 0, err
	}
	return single(r, 0)
}

// UniversalProbability runs universal-mode SQL of a Boolean query. A query
// without result rows takes the value of a missing tuple: zero when the
// root is true on missing, one otherwise.
func (e *Engine) UniversalProbability(ctx context.Context, res compiler.Result, params compiler.Params) (float64, error) {
	r, err := e.QueryUniversal(ctx, res, params)
	if err != nil {
		return 0, err
	}
	empty := 1.0
	if res.TrueOnMissing {
		empty = 0
	}
	return single(r, empty)
}

func single(r *Result, empty float64) (float64, error) {
	switch len(r.Rows) {
	case 0:
		return empty, nil
	case 1:
		return r.Rows[0].P, nil
	default:
		return 0, fmt.Errorf("expected a single row, got %d", len(r.Rows))
	}
}

// holds converts a universal-mode value to P(Q).
func holds(p sql.NullFloat64, params compiler.Params) float64 {
	if !params.UseLog {
		if !p.Valid {
			return 1
		}
		return 1 - p.Float64
	}
	if !p.Valid || math.IsInf(p.Float64, -1) {
		return 1
	}
	return 1 - math.Exp(p.Float64)
}

func (e *Engine) query(ctx context.Context, query string, convert func(sql.NullFloat64) float64) (*Result, error) {
	start := time.Now()
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("executing plan query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	pIdx := -1
	for i, c := range cols {
		// PostgreSQL folds unquoted identifiers to lower case.
		if strings.EqualFold(c, ProbabilityColumn) {
			pIdx = i
		}
	}
	if pIdx < 0 {
		return nil, fmt.Errorf("plan query has no %s column", ProbabilityColumn)
	}

	res := &Result{}
	for i, c := range cols {
		if i != pIdx {
			res.Columns = append(res.Columns, c)
		}
	}

	for rows.Next() {
		var p sql.NullFloat64
		dest := make([]any, len(cols))
		values := make([]any, 0, len(cols)-1)
		for i := range dest {
			if i == pIdx {
				dest[i] = &p
				continue
			}
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, d := range dest {
			if i != pIdx {
				values = append(values, *(d.(*any)))
			}
		}
		res.Rows = append(res.Rows, Row{Values: values, P: convert(p)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	e.log.V(1).Info("plan query executed", "driver", e.driver, "rows", len(res.Rows), "elapsed", time.Since(start))
	return res, nil
}
