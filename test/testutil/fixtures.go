package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Execer is the subset of *sql.DB the fixtures need.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Tuple is one row of a probabilistic relation: its column values and the
// probability that it is present.
type Tuple struct {
	Values []int
	P      float64
}

// T builds a Tuple from a probability and column values.
func T(p float64, values ...int) Tuple {
	return Tuple{Values: values, P: p}
}

// Fixtures creates probabilistic relations in the layout generated queries
// read: an id column, one integer column per position (v0, v1, ...), the
// probability p and pSample for sampled relations.
//
// Statements inline their literals so the same fixtures load into
// PostgreSQL and SQLite.
type Fixtures struct {
	db  Execer
	ctx context.Context
}

// NewFixtures creates a new Fixtures instance.
func NewFixtures(ctx context.Context, db Execer) *Fixtures {
	return &Fixtures{db: db, ctx: ctx}
}

// CreateRelation creates table name with the given arity and inserts the
// tuples, assigning ids from 1 in order.
func (f *Fixtures) CreateRelation(name string, arity int, tuples ...Tuple) error {
	cols := []string{"id INTEGER PRIMARY KEY"}
	for i := 0; i < arity; i++ {
		cols = append(cols, fmt.Sprintf("v%d INTEGER NOT NULL", i))
	}
	cols = append(cols, "p DOUBLE PRECISION NOT NULL", "pSample DOUBLE PRECISION")

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(cols, ", "))
	if _, err := f.db.ExecContext(f.ctx, stmt); err != nil {
		return fmt.Errorf("create relation %s: %w", name, err)
	}
	return f.InsertTuples(name, 1, tuples...)
}

// InsertTuples inserts tuples into name, numbering ids from firstID.
func (f *Fixtures) InsertTuples(name string, firstID int, tuples ...Tuple) error {
	if len(tuples) == 0 {
		return nil
	}

	rows := make([]string, len(tuples))
	for i, t := range tuples {
		vals := []string{strconv.Itoa(firstID + i)}
		for _, v := range t.Values {
			vals = append(vals, strconv.Itoa(v))
		}
		p := strconv.FormatFloat(t.P, 'g', -1, 64)
		vals = append(vals, p, p)
		rows[i] = "(" + strings.Join(vals, ", ") + ")"
	}

	stmt := fmt.Sprintf("INSERT INTO %s VALUES %s", name, strings.Join(rows, ", "))
	if _, err := f.db.ExecContext(f.ctx, stmt); err != nil {
		return fmt.Errorf("insert into %s: %w", name, err)
	}
	return nil
}

// CreateActiveDomain creates relation A listing the domain constants.
func (f *Fixtures) CreateActiveDomain(constants ...int) error {
	if _, err := f.db.ExecContext(f.ctx, "CREATE TABLE A (v0 INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("create active domain: %w", err)
	}
	if len(constants) == 0 {
		return nil
	}
	rows := make([]string, len(constants))
	for i, c := range constants {
		rows[i] = "(" + strconv.Itoa(c) + ")"
	}
	if _, err := f.db.ExecContext(f.ctx, "INSERT INTO A VALUES "+strings.Join(rows, ", ")); err != nil {
		return fmt.Errorf("insert active domain: %w", err)
	}
	return nil
}
