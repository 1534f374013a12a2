package eval

import (
	"database/sql"
	"fmt"
	"math"

	"github.com/mattn/go-sqlite3"

	safeplansql "github.com/pthm/safeplan/sql"
)

// sqliteDriver is the database/sql name of go-sqlite3 with the support
// functions registered on every connection.
const sqliteDriver = "sqlite3_safeplan"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{ConnectHook: registerSQLiteFunctions})
}

// registerSQLiteFunctions installs the Go counterparts of sql/functions.sql.
// Only the linear and log_null iunion variants exist: SQLite has no
// '-Infinity' literal.
func registerSQLiteFunctions(conn *sqlite3.SQLiteConn) error {
	if err := conn.RegisterFunc("ln", scalar(math.Log), true); err != nil {
		return fmt.Errorf("registering ln: %w", err)
	}
	if err := conn.RegisterFunc("exp", scalar(math.Exp), true); err != nil {
		return fmt.Errorf("registering exp: %w", err)
	}
	if err := conn.RegisterAggregator("ior", newIor, true); err != nil {
		return fmt.Errorf("registering ior: %w", err)
	}
	if err := conn.RegisterAggregator("prod_double", newProduct, true); err != nil {
		return fmt.Errorf("registering prod_double: %w", err)
	}
	for n := 0; n <= safeplansql.MaxFalseOnMissing; n++ {
		if err := conn.RegisterAggregator(fmt.Sprintf("iunion_%d_false_on_missing", n), newIUnion(n, false), true); err != nil {
			return fmt.Errorf("registering iunion: %w", err)
		}
		if err := conn.RegisterAggregator(fmt.Sprintf("iunion_log_null_%d_false_on_missing", n), newIUnion(n, true), true); err != nil {
			return fmt.Errorf("registering iunion: %w", err)
		}
	}
	return nil
}

// number converts a SQLite value to a float, reporting false for NULL.
func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// scalar lifts fn to SQLite values. Integer arguments are widened and NULL
// maps to NULL, as log-space universal SQL passes both.
func scalar(fn func(float64) float64) func(any) (any, error) {
	return func(v any) (any, error) {
		f, ok := number(v)
		if !ok {
			if v == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("not a number: %v", v)
		}
		return fn(f), nil
	}
}

type ior struct{ state float64 }

func newIor() *ior { return &ior{state: 1} }

func (a *ior) Step(p any) {
	if f, ok := number(p); ok {
		a.state *= 1 - f
	}
}

func (a *ior) Done() float64 { return 1 - a.state }

type product struct{ state float64 }

func newProduct() *product { return &product{state: 1} }

func (a *product) Step(p any) {
	f, ok := number(p)
	if !ok {
		return
	}
	a.state *= f
}

func (a *product) Done() float64 { return a.state }

type iunion struct {
	n     int
	log   bool
	acc   float64
	count int
	null  bool
}

func newIUnion(n int, log bool) func() *iunion {
	return func() *iunion {
		u := &iunion{n: n, log: log}
		if !log {
			u.acc = 1
		}
		return u
	}
}

func (a *iunion) Step(p, trueOnMissing any) {
	if t, ok := number(trueOnMissing); !ok || t == 0 {
		a.count++
	}
	f, ok := number(p)
	switch {
	case !ok && a.log:
		a.null = true
	case !ok:
		a.acc = 0
	case a.log:
		a.acc += f
	default:
		a.acc *= f
	}
}

func (a *iunion) Done() any {
	if a.count < a.n {
		if a.log {
			return nil
		}
		return 0.0
	}
	if a.null {
		return nil
	}
	return a.acc
}
