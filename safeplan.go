// Package safeplan decides whether a probabilistic union of conjunctive
// queries over tuple-independent relations is safe, and compiles safe
// queries to a single SQL statement computing their exact probability.
//
// # Query Syntax
//
// A query is a disjunction of conjuncts separated by " v ". Each conjunct is
// a comma-separated list of atoms:
//
//	R(x),S(x,y) v T(z)
//	~R*[1,*](x)
//
// "~" negates an atom, a trailing "*" marks its relation deterministic and
// "*!" deterministic and sampled. The optional bracket holds one constraint
// per column: "*" (free), an integer (equality), "-integer" (inequality), a
// lowercase word (generic equality) or "-word" (generic inequality).
//
// # Basic Usage
//
//	c, err := safeplan.Compile(ctx, "R(x),S(x,y)", safeplan.Direct)
//	if safeplan.IsUnsafeErr(err) {
//	    // no safe plan; try FindSafeResidual
//	}
//	fmt.Println(c.SQL)
//
// The generated SQL reads each relation R from a table with columns
// v0..v(k-1) and probability p, and the active domain from A(v0). It calls
// the aggregates installed by pkg/migrator.
//
// # Modes
//
// Direct mode computes P(Q) with independent-or aggregation and assumes
// every tuple is present in its table. Universal mode computes P(not Q),
// handles missing tuples and can work in log space; see compiler.Params.
package safeplan

import (
	"context"
	"fmt"

	"github.com/pthm/safeplan/pkg/compiler"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/pkg/query"
)

// Mode selects the SQL generation mode.
type Mode int

const (
	// Direct generates SQL computing P(Q).
	Direct Mode = iota
	// Universal generates SQL computing P(not Q) with missing-tuple
	// semantics.
	Universal
)

func (m Mode) String() string {
	if m == Universal {
		return "universal"
	}
	return "direct"
}

// Compiled is a safe plan and its SQL.
type Compiled struct {
	Query *query.DNF
	Plan  plan.Node
	Mode  Mode
	SQL   string
	// TrueOnMissing is set in universal mode when an empty result means
	// P(not Q) = 1.
	TrueOnMissing bool
}

// CompileOptions configures Compile.
type CompileOptions struct {
	// Params are the universal-mode parameters.
	Params compiler.Params
	// Planner options, such as plan.WithOracle or plan.WithLogger.
	Planner []plan.Option
}

// Parse parses query text. Errors wrap ErrParse.
func Parse(text string) (*query.DNF, error) {
	return parser.Parse(text)
}

// Compile parses text, builds its safe plan and generates SQL in the given
// mode. Errors wrap ErrParse, ErrUnsafe or ErrMalformedPlan.
func Compile(ctx context.Context, text string, mode Mode, opts ...CompileOptions) (*Compiled, error) {
	q, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	var o CompileOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return CompileQuery(ctx, q, mode, o)
}

// CompileQuery is Compile for a parsed query.
func CompileQuery(ctx context.Context, q *query.DNF, mode Mode, opts CompileOptions) (*Compiled, error) {
	n, err := plan.NewBuilder(opts.Planner...).Build(ctx, q)
	if err != nil {
		return nil, err
	}
	return CompilePlan(q, n, mode, opts.Params)
}

// CompilePlan generates SQL for an existing plan.
func CompilePlan(q *query.DNF, n plan.Node, mode Mode, params compiler.Params) (*Compiled, error) {
	c := &Compiled{Query: q, Plan: n, Mode: mode}
	switch mode {
	case Direct:
		sql, err := compiler.Direct(n)
		if err != nil {
			return nil, err
		}
		c.SQL = sql
	case Universal:
		res, err := compiler.Universal(n, params)
		if err != nil {
			return nil, err
		}
		c.SQL, c.TrueOnMissing = res.SQL, res.TrueOnMissing
	default:
		return nil, fmt.Errorf("unknown mode %d", mode)
	}
	return c, nil
}

// Residual is a safe residual query with the SQL needed to estimate the
// original query by sampling.
type Residual struct {
	*plan.Residual
	// SQL is the direct-mode SQL of the residual plan.
	SQL string
	// SampleSQL evaluates SQL over one random world of the marked
	// relations.
	SampleSQL string
}

// FindSafeResidual parses text and searches for the smallest set of
// relations whose determinization makes the query safe. Errors wrap
// ErrParse or ErrNoSafeResidual.
func FindSafeResidual(ctx context.Context, text string, opts ...plan.Option) (*Residual, error) {
	q, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	r, err := plan.NewBuilder(opts...).FindSafeResidual(ctx, q)
	if err != nil {
		return nil, err
	}
	sql, err := compiler.Direct(r.Plan)
	if err != nil {
		return nil, err
	}
	return &Residual{Residual: r, SQL: sql, SampleSQL: compiler.SampleQuery(sql, r.Relations)}, nil
}
