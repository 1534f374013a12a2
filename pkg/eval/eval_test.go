package eval_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/safeplan/pkg/compiler"
	"github.com/pthm/safeplan/pkg/eval"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/test/testutil"
)

type relation struct {
	name   string
	arity  int
	tuples []testutil.Tuple
}

type evalCase struct {
	name   string
	query  string
	domain []int
	rels   []relation
	want   float64
}

var tup = testutil.T

// Probabilities are worked out by hand over the possible worlds.
var evalCases = []evalCase{
	{
		name:  "single tuple",
		query: "R(x)",
		rels:  []relation{{"R", 1, []testutil.Tuple{tup(0.975, 1)}}},
		want:  0.975,
	},
	{
		name:  "project",
		query: "R(x)",
		rels:  []relation{{"R", 1, []testutil.Tuple{tup(0.5, 1), tup(0.5, 2)}}},
		want:  0.75,
	},
	{
		// x=1: 0.5 * (1 - 0.5*0.5), x=2: 0.4 * 1
		name:  "hierarchical join",
		query: "R(x),S(x,y)",
		rels: []relation{
			{"R", 1, []testutil.Tuple{tup(0.5, 1), tup(0.4, 2)}},
			{"S", 2, []testutil.Tuple{tup(0.5, 1, 1), tup(0.5, 1, 2), tup(1, 2, 1)}},
		},
		want: 0.625,
	},
	{
		name:  "union",
		query: "R(x) v T(y)",
		rels: []relation{
			{"R", 1, []testutil.Tuple{tup(0.5, 1)}},
			{"T", 1, []testutil.Tuple{tup(0.5, 1)}},
		},
		want: 0.75,
	},
	{
		// Three independent tuples, at least two of which must be present.
		name:  "inclusion-exclusion",
		query: "R(x1),S(x1,y1) v S(x2,y2),T(y2) v R(x3),T(y3)",
		rels: []relation{
			{"R", 1, []testutil.Tuple{tup(0.5, 1)}},
			{"S", 2, []testutil.Tuple{tup(0.5, 1, 1)}},
			{"T", 1, []testutil.Tuple{tup(0.5, 1)}},
		},
		want: 0.5,
	},
	{
		name:  "negated deterministic",
		query: "R(x),~T*(x)",
		rels: []relation{
			{"R", 1, []testutil.Tuple{tup(0.5, 1), tup(0.5, 2)}},
			{"T", 1, []testutil.Tuple{tup(1, 1), tup(0, 2)}},
		},
		want: 0.5,
	},
	{
		name:  "constant equality",
		query: "R[2,*](y)",
		rels: []relation{
			{"R", 2, []testutil.Tuple{tup(0.5, 2, 1), tup(0.5, 2, 2), tup(0.9, 3, 1)}},
		},
		want: 0.75,
	},
}

func open(tb testing.TB, c evalCase) *eval.Engine {
	tb.Helper()
	ctx := context.Background()
	e, err := eval.Open(ctx, eval.DriverSQLite, filepath.Join(tb.TempDir(), "eval.db"))
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = e.Close() })

	fx := testutil.NewFixtures(ctx, e.DB())
	require.NoError(tb, fx.CreateActiveDomain(c.domain...))
	for _, r := range c.rels {
		require.NoError(tb, fx.CreateRelation(r.name, r.arity, r.tuples...))
	}
	return e
}

func build(tb testing.TB, text string) plan.Node {
	tb.Helper()
	q, err := parser.Parse(text)
	require.NoError(tb, err)
	n, err := plan.NewBuilder().Build(context.Background(), q)
	require.NoError(tb, err)
	return n
}

func TestDirectProbability(t *testing.T) {
	for _, c := range evalCases {
		t.Run(c.name, func(t *testing.T) {
			e := open(t, c)
			sql, err := compiler.Direct(build(t, c.query))
			require.NoError(t, err)

			p, err := e.Probability(context.Background(), sql)
			require.NoError(t, err)
			assert.InDelta(t, c.want, p, 1e-9)
		})
	}
}

func TestUniversalProbability(t *testing.T) {
	params := map[string]compiler.Params{
		"linear":   {},
		"log null": {UseLog: true, UseNull: true},
	}
	for _, c := range evalCases {
		for pname, ps := range params {
			t.Run(c.name+"/"+pname, func(t *testing.T) {
				e := open(t, c)
				res, err := compiler.Universal(build(t, c.query), ps)
				require.NoError(t, err)

				p, err := e.UniversalProbability(context.Background(), res, ps)
				require.NoError(t, err)
				assert.InDelta(t, c.want, p, 1e-9)
			})
		}
	}
}

var missingParams = map[string]compiler.Params{
	"linear":   {MissingTuples: true},
	"log null": {MissingTuples: true, UseLog: true, UseNull: true},
}

func TestUniversalMissingTuples(t *testing.T) {
	c := evalCase{
		query:  "~R(x)",
		domain: []int{1, 2, 3},
		rels:   []relation{{"R", 1, []testutil.Tuple{tup(0.5, 1), tup(0.5, 2)}}},
	}
	for pname, ps := range missingParams {
		t.Run(pname, func(t *testing.T) {
			e := open(t, c)
			n := build(t, c.query)

			// R(3) is missing, so it is false and ~R(3) holds.
			ps.DomainSize = 3
			res, err := compiler.Universal(n, ps)
			require.NoError(t, err)
			p, err := e.UniversalProbability(context.Background(), res, ps)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, p, 1e-9)

			ps.DomainSize = 2
			res, err = compiler.Universal(n, ps)
			require.NoError(t, err)
			p, err = e.UniversalProbability(context.Background(), res, ps)
			require.NoError(t, err)
			assert.InDelta(t, 0.75, p, 1e-9)
		})
	}
}

// Negated atoms over absent tuples hold, so these only evaluate correctly
// with missing tuples enabled.
var missingCases = []evalCase{
	{
		// x=1: 0.5 * 0.5, x=2: 0.4 * 1 since T(2) is absent
		name:   "negated join",
		query:  "R(x),~T(x)",
		domain: []int{1, 2},
		rels: []relation{
			{"R", 1, []testutil.Tuple{tup(0.5, 1), tup(0.4, 2)}},
			{"T", 1, []testutil.Tuple{tup(0.5, 1)}},
		},
		want: 0.55,
	},
	{
		// y=1: 0.5 * 0.5, y=2: 0.5 * 1 since T(2) is absent
		name:   "negated projection",
		query:  "S(x,y),~T(y)",
		domain: []int{1, 2},
		rels: []relation{
			{"S", 2, []testutil.Tuple{tup(0.5, 1, 1), tup(0.5, 1, 2)}},
			{"T", 1, []testutil.Tuple{tup(0.5, 1)}},
		},
		want: 0.625,
	},
}

func TestUniversalNegationWithMissingTuples(t *testing.T) {
	for _, c := range missingCases {
		for pname, ps := range missingParams {
			t.Run(c.name+"/"+pname, func(t *testing.T) {
				e := open(t, c)
				ps.DomainSize = len(c.domain)
				res, err := compiler.Universal(build(t, c.query), ps)
				require.NoError(t, err)

				p, err := e.UniversalProbability(context.Background(), res, ps)
				require.NoError(t, err)
				assert.InDelta(t, c.want, p, 1e-9)
			})
		}
	}
}

func TestDirectGenericConstantRows(t *testing.T) {
	c := evalCase{
		query:  "R[c,*](x)",
		domain: []int{1, 2, 3},
		rels: []relation{
			{"R", 2, []testutil.Tuple{tup(0.5, 1, 1), tup(0.5, 1, 2), tup(0.2, 2, 1)}},
		},
	}
	e := open(t, c)
	sql, err := compiler.Direct(build(t, c.query))
	require.NoError(t, err)

	res, err := e.Query(context.Background(), sql)
	require.NoError(t, err)
	require.Equal(t, []string{"cTemplate"}, res.Columns)

	got := make(map[int64]float64)
	for _, row := range res.Rows {
		got[row.Values[0].(int64)] = row.P
	}
	// 3 is in the active domain but never in R's constrained column.
	require.Len(t, res.Rows, 2)
	assert.ElementsMatch(t, []int64{1, 2}, []int64{res.Rows[0].Values[0].(int64), res.Rows[1].Values[0].(int64)})
	assert.InDelta(t, 0.75, got[1], 1e-9)
	assert.InDelta(t, 0.2, got[2], 1e-9)
}

func TestEmptyDatabase(t *testing.T) {
	c := evalCase{query: "R(x)", rels: []relation{{"R", 1, nil}}}
	e := open(t, c)
	n := build(t, c.query)

	sql, err := compiler.Direct(n)
	require.NoError(t, err)
	p, err := e.Probability(context.Background(), sql)
	require.NoError(t, err)
	assert.Zero(t, p)

	res, err := compiler.Universal(n, compiler.Params{})
	require.NoError(t, err)
	p, err = e.UniversalProbability(context.Background(), res, compiler.Params{})
	require.NoError(t, err)
	assert.Zero(t, p)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := eval.Open(context.Background(), "oracle", "")
	require.ErrorIs(t, err, eval.ErrUnknownDriver)
}

func TestQueryWithoutProbabilityColumn(t *testing.T) {
	e := open(t, evalCase{})
	_, err := e.Query(context.Background(), "SELECT 1 AS x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pUse")
}
