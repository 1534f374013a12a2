package test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/safeplan/pkg/compiler"
	"github.com/pthm/safeplan/pkg/eval"
	"github.com/pthm/safeplan/pkg/migrator"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/pkg/query"
	"github.com/pthm/safeplan/test/testutil"
)

var tup = testutil.T

func build(tb testing.TB, text string) plan.Node {
	tb.Helper()
	q, err := parser.Parse(text)
	require.NoError(tb, err)
	n, err := plan.NewBuilder().Build(context.Background(), q)
	require.NoError(tb, err)
	return n
}

// TestMigrator_Integration verifies that the support functions install,
// that an unchanged migration is skipped and that Force re-applies it.
func TestMigrator_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := testutil.EmptyDB(t)
	ctx := context.Background()
	m := migrator.NewMigrator(db)

	status, err := m.GetStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Installed)
	assert.Nil(t, status.LastMigration)

	skipped, err := m.Apply(ctx, migrator.MigrateOptions{})
	require.NoError(t, err)
	assert.False(t, skipped)

	status, err = m.GetStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Missing)
	assert.False(t, status.ActiveDomainExists)
	require.NotNil(t, status.LastMigration)
	assert.Equal(t, m.Checksum(), status.LastMigration.Checksum)
	assert.ElementsMatch(t, migrator.FunctionNames(), status.LastMigration.FunctionNames)
	assert.True(t, status.UpToDate(m.Checksum()))

	skipped, err = m.Apply(ctx, migrator.MigrateOptions{})
	require.NoError(t, err)
	assert.True(t, skipped)

	skipped, err = m.Apply(ctx, migrator.MigrateOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, skipped)
}

// TestMigrator_DropsOrphans verifies that safeplan routines the current SQL
// no longer defines are removed.
func TestMigrator_DropsOrphans(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := testutil.DB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		CREATE AGGREGATE iunion_9_false_on_missing(double precision, boolean) (
			SFUNC = safeplan_iunion_step,
			STYPE = double precision[],
			INITCOND = '{1,0}'
		)`)
	require.NoError(t, err)

	_, err = migrator.NewMigrator(db).Apply(ctx, migrator.MigrateOptions{Force: true})
	require.NoError(t, err)

	var n int
	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pg_proc WHERE proname = 'iunion_9_false_on_missing'").Scan(&n)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMigrator_DryRunLeavesDatabaseUntouched(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := testutil.EmptyDB(t)
	ctx := context.Background()

	var buf bytes.Buffer
	_, err := migrator.MigrateWithOptions(ctx, db, migrator.MigrateOptions{DryRun: &buf})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "CREATE OR REPLACE AGGREGATE ior")

	status, err := migrator.NewMigrator(db).GetStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, status.Installed)
}

// TestEval_PostgreSQL runs generated SQL in every numeric representation,
// including log space with '-Infinity', which only PostgreSQL supports.
func TestEval_PostgreSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cases := []struct {
		name  string
		query string
		setup func(*testutil.Fixtures) error
		want  float64
	}{
		{
			name:  "project",
			query: "R(x)",
			setup: func(fx *testutil.Fixtures) error {
				return fx.CreateRelation("R", 1, tup(0.5, 1), tup(0.5, 2))
			},
			want: 0.75,
		},
		{
			name:  "inclusion-exclusion",
			query: "R(x1),S(x1,y1) v S(x2,y2),T(y2) v R(x3),T(y3)",
			setup: func(fx *testutil.Fixtures) error {
				if err := fx.CreateRelation("R", 1, tup(0.5, 1)); err != nil {
					return err
				}
				if err := fx.CreateRelation("S", 2, tup(0.5, 1, 1)); err != nil {
					return err
				}
				return fx.CreateRelation("T", 1, tup(0.5, 1))
			},
			want: 0.5,
		},
		{
			name:  "union of joins",
			query: "R(x),S(x,y) v T(z)",
			setup: func(fx *testutil.Fixtures) error {
				if err := fx.CreateRelation("R", 1, tup(0.5, 1), tup(0.4, 2)); err != nil {
					return err
				}
				if err := fx.CreateRelation("S", 2, tup(0.5, 1, 1), tup(0.5, 1, 2), tup(1, 2, 1)); err != nil {
					return err
				}
				return fx.CreateRelation("T", 1, tup(0.2, 1))
			},
			// 1 - (1 - 0.625) * (1 - 0.2)
			want: 0.7,
		},
	}

	params := map[string]compiler.Params{
		"linear":     {},
		"log null":   {UseLog: true, UseNull: true},
		"log neginf": {UseLog: true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			db := testutil.DB(t)
			ctx := context.Background()
			fx := testutil.NewFixtures(ctx, db)
			require.NoError(t, fx.CreateActiveDomain(1, 2))
			require.NoError(t, c.setup(fx))

			e := eval.New(db, eval.DriverPostgres)
			n := build(t, c.query)

			sql, err := compiler.Direct(n)
			require.NoError(t, err)
			p, err := e.Probability(ctx, sql)
			require.NoError(t, err)
			assert.InDelta(t, c.want, p, 1e-9, "direct")

			for name, ps := range params {
				res, err := compiler.Universal(n, ps)
				require.NoError(t, err)
				p, err := e.UniversalProbability(ctx, res, ps)
				require.NoError(t, err)
				assert.InDelta(t, c.want, p, 1e-9, name)
			}
		})
	}
}

// TestSampleQuery_PostgreSQL checks that the sample-preparation query keeps
// certain tuples and drops impossible ones.
func TestSampleQuery_PostgreSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := testutil.DB(t)
	ctx := context.Background()
	fx := testutil.NewFixtures(ctx, db)
	require.NoError(t, fx.CreateRelation("R", 1, tup(1, 1), tup(0, 2)))

	q, err := parser.Parse("R(x)")
	require.NoError(t, err)
	sql, err := compiler.Direct(build(t, "R(x)"))
	require.NoError(t, err)
	sampled := []*query.Relation{q.Conjuncts[0].Relations()[0]}

	e := eval.New(db, eval.DriverPostgres)
	for i := 0; i < 5; i++ {
		p, err := e.Probability(ctx, compiler.SampleQuery(sql, sampled))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, p, 1e-9)
	}
}
