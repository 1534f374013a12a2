package sqlgen_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/safeplan/internal/sqlgen"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/pkg/query"
)

const ieQuery = "R(x1),S(x1,y1) v S(x2,y2),T(y2) v R(x3),T(y3)"

func build(t *testing.T, text string) plan.Node {
	t.Helper()
	q, err := parser.Parse(text)
	require.NoError(t, err)
	n, err := plan.NewBuilder().Build(context.Background(), q)
	require.NoError(t, err)
	return n
}

func ground(rel *query.Relation) *plan.GroundTuple {
	return &plan.GroundTuple{
		Disjunct: query.NewDisjunctiveQuery(query.NewComponent(rel)),
		Relation: rel,
	}
}

func TestDirectProject(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, "R(x)"))
	require.NoError(t, err)
	want := "-- independent project 1\n" +
		"SELECT ior(COALESCE(pUse, 0)) AS pUse\n" +
		"FROM (\n" +
		"    -- ground tuple R(_s1)\n" +
		"    SELECT R.v0 AS c1, R.p AS pUse\n" +
		"    FROM R\n" +
		") AS q1"
	assert.Equal(t, want, sql)
}

func TestDirectJoinUsesInnerJoin(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, "R(x),S(x,y)"))
	require.NoError(t, err)
	assert.Contains(t, sql, "-- independent join")
	assert.Contains(t, sql, "INNER JOIN (")
	assert.Contains(t, sql, ".c1 = q")
	assert.Contains(t, sql, "S.v1 AS c2")
	assert.NotContains(t, sql, "OUTER")
}

func TestDirectUnionUsesFullOuterJoin(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, "R(x) v S(y)"))
	require.NoError(t, err)
	assert.Contains(t, sql, "-- independent union")
	assert.Contains(t, sql, "FULL OUTER JOIN (")
	assert.Contains(t, sql, "ON TRUE")
	assert.Contains(t, sql, "AS pUse")
	assert.Contains(t, sql, "1 - (COALESCE(1 - q")
}

func TestDirectInclusionExclusion(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, ieQuery))
	require.NoError(t, err)
	assert.Contains(t, sql, "-- inclusion/exclusion")
	assert.Contains(t, sql, "(-1 * -1 * COALESCE(q")
	assert.Contains(t, sql, "(-1 * 1 * COALESCE(q")
}

func TestDirectNegatedTuple(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, "R(x),~T*(x)"))
	require.NoError(t, err)
	assert.Contains(t, sql, "(1 - T.p) AS pUse")
}

func TestDirectConstraints(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, "S[-3](x) v R[2,*](y)"))
	require.NoError(t, err)
	assert.Contains(t, sql, "WHERE S.v0 <> 3")
	assert.Contains(t, sql, "WHERE R.v0 = 2")
	assert.Contains(t, sql, "R.v1 AS c")
}

func TestDirectGenericConstant(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, "R[c,*](x)"))
	require.NoError(t, err)
	assert.Contains(t, sql, "A.v0 AS cTemplate")
	assert.Contains(t, sql, "FROM R, A")
	assert.Contains(t, sql, "WHERE R.v0 = A.v0")
	assert.Contains(t, sql, "GROUP BY cTemplate")
}

func TestDirectTautology(t *testing.T) {
	sql, err := sqlgen.Direct(build(t, "R[1]() v ~R[1]()"))
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 AS pUse", sql)
}

func TestDirectIsDeterministic(t *testing.T) {
	n := build(t, ieQuery)
	first, err := sqlgen.Direct(n)
	require.NoError(t, err)
	again, err := sqlgen.Direct(n)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestDirectRejectsUnboundArgument(t *testing.T) {
	_, err := sqlgen.Direct(ground(query.NewRelation("R", "x")))
	require.Error(t, err)
	assert.True(t, plan.IsMalformedPlanErr(err))
}

func TestUniversalProject(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "R(x)"), sqlgen.Params{})
	require.NoError(t, err)
	want := "-- independent project 1\n" +
		"SELECT prod_double(pUse) AS pUse\n" +
		"FROM (\n" +
		"    -- ground tuple R(_s1)\n" +
		"    SELECT R.v0 AS sep_var_1, 1 - p AS pUse\n" +
		"    FROM R\n" +
		") AS q1"
	assert.Equal(t, want, res.SQL)
	assert.True(t, res.TrueOnMissing)
}

func TestUniversalNegatedAtomIsFalseOnMissing(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "~R(x)"), sqlgen.Params{MissingTuples: true, DomainSize: 4})
	require.NoError(t, err)
	assert.False(t, res.TrueOnMissing)
	assert.Contains(t, res.SQL, "R.v0 AS sep_var_1, p AS pUse")
	assert.Contains(t, res.SQL, "CASE WHEN COUNT(*) = 4 THEN prod_double(pUse) ELSE 0 END AS pUse")
}

func TestUniversalLogModes(t *testing.T) {
	n := build(t, "~R(x)")

	res, err := sqlgen.Universal(n, sqlgen.Params{UseLog: true, UseNull: true, MissingTuples: true, DomainSize: 3})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "CASE WHEN p > 0 THEN ln(p) ELSE NULL END AS pUse")
	assert.Contains(t, res.SQL, "CASE WHEN (COUNT(*) = COUNT(pUse) AND COUNT(*) = 3) THEN SUM(pUse) ELSE NULL END AS pUse")

	res, err = sqlgen.Universal(n, sqlgen.Params{UseLog: true, MissingTuples: true, DomainSize: 3})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "ELSE '-Infinity' END AS pUse")
	assert.Contains(t, res.SQL, "CASE WHEN COUNT(*) = 3 THEN SUM(pUse) ELSE '-Infinity' END AS pUse")

	res, err = sqlgen.Universal(build(t, "R(x)"), sqlgen.Params{UseLog: true, UseNull: true})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "CASE WHEN COUNT(*) = COUNT(pUse) THEN SUM(pUse) ELSE NULL END AS pUse")
	assert.Contains(t, res.SQL, "HAVING COUNT(*) > 0")
}

func TestUniversalInequalityShrinksDomain(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "~S[-1](x)"), sqlgen.Params{MissingTuples: true, DomainSize: 5})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "WHERE S.v0 <> 1")
	assert.Contains(t, res.SQL, "COUNT(*) = 4")
}

func TestUniversalUnion(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "R(x) v S(y)"), sqlgen.Params{})
	require.NoError(t, err)
	assert.True(t, res.TrueOnMissing)
	assert.Contains(t, res.SQL, "-- independent union")
	assert.Contains(t, res.SQL, "UNION ALL")
	assert.Contains(t, res.SQL, "TRUE AS trueOnMissing")
	assert.Contains(t, res.SQL, "iunion_0_false_on_missing(pUse, trueOnMissing) AS pUse")

	res, err = sqlgen.Universal(build(t, "R(x) v ~S(y)"), sqlgen.Params{UseLog: true, UseNull: true})
	require.NoError(t, err)
	assert.False(t, res.TrueOnMissing)
	assert.Contains(t, res.SQL, "FALSE AS trueOnMissing")
	assert.Contains(t, res.SQL, "iunion_log_null_1_false_on_missing(pUse, trueOnMissing)")
}

func TestUniversalJoin(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "R(x),S(x,y)"), sqlgen.Params{})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "-- independent join")
	assert.Contains(t, res.SQL, "INNER JOIN q")
	assert.Contains(t, res.SQL, "AS sep_var_1")
	assert.Contains(t, res.SQL, "1 - (COALESCE(1 - q")
}

func TestUniversalJoinWithFalseOnMissingChild(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "R(x),~T*(x)"), sqlgen.Params{UseLog: true})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "LEFT OUTER JOIN q")
	assert.Contains(t, res.SQL, "<> '-Infinity' THEN 1 - exp(q")
}

func TestUniversalInclusionExclusion(t *testing.T) {
	res, err := sqlgen.Universal(build(t, ieQuery), sqlgen.Params{})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "-- inclusion/exclusion")
	assert.Contains(t, res.SQL, "(-1 * -1 * COALESCE(q")
	assert.Contains(t, res.SQL, "(-1 * 1 * COALESCE(q")
}

func TestUniversalGenericEquality(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "R[c,*](x)"), sqlgen.Params{})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "R.v0 AS sep_var_generic_c")
	assert.Contains(t, res.SQL, "GROUP BY sep_var_generic_c")
}

func TestUniversalGenericInequality(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "S[c,-c](x)"), sqlgen.Params{})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "WHERE q1.sep_var_1 <> q1.sep_var_generic_c")

	res, err = sqlgen.Universal(build(t, "S[-c](x)"), sqlgen.Params{})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "A.v0 AS sep_var_generic_c")
	assert.Contains(t, res.SQL, "WHERE A.v0 <> q1.sep_var_1")
	assert.Contains(t, res.SQL, "GROUP BY A.v0")
}

func TestUniversalSampledRelation(t *testing.T) {
	res, err := sqlgen.Universal(build(t, "R*!(x)"), sqlgen.Params{MissingTuples: true, DomainSize: 2})
	require.NoError(t, err)
	assert.Contains(t, res.SQL, "FROM RNot")
	assert.Contains(t, res.SQL, "1 - pSample AS pUse")
}

func TestUniversalRejectsUncoveredSeparators(t *testing.T) {
	n := &plan.IndependentJoin{
		Terms:      []plan.Node{ground(query.NewRelation("R"))},
		Separators: []string{"1"},
	}
	_, err := sqlgen.Universal(n, sqlgen.Params{})
	require.Error(t, err)
	assert.True(t, plan.IsMalformedPlanErr(err))
	assert.Contains(t, err.Error(), "no subquery containing all separators")
}

func TestLineage(t *testing.T) {
	q, err := parser.Parse("R(x),S(x,y) v ~T(z)")
	require.NoError(t, err)
	sql := sqlgen.Lineage(q)
	assert.Contains(t, sql, "SELECT 'R', R1.id, R1.p, 'S', S1.id, S1.p\nFROM R R1, S S1\nWHERE R1.v0 = S1.v0")
	assert.Contains(t, sql, "\nUNION\n")
	assert.Contains(t, sql, "SELECT 'T', -T1.id, T1.p, '', 0, 0\nFROM T T1")
}

func TestLineageSelfJoinAndConstraints(t *testing.T) {
	q, err := parser.Parse("S[*,3](x),S(x,y)")
	require.NoError(t, err)
	sql := sqlgen.Lineage(q)
	assert.Contains(t, sql, "FROM S S1, S S2")
	assert.Contains(t, sql, "S1.v1 = 3")
	assert.Contains(t, sql, "S1.v0 = S2.v0")
}

func TestSampleQuery(t *testing.T) {
	rels := []*query.Relation{query.NewRelation("R", "x"), query.NewRelation("R", "y"), query.NewRelation("S", "x", "y")}
	got := sqlgen.SampleQuery("SELECT 1", rels)
	want := "WITH R AS (\n" +
		"    SELECT v0, CASE WHEN random() < p THEN 1 ELSE 0 END AS p\n" +
		"    FROM R\n" +
		"),\n" +
		"S AS (\n" +
		"    SELECT v0, v1, CASE WHEN random() < p THEN 1 ELSE 0 END AS p\n" +
		"    FROM S\n" +
		")\n" +
		"SELECT 1"
	assert.Equal(t, want, got)
}
