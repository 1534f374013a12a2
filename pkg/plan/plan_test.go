package plan_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/pthm/safeplan/pkg/entail"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/pkg/query"
)

const ieQuery = "R(x1),S(x1,y1) v S(x2,y2),T(y2) v R(x3),T(y3)"

func mustParse(t *testing.T, text string) *query.DNF {
	t.Helper()
	q, err := parser.Parse(text)
	require.NoError(t, err)
	return q
}

// kinds renders the operator tree without queries.
func kinds(n plan.Node) string {
	var b strings.Builder
	var walk func(plan.Node, int)
	walk = func(n plan.Node, depth int) {
		fmt.Fprintf(&b, "%s%s\n", strings.Repeat("  ", depth), n.Kind())
		for _, c := range n.Children() {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
	return b.String()
}

func TestPlansDataDriven(t *testing.T) {
	ctx := context.Background()
	datadriven.RunTest(t, "testdata/plans", func(t *testing.T, d *datadriven.TestData) string {
		q := mustParse(t, strings.TrimSpace(d.Input))
		b := plan.NewBuilder()
		switch d.Cmd {
		case "shape":
			n, err := b.Build(ctx, q)
			if plan.IsUnsafeErr(err) {
				return "unsafe\n"
			}
			require.NoError(t, err)
			return kinds(n)
		case "residual":
			r, err := b.FindSafeResidual(ctx, q)
			if plan.IsNoSafeResidualErr(err) {
				return "none\n"
			}
			require.NoError(t, err)
			return fmt.Sprintf("marked: %s\nquery: %s\n", strings.Join(r.Marked, ","), r.Query)
		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}

func TestBuildIsDeterministic(t *testing.T) {
	ctx := context.Background()
	q := mustParse(t, ieQuery)
	first, err := plan.NewBuilder().Build(ctx, q)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := plan.NewBuilder().Build(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, plan.Format(first), plan.Format(again))
	}
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	q := mustParse(t, ieQuery)
	seq, err := plan.NewBuilder().Build(ctx, q)
	require.NoError(t, err)
	par, err := plan.NewBuilder(plan.WithParallel(true)).Build(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, kinds(seq), kinds(par))
}

func TestInclusionExclusionCoefficients(t *testing.T) {
	n, err := plan.NewBuilder().Build(context.Background(), mustParse(t, ieQuery))
	require.NoError(t, err)
	ie, ok := n.(*plan.InclusionExclusion)
	require.True(t, ok, "root is %s", n.Kind())

	var coeffs []int
	for _, term := range ie.Terms {
		coeffs = append(coeffs, term.Coeff)
	}
	assert.Equal(t, []int{-1, -1, 1}, coeffs)
}

func TestInclusionExclusionChildrenAreTerms(t *testing.T) {
	n, err := plan.NewBuilder().Build(context.Background(), mustParse(t, ieQuery))
	require.NoError(t, err)
	ie, ok := n.(*plan.InclusionExclusion)
	require.True(t, ok, "root is %s", n.Kind())

	children := ie.Children()
	require.Len(t, children, len(ie.Terms))
	for i, term := range ie.Terms {
		require.NotNil(t, term.Plan)
		assert.Same(t, term.Plan, children[i])
	}
}

func TestParallelBuildReportsUnsafeBranch(t *testing.T) {
	b := plan.NewBuilder(plan.WithParallel(true))
	_, err := b.Build(context.Background(), mustParse(t, "R(x),S(x,y),T(y) v U(z)"))
	require.ErrorIs(t, err, plan.ErrUnsafe)
	assert.NotErrorIs(t, err, context.Canceled)
}

func TestNoSafeResidualIsUnsafe(t *testing.T) {
	_, err := plan.NewBuilder(plan.WithMaxDepth(0)).FindSafeResidual(context.Background(), mustParse(t, "R(x)"))
	require.ErrorIs(t, err, plan.ErrNoSafeResidual)
	assert.ErrorIs(t, err, plan.ErrUnsafe)
	assert.True(t, plan.IsUnsafeErr(err))
}

func TestUnknownVerdictsStayConservative(t *testing.T) {
	unknown := entail.OracleFunc(func(context.Context, entail.Formula, ...entail.Formula) entail.Verdict {
		return entail.Unknown
	})
	b := plan.NewBuilder(plan.WithOracle(unknown))

	n, err := b.Build(context.Background(), mustParse(t, ieQuery))
	require.NoError(t, err)
	ie, ok := n.(*plan.InclusionExclusion)
	require.True(t, ok)
	assert.Len(t, ie.Terms, 3)

	_, err = b.Build(context.Background(), mustParse(t, "R(x),S(x,y),T(y)"))
	assert.ErrorIs(t, err, plan.ErrUnsafe)
}

func TestTautologyBecomesAlwaysTrueGroundTuple(t *testing.T) {
	n, err := plan.NewBuilder().Build(context.Background(), mustParse(t, "R[1]() v ~R[1]()"))
	require.NoError(t, err)
	g, ok := n.(*plan.GroundTuple)
	require.True(t, ok, "root is %s", n.Kind())
	assert.True(t, g.AlwaysTrue())
}

func TestProjectReplacements(t *testing.T) {
	n, err := plan.NewBuilder().Build(context.Background(), mustParse(t, "R(x),S(x,y)"))
	require.NoError(t, err)

	var repl []string
	plan.Walk(n, func(n plan.Node) {
		if p, ok := n.(*plan.IndependentProject); ok {
			repl = append(repl, p.Replacement)
		}
	})
	assert.Equal(t, []string{"1", "2"}, repl)

	p := n.(*plan.IndependentProject)
	assert.Equal(t, "x", p.Separator[0].Name)
	assert.Empty(t, p.Separators)
	assert.Equal(t, "R(_s1),S(_s1,y)", p.ChildQuery.String())
	assert.True(t, p.Child.UsesSeparator("1"))
	assert.False(t, p.UsesSeparator("1"))
}

func TestGenericInequalityReplacement(t *testing.T) {
	n, err := plan.NewBuilder().Build(context.Background(), mustParse(t, "S[c,-c](x)"))
	require.NoError(t, err)
	p, ok := n.(*plan.IndependentProject)
	require.True(t, ok, "root is %s", n.Kind())
	assert.True(t, p.IsGenericInequality())
	assert.Equal(t, "1", p.Replacement)
	assert.Equal(t, "c", p.GenericSymbol())
}

func TestMaxDepth(t *testing.T) {
	_, err := plan.NewBuilder(plan.WithMaxDepth(0)).Build(context.Background(), mustParse(t, "R(x)"))
	assert.ErrorIs(t, err, plan.ErrUnsafe)
}

func TestBuildHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := plan.NewBuilder().Build(ctx, mustParse(t, "R(x)"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, plan.IsUnsafeErr(err))
}

func TestSharedMemo(t *testing.T) {
	memo := entail.NewMemo(entail.NewBounded())
	b := plan.NewBuilder(plan.WithMemo(memo))
	_, err := b.Build(context.Background(), mustParse(t, ieQuery))
	require.NoError(t, err)
	size := memo.Size()
	assert.Positive(t, size)

	_, err = b.Build(context.Background(), mustParse(t, ieQuery))
	require.NoError(t, err)
	assert.Equal(t, size, memo.Size())
}

func TestResidualRelations(t *testing.T) {
	r, err := plan.NewBuilder().FindSafeResidual(context.Background(), mustParse(t, "R(x),S(x,y),T(y)"))
	require.NoError(t, err)
	require.Len(t, r.Relations, 1)
	assert.Equal(t, "R", r.Relations[0].Name)
	assert.True(t, r.Relations[0].Deterministic)
	assert.True(t, r.Relations[0].Sampled)
	assert.NotNil(t, r.Plan)
}

func TestFormatAndDescribe(t *testing.T) {
	n, err := plan.NewBuilder().Build(context.Background(), mustParse(t, "R(x)"))
	require.NoError(t, err)

	out := plan.Format(n)
	assert.Contains(t, out, "Independent Project: x -> _1  (R(x))")
	assert.Contains(t, out, "  Ground Tuple: R(_s1)")

	data, err := yaml.Marshal(plan.Describe(n))
	require.NoError(t, err)
	assert.Contains(t, string(data), "kind: independent-project")
	assert.Contains(t, string(data), "replacement: \"1\"")
}
