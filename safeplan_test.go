package safeplan_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/safeplan"
	"github.com/pthm/safeplan/pkg/compiler"
	"github.com/pthm/safeplan/pkg/plan"
)

func TestCompileDirect(t *testing.T) {
	c, err := safeplan.Compile(context.Background(), "R(x),S(x,y)", safeplan.Direct)
	require.NoError(t, err)
	assert.Equal(t, plan.KindIndependentProject, c.Plan.Kind())
	assert.Contains(t, c.SQL, "ior(")
	assert.False(t, c.TrueOnMissing)
}

func TestCompileUniversal(t *testing.T) {
	c, err := safeplan.Compile(context.Background(), "R(x)", safeplan.Universal,
		safeplan.CompileOptions{Params: compiler.Params{UseLog: true, UseNull: true}})
	require.NoError(t, err)
	assert.Equal(t, safeplan.Universal, c.Mode)
	assert.Contains(t, c.SQL, "ln(")
	assert.True(t, c.TrueOnMissing)
}

func TestCompileUnsafe(t *testing.T) {
	_, err := safeplan.Compile(context.Background(), "R(x),S(x,y),T(y)", safeplan.Direct)
	require.Error(t, err)
	assert.True(t, safeplan.IsUnsafeErr(err))
	assert.False(t, safeplan.IsParseErr(err))
}

func TestCompileParseError(t *testing.T) {
	_, err := safeplan.Compile(context.Background(), "R(x", safeplan.Direct)
	require.Error(t, err)
	assert.True(t, safeplan.IsParseErr(err))
	assert.ErrorIs(t, err, safeplan.ErrParse)
}

func TestFindSafeResidual(t *testing.T) {
	r, err := safeplan.FindSafeResidual(context.Background(), "R(x),S(x,y),T(y)")
	require.NoError(t, err)
	assert.Equal(t, []string{"R"}, r.Marked)
	assert.Equal(t, "R*!(x),S(x,y),T(y)", r.Query.String())
	assert.Contains(t, r.SampleSQL, "WITH R AS (")
	assert.Contains(t, r.SampleSQL, r.SQL)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "direct", safeplan.Direct.String())
	assert.Equal(t, "universal", safeplan.Universal.String())
}

func TestSentinelsMatchPackages(t *testing.T) {
	assert.ErrorIs(t, plan.ErrUnsafe, safeplan.ErrUnsafe)
	assert.True(t, safeplan.IsMalformedPlanErr(plan.ErrMalformedPlan))
	assert.True(t, safeplan.IsNoSafeResidualErr(plan.ErrNoSafeResidual))
	assert.True(t, safeplan.IsUnsafeErr(safeplan.ErrNoSafeResidual))
	assert.True(t, safeplan.IsOracleUnavailableErr(safeplan.ErrOracleUnavailable))
}
