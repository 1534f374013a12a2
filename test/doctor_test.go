package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/safeplan/internal/doctor"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/test/testutil"
)

func checks(r *doctor.Report) map[string]doctor.CheckResult {
	out := make(map[string]doctor.CheckResult)
	for _, c := range r.Checks {
		out[c.Category+"/"+c.Name] = c
	}
	return out
}

func TestDoctor_EmptyDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := testutil.EmptyDB(t)
	report, err := doctor.New(db, doctor.Options{}).Run(context.Background())
	require.NoError(t, err)

	got := checks(report)
	assert.Equal(t, doctor.StatusWarn, got["Migration State/migrated"].Status)
	assert.Equal(t, doctor.StatusFail, got["Support Functions/installed"].Status)
	assert.Equal(t, doctor.StatusWarn, got["Active Domain/exists"].Status)
	assert.True(t, report.HasErrors())
}

func TestDoctor_Healthy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := testutil.DB(t)
	ctx := context.Background()
	fx := testutil.NewFixtures(ctx, db)
	require.NoError(t, fx.CreateActiveDomain(1, 2, 3))
	require.NoError(t, fx.CreateRelation("R", 1, tup(0.5, 1)))
	require.NoError(t, fx.CreateRelation("T", 1, tup(1, 1), tup(0, 2)))

	q, err := parser.Parse("R(x),T*(x) v S(y)")
	require.NoError(t, err)

	report, err := doctor.New(db, doctor.Options{Query: q, DomainSize: 4}).Run(ctx)
	require.NoError(t, err)

	got := checks(report)
	assert.Equal(t, doctor.StatusPass, got["Support Functions/installed"].Status)
	assert.Equal(t, doctor.StatusPass, got["Migration State/sync"].Status)
	assert.Equal(t, doctor.StatusWarn, got["Active Domain/size"].Status, "domain size 4 differs from 3 constants")
	assert.Equal(t, doctor.StatusPass, got["Relation R/data"].Status)
	assert.Equal(t, doctor.StatusPass, got["Relation T/data"].Status)
	assert.Equal(t, doctor.StatusFail, got["Relation S/exists"].Status)
}
