package migrator

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	safeplansql "github.com/pthm/safeplan/sql"
)

func TestFunctionNames(t *testing.T) {
	names := FunctionNames()
	assert.Len(t, names, 7+6*(safeplansql.MaxFalseOnMissing+1))
	assert.Contains(t, names, "ior")
	assert.Contains(t, names, "prod_double")
	assert.Contains(t, names, "iunion_0_false_on_missing")
	assert.Contains(t, names, "iunion_log_null_8_false_on_missing")
	assert.Contains(t, names, "iunion_log_neginf_3_false_on_missing")

	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestFunctionNamesAreDefined(t *testing.T) {
	// Numbered variants come from one format template per family.
	number := regexp.MustCompile(`\d+`)
	for _, n := range FunctionNames() {
		assert.Contains(t, safeplansql.FunctionsSQL, number.ReplaceAllString(n, "%1$$s"), "no definition for %s", n)
	}
}

func TestChecksum(t *testing.T) {
	m := NewMigrator(nil)
	assert.Equal(t, ComputeChecksum(safeplansql.FunctionsSQL), m.Checksum())
	assert.Len(t, m.Checksum(), 64)

	other := NewMigrator(nil, WithFunctionsSQL("SELECT 1"))
	assert.NotEqual(t, m.Checksum(), other.Checksum())
}

func TestDryRun(t *testing.T) {
	var buf bytes.Buffer
	// The database is never touched in dry-run mode.
	skipped, err := MigrateWithOptions(context.Background(), nil, MigrateOptions{DryRun: &buf})
	require.NoError(t, err)
	assert.False(t, skipped)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "-- safeplan support functions (dry-run)\n"))
	assert.Contains(t, out, "-- Codegen version: "+CodegenVersion)
	assert.Contains(t, out, "-- DDL: Migration Tracking Table")
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS safeplan_migrations")
	assert.Contains(t, out, "CREATE OR REPLACE AGGREGATE prod_double")
	assert.Contains(t, out, "'iunion_log_neginf_8_false_on_missing'")
	assert.Contains(t, out, "-- Support Functions (61 routines)")
}

func TestShouldSkipMigration(t *testing.T) {
	assert.False(t, shouldSkipMigration(nil, "abc"))
	assert.True(t, shouldSkipMigration(&MigrationRecord{Checksum: "abc", CodegenVersion: CodegenVersion}, "abc"))
	assert.False(t, shouldSkipMigration(&MigrationRecord{Checksum: "abc", CodegenVersion: "0"}, "abc"))
	assert.False(t, shouldSkipMigration(&MigrationRecord{Checksum: "def", CodegenVersion: CodegenVersion}, "abc"))
}
