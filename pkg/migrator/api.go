// Package migrator installs the PostgreSQL support functions that generated
// plan SQL depends on.
package migrator

import (
	"context"
)

// Migrate installs the support functions in one operation. This is the
// recommended high-level API for most applications.
//
// The function is idempotent and safe to call on every application startup:
//
//	if err := migrator.Migrate(ctx, db); err != nil {
//	    log.Fatalf("migration failed: %v", err)
//	}
//
// For dry-run or forced re-application, use MigrateWithOptions.
func Migrate(ctx context.Context, db Execer) error {
	_, err := NewMigrator(db).Apply(ctx, MigrateOptions{})
	return err
}

// MigrateWithOptions performs migration with control over dry-run and skip
// behavior.
//
// Returns (skipped, error):
//   - skipped=true if the last migration already installed the same SQL
//     (only when Force=false and DryRun=nil)
//   - error is non-nil if migration failed
//
// Example: write a migration script without applying it
//
//	var buf bytes.Buffer
//	_, err := migrator.MigrateWithOptions(ctx, db, migrator.MigrateOptions{DryRun: &buf})
//	os.WriteFile("migrations/001_safeplan.sql", buf.Bytes(), 0644)
func MigrateWithOptions(ctx context.Context, db Execer, opts MigrateOptions, options ...Option) (skipped bool, err error) {
	return NewMigrator(db, options...).Apply(ctx, opts)
}
