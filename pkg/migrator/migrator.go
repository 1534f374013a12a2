package migrator

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/lib/pq"

	safeplansql "github.com/pthm/safeplan/sql"
)

// CodegenVersion is incremented when the support functions or the way
// generated queries call them change. A bump re-runs migration even when
// the function SQL checksum is unchanged.
const CodegenVersion = "1"

const migrationsDDL = `-- safeplan migrations tracking table
CREATE TABLE IF NOT EXISTS safeplan_migrations (
    id BIGSERIAL PRIMARY KEY,
    run_id UUID NOT NULL,
    checksum TEXT NOT NULL,
    codegen_version TEXT NOT NULL,
    function_names TEXT[] NOT NULL,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// MigrateOptions controls migration behavior.
type MigrateOptions struct {
	// DryRun writes the SQL to the provided writer without touching the
	// database.
	DryRun io.Writer

	// Force re-runs migration even if the functions are unchanged.
	Force bool
}

// MigrationRecord represents a row in the safeplan_migrations table.
type MigrationRecord struct {
	RunID          string
	Checksum       string
	CodegenVersion string
	FunctionNames  []string
	AppliedAt      time.Time
}

// Migrator installs the aggregates that generated plan SQL calls: ior,
// prod_double and the iunion family. It is idempotent and safe to run on
// every application startup.
//
//	m := migrator.NewMigrator(db)
//	skipped, err := m.Apply(ctx, migrator.MigrateOptions{})
type Migrator struct {
	db  Execer
	sql string
	log logr.Logger
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger used to report migration progress.
func WithLogger(l logr.Logger) Option {
	return func(m *Migrator) { m.log = l }
}

// WithFunctionsSQL replaces the embedded support-function SQL.
func WithFunctionsSQL(s string) Option {
	return func(m *Migrator) { m.sql = s }
}

// NewMigrator creates a new migrator.
// The Execer is typically *sql.DB but can be *sql.Tx for testing.
func NewMigrator(db Execer, opts ...Option) *Migrator {
	m := &Migrator{db: db, sql: safeplansql.FunctionsSQL, log: logr.Discard()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Checksum returns the checksum of the support-function SQL this migrator
// installs.
func (m *Migrator) Checksum() string {
	return ComputeChecksum(m.sql)
}

// ComputeChecksum returns a SHA256 hash of the SQL content.
func ComputeChecksum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// FunctionNames lists every routine the support SQL defines, aggregates and
// their state functions alike.
func FunctionNames() []string {
	names := []string{
		"ior",
		"prod_double",
		"safeplan_ior_step",
		"safeplan_ior_final",
		"safeplan_iunion_step",
		"safeplan_iunion_log_null_step",
		"safeplan_iunion_log_neginf_step",
	}
	for n := 0; n <= safeplansql.MaxFalseOnMissing; n++ {
		names = append(names,
			fmt.Sprintf("safeplan_iunion_final_%d", n),
			fmt.Sprintf("safeplan_iunion_log_null_final_%d", n),
			fmt.Sprintf("safeplan_iunion_log_neginf_final_%d", n),
			fmt.Sprintf("iunion_%d_false_on_missing", n),
			fmt.Sprintf("iunion_log_null_%d_false_on_missing", n),
			fmt.Sprintf("iunion_log_neginf_%d_false_on_missing", n),
		)
	}
	return names
}

// Apply installs the support functions.
//
// Unless Force or DryRun is set, the migration is skipped (skipped=true)
// when the last recorded migration has the same checksum and codegen
// version. Applying uses a transaction if the db supports it (*sql.DB).
func (m *Migrator) Apply(ctx context.Context, opts MigrateOptions) (skipped bool, err error) {
	checksum := m.Checksum()
	expected := FunctionNames()

	if opts.DryRun != nil {
		m.outputDryRun(opts.DryRun, checksum, expected)
		return false, nil
	}

	if !opts.Force {
		last, err := m.getLastMigration(ctx, m.db)
		if err != nil {
			return false, fmt.Errorf("checking last migration: %w", err)
		}
		if shouldSkipMigration(last, checksum) {
			m.log.V(1).Info("support functions unchanged, skipping", "checksum", checksum)
			return true, nil
		}
	}

	runID := uuid.New()
	log := m.log.WithValues("run", runID.String())
	log.Info("installing support functions", "functions", len(expected), "checksum", checksum)

	if txer, ok := m.db.(txBeginner); ok {
		tx, err := txer.BeginTx(ctx, nil)
		if err != nil {
			return false, fmt.Errorf("starting transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := m.apply(ctx, tx, runID, checksum, expected); err != nil {
			return false, err
		}
		return false, tx.Commit()
	}

	// An open *sql.Tx is used as is
	return false, m.apply(ctx, m.db, runID, checksum, expected)
}

func (m *Migrator) apply(ctx context.Context, db Execer, runID uuid.UUID, checksum string, expected []string) error {
	if _, err := db.ExecContext(ctx, migrationsDDL); err != nil {
		return fmt.Errorf("applying migrations DDL: %w", err)
	}

	current, err := m.getCurrentFunctions(ctx, db)
	if err != nil {
		return fmt.Errorf("getting current functions: %w", err)
	}

	if _, err := db.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("applying support functions: %w", err)
	}

	if err := m.dropOrphanedFunctions(ctx, db, current, expected); err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO safeplan_migrations (run_id, checksum, codegen_version, function_names)
		VALUES ($1, $2, $3, $4)
	`, runID.String(), checksum, CodegenVersion, pq.Array(expected))
	if err != nil {
		return fmt.Errorf("inserting migration record: %w", err)
	}
	return nil
}

// GetLastMigration returns the most recent migration record, or nil if none
// exists.
func (m *Migrator) GetLastMigration(ctx context.Context) (*MigrationRecord, error) {
	return m.getLastMigration(ctx, m.db)
}

func (m *Migrator) getLastMigration(ctx context.Context, db Execer) (*MigrationRecord, error) {
	exists, err := relationExists(ctx, db, "safeplan_migrations")
	if err != nil {
		return nil, fmt.Errorf("checking safeplan_migrations table: %w", err)
	}
	if !exists {
		return nil, nil
	}

	var rec MigrationRecord
	err = db.QueryRowContext(ctx, `
		SELECT run_id::text, checksum, codegen_version, function_names, applied_at
		FROM safeplan_migrations
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&rec.RunID, &rec.Checksum, &rec.CodegenVersion, pq.Array(&rec.FunctionNames), &rec.AppliedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last migration: %w", err)
	}
	return &rec, nil
}

func shouldSkipMigration(last *MigrationRecord, checksum string) bool {
	if last == nil {
		return false
	}
	return last.Checksum == checksum && last.CodegenVersion == CodegenVersion
}

// getCurrentFunctions returns the installed routines that belong to
// safeplan, by name prefix.
func (m *Migrator) getCurrentFunctions(ctx context.Context, db Execer) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT p.proname
		FROM pg_proc p
		JOIN pg_namespace n ON p.pronamespace = n.oid
		WHERE n.nspname = current_schema()
		AND (
			p.proname LIKE 'iunion\_%'
			OR p.proname LIKE 'safeplan\_%'
			OR p.proname IN ('ior', 'prod_double')
		)
		ORDER BY p.proname
	`)
	if err != nil {
		return nil, fmt.Errorf("querying pg_proc: %w", err)
	}
	defer func() { _ = rows.Close() }()

	functions := make([]string, 0, 64)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning function name: %w", err)
		}
		functions = append(functions, name)
	}
	return functions, rows.Err()
}

// dropOrphanedFunctions drops routines that exist but are not in the
// expected list, such as iunion variants for a larger n from an older
// version.
func (m *Migrator) dropOrphanedFunctions(ctx context.Context, db Execer, current, expected []string) error {
	want := make(map[string]bool, len(expected))
	for _, fn := range expected {
		want[fn] = true
	}

	for _, fn := range current {
		if want[fn] {
			continue
		}
		m.log.V(1).Info("dropping orphaned routine", "name", fn)
		// DROP ROUTINE covers both aggregates and plain functions.
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP ROUTINE IF EXISTS %s CASCADE", pq.QuoteIdentifier(fn))); err != nil {
			return fmt.Errorf("dropping orphaned routine %s: %w", fn, err)
		}
	}
	return nil
}

// Status represents the current migration state.
type Status struct {
	// Installed lists the expected routines present in the database.
	Installed []string

	// Missing lists the expected routines absent from the database.
	Missing []string

	// ActiveDomainExists indicates if relation A, the active domain that
	// universal-mode queries enumerate, exists.
	ActiveDomainExists bool

	// LastMigration is the most recent migration record, or nil.
	LastMigration *MigrationRecord
}

// UpToDate reports whether every routine is installed and the last
// migration matches the embedded SQL.
func (s *Status) UpToDate(checksum string) bool {
	return len(s.Missing) == 0 && shouldSkipMigration(s.LastMigration, checksum)
}

// GetStatus returns the current migration status.
func (m *Migrator) GetStatus(ctx context.Context) (*Status, error) {
	current, err := m.getCurrentFunctions(ctx, m.db)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(current))
	for _, fn := range current {
		have[fn] = true
	}

	status := &Status{}
	for _, fn := range FunctionNames() {
		if have[fn] {
			status.Installed = append(status.Installed, fn)
		} else {
			status.Missing = append(status.Missing, fn)
		}
	}

	status.ActiveDomainExists, err = relationExists(ctx, m.db, "a")
	if err != nil {
		return nil, fmt.Errorf("checking active domain: %w", err)
	}

	status.LastMigration, err = m.getLastMigration(ctx, m.db)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// relationExists checks for a table, view or materialized view in the
// current schema. Unquoted identifiers fold to lower case in PostgreSQL.
func relationExists(ctx context.Context, db Execer, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_class c
			JOIN pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = $1
			AND n.nspname = current_schema()
			AND c.relkind IN ('r', 'v', 'm', 'p')
		)
	`, name).Scan(&exists)
	return exists, err
}

// outputDryRun writes the migration SQL to the provided writer.
func (m *Migrator) outputDryRun(w io.Writer, checksum string, expected []string) {
	_, _ = fmt.Fprintf(w, "-- safeplan support functions (dry-run)\n")
	_, _ = fmt.Fprintf(w, "-- Checksum: %s\n", checksum)
	_, _ = fmt.Fprintf(w, "-- Codegen version: %s\n", CodegenVersion)
	_, _ = fmt.Fprintf(w, "\n")

	section(w, "DDL: Migration Tracking Table")
	_, _ = fmt.Fprintf(w, "%s\n\n", migrationsDDL)

	section(w, fmt.Sprintf("Support Functions (%d routines)", len(expected)))
	_, _ = fmt.Fprintf(w, "%s\n\n", strings.TrimSpace(m.sql))

	section(w, "Migration Record")
	sorted := make([]string, len(expected))
	copy(sorted, expected)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, fn := range sorted {
		quoted[i] = pq.QuoteLiteral(fn)
	}
	_, _ = fmt.Fprintf(w, "INSERT INTO safeplan_migrations (run_id, checksum, codegen_version, function_names)\n")
	_, _ = fmt.Fprintf(w, "VALUES (gen_random_uuid(), '%s', '%s', ARRAY[%s]);\n", checksum, CodegenVersion, strings.Join(quoted, ", "))
}

func section(w io.Writer, title string) {
	_, _ = fmt.Fprintf(w, "-- ============================================================\n")
	_, _ = fmt.Fprintf(w, "-- %s\n", title)
	_, _ = fmt.Fprintf(w, "-- ============================================================\n\n")
}
