// Package doctor provides health checks for a database that safeplan
// queries run against.
//
// The doctor validates that support functions are installed, the active
// domain exists, and the relations a query reads have the expected layout
// and valid probabilities.
//
// Example usage:
//
//	d := doctor.New(db, doctor.Options{Query: q})
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"

	"github.com/pthm/safeplan/pkg/entail"
	"github.com/pthm/safeplan/pkg/migrator"
	"github.com/pthm/safeplan/pkg/query"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Support Functions").
	Category string

	// Name is a short identifier for the check.
	Name string

	Status  Status
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Options selects the optional checks.
type Options struct {
	// Query, when set, has its relations checked for layout and data.
	Query *query.DNF

	// DomainSize is the configured codegen.domain_size; 0 skips the
	// comparison with the active domain.
	DomainSize int

	// Oracle and Prover9Path select the configured entailment backend.
	Oracle      string
	Prover9Path string
}

// Doctor performs health checks against a PostgreSQL database.
type Doctor struct {
	db   *sql.DB
	opts Options
}

// New creates a new Doctor instance.
func New(db *sql.DB, opts Options) *Doctor {
	return &Doctor{db: db, opts: opts}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	d.checkOracle(report)

	status, err := migrator.NewMigrator(d.db).GetStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking migration state: %w", err)
	}
	d.checkMigrationState(status, report)
	d.checkSupportFunctions(status, report)
	if err := d.checkActiveDomain(ctx, status, report); err != nil {
		return nil, fmt.Errorf("checking active domain: %w", err)
	}
	if d.opts.Query != nil {
		if err := d.checkRelations(ctx, report); err != nil {
			return nil, fmt.Errorf("checking relations: %w", err)
		}
	}

	return report, nil
}

func (d *Doctor) checkOracle(report *Report) {
	if d.opts.Oracle != "prover9" {
		report.AddCheck(CheckResult{
			Category: "Entailment Oracle",
			Name:     "backend",
			Status:   StatusPass,
			Message:  "Using the built-in bounded prover",
		})
		return
	}

	p, err := entail.NewProver9(d.opts.Prover9Path, logr.Discard())
	if err != nil {
		report.AddCheck(CheckResult{
			Category: "Entailment Oracle",
			Name:     "backend",
			Status:   StatusFail,
			Message:  "prover9 binary not found",
			Details:  err.Error(),
			FixHint:  "Install prover9, set planner.prover9_path, or use planner.oracle: builtin",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: "Entailment Oracle",
		Name:     "backend",
		Status:   StatusPass,
		Message:  fmt.Sprintf("prover9 found at %s", p.Path),
	})
}

func (d *Doctor) checkMigrationState(status *migrator.Status, report *Report) {
	last := status.LastMigration
	if last == nil {
		report.AddCheck(CheckResult{
			Category: "Migration State",
			Name:     "migrated",
			Status:   StatusWarn,
			Message:  "No migration records found",
			FixHint:  "Run 'safeplan migrate' to install the support functions",
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Migration State",
		Name:     "migrated",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Support functions migrated (%d routines tracked)", len(last.FunctionNames)),
		Details:  fmt.Sprintf("Run: %s\nApplied: %s", last.RunID, last.AppliedAt.Format("2006-01-02 15:04:05 MST")),
	})

	checksum := migrator.NewMigrator(d.db).Checksum()
	switch {
	case last.Checksum != checksum:
		report.AddCheck(CheckResult{
			Category: "Migration State",
			Name:     "sync",
			Status:   StatusWarn,
			Message:  "Support functions have changed since last migration",
			Details:  fmt.Sprintf("Binary checksum: %s...\nDB checksum:     %s...", checksum[:16], prefix(last.Checksum, 16)),
			FixHint:  "Run 'safeplan migrate' to apply changes",
		})
	case last.CodegenVersion != migrator.CodegenVersion:
		report.AddCheck(CheckResult{
			Category: "Migration State",
			Name:     "sync",
			Status:   StatusWarn,
			Message:  "Codegen version has changed",
			Details:  fmt.Sprintf("Current: %s, DB: %s", migrator.CodegenVersion, last.CodegenVersion),
			FixHint:  "Run 'safeplan migrate' to reinstall functions",
		})
	default:
		report.AddCheck(CheckResult{
			Category: "Migration State",
			Name:     "sync",
			Status:   StatusPass,
			Message:  "Support functions are in sync with this binary",
		})
	}
}

func (d *Doctor) checkSupportFunctions(status *migrator.Status, report *Report) {
	if len(status.Missing) == 0 {
		report.AddCheck(CheckResult{
			Category: "Support Functions",
			Name:     "installed",
			Status:   StatusPass,
			Message:  fmt.Sprintf("All %d support routines installed", len(status.Installed)),
		})
		return
	}

	report.AddCheck(CheckResult{
		Category: "Support Functions",
		Name:     "installed",
		Status:   StatusFail,
		Message:  fmt.Sprintf("%d of %d support routines missing", len(status.Missing), len(status.Missing)+len(status.Installed)),
		Details:  "Missing: " + strings.Join(status.Missing, ", "),
		FixHint:  "Run 'safeplan migrate'",
	})
}

func (d *Doctor) checkActiveDomain(ctx context.Context, status *migrator.Status, report *Report) error {
	if !status.ActiveDomainExists {
		report.AddCheck(CheckResult{
			Category: "Active Domain",
			Name:     "exists",
			Status:   StatusWarn,
			Message:  "Relation A does not exist",
			Details:  "Universal mode and generic constants enumerate the domain from A(v0)",
			FixHint:  "Create a table or view A with one column v0 listing all constants",
		})
		return nil
	}

	var count int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM A").Scan(&count); err != nil {
		report.AddCheck(CheckResult{
			Category: "Active Domain",
			Name:     "query",
			Status:   StatusFail,
			Message:  "Could not query relation A",
			Details:  err.Error(),
			FixHint:  "Relation A must have a column v0",
		})
		return nil
	}

	check := CheckResult{
		Category: "Active Domain",
		Name:     "size",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Relation A lists %d constants", count),
	}
	if d.opts.DomainSize > 0 && d.opts.DomainSize != count {
		check.Status = StatusWarn
		check.Message = fmt.Sprintf("codegen.domain_size is %d but relation A lists %d constants", d.opts.DomainSize, count)
		check.FixHint = "Set codegen.domain_size to the number of constants in A"
	}
	report.AddCheck(check)
	return nil
}

// checkRelations verifies that each relation of the query exists with
// columns v0..v(k-1) and p, and that its probabilities lie in [0, 1].
func (d *Doctor) checkRelations(ctx context.Context, report *Report) error {
	seen := make(map[string]bool)
	for _, r := range d.opts.Query.Relations() {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true

		cols, err := d.columns(ctx, r.Name)
		if err != nil {
			return err
		}
		category := "Relation " + r.Name
		if len(cols) == 0 {
			report.AddCheck(CheckResult{
				Category: category,
				Name:     "exists",
				Status:   StatusFail,
				Message:  fmt.Sprintf("%s does not exist", r.Name),
				FixHint:  fmt.Sprintf("Create %s with columns id, v0..v%d and p", r.Name, r.Arity()-1),
			})
			continue
		}

		required := []string{"id", "p"}
		for i := 0; i < r.Arity(); i++ {
			required = append(required, fmt.Sprintf("v%d", i))
		}
		if r.Sampled {
			required = append(required, "psample")
		}
		var missing []string
		for _, c := range required {
			if !cols[c] {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			report.AddCheck(CheckResult{
				Category: category,
				Name:     "columns",
				Status:   StatusFail,
				Message:  fmt.Sprintf("Missing required columns: %s", strings.Join(missing, ", ")),
				FixHint:  fmt.Sprintf("%s needs id, v0..v%d and p", r.Name, r.Arity()-1),
			})
			continue
		}
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "columns",
			Status:   StatusPass,
			Message:  "All required columns present",
		})

		d.checkProbabilities(ctx, r, category, report)
	}
	return nil
}

func (d *Doctor) checkProbabilities(ctx context.Context, r *query.Relation, category string, report *Report) {
	var rows, invalid, uncertain int64
	err := d.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE p IS NULL OR p < 0 OR p > 1),
			COUNT(*) FILTER (WHERE p > 0 AND p < 1)
		FROM %s`, r.Name)).Scan(&rows, &invalid, &uncertain)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "data",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Could not query %s", r.Name),
			Details:  err.Error(),
		})
		return
	}

	switch {
	case invalid > 0:
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "data",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d of %d tuples have a probability outside [0, 1]", invalid, rows),
			FixHint:  "Column p must hold a probability",
		})
	case r.Deterministic && uncertain > 0:
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "data",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%s is marked deterministic but %d tuples are uncertain", r.Name, uncertain),
		})
	case rows == 0:
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "data",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%s is empty", r.Name),
		})
	default:
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "data",
			Status:   StatusPass,
			Message:  fmt.Sprintf("%s contains %d tuples", r.Name, rows),
		})
	}
}

// columns returns the lower-cased column names of a relation in the current
// schema, or none if it does not exist.
func (d *Doctor) columns(ctx context.Context, name string) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		AND table_name = lower($1)
	`, name)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s: %w", name, err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning column name: %w", err)
		}
		cols[strings.ToLower(c)] = true
	}
	return cols, rows.Err()
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
