package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/pthm/safeplan/internal/cli"
	"github.com/pthm/safeplan/internal/doctor"
	"github.com/pthm/safeplan/pkg/query"
)

var (
	doctorDB    string
	doctorQuery string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long: `Run health checks on a probabilistic database: the entailment oracle,
support functions, the active domain and, with --query, the relations the
query reads.`,
	Example: `  # Run health checks
  safeplan doctor --db postgres://localhost/probdb

  # Check the relations of a query with detailed output
  safeplan doctor --db postgres://localhost/probdb --query "R(x),S*(x,y)" -v`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := resolveDSN(doctorDB)
		if err != nil {
			return err
		}

		var q *query.DNF
		if doctorQuery != "" {
			if q, err = parseQuery(doctorQuery); err != nil {
				return err
			}
		}
		return runDoctor(cmd.Context(), dsn, q)
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.StringVar(&doctorQuery, "query", "", "query whose relations to check")
}

func runDoctor(ctx context.Context, dsn string, q *query.DNF) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cli.DBConnectError("connecting to database", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return cli.DBConnectError("connecting to database", err)
	}

	if !quiet {
		fmt.Println("safeplan doctor - Health Check")
	}

	d := doctor.New(db, doctor.Options{
		Query:       q,
		DomainSize:  cfg.Codegen.DomainSize,
		Oracle:      cfg.Planner.Oracle,
		Prover9Path: cfg.Planner.Prover9Path,
	})
	report, err := d.Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verbose > 0)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}

	return nil
}
