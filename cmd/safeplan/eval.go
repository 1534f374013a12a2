package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pthm/safeplan/internal/cli"
	"github.com/pthm/safeplan/pkg/compiler"
	"github.com/pthm/safeplan/pkg/eval"
)

var evalCmd = &cobra.Command{
	Use:   "eval <query>",
	Short: "Compute a query's probability on a database",
	Long: `Plan the query, generate its SQL and run it against the configured
database. PostgreSQL databases need the support functions installed with
"safeplan migrate"; SQLite databases get them registered on connect.

Universal-mode results are converted back to the probability of the query.`,
	Example: `  # Evaluate against PostgreSQL
  SAFEPLAN_DATABASE_URL=postgres://localhost/probdb safeplan eval "R(x),S(x,y)"

  # Evaluate against a SQLite file in universal mode
  SAFEPLAN_EVAL_DRIVER=sqlite SAFEPLAN_EVAL_SQLITE_PATH=prob.db \
    safeplan eval "R(x)" --mode universal --missing-tuples --domain-size 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyCodegenFlags(cmd)
		ctx := cmd.Context()

		_, n, err := buildPlan(ctx, args[0])
		if err != nil {
			return err
		}
		sql, trueOnMissing, err := generate(n)
		if err != nil {
			return err
		}

		driver, dsn, err := cfg.EvalDSN()
		if err != nil {
			return cli.ConfigError("eval configuration", err)
		}
		engine, err := eval.Open(ctx, driver, dsn, eval.WithLogger(logger.WithName("eval")))
		if err != nil {
			return cli.DBConnectError("connecting to database", err)
		}
		defer func() { _ = engine.Close() }()

		var res *eval.Result
		if cfg.Codegen.Mode == cli.ModeUniversal {
			res, err = engine.QueryUniversal(ctx, compiler.Result{SQL: sql, TrueOnMissing: trueOnMissing}, cfg.Params())
		} else {
			res, err = engine.Query(ctx, sql)
		}
		if err != nil {
			return cli.GeneralError("evaluating query", err)
		}

		printResult(res, trueOnMissing)
		return nil
	},
}

func init() {
	addCodegenFlags(evalCmd)
}

func printResult(res *eval.Result, trueOnMissing bool) {
	if len(res.Rows) == 0 {
		p := 0.0
		if cfg.Codegen.Mode == cli.ModeUniversal && !trueOnMissing {
			p = 1
		}
		fmt.Printf("%g\n", p)
		return
	}

	if len(res.Columns) == 0 && len(res.Rows) == 1 {
		fmt.Printf("%g\n", res.Rows[0].P)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", strings.Join(res.Columns, "\t"), eval.ProbabilityColumn)
	for _, r := range res.Rows {
		for _, v := range r.Values {
			fmt.Fprintf(w, "%v\t", v)
		}
		fmt.Fprintf(w, "%g\n", r.P)
	}
	_ = w.Flush()
}
