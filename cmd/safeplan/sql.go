package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/safeplan/internal/cli"
	"github.com/pthm/safeplan/pkg/compiler"
	"github.com/pthm/safeplan/pkg/plan"
)

var (
	sqlMode          string
	sqlUseLog        bool
	sqlUseNull       bool
	sqlMissingTuples bool
	sqlDomainSize    int
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Generate SQL for a safe query",
	Long: `Generate one SQL statement computing the probability of a safe query.

Direct mode selects P(Q). Universal mode selects P(not Q), accounting for
tuples missing from their tables; --use-log computes in log space.`,
	Example: `  # Direct mode
  safeplan sql "R(x),S(x,y)"

  # Universal mode in log space with missing tuples over 100 constants
  safeplan sql "~R(x)" --mode universal --use-log --missing-tuples --domain-size 100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		applyCodegenFlags(cmd)
		_, n, err := buildPlan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sql, _, err := generate(n)
		if err != nil {
			return err
		}
		fmt.Println(sql)
		return nil
	},
}

func init() {
	addCodegenFlags(sqlCmd)
}

// addCodegenFlags registers the code generation flags on cmd.
func addCodegenFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&sqlMode, "mode", "", "generation mode (direct, universal)")
	f.BoolVar(&sqlUseLog, "use-log", false, "universal mode: compute in log space")
	f.BoolVar(&sqlUseNull, "use-null", false, "universal mode: represent log(0) as NULL")
	f.BoolVar(&sqlMissingTuples, "missing-tuples", false, "universal mode: treat absent tuples as false")
	f.IntVar(&sqlDomainSize, "domain-size", 0, "universal mode: number of active domain constants")
}

// applyCodegenFlags overrides the codegen configuration with flags that were
// set on the command line.
func applyCodegenFlags(cmd *cobra.Command) {
	c := &cfg.Codegen
	c.Mode = resolveString(sqlMode, c.Mode)
	c.UseLog = resolveBool(sqlUseLog, c.UseLog)
	c.UseNull = resolveBool(sqlUseNull, c.UseNull)
	c.MissingTuples = resolveBool(sqlMissingTuples, c.MissingTuples)
	if cmd.Flags().Changed("domain-size") {
		c.DomainSize = sqlDomainSize
	}
}

// generate compiles n in the configured mode.
func generate(n plan.Node) (string, bool, error) {
	switch cfg.Codegen.Mode {
	case cli.ModeUniversal:
		res, err := compiler.Universal(n, cfg.Params())
		if err != nil {
			return "", false, codegenError(err)
		}
		return res.SQL, res.TrueOnMissing, nil
	case cli.ModeDirect:
		sql, err := compiler.Direct(n)
		if err != nil {
			return "", false, codegenError(err)
		}
		return sql, false, nil
	default:
		return "", false, cli.ConfigError(fmt.Sprintf("unknown mode %q", cfg.Codegen.Mode), nil)
	}
}
