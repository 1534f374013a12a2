package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pthm/safeplan/internal/cli"
	"github.com/pthm/safeplan/pkg/plan"
)

var planFormat string

var planCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Print the safe plan of a query",
	Long: `Build the safe plan of a query and print it as a tree.

Exits with code 5 when the query is unsafe.`,
	Example: `  # Plan a hierarchical join
  safeplan plan "R(x),S(x,y)"

  # Plan as YAML
  safeplan plan "R(x1),S(x1,y1) v S(x2,y2),T(y2) v R(x3),T(y3)" --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, n, err := buildPlan(cmd.Context(), args[0])
		if err != nil {
			if cli.ExitCode(err) == cli.ExitUnsafe && !quiet {
				fmt.Println("unsafe")
			}
			return err
		}

		switch planFormat {
		case "yaml":
			out, err := yaml.Marshal(plan.Describe(n))
			if err != nil {
				return cli.GeneralError("rendering plan", err)
			}
			fmt.Print(string(out))
		case "text":
			fmt.Print(plan.Format(n))
		default:
			return cli.ConfigError(fmt.Sprintf("unknown format %q", planFormat), nil)
		}
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planFormat, "format", "text", "output format (text, yaml)")
}
