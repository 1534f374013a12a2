package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/safeplan/pkg/compiler"
	"github.com/pthm/safeplan/pkg/plan"
)

var residualCmd = &cobra.Command{
	Use:   "residual <query>",
	Short: "Find a safe residual query",
	Long: `Search for the smallest set of relations whose determinization makes
the query safe. Prints the determinized relations, the residual query and
plan, its direct-mode SQL and the query that evaluates it over one sampled
world.`,
	Example: `  safeplan residual "R(x),S(x,y),T(y)"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := parseQuery(args[0])
		if err != nil {
			return err
		}
		b, err := newBuilder()
		if err != nil {
			return err
		}
		r, err := b.FindSafeResidual(cmd.Context(), q)
		if err != nil {
			return planError(err)
		}
		sql, err := compiler.Direct(r.Plan)
		if err != nil {
			return codegenError(err)
		}

		fmt.Printf("Sampled relations: %s\n", strings.Join(r.Marked, ", "))
		fmt.Printf("Residual query:    %s\n\n", r.Query)
		fmt.Println("-- Plan")
		fmt.Print(plan.Format(r.Plan))
		fmt.Println("\n-- SQL")
		fmt.Println(sql)
		fmt.Println("\n-- Sample preparation")
		fmt.Println(compiler.SampleQuery(sql, r.Relations))
		return nil
	},
}
