package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/safeplan/pkg/compiler"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage <query>",
	Short: "Generate the lineage query",
	Long: `Generate the query listing, per conjunct, the (relation, id, p) triples
of every tuple combination that satisfies it. Safety is not required.`,
	Example: `  safeplan lineage "R(x),S(x,y),T(y)"`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := parseQuery(args[0])
		if err != nil {
			return err
		}
		fmt.Println(compiler.Lineage(q))
		return nil
	},
}
