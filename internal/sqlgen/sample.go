package sqlgen

import (
	"strconv"

	"github.com/pthm/safeplan/pkg/query"
)

// SampleQuery prefixes a plan query with one CTE per sampled relation that
// shadows the base table with a random possible world: each tuple is kept
// with probability 1 (present) or 0 (absent). Relations are deduplicated
// by name.
func SampleQuery(planSQL string, rels []*query.Relation) string {
	var ctes []CTEDef
	seen := make(map[string]bool)
	for _, r := range rels {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true

		var cols []Expr
		for i := 0; i < r.Arity(); i++ {
			cols = append(cols, Col{Column: "v" + strconv.Itoa(i)})
		}
		draw := When(Lt{Left: Random(), Right: Col{Column: "p"}}, Int(1), Int(0))
		cols = append(cols, SelectAs(draw, "p"))
		ctes = append(ctes, CTEDef{
			Name:  r.Name,
			Query: SelectStmt{ColumnExprs: cols, FromExpr: TableRef{Name: r.Name}},
		})
	}
	return WithCTE{CTEs: ctes, Query: Raw(planSQL)}.SQL()
}
