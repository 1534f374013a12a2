package sqlgen

import (
	"strconv"

	"github.com/pthm/safeplan/pkg/query"
)

// Lineage generates the query enumerating, per conjunct, the tuples whose
// conjunction satisfies it. Each row lists (relation, id, p) triples, with
// the id negated for negated atoms and rows padded with ('', 0, 0) to the
// widest conjunct.
func Lineage(q *query.DNF) string {
	width := 0
	for _, c := range q.Conjuncts {
		if n := len(c.Relations()); n > width {
			width = n
		}
	}

	blocks := make([]QueryBlock, len(q.Conjuncts))
	for i, c := range q.Conjuncts {
		blocks[i] = QueryBlock{Query: lineageConjunct(c, width)}
	}
	return RenderUnionBlocks(blocks)
}

func lineageConjunct(c *query.ConjunctiveQuery, width int) SQLer {
	rels := c.Relations()
	aliases := make([]string, len(rels))
	used := make(map[string]int)

	var (
		cols  []Expr
		from  TableList
		where []Expr
	)
	for i, r := range rels {
		used[r.Name]++
		aliases[i] = r.Name + strconv.Itoa(used[r.Name])
		from = append(from, TableRef{Name: r.Name, Alias: aliases[i]})

		var id Expr = Col{Table: aliases[i], Column: "id"}
		if r.Negated {
			id = Raw("-" + id.SQL())
		}
		cols = append(cols, Lit(r.Name), id, Col{Table: aliases[i], Column: "p"})

		for col, k := range r.Constraints {
			if k.Generic {
				continue
			}
			column := Col{Table: aliases[i], Column: "v" + strconv.Itoa(col)}
			switch {
			case k.IsEquality():
				where = append(where, Eq{Left: column, Right: Int(k.Int())})
			case k.IsInequality():
				where = append(where, Ne{Left: column, Right: Int(k.Int())})
			}
		}
	}
	for i := len(rels); i < width; i++ {
		cols = append(cols, Lit(""), Int(0), Int(0))
	}

	// Consecutive occurrences of a variable, and of a generic constant,
	// must agree.
	last := make(map[string]Col)
	link := func(key string, column Col) {
		if prev, ok := last[key]; ok {
			where = append(where, Eq{Left: prev, Right: column})
		}
		last[key] = column
	}
	for i, r := range rels {
		for pos, a := range r.Args {
			v, ok := a.(query.Variable)
			if !ok {
				continue
			}
			link("var:"+v.Name, Col{Table: aliases[i], Column: "v"+strconv.Itoa(r.TableColumn(pos))})
		}
		for col, k := range r.Constraints {
			if k.Generic && k.IsEquality() {
				link("generic:"+k.Value, Col{Table: aliases[i], Column: "v"+strconv.Itoa(col)})
			}
		}
	}

	return SelectStmt{ColumnExprs: cols, FromExpr: from, Where: And(where...)}
}
