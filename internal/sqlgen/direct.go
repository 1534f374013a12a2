package sqlgen

import (
	"fmt"
	"strconv"

	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/pkg/query"
)

// ActiveDomain is the relation enumerating every domain constant in v0.
const ActiveDomain = "A"

// genericColumn holds the generic constant binding in direct mode.
const genericColumn = "cTemplate"

// fragment is the SQL of one sub-plan together with the separator columns it
// produces.
type fragment struct {
	sql SQLer
	// seps lists the separator replacements with a column, in first-use order.
	seps []string
	// generic is set when the fragment carries a cTemplate column.
	generic bool
}

func (f fragment) hasSep(repl string) bool {
	for _, s := range f.seps {
		if s == repl {
			return true
		}
	}
	return false
}

// directColumn names the column holding a separator binding.
func directColumn(repl string) string {
	return "c" + Ident(repl)
}

type directGen struct {
	alloc *plan.Allocator
}

// Direct generates the direct-mode SQL for a plan. The statement yields the
// probability of the query in column pUse, plus cTemplate when the query
// has a generic constant.
func Direct(n plan.Node) (string, error) {
	g := &directGen{alloc: plan.NewAllocator()}
	f, err := g.node(n)
	if err != nil {
		return "", err
	}
	if len(f.seps) > 0 {
		return "", fmt.Errorf("%w: separators %v escape the plan root", plan.ErrMalformedPlan, f.seps)
	}
	return f.sql.SQL(), nil
}

func (g *directGen) node(n plan.Node) (fragment, error) {
	switch n := n.(type) {
	case *plan.GroundTuple:
		return g.groundTuple(n)
	case *plan.IndependentUnion:
		return g.union(n)
	case *plan.IndependentJoin:
		return g.join(n)
	case *plan.IndependentProject:
		return g.project(n)
	case *plan.InclusionExclusion:
		return g.inclusionExclusion(n)
	default:
		return fragment{}, fmt.Errorf("%w: unknown node %T", plan.ErrMalformedPlan, n)
	}
}

func (g *directGen) groundTuple(n *plan.GroundTuple) (fragment, error) {
	rel := n.Relation
	table := rel.Name
	domain := Col{Table: ActiveDomain, Column: "v0"}

	var p Expr = Col{Table: table, Column: "p"}
	if rel.Negated {
		p = Paren{Expr: Sub{Left: Int(1), Right: p}}
	}
	if n.AlwaysTrue() {
		p = Int(1)
		if len(rel.UsedSeparators()) == 0 {
			return fragment{sql: SelectStmt{ColumnExprs: []Expr{SelectAs(p, "pUse")}}}, nil
		}
	}

	var (
		f     fragment
		cols  []Expr
		where []Expr
	)
	seen := make(map[string]Col)
	arg := 0
	for col := 0; col < rel.Arity(); col++ {
		column := Col{Table: table, Column: "v" + strconv.Itoa(col)}
		if len(rel.Constraints) > 0 {
			c := rel.Constraints[col]
			switch {
			case c.IsEquality() && c.Generic:
				f.generic = true
				where = append(where, Eq{Left: column, Right: domain})
			case c.IsEquality():
				where = append(where, Eq{Left: column, Right: Int(c.Int())})
			case c.IsInequality() && c.Generic:
				f.generic = true
				where = append(where, Ne{Left: column, Right: domain})
			case c.IsInequality():
				where = append(where, Ne{Left: column, Right: Int(c.Int())})
			}
			if c.IsEquality() {
				continue
			}
		}

		if arg >= len(rel.Args) {
			return fragment{}, fmt.Errorf("%w: %s has fewer arguments than free columns", plan.ErrMalformedPlan, rel)
		}
		sv, ok := rel.Args[arg].(query.SeparatorVariable)
		arg++
		if !ok {
			return fragment{}, fmt.Errorf("%w: ground tuple %s has an unbound argument", plan.ErrMalformedPlan, rel)
		}
		if first, dup := seen[sv.Replacement]; dup {
			where = append(where, Eq{Left: column, Right: first})
			continue
		}
		seen[sv.Replacement] = column
		f.seps = append(f.seps, sv.Replacement)
		cols = append(cols, SelectAs(column, directColumn(sv.Replacement)))
	}

	from := TableList{TableRef{Name: table}}
	if f.generic {
		cols = append(cols, SelectAs(domain, genericColumn))
		from = append(from, TableRef{Name: ActiveDomain})
	}
	cols = append(cols, SelectAs(p, "pUse"))

	f.sql = Commented{
		Comments: []string{"ground tuple " + rel.String()},
		Query:    SelectStmt{ColumnExprs: cols, FromExpr: from, Where: And(where...)},
	}
	return f, nil
}

// combined is the FROM clause of a node that joins its children on shared
// separator and generic columns.
type combined struct {
	aliases []string
	from    TableExpr
	joins   []JoinClause
	// owners maps each separator to the aliases producing it.
	owners  map[string][]string
	order   []string
	generic []string
}

func (g *directGen) combine(children []fragment, joinType string) combined {
	c := combined{owners: make(map[string][]string)}
	for i, child := range children {
		alias := "q" + strconv.Itoa(g.alloc.NextSubquery())
		c.aliases = append(c.aliases, alias)
		table := Subquery{Query: child.sql, Alias: alias}

		var on []Expr
		for _, s := range child.seps {
			if prev := c.owners[s]; len(prev) > 0 {
				on = append(on, Eq{Left: Col{Table: alias, Column: directColumn(s)}, Right: c.pick(prev, directColumn(s), joinType)})
			} else {
				c.order = append(c.order, s)
			}
			c.owners[s] = append(c.owners[s], alias)
		}
		if child.generic {
			if len(c.generic) > 0 {
				on = append(on, Eq{Left: Col{Table: alias, Column: genericColumn}, Right: c.pick(c.generic, genericColumn, joinType)})
			}
			c.generic = append(c.generic, alias)
		}

		if i == 0 {
			c.from = table
			continue
		}
		c.joins = append(c.joins, JoinClause{Type: joinType, TableExpr: table, On: And(on...)})
	}
	return c
}

// pick reads a column from the aliases producing it. Inner joins guarantee
// the first is set; outer joins coalesce.
func (c combined) pick(aliases []string, column, joinType string) Expr {
	if joinType == InnerJoin {
		return Col{Table: aliases[0], Column: column}
	}
	cols := make([]Expr, len(aliases))
	for i, a := range aliases {
		cols[i] = Col{Table: a, Column: column}
	}
	return Coalesce(cols...)
}

// selectKeys selects every separator and generic column once.
func (c combined) selectKeys(joinType string) ([]Expr, fragment) {
	var (
		cols []Expr
		f    fragment
	)
	for _, s := range c.order {
		cols = append(cols, SelectAs(c.pick(c.owners[s], directColumn(s), joinType), directColumn(s)))
		f.seps = append(f.seps, s)
	}
	if len(c.generic) > 0 {
		cols = append(cols, SelectAs(c.pick(c.generic, genericColumn, joinType), genericColumn))
		f.generic = true
	}
	return cols, f
}

func (g *directGen) children(nodes []plan.Node) ([]fragment, error) {
	out := make([]fragment, len(nodes))
	for i, n := range nodes {
		f, err := g.node(n)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// union computes 1 - prod(1 - p). A child without a row for a binding
// contributes probability zero.
func (g *directGen) union(n *plan.IndependentUnion) (fragment, error) {
	children, err := g.children(n.Terms)
	if err != nil {
		return fragment{}, err
	}
	c := g.combine(children, FullOuterJoin)
	cols, f := c.selectKeys(FullOuterJoin)

	factors := make([]Expr, len(c.aliases))
	for i, a := range c.aliases {
		factors[i] = Coalesce(Sub{Left: Int(1), Right: Col{Table: a, Column: "pUse"}}, Int(1))
	}
	cols = append(cols, SelectAs(Sub{Left: Int(1), Right: Product(factors...)}, "pUse"))

	f.sql = Commented{
		Comments: []string{"independent union"},
		Query:    SelectStmt{ColumnExprs: cols, FromExpr: c.from, Joins: c.joins},
	}
	return f, nil
}

// join computes prod(p) over the bindings present in every child.
func (g *directGen) join(n *plan.IndependentJoin) (fragment, error) {
	children, err := g.children(n.Terms)
	if err != nil {
		return fragment{}, err
	}
	c := g.combine(children, InnerJoin)
	cols, f := c.selectKeys(InnerJoin)

	factors := make([]Expr, len(c.aliases))
	for i, a := range c.aliases {
		factors[i] = Col{Table: a, Column: "pUse"}
	}
	cols = append(cols, SelectAs(Product(factors...), "pUse"))

	f.sql = Commented{
		Comments: []string{"independent join"},
		Query:    SelectStmt{ColumnExprs: cols, FromExpr: c.from, Joins: c.joins},
	}
	return f, nil
}

// project aggregates the child over the projected separator with ior,
// grouping on the separators still in scope.
func (g *directGen) project(n *plan.IndependentProject) (fragment, error) {
	child, err := g.node(n.Child)
	if err != nil {
		return fragment{}, err
	}
	if !child.hasSep(n.Replacement) {
		return fragment{}, fmt.Errorf("%w: projected separator %s has no column", plan.ErrMalformedPlan, n.Replacement)
	}
	alias := "q" + strconv.Itoa(g.alloc.NextSubquery())

	var (
		f     fragment
		cols  []Expr
		group []Expr
	)
	for _, s := range child.seps {
		if s == n.Replacement {
			continue
		}
		f.seps = append(f.seps, s)
		cols = append(cols, Col{Column: directColumn(s)})
		group = append(group, Col{Column: directColumn(s)})
	}
	if child.generic {
		f.generic = true
		cols = append(cols, Col{Column: genericColumn})
		group = append(group, Col{Column: genericColumn})
	}
	cols = append(cols, SelectAs(Ior(Coalesce(Col{Column: "pUse"}, Int(0))), "pUse"))

	f.sql = Commented{
		Comments: []string{"independent project " + n.Replacement},
		Query: SelectStmt{
			ColumnExprs: cols,
			FromExpr:    Subquery{Query: child.sql, Alias: alias},
			GroupBy:     group,
		},
	}
	return f, nil
}

// inclusionExclusion computes sum(-coeff * p). Terms are full outer joined
// so that a term without a row for a binding contributes zero.
func (g *directGen) inclusionExclusion(n *plan.InclusionExclusion) (fragment, error) {
	nodes := make([]plan.Node, len(n.Terms))
	coeffs := make([]int, len(n.Terms))
	for i, t := range n.Terms {
		nodes[i] = t.Plan
		coeffs[i] = t.Coeff
	}

	children, err := g.children(nodes)
	if err != nil {
		return fragment{}, err
	}
	c := g.combine(children, FullOuterJoin)
	cols, f := c.selectKeys(FullOuterJoin)

	terms := make([]Expr, 0, len(c.aliases))
	for i, a := range c.aliases {
		terms = append(terms, Product(Int(-1), Int(coeffs[i]), Coalesce(Col{Table: a, Column: "pUse"}, Int(0))))
	}
	cols = append(cols, SelectAs(Sum(terms...), "pUse"))

	f.sql = Commented{
		Comments: []string{"inclusion/exclusion"},
		Query:    SelectStmt{ColumnExprs: cols, FromExpr: c.from, Joins: c.joins},
	}
	return f, nil
}
