package sqlgen

import (
	"fmt"
	"strconv"

	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/pkg/query"
)

// Result is the output of universal-mode generation.
type Result struct {
	// SQL computes the probability that the query is false, in pUse.
	SQL string
	// TrueOnMissing reports that an empty result means the query is false
	// with certainty rather than true.
	TrueOnMissing bool
}

// subplan is the universal-mode SQL of one node.
type subplan struct {
	sql           SQLer
	generics      []string
	trueOnMissing bool
}

func sepColumn(repl string) string {
	return "sep_var_" + Ident(repl)
}

func genericColumnFor(symbol string) string {
	return "sep_var_generic_" + Ident(symbol)
}

type universalGen struct {
	alloc  *plan.Allocator
	params Params
}

// Universal generates universal-mode SQL for a plan. The plan is evaluated
// over the dual CNF, so pUse holds the probability of the negated query,
// in log space when UseLog is set.
func Universal(n plan.Node, p Params) (Result, error) {
	g := &universalGen{alloc: plan.NewAllocator(), params: p}
	sp, err := g.node(n)
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: sp.sql.SQL(), TrueOnMissing: sp.trueOnMissing}, nil
}

func (g *universalGen) node(n plan.Node) (subplan, error) {
	switch n := n.(type) {
	case *plan.GroundTuple:
		return g.groundTuple(n)
	case *plan.IndependentUnion:
		return g.union(n)
	case *plan.IndependentJoin:
		return g.combine(n.Terms, nil, n.Separators, joinKind)
	case *plan.IndependentProject:
		return g.project(n)
	case *plan.InclusionExclusion:
		nodes := make([]plan.Node, len(n.Terms))
		coeffs := make([]int, len(n.Terms))
		for i, t := range n.Terms {
			nodes[i] = t.Plan
			coeffs[i] = t.Coeff
		}
		return g.combine(nodes, coeffs, n.Separators, inclusionExclusionKind)
	default:
		return subplan{}, fmt.Errorf("%w: unknown node %T", plan.ErrMalformedPlan, n)
	}
}

func (g *universalGen) groundTuple(n *plan.GroundTuple) (subplan, error) {
	rel := n.Relation
	// The dual of a positive atom is its complement.
	positive := rel.Negated
	sp := subplan{trueOnMissing: !positive}

	table := rel.Name
	var p Expr
	switch {
	case n.AlwaysTrue() && positive:
		p = g.params.one()
	case n.AlwaysTrue():
		p = g.params.zero()
	default:
		var col Expr = Col{Column: "p"}
		if rel.Sampled && g.params.MissingTuples {
			table = rel.Name + "Not"
			col = Col{Column: "pSample"}
		}
		if !positive {
			col = Sub{Left: Int(1), Right: col}
		}
		p = g.params.toLog(col)
	}

	var (
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
				name := genericColumnFor(c.Value)
				if !contains(sp.generics, name) {
					sp.generics = append(sp.generics, name)
					cols = append(cols, SelectAs(column, name))
				}
				continue
			case c.IsEquality():
				where = append(where, Eq{Left: column, Right: Int(c.Int())})
				continue
			case c.IsInequality() && !c.Generic:
				where = append(where, Ne{Left: column, Right: Int(c.Int())})
			}
		}

		if arg >= len(rel.Args) {
			return subplan{}, fmt.Errorf("%w: %s has fewer arguments than free columns", plan.ErrMalformedPlan, rel)
		}
		sv, ok := rel.Args[arg].(query.SeparatorVariable)
		arg++
		if !ok {
			return subplan{}, fmt.Errorf("%w: ground tuple %s has an unbound argument", plan.ErrMalformedPlan, rel)
		}
		if first, dup := seen[sv.Replacement]; dup {
			where = append(where, Eq{Left: column, Right: first})
			continue
		}
		seen[sv.Replacement] = column
		cols = append(cols, SelectAs(column, sepColumn(sv.Replacement)))
	}
	cols = append(cols, SelectAs(p, "pUse"))

	sp.sql = Commented{
		Comments: []string{"ground tuple " + rel.String()},
		Query:    SelectStmt{ColumnExprs: cols, FromExpr: TableRef{Name: table}, Where: And(where...)},
	}
	return sp, nil
}

// union multiplies the child values of each binding with the iunion
// aggregate. A child without a row for a binding that its siblings have is
// filled in from the active domain.
func (g *universalGen) union(n *plan.IndependentUnion) (subplan, error) {
	sp := subplan{trueOnMissing: true}
	var (
		ctes     []CTEDef
		aliases  []string
		children []subplan
	)
	for _, c := range n.Terms {
		child, err := g.node(c)
		if err != nil {
			return subplan{}, err
		}
		alias := "q" + strconv.Itoa(g.alloc.NextSubquery())
		aliases = append(aliases, alias)
		children = append(children, child)
		ctes = append(ctes, CTEDef{Name: alias, Query: child.sql})
		if !child.trueOnMissing {
			sp.trueOnMissing = false
		}
		for _, gen := range child.generics {
			if !contains(sp.generics, gen) {
				sp.generics = append(sp.generics, gen)
			}
		}
	}

	vars := make([]string, 0, len(n.Separators)+len(sp.generics))
	for _, s := range n.Separators {
		vars = append(vars, sepColumn(s))
	}
	vars = append(vars, sp.generics...)

	branches := make([]SQLer, len(aliases))
	falseOnMissing := 0
	for i, alias := range aliases {
		child := children[i]
		if !child.trueOnMissing {
			falseOnMissing++
		}
		has := make(map[string]bool)
		for _, s := range n.Separators {
			if n.Terms[i].UsesSeparator(s) {
				has[sepColumn(s)] = true
			}
		}
		for _, gen := range child.generics {
			has[gen] = true
		}

		var cols []Expr
		from := TableList{TableRef{Name: alias}}
		idx := 0
		for _, v := range vars {
			if has[v] {
				cols = append(cols, Col{Table: alias, Column: v})
				continue
			}
			domain := "A" + strconv.Itoa(idx)
			idx++
			from = append(from, TableRef{Name: ActiveDomain, Alias: domain})
			cols = append(cols, SelectAs(Col{Table: domain, Column: "v0"}, v))
		}
		cols = append(cols,
			Col{Table: alias, Column: "pUse"},
			SelectAs(Bool(child.trueOnMissing), "trueOnMissing"))
		branches[i] = SelectStmt{ColumnExprs: cols, FromExpr: from}
	}

	var (
		cols  []Expr
		group []Expr
	)
	for _, v := range vars {
		cols = append(cols, Col{Column: v})
		group = append(group, Col{Column: v})
	}
	cols = append(cols, SelectAs(
		IUnion(g.params.iunionVariant(), falseOnMissing, Col{Column: "pUse"}, Col{Column: "trueOnMissing"}),
		"pUse"))

	sp.sql = Commented{
		Comments: []string{"independent union"},
		Query: WithCTE{
			CTEs: ctes,
			Query: SelectStmt{
				ColumnExprs: cols,
				FromExpr: Subquery{
					Query: UnionAll{Queries: branches},
					Alias: "q" + strconv.Itoa(g.alloc.NextSubquery()),
				},
				GroupBy: group,
			},
		},
	}
	return sp, nil
}

type combineKind int

const (
	joinKind combineKind = iota
	inclusionExclusionKind
)

// member is one child of a join or inclusion-exclusion node.
type member struct {
	alias string
	plan  subplan
	coeff int
	// vars are the separator and generic columns the child provides.
	vars map[string]bool
}

// combine joins the children of a join or inclusion-exclusion node on
// their shared columns. True-on-missing children are inner joined first;
// the others are outer joined so that a missing row reads as the default.
func (g *universalGen) combine(nodes []plan.Node, coeffs []int, separators []string, kind combineKind) (subplan, error) {
	var (
		sp      subplan
		members []*member
	)
	for i, c := range nodes {
		child, err := g.node(c)
		if err != nil {
			return subplan{}, err
		}
		m := &member{
			alias: "q" + strconv.Itoa(g.alloc.NextSubquery()),
			plan:  child,
			vars:  make(map[string]bool),
		}
		if coeffs != nil {
			m.coeff = coeffs[i]
		}
		if child.trueOnMissing {
			sp.trueOnMissing = true
		}
		for _, s := range separators {
			if c.UsesSeparator(s) {
				m.vars[sepColumn(s)] = true
			}
		}
		for _, gen := range child.generics {
			m.vars[gen] = true
			if !contains(sp.generics, gen) {
				sp.generics = append(sp.generics, gen)
			}
		}
		members = append(members, m)
	}

	var coversSeps, coversAll bool
	for _, m := range members {
		all := true
		for _, s := range separators {
			if !m.vars[sepColumn(s)] {
				all = false
				break
			}
		}
		if !all {
			continue
		}
		coversSeps = true
		if len(missing(m.vars, sp.generics)) == 0 {
			coversAll = true
		}
	}
	if !coversSeps {
		return subplan{}, fmt.Errorf("%w: no subquery containing all separators", plan.ErrMalformedPlan)
	}
	if !coversAll {
		return subplan{}, fmt.Errorf("%w: no subquery containing all separators and generic identifiers", plan.ErrMalformedPlan)
	}

	var ctes []CTEDef
	for _, m := range members {
		gaps := missing(m.vars, sp.generics)
		if len(gaps) == 0 {
			ctes = append(ctes, CTEDef{Name: m.alias, Query: m.plan.sql})
			continue
		}
		base := m.alias + "_missing_generic_vars"
		ctes = append(ctes, CTEDef{Name: base, Query: m.plan.sql})
		cols := []Expr{Raw("*")}
		from := TableList{TableRef{Name: base}}
		for i, gen := range gaps {
			domain := "A_" + strconv.Itoa(i+1)
			cols = append(cols, SelectAs(Col{Table: domain, Column: "v0"}, gen))
			from = append(from, TableRef{Name: ActiveDomain, Alias: domain})
			m.vars[gen] = true
		}
		ctes = append(ctes, CTEDef{Name: m.alias, Query: SelectStmt{ColumnExprs: cols, FromExpr: from}})
	}

	var ordered []*member
	for _, m := range members {
		if m.plan.trueOnMissing {
			ordered = append(ordered, m)
		}
	}
	for _, m := range members {
		if !m.plan.trueOnMissing {
			ordered = append(ordered, m)
		}
	}

	vars := make([]string, 0, len(separators)+len(sp.generics))
	for _, s := range separators {
		vars = append(vars, sepColumn(s))
	}
	vars = append(vars, sp.generics...)

	var joins []JoinClause
	outer := FullOuterJoin
	if ordered[0].plan.trueOnMissing {
		outer = LeftOuterJoin
	}
	for i, m := range ordered {
		if i == 0 {
			continue
		}
		prev := ordered[:i]
		var on []Expr
		for _, v := range vars {
			if !m.vars[v] {
				continue
			}
			if other := bindingFor(prev, v); other != nil {
				on = append(on, Eq{Left: Col{Table: m.alias, Column: v}, Right: other})
			}
		}
		joinType := InnerJoin
		if !m.plan.trueOnMissing {
			joinType = outer
		}
		joins = append(joins, JoinClause{Type: joinType, TableExpr: TableRef{Name: m.alias}, On: And(on...)})
	}

	var cols []Expr
	for _, v := range vars {
		if e := bindingFor(ordered, v); e != nil {
			cols = append(cols, SelectAs(e, v))
		}
	}

	var (
		p       Expr
		comment string
	)
	switch kind {
	case joinKind:
		comment = "independent join"
		factors := make([]Expr, len(members))
		for i, m := range members {
			factors[i] = Coalesce(g.complement(m.alias), Int(1))
		}
		p = g.params.toLog(Sub{Left: Int(1), Right: Product(factors...)})
	default:
		comment = "inclusion/exclusion"
		terms := make([]Expr, 0, len(members))
		for _, m := range members {
			terms = append(terms, Product(Int(-1), Int(m.coeff), Coalesce(g.linear(m.alias), Int(0))))
		}
		p = g.params.toLog(Sum(terms...))
	}
	cols = append(cols, SelectAs(p, "pUse"))

	sp.sql = Commented{
		Comments: []string{comment},
		Query: WithCTE{
			CTEs:  ctes,
			Query: SelectStmt{ColumnExprs: cols, FromExpr: TableRef{Name: ordered[0].alias}, Joins: joins},
		},
	}
	return sp, nil
}

// bindingFor reads column v from the first true-on-missing member that has
// it, or coalesces over the outer joined members that do.
func bindingFor(members []*member, v string) Expr {
	var outer []Expr
	for _, m := range members {
		if !m.vars[v] {
			continue
		}
		if m.plan.trueOnMissing {
			return Col{Table: m.alias, Column: v}
		}
		outer = append(outer, Col{Table: m.alias, Column: v})
	}
	if len(outer) == 0 {
		return nil
	}
	return Coalesce(outer...)
}

// linear converts a child's pUse to a linear probability. The result is
// NULL when the child has no row.
func (g *universalGen) linear(alias string) Expr {
	p := Col{Table: alias, Column: "pUse"}
	switch {
	case g.params.UseLog && g.params.UseNull:
		return Exp(p)
	case g.params.UseLog:
		return When(Ne{Left: p, Right: Lit("-Infinity")}, Exp(p), Int(0))
	default:
		return p
	}
}

// complement is 1 minus the child's linear probability.
func (g *universalGen) complement(alias string) Expr {
	p := Col{Table: alias, Column: "pUse"}
	switch {
	case g.params.UseLog && g.params.UseNull:
		return Sub{Left: Int(1), Right: Exp(p)}
	case g.params.UseLog:
		return When(Ne{Left: p, Right: Lit("-Infinity")}, Sub{Left: Int(1), Right: Exp(p)}, Int(1))
	default:
		return Sub{Left: Int(1), Right: p}
	}
}

// project replaces a universally quantified separator with a product over
// its bindings. With MissingTuples a false-on-missing product over fewer
// rows than the domain size is invalid and yields zero.
func (g *universalGen) project(n *plan.IndependentProject) (subplan, error) {
	child, err := g.node(n.Child)
	if err != nil {
		return subplan{}, err
	}
	sp := subplan{trueOnMissing: child.trueOnMissing}
	sp.generics = append(sp.generics, child.generics...)
	alias := "q" + strconv.Itoa(g.alloc.NextSubquery())

	domainSize := n.DomainSize
	if domainSize == 0 {
		domainSize = g.params.DomainSize
	}
	if n.IsInequality() {
		domainSize--
	}

	var (
		cols  []Expr
		group []Expr
		where Expr
	)
	for _, gen := range child.generics {
		cols = append(cols, Col{Column: gen})
		group = append(group, Col{Column: gen})
	}

	from := TableExpr(Subquery{Query: child.sql, Alias: alias})
	if n.IsGenericInequality() {
		gen := genericColumnFor(n.GenericSymbol())
		projected := Col{Table: alias, Column: sepColumn(n.Replacement)}
		if contains(child.generics, gen) {
			where = Ne{Left: projected, Right: Col{Table: alias, Column: gen}}
		} else {
			domain := Col{Table: ActiveDomain, Column: "v0"}
			from = TableList{from, TableRef{Name: ActiveDomain}}
			where = Ne{Left: domain, Right: projected}
			cols = append(cols, SelectAs(domain, gen))
			group = append(group, domain)
			sp.generics = append(sp.generics, gen)
		}
	}

	for _, s := range n.Separators {
		cols = append(cols, Col{Column: sepColumn(s)})
		group = append(group, Col{Column: sepColumn(s)})
	}

	pUse := Col{Column: "pUse"}
	complete := Eq{Left: CountStar(), Right: Int(domainSize)}
	allPresent := Eq{Left: CountStar(), Right: Count(pUse)}
	var (
		agg    Expr
		having Expr
	)
	switch {
	case g.params.UseLog && child.trueOnMissing && g.params.UseNull:
		agg = When(allPresent, SumOf(pUse), Null{})
		having = Gt{Left: CountStar(), Right: Int(0)}
	case g.params.UseLog && child.trueOnMissing:
		agg = SumOf(pUse)
	case g.params.UseLog && g.params.UseNull && g.params.MissingTuples:
		agg = When(And(allPresent, complete), SumOf(pUse), Null{})
	case g.params.UseLog && g.params.UseNull:
		agg = When(allPresent, SumOf(pUse), Null{})
	case g.params.UseLog && g.params.MissingTuples:
		agg = When(complete, SumOf(pUse), Lit("-Infinity"))
	case g.params.UseLog:
		agg = SumOf(pUse)
	case !child.trueOnMissing && g.params.MissingTuples:
		agg = When(complete, ProdDouble(pUse), Int(0))
	default:
		agg = ProdDouble(pUse)
	}
	cols = append(cols, SelectAs(agg, "pUse"))

	sp.sql = Commented{
		Comments: []string{"independent project " + n.Replacement},
		Query: SelectStmt{
			ColumnExprs: cols,
			FromExpr:    from,
			Where:       where,
			GroupBy:     group,
			Having:      having,
		},
	}
	return sp, nil
}

// missing lists the generics not in vars, in order.
func missing(vars map[string]bool, generics []string) []string {
	var out []string
	for _, gen := range generics {
		if !vars[gen] {
			out = append(out, gen)
		}
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}
