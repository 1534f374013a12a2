package query

import (
	"strings"

	"github.com/pthm/safeplan/pkg/entail"
)

// ConjunctiveQuery is a conjunction of components.
type ConjunctiveQuery struct {
	Components []*Component
}

// NewConjunctiveQuery builds a conjunctive query over the given components.
func NewConjunctiveQuery(comps ...*Component) *ConjunctiveQuery {
	return &ConjunctiveQuery{Components: comps}
}

// Clone deep-copies the query.
func (q *ConjunctiveQuery) Clone() *ConjunctiveQuery {
	return &ConjunctiveQuery{Components: cloneComponents(q.Components)}
}

// CopyWithDeterminism clones q, marking the named relations deterministic.
func (q *ConjunctiveQuery) CopyWithDeterminism(names map[string]bool) *ConjunctiveQuery {
	out := &ConjunctiveQuery{Components: make([]*Component, len(q.Components))}
	for i, c := range q.Components {
		out.Components[i] = c.CopyWithDeterminism(names)
	}
	return out
}

// Relations flattens the components.
func (q *ConjunctiveQuery) Relations() []*Relation {
	return flatten(q.Components)
}

// AllDeterministic reports whether every relation is deterministic.
func (q *ConjunctiveQuery) AllDeterministic() bool {
	for _, r := range q.Relations() {
		if !r.Deterministic {
			return false
		}
	}
	return true
}

// Minimize minimizes every component and drops components implied by
// another one. Of two equivalent components the earlier survives.
func (q *ConjunctiveQuery) Minimize() *ConjunctiveQuery {
	min := minimizeAll(q.Components)
	redundant := make([]bool, len(min))
	for i := range min {
		for j := range min {
			if i == j || redundant[i] {
				continue
			}
			if min[i].ContainedIn(min[j]) {
				redundant[j] = true
			}
		}
	}
	return &ConjunctiveQuery{Components: keep(min, redundant)}
}

// ContainedIn reports whether q implies other: every component of other is
// implied by some component of q.
func (q *ConjunctiveQuery) ContainedIn(other *ConjunctiveQuery) bool {
	for _, theirs := range other.Components {
		if !anyContainedIn(q.Components, theirs) {
			return false
		}
	}
	return true
}

// UsesSeparator reports whether any component uses the replacement.
func (q *ConjunctiveQuery) UsesSeparator(replacement string) bool {
	return anyUses(q.Components, replacement)
}

// UsedSeparators lists separator replacements in order of appearance.
func (q *ConjunctiveQuery) UsedSeparators() []string {
	return usedSeparators(q.Components)
}

// Formula is the conjunction of the component formulas.
func (q *ConjunctiveQuery) Formula() entail.Formula {
	return joinFormulas(q.Components, func(fs []entail.Formula) entail.Formula { return entail.And(fs) })
}

func (q *ConjunctiveQuery) String() string {
	return joinStrings(q.Components, ",")
}

// DisjunctiveQuery is a disjunction of components.
type DisjunctiveQuery struct {
	Components []*Component
}

// NewDisjunctiveQuery builds a disjunctive query over the given components.
func NewDisjunctiveQuery(comps ...*Component) *DisjunctiveQuery {
	return &DisjunctiveQuery{Components: comps}
}

// Clone deep-copies the query.
func (d *DisjunctiveQuery) Clone() *DisjunctiveQuery {
	return &DisjunctiveQuery{Components: cloneComponents(d.Components)}
}

// Relations flattens the components.
func (d *DisjunctiveQuery) Relations() []*Relation {
	return flatten(d.Components)
}

// AllDeterministic reports whether every relation is deterministic.
func (d *DisjunctiveQuery) AllDeterministic() bool {
	for _, r := range d.Relations() {
		if !r.Deterministic {
			return false
		}
	}
	return true
}

// HasVariables reports whether any component has variables.
func (d *DisjunctiveQuery) HasVariables() bool {
	for _, c := range d.Components {
		if c.HasVariables() {
			return true
		}
	}
	return false
}

// ContainedIn reports whether d implies other: every component of d implies
// some component of other.
func (d *DisjunctiveQuery) ContainedIn(other *DisjunctiveQuery) bool {
	for _, mine := range d.Components {
		found := false
		for _, theirs := range other.Components {
			if mine.ContainedIn(theirs) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Minimize minimizes every component and drops components that imply
// another one. Of two equivalent components the later survives.
func (d *DisjunctiveQuery) Minimize() *DisjunctiveQuery {
	min := minimizeAll(d.Components)
	redundant := make([]bool, len(min))
	for i := range min {
		for j := range min {
			if i == j || redundant[j] {
				continue
			}
			if min[i].ContainedIn(min[j]) {
				redundant[i] = true
			}
		}
	}
	return &DisjunctiveQuery{Components: keep(min, redundant)}
}

// UsesSeparator reports whether any component uses the replacement.
func (d *DisjunctiveQuery) UsesSeparator(replacement string) bool {
	return anyUses(d.Components, replacement)
}

// UsedSeparators lists separator replacements in order of appearance.
func (d *DisjunctiveQuery) UsedSeparators() []string {
	return usedSeparators(d.Components)
}

// ComponentsWithVariables returns the components that still have variables,
// in order. Separators are chosen and applied per entry of this list.
func (d *DisjunctiveQuery) ComponentsWithVariables() []*Component {
	var out []*Component
	for _, c := range d.Components {
		if c.HasVariables() {
			out = append(out, c)
		}
	}
	return out
}

// ApplySeparator replaces sep[i] in the i-th component with variables.
func (d *DisjunctiveQuery) ApplySeparator(sep []Variable, replacement string) {
	for i, c := range d.ComponentsWithVariables() {
		c.ApplySeparator(sep[i], replacement)
	}
}

// Separator finds one variable per component with variables such that,
// taken together, they occupy a common position in every probabilistic
// relation symbol. Every probabilistic relation of a component must contain
// its variable; deterministic relations that do not are ignored. Candidate
// tuples are tried in order of first appearance and the first valid one is
// returned.
func (d *DisjunctiveQuery) Separator() ([]Variable, bool) {
	comps := d.ComponentsWithVariables()
	if len(comps) == 0 {
		return nil, false
	}
	vps := make([]VarPositions, len(comps))
	for i, c := range comps {
		vps[i] = c.VarPositions()
	}

	choice := make([]int, len(comps))
	for {
		cand := make([]Variable, len(comps))
		for i := range comps {
			cand[i] = vps[i].Vars[choice[i]]
		}
		if validSeparator(comps, vps, cand) {
			return cand, true
		}
		i := len(choice) - 1
		for ; i >= 0; i-- {
			choice[i]++
			if choice[i] < len(vps[i].Vars) {
				break
			}
			choice[i] = 0
		}
		if i < 0 {
			return nil, false
		}
	}
}

func validSeparator(comps []*Component, vps []VarPositions, cand []Variable) bool {
	// candidate column positions per relation name
	potential := map[string][]int{}
	for ind, v := range cand {
		withVar := vps[ind].ByVar[v.Name]
		comp := comps[ind]
		for i, r := range comp.Relations {
			if _, ok := withVar[i]; ok {
				continue
			}
			if !r.Deterministic {
				return false
			}
			delete(potential, r.Name)
		}
		for i, r := range comp.Relations {
			pos, ok := withVar[i]
			if !ok {
				continue
			}
			prev, seen := potential[r.Name]
			if !seen {
				potential[r.Name] = pos
				continue
			}
			inter := intersect(prev, pos)
			if len(inter) == 0 {
				if !r.Deterministic {
					return false
				}
				delete(potential, r.Name)
				continue
			}
			potential[r.Name] = inter
		}
	}
	return true
}

// SymbolComponents groups the components of d that share a probabilistic
// relation symbol. Components made only of deterministic relations are
// groups of their own.
func (d *DisjunctiveQuery) SymbolComponents() [][]*Component {
	g := newGroupBy()
	var singletons [][]int
	for i, c := range d.Components {
		if c.AllDeterministic() {
			singletons = append(singletons, []int{i})
			continue
		}
		for _, r := range c.Relations {
			if !r.Deterministic {
				g.add(r.AdjacencyName(), i)
			}
		}
	}
	parts := connected(len(d.Components), append(g.groups(), singletons...))
	out := make([][]*Component, len(parts))
	for k, part := range parts {
		for _, i := range part {
			out[k] = append(out[k], d.Components[i])
		}
	}
	return out
}

// Formula is the disjunction of the component formulas.
func (d *DisjunctiveQuery) Formula() entail.Formula {
	return joinFormulas(d.Components, func(fs []entail.Formula) entail.Formula { return entail.Or(fs) })
}

func (d *DisjunctiveQuery) String() string {
	return joinStrings(d.Components, " v ")
}

func cloneComponents(cs []*Component) []*Component {
	out := make([]*Component, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}

func flatten(cs []*Component) []*Relation {
	var out []*Relation
	for _, c := range cs {
		out = append(out, c.Relations...)
	}
	return out
}

func minimizeAll(cs []*Component) []*Component {
	out := make([]*Component, len(cs))
	for i, c := range cs {
		out[i] = c.Minimize()
	}
	return out
}

func keep[T any](xs []T, drop []bool) []T {
	var out []T
	for i, x := range xs {
		if !drop[i] {
			out = append(out, x)
		}
	}
	return out
}

func anyContainedIn(cs []*Component, other *Component) bool {
	for _, c := range cs {
		if c.ContainedIn(other) {
			return true
		}
	}
	return false
}

func anyUses(cs []*Component, replacement string) bool {
	for _, c := range cs {
		if c.UsesSeparator(replacement) {
			return true
		}
	}
	return false
}

func usedSeparators(cs []*Component) []string {
	var out []string
	for _, c := range cs {
		for _, s := range c.UsedSeparators() {
			out = appendUnique(out, s)
		}
	}
	return out
}

func joinFormulas(cs []*Component, join func([]entail.Formula) entail.Formula) entail.Formula {
	if len(cs) == 1 {
		return cs[0].Formula()
	}
	fs := make([]entail.Formula, len(cs))
	for i, c := range cs {
		fs[i] = c.Formula()
	}
	return join(fs)
}

func joinStrings[T interface{ String() string }](xs []T, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return strings.Join(parts, sep)
}

func intersect(a, b []int) []int {
	var out []int
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}
