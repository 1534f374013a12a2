package query

import (
	"strings"

	"github.com/pthm/safeplan/pkg/entail"
)

// Component is a conjunction of relation occurrences.
type Component struct {
	Relations []*Relation
}

// NewComponent builds a component over the given relations.
func NewComponent(rels ...*Relation) *Component {
	return &Component{Relations: rels}
}

// Clone deep-copies the component.
func (c *Component) Clone() *Component {
	out := &Component{Relations: make([]*Relation, len(c.Relations))}
	for i, r := range c.Relations {
		out.Relations[i] = r.Clone()
	}
	return out
}

// CopyWithDeterminism clones the component, marking relations whose name is
// in names as deterministic and sampled.
func (c *Component) CopyWithDeterminism(names map[string]bool) *Component {
	out := c.Clone()
	for _, r := range out.Relations {
		if names[r.Name] {
			r.Deterministic = true
			r.Sampled = true
		}
	}
	return out
}

// Variables returns the distinct variables in order of first appearance.
func (c *Component) Variables() []Variable {
	var out []Variable
	seen := map[string]bool{}
	for _, r := range c.Relations {
		for _, v := range r.Variables() {
			if !seen[v.Name] {
				seen[v.Name] = true
				out = append(out, v)
			}
		}
	}
	return out
}

// HasVariables reports whether any relation has a variable argument.
func (c *Component) HasVariables() bool {
	for _, r := range c.Relations {
		if r.HasVariables() {
			return true
		}
	}
	return false
}

// HasNegated reports whether any relation is negated.
func (c *Component) HasNegated() bool {
	for _, r := range c.Relations {
		if r.Negated {
			return true
		}
	}
	return false
}

// AllDeterministic reports whether every relation is deterministic.
func (c *Component) AllDeterministic() bool {
	for _, r := range c.Relations {
		if !r.Deterministic {
			return false
		}
	}
	return true
}

// VarPositions records, per variable, the argument positions it takes in each
// relation of a component. Relations are addressed by index.
type VarPositions struct {
	Vars  []Variable
	ByVar map[string]map[int][]int
}

// VarPositions computes the variable-to-position map.
func (c *Component) VarPositions() VarPositions {
	vp := VarPositions{ByVar: map[string]map[int][]int{}}
	for i, r := range c.Relations {
		for _, v := range r.Variables() {
			if _, ok := vp.ByVar[v.Name]; !ok {
				vp.Vars = append(vp.Vars, v)
				vp.ByVar[v.Name] = map[int][]int{}
			}
		}
		for name, pos := range r.VariablePositions() {
			vp.ByVar[name][i] = pos
		}
	}
	return vp
}

// ContainedIn reports whether c implies other: some mapping h from the
// variables of other to the variables of c sends every relation of other to
// a relation of c. All |vars(c)|^|vars(other)| mappings are tried.
func (c *Component) ContainedIn(other *Component) bool {
	mine := c.Variables()
	theirs := other.Variables()
	if len(theirs) > 0 && len(mine) == 0 {
		return false
	}

	keys := make(map[string]bool, len(c.Relations))
	for _, r := range c.Relations {
		keys[r.homKey()] = true
	}

	choice := make([]int, len(theirs))
	h := make(map[string]Variable, len(theirs))
	for {
		for i, v := range theirs {
			h[v.Name] = mine[choice[i]]
		}
		if other.mapsInto(h, keys) {
			return true
		}
		// advance the odometer
		i := len(choice) - 1
		for ; i >= 0; i-- {
			choice[i]++
			if choice[i] < len(mine) {
				break
			}
			choice[i] = 0
		}
		if i < 0 {
			return false
		}
	}
}

func (c *Component) mapsInto(h map[string]Variable, keys map[string]bool) bool {
	for _, r := range c.Relations {
		m := r.Clone()
		m.applyH(h)
		if !keys[m.homKey()] {
			return false
		}
	}
	return true
}

// Equivalent reports mutual containment.
func (c *Component) Equivalent(other *Component) bool {
	return c.ContainedIn(other) && other.ContainedIn(c)
}

// Minimize returns the smallest proper sub-conjunction equivalent to c, or a
// clone of c if there is none. Subsets are tried by increasing size.
func (c *Component) Minimize() *Component {
	var found *Component
	Subsets(len(c.Relations), 1, func(idx []int) bool {
		if len(idx) == len(c.Relations) {
			return false
		}
		sub := &Component{Relations: make([]*Relation, len(idx))}
		for i, k := range idx {
			sub.Relations[i] = c.Relations[k]
		}
		if sub.Equivalent(c) {
			found = sub.Clone()
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	return c.Clone()
}

// Decompose splits c into its variable-connected components. Relations
// without variables are components of their own. A connected c is returned
// as is.
func (c *Component) Decompose() []*Component {
	g := newGroupBy()
	var singletons [][]int
	for i, r := range c.Relations {
		if !r.HasVariables() {
			singletons = append(singletons, []int{i})
			continue
		}
		for _, v := range r.Variables() {
			g.add(v.Name, i)
		}
	}
	parts := connected(len(c.Relations), append(g.groups(), singletons...))
	if len(parts) == 1 {
		return []*Component{c}
	}
	out := make([]*Component, len(parts))
	for k, part := range parts {
		out[k] = &Component{}
		for _, i := range part {
			out[k].Relations = append(out[k].Relations, c.Relations[i])
		}
	}
	return out
}

// UsesSeparator reports whether any relation uses the replacement.
func (c *Component) UsesSeparator(replacement string) bool {
	for _, r := range c.Relations {
		if r.UsesSeparator(replacement) {
			return true
		}
	}
	return false
}

// UsedSeparators lists the separator replacements in order of appearance.
func (c *Component) UsedSeparators() []string {
	var out []string
	for _, r := range c.Relations {
		for _, s := range r.UsedSeparators() {
			out = appendUnique(out, s)
		}
	}
	return out
}

// ApplySeparator replaces sep in every relation.
func (c *Component) ApplySeparator(sep Variable, replacement string) {
	for _, r := range c.Relations {
		r.ApplySeparator(sep, replacement)
	}
}

// Formula is the existential closure of the conjunction of relations.
func (c *Component) Formula() entail.Formula {
	atoms := make(entail.And, len(c.Relations))
	for i, r := range c.Relations {
		atoms[i] = r.Atom()
	}
	var body entail.Formula = atoms
	if len(atoms) == 1 {
		body = atoms[0]
	}
	vars := c.Variables()
	if len(vars) == 0 {
		return body
	}
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return entail.Exists{Vars: names, Body: body}
}

func (c *Component) String() string {
	parts := make([]string, len(c.Relations))
	for i, r := range c.Relations {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
