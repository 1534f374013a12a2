package query

import (
	"strings"

	"github.com/pthm/safeplan/pkg/entail"
)

// Term is an argument of a relation occurrence: Variable, Constant or
// SeparatorVariable.
type Term interface {
	term()
}

// Variable is a logical variable. Variables are equal when their names are.
type Variable struct {
	Name string
	// Inequality is set when the variable fills a column constrained by an
	// inequality.
	Inequality *Constraint
	// DomainSize overrides the configured domain size for the universal
	// completeness check. Zero means unset.
	DomainSize int
}

// Constant is a fixed argument value.
type Constant struct {
	Value string
}

// SeparatorVariable marks a position whose variable was chosen as a
// separator. Replacement correlates the columns produced for it across
// sibling sub-plans.
type SeparatorVariable struct {
	Separator   Variable
	Replacement string
}

func (Variable) term()          {}
func (Constant) term()          {}
func (SeparatorVariable) term() {}

// IsInequality reports whether the variable carries an inequality constraint.
func (v Variable) IsInequality() bool { return v.Inequality != nil }

// IsGenericInequality reports whether the variable is constrained to differ
// from a generic constant.
func (v Variable) IsGenericInequality() bool {
	return v.Inequality != nil && v.Inequality.Generic
}

// Relation is one occurrence of a predicate.
type Relation struct {
	Name string
	Args []Term
	// Constraints has one entry per physical column, or is empty when every
	// column holds an argument.
	Constraints   []Constraint
	Deterministic bool
	Sampled       bool
	Negated       bool
}

// NewRelation builds an unconstrained relation over variables.
func NewRelation(name string, vars ...string) *Relation {
	r := &Relation{Name: name, Args: make([]Term, len(vars))}
	for i, v := range vars {
		r.Args[i] = Variable{Name: v}
	}
	return r
}

// Clone returns an independent copy.
func (r *Relation) Clone() *Relation {
	c := *r
	c.Args = append([]Term(nil), r.Args...)
	c.Constraints = append([]Constraint(nil), r.Constraints...)
	return &c
}

// Variables returns the distinct variables in argument order.
func (r *Relation) Variables() []Variable {
	var out []Variable
	seen := map[string]bool{}
	for _, a := range r.Args {
		if v, ok := a.(Variable); ok && !seen[v.Name] {
			seen[v.Name] = true
			out = append(out, v)
		}
	}
	return out
}

// HasVariables reports whether any argument is a Variable.
func (r *Relation) HasVariables() bool {
	for _, a := range r.Args {
		if _, ok := a.(Variable); ok {
			return true
		}
	}
	return false
}

// VariablePositions maps each variable name to its argument positions.
func (r *Relation) VariablePositions() map[string][]int {
	out := map[string][]int{}
	for i, a := range r.Args {
		if v, ok := a.(Variable); ok {
			out[v.Name] = append(out[v.Name], i)
		}
	}
	return out
}

// TableColumn maps an argument position to the physical column it reads.
// Equality-constrained columns hold no argument.
func (r *Relation) TableColumn(argPos int) int {
	if len(r.Constraints) == 0 {
		return argPos
	}
	n := 0
	for col, c := range r.Constraints {
		if !c.BindsVariable() {
			continue
		}
		if n == argPos {
			return col
		}
		n++
	}
	return argPos
}

// Arity is the number of physical columns.
func (r *Relation) Arity() int {
	if len(r.Constraints) > 0 {
		return len(r.Constraints)
	}
	return len(r.Args)
}

// ApplySeparator replaces every occurrence of sep by a SeparatorVariable.
func (r *Relation) ApplySeparator(sep Variable, replacement string) {
	for i, a := range r.Args {
		if v, ok := a.(Variable); ok && v.Name == sep.Name {
			r.Args[i] = SeparatorVariable{Separator: sep, Replacement: replacement}
		}
	}
}

// UsesSeparator reports whether the replacement appears in the arguments.
func (r *Relation) UsesSeparator(replacement string) bool {
	for _, a := range r.Args {
		if s, ok := a.(SeparatorVariable); ok && s.Replacement == replacement {
			return true
		}
	}
	return false
}

// UsedSeparators lists separator replacements in argument order.
func (r *Relation) UsedSeparators() []string {
	var out []string
	for _, a := range r.Args {
		if s, ok := a.(SeparatorVariable); ok {
			out = appendUnique(out, s.Replacement)
		}
	}
	return out
}

func (r *Relation) applyH(h map[string]Variable) {
	for i, a := range r.Args {
		if v, ok := a.(Variable); ok {
			if to, ok := h[v.Name]; ok {
				r.Args[i] = to
			}
		}
	}
}

// ConstraintString renders the constraint vector, e.g. "[1,*]". It is empty
// for unconstrained relations.
func (r *Relation) ConstraintString() string {
	if len(r.Constraints) == 0 {
		return ""
	}
	parts := make([]string, len(r.Constraints))
	for i, c := range r.Constraints {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// AdjacencyName is the key used for symbol connectivity: the name plus the
// constraint vector, ignoring negation.
func (r *Relation) AdjacencyName() string {
	return r.Name + r.ConstraintString()
}

// Signature is AdjacencyName with a leading "~" for negated occurrences.
func (r *Relation) Signature() string {
	if r.Negated {
		return "~" + r.AdjacencyName()
	}
	return r.AdjacencyName()
}

// homKey identifies the occurrence for homomorphism checks.
func (r *Relation) homKey() string {
	var b strings.Builder
	b.WriteString(r.Signature())
	b.WriteString(":")
	for i, a := range r.Args {
		if i > 0 {
			b.WriteString(",")
		}
		switch a := a.(type) {
		case Variable:
			b.WriteString(a.Name)
		case Constant:
			b.WriteString("_c" + a.Value)
		case SeparatorVariable:
			b.WriteString("_s" + a.Replacement)
		}
	}
	return b.String()
}

// Predicate is the symbol used in entailment formulas. Constraints are part
// of the symbol so differently constrained occurrences are distinct
// predicates.
func (r *Relation) Predicate() string {
	if len(r.Constraints) == 0 {
		return r.Name
	}
	parts := make([]string, len(r.Constraints))
	for i, c := range r.Constraints {
		parts[i] = c.Prover()
	}
	return r.Name + "[" + strings.Join(parts, ",") + "]"
}

// Atom translates the occurrence into an entailment atom. Separator
// replacements become constants; an occurrence without arguments gets a
// single constant argument so every atom has positive arity.
func (r *Relation) Atom() entail.Atom {
	a := entail.Atom{Predicate: r.Predicate(), Negated: r.Negated}
	for _, t := range r.Args {
		switch t := t.(type) {
		case Variable:
			a.Args = append(a.Args, t.Name)
		case Constant:
			a.Args = append(a.Args, t.Value)
		case SeparatorVariable:
			a.Args = append(a.Args, "_"+t.Replacement)
		}
	}
	if len(a.Args) == 0 {
		a.Args = []string{"unit"}
	}
	return a
}

// String renders the occurrence in query syntax. Separator positions print as
// _s<replacement>.
func (r *Relation) String() string {
	var b strings.Builder
	if r.Negated {
		b.WriteString("~")
	}
	b.WriteString(r.Name)
	if r.Deterministic {
		b.WriteString("*")
		if r.Sampled {
			b.WriteString("!")
		}
	}
	b.WriteString(r.ConstraintString())
	b.WriteString("(")
	for i, a := range r.Args {
		if i > 0 {
			b.WriteString(",")
		}
		switch a := a.(type) {
		case Variable:
			b.WriteString(a.Name)
		case Constant:
			b.WriteString("'" + a.Value + "'")
		case SeparatorVariable:
			b.WriteString("_s" + a.Replacement)
		}
	}
	b.WriteString(")")
	return b.String()
}

func appendUnique(xs []string, x string) []string {
	for _, y := range xs {
		if y == x {
			return xs
		}
	}
	return append(xs, x)
}
