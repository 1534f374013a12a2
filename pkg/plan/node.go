package plan

import (
	"github.com/pthm/safeplan/pkg/query"
)

// Kind names a plan operator.
type Kind string

const (
	KindGroundTuple        Kind = "ground-tuple"
	KindIndependentUnion   Kind = "independent-union"
	KindIndependentJoin    Kind = "independent-join"
	KindIndependentProject Kind = "independent-project"
	KindInclusionExclusion Kind = "inclusion-exclusion"
)

// Node is a safe plan operator. The implementations are GroundTuple,
// IndependentUnion, IndependentJoin, IndependentProject and
// InclusionExclusion; no other type satisfies the interface.
type Node interface {
	Kind() Kind
	// Query is the CNF the node was built from.
	Query() *query.CNF
	// Children lists the sub-plans.
	Children() []Node
	// UsesSeparator reports whether the node's query mentions the separator
	// replacement.
	UsesSeparator(replacement string) bool

	sealed()
}

// GroundTuple evaluates a disjunct without variables. If the disjunct has
// more than one component it is a tautology x v ~x.
type GroundTuple struct {
	Q        *query.CNF
	Disjunct *query.DisjunctiveQuery
	Relation *query.Relation
}

// AlwaysTrue reports whether the disjunct is a tautological pair.
func (n *GroundTuple) AlwaysTrue() bool { return len(n.Disjunct.Components) > 1 }

// IndependentUnion combines sub-plans over disjoint relation symbols.
type IndependentUnion struct {
	Q     *query.CNF
	Terms []Node
	// Separators are the replacements already in use by the query.
	Separators []string
}

// IndependentJoin combines sub-plans over disjoint sets of CNF disjuncts.
type IndependentJoin struct {
	Q          *query.CNF
	Terms      []Node
	Separators []string
}

// IndependentProject projects out a separator variable.
type IndependentProject struct {
	// Q is the query before the separator was applied.
	Q        *query.CNF
	Disjunct *query.DisjunctiveQuery
	// Separator holds one variable per component with variables.
	Separator []query.Variable
	// Replacement identifies the separator in the child's query and in the
	// generated columns.
	Replacement string
	// DomainSize is the declared domain size of the separator, zero if none.
	DomainSize int
	// Separators are the replacements in use before this one was applied.
	Separators []string
	ChildQuery *query.DNF
	Child      Node
}

// IsInequality reports whether the separator ranges over all but one value.
func (n *IndependentProject) IsInequality() bool { return n.Separator[0].IsInequality() }

// IsGenericInequality reports whether the separator differs from a generic
// constant.
func (n *IndependentProject) IsGenericInequality() bool {
	return n.Separator[0].IsGenericInequality()
}

// GenericSymbol is the generic constant the separator must differ from, or
// "" if there is none. Every component carries the same one.
func (n *IndependentProject) GenericSymbol() string {
	if !n.IsGenericInequality() {
		return ""
	}
	return n.Separator[0].Inequality.Value
}

// Term is one signed term of an inclusion-exclusion expansion.
type Term struct {
	Coeff int
	Plan  Node
}

// InclusionExclusion combines the signed terms of an inclusion-exclusion
// expansion.
type InclusionExclusion struct {
	Q          *query.CNF
	Terms      []Term
	Separators []string
}

func (n *GroundTuple) Kind() Kind        { return KindGroundTuple }
func (n *IndependentUnion) Kind() Kind   { return KindIndependentUnion }
func (n *IndependentJoin) Kind() Kind    { return KindIndependentJoin }
func (n *IndependentProject) Kind() Kind { return KindIndependentProject }
func (n *InclusionExclusion) Kind() Kind { return KindInclusionExclusion }

func (n *GroundTuple) Query() *query.CNF        { return n.Q }
func (n *IndependentUnion) Query() *query.CNF   { return n.Q }
func (n *IndependentJoin) Query() *query.CNF    { return n.Q }
func (n *IndependentProject) Query() *query.CNF { return n.Q }
func (n *InclusionExclusion) Query() *query.CNF { return n.Q }

func (n *GroundTuple) Children() []Node        { return nil }
func (n *IndependentUnion) Children() []Node   { return n.Terms }
func (n *IndependentJoin) Children() []Node    { return n.Terms }
func (n *IndependentProject) Children() []Node { return []Node{n.Child} }
func (n *InclusionExclusion) Children() []Node {
	out := make([]Node, len(n.Terms))
	for i, t := range n.Terms {
		out[i] = t.Plan
	}
	return out
}

// UsesSeparator for a ground tuple looks at its relation only.
func (n *GroundTuple) UsesSeparator(r string) bool        { return n.Relation.UsesSeparator(r) }
func (n *IndependentUnion) UsesSeparator(r string) bool   { return n.Q.UsesSeparator(r) }
func (n *IndependentJoin) UsesSeparator(r string) bool    { return n.Q.UsesSeparator(r) }
func (n *IndependentProject) UsesSeparator(r string) bool { return n.Q.UsesSeparator(r) }
func (n *InclusionExclusion) UsesSeparator(r string) bool { return n.Q.UsesSeparator(r) }

func (*GroundTuple) sealed()        {}
func (*IndependentUnion) sealed()   {}
func (*IndependentJoin) sealed()    {}
func (*IndependentProject) sealed() {}
func (*InclusionExclusion) sealed() {}

// Walk visits n and its descendants depth-first.
func Walk(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.Children() {
		Walk(c, fn)
	}
}
