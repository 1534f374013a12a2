package query

import (
	"context"
	"sort"
	"strings"

	"github.com/pthm/safeplan/pkg/entail"
)

// DNF is a disjunction of conjunctive queries.
type DNF struct {
	Conjuncts []*ConjunctiveQuery
}

// NewDNF builds a DNF over the given conjuncts.
func NewDNF(conjuncts ...*ConjunctiveQuery) *DNF {
	return &DNF{Conjuncts: conjuncts}
}

// Clone deep-copies the query.
func (q *DNF) Clone() *DNF {
	out := &DNF{Conjuncts: make([]*ConjunctiveQuery, len(q.Conjuncts))}
	for i, c := range q.Conjuncts {
		out.Conjuncts[i] = c.Clone()
	}
	return out
}

// CopyWithDeterminism clones q, marking the named relations deterministic
// and sampled.
func (q *DNF) CopyWithDeterminism(names map[string]bool) *DNF {
	out := &DNF{Conjuncts: make([]*ConjunctiveQuery, len(q.Conjuncts))}
	for i, c := range q.Conjuncts {
		out.Conjuncts[i] = c.CopyWithDeterminism(names)
	}
	return out
}

// Relations lists every relation occurrence.
func (q *DNF) Relations() []*Relation {
	var out []*Relation
	for _, c := range q.Conjuncts {
		out = append(out, c.Relations()...)
	}
	return out
}

// RelationNames lists the distinct relation names in sorted order.
func (q *DNF) RelationNames() []string {
	var out []string
	for _, r := range q.Relations() {
		out = appendUnique(out, r.Name)
	}
	sort.Strings(out)
	return out
}

// ContainedIn reports whether q implies other: every conjunct of q implies
// some conjunct of other.
func (q *DNF) ContainedIn(other *DNF) bool {
	for _, mine := range q.Conjuncts {
		found := false
		for _, theirs := range other.Conjuncts {
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

// Minimize minimizes every conjunct and drops conjuncts that imply another.
func (q *DNF) Minimize() *DNF {
	min := make([]*ConjunctiveQuery, len(q.Conjuncts))
	for i, c := range q.Conjuncts {
		min[i] = c.Minimize()
	}
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
	return &DNF{Conjuncts: keep(min, redundant)}
}

// UsedSeparators lists separator replacements in order of appearance.
func (q *DNF) UsedSeparators() []string {
	var out []string
	for _, c := range q.Conjuncts {
		for _, s := range c.UsedSeparators() {
			out = appendUnique(out, s)
		}
	}
	return out
}

// SymbolComponents groups conjuncts that share a relation symbol. Conjuncts
// made only of deterministic relations are groups of their own.
func (q *DNF) SymbolComponents() [][]*ConjunctiveQuery {
	g := newGroupBy()
	var singletons [][]int
	for i, c := range q.Conjuncts {
		if c.AllDeterministic() {
			singletons = append(singletons, []int{i})
			continue
		}
		for _, r := range c.Relations() {
			g.add(r.AdjacencyName(), i)
		}
	}
	parts := connected(len(q.Conjuncts), append(g.groups(), singletons...))
	out := make([][]*ConjunctiveQuery, len(parts))
	for k, part := range parts {
		for _, i := range part {
			out[k] = append(out[k], q.Conjuncts[i])
		}
	}
	return out
}

// ToCNF distributes the disjunction over the conjunctions. Each disjunct of
// the result picks one component from every conjunct, so the output has
// Π|components| disjuncts. Disjuncts are enumerated depth-first with the
// last conjunct varying fastest.
func (q *DNF) ToCNF() *CNF {
	if len(q.Conjuncts) == 0 {
		return NewCNF()
	}
	var disjuncts []*DisjunctiveQuery
	choice := make([]int, len(q.Conjuncts))
	for {
		d := &DisjunctiveQuery{Components: make([]*Component, len(q.Conjuncts))}
		for i, c := range q.Conjuncts {
			d.Components[i] = c.Components[choice[i]].Clone()
		}
		disjuncts = append(disjuncts, d)

		i := len(choice) - 1
		for ; i >= 0; i-- {
			choice[i]++
			if choice[i] < len(q.Conjuncts[i].Components) {
				break
			}
			choice[i] = 0
		}
		if i < 0 {
			break
		}
	}
	return NewCNF(disjuncts...)
}

// Formula is the disjunction of the conjunct formulas.
func (q *DNF) Formula() entail.Formula {
	if len(q.Conjuncts) == 1 {
		return q.Conjuncts[0].Formula()
	}
	fs := make(entail.Or, len(q.Conjuncts))
	for i, c := range q.Conjuncts {
		fs[i] = c.Formula()
	}
	return fs
}

func (q *DNF) String() string {
	return joinStrings(q.Conjuncts, " v ")
}

// CNF is a conjunction of disjunctive queries. Construction minimizes every
// disjunct.
type CNF struct {
	Disjuncts []*DisjunctiveQuery
}

// NewCNF builds a CNF, minimizing each disjunct.
func NewCNF(disjuncts ...*DisjunctiveQuery) *CNF {
	out := &CNF{Disjuncts: make([]*DisjunctiveQuery, len(disjuncts))}
	for i, d := range disjuncts {
		out.Disjuncts[i] = d.Minimize()
	}
	return out
}

// Clone deep-copies the query.
func (q *CNF) Clone() *CNF {
	out := &CNF{Disjuncts: make([]*DisjunctiveQuery, len(q.Disjuncts))}
	for i, d := range q.Disjuncts {
		out.Disjuncts[i] = d.Clone()
	}
	return out
}

// Relations lists every relation occurrence.
func (q *CNF) Relations() []*Relation {
	var out []*Relation
	for _, d := range q.Disjuncts {
		out = append(out, d.Relations()...)
	}
	return out
}

// Minimize drops disjuncts implied by another disjunct (the earlier of two
// equivalent ones survives) and disjuncts the oracle proves to be
// tautologies. A disjunct whose tautology check is undecided is kept.
func (q *CNF) Minimize(ctx context.Context, oracle entail.Oracle) *CNF {
	min := make([]*DisjunctiveQuery, len(q.Disjuncts))
	for i, d := range q.Disjuncts {
		min[i] = d.Minimize()
	}
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
	var out []*DisjunctiveQuery
	for i, d := range min {
		if redundant[i] {
			continue
		}
		if oracle != nil && entail.IsTautology(ctx, oracle, d.Formula()) == entail.Proved {
			continue
		}
		out = append(out, d)
	}
	return NewCNF(out...)
}

// ContainedIn reports whether q implies other: every disjunct of other is
// implied by some disjunct of q.
func (q *CNF) ContainedIn(other *CNF) bool {
	for _, theirs := range other.Disjuncts {
		found := false
		for _, mine := range q.Disjuncts {
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

// UsesSeparator reports whether any disjunct uses the replacement.
func (q *CNF) UsesSeparator(replacement string) bool {
	for _, d := range q.Disjuncts {
		if d.UsesSeparator(replacement) {
			return true
		}
	}
	return false
}

// UsedSeparators lists separator replacements in order of appearance.
func (q *CNF) UsedSeparators() []string {
	var out []string
	for _, d := range q.Disjuncts {
		for _, s := range d.UsedSeparators() {
			out = appendUnique(out, s)
		}
	}
	return out
}

// SymbolComponents groups disjuncts that share a relation symbol. Disjuncts
// made only of deterministic relations are groups of their own.
func (q *CNF) SymbolComponents() [][]*DisjunctiveQuery {
	g := newGroupBy()
	var singletons [][]int
	for i, d := range q.Disjuncts {
		if d.AllDeterministic() {
			singletons = append(singletons, []int{i})
			continue
		}
		for _, r := range d.Relations() {
			g.add(r.AdjacencyName(), i)
		}
	}
	parts := connected(len(q.Disjuncts), append(g.groups(), singletons...))
	out := make([][]*DisjunctiveQuery, len(parts))
	for k, part := range parts {
		for _, i := range part {
			out[k] = append(out[k], q.Disjuncts[i])
		}
	}
	return out
}

// Formula is the conjunction of the disjunct formulas.
func (q *CNF) Formula() entail.Formula {
	if len(q.Disjuncts) == 1 {
		return q.Disjuncts[0].Formula()
	}
	fs := make(entail.And, len(q.Disjuncts))
	for i, d := range q.Disjuncts {
		fs[i] = d.Formula()
	}
	return fs
}

// String renders the CNF as "(a v b) ^ (c)".
func (q *CNF) String() string {
	parts := make([]string, len(q.Disjuncts))
	for i, d := range q.Disjuncts {
		parts[i] = "(" + d.String() + ")"
	}
	return strings.Join(parts, " ^ ")
}
