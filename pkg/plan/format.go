package plan

import (
	"fmt"
	"strings"
)

// Shape is a serialisable description of a plan tree.
type Shape struct {
	Kind        Kind     `json:"kind"`
	Query       string   `json:"query"`
	Relation    string   `json:"relation,omitempty"`
	AlwaysTrue  bool     `json:"alwaysTrue,omitempty"`
	Separator   []string `json:"separator,omitempty"`
	Replacement string   `json:"replacement,omitempty"`
	DomainSize  int      `json:"domainSize,omitempty"`
	Coeff       int      `json:"coeff,omitempty"`
	Children    []Shape  `json:"children,omitempty"`
}

// Describe converts a plan into a Shape.
func Describe(n Node) Shape {
	s := Shape{Kind: n.Kind(), Query: n.Query().String()}
	switch n := n.(type) {
	case *GroundTuple:
		s.Relation = n.Relation.String()
		s.AlwaysTrue = n.AlwaysTrue()
	case *IndependentUnion:
		for _, c := range n.Terms {
			s.Children = append(s.Children, Describe(c))
		}
	case *IndependentJoin:
		for _, c := range n.Terms {
			s.Children = append(s.Children, Describe(c))
		}
	case *IndependentProject:
		for _, v := range n.Separator {
			s.Separator = append(s.Separator, v.Name)
		}
		s.Replacement = n.Replacement
		s.DomainSize = n.DomainSize
		s.Children = []Shape{Describe(n.Child)}
	case *InclusionExclusion:
		for _, t := range n.Terms {
			c := Describe(t.Plan)
			c.Coeff = t.Coeff
			s.Children = append(s.Children, c)
		}
	}
	return s
}

// Format renders a plan as an indented tree, one node per line.
func Format(n Node) string {
	var b strings.Builder
	writeShape(&b, Describe(n), 0)
	return b.String()
}

func writeShape(b *strings.Builder, s Shape, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	if s.Coeff != 0 {
		fmt.Fprintf(b, "%+d ", s.Coeff)
	}
	switch s.Kind {
	case KindGroundTuple:
		fmt.Fprintf(b, "Ground Tuple: %s", s.Relation)
		if s.AlwaysTrue {
			b.WriteString(" [always true]")
		}
	case KindIndependentUnion:
		b.WriteString("Independent Union")
	case KindIndependentJoin:
		b.WriteString("Independent Join")
	case KindIndependentProject:
		fmt.Fprintf(b, "Independent Project: %s -> _%s", strings.Join(s.Separator, ", "), s.Replacement)
	case KindInclusionExclusion:
		b.WriteString("Inclusion/Exclusion")
	}
	if s.Kind != KindGroundTuple {
		fmt.Fprintf(b, "  %s", s.Query)
	}
	b.WriteByte('\n')
	for _, c := range s.Children {
		writeShape(b, c, depth+1)
	}
}
