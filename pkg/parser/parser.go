// Package parser reads probabilistic queries written in the textual query
// syntax.
//
// A query is a disjunction of conjuncts separated by " v ". A conjunct is a
// comma-separated list of atoms:
//
//	R(x),S(x,y) v S(x,y),~T*(y)
//	S[c,-c](x) v R[*,-3](x)
//
// An atom is [~]Name[*[!]][[c1,...,ck]](v1,...,vm). A leading ~ negates it, a
// trailing * marks the relation deterministic and *! deterministic and
// sampled. The bracket holds one constraint per physical column: * for a
// free column, an integer for an equality, -integer for an inequality, and a
// lowercase word (or -word) for a generic constant.
//
// # Basic Usage
//
//	q, err := parser.Parse("R(x),S(x,y) v S(x,y),T(y)")
//	if err != nil {
//	    log.Fatal(err)
//	}
package parser

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/viant/parsly"

	"github.com/pthm/safeplan/pkg/query"
)

// ErrParse is returned for malformed query text.
var ErrParse = errors.New("safeplan: malformed query")

// IsParseErr reports whether err is or wraps ErrParse.
func IsParseErr(err error) bool {
	return errors.Is(err, ErrParse)
}

// ActiveDomain is the reserved name of the active domain relation.
const ActiveDomain = "A"

// ParseFile reads a query from a file.
func ParseFile(path string) (*query.DNF, error) {
	content, err := os.ReadFile(path) //nolint:gosec // path is from trusted source
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	return Parse(strings.TrimSpace(string(content)))
}

// Parse reads a query. Each conjunct is split into connected components.
func Parse(text string) (*query.DNF, error) {
	cursor := parsly.NewCursor("", []byte(text), 0)
	var conjuncts []*query.ConjunctiveQuery
	for {
		rels, err := parseConjunct(cursor)
		if err != nil {
			return nil, err
		}
		conjuncts = append(conjuncts, query.NewConjunctiveQuery(query.NewComponent(rels...).Decompose()...))

		pos := cursor.Pos
		matched := cursor.MatchAfterOptional(whitespaceMatcher, disjunctionMatcher)
		switch matched.Code {
		case disjunctionToken:
			continue
		case parsly.EOF:
			return query.NewDNF(conjuncts...), nil
		default:
			return nil, parseErr(pos, "expected \" v \" or end of query")
		}
	}
}

func parseConjunct(cursor *parsly.Cursor) ([]*query.Relation, error) {
	var rels []*query.Relation
	for {
		r, err := parseAtom(cursor)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)

		pos := cursor.Pos
		if cursor.MatchAfterOptional(whitespaceMatcher, commaMatcher).Code != commaToken {
			cursor.Pos = pos
			return rels, nil
		}
	}
}

func parseAtom(cursor *parsly.Cursor) (*query.Relation, error) {
	r := &query.Relation{}
	matched := cursor.MatchAfterOptional(whitespaceMatcher, negationMatcher, nameMatcher)
	if matched.Code == negationToken {
		r.Negated = true
		matched = cursor.MatchOne(nameMatcher)
	}
	if matched.Code != nameToken {
		return nil, parseErr(cursor.Pos, "expected relation name")
	}
	start := matched.Offset
	r.Name = matched.Text(cursor)
	if r.Name == ActiveDomain {
		return nil, parseErr(start, "%s is reserved for the active domain", ActiveDomain)
	}

	if cursor.MatchOne(starMatcher).Code == starToken {
		r.Deterministic = true
		if cursor.MatchOne(bangMatcher).Code == bangToken {
			r.Sampled = true
		}
	}

	var constraintOffset int
	matched = cursor.MatchAny(constraintsMatcher, argumentsMatcher)
	if matched.Code == constraintsToken {
		constraintOffset = matched.Offset
		block := matched.Text(cursor)
		for _, tok := range strings.Split(block[1:len(block)-1], ",") {
			c, err := query.ParseConstraint(strings.TrimSpace(tok))
			if err != nil {
				return nil, parseErr(constraintOffset, "%v", err)
			}
			r.Constraints = append(r.Constraints, c)
		}
		matched = cursor.MatchOne(argumentsMatcher)
	}
	if matched.Code != argumentsToken {
		return nil, parseErr(cursor.Pos, "expected argument list")
	}

	block := matched.Text(cursor)
	inner := strings.TrimSpace(block[1 : len(block)-1])
	if inner != "" {
		for _, name := range strings.Split(inner, ",") {
			name = strings.TrimSpace(name)
			if !isWord(name) {
				return nil, parseErr(matched.Offset, "invalid variable %q", name)
			}
			r.Args = append(r.Args, query.Variable{Name: name})
		}
	}

	if len(r.Constraints) > 0 {
		if err := bindConstraints(r); err != nil {
			return nil, parseErr(constraintOffset, "%v", err)
		}
	}
	return r, nil
}

// bindConstraints hands inequality constraints to the variables that fill
// the corresponding columns.
func bindConstraints(r *query.Relation) error {
	free := 0
	for _, c := range r.Constraints {
		if !c.IsEquality() {
			free++
		}
	}
	if free != len(r.Args) {
		return fmt.Errorf("%s has %d free columns but %d variables", r.Name, free, len(r.Args))
	}

	seen := make(map[string]bool)
	arg := 0
	for i := range r.Constraints {
		c := r.Constraints[i]
		if c.IsEquality() {
			continue
		}
		if c.IsInequality() {
			if c.Generic {
				if seen[c.Value] {
					return fmt.Errorf("generic inequality -%s repeated in %s", c.Value, r.Name)
				}
				seen[c.Value] = true
			}
			v := r.Args[arg].(query.Variable)
			v.Inequality = &c
			r.Args[arg] = v
		}
		arg++
	}
	return nil
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return true
}

func parseErr(offset int, format string, args ...any) error {
	return fmt.Errorf("%w: offset %d: %s", ErrParse, offset, fmt.Sprintf(format, args...))
}
