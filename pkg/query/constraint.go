package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidConstraint is returned for a constraint token that is neither a
// wildcard, an integer nor a generic symbol.
var ErrInvalidConstraint = errors.New("invalid constraint")

// ConstraintKind says what a constraint requires of its column.
type ConstraintKind int

const (
	Wildcard ConstraintKind = iota
	Equality
	Inequality
)

// Constraint annotates one physical column of a relation occurrence. A
// generic constraint refers to a symbolic constant shared across positions;
// otherwise Value is a non-negative integer.
type Constraint struct {
	Kind    ConstraintKind
	Generic bool
	Value   string
}

// ParseConstraint reads one constraint token: "*", "7", "-7", "c" or "-c".
func ParseConstraint(tok string) (Constraint, error) {
	switch {
	case tok == "*":
		return Constraint{Kind: Wildcard}, nil
	case isAlpha(tok):
		return Constraint{Kind: Equality, Generic: true, Value: tok}, nil
	case strings.HasPrefix(tok, "-") && isAlpha(tok[1:]):
		return Constraint{Kind: Inequality, Generic: true, Value: tok[1:]}, nil
	case strings.HasPrefix(tok, "-") && isDigits(tok[1:]):
		return Constraint{Kind: Inequality, Value: normalizeInt(tok[1:])}, nil
	case isDigits(tok):
		return Constraint{Kind: Equality, Value: normalizeInt(tok)}, nil
	default:
		return Constraint{}, fmt.Errorf("%w: %q", ErrInvalidConstraint, tok)
	}
}

// MustConstraint is ParseConstraint for literals known to be valid.
func MustConstraint(tok string) Constraint {
	c, err := ParseConstraint(tok)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Constraint) IsWildcard() bool   { return c.Kind == Wildcard }
func (c Constraint) IsEquality() bool   { return c.Kind == Equality }
func (c Constraint) IsInequality() bool { return c.Kind == Inequality }

// BindsVariable reports whether the column is still filled by an argument.
// Equality columns are folded out of the argument list.
func (c Constraint) BindsVariable() bool { return c.Kind != Equality }

// Int returns the integer value of a non-generic constraint.
func (c Constraint) Int() int {
	n, _ := strconv.Atoi(c.Value)
	return n
}

// String renders the constraint in query syntax.
func (c Constraint) String() string {
	switch c.Kind {
	case Wildcard:
		return "*"
	case Inequality:
		return "-" + c.Value
	default:
		return c.Value
	}
}

// Prover renders the constraint as part of a predicate symbol.
func (c Constraint) Prover() string {
	switch {
	case c.Kind == Wildcard:
		return "any"
	case c.Generic && c.Kind == Equality:
		return strings.ToUpper(c.Value)
	case c.Kind == Inequality:
		return "not" + c.Value
	default:
		return c.Value
	}
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeInt(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return strconv.Itoa(n)
}
