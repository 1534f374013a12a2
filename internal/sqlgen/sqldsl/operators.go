package sqldsl

import (
	"strings"
)

// Comparison operators

// Eq represents an equality comparison (=).
type Eq struct {
	Left  Expr
	Right Expr
}

func (e Eq) SQL() string { return e.Left.SQL() + " = " + e.Right.SQL() }

// Ne represents a not-equal comparison (<>).
type Ne struct {
	Left  Expr
	Right Expr
}

func (n Ne) SQL() string { return n.Left.SQL() + " <> " + n.Right.SQL() }

// Lt represents a less-than comparison (<).
type Lt struct {
	Left  Expr
	Right Expr
}

func (l Lt) SQL() string { return l.Left.SQL() + " < " + l.Right.SQL() }

// Gt represents a greater-than comparison (>).
type Gt struct {
	Left  Expr
	Right Expr
}

func (g Gt) SQL() string { return g.Left.SQL() + " > " + g.Right.SQL() }

// Arithmetic operators

// Sub represents subtraction (-). The right operand is parenthesized when it
// is itself a sum or difference.
type Sub struct {
	Left  Expr
	Right Expr
}

func (s Sub) SQL() string {
	right := s.Right.SQL()
	if _, ok := s.Right.(Sub); ok {
		right = "(" + right + ")"
	}
	return s.Left.SQL() + " - " + right
}

// ArithExpr is an n-ary sum or product.
type ArithExpr struct {
	Op    string
	Exprs []Expr
}

func (a ArithExpr) SQL() string {
	var empty string
	switch a.Op {
	case "*":
		empty = "1"
	default:
		empty = "0"
	}
	return joinExprs(a.Exprs, " "+a.Op+" ", empty)
}

// Product multiplies its operands.
func Product(exprs ...Expr) ArithExpr {
	return ArithExpr{Op: "*", Exprs: filterNilExprs(exprs)}
}

// Sum adds its operands.
func Sum(exprs ...Expr) ArithExpr {
	return ArithExpr{Op: "+", Exprs: filterNilExprs(exprs)}
}

// Logical operators

// filterNilExprs removes nil expressions from the slice.
func filterNilExprs(exprs []Expr) []Expr {
	filtered := make([]Expr, 0, len(exprs))
	for _, e := range exprs {
		if e != nil {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// joinExprs renders expressions joined by a separator, wrapped in parentheses if more than one.
func joinExprs(exprs []Expr, sep, emptyVal string) string {
	switch len(exprs) {
	case 0:
		return emptyVal
	case 1:
		return exprs[0].SQL()
	default:
		parts := make([]string, len(exprs))
		for i, e := range exprs {
			parts[i] = e.SQL()
		}
		return "(" + strings.Join(parts, sep) + ")"
	}
}

// AndExpr represents a logical AND of multiple expressions.
type AndExpr struct {
	Exprs []Expr
}

func (a AndExpr) SQL() string { return joinExprs(a.Exprs, " AND ", "TRUE") }

// And creates an AND expression from multiple expressions.
func And(exprs ...Expr) AndExpr {
	return AndExpr{Exprs: filterNilExprs(exprs)}
}

// Empty reports whether the conjunction has no terms.
func (a AndExpr) Empty() bool { return len(a.Exprs) == 0 }

// OrExpr represents a logical OR of multiple expressions.
type OrExpr struct {
	Exprs []Expr
}

func (o OrExpr) SQL() string { return joinExprs(o.Exprs, " OR ", "FALSE") }

// Or creates an OR expression from multiple expressions.
func Or(exprs ...Expr) OrExpr {
	return OrExpr{Exprs: filterNilExprs(exprs)}
}

// IsNull represents IS NULL check.
type IsNull struct {
	Expr Expr
}

func (i IsNull) SQL() string { return i.Expr.SQL() + " IS NULL" }

// CaseWhen represents a single WHEN clause in a CASE expression.
type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// CaseExpr represents a CASE expression with multiple WHEN clauses.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr // optional default value
}

func (c CaseExpr) SQL() string {
	if len(c.Whens) == 0 {
		if c.Else != nil {
			return c.Else.SQL()
		}
		return "NULL"
	}

	var sb strings.Builder
	sb.WriteString("CASE")
	for _, w := range c.Whens {
		sb.WriteString(" WHEN ")
		sb.WriteString(w.Cond.SQL())
		sb.WriteString(" THEN ")
		sb.WriteString(w.Result.SQL())
	}
	if c.Else != nil {
		sb.WriteString(" ELSE ")
		sb.WriteString(c.Else.SQL())
	}
	sb.WriteString(" END")
	return sb.String()
}

// When is shorthand for a single-branch CASE expression.
func When(cond, then, otherwise Expr) CaseExpr {
	return CaseExpr{Whens: []CaseWhen{{Cond: cond, Result: then}}, Else: otherwise}
}
