package sqldsl

import "strings"

// TableExpr is the interface for table expressions in FROM and JOIN clauses.
// Types that can be used as table sources implement this interface.
type TableExpr interface {
	// TableSQL returns the SQL for use in FROM/JOIN clauses.
	TableSQL() string
	// TableAlias returns the alias if any (empty string if none).
	TableAlias() string
}

// TableRef wraps a raw table name for use as a TableExpr. An alias is
// rendered without AS so that "A A1" style references read naturally.
type TableRef struct {
	Name  string
	Alias string
}

// TableSQL implements TableExpr.
func (t TableRef) TableSQL() string {
	if t.Alias != "" {
		return t.Name + " " + t.Alias
	}
	return t.Name
}

// TableAlias implements TableExpr.
func (t TableRef) TableAlias() string {
	return t.Alias
}

// TableAs creates a table reference with an alias.
func TableAs(name, alias string) TableRef {
	return TableRef{Name: name, Alias: alias}
}

// Subquery is a parenthesized query used as a table.
type Subquery struct {
	Query SQLer
	Alias string
}

// TableSQL implements TableExpr.
func (s Subquery) TableSQL() string {
	return "(\n" + IndentLines(s.Query.SQL(), "    ") + "\n) AS " + s.Alias
}

// TableAlias implements TableExpr.
func (s Subquery) TableAlias() string {
	return s.Alias
}

// TableList is a comma-separated list of tables (an implicit cross join).
type TableList []TableExpr

// TableSQL implements TableExpr.
func (l TableList) TableSQL() string {
	parts := make([]string, len(l))
	for i, t := range l {
		parts[i] = t.TableSQL()
	}
	return strings.Join(parts, ", ")
}

// TableAlias implements TableExpr. A list has no single alias.
func (l TableList) TableAlias() string {
	return ""
}
