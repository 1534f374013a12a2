package sqldsl

import (
	"fmt"
	"strings"
)

// Sqlf formats SQL with automatic dedenting and blank line removal.
// The SQL shape is visible in the format string.
func Sqlf(format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	lines := strings.Split(s, "\n")

	// Find minimum indentation (ignoring empty lines)
	minIndent := 1000
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if indent < minIndent {
			minIndent = indent
		}
	}

	// Remove common indent and empty lines
	var result []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(line) >= minIndent {
			result = append(result, line[minIndent:])
		} else {
			result = append(result, strings.TrimLeft(line, " \t"))
		}
	}

	return strings.Join(result, "\n")
}

// Optf returns formatted string if condition is true, empty string otherwise.
// Useful for optional SQL clauses.
func Optf(cond bool, format string, args ...any) string {
	if !cond {
		return ""
	}
	return fmt.Sprintf(format, args...)
}

// Join types.
const (
	InnerJoin     = "INNER"
	LeftOuterJoin = "LEFT OUTER"
	FullOuterJoin = "FULL OUTER"
	CrossJoin     = "CROSS"
)

// JoinClause represents a SQL JOIN clause.
type JoinClause struct {
	Type      string // InnerJoin, FullOuterJoin, ...
	TableExpr TableExpr
	On        Expr
}

// SQL renders the JOIN clause. A non-cross join without a condition renders
// ON TRUE.
func (j JoinClause) SQL() string {
	tableSQL := j.TableExpr.TableSQL()
	if j.Type == CrossJoin {
		return "CROSS JOIN " + tableSQL
	}
	on := "TRUE"
	if j.On != nil {
		if a, ok := j.On.(AndExpr); !ok || !a.Empty() {
			on = j.On.SQL()
		}
	}
	return j.Type + " JOIN " + tableSQL + " ON " + on
}

// SelectStmt represents a SELECT query.
type SelectStmt struct {
	Distinct    bool
	ColumnExprs []Expr
	FromExpr    TableExpr
	Joins       []JoinClause
	Where       Expr
	GroupBy     []Expr
	Having      Expr
	Limit       int
}

// SQL renders the SELECT statement, one clause per line.
func (s SelectStmt) SQL() string {
	clauses := []string{
		"SELECT " + Optf(s.Distinct, "DISTINCT ") + s.columnsSQL(),
		s.fromSQL(),
		s.joinsSQL(),
		s.whereSQL(),
		s.groupBySQL(),
		s.havingSQL(),
		s.limitSQL(),
	}
	out := clauses[:0]
	for _, c := range clauses {
		if c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, "\n")
}

func (s SelectStmt) columnsSQL() string {
	if len(s.ColumnExprs) > 0 {
		parts := make([]string, len(s.ColumnExprs))
		for i, e := range s.ColumnExprs {
			parts[i] = e.SQL()
		}
		return strings.Join(parts, ", ")
	}
	return "1"
}

func (s SelectStmt) fromSQL() string {
	if s.FromExpr == nil {
		return ""
	}
	return "FROM " + s.FromExpr.TableSQL()
}

func (s SelectStmt) joinsSQL() string {
	if len(s.Joins) == 0 {
		return ""
	}
	var parts []string
	for _, j := range s.Joins {
		parts = append(parts, j.SQL())
	}
	return strings.Join(parts, "\n")
}

func (s SelectStmt) whereSQL() string {
	if s.Where == nil {
		return ""
	}
	if a, ok := s.Where.(AndExpr); ok && a.Empty() {
		return ""
	}
	return "WHERE " + s.Where.SQL()
}

func (s SelectStmt) groupBySQL() string {
	if len(s.GroupBy) == 0 {
		return ""
	}
	parts := make([]string, len(s.GroupBy))
	for i, e := range s.GroupBy {
		parts[i] = e.SQL()
	}
	return "GROUP BY " + strings.Join(parts, ", ")
}

func (s SelectStmt) havingSQL() string {
	if s.Having == nil {
		return ""
	}
	return "HAVING " + s.Having.SQL()
}

func (s SelectStmt) limitSQL() string {
	if s.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf("LIMIT %d", s.Limit)
}

// =============================================================================
// Query Blocks (for UNION queries)
// =============================================================================

// SQLer is an interface for types that can render SQL.
type SQLer interface {
	SQL() string
}

// QueryBlock represents a query with optional comments.
// Used to build UNION queries with descriptive comments for each branch.
type QueryBlock struct {
	Comments []string // Comment lines (without -- prefix)
	Query    SQLer
}

// RenderUnionBlocks renders query blocks joined with UNION.
func RenderUnionBlocks(blocks []QueryBlock) string {
	return renderBlocks(blocks, "\nUNION\n")
}

// RenderUnionAllBlocks renders query blocks joined with UNION ALL.
func RenderUnionAllBlocks(blocks []QueryBlock) string {
	return renderBlocks(blocks, "\nUNION ALL\n")
}

func renderBlocks(blocks []QueryBlock, sep string) string {
	if len(blocks) == 0 {
		return ""
	}
	parts := make([]string, len(blocks))
	for i, block := range blocks {
		parts[i] = renderSingleBlock(block)
	}
	return strings.Join(parts, sep)
}

// renderSingleBlock renders a single query block with comments.
func renderSingleBlock(block QueryBlock) string {
	var lines []string
	for _, comment := range block.Comments {
		lines = append(lines, "-- "+comment)
	}
	lines = append(lines, strings.TrimSpace(block.Query.SQL()))
	return strings.Join(lines, "\n")
}

// UnionAll combines queries with UNION ALL.
type UnionAll struct {
	Queries []SQLer
}

// SQL renders the union.
func (u UnionAll) SQL() string {
	blocks := make([]QueryBlock, len(u.Queries))
	for i, q := range u.Queries {
		blocks[i] = QueryBlock{Query: q}
	}
	return RenderUnionAllBlocks(blocks)
}

// Commented prefixes a statement with SQL comment lines.
type Commented struct {
	Comments []string
	Query    SQLer
}

// SQL renders the comments and the statement.
func (c Commented) SQL() string {
	return renderSingleBlock(QueryBlock(c))
}

// =============================================================================
// SQL Formatting Helpers
// =============================================================================

// Ident sanitizes an identifier for use in SQL.
// Replaces non-alphanumeric characters with underscores.
func Ident(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}

// IndentLines adds the given indent prefix to each line of input.
func IndentLines(input, indent string) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(input), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
