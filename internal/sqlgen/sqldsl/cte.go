package sqldsl

import "strings"

// CTEDef represents a single Common Table Expression definition.
// Used within WithCTE to define named subqueries.
type CTEDef struct {
	Name    string   // CTE name (e.g., "q_1", "R")
	Columns []string // Optional column names
	Query   SQLer    // The CTE query body
}

// SQL renders the CTE definition as "name [(columns)] AS (query)".
func (c CTEDef) SQL() string {
	var sb strings.Builder
	sb.WriteString(c.Name)
	if len(c.Columns) > 0 {
		sb.WriteString("(")
		sb.WriteString(strings.Join(c.Columns, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(" AS (\n")
	sb.WriteString(IndentLines(c.Query.SQL(), "    "))
	sb.WriteString("\n)")
	return sb.String()
}

// WithCTE represents a WITH clause wrapping a final query.
// Supports both regular and recursive CTEs.
//
// Example:
//
//	WithCTE{
//	    CTEs:  []CTEDef{{Name: "q_1", Query: child}},
//	    Query: finalSelect,
//	}
//
// Renders:
//
//	WITH q_1 AS (
//	    <child query>
//	)
//	<final query>
type WithCTE struct {
	Recursive bool     // If true, renders WITH RECURSIVE
	CTEs      []CTEDef // One or more CTE definitions
	Query     SQLer    // The final SELECT that uses the CTEs
}

// SQL renders the complete WITH clause and final query.
func (w WithCTE) SQL() string {
	if len(w.CTEs) == 0 {
		return w.Query.SQL()
	}

	var sb strings.Builder
	sb.WriteString("WITH ")
	if w.Recursive {
		sb.WriteString("RECURSIVE ")
	}

	cteParts := make([]string, len(w.CTEs))
	for i, cte := range w.CTEs {
		cteParts[i] = cte.SQL()
	}
	sb.WriteString(strings.Join(cteParts, ",\n"))
	sb.WriteString("\n")
	sb.WriteString(w.Query.SQL())

	return sb.String()
}

// SimpleCTE is a convenience constructor for a single non-recursive CTE.
func SimpleCTE(name string, cteQuery, finalQuery SQLer) WithCTE {
	return WithCTE{
		CTEs:  []CTEDef{{Name: name, Query: cteQuery}},
		Query: finalQuery,
	}
}
