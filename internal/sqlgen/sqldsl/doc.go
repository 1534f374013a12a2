// Package sqldsl provides a typed builder for the SQL emitted by the plan
// code generators.
//
// # Overview
//
// Rather than concatenating SQL strings, the generators compose typed
// building blocks. The output targets PostgreSQL and SQLite, so the DSL only
// renders syntax both engines accept.
//
// # Core Interfaces
//
// All DSL types implement one of two interfaces:
//
//   - Expr: SQL expressions (columns, literals, operators, function calls)
//   - SQLer: complete statements (SELECT, WITH, UNION ALL)
//
// Table sources implement TableExpr.
//
// # Expression Types
//
//	Col{Table: "q1", Column: "pUse"}   // q1.pUse
//	Lit("-Infinity")                   // '-Infinity'
//	Int(3)                             // 3
//	Null{}                             // NULL
//	Raw("1")                           // raw SQL (escape hatch)
//
// Operators:
//
//	Eq{Left: a, Right: b}              // a = b
//	Ne{Left: a, Right: b}              // a != b
//	Sub{Left: Int(1), Right: p}        // 1 - p
//	Product(a, b)                      // (a * b)
//	Sum(a, b)                          // (a + b)
//	Coalesce(a, Int(1))                // COALESCE(a, 1)
//	And(a, b)                          // (a AND b)
//
// Probability functions:
//
//	Ln(p), Exp(p)                      // ln(p), exp(p)
//	Ior(p)                             // independent-or aggregate
//	ProdDouble(p)                      // product aggregate
//
// # Statement Types
//
//	SelectStmt{
//	    ColumnExprs: []Expr{SelectAs(Ior(Col{Column: "pUse"}), "pUse")},
//	    FromExpr:    Subquery{Query: child, Alias: "q3"},
//	    GroupBy:     []Expr{Col{Column: "c1"}},
//	}
//
//	WithCTE{CTEs: []CTEDef{{Name: "q_1", Query: child}}, Query: final}
//
//	UnionAll{Queries: []SQLer{a, b}}
package sqldsl
