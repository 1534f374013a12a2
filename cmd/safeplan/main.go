// Package main provides the safeplan command line tool.
//
// The CLI supports:
//   - plan: Print the safe plan of a query, or report that it is unsafe
//   - sql: Generate the SQL computing a query's probability
//   - residual: Find a safe residual query and its sampling SQL
//   - lineage: Generate the lineage query of a query
//   - eval: Run a query against the configured database
//   - migrate: Install the support aggregates in PostgreSQL
//   - status: Show support function installation state
//   - doctor: Run health checks on a database
//
// Usage:
//
//	safeplan [flags] <command>
//
// Commands that require database access (eval, migrate, status, doctor)
// read the connection from --db, safeplan.yaml or SAFEPLAN_DATABASE_URL.
package main

func main() {
	Execute()
}
