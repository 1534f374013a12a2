// Package sqlgen turns safe plans into SQL.
//
// # Overview
//
// Every plan operator has a closed-form probability, so a plan compiles to a
// single SELECT. The generated SQL reads base relations with columns
// v0..vk and p, the active domain relation A(v0), and a handful of support
// functions (ior, prod_double and the iunion_* family) installed by the
// migrator.
//
// # Modes
//
// Direct mode computes the probability of the query. Each subquery yields one
// row per binding of the separators still in scope, with columns c<id> and a
// pUse probability column. A missing row counts as probability zero.
//
// Universal mode computes the probability of the dual query, the negation of
// the plan read as a CNF. It tracks per subquery whether a missing row means
// true or false, which lets it evaluate queries whose tuples may be absent
// from storage. Params selects linear or log-space arithmetic and whether
// incomplete products are detected against the domain size.
//
// # Identifiers
//
// Subquery aliases are drawn from a plan.Allocator owned by one generation
// call, so generating the same plan twice yields identical text.
//
// # Errors
//
// Generation fails with an error wrapping plan.ErrMalformedPlan when a plan
// violates an invariant the SQL relies on. These indicate a planner bug, not
// a property of the query.
package sqlgen
