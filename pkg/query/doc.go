// Package query is the logical model of probabilistic unions of conjunctive
// queries.
//
// A query is built from Relation occurrences. A Component is a connected
// conjunction of relations; ConjunctiveQuery and DisjunctiveQuery combine
// components, and DNF and CNF combine those in turn. Every type offers
// homomorphism-based containment, minimization, connected-component
// analysis and translation into entailment formulas.
//
// Values are owned, not shared: operations that specialize a query (applying
// a separator, marking relations deterministic) work on a Clone.
//
// Containment and minimization are exponential. Containment tries every
// variable mapping between two components and Component.Minimize tries every
// subset of a component's relations. Both are fine for the handful of atoms
// a probabilistic query carries.
package query
