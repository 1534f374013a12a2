// Package entail answers entailment questions over the first-order sentences
// that the planner derives from queries.
//
// # Formulas
//
// Queries translate into a small fragment of first-order logic: atoms
// (optionally negated), conjunction, disjunction and existential
// quantification. There are no function symbols and no equality; constraint
// annotations are folded into predicate names by the query package. Every
// argument that is not bound by an enclosing Exists is a constant.
//
// # Oracles
//
// An Oracle decides whether a set of assumptions proves a goal and answers
// Proved, NotProved or Unknown. Two implementations are provided:
//
//   - Bounded: an in-process decision procedure. The assumptions are
//     Skolemized into ground facts, the negated goal becomes a set of
//     universally quantified clauses, and the clauses are grounded over the
//     Herbrand universe and handed to a DPLL solver. For the fragment above the
//     procedure is complete; the only source of Unknown is the ground-clause
//     budget or the caller's deadline.
//   - Prover9: runs an external prover9 binary per call.
//
// Memo wraps any Oracle with a per-call timeout and memoizes verdicts keyed
// by the goal and the sorted assumption set.
package entail
