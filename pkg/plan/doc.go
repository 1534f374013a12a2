// Package plan builds safe plans for probabilistic unions of conjunctive
// queries.
//
// A Builder applies the decomposition rules in a fixed order: independent
// union over the conjuncts, independent join over the CNF disjuncts,
// inclusion-exclusion, independent union over the components of a single
// disjunct, ground tuple, independent project on a separator, and finally a
// rewrite of the disjunct through an implied sub-conjunction. A query for
// which no rule applies has no safe plan and Build returns an error wrapping
// ErrUnsafe.
//
// Side conditions are discharged by an entail.Oracle. Undecided questions
// resolve to the branch that keeps the plan correct: terms are not merged and
// rewrite candidates are skipped.
//
// FindSafeResidual searches for the smallest set of relations whose
// determinization leaves a safe query.
package plan
