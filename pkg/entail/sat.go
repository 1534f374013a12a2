package entail

import (
	"context"
)

// solver is a small DPLL solver over ground literals. Variables are numbered
// from 1; a literal is +v or -v.
type solver struct {
	atoms   map[string]int
	clauses [][]int
	empty   bool
	steps   int
}

func newSolver() *solver {
	return &solver{atoms: map[string]int{}}
}

func (s *solver) lit(l literal, assign map[string]string) int {
	key := groundKey(l, assign)
	v, ok := s.atoms[key]
	if !ok {
		v = len(s.atoms) + 1
		s.atoms[key] = v
	}
	if l.neg {
		return -v
	}
	return v
}

func (s *solver) addClause(c []int) {
	if len(c) == 0 {
		s.empty = true
		return
	}
	// drop tautological clauses and duplicate literals
	seen := make(map[int]bool, len(c))
	out := make([]int, 0, len(c))
	for _, l := range c {
		if seen[-l] {
			return
		}
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	s.clauses = append(s.clauses, out)
}

func (s *solver) solve(ctx context.Context) (bool, error) {
	if s.empty {
		return false, nil
	}
	assign := make([]int8, len(s.atoms)+1)
	return s.dpll(ctx, assign)
}

func value(assign []int8, l int) int8 {
	if l > 0 {
		return assign[l]
	}
	return -assign[-l]
}

func set(assign []int8, l int) {
	if l > 0 {
		assign[l] = 1
	} else {
		assign[-l] = -1
	}
}

func (s *solver) dpll(ctx context.Context, assign []int8) (bool, error) {
	s.steps++
	if s.steps%1024 == 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
	}

	// unit propagation
	for {
		progress := false
		for _, c := range s.clauses {
			unassigned, unit := 0, 0
			satisfied := false
			for _, l := range c {
				switch value(assign, l) {
				case 1:
					satisfied = true
				case 0:
					unassigned++
					unit = l
				}
				if satisfied {
					break
				}
			}
			if satisfied {
				continue
			}
			if unassigned == 0 {
				return false, nil
			}
			if unassigned == 1 {
				set(assign, unit)
				progress = true
			}
		}
		if !progress {
			break
		}
	}

	// pick the first unassigned literal of an open clause
	branchLit := 0
	for _, c := range s.clauses {
		open := 0
		satisfied := false
		for _, l := range c {
			v := value(assign, l)
			if v == 1 {
				satisfied = true
				break
			}
			if v == 0 && open == 0 {
				open = l
			}
		}
		if !satisfied && open != 0 {
			branchLit = open
			break
		}
	}
	if branchLit == 0 {
		return true, nil
	}

	for _, choice := range []int{branchLit, -branchLit} {
		next := make([]int8, len(assign))
		copy(next, assign)
		set(next, choice)
		ok, err := s.dpll(ctx, next)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
