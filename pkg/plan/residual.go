package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/pthm/safeplan/pkg/query"
)

// Residual is a safe plan for a query in which some relations are treated as
// deterministic. The marked relations must be sampled to estimate the
// original query.
type Residual struct {
	// Marked lists the determinized relation names.
	Marked []string
	// Query is the residual query with the marked relations deterministic
	// and sampled.
	Query *query.DNF
	Plan  Node
	// Relations holds the first occurrence of each marked relation.
	Relations []*query.Relation
}

// FindSafeResidual determinizes subsets of the relation names of q, smallest
// first and then in lexicographic order, and returns the first that yields a
// safe plan. Errors other than ErrUnsafe abort the search.
func (b *Builder) FindSafeResidual(ctx context.Context, q *query.DNF) (*Residual, error) {
	names := q.RelationNames()

	var (
		found   *Residual
		lastErr error
	)
	query.Subsets(len(names), 1, func(idx []int) bool {
		marked := make(map[string]bool, len(idx))
		picked := make([]string, len(idx))
		for k, i := range idx {
			marked[names[i]] = true
			picked[k] = names[i]
		}
		residual := q.CopyWithDeterminism(marked)
		n, err := b.Build(ctx, residual)
		if err != nil {
			if !errors.Is(err, ErrUnsafe) {
				lastErr = err
				return false
			}
			b.logger.V(1).Info("residual unsafe", "marked", picked)
			return true
		}

		found = &Residual{Marked: picked, Query: residual, Plan: n}
		seen := make(map[string]bool)
		for _, r := range residual.Relations() {
			if marked[r.Name] && !seen[r.Name] {
				seen[r.Name] = true
				found.Relations = append(found.Relations, r)
			}
		}
		return false
	})
	if lastErr != nil {
		return nil, lastErr
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSafeResidual, q.String())
	}
	b.logger.Info("found safe residual", "marked", found.Marked)
	return found, nil
}
