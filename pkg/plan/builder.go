package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pthm/safeplan/pkg/entail"
	"github.com/pthm/safeplan/pkg/query"
)

// DefaultMaxDepth bounds the recursion of one planning run.
const DefaultMaxDepth = 64

// Builder constructs safe plans.
type Builder struct {
	backend  entail.Oracle
	memo     *entail.Memo
	timeout  time.Duration
	parallel bool
	maxDepth int
	logger   logr.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithOracle sets the entailment backend. Each Build call wraps it in a fresh
// Memo unless WithMemo is also given.
func WithOracle(o entail.Oracle) Option {
	return func(b *Builder) { b.backend = o }
}

// WithMemo shares one verdict cache across Build calls.
func WithMemo(m *entail.Memo) Option {
	return func(b *Builder) { b.memo = m }
}

// WithOracleTimeout sets the per-question deadline of the per-run Memo.
func WithOracleTimeout(d time.Duration) Option {
	return func(b *Builder) { b.timeout = d }
}

// WithParallel builds sibling sub-plans concurrently. Separator numbering is
// then no longer reproducible across runs.
func WithParallel(on bool) Option {
	return func(b *Builder) { b.parallel = on }
}

// WithMaxDepth bounds the recursion depth.
func WithMaxDepth(n int) Option {
	return func(b *Builder) { b.maxDepth = n }
}

// WithLogger sets the logger.
func WithLogger(l logr.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder returns a Builder. The default oracle is entail.Bounded.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		timeout:  entail.DefaultTimeout,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger.GetSink() == nil {
		b.logger = logr.Discard()
	}
	b.logger = b.logger.WithName("planner")
	if b.backend == nil {
		b.backend = entail.NewBounded(entail.WithBoundedLogger(b.logger))
	}
	return b
}

// run is the state of one planning invocation.
type run struct {
	b        *Builder
	oracle   entail.Oracle
	alloc    *Allocator
	log      logr.Logger
	parallel bool
}

func (b *Builder) newRun() *run {
	log := b.logger.WithValues("run", uuid.NewString())
	var oracle entail.Oracle = b.memo
	if b.memo == nil {
		oracle = entail.NewMemo(b.backend, entail.WithTimeout(b.timeout), entail.WithMemoLogger(log))
	}
	return &run{b: b, oracle: oracle, alloc: NewAllocator(), log: log, parallel: b.parallel}
}

// Build returns a safe plan for q, or an error wrapping ErrUnsafe.
func (b *Builder) Build(ctx context.Context, q *query.DNF) (Node, error) {
	r := b.newRun()
	r.log.V(1).Info("planning", "query", q.String())
	n, err := r.buildDNF(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (r *run) buildDNF(ctx context.Context, dnf *query.DNF, depth int) (Node, error) {
	if err := r.enter(ctx, depth); err != nil {
		return nil, err
	}
	cnf := r.normalize(ctx, dnf.ToCNF())

	if groups := dnf.SymbolComponents(); len(groups) > 1 {
		r.log.V(1).Info("independent union over conjuncts", "depth", depth, "groups", len(groups))
		subs := make([]subBuild, len(groups))
		for i, g := range groups {
			sub := query.NewDNF(g...)
			subs[i] = func(ctx context.Context) (Node, error) { return r.buildDNF(ctx, sub, depth+1) }
		}
		terms, err := r.all(ctx, subs)
		if err != nil {
			return nil, err
		}
		return &IndependentUnion{Q: cnf, Terms: terms, Separators: cnf.UsedSeparators()}, nil
	}
	return r.buildCNF(ctx, cnf, depth)
}

// normalize minimizes a CNF with tautology removal. If every disjunct is a
// tautology the oracle-free minimization is kept so the tautology reaches a
// ground tuple.
func (r *run) normalize(ctx context.Context, cnf *query.CNF) *query.CNF {
	min := cnf.Minimize(ctx, r.oracle)
	if len(min.Disjuncts) == 0 && len(cnf.Disjuncts) > 0 {
		return cnf.Minimize(ctx, nil)
	}
	return min
}

func (r *run) buildCNF(ctx context.Context, cnf *query.CNF, depth int) (Node, error) {
	if err := r.enter(ctx, depth); err != nil {
		return nil, err
	}
	if len(cnf.Disjuncts) == 0 {
		return nil, fmt.Errorf("%w: empty query", ErrUnsafe)
	}

	if groups := cnf.SymbolComponents(); len(groups) > 1 {
		r.log.V(1).Info("independent join", "depth", depth, "groups", len(groups))
		subs := make([]subBuild, len(groups))
		for i, g := range groups {
			sub := query.NewCNF(cloneDisjuncts(g)...)
			subs[i] = func(ctx context.Context) (Node, error) { return r.buildCNF(ctx, r.normalize(ctx, sub), depth+1) }
		}
		terms, err := r.all(ctx, subs)
		if err != nil {
			return nil, err
		}
		return &IndependentJoin{Q: cnf, Terms: terms, Separators: cnf.UsedSeparators()}, nil
	}

	if len(cnf.Disjuncts) > 1 {
		return r.inclusionExclusion(ctx, cnf, depth)
	}

	d := cnf.Disjuncts[0]
	if groups := d.SymbolComponents(); len(groups) > 1 {
		r.log.V(1).Info("independent union over components", "depth", depth, "groups", len(groups))
		subs := make([]subBuild, len(groups))
		for i, g := range groups {
			sub := query.NewCNF(query.NewDisjunctiveQuery(cloneComponents(g)...))
			subs[i] = func(ctx context.Context) (Node, error) { return r.buildCNF(ctx, r.normalize(ctx, sub), depth+1) }
		}
		terms, err := r.all(ctx, subs)
		if err != nil {
			return nil, err
		}
		return &IndependentUnion{Q: cnf, Terms: terms, Separators: cnf.UsedSeparators()}, nil
	}

	if !d.HasVariables() {
		r.log.V(1).Info("ground tuple", "depth", depth, "disjunct", d.String())
		return &GroundTuple{Q: cnf, Disjunct: d, Relation: d.Components[0].Relations[0]}, nil
	}

	if sep, ok := d.Separator(); ok {
		return r.project(ctx, cnf, d, sep, depth)
	}

	return r.decompose(ctx, d, depth)
}

func (r *run) inclusionExclusion(ctx context.Context, cnf *query.CNF, depth int) (Node, error) {
	var (
		terms  []*query.CNF
		coeffs []int
	)
	query.Subsets(len(cnf.Disjuncts), 1, func(idx []int) bool {
		var comps []*query.Component
		for _, i := range idx {
			for _, c := range cnf.Disjuncts[i].Components {
				comps = append(comps, c.Clone())
			}
		}
		terms = append(terms, query.NewCNF(query.NewDisjunctiveQuery(comps...)))
		if len(idx)%2 == 0 {
			coeffs = append(coeffs, 1)
		} else {
			coeffs = append(coeffs, -1)
		}
		return true
	})

	// ascending pair order keeps the merged coefficients reproducible
	for i := range terms {
		if coeffs[i] == 0 {
			continue
		}
		for j := i + 1; j < len(terms); j++ {
			if coeffs[j] == 0 {
				continue
			}
			if entail.Equivalent(ctx, r.oracle, terms[i].Formula(), terms[j].Formula()) == entail.Proved {
				coeffs[i] += coeffs[j]
				coeffs[j] = 0
			}
		}
	}

	var subs []subBuild
	var kept []int
	for i, t := range terms {
		if coeffs[i] == 0 {
			continue
		}
		sub := t
		kept = append(kept, coeffs[i])
		subs = append(subs, func(ctx context.Context) (Node, error) { return r.buildCNF(ctx, r.normalize(ctx, sub), depth+1) })
	}
	r.log.V(1).Info("inclusion-exclusion", "depth", depth, "terms", len(terms), "kept", len(kept))

	plans, err := r.all(ctx, subs)
	if err != nil {
		return nil, err
	}
	n := &InclusionExclusion{Q: cnf, Separators: cnf.UsedSeparators()}
	for i, p := range plans {
		n.Terms = append(n.Terms, Term{Coeff: kept[i], Plan: p})
	}
	return n, nil
}

func (r *run) project(ctx context.Context, cnf *query.CNF, d *query.DisjunctiveQuery, sep []query.Variable, depth int) (Node, error) {
	n := &IndependentProject{
		Q:          cnf.Clone(),
		Disjunct:   d,
		Separator:  sep,
		DomainSize: sep[0].DomainSize,
		Separators: d.UsedSeparators(),
	}
	n.Replacement = r.alloc.NextAttribute()

	applied := d.Clone()
	applied.ApplySeparator(sep, n.Replacement)
	var conjuncts []*query.ConjunctiveQuery
	for _, c := range applied.Components {
		conjuncts = append(conjuncts, query.NewConjunctiveQuery(c.Decompose()...))
	}
	n.ChildQuery = query.NewDNF(conjuncts...)

	names := make([]string, len(sep))
	for i, v := range sep {
		names[i] = v.Name
	}
	r.log.V(1).Info("independent project", "depth", depth, "separator", names, "replacement", n.Replacement)

	child, err := r.buildDNF(ctx, n.ChildQuery, depth+1)
	if err != nil {
		return nil, err
	}
	n.Child = child
	return n, nil
}

// decompose searches for a conjunction C of at least two relations of d that
// implies d, is satisfiable and is not already implied by a component of d.
// The query is then rewritten as C v d. Candidates containing a negated
// relation are skipped.
func (r *run) decompose(ctx context.Context, d *query.DisjunctiveQuery, depth int) (Node, error) {
	rels := d.Relations()
	goal := d.Formula()

	var rewritten *query.DNF
	query.Subsets(len(rels), 2, func(idx []int) bool {
		if ctx.Err() != nil {
			return false
		}
		proposed := &query.Component{}
		for _, i := range idx {
			if rels[i].Negated {
				return true
			}
			proposed.Relations = append(proposed.Relations, rels[i].Clone())
		}
		f := proposed.Formula()
		if r.oracle.Prove(ctx, goal, f) != entail.Proved {
			return true
		}
		// undecided satisfiability counts as unsatisfiable
		if r.oracle.Prove(ctx, entail.False, f) != entail.NotProved {
			return true
		}
		for _, c := range d.Components {
			if proposed.ContainedIn(c) {
				return true
			}
		}
		conjuncts := []*query.ConjunctiveQuery{query.NewConjunctiveQuery(proposed.Decompose()...)}
		for _, c := range d.Components {
			conjuncts = append(conjuncts, query.NewConjunctiveQuery(c.Clone()))
		}
		rewritten = query.NewDNF(conjuncts...)
		return false
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rewritten == nil {
		r.log.V(1).Info("no rule applies", "depth", depth, "disjunct", d.String())
		return nil, fmt.Errorf("%w: %s", ErrUnsafe, d.String())
	}
	r.log.V(1).Info("rewrote disjunct", "depth", depth, "query", rewritten.String())
	return r.buildDNF(ctx, rewritten, depth+1)
}

func (r *run) enter(ctx context.Context, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > r.b.maxDepth {
		return fmt.Errorf("%w: recursion deeper than %d", ErrUnsafe, r.b.maxDepth)
	}
	return nil
}

// subBuild builds one child plan under ctx.
type subBuild func(ctx context.Context) (Node, error)

// all runs the sub-builds in order, or concurrently when parallel building
// is enabled. Results keep the order of subs. In parallel mode the first
// failure cancels the remaining siblings.
func (r *run) all(ctx context.Context, subs []subBuild) ([]Node, error) {
	out := make([]Node, len(subs))
	if !r.parallel || len(subs) < 2 {
		for i, sub := range subs {
			n, err := sub(ctx)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, sub := range subs {
		g.Go(func() error {
			n, err := sub(gctx)
			if err != nil {
				return err
			}
			out[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func cloneDisjuncts(ds []*query.DisjunctiveQuery) []*query.DisjunctiveQuery {
	out := make([]*query.DisjunctiveQuery, len(ds))
	for i, d := range ds {
		out[i] = d.Clone()
	}
	return out
}

func cloneComponents(cs []*query.Component) []*query.Component {
	out := make([]*query.Component, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}
