package entail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
)

// DefaultMaxGroundClauses bounds the ground clause set built for one
// satisfiability check.
const DefaultMaxGroundClauses = 200_000

// DefaultMaxBranches bounds the number of existential branches a formula may
// expand into.
const DefaultMaxBranches = 4096

var errBudget = errors.New("entail: budget exceeded")

// Bounded is the built-in decision procedure. The zero value is usable.
type Bounded struct {
	// MaxGroundClauses caps the grounded clause set. Zero means
	// DefaultMaxGroundClauses.
	MaxGroundClauses int
	// MaxBranches caps the disjunctive expansion of either side. Zero means
	// DefaultMaxBranches.
	MaxBranches int
	Logger      logr.Logger
}

// BoundedOption configures a Bounded prover.
type BoundedOption func(*Bounded)

// WithMaxGroundClauses sets the ground clause budget.
func WithMaxGroundClauses(n int) BoundedOption {
	return func(b *Bounded) { b.MaxGroundClauses = n }
}

// WithBoundedLogger sets the logger.
func WithBoundedLogger(l logr.Logger) BoundedOption {
	return func(b *Bounded) { b.Logger = l }
}

// NewBounded creates a Bounded prover.
func NewBounded(opts ...BoundedOption) *Bounded {
	b := &Bounded{Logger: logr.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type term struct {
	name  string
	isVar bool
}

type literal struct {
	pred string
	args []term
	neg  bool
}

// branch is an existentially closed conjunction of literals.
type branch struct {
	vars []string
	lits []literal
}

// Prove decides whether the conjunction of assumptions entails goal.
func (p *Bounded) Prove(ctx context.Context, goal Formula, assumptions ...Formula) Verdict {
	v, err := p.prove(ctx, goal, assumptions)
	if err != nil {
		p.Logger.V(2).Info("bounded prover gave up", "goal", goal.String(), "reason", err.Error())
		return Unknown
	}
	return v
}

func (p *Bounded) prove(ctx context.Context, goal Formula, assumptions []Formula) (Verdict, error) {
	ex := &expander{max: p.maxBranches()}
	hyp, err := ex.expand(And(assumptions), nil)
	if err != nil {
		return Unknown, err
	}
	negGoal, err := ex.expand(goal, nil)
	if err != nil {
		return Unknown, err
	}

	for i, h := range hyp {
		if err := ctx.Err(); err != nil {
			return Unknown, err
		}
		facts := skolemize(h, i)
		sat, err := p.satisfiable(ctx, facts, negGoal)
		if err != nil {
			return Unknown, err
		}
		if sat {
			// a Herbrand model of this branch falsifies the goal
			return NotProved, nil
		}
	}
	return Proved, nil
}

func (p *Bounded) maxBranches() int {
	if p.MaxBranches > 0 {
		return p.MaxBranches
	}
	return DefaultMaxBranches
}

func (p *Bounded) maxClauses() int {
	if p.MaxGroundClauses > 0 {
		return p.MaxGroundClauses
	}
	return DefaultMaxGroundClauses
}

// satisfiable checks facts together with the negation of every goal branch,
// grounded over the Herbrand universe of both.
func (p *Bounded) satisfiable(ctx context.Context, facts []literal, goal []branch) (bool, error) {
	universe := herbrandUniverse(facts, goal)
	s := newSolver()
	for _, f := range facts {
		s.addClause([]int{s.lit(f, nil)})
	}
	budget := p.maxClauses()
	for _, g := range goal {
		n := 1
		for range g.vars {
			n *= len(universe)
			if n > budget {
				return false, fmt.Errorf("%w: %d ground clauses", errBudget, n)
			}
		}
		budget -= n
		if budget < 0 {
			return false, errBudget
		}
		assign := make(map[string]string, len(g.vars))
		var ground func(i int)
		ground = func(i int) {
			if i == len(g.vars) {
				clause := make([]int, 0, len(g.lits))
				for _, l := range g.lits {
					negated := l
					negated.neg = !l.neg
					clause = append(clause, s.lit(negated, assign))
				}
				s.addClause(clause)
				return
			}
			for _, c := range universe {
				assign[g.vars[i]] = c
				ground(i + 1)
			}
		}
		ground(0)
	}
	return s.solve(ctx)
}

func skolemize(b branch, n int) []literal {
	sk := make(map[string]string, len(b.vars))
	for _, v := range b.vars {
		sk[v] = fmt.Sprintf("%s#sk%d", v, n)
	}
	out := make([]literal, 0, len(b.lits))
	for _, l := range b.lits {
		g := literal{pred: l.pred, neg: l.neg, args: make([]term, len(l.args))}
		for i, a := range l.args {
			if a.isVar {
				g.args[i] = term{name: sk[a.name]}
			} else {
				g.args[i] = a
			}
		}
		out = append(out, g)
	}
	return out
}

func herbrandUniverse(facts []literal, goal []branch) []string {
	seen := map[string]bool{}
	var universe []string
	add := func(l literal) {
		for _, a := range l.args {
			if !a.isVar && !seen[a.name] {
				seen[a.name] = true
				universe = append(universe, a.name)
			}
		}
	}
	for _, f := range facts {
		add(f)
	}
	for _, g := range goal {
		for _, l := range g.lits {
			add(l)
		}
	}
	if len(universe) == 0 {
		// domains are non-empty
		universe = append(universe, "#e")
	}
	return universe
}

// expander turns a formula into its disjunction of existential branches,
// renaming bound variables apart.
type expander struct {
	max   int
	fresh int
}

func (e *expander) expand(f Formula, scope map[string]string) ([]branch, error) {
	switch f := f.(type) {
	case Atom:
		l := literal{pred: fmt.Sprintf("%s/%d", f.Predicate, len(f.Args)), neg: f.Negated, args: make([]term, len(f.Args))}
		for i, a := range f.Args {
			if v, ok := scope[a]; ok {
				l.args[i] = term{name: v, isVar: true}
			} else {
				l.args[i] = term{name: a}
			}
		}
		return []branch{{lits: []literal{l}}}, nil
	case And:
		out := []branch{{}}
		for _, child := range f {
			bs, err := e.expand(child, scope)
			if err != nil {
				return nil, err
			}
			if len(out)*len(bs) > e.max {
				return nil, fmt.Errorf("%w: %d branches", errBudget, len(out)*len(bs))
			}
			next := make([]branch, 0, len(out)*len(bs))
			for _, a := range out {
				for _, b := range bs {
					next = append(next, branch{
						vars: append(append([]string{}, a.vars...), b.vars...),
						lits: append(append([]literal{}, a.lits...), b.lits...),
					})
				}
			}
			out = next
		}
		return out, nil
	case Or:
		var out []branch
		for _, child := range f {
			bs, err := e.expand(child, scope)
			if err != nil {
				return nil, err
			}
			out = append(out, bs...)
			if len(out) > e.max {
				return nil, fmt.Errorf("%w: %d branches", errBudget, len(out))
			}
		}
		return out, nil
	case Exists:
		inner := make(map[string]string, len(scope)+len(f.Vars))
		for k, v := range scope {
			inner[k] = v
		}
		renamed := make([]string, len(f.Vars))
		for i, v := range f.Vars {
			e.fresh++
			renamed[i] = fmt.Sprintf("%s#%d", v, e.fresh)
			inner[v] = renamed[i]
		}
		bs, err := e.expand(f.Body, inner)
		if err != nil {
			return nil, err
		}
		for i := range bs {
			bs[i].vars = append(append([]string{}, renamed...), bs[i].vars...)
		}
		return bs, nil
	case nil:
		return nil, errors.New("entail: nil formula")
	default:
		return nil, fmt.Errorf("entail: unsupported formula %T", f)
	}
}

func groundKey(l literal, assign map[string]string) string {
	var b strings.Builder
	b.WriteString(l.pred)
	b.WriteString("(")
	for i, a := range l.args {
		if i > 0 {
			b.WriteString(",")
		}
		if a.isVar {
			b.WriteString(assign[a.name])
		} else {
			b.WriteString(a.name)
		}
	}
	b.WriteString(")")
	return b.String()
}

var _ Oracle = (*Bounded)(nil)
