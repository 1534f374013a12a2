package entail

import (
	"context"
	"errors"
)

// ErrOracleUnavailable is returned when an external prover cannot be started.
var ErrOracleUnavailable = errors.New("safeplan: entailment oracle unavailable")

// IsOracleUnavailableErr returns true if err is or wraps ErrOracleUnavailable.
func IsOracleUnavailableErr(err error) bool {
	return errors.Is(err, ErrOracleUnavailable)
}

// Verdict is the answer to an entailment question.
type Verdict int

const (
	// Unknown means the oracle gave up: timeout, budget, or backend failure.
	// Callers must resolve Unknown conservatively.
	Unknown Verdict = iota
	// Proved means the assumptions entail the goal.
	Proved
	// NotProved means the assumptions do not entail the goal.
	NotProved
)

func (v Verdict) String() string {
	switch v {
	case Proved:
		return "proved"
	case NotProved:
		return "not-proved"
	default:
		return "unknown"
	}
}

// Oracle decides whether assumptions prove goal.
type Oracle interface {
	Prove(ctx context.Context, goal Formula, assumptions ...Formula) Verdict
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, goal Formula, assumptions ...Formula) Verdict

// Prove calls f.
func (f OracleFunc) Prove(ctx context.Context, goal Formula, assumptions ...Formula) Verdict {
	return f(ctx, goal, assumptions...)
}

// IsTautology proves goal from no assumptions.
func IsTautology(ctx context.Context, o Oracle, goal Formula) Verdict {
	return o.Prove(ctx, goal)
}

// Equivalent reports whether a and b entail each other. It is Proved only if
// both directions are proved, NotProved if either direction is refuted, and
// Unknown otherwise.
func Equivalent(ctx context.Context, o Oracle, a, b Formula) Verdict {
	ab := o.Prove(ctx, b, a)
	if ab == NotProved {
		return NotProved
	}
	ba := o.Prove(ctx, a, b)
	switch {
	case ba == NotProved:
		return NotProved
	case ab == Proved && ba == Proved:
		return Proved
	default:
		return Unknown
	}
}
