package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsafe is returned when no decomposition rule applies to a query.
	ErrUnsafe = errors.New("safeplan: no safe plan")

	// ErrNoSafeResidual is returned when no set of determinized relations
	// leaves a safe query. It wraps ErrUnsafe.
	ErrNoSafeResidual = fmt.Errorf("%w: no safe residual query", ErrUnsafe)

	// ErrMalformedPlan reports a plan that violates a code generation
	// invariant. It indicates a planner bug, not a property of the query.
	ErrMalformedPlan = errors.New("safeplan: malformed plan")
)

// IsUnsafeErr reports whether err means the query has no safe plan,
// including a failed residual search.
func IsUnsafeErr(err error) bool {
	return errors.Is(err, ErrUnsafe)
}

// IsNoSafeResidualErr reports whether err means residual search failed.
func IsNoSafeResidualErr(err error) bool {
	return errors.Is(err, ErrNoSafeResidual)
}

// IsMalformedPlanErr reports whether err is a code generation invariant
// violation.
func IsMalformedPlanErr(err error) bool {
	return errors.Is(err, ErrMalformedPlan)
}
