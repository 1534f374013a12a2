package safeplan

import (
	"github.com/pthm/safeplan/pkg/entail"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/plan"
)

// Sentinel errors for the failure modes of planning and compilation.
// They are the package-level sentinels of pkg/plan, pkg/parser and
// pkg/entail, so errors.Is works against either name.
//
// Use the Is*Err helper functions to check for specific errors.
var (
	// ErrUnsafe is returned when no decomposition rule applies: the query
	// has no safe plan. FindSafeResidual can still find a residual query.
	ErrUnsafe = plan.ErrUnsafe

	// ErrMalformedPlan is returned when code generation meets a plan that
	// violates an invariant. It indicates a planner bug.
	ErrMalformedPlan = plan.ErrMalformedPlan

	// ErrNoSafeResidual is returned when no set of determinized relations
	// leaves a safe query. It wraps ErrUnsafe.
	ErrNoSafeResidual = plan.ErrNoSafeResidual

	// ErrParse is returned for malformed query text. The message carries
	// the byte offset of the error.
	ErrParse = parser.ErrParse

	// ErrOracleUnavailable is returned when the external prover binary
	// cannot be found.
	ErrOracleUnavailable = entail.ErrOracleUnavailable
)

// IsUnsafeErr returns true if err is or wraps ErrUnsafe.
func IsUnsafeErr(err error) bool {
	return plan.IsUnsafeErr(err)
}

// IsMalformedPlanErr returns true if err is or wraps ErrMalformedPlan.
func IsMalformedPlanErr(err error) bool {
	return plan.IsMalformedPlanErr(err)
}

// IsNoSafeResidualErr returns true if err is or wraps ErrNoSafeResidual.
func IsNoSafeResidualErr(err error) bool {
	return plan.IsNoSafeResidualErr(err)
}

// IsParseErr returns true if err is or wraps ErrParse.
func IsParseErr(err error) bool {
	return parser.IsParseErr(err)
}

// IsOracleUnavailableErr returns true if err is or wraps
// ErrOracleUnavailable.
func IsOracleUnavailableErr(err error) bool {
	return entail.IsOracleUnavailableErr(err)
}
