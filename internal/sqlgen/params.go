package sqlgen

// Params selects the numeric representation used by universal mode.
type Params struct {
	// UseLog computes in log-probability space.
	UseLog bool
	// UseNull represents log(0) as NULL instead of '-Infinity'.
	UseNull bool
	// MissingTuples checks grouped products against the domain size so
	// that absent tuples count as false.
	MissingTuples bool
	// DomainSize is the number of active domain constants.
	DomainSize int
}

// zero is the representation of probability zero.
func (p Params) zero() Expr {
	switch {
	case p.UseLog && p.UseNull:
		return Null{}
	case p.UseLog:
		return Lit("-Infinity")
	default:
		return Int(0)
	}
}

// one is the representation of probability one.
func (p Params) one() Expr {
	if p.UseLog {
		return Int(0)
	}
	return Int(1)
}

// iunionVariant names the iunion aggregate family for these params.
func (p Params) iunionVariant() string {
	switch {
	case p.UseLog && p.UseNull:
		return "log_null"
	case p.UseLog:
		return "log_neginf"
	default:
		return ""
	}
}

// toLog wraps a linear probability expression for log-space output.
func (p Params) toLog(e Expr) Expr {
	if !p.UseLog {
		return e
	}
	return When(Gt{Left: e, Right: Int(0)}, Ln(e), p.zero())
}
