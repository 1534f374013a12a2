// Package compiler provides public APIs for compiling safe plans to SQL.
//
// This is a thin wrapper around internal/sqlgen that exposes only the public
// types and functions needed by external consumers. For installing the
// support functions the generated SQL calls, use pkg/migrator instead.
package compiler

import (
	"github.com/pthm/safeplan/internal/sqlgen"
)

// Params selects the numeric representation used by universal mode.
type Params = sqlgen.Params

// Result is the output of universal-mode generation.
type Result = sqlgen.Result

// ActiveDomain is the relation enumerating all domain constants.
const ActiveDomain = sqlgen.ActiveDomain

// Direct generates SQL computing the probability of a planned query.
var Direct = sqlgen.Direct

// Universal generates SQL computing the probability that a planned query is
// false, with missing tuples accounted for.
var Universal = sqlgen.Universal

// Lineage generates the lineage query of a DNF.
var Lineage = sqlgen.Lineage

// SampleQuery wraps direct-mode SQL so that sampled relations are replaced
// by a random possible world.
var SampleQuery = sqlgen.SampleQuery
