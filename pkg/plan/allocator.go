package plan

import (
	"strconv"
	"sync/atomic"
)

// Allocator hands out identifiers for one planning or code generation run.
// Subquery numbers alias generated subqueries; attribute numbers name
// separator replacements. It is safe for concurrent use, but numbering is
// only reproducible when a single goroutine draws from it.
type Allocator struct {
	subquery  atomic.Int64
	attribute atomic.Int64
}

// NewAllocator returns an allocator starting at 1.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// NextSubquery returns the next subquery number.
func (a *Allocator) NextSubquery() int {
	return int(a.subquery.Add(1))
}

// NextAttribute returns the next separator replacement identifier.
func (a *Allocator) NextAttribute() string {
	return strconv.FormatInt(a.attribute.Add(1), 10)
}
