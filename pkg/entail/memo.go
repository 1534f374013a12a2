package entail

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is the per-question deadline applied by Memo.
const DefaultTimeout = 5 * time.Second

// memoEntry stores one verdict. Unknown verdicts are cached as well so a
// question that timed out is not retried within the same run.
type memoEntry struct {
	verdict   Verdict
	expiresAt time.Time // zero means no expiry
}

// Memo wraps an oracle with a per-question timeout and a cache keyed by the
// goal and the unordered set of assumptions. It is safe for concurrent use;
// concurrent identical questions share one backend call.
type Memo struct {
	backend Oracle
	timeout time.Duration
	ttl     time.Duration
	logger  logr.Logger

	mu    sync.RWMutex
	items map[string]memoEntry
	group singleflight.Group
}

// MemoOption configures a Memo.
type MemoOption func(*Memo)

// WithTimeout sets the per-question deadline. Zero or negative disables it.
func WithTimeout(d time.Duration) MemoOption {
	return func(m *Memo) { m.timeout = d }
}

// WithTTL sets the time-to-live for cached verdicts. A TTL of 0 (default)
// keeps verdicts for the lifetime of the Memo.
func WithTTL(ttl time.Duration) MemoOption {
	return func(m *Memo) { m.ttl = ttl }
}

// WithMemoLogger sets the logger used to report Unknown verdicts.
func WithMemoLogger(l logr.Logger) MemoOption {
	return func(m *Memo) { m.logger = l }
}

// NewMemo wraps backend.
func NewMemo(backend Oracle, opts ...MemoOption) *Memo {
	m := &Memo{
		backend: backend,
		timeout: DefaultTimeout,
		logger:  logr.Discard(),
		items:   make(map[string]memoEntry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Key returns the cache key for a question. Assumption order does not matter.
func Key(goal Formula, assumptions ...Formula) string {
	as := make([]string, len(assumptions))
	for i, a := range assumptions {
		as[i] = a.String()
	}
	sort.Strings(as)
	return goal.String() + " <= " + strings.Join(as, " ; ")
}

// Prove answers from the cache or asks the backend under the configured
// timeout.
func (m *Memo) Prove(ctx context.Context, goal Formula, assumptions ...Formula) Verdict {
	key := Key(goal, assumptions...)
	if v, ok := m.get(key); ok {
		return v
	}

	res, _, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.get(key); ok {
			return v, nil
		}
		callCtx := ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		start := time.Now()
		v := m.backend.Prove(callCtx, goal, assumptions...)
		if v == Unknown {
			m.logger.V(0).Info("entailment undecided, treating conservatively",
				"goal", goal.String(), "assumptions", len(assumptions), "elapsed", time.Since(start))
			if ctx.Err() != nil {
				// the caller went away; do not pin Unknown for later callers
				return v, nil
			}
		}
		m.set(key, v)
		return v, nil
	})
	return res.(Verdict)
}

func (m *Memo) get(key string) (Verdict, bool) {
	m.mu.RLock()
	entry, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return Unknown, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return Unknown, false
	}
	return entry.verdict, true
}

func (m *Memo) set(key string, v Verdict) {
	entry := memoEntry{verdict: v}
	if m.ttl > 0 {
		entry.expiresAt = time.Now().Add(m.ttl)
	}
	m.mu.Lock()
	m.items[key] = entry
	m.mu.Unlock()
}

// Size returns the number of cached verdicts.
func (m *Memo) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Clear drops every cached verdict.
func (m *Memo) Clear() {
	m.mu.Lock()
	m.items = make(map[string]memoEntry)
	m.mu.Unlock()
}

var _ Oracle = (*Memo)(nil)
