package entail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Prover9 exit codes that carry a verdict. Every other exit status (fatal
// error, resource limits, signals) is reported as Unknown.
const (
	prover9Proved   = 0
	prover9SOSEmpty = 2
)

// Prover9 runs an external prover9 binary for every call. The process has no
// state between calls.
type Prover9 struct {
	// Path of the prover9 binary. Empty means "prover9" on PATH.
	Path string
	// MaxSeconds is passed to prover9 as assign(max_seconds, n). Zero omits it
	// and relies on the context deadline alone.
	MaxSeconds int
	Logger     logr.Logger
}

// NewProver9 resolves the binary and returns an oracle, or an error wrapping
// ErrOracleUnavailable if the binary cannot be found.
func NewProver9(path string, logger logr.Logger) (*Prover9, error) {
	if path == "" {
		path = "prover9"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	return &Prover9{Path: resolved, Logger: logger}, nil
}

// Input renders the prover9 input file for one entailment question.
func (p *Prover9) Input(goal Formula, assumptions ...Formula) string {
	var b strings.Builder
	b.WriteString("set(quiet).\nclear(print_initial_clauses).\nclear(print_kept).\nclear(print_given).\n")
	if p.MaxSeconds > 0 {
		fmt.Fprintf(&b, "assign(max_seconds, %d).\n", p.MaxSeconds)
	}
	b.WriteString("formulas(assumptions).\n")
	for _, a := range assumptions {
		b.WriteString(FormatProver9(a))
		b.WriteString(".\n")
	}
	b.WriteString("end_of_list.\nformulas(goals).\n")
	b.WriteString(FormatProver9(goal))
	b.WriteString(".\nend_of_list.\n")
	return b.String()
}

// Prove runs prover9 on the rendered input.
func (p *Prover9) Prove(ctx context.Context, goal Formula, assumptions ...Formula) Verdict {
	path := p.Path
	if path == "" {
		path = "prover9"
	}
	cmd := exec.CommandContext(ctx, path)
	cmd.Stdin = strings.NewReader(p.Input(goal, assumptions...))
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		p.Logger.V(2).Info("prover9 proved goal", "goal", goal.String(), "elapsed", elapsed)
		return Proved
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		switch exitErr.ExitCode() {
		case prover9Proved:
			return Proved
		case prover9SOSEmpty:
			p.Logger.V(2).Info("prover9 exhausted search", "goal", goal.String(), "elapsed", elapsed)
			return NotProved
		}
	}
	p.Logger.V(1).Info("prover9 gave no verdict", "goal", goal.String(), "error", err.Error(), "elapsed", elapsed)
	return Unknown
}

var _ Oracle = (*Prover9)(nil)
