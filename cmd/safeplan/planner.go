package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/pthm/safeplan/internal/cli"
	"github.com/pthm/safeplan/pkg/entail"
	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/plan"
	"github.com/pthm/safeplan/pkg/query"
)

// parseQuery parses the query argument.
func parseQuery(text string) (*query.DNF, error) {
	q, err := parser.Parse(text)
	if err != nil {
		return nil, cli.QueryParseError("parsing query", err)
	}
	return q, nil
}

// newBuilder creates a plan builder from the planner configuration.
func newBuilder() (*plan.Builder, error) {
	var oracle entail.Oracle
	switch cfg.Planner.Oracle {
	case cli.OracleProver9:
		p, err := entail.NewProver9(cfg.Planner.Prover9Path, logger.WithName("prover9"))
		if err != nil {
			return nil, cli.ConfigError("planner.oracle", err)
		}
		oracle = p
	default:
		oracle = entail.NewBounded(
			entail.WithMaxGroundClauses(cfg.Planner.MaxGroundClauses),
			entail.WithBoundedLogger(logger.WithName("bounded")),
		)
	}

	opts := []plan.Option{
		plan.WithOracle(oracle),
		plan.WithParallel(cfg.Planner.Parallel),
		plan.WithLogger(logger),
	}
	if cfg.Planner.OracleTimeout > 0 {
		opts = append(opts, plan.WithOracleTimeout(cfg.Planner.OracleTimeout))
	}
	return plan.NewBuilder(opts...), nil
}

// buildPlan parses text and builds its safe plan.
func buildPlan(ctx context.Context, text string) (*query.DNF, plan.Node, error) {
	q, err := parseQuery(text)
	if err != nil {
		return nil, nil, err
	}
	b, err := newBuilder()
	if err != nil {
		return nil, nil, err
	}
	n, err := b.Build(ctx, q)
	if err != nil {
		return nil, nil, planError(err)
	}
	return q, n, nil
}

func planError(err error) error {
	switch {
	case errors.Is(err, plan.ErrNoSafeResidual):
		return cli.UnsafeError("no safe residual", err)
	case errors.Is(err, plan.ErrUnsafe):
		return cli.UnsafeError("query is unsafe", err)
	default:
		return cli.GeneralError("planning", err)
	}
}

// codegenError classifies an SQL generation error.
func codegenError(err error) error {
	return cli.GeneralError(fmt.Sprintf("generating %s SQL", cfg.Codegen.Mode), err)
}
