// Package sql provides the embedded SQL support functions for safeplan.
package sql

import (
	_ "embed"
)

// The SQL is embedded at compile time so the binary can install the
// functions without external files.

// MaxFalseOnMissing is the largest n with an iunion_*_<n>_false_on_missing
// aggregate. It bounds the number of false-on-missing children of one
// independent union in universal mode.
const MaxFalseOnMissing = 8

// FunctionsSQL defines the aggregates the generated queries call:
//   - ior: independent-or, 1 - prod(1 - p)
//   - prod_double: product of doubles
//   - iunion_[log_null_|log_neginf_]<n>_false_on_missing: grouped
//     independent union with missing-tuple semantics
//
// Applied via CREATE OR REPLACE for idempotence.
//
//go:embed functions.sql
var FunctionsSQL string
