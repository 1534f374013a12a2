package parser_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/safeplan/pkg/parser"
	"github.com/pthm/safeplan/pkg/query"
)

func TestParseDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/parse", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "parse":
			q, err := parser.Parse(strings.TrimSpace(d.Input))
			if err != nil {
				return fmt.Sprintf("error: %v", err)
			}
			var b strings.Builder
			fmt.Fprintln(&b, q.String())
			for i, c := range q.Conjuncts {
				fmt.Fprintf(&b, "conjunct %d: %d component(s)\n", i, len(c.Components))
			}
			return b.String()
		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}

func TestParseFlags(t *testing.T) {
	q, err := parser.Parse("~R*!(x),S*(x,y),T(y)")
	require.NoError(t, err)
	rels := q.Relations()
	require.Len(t, rels, 3)

	assert.True(t, rels[0].Negated)
	assert.True(t, rels[0].Deterministic)
	assert.True(t, rels[0].Sampled)
	assert.True(t, rels[1].Deterministic)
	assert.False(t, rels[1].Sampled)
	assert.False(t, rels[2].Deterministic)
}

func TestParseBindsInequalities(t *testing.T) {
	q, err := parser.Parse("S[c,-c,*](x,y)")
	require.NoError(t, err)
	r := q.Relations()[0]
	require.Len(t, r.Args, 2)

	x := r.Args[0].(query.Variable)
	require.NotNil(t, x.Inequality)
	assert.True(t, x.IsGenericInequality())
	assert.Equal(t, "c", x.Inequality.Value)

	y := r.Args[1].(query.Variable)
	assert.Nil(t, y.Inequality)
	assert.Equal(t, 2, r.TableColumn(1))
}

func TestParseErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"R(x",
		"R(x) S(y)",
		"A(x)",
		"R[1,*](x,y)",
		"R[1,q1](x)",
		"S[-c,-c](x,y)",
		"R(x-y)",
		"R(x) v",
	} {
		_, err := parser.Parse(text)
		assert.ErrorIs(t, err, parser.ErrParse, "query %q", text)
		assert.True(t, parser.IsParseErr(err))
	}
}
