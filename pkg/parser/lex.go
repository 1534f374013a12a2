package parser

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceToken = iota
	negationToken
	nameToken
	starToken
	bangToken
	constraintsToken
	argumentsToken
	commaToken
	disjunctionToken
)

var whitespaceMatcher = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
var negationMatcher = parsly.NewToken(negationToken, "Negation", matcher.NewByte('~'))
var nameMatcher = parsly.NewToken(nameToken, "RelationName", &wordMatch{})
var starMatcher = parsly.NewToken(starToken, "Deterministic", matcher.NewByte('*'))
var bangMatcher = parsly.NewToken(bangToken, "Sampled", matcher.NewByte('!'))
var constraintsMatcher = parsly.NewToken(constraintsToken, "Constraints", matcher.NewBlock('[', ']', '\\'))
var argumentsMatcher = parsly.NewToken(argumentsToken, "Arguments", matcher.NewBlock('(', ')', '\\'))
var commaMatcher = parsly.NewToken(commaToken, "Comma", matcher.NewByte(','))
var disjunctionMatcher = parsly.NewToken(disjunctionToken, "Disjunction", &disjunctionMatch{})

// wordMatch matches [A-Za-z0-9_]+.
type wordMatch struct{}

func (w *wordMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	for pos < cursor.InputSize && isWordByte(cursor.Input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

// disjunctionMatch matches a lone "v" followed by whitespace.
type disjunctionMatch struct{}

func (d *disjunctionMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize || cursor.Input[pos] != 'v' {
		return 0
	}
	switch cursor.Input[pos+1] {
	case ' ', '\t', '\n', '\r':
		return 1
	}
	return 0
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}
