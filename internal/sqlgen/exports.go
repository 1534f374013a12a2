// This file re-exports the sqldsl types the generators use.

package sqlgen

import (
	"github.com/pthm/safeplan/internal/sqlgen/sqldsl"
)

// Expr interface and types
type (
	Expr   = sqldsl.Expr
	Col    = sqldsl.Col
	Lit    = sqldsl.Lit
	Raw    = sqldsl.Raw
	Int    = sqldsl.Int
	Bool   = sqldsl.Bool
	Null   = sqldsl.Null
	Func   = sqldsl.Func
	Alias  = sqldsl.Alias
	Paren  = sqldsl.Paren
	Eq     = sqldsl.Eq
	Ne     = sqldsl.Ne
	Lt     = sqldsl.Lt
	Gt     = sqldsl.Gt
	Sub    = sqldsl.Sub
	IsNull = sqldsl.IsNull
)

// Statements and tables
type (
	SQLer      = sqldsl.SQLer
	SelectStmt = sqldsl.SelectStmt
	JoinClause = sqldsl.JoinClause
	TableExpr  = sqldsl.TableExpr
	TableRef   = sqldsl.TableRef
	TableList  = sqldsl.TableList
	Subquery   = sqldsl.Subquery
	CTEDef     = sqldsl.CTEDef
	WithCTE    = sqldsl.WithCTE
	UnionAll   = sqldsl.UnionAll
	QueryBlock = sqldsl.QueryBlock
	Commented  = sqldsl.Commented
)

// Functions
var (
	And        = sqldsl.And
	Product    = sqldsl.Product
	Sum        = sqldsl.Sum
	Coalesce   = sqldsl.Coalesce
	When       = sqldsl.When
	SelectAs   = sqldsl.SelectAs
	Ln         = sqldsl.Ln
	Exp        = sqldsl.Exp
	Ior        = sqldsl.Ior
	ProdDouble = sqldsl.ProdDouble
	SumOf      = sqldsl.SumOf
	Count      = sqldsl.Count
	CountStar  = sqldsl.CountStar
	Random     = sqldsl.Random
	IUnion     = sqldsl.IUnion
	Ident      = sqldsl.Ident
	Sqlf       = sqldsl.Sqlf

	RenderUnionBlocks = sqldsl.RenderUnionBlocks
)

// Join types
const (
	InnerJoin     = sqldsl.InnerJoin
	LeftOuterJoin = sqldsl.LeftOuterJoin
	FullOuterJoin = sqldsl.FullOuterJoin
	CrossJoin     = sqldsl.CrossJoin
)
