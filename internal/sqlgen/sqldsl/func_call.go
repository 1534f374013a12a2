package sqldsl

// Scalar and aggregate functions the generated queries rely on. ior,
// prod_double and the iunion family are installed by the migrator on
// PostgreSQL and registered by the SQLite driver hook.

// Ln renders ln(e).
func Ln(e Expr) Func { return Func{Name: "ln", Args: []Expr{e}} }

// Exp renders exp(e).
func Exp(e Expr) Func { return Func{Name: "exp", Args: []Expr{e}} }

// Ior renders the independent-or aggregate 1 - prod(1 - p).
func Ior(e Expr) Func { return Func{Name: "ior", Args: []Expr{e}} }

// ProdDouble renders the product aggregate.
func ProdDouble(e Expr) Func { return Func{Name: "prod_double", Args: []Expr{e}} }

// SumOf renders SUM(e).
func SumOf(e Expr) Func { return Func{Name: "SUM", Args: []Expr{e}} }

// Count renders COUNT(e).
func Count(e Expr) Func { return Func{Name: "COUNT", Args: []Expr{e}} }

// CountStar renders COUNT(*).
func CountStar() Func { return Count(Star{}) }

// Random renders random().
func Random() Func { return Func{Name: "random"} }

// IUnionFunc names the grouped independent-union aggregate for the given
// numeric representation and number of false-on-missing children.
func IUnionFunc(variant string, falseOnMissing int) string {
	if variant == "" {
		return "iunion_" + Int(falseOnMissing).SQL() + "_false_on_missing"
	}
	return "iunion_" + variant + "_" + Int(falseOnMissing).SQL() + "_false_on_missing"
}

// IUnion renders a call to the grouped independent-union aggregate.
func IUnion(variant string, falseOnMissing int, p, trueOnMissing Expr) Func {
	return Func{Name: IUnionFunc(variant, falseOnMissing), Args: []Expr{p, trueOnMissing}}
}
