package sqldsl

import "testing"

func TestFunctions_SQL(t *testing.T) {
	p := Col{Column: "pUse"}
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"ln", Ln(p), "ln(pUse)"},
		{"exp", Exp(Col{Table: "q1", Column: "pUse"}), "exp(q1.pUse)"},
		{"ior", Ior(Coalesce(p, Int(0))), "ior(COALESCE(pUse, 0))"},
		{"prod_double", ProdDouble(p), "prod_double(pUse)"},
		{"count star", CountStar(), "COUNT(*)"},
		{"count column", Count(p), "COUNT(pUse)"},
		{"sum", SumOf(p), "SUM(pUse)"},
		{"random", Random(), "random()"},
		{
			name: "linear iunion",
			expr: IUnion("", 2, p, Col{Column: "trueOnMissing"}),
			want: "iunion_2_false_on_missing(pUse, trueOnMissing)",
		},
		{
			name: "log iunion",
			expr: IUnion("log_neginf", 0, p, Col{Column: "trueOnMissing"}),
			want: "iunion_log_neginf_0_false_on_missing(pUse, trueOnMissing)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.SQL(); got != tt.want {
				t.Errorf("SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIUnionFunc(t *testing.T) {
	if got := IUnionFunc("log_null", 3); got != "iunion_log_null_3_false_on_missing" {
		t.Errorf("IUnionFunc() = %q", got)
	}
}
