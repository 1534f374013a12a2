package sqldsl

import (
	"strings"
	"testing"
)

func TestExpressions_SQL(t *testing.T) {
	p := Col{Table: "q1", Column: "pUse"}
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"literal escaping", Lit("it's"), "'it''s'"},
		{"coalesce collapses", Coalesce(p), "q1.pUse"},
		{"coalesce", Coalesce(p, Int(1)), "COALESCE(q1.pUse, 1)"},
		{"complement", Sub{Left: Int(1), Right: p}, "1 - q1.pUse"},
		{"nested difference", Sub{Left: Int(1), Right: Sub{Left: Int(1), Right: p}}, "1 - (1 - q1.pUse)"},
		{"product", Product(Int(-1), Int(2), p), "(-1 * 2 * q1.pUse)"},
		{"single product", Product(p), "q1.pUse"},
		{"empty product", Product(), "1"},
		{"sum", Sum(p, Int(1)), "(q1.pUse + 1)"},
		{"empty sum", Sum(), "0"},
		{"and", And(Eq{Left: Col{Column: "a"}, Right: Int(1)}, nil, Ne{Left: Col{Column: "b"}, Right: Int(2)}), "(a = 1 AND b <> 2)"},
		{"empty and", And(), "TRUE"},
		{"case", When(Gt{Left: p, Right: Int(0)}, Ln(p), Lit("-Infinity")), "CASE WHEN q1.pUse > 0 THEN ln(q1.pUse) ELSE '-Infinity' END"},
		{"alias", SelectAs(Bool(true), "trueOnMissing"), "TRUE AS trueOnMissing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.SQL(); got != tt.want {
				t.Errorf("SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSelectStmt_SQL(t *testing.T) {
	stmt := SelectStmt{
		ColumnExprs: []Expr{Col{Column: "c1"}, SelectAs(Ior(Coalesce(Col{Column: "pUse"}, Int(0))), "pUse")},
		FromExpr:    Subquery{Query: Raw("SELECT c1, p AS pUse FROM R"), Alias: "q2"},
		GroupBy:     []Expr{Col{Column: "c1"}},
		Having:      Gt{Left: CountStar(), Right: Int(0)},
	}
	want := "SELECT c1, ior(COALESCE(pUse, 0)) AS pUse\n" +
		"FROM (\n    SELECT c1, p AS pUse FROM R\n) AS q2\n" +
		"GROUP BY c1\n" +
		"HAVING COUNT(*) > 0"
	if got := stmt.SQL(); got != want {
		t.Errorf("SelectStmt.SQL() =\n%s\nwant\n%s", got, want)
	}
}

func TestSelectStmt_EmptyWhere(t *testing.T) {
	stmt := SelectStmt{ColumnExprs: []Expr{Raw("1 AS pUse")}, FromExpr: TableRef{Name: "R"}, Where: And()}
	if got := stmt.SQL(); got != "SELECT 1 AS pUse\nFROM R" {
		t.Errorf("SelectStmt.SQL() = %q", got)
	}
}

func TestJoinClause_SQL(t *testing.T) {
	q := TableAs("q_2", "q2")
	tests := []struct {
		name string
		join JoinClause
		want string
	}{
		{"inner without condition", JoinClause{Type: InnerJoin, TableExpr: q}, "INNER JOIN q_2 q2 ON TRUE"},
		{"empty condition", JoinClause{Type: FullOuterJoin, TableExpr: q, On: And()}, "FULL OUTER JOIN q_2 q2 ON TRUE"},
		{
			name: "left outer",
			join: JoinClause{Type: LeftOuterJoin, TableExpr: q, On: Eq{Left: Col{Table: "q2", Column: "sep_var_1"}, Right: Col{Table: "q1", Column: "sep_var_1"}}},
			want: "LEFT OUTER JOIN q_2 q2 ON q2.sep_var_1 = q1.sep_var_1",
		},
		{"cross", JoinClause{Type: CrossJoin, TableExpr: TableAs("A", "A1")}, "CROSS JOIN A A1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.join.SQL(); got != tt.want {
				t.Errorf("JoinClause.SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnionAll_SQL(t *testing.T) {
	got := UnionAll{Queries: []SQLer{Raw("SELECT 1"), Raw("SELECT 2")}}.SQL()
	if got != "SELECT 1\nUNION ALL\nSELECT 2" {
		t.Errorf("UnionAll.SQL() = %q", got)
	}
	got = RenderUnionBlocks([]QueryBlock{{Comments: []string{"R1"}, Query: Raw("SELECT 1")}, {Query: Raw("SELECT 2")}})
	if !strings.HasPrefix(got, "-- R1\nSELECT 1\nUNION\nSELECT 2") {
		t.Errorf("RenderUnionBlocks() = %q", got)
	}
}

func TestTableList(t *testing.T) {
	got := TableList{TableRef{Name: "R"}, TableRef{Name: "A"}}.TableSQL()
	if got != "R, A" {
		t.Errorf("TableList.TableSQL() = %q", got)
	}
}

func TestIdent(t *testing.T) {
	if got := Ident("generic-c"); got != "generic_c" {
		t.Errorf("Ident() = %q", got)
	}
}

func TestSqlf(t *testing.T) {
	got := Sqlf(`
		SELECT %s

		FROM %s`, "v0", "R")
	if got != "SELECT v0\nFROM R" {
		t.Errorf("Sqlf() = %q", got)
	}
	if Optf(false, "WHERE %s", "x") != "" {
		t.Error("Optf(false) should be empty")
	}
}
