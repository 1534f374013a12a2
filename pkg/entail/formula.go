package entail

import (
	"strings"
)

// Formula is a sentence in the existential fragment described in the package
// documentation. Implementations: Atom, And, Or, Exists.
type Formula interface {
	// String renders the formula in a canonical text form. Two formulas with
	// the same String are the same formula; Memo relies on this.
	String() string

	write(b *strings.Builder, p9 bool, bound map[string]int)
}

// Atom is a predicate applied to arguments. Arguments bound by an enclosing
// Exists are variables; all others are constants.
type Atom struct {
	Predicate string
	Args      []string
	Negated   bool
}

// And is a conjunction. The empty conjunction is true.
type And []Formula

// Or is a disjunction. The empty disjunction is false.
type Or []Formula

// Exists binds Vars in Body.
type Exists struct {
	Vars []string
	Body Formula
}

var (
	// True is the empty conjunction.
	True Formula = And{}
	// False is the empty disjunction.
	False Formula = Or{}
)

func (a Atom) String() string   { return render(a, false) }
func (f And) String() string    { return render(f, false) }
func (f Or) String() string     { return render(f, false) }
func (e Exists) String() string { return render(e, false) }

// FormatProver9 renders f in Prover9 input syntax. Constants are prefixed with c_
// and every symbol is reduced to the identifier characters Prover9 accepts.
func FormatProver9(f Formula) string {
	return render(f, true)
}

func render(f Formula, p9 bool) string {
	var b strings.Builder
	f.write(&b, p9, map[string]int{})
	return b.String()
}

func (a Atom) write(b *strings.Builder, p9 bool, bound map[string]int) {
	if a.Negated {
		if p9 {
			b.WriteString("-")
		} else {
			b.WriteString("~")
		}
	}
	if p9 {
		b.WriteString(symbol(a.Predicate))
	} else {
		b.WriteString(a.Predicate)
	}
	b.WriteString("(")
	for i, arg := range a.Args {
		if i > 0 {
			b.WriteString(",")
		}
		switch {
		case !p9:
			b.WriteString(arg)
		case bound[arg] > 0:
			b.WriteString(symbol(arg))
		default:
			b.WriteString("c_" + symbol(arg))
		}
	}
	b.WriteString(")")
}

func (f And) write(b *strings.Builder, p9 bool, bound map[string]int) {
	if len(f) == 0 {
		if p9 {
			b.WriteString("$T")
		} else {
			b.WriteString("true")
		}
		return
	}
	writeJoined(b, []Formula(f), " & ", p9, bound)
}

func (f Or) write(b *strings.Builder, p9 bool, bound map[string]int) {
	if len(f) == 0 {
		if p9 {
			b.WriteString("$F")
		} else {
			b.WriteString("false")
		}
		return
	}
	writeJoined(b, []Formula(f), " | ", p9, bound)
}

func writeJoined(b *strings.Builder, fs []Formula, sep string, p9 bool, bound map[string]int) {
	if len(fs) == 1 {
		fs[0].write(b, p9, bound)
		return
	}
	b.WriteString("(")
	for i, f := range fs {
		if i > 0 {
			b.WriteString(sep)
		}
		b.WriteString("(")
		f.write(b, p9, bound)
		b.WriteString(")")
	}
	b.WriteString(")")
}

func (e Exists) write(b *strings.Builder, p9 bool, bound map[string]int) {
	if len(e.Vars) == 0 {
		e.Body.write(b, p9, bound)
		return
	}
	for _, v := range e.Vars {
		bound[v]++
	}
	if p9 {
		b.WriteString("(")
		for _, v := range e.Vars {
			b.WriteString("exists ")
			b.WriteString(symbol(v))
			b.WriteString(" ")
		}
		b.WriteString("(")
		e.Body.write(b, p9, bound)
		b.WriteString("))")
	} else {
		b.WriteString("exists ")
		b.WriteString(strings.Join(e.Vars, " "))
		b.WriteString(".(")
		e.Body.write(b, p9, bound)
		b.WriteString(")")
	}
	for _, v := range e.Vars {
		bound[v]--
	}
}

func symbol(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
