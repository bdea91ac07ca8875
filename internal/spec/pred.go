package spec

import "strings"

// Pred is a quantifier-free boolean formula. Each node owns its children.
type Pred interface {
	String() string
	// Size is the node count of the tree, used by callers as a
	// complexity metric.
	Size() int
	isPred()
}

type (
	// True is the trivially valid formula.
	True struct{}

	// Atom lifts a boolean-valued expression into a formula.
	Atom struct {
		Expr SimpleExpr
	}

	Implies struct {
		L, R Pred
	}

	// Ite is if-then-else. It renders as (if c then t else e), which the
	// annotation grammar does not read back.
	Ite struct {
		Cond, Then, Else Pred
	}

	Not struct {
		P Pred
	}

	And []Pred
	Or  []Pred

	Iff struct {
		L, R Pred
	}
)

func (True) String() string   { return "true" }
func (p Atom) String() string { return p.Expr.String() }

func (p Implies) String() string {
	return "implies " + operand(p.L) + " " + operand(p.R)
}

func (p Ite) String() string {
	return "(if " + p.Cond.String() + " then " + p.Then.String() + " else " + p.Else.String() + ")"
}

func (p Not) String() string { return "(!" + p.P.String() + ")" }
func (p And) String() string { return join(p, " && ") }
func (p Or) String() string  { return join(p, " || ") }

func (p Iff) String() string {
	return "iff " + operand(p.L) + " " + operand(p.R)
}

func join(ps []Pred, sep string) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// operand renders an argument of the prefix forms implies/iff, adding
// parentheses only when p does not already render as a group.
func operand(p Pred) string {
	if grouped(p) {
		return p.String()
	}
	return "(" + p.String() + ")"
}

func grouped(p Pred) bool {
	switch p := p.(type) {
	case And, Or, Not, Ite:
		return true
	case Atom:
		switch e := p.Expr.(type) {
		case TupleExpr:
			return true
		case Op:
			return IsComparison(e.Name) && len(e.Args) == 2
		}
	}
	return false
}

func (True) Size() int      { return 1 }
func (Atom) Size() int      { return 1 }
func (p Implies) Size() int { return 1 + p.L.Size() + p.R.Size() }
func (p Ite) Size() int     { return 1 + p.Cond.Size() + p.Then.Size() + p.Else.Size() }
func (p Not) Size() int     { return 1 + p.P.Size() }
func (p And) Size() int     { return 1 + sumSize(p) }
func (p Or) Size() int      { return 1 + sumSize(p) }
func (p Iff) Size() int     { return 1 + p.L.Size() + p.R.Size() }

func sumSize(ps []Pred) int {
	n := 0
	for _, p := range ps {
		n += p.Size()
	}
	return n
}

func (True) isPred()    {}
func (Atom) isPred()    {}
func (Implies) isPred() {}
func (Ite) isPred()     {}
func (Not) isPred()     {}
func (And) isPred()     {}
func (Or) isPred()      {}
func (Iff) isPred()     {}

// Walk visits p and its descendants in depth-first, left-to-right order.
// If fn returns false the children of that node are skipped.
func Walk(p Pred, fn func(Pred) bool) {
	if p == nil || !fn(p) {
		return
	}
	switch p := p.(type) {
	case Implies:
		Walk(p.L, fn)
		Walk(p.R, fn)
	case Iff:
		Walk(p.L, fn)
		Walk(p.R, fn)
	case Ite:
		Walk(p.Cond, fn)
		Walk(p.Then, fn)
		Walk(p.Else, fn)
	case Not:
		Walk(p.P, fn)
	case And:
		for _, c := range p {
			Walk(c, fn)
		}
	case Or:
		for _, c := range p {
			Walk(c, fn)
		}
	}
}

// Atoms returns the expressions of every Atom in p, in order.
func Atoms(p Pred) []SimpleExpr {
	var out []SimpleExpr
	Walk(p, func(n Pred) bool {
		if a, ok := n.(Atom); ok {
			out = append(out, a.Expr)
		}
		return true
	})
	return out
}
