package spec

import "strings"

// SimpleExpr is a quantifier-free term. Every node except TupleExpr carries
// its own result type; types are supplied by whoever builds the node and
// are never inferred here.
type SimpleExpr interface {
	String() string
	isExpr()
}

// Lit is a typed literal.
type Lit struct {
	Type  Type
	Value Literal
}

// Var is a typed variable reference.
type Var struct {
	Type Type
	Name string
}

// Op applies a named operator or predicate symbol to its arguments.
// Arity is not checked.
type Op struct {
	Type Type
	Name string
	Args []SimpleExpr
}

// TupleExpr groups expressions positionally.
type TupleExpr struct {
	Elems []SimpleExpr
}

func (e Lit) String() string { return e.Value.String() }
func (e Var) String() string { return e.Name }

func (e Op) String() string {
	if IsComparison(e.Name) && len(e.Args) == 2 {
		return "(" + e.Args[0].String() + " " + e.Name + " " + e.Args[1].String() + ")"
	}
	if len(e.Args) == 0 {
		return e.Name
	}
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return e.Name + " " + strings.Join(parts, " ")
}

func (e TupleExpr) String() string {
	parts := make([]string, len(e.Elems))
	for i, el := range e.Elems {
		parts[i] = el.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (Lit) isExpr()       {}
func (Var) isExpr()       {}
func (Op) isExpr()        {}
func (TupleExpr) isExpr() {}

// Comparison operators accepted between two values.
var comparisons = map[string]bool{
	"<=": true,
	">=": true,
	"=":  true,
	"==": true,
	"!=": true,
	"<":  true,
	">":  true,
}

// IsComparison reports whether op is an infix comparison operator.
func IsComparison(op string) bool {
	return comparisons[op]
}

// TypeOf returns the result type of e. A TupleExpr has the tuple of its
// element types.
func TypeOf(e SimpleExpr) Type {
	switch e := e.(type) {
	case Lit:
		return e.Type
	case Var:
		return e.Type
	case Op:
		return e.Type
	case TupleExpr:
		elems := make([]Type, len(e.Elems))
		for i, el := range e.Elems {
			elems[i] = TypeOf(el)
		}
		return TupleType{Elems: elems}
	}
	return nil
}
