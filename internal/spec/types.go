// Package spec holds the specification language shared with the
// lemma-discovery engine: types, literals, simple expressions, predicate
// trees, quantified formulas and the results the engine reports back.
//
// Every value is an immutable tree with structural equality. String()
// renders the engine's own concrete syntax.
package spec

import (
	"strconv"
	"strings"
)

// =============================================================================
// TYPES
// =============================================================================

// Type is a symbolic type of the specification language.
type Type interface {
	String() string
	isType()
}

// BasicType is one of the closed set of built-in types.
type BasicType int

const (
	Bool BasicType = iota
	Int
	IntList
	IntTree
	IntTreeI
	IntTreeB
)

var basicTypeNames = [...]string{
	Bool:     "bool",
	Int:      "int",
	IntList:  "int list",
	IntTree:  "int tree",
	IntTreeI: "int treei",
	IntTreeB: "int treeb",
}

// wire tags, as the engine spells them
var basicTypeTags = [...]string{
	Bool:     "Bool",
	Int:      "Int",
	IntList:  "IntList",
	IntTree:  "IntTree",
	IntTreeI: "IntTreeI",
	IntTreeB: "IntTreeB",
}

func (t BasicType) String() string {
	if int(t) < 0 || int(t) >= len(basicTypeNames) {
		return "BasicType(" + strconv.Itoa(int(t)) + ")"
	}
	return basicTypeNames[t]
}

// Generic is an abstract or user-defined type such as Customstk.t.
type Generic struct {
	Name string
}

func (g Generic) String() string { return g.Name }

// TupleType is the product of its element types.
type TupleType struct {
	Elems []Type
}

func (t TupleType) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Arrow is a function type.
type Arrow struct {
	Dom Type
	Cod Type
}

func (a Arrow) String() string {
	return "(" + a.Dom.String() + " -> " + a.Cod.String() + ")"
}

func (BasicType) isType() {}
func (Generic) isType()   {}
func (TupleType) isType() {}
func (Arrow) isType()     {}

// =============================================================================
// ASSERTION TYPES
// =============================================================================

// AssertionType is the reduced type vocabulary used for the typed
// arguments of a pre/post specification.
type AssertionType interface {
	String() string
	// Type widens the assertion type into the full type vocabulary.
	Type() Type
	isAssertionType()
}

// ABool and AInt are the built-in assertion types.
type (
	ABool struct{}
	AInt  struct{}
)

// AGeneric names an abstract type in an argument list.
type AGeneric struct {
	Name string
}

func (ABool) String() string      { return "bool" }
func (AInt) String() string       { return "int" }
func (g AGeneric) String() string { return g.Name }

func (ABool) Type() Type      { return Bool }
func (AInt) Type() Type       { return Int }
func (g AGeneric) Type() Type { return Generic{Name: g.Name} }

func (ABool) isAssertionType()    {}
func (AInt) isAssertionType()     {}
func (AGeneric) isAssertionType() {}

// =============================================================================
// LITERALS
// =============================================================================

// Literal is a constant appearing in an expression.
type Literal interface {
	String() string
	isLiteral()
}

type (
	IntLit     int64
	BoolLit    bool
	IntListLit []int64
)

func (l IntLit) String() string     { return strconv.FormatInt(int64(l), 10) }
func (l BoolLit) String() string    { return strconv.FormatBool(bool(l)) }
func (l IntListLit) String() string { return joinInts(l) }

func (IntLit) isLiteral()     {}
func (BoolLit) isLiteral()    {}
func (IntListLit) isLiteral() {}

// =============================================================================
// VALUES
// =============================================================================

// Value is a runtime value echoed by the engine in a counterexample.
// Values are only ever decoded, never produced by the parser.
type Value interface {
	String() string
	isValue()
}

type (
	ListValue []int64
	IntValue  int64
	BoolValue bool
	// NotADt marks a binding that is not an abstract-data-type value.
	NotADt struct{}
)

func (v ListValue) String() string { return joinInts(v) }
func (v IntValue) String() string  { return strconv.FormatInt(int64(v), 10) }
func (v BoolValue) String() string { return strconv.FormatBool(bool(v)) }
func (NotADt) String() string      { return "NotADt" }

func (ListValue) isValue() {}
func (IntValue) isValue()  {}
func (BoolValue) isValue() {}
func (NotADt) isValue()    {}

func joinInts(xs []int64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatInt(x, 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
