package spec

import (
	"fmt"
	"strings"
)

// FreeVar is a variable bound by a forall prefix.
type FreeVar struct {
	Type Type
	Name string
}

func (v FreeVar) String() string { return v.Name + " : " + v.Type.String() }

// TypedVar is an argument of a pre/post specification. It uses the reduced
// AssertionType vocabulary of the annotation files.
type TypedVar struct {
	Type AssertionType
	Name string
}

func (v TypedVar) String() string { return v.Name + " : " + v.Type.String() }

// ForallFormula is a quantifier prefix over a body. An empty prefix means
// the body is unquantified.
type ForallFormula struct {
	Vars []FreeVar
	Body Pred
}

func (f ForallFormula) String() string {
	if len(f.Vars) == 0 {
		return f.Body.String()
	}
	vars := make([]string, len(f.Vars))
	for i, v := range f.Vars {
		vars[i] = v.String()
	}
	return "forall " + strings.Join(vars, ",") + " . " + f.Body.String()
}

// Spec pairs a typed argument signature with a quantified formula; it is
// one pre- or post-condition.
type Spec struct {
	Args    []TypedVar
	Formula ForallFormula
}

func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Formula.String()
	}
	args := make([]string, len(s.Args))
	for i, a := range s.Args {
		args[i] = a.String()
	}
	return strings.Join(args, ",") + " ⊢ " + s.Formula.String()
}

// Env maps every argument and bound variable of s to its type.
func (s Spec) Env() map[string]Type {
	env := make(map[string]Type, len(s.Args)+len(s.Formula.Vars))
	for _, a := range s.Args {
		env[a.Name] = a.Type.Type()
	}
	for _, v := range s.Formula.Vars {
		env[v.Name] = v.Type
	}
	return env
}

// AssertionFile is one engine annotation file: the predicate vocabulary,
// an optional precondition and the postcondition.
type AssertionFile struct {
	Preds Predicates
	Pre   *Spec
	Post  Spec
}

// =============================================================================
// RESULTS
// =============================================================================

// Result is what the engine reports for a Setup: either counterexamples or
// the discovered specifications.
type Result interface {
	String() string
	isResult()
}

// Binding names a value inside a counterexample.
type Binding struct {
	Value Value
	Name  string
}

// NamedSpec is a discovered specification for the named component.
type NamedSpec struct {
	Spec Spec
	Name string
}

// Cex holds falsification witnesses, one slice of bindings per witness.
type Cex [][]Binding

// Discovered holds the specifications found by the engine.
type Discovered []NamedSpec

func (c Cex) String() string {
	var sb strings.Builder
	for i, witness := range c {
		fmt.Fprintf(&sb, "Cex %d:\n", i)
		for _, b := range witness {
			fmt.Fprintf(&sb, "\t%s -> %s\n", b.Name, b.Value)
		}
	}
	return sb.String()
}

func (d Discovered) String() string {
	var sb strings.Builder
	for _, ns := range d {
		fmt.Fprintf(&sb, "\t%s : %s\n", ns.Name, ns.Spec)
	}
	return sb.String()
}

func (Cex) isResult()        {}
func (Discovered) isResult() {}
