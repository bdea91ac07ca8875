// Package facts exports engine results as Mangle facts so that runs can be
// queried with Datalog alongside other project knowledge.
//
// Predicates written:
//
//	discovered_spec(Client, Name, Size, Text)
//	spec_uses(Client, Name, Symbol)
//	cex_binding(Index, Var, Value)
//	cex_count(Client, N)
package facts

import (
	"fmt"
	"sort"
	"strings"

	"arwen/internal/spec"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
)

const (
	PredDiscoveredSpec = "discovered_spec"
	PredSpecUses       = "spec_uses"
	PredCexBinding     = "cex_binding"
	PredCexCount       = "cex_count"
)

// FromResult converts one engine result for client into atoms.
func FromResult(client string, r spec.Result) []ast.Atom {
	var atoms []ast.Atom
	switch r := r.(type) {
	case spec.Discovered:
		for _, ns := range r {
			atoms = append(atoms, ast.NewAtom(PredDiscoveredSpec,
				ast.String(client),
				ast.String(ns.Name),
				ast.Number(int64(ns.Spec.Formula.Body.Size())),
				ast.String(ns.Spec.String()),
			))
			for _, sym := range symbols(ns.Spec) {
				atoms = append(atoms, ast.NewAtom(PredSpecUses,
					ast.String(client), ast.String(ns.Name), ast.String(sym)))
			}
		}
	case spec.Cex:
		atoms = append(atoms, ast.NewAtom(PredCexCount, ast.String(client), ast.Number(int64(len(r)))))
		for i, witness := range r {
			for _, b := range witness {
				atoms = append(atoms, ast.NewAtom(PredCexBinding,
					ast.Number(int64(i)), ast.String(b.Name), ast.String(b.Value.String())))
			}
		}
	}
	return atoms
}

// symbols lists the distinct operator names applied in s, sorted.
func symbols(s spec.Spec) []string {
	seen := make(map[string]bool)
	var visit func(e spec.SimpleExpr)
	visit = func(e spec.SimpleExpr) {
		switch e := e.(type) {
		case spec.Op:
			seen[e.Name] = true
			for _, a := range e.Args {
				visit(a)
			}
		case spec.TupleExpr:
			for _, el := range e.Elems {
				visit(el)
			}
		}
	}
	for _, e := range spec.Atoms(s.Formula.Body) {
		visit(e)
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Program renders atoms as Mangle source, one fact per line, and checks
// that the result parses and passes analysis.
func Program(atoms []ast.Atom) (string, error) {
	var sb strings.Builder
	sb.WriteString("# arwen run facts\n")
	for _, a := range atoms {
		sb.WriteString(a.String())
		sb.WriteString(".\n")
	}
	source := sb.String()

	unit, err := parse.Unit(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("mangle parse failed: %w", err)
	}
	if _, err := analysis.AnalyzeOneUnit(unit, nil); err != nil {
		return "", fmt.Errorf("mangle analysis failed: %w", err)
	}
	return source, nil
}
