package facts

import (
	"strings"
	"testing"

	"arwen/internal/parser"
	"arwen/internal/spec"

	"github.com/google/mangle/ast"
	"github.com/google/mangle/parse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discovered(t *testing.T) spec.Discovered {
	t.Helper()
	post, err := parser.ParsePostSpec("let post (l1 : Customstk.t) (l2 : Customstk.t) (l3 : Customstk.t) =\n  forall u : int . iff (mem l3 u) (mem l1 u || mem l2 u)\n")
	require.NoError(t, err)
	return spec.Discovered{{Name: "post", Spec: post}}
}

func predicates(atoms []ast.Atom) []string {
	out := make([]string, len(atoms))
	for i, a := range atoms {
		out[i] = a.Predicate.Symbol
	}
	return out
}

func TestFromDiscovered(t *testing.T) {
	d := discovered(t)
	atoms := FromResult("concat", d)
	assert.Equal(t, []string{PredDiscoveredSpec, PredSpecUses}, predicates(atoms))

	head := atoms[0]
	require.Len(t, head.Args, 4)
	assert.Equal(t, ast.String("concat"), head.Args[0])
	assert.Equal(t, ast.String("post"), head.Args[1])
	assert.Equal(t, ast.Number(int64(d[0].Spec.Formula.Body.Size())), head.Args[2])
	assert.Equal(t, ast.String(d[0].Spec.String()), head.Args[3])

	assert.Equal(t, ast.String("mem"), atoms[1].Args[2])
}

func TestFromCex(t *testing.T) {
	cex := spec.Cex{
		{{Name: "l1", Value: spec.ListValue{1, 2}}, {Name: "x", Value: spec.IntValue(-3)}},
		{{Name: "l1", Value: spec.ListValue{}}},
	}
	atoms := FromResult("concat", cex)
	assert.Equal(t, []string{PredCexCount, PredCexBinding, PredCexBinding, PredCexBinding}, predicates(atoms))
	assert.Equal(t, ast.Number(2), atoms[0].Args[1])
	assert.Equal(t, ast.Number(1), atoms[3].Args[0])
	assert.Equal(t, ast.String("x"), atoms[2].Args[1])
	assert.Equal(t, ast.String(spec.IntValue(-3).String()), atoms[2].Args[2])
}

func TestProgramParses(t *testing.T) {
	atoms := FromResult("concat", discovered(t))
	atoms = append(atoms, FromResult("concat", spec.Cex{{{Name: "x", Value: spec.IntValue(4)}}})...)

	src, err := Program(atoms)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(src, "#"))

	unit, err := parse.Unit(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, unit.Clauses, len(atoms))
	for i, c := range unit.Clauses {
		assert.Equal(t, atoms[i].Predicate.Symbol, c.Head.Predicate.Symbol)
		assert.Empty(t, c.Premises)
	}
	assert.Equal(t, ast.String("concat"), unit.Clauses[0].Head.Args[0])
}

func TestProgramEmpty(t *testing.T) {
	src, err := Program(nil)
	require.NoError(t, err)
	assert.Equal(t, "# arwen run facts\n", src)
}
