package check

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"arwen/internal/ipc"
	"arwen/internal/parser"
	"arwen/internal/source"
	"arwen/internal/spec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) *spec.AssertionFile {
	t.Helper()
	f, err := parser.ParseFile(src)
	require.NoError(t, err)
	return f
}

func TestPredicatesDeclared(t *testing.T) {
	f := parse(t, `let preds = [| "mem"; "hd" |]
let post (l1 : Customstk.t) (l2 : Customstk.t) (l3 : Customstk.t) =
  forall u : int . (hd l3 u) || (iff (mem l3 u) (mem l1 u || mem l2 u)) && (u >= 0)
`)
	r := Predicates(f)
	assert.True(t, r.OK(), r.Violations)
	assert.Empty(t, r.Violations)
	assert.NoError(t, r.Err())
}

func TestPredicatesUndeclaredAndUnknown(t *testing.T) {
	f := parse(t, `let preds = [| "mem" |]
let pre (l : Customstk.t) =
  len l 0
let post (l : Customstk.t) (x : int) =
  hd l x && frob l && mem l x && hd l 1
`)
	r := Predicates(f)
	require.False(t, r.OK())
	require.Len(t, r.Violations, 3)

	assert.Equal(t, ViolationUndeclaredPredicate, r.Violations[0].Type)
	assert.Equal(t, "pre", r.Violations[0].Location)
	assert.Contains(t, r.Violations[0].Description, `"len"`)

	assert.Equal(t, ViolationUndeclaredPredicate, r.Violations[1].Type)
	assert.Equal(t, "post", r.Violations[1].Location)
	assert.Contains(t, r.Violations[1].Description, `"hd"`)

	assert.Equal(t, ViolationUnknownSymbol, r.Violations[2].Type)
	assert.Contains(t, r.Violations[2].Description, `"frob"`)

	var err error = r.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 problems")
}

func TestPredicatesBoolVariable(t *testing.T) {
	f := parse(t, `let preds = [| |]
let post (b : bool) =
  b
`)
	assert.Empty(t, Predicates(f).Violations)
}

func TestSetup(t *testing.T) {
	good := ipc.Setup{
		SourceFile:    "data/customstk.ml",
		AssertionFile: "data/customstk_concat.ml",
		OutputDir:     "out",
		ClientName:    "concat",
		Predicates:    spec.Predicates{spec.Member, spec.Head},
	}
	assert.Empty(t, Setup(good).Violations)

	r := Setup(ipc.Setup{ClientName: " "})
	assert.False(t, r.OK())
	assert.True(t, r.Has(ViolationMissingField))
	assert.True(t, r.Has(ViolationNoPredicates))
	assert.Len(t, r.Violations, 5)

	dup := good
	dup.Predicates = spec.Predicates{spec.Member, spec.Member}
	r = Setup(dup)
	assert.True(t, r.OK(), "duplicates are a warning")
	assert.True(t, r.Has(ViolationDuplicatePredicate))
	assert.NoError(t, r.Err())
}

func TestClientDefined(t *testing.T) {
	reader := source.NewReader()
	defer reader.Close()
	src, err := reader.Read(context.Background(), "stk.ml", []byte("let rec concat l1 l2 = match l1 with [] -> l2 | x :: r -> x :: concat r l2\n"))
	require.NoError(t, err)

	assert.True(t, ClientDefined(src, "concat").OK())
	r := ClientDefined(src, "push")
	assert.True(t, r.Has(ViolationClientMissing))
	assert.Contains(t, r.Error(), `"push"`)
}

func TestAll(t *testing.T) {
	dir := t.TempDir()
	ml := filepath.Join(dir, "customstk.ml")
	ann := filepath.Join(dir, "customstk_concat.ml")
	require.NoError(t, os.WriteFile(ml, []byte("let push x s = x :: s\n"), 0o644))
	require.NoError(t, os.WriteFile(ann, []byte(`let preds = [| "mem"; "hd" |]
let post (x : int) (s : Customstk.t) (nu : Customstk.t) =
  hd nu x
`), 0o644))

	reader := source.NewReader()
	defer reader.Close()
	s := ipc.Setup{
		SourceFile:    ml,
		AssertionFile: ann,
		OutputDir:     dir,
		ClientName:    "push",
		Predicates:    spec.Predicates{spec.Head},
	}
	r := All(context.Background(), reader, s)
	assert.True(t, r.OK(), r.Violations)
	// mem is declared in the file but not sent
	assert.True(t, r.Has(ViolationUndeclaredPredicate))

	s.ClientName = "pop"
	s.AssertionFile = filepath.Join(dir, "missing.ml")
	r = All(context.Background(), reader, s)
	assert.True(t, r.Has(ViolationParse))
	assert.True(t, r.Has(ViolationClientMissing))
}

func TestViolationString(t *testing.T) {
	v := Violation{Type: ViolationClientMissing, Location: "a.ml", Description: "gone"}
	assert.Equal(t, "error: a.ml: gone (client_missing)", v.String())
	v.Warning = true
	assert.Equal(t, "warning: a.ml: gone (client_missing)", v.String())
}
