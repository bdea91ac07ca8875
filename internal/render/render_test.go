package render

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arwen/internal/parser"
	"arwen/internal/spec"
)

const concat = `let preds = [| "mem"; "hd" |]

let post (l1 : Customstk.t) (l2 : Customstk.t) (l3 : Customstk.t) (u : int) =
  (iff (mem l3 u) (mem l1 u || mem l2 u) && implies (hd l3 u) (hd l1 u || hd l2 u))
`

const push = `let preds = [| "len"; "ord" |]
let pre (q : Batchedq.t) (x : int) =
  (!len q 0)

let post (q : Batchedq.t) (x : int) (nu : Batchedq.t) =
  forall u : int,w : int . (implies (ord q u w) (ord nu u w) && ((u <= w) || (u == x)))
`

func TestFileRoundTrip(t *testing.T) {
	for name, src := range map[string]string{"concat": concat, "push": push} {
		t.Run(name, func(t *testing.T) {
			f, err := parser.ParseFile(src)
			require.NoError(t, err)

			out := File(f)
			assert.Equal(t, src, out)

			again, err := parser.ParseFile(out)
			require.NoError(t, err)
			if diff := cmp.Diff(f, again, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("reparse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecl(t *testing.T) {
	s := spec.Spec{Formula: spec.ForallFormula{Body: spec.True{}}}
	assert.Equal(t, "let post =\n  true\n", Decl(Post, s))

	ite := spec.Spec{
		Args: []spec.TypedVar{{Type: spec.ABool{}, Name: "b"}},
		Formula: spec.ForallFormula{Body: spec.Ite{
			Cond: spec.Atom{Expr: spec.Var{Type: spec.Bool, Name: "b"}},
			Then: spec.True{},
			Else: spec.Not{P: spec.True{}},
		}},
	}
	assert.Equal(t, "let pre (b : bool) =\n  (if b then true else (!true))\n", Decl(Pre, ite))
}

func TestWrite(t *testing.T) {
	f := &spec.AssertionFile{
		Preds: spec.Predicates{},
		Post:  spec.Spec{Formula: spec.ForallFormula{Body: spec.True{}}},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, f))
	assert.Equal(t, "let preds = [|  |]\n\nlet post =\n  true\n", buf.String())
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	f, err := parser.ParseFile(concat)
	require.NoError(t, err)

	path, err := WriteFile(dir, "customstk_assertion.ml", f)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "customstk_assertion.ml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, concat, string(data))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	_, err = WriteFile(dir, "../escape.ml", f)
	assert.Error(t, err)
	_, err = WriteFile(dir, "", f)
	assert.Error(t, err)
}
