package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customstk = `type t = int list

let empty = []

let push x s = x :: s

let rec concat l1 l2 =
  match l1 with
  | [] -> l2
  | x :: rest -> x :: concat rest l2

module Helpers = struct
  let hidden x = x
end
`

func read(t *testing.T, src string) *File {
	t.Helper()
	r := NewReader()
	defer r.Close()
	f, err := r.Read(context.Background(), "customstk.ml", []byte(src))
	require.NoError(t, err)
	return f
}

func TestReadTopLevelValues(t *testing.T) {
	f := read(t, customstk)
	assert.Equal(t, []string{"empty", "push", "concat"}, f.Names())
	assert.False(t, f.Partial)

	b, ok := f.Lookup("concat")
	require.True(t, ok)
	assert.True(t, b.Rec)
	assert.Equal(t, 7, b.Line)

	b, ok = f.Lookup("push")
	require.True(t, ok)
	assert.False(t, b.Rec)
	assert.Equal(t, 5, b.Line)
}

func TestNestedBindingsNotReported(t *testing.T) {
	f := read(t, customstk)
	_, ok := f.Lookup("hidden")
	assert.False(t, ok)
	_, ok = f.Lookup("rest")
	assert.False(t, ok)
}

func TestTypesAndModules(t *testing.T) {
	f := read(t, customstk)
	var kinds = map[string]Kind{}
	for _, b := range f.Bindings {
		kinds[b.Name] = b.Kind
	}
	assert.Equal(t, Type, kinds["t"])
	assert.Equal(t, Module, kinds["Helpers"])
	_, ok := f.Lookup("t")
	assert.False(t, ok, "types are not values")
}

func TestAndBindings(t *testing.T) {
	f := read(t, "let rec even n = n = 0 || odd (n - 1)\nand odd n = n <> 0 && even (n - 1)\n")
	assert.Equal(t, []string{"even", "odd"}, f.Names())
	for _, b := range f.Bindings {
		assert.True(t, b.Rec, b.Name)
	}
}

func TestShadowingPicksLast(t *testing.T) {
	f := read(t, "let f x = x\nlet f x = x + 1\n")
	b, ok := f.Lookup("f")
	require.True(t, ok)
	assert.Equal(t, 2, b.Line)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "customstk.ml")
	require.NoError(t, os.WriteFile(path, []byte(customstk), 0o644))

	r := NewReader()
	defer r.Close()
	f, err := r.ReadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Contains(t, f.Names(), "concat")

	_, err = r.ReadFile(context.Background(), filepath.Join(dir, "missing.ml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClosedReader(t *testing.T) {
	r := NewReader()
	r.Close()
	r.Close()
	_, err := r.Read(context.Background(), "x.ml", []byte("let x = 1"))
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "value", Value.String())
	assert.Equal(t, "module", Module.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
