// Package source reads the top-level bindings of an OCaml source file.
//
// Only the structure items of the compilation unit are inspected; bindings
// nested in modules or local lets are not reported.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"arwen/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ocaml"
)

// Kind classifies a top-level binding.
type Kind int

const (
	Value Kind = iota
	Type
	Module
)

func (k Kind) String() string {
	switch k {
	case Value:
		return "value"
	case Type:
		return "type"
	case Module:
		return "module"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Binding is one name introduced at the top level of a file.
type Binding struct {
	Kind Kind
	Name string
	Line int // 1-based
	Rec  bool
}

// File is the result of reading one source file.
type File struct {
	Path     string
	Bindings []Binding
	// Partial is set when tree-sitter recovered from syntax errors; the
	// bindings found are still reported.
	Partial bool
}

// Lookup returns the last value binding named name. OCaml shadowing means
// the last definition is the one a client refers to.
func (f *File) Lookup(name string) (Binding, bool) {
	for i := len(f.Bindings) - 1; i >= 0; i-- {
		b := f.Bindings[i]
		if b.Kind == Value && b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

// Names returns the value binding names in source order.
func (f *File) Names() []string {
	var out []string
	for _, b := range f.Bindings {
		if b.Kind == Value {
			out = append(out, b.Name)
		}
	}
	return out
}

// Reader wraps a tree-sitter parser configured for OCaml. It is safe for
// concurrent use; parses are serialized.
type Reader struct {
	mu     sync.Mutex
	parser *sitter.Parser
}

// NewReader creates a Reader.
func NewReader() *Reader {
	p := sitter.NewParser()
	p.SetLanguage(ocaml.GetLanguage())
	return &Reader{parser: p}
}

// Close releases the underlying parser.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parser != nil {
		r.parser.Close()
		r.parser = nil
	}
}

// ReadFile reads and parses the file at path.
func (r *Reader) ReadFile(ctx context.Context, path string) (*File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", path, err)
	}
	return r.Read(ctx, path, content)
}

// Read parses content; path is only recorded on the result.
func (r *Reader) Read(ctx context.Context, path string, content []byte) (*File, error) {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parser == nil {
		return nil, fmt.Errorf("source reader closed")
	}

	tree, err := r.parser.ParseCtx(ctx, nil, content)
	if err != nil {
		logging.Get(logging.CategoryCheck).Error("tree-sitter parse failed: %s - %v", path, err)
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	f := &File{Path: path, Partial: root.HasError()}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		f.Bindings = append(f.Bindings, items(root.NamedChild(i), content)...)
	}
	if f.Partial {
		logging.Get(logging.CategoryCheck).Warn("%s has syntax errors; binding list may be incomplete", filepath.Base(path))
	}
	logging.CheckDebug("read %s: %d bindings in %v", filepath.Base(path), len(f.Bindings), time.Since(start))
	return f, nil
}

// items extracts the bindings introduced by one structure item.
func items(n *sitter.Node, content []byte) []Binding {
	var out []Binding
	line := func(x *sitter.Node) int { return int(x.StartPoint().Row) + 1 }

	switch n.Type() {
	case "value_definition":
		rec := false
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.Type() == "rec" {
				rec = true
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "let_binding" {
				continue
			}
			pat := c.ChildByFieldName("pattern")
			if pat == nil {
				continue
			}
			for _, name := range patternNames(pat, content) {
				out = append(out, Binding{Kind: Value, Name: name, Line: line(c), Rec: rec})
			}
		}
	case "type_definition":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "type_binding" {
				continue
			}
			if name := c.ChildByFieldName("name"); name != nil {
				out = append(out, Binding{Kind: Type, Name: name.Content(content), Line: line(c)})
			}
		}
	case "module_definition":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() != "module_binding" {
				continue
			}
			if name := c.ChildByFieldName("name"); name != nil {
				out = append(out, Binding{Kind: Module, Name: name.Content(content), Line: line(c)})
			}
		}
	}
	return out
}

// patternNames returns the variables bound by a let pattern. Only plain
// names and tuples of names are recognised.
func patternNames(n *sitter.Node, content []byte) []string {
	switch n.Type() {
	case "value_name", "value_pattern":
		return []string{n.Content(content)}
	case "parenthesized_pattern", "tuple_pattern":
		var out []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			out = append(out, patternNames(n.NamedChild(i), content)...)
		}
		return out
	}
	return nil
}
