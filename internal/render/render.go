// Package render writes specification values back out as engine source
// text: the annotation-file form the engine reads alongside a Setup.
//
// The output grammar is the engine's, not a mirror of the parser's. Ite,
// in particular, renders as `(if c then t else e)`, which the parser does
// not accept.
package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"arwen/internal/spec"
)

// Kind selects the declaration keyword of a spec block.
type Kind string

const (
	Pre  Kind = "pre"
	Post Kind = "post"
)

// Decl renders one `let <kind> <args> =` block, body on the next line.
func Decl(kind Kind, s spec.Spec) string {
	var sb strings.Builder
	writeDecl(&sb, kind, s)
	return sb.String()
}

func writeDecl(sb *strings.Builder, kind Kind, s spec.Spec) {
	sb.WriteString("let ")
	sb.WriteString(string(kind))
	for _, a := range s.Args {
		sb.WriteString(" (")
		sb.WriteString(a.String())
		sb.WriteString(")")
	}
	sb.WriteString(" =\n  ")
	sb.WriteString(s.Formula.String())
	sb.WriteString("\n")
}

// File renders a whole annotation file: the predicate list, the optional
// precondition, a blank line and the postcondition.
func File(f *spec.AssertionFile) string {
	var sb strings.Builder
	sb.WriteString(f.Preds.String())
	sb.WriteString("\n")
	if f.Pre != nil {
		writeDecl(&sb, Pre, *f.Pre)
	}
	sb.WriteString("\n")
	writeDecl(&sb, Post, f.Post)
	return sb.String()
}

// Write renders f to w.
func Write(w io.Writer, f *spec.AssertionFile) error {
	_, err := io.WriteString(w, File(f))
	return err
}

// WriteFile renders f into dir/name, creating dir if needed. The file is
// replaced atomically so the engine never reads a partial annotation.
// It returns the path written.
func WriteFile(dir, name string, f *spec.AssertionFile) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid annotation file name %q", name)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(File(f)), 0644); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}
	return path, nil
}
