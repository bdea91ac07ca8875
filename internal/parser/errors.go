package parser

import (
	"fmt"
	"strings"
)

// Pos is a position in the parsed input. Line and Col are 1-based.
type Pos struct {
	Offset int
	Line   int
	Col    int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// ParseError reports malformed annotation syntax. No partial result is
// ever returned alongside it.
type ParseError struct {
	Pos      Pos
	Found    string   // the offending token, if any
	Expected []string // what the grammar allowed at Pos
	Msg      string   // set instead of Found/Expected for lexical errors
	Rest     string   // excerpt of the unconsumed input
	File     string   // set by ParseFileAt
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteByte(':')
	}
	sb.WriteString(e.Pos.String())
	sb.WriteString(": ")
	switch {
	case e.Msg != "":
		sb.WriteString(e.Msg)
	case len(e.Expected) > 0:
		fmt.Fprintf(&sb, "unexpected %s, expected %s", e.Found, strings.Join(e.Expected, " or "))
	default:
		fmt.Fprintf(&sb, "unexpected %s", e.Found)
	}
	if e.Rest != "" {
		fmt.Fprintf(&sb, " (at %q)", e.Rest)
	}
	return sb.String()
}
