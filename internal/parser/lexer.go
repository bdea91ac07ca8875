package parser

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokLParen   // (
	tokRParen   // )
	tokLArray   // [|
	tokRArray   // |]
	tokSemi     // ;
	tokColon    // :
	tokComma    // ,
	tokDot      // .
	tokArrow    // ->
	tokAnd      // &&
	tokOr       // ||
	tokBang     // !
	tokCompare  // <= >= = == != < >
)

var tokenNames = map[tokenKind]string{
	tokEOF:     "end of input",
	tokIdent:   "identifier",
	tokInt:     "integer",
	tokString:  "string",
	tokLParen:  "'('",
	tokRParen:  "')'",
	tokLArray:  "'[|'",
	tokRArray:  "'|]'",
	tokSemi:    "';'",
	tokColon:   "':'",
	tokComma:   "','",
	tokDot:     "'.'",
	tokArrow:   "'->'",
	tokAnd:     "'&&'",
	tokOr:      "'||'",
	tokBang:    "'!'",
	tokCompare: "comparison",
}

var singleTokens = map[byte]tokenKind{
	'(': tokLParen,
	')': tokRParen,
	';': tokSemi,
	':': tokColon,
	',': tokComma,
	'.': tokDot,
	'!': tokBang,
	'=': tokCompare,
	'<': tokCompare,
	'>': tokCompare,
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

type token struct {
	kind tokenKind
	text string // source text; unquoted contents for strings
	pos  Pos
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

// lexer turns annotation source into tokens, skipping whitespace and
// (possibly nested) OCaml comments.
type lexer struct {
	src  string
	off  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) pos() Pos {
	return Pos{Offset: l.off, Line: l.line, Col: l.col}
}

func (l *lexer) peekByte(n int) byte {
	if l.off+n < len(l.src) {
		return l.src[l.off+n]
	}
	return 0
}

func (l *lexer) advance(n int) {
	for i := 0; i < n && l.off < len(l.src); i++ {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.off++
	}
}

func (l *lexer) errorf(p Pos, format string, args ...interface{}) *ParseError {
	return &ParseError{
		Pos:  p,
		Msg:  fmt.Sprintf(format, args...),
		Rest: excerpt(l.src[p.Offset:]),
	}
}

func (l *lexer) skipSpace() error {
	for l.off < len(l.src) {
		c := l.src[l.off]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance(1)
		case c == '(' && l.peekByte(1) == '*':
			if err := l.skipComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) skipComment() error {
	start := l.pos()
	depth := 0
	for l.off < len(l.src) {
		switch {
		case l.src[l.off] == '(' && l.peekByte(1) == '*':
			depth++
			l.advance(2)
		case l.src[l.off] == '*' && l.peekByte(1) == ')':
			depth--
			l.advance(2)
			if depth == 0 {
				return nil
			}
		default:
			l.advance(1)
		}
	}
	return l.errorf(start, "unterminated comment")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '\''
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *lexer) next() (token, error) {
	if err := l.skipSpace(); err != nil {
		return token{}, err
	}
	p := l.pos()
	if l.off >= len(l.src) {
		return token{kind: tokEOF, pos: p}, nil
	}

	c := l.src[l.off]
	switch {
	case isIdentStart(c):
		start, segment := l.off, l.off
		for l.off < len(l.src) {
			ch := l.src[l.off]
			if isIdentPart(ch) {
				l.advance(1)
				continue
			}
			// Only a capitalised module name continues across a dot, as in
			// Customstk.t; int.mem is int, '.', mem.
			if ch == '.' && isUpper(l.src[segment]) && isIdentStart(l.peekByte(1)) {
				l.advance(1)
				segment = l.off
				continue
			}
			break
		}
		return token{kind: tokIdent, text: l.src[start:l.off], pos: p}, nil

	case isDigit(c) || (c == '-' && isDigit(l.peekByte(1))):
		start := l.off
		l.advance(1)
		for l.off < len(l.src) && isDigit(l.src[l.off]) {
			l.advance(1)
		}
		return token{kind: tokInt, text: l.src[start:l.off], pos: p}, nil

	case c == '"':
		l.advance(1)
		var sb strings.Builder
		for {
			if l.off >= len(l.src) || l.src[l.off] == '\n' {
				return token{}, l.errorf(p, "unterminated string")
			}
			ch := l.src[l.off]
			if ch == '"' {
				l.advance(1)
				return token{kind: tokString, text: sb.String(), pos: p}, nil
			}
			if ch == '\\' && l.off+1 < len(l.src) {
				l.advance(1)
				ch = l.src[l.off]
			}
			sb.WriteByte(ch)
			l.advance(1)
		}
	}

	two := ""
	if l.off+1 < len(l.src) {
		two = l.src[l.off : l.off+2]
	}
	switch two {
	case "[|":
		l.advance(2)
		return token{kind: tokLArray, text: two, pos: p}, nil
	case "|]":
		l.advance(2)
		return token{kind: tokRArray, text: two, pos: p}, nil
	case "->":
		l.advance(2)
		return token{kind: tokArrow, text: two, pos: p}, nil
	case "&&":
		l.advance(2)
		return token{kind: tokAnd, text: two, pos: p}, nil
	case "||":
		l.advance(2)
		return token{kind: tokOr, text: two, pos: p}, nil
	case "<=", ">=", "==", "!=":
		l.advance(2)
		return token{kind: tokCompare, text: two, pos: p}, nil
	}

	if kind, ok := singleTokens[c]; ok {
		l.advance(1)
		return token{kind: kind, text: string(c), pos: p}, nil
	}
	return token{}, l.errorf(p, "unexpected character %q", c)
}

// tokenize lexes the whole input; the last token is always tokEOF.
func tokenize(src string) ([]token, error) {
	l := newLexer(src)
	var toks []token
	for {
		t, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.kind == tokEOF {
			return toks, nil
		}
	}
}

func excerpt(s string) string {
	const max = 40
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
