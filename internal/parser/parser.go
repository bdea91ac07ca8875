// Package parser reads the engine's annotation syntax into the spec model.
//
// Grammar, lowest precedence first:
//
//	file        := preds [spec(pre)] spec(post)
//	preds       := "let" "preds" "=" "[|" [string {";" string} [";"]] "|]"
//	spec(k)     := "let" k {"(" name ":" argtype ")"} "=" formula
//	formula     := "forall" name ":" type {"," name ":" type} "." assertion
//	             | assertion
//	assertion   := conjunction {"||" conjunction}
//	conjunction := unary {"&&" unary}
//	unary       := "!" unary | primary
//	primary     := "true" | "false"
//	             | "implies" "(" assertion ")" "(" assertion ")"
//	             | "iff" "(" assertion ")" "(" assertion ")"
//	             | "(" assertion ")"
//	             | value cmp value
//	             | name {value}
//
// Comments are OCaml style and may nest.
package parser

import (
	"fmt"
	"os"
	"strconv"

	"arwen/internal/logging"
	"arwen/internal/spec"
)

// Unknown is the type given to an unbound variable in the first argument
// position of a predicate: some abstract data type, not yet named.
var Unknown spec.Type = spec.Generic{Name: ""}

// reserved words cannot be used as predicate arguments.
var reserved = map[string]bool{
	"let":     true,
	"true":    true,
	"false":   true,
	"implies": true,
	"iff":     true,
	"forall":  true,
}

type parser struct {
	toks []token
	i    int
	src  string
	env  map[string]spec.Type
}

func newParser(src string, env map[string]spec.Type) (*parser, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	if env == nil {
		env = map[string]spec.Type{}
	}
	return &parser{toks: toks, src: src, env: env}, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) peekAt(n int) token {
	if p.i+n < len(p.toks) {
		return p.toks[p.i+n]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) unexpected(expected ...string) *ParseError {
	t := p.peek()
	return &ParseError{
		Pos:      t.pos,
		Found:    t.describe(),
		Expected: expected,
		Rest:     excerpt(p.src[t.pos.Offset:]),
	}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.peek().kind != kind {
		return token{}, p.unexpected(kind.String())
	}
	return p.advance(), nil
}

func (p *parser) isKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return p.unexpected("'" + word + "'")
	}
	p.advance()
	return nil
}

func (p *parser) expectEOF() error {
	if p.peek().kind != tokEOF {
		return p.unexpected(tokEOF.String())
	}
	return nil
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// ParseArgType parses an argument type: int, bool, or any identifier or
// module path (Customstk.t) as a generic type.
func ParseArgType(src string) (spec.AssertionType, error) {
	p, err := newParser(src, nil)
	if err != nil {
		return nil, err
	}
	t, err := p.argType()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseType parses a full type, including int list/tree forms, tuples
// and arrows.
func ParseType(src string) (spec.Type, error) {
	p, err := newParser(src, nil)
	if err != nil {
		return nil, err
	}
	t, err := p.typ()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseAssertion parses a quantifier-free predicate. Variables are typed
// positionally; see Unknown.
func ParseAssertion(src string) (spec.Pred, error) {
	return ParseAssertionIn(src, nil)
}

// ParseAssertionIn is ParseAssertion with known variable types.
func ParseAssertionIn(src string, env map[string]spec.Type) (spec.Pred, error) {
	p, err := newParser(src, copyEnv(env))
	if err != nil {
		return nil, err
	}
	a, err := p.assertion()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return a, nil
}

// ParseFormula parses an assertion with an optional forall prefix.
func ParseFormula(src string) (spec.ForallFormula, error) {
	p, err := newParser(src, nil)
	if err != nil {
		return spec.ForallFormula{}, err
	}
	f, err := p.formula()
	if err != nil {
		return spec.ForallFormula{}, err
	}
	if err := p.expectEOF(); err != nil {
		return spec.ForallFormula{}, err
	}
	return f, nil
}

// ParsePostSpec parses a single `let post <args> = <formula>` declaration.
func ParsePostSpec(src string) (spec.Spec, error) {
	return parseSpecDecl(src, "post")
}

// ParsePreSpec parses a single `let pre <args> = <formula>` declaration.
func ParsePreSpec(src string) (spec.Spec, error) {
	return parseSpecDecl(src, "pre")
}

func parseSpecDecl(src, kind string) (spec.Spec, error) {
	p, err := newParser(src, nil)
	if err != nil {
		return spec.Spec{}, err
	}
	s, err := p.specDecl(kind)
	if err != nil {
		return spec.Spec{}, err
	}
	if err := p.expectEOF(); err != nil {
		return spec.Spec{}, err
	}
	return s, nil
}

// ParseFile parses a whole annotation file.
func ParseFile(src string) (*spec.AssertionFile, error) {
	p, err := newParser(src, nil)
	if err != nil {
		return nil, err
	}
	return p.file()
}

// ParseFileAt reads and parses the annotation file at path.
func ParseFileAt(path string) (*spec.AssertionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read annotation file: %w", err)
	}
	f, err := ParseFile(string(data))
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.File = path
		}
		logging.Get(logging.CategoryParser).Warn("parse %s failed: %v", path, err)
		return nil, err
	}
	logging.ParserDebug("parsed %s: %d predicates, pre=%v", path, len(f.Preds), f.Pre != nil)
	return f, nil
}

func copyEnv(env map[string]spec.Type) map[string]spec.Type {
	out := make(map[string]spec.Type, len(env))
	for k, v := range env {
		out[k] = v
	}
	return out
}

// =============================================================================
// FILE LEVEL
// =============================================================================

func (p *parser) file() (*spec.AssertionFile, error) {
	preds, err := p.predsDecl()
	if err != nil {
		return nil, err
	}
	f := &spec.AssertionFile{Preds: preds}

	if p.isKeyword("let") && p.peekAt(1).kind == tokIdent && p.peekAt(1).text == "pre" {
		pre, err := p.specDecl("pre")
		if err != nil {
			return nil, err
		}
		f.Pre = &pre
	}

	post, err := p.specDecl("post")
	if err != nil {
		return nil, err
	}
	f.Post = post
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return f, nil
}

func (p *parser) predsDecl() (spec.Predicates, error) {
	if err := p.expectKeyword("let"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("preds"); err != nil {
		return nil, err
	}
	if eq := p.peek(); eq.kind != tokCompare || eq.text != "=" {
		return nil, p.unexpected("'='")
	}
	p.advance()
	if _, err := p.expect(tokLArray); err != nil {
		return nil, err
	}

	preds := spec.Predicates{}
	for p.peek().kind != tokRArray {
		t := p.peek()
		if t.kind != tokString {
			return nil, p.unexpected(tokString.String(), tokRArray.String())
		}
		k, ok := spec.PredicateBySymbol(t.text)
		if !ok {
			return nil, &ParseError{
				Pos:  t.pos,
				Msg:  fmt.Sprintf("unknown predicate %q", t.text),
				Rest: excerpt(p.src[t.pos.Offset:]),
			}
		}
		p.advance()
		preds = append(preds, k)

		if p.peek().kind == tokSemi {
			p.advance()
			continue
		}
		if p.peek().kind != tokRArray {
			return nil, p.unexpected(tokSemi.String(), tokRArray.String())
		}
	}
	p.advance()
	return preds, nil
}

func (p *parser) specDecl(kind string) (spec.Spec, error) {
	if err := p.expectKeyword("let"); err != nil {
		return spec.Spec{}, err
	}
	if err := p.expectKeyword(kind); err != nil {
		return spec.Spec{}, err
	}

	// Arguments scope over this declaration only.
	saved := p.env
	p.env = copyEnv(saved)
	defer func() { p.env = saved }()

	var args []spec.TypedVar
	for p.peek().kind == tokLParen {
		p.advance()
		name, err := p.expect(tokIdent)
		if err != nil {
			return spec.Spec{}, err
		}
		if _, err := p.expect(tokColon); err != nil {
			return spec.Spec{}, err
		}
		ty, err := p.argType()
		if err != nil {
			return spec.Spec{}, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return spec.Spec{}, err
		}
		args = append(args, spec.TypedVar{Type: ty, Name: name.text})
		p.env[name.text] = ty.Type()
	}

	if eq := p.peek(); eq.kind != tokCompare || eq.text != "=" {
		return spec.Spec{}, p.unexpected("'('", "'='")
	}
	p.advance()

	f, err := p.formula()
	if err != nil {
		return spec.Spec{}, err
	}
	return spec.Spec{Args: args, Formula: f}, nil
}

func (p *parser) formula() (spec.ForallFormula, error) {
	if !p.isKeyword("forall") {
		body, err := p.assertion()
		if err != nil {
			return spec.ForallFormula{}, err
		}
		return spec.ForallFormula{Body: body}, nil
	}
	p.advance()

	saved := p.env
	p.env = copyEnv(saved)
	defer func() { p.env = saved }()

	var vars []spec.FreeVar
	for {
		name, err := p.expect(tokIdent)
		if err != nil {
			return spec.ForallFormula{}, err
		}
		if _, err := p.expect(tokColon); err != nil {
			return spec.ForallFormula{}, err
		}
		ty, err := p.typ()
		if err != nil {
			return spec.ForallFormula{}, err
		}
		vars = append(vars, spec.FreeVar{Type: ty, Name: name.text})
		p.env[name.text] = ty

		if p.peek().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokDot); err != nil {
		return spec.ForallFormula{}, err
	}
	body, err := p.assertion()
	if err != nil {
		return spec.ForallFormula{}, err
	}
	return spec.ForallFormula{Vars: vars, Body: body}, nil
}

// =============================================================================
// TYPES
// =============================================================================

func (p *parser) argType() (spec.AssertionType, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return nil, p.unexpected("type")
	}
	p.advance()
	switch t.text {
	case "int":
		return spec.AInt{}, nil
	case "bool":
		return spec.ABool{}, nil
	}
	return spec.AGeneric{Name: t.text}, nil
}

func (p *parser) typ() (spec.Type, error) {
	dom, err := p.typeAtom()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokArrow {
		return dom, nil
	}
	p.advance()
	cod, err := p.typ()
	if err != nil {
		return nil, err
	}
	return spec.Arrow{Dom: dom, Cod: cod}, nil
}

var intSuffixes = map[string]spec.BasicType{
	"list":  spec.IntList,
	"tree":  spec.IntTree,
	"treei": spec.IntTreeI,
	"treeb": spec.IntTreeB,
}

func (p *parser) typeAtom() (spec.Type, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.advance()
		var elems []spec.Type
		for {
			el, err := p.typ()
			if err != nil {
				return nil, err
			}
			elems = append(elems, el)
			if p.peek().kind == tokComma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		if len(elems) == 1 {
			return elems[0], nil
		}
		return spec.TupleType{Elems: elems}, nil

	case tokIdent:
		p.advance()
		switch t.text {
		case "bool":
			return spec.Bool, nil
		case "int":
			if next := p.peek(); next.kind == tokIdent {
				if bt, ok := intSuffixes[next.text]; ok {
					p.advance()
					return bt, nil
				}
			}
			return spec.Int, nil
		}
		return spec.Generic{Name: t.text}, nil
	}
	return nil, p.unexpected("type")
}

// =============================================================================
// ASSERTIONS
// =============================================================================

func (p *parser) assertion() (spec.Pred, error) {
	first, err := p.conjunction()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokOr {
		return first, nil
	}
	or := spec.Or{first}
	for p.peek().kind == tokOr {
		p.advance()
		next, err := p.conjunction()
		if err != nil {
			return nil, err
		}
		or = append(or, next)
	}
	return or, nil
}

func (p *parser) conjunction() (spec.Pred, error) {
	first, err := p.unary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokAnd {
		return first, nil
	}
	and := spec.And{first}
	for p.peek().kind == tokAnd {
		p.advance()
		next, err := p.unary()
		if err != nil {
			return nil, err
		}
		and = append(and, next)
	}
	return and, nil
}

func (p *parser) unary() (spec.Pred, error) {
	if p.peek().kind == tokBang {
		p.advance()
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return spec.Not{P: inner}, nil
	}
	return p.primary()
}

func (p *parser) group() (spec.Pred, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	inner, err := p.assertion()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen); err != nil {
		return nil, err
	}
	return inner, nil
}

func (p *parser) primary() (spec.Pred, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		return p.group()

	case tokInt:
		if p.peekAt(1).kind == tokCompare {
			return p.comparison()
		}

	case tokIdent:
		switch t.text {
		case "true":
			p.advance()
			return spec.True{}, nil
		case "false":
			p.advance()
			return spec.Atom{Expr: spec.Lit{Type: spec.Bool, Value: spec.BoolLit(false)}}, nil
		case "implies", "iff":
			p.advance()
			lhs, err := p.group()
			if err != nil {
				return nil, err
			}
			rhs, err := p.group()
			if err != nil {
				return nil, err
			}
			if t.text == "iff" {
				return spec.Iff{L: lhs, R: rhs}, nil
			}
			return spec.Implies{L: lhs, R: rhs}, nil
		}
		if reserved[t.text] {
			break
		}
		if p.peekAt(1).kind == tokCompare {
			return p.comparison()
		}
		return p.application()
	}
	return nil, p.unexpected("predicate", "'('", "'!'", "'true'", "'implies'", "'iff'")
}

// comparison parses `value op value`.
func (p *parser) comparison() (spec.Pred, error) {
	lhs, err := p.value(-1)
	if err != nil {
		return nil, err
	}
	op := p.advance()
	rhs, err := p.value(-1)
	if err != nil {
		return nil, err
	}
	return spec.Atom{Expr: spec.Op{
		Type: spec.Bool,
		Name: op.text,
		Args: []spec.SimpleExpr{lhs, rhs},
	}}, nil
}

// application parses `name value*` as an Op over its arguments.
func (p *parser) application() (spec.Pred, error) {
	name := p.advance()
	args := []spec.SimpleExpr{}
	for {
		t := p.peek()
		if t.kind == tokInt || (t.kind == tokIdent && !reserved[t.text]) {
			arg, err := p.value(len(args))
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			continue
		}
		break
	}
	return spec.Atom{Expr: spec.Op{Type: spec.Bool, Name: name.text, Args: args}}, nil
}

// value parses a variable or integer literal. position is the argument
// index inside a predicate application, or -1 inside a comparison.
func (p *parser) value(position int) (spec.SimpleExpr, error) {
	t := p.peek()
	switch t.kind {
	case tokInt:
		p.advance()
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, &ParseError{
				Pos:  t.pos,
				Msg:  fmt.Sprintf("integer %s out of range", t.text),
				Rest: excerpt(p.src[t.pos.Offset:]),
			}
		}
		return spec.Lit{Type: spec.Int, Value: spec.IntLit(n)}, nil
	case tokIdent:
		if reserved[t.text] {
			break
		}
		p.advance()
		return spec.Var{Type: p.typeOf(t.text, position), Name: t.text}, nil
	}
	return nil, p.unexpected("variable", "integer")
}

func (p *parser) typeOf(name string, position int) spec.Type {
	if ty, ok := p.env[name]; ok {
		return ty
	}
	if position == 0 {
		return Unknown
	}
	return spec.Int
}
