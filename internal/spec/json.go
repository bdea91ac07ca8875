package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The wire encoding is an externally tagged union: unit variants are bare
// strings ("Start", "True"), newtype variants are {"Tag": value} and
// tuple variants are {"Tag": [fields...]}. Tuple structs are arrays.

// DecodeError reports a wire payload that does not have the expected shape.
type DecodeError struct {
	Kind string // the model type being decoded
	Msg  string
	Err  error
}

func (e *DecodeError) Error() string {
	msg := "decode " + e.Kind + ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(kind, format string, args ...interface{}) error {
	return &DecodeError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapDecodeErr(kind string, err error) error {
	if _, ok := err.(*DecodeError); ok {
		return err
	}
	return &DecodeError{Kind: kind, Msg: "malformed payload", Err: err}
}

// Tagged encodes a variant carrying a payload as {"tag": payload}.
func Tagged(tag string, payload interface{}) ([]byte, error) {
	inner, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	key, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(key) + len(inner) + 3)
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(inner)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Variant splits a tagged union into its tag and payload. Unit variants
// have a nil payload.
func Variant(kind string, data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil, decodeErr(kind, "empty payload")
	}
	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, wrapDecodeErr(kind, err)
		}
		return tag, nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, wrapDecodeErr(kind, err)
	}
	if len(obj) != 1 {
		return "", nil, decodeErr(kind, "expected exactly one variant tag, got %d", len(obj))
	}
	for tag, payload := range obj {
		return tag, payload, nil
	}
	panic("unreachable")
}

// Fields decodes a tuple payload of exactly n elements.
func Fields(kind string, data []byte, n int) ([]json.RawMessage, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, wrapDecodeErr(kind, err)
	}
	if len(fields) != n {
		return nil, decodeErr(kind, "expected %d fields, got %d", n, len(fields))
	}
	return fields, nil
}

// needPayload rejects tags outside tags before checking that a payload is
// present, so an unknown unit tag reads as unknown rather than incomplete.
func needPayload(kind, tag string, payload json.RawMessage, tags ...string) error {
	known := false
	for _, t := range tags {
		if t == tag {
			known = true
			break
		}
	}
	if !known {
		return decodeErr(kind, "unknown variant %q", tag)
	}
	if payload == nil {
		return decodeErr(kind, "variant %s requires a payload", tag)
	}
	return nil
}

func decodeString(kind string, data []byte) (string, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", wrapDecodeErr(kind, err)
	}
	return s, nil
}

func decodeInts(kind string, data []byte) ([]int64, error) {
	var xs []int64
	if err := json.Unmarshal(data, &xs); err != nil {
		return nil, wrapDecodeErr(kind, err)
	}
	if xs == nil {
		xs = []int64{}
	}
	return xs, nil
}

func decodeList[T any](kind string, data []byte, elem func([]byte) (T, error)) ([]T, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, wrapDecodeErr(kind, err)
	}
	out := make([]T, len(raws))
	for i, raw := range raws {
		v, err := elem(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func ints(xs []int64) []int64 {
	if xs == nil {
		return []int64{}
	}
	return xs
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

// =============================================================================
// TYPES
// =============================================================================

func (t BasicType) MarshalJSON() ([]byte, error) {
	if int(t) < 0 || int(t) >= len(basicTypeTags) {
		return nil, fmt.Errorf("invalid basic type %d", int(t))
	}
	return json.Marshal(basicTypeTags[t])
}

func (g Generic) MarshalJSON() ([]byte, error) { return Tagged("Generic", g.Name) }

func (t TupleType) MarshalJSON() ([]byte, error) { return Tagged("Tuple", nonNil(t.Elems)) }

func (a Arrow) MarshalJSON() ([]byte, error) { return Tagged("Arrow", []Type{a.Dom, a.Cod}) }

// DecodeType decodes the wire form of a Type.
func DecodeType(data []byte) (Type, error) {
	const kind = "Type"
	tag, payload, err := Variant(kind, data)
	if err != nil {
		return nil, err
	}
	for i, name := range basicTypeTags {
		if tag == name {
			return BasicType(i), nil
		}
	}
	if err := needPayload(kind, tag, payload, "Generic", "Tuple", "Arrow"); err != nil {
		return nil, err
	}
	switch tag {
	case "Generic":
		name, err := decodeString(kind, payload)
		if err != nil {
			return nil, err
		}
		return Generic{Name: name}, nil
	case "Tuple":
		elems, err := decodeList(kind, payload, DecodeType)
		if err != nil {
			return nil, err
		}
		return TupleType{Elems: elems}, nil
	case "Arrow":
		fields, err := Fields(kind, payload, 2)
		if err != nil {
			return nil, err
		}
		dom, err := DecodeType(fields[0])
		if err != nil {
			return nil, err
		}
		cod, err := DecodeType(fields[1])
		if err != nil {
			return nil, err
		}
		return Arrow{Dom: dom, Cod: cod}, nil
	}
	return nil, decodeErr(kind, "unknown variant %q", tag)
}

func (ABool) MarshalJSON() ([]byte, error)      { return json.Marshal("Bool") }
func (AInt) MarshalJSON() ([]byte, error)       { return json.Marshal("Int") }
func (g AGeneric) MarshalJSON() ([]byte, error) { return Tagged("Generic", g.Name) }

// DecodeAssertionType decodes the wire form of an AssertionType.
func DecodeAssertionType(data []byte) (AssertionType, error) {
	const kind = "AssertionType"
	tag, payload, err := Variant(kind, data)
	if err != nil {
		return nil, err
	}
	switch tag {
	case "Bool":
		return ABool{}, nil
	case "Int":
		return AInt{}, nil
	case "Generic":
		if err := needPayload(kind, tag, payload, "Generic"); err != nil {
			return nil, err
		}
		name, err := decodeString(kind, payload)
		if err != nil {
			return nil, err
		}
		return AGeneric{Name: name}, nil
	}
	return nil, decodeErr(kind, "unknown variant %q", tag)
}

// =============================================================================
// LITERALS AND VALUES
// =============================================================================

func (l IntLit) MarshalJSON() ([]byte, error)     { return Tagged("Int", int64(l)) }
func (l BoolLit) MarshalJSON() ([]byte, error)    { return Tagged("Bool", bool(l)) }
func (l IntListLit) MarshalJSON() ([]byte, error) { return Tagged("IntList", ints(l)) }

// DecodeLiteral decodes the wire form of a Literal.
func DecodeLiteral(data []byte) (Literal, error) {
	const kind = "Literal"
	tag, payload, err := Variant(kind, data)
	if err != nil {
		return nil, err
	}
	if err := needPayload(kind, tag, payload, "Int", "Bool", "IntList"); err != nil {
		return nil, err
	}
	switch tag {
	case "Int":
		var i int64
		if err := json.Unmarshal(payload, &i); err != nil {
			return nil, wrapDecodeErr(kind, err)
		}
		return IntLit(i), nil
	case "Bool":
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, wrapDecodeErr(kind, err)
		}
		return BoolLit(b), nil
	case "IntList":
		xs, err := decodeInts(kind, payload)
		if err != nil {
			return nil, err
		}
		return IntListLit(xs), nil
	}
	return nil, decodeErr(kind, "unknown variant %q", tag)
}

func (v ListValue) MarshalJSON() ([]byte, error) { return Tagged("L", ints(v)) }
func (v IntValue) MarshalJSON() ([]byte, error)  { return Tagged("I", int64(v)) }
func (v BoolValue) MarshalJSON() ([]byte, error) { return Tagged("B", bool(v)) }
func (NotADt) MarshalJSON() ([]byte, error)      { return json.Marshal("NotADt") }

// DecodeValue decodes the wire form of a Value.
func DecodeValue(data []byte) (Value, error) {
	const kind = "Value"
	tag, payload, err := Variant(kind, data)
	if err != nil {
		return nil, err
	}
	if tag == "NotADt" {
		return NotADt{}, nil
	}
	if err := needPayload(kind, tag, payload, "L", "I", "B"); err != nil {
		return nil, err
	}
	switch tag {
	case "L":
		xs, err := decodeInts(kind, payload)
		if err != nil {
			return nil, err
		}
		return ListValue(xs), nil
	case "I":
		var i int64
		if err := json.Unmarshal(payload, &i); err != nil {
			return nil, wrapDecodeErr(kind, err)
		}
		return IntValue(i), nil
	case "B":
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, wrapDecodeErr(kind, err)
		}
		return BoolValue(b), nil
	}
	return nil, decodeErr(kind, "unknown variant %q", tag)
}

// =============================================================================
// EXPRESSIONS
// =============================================================================

func (e Lit) MarshalJSON() ([]byte, error) {
	return Tagged("Literal", []interface{}{e.Type, e.Value})
}

func (e Var) MarshalJSON() ([]byte, error) {
	return Tagged("Var", []interface{}{e.Type, e.Name})
}

func (e Op) MarshalJSON() ([]byte, error) {
	return Tagged("Op", []interface{}{e.Type, e.Name, nonNil(e.Args)})
}

func (e TupleExpr) MarshalJSON() ([]byte, error) {
	return Tagged("Tuple", nonNil(e.Elems))
}

// DecodeExpr decodes the wire form of a SimpleExpr.
func DecodeExpr(data []byte) (SimpleExpr, error) {
	const kind = "SimpleExpr"
	tag, payload, err := Variant(kind, data)
	if err != nil {
		return nil, err
	}
	if err := needPayload(kind, tag, payload, "Literal", "Var", "Op", "Tuple"); err != nil {
		return nil, err
	}
	switch tag {
	case "Literal":
		fields, err := Fields(kind, payload, 2)
		if err != nil {
			return nil, err
		}
		ty, err := DecodeType(fields[0])
		if err != nil {
			return nil, err
		}
		lit, err := DecodeLiteral(fields[1])
		if err != nil {
			return nil, err
		}
		return Lit{Type: ty, Value: lit}, nil
	case "Var":
		fields, err := Fields(kind, payload, 2)
		if err != nil {
			return nil, err
		}
		ty, err := DecodeType(fields[0])
		if err != nil {
			return nil, err
		}
		name, err := decodeString(kind, fields[1])
		if err != nil {
			return nil, err
		}
		return Var{Type: ty, Name: name}, nil
	case "Op":
		fields, err := Fields(kind, payload, 3)
		if err != nil {
			return nil, err
		}
		ty, err := DecodeType(fields[0])
		if err != nil {
			return nil, err
		}
		name, err := decodeString(kind, fields[1])
		if err != nil {
			return nil, err
		}
		args, err := decodeList(kind, fields[2], DecodeExpr)
		if err != nil {
			return nil, err
		}
		return Op{Type: ty, Name: name, Args: args}, nil
	case "Tuple":
		elems, err := decodeList(kind, payload, DecodeExpr)
		if err != nil {
			return nil, err
		}
		return TupleExpr{Elems: elems}, nil
	}
	return nil, decodeErr(kind, "unknown variant %q", tag)
}

// =============================================================================
// PREDICATES
// =============================================================================

func (True) MarshalJSON() ([]byte, error)      { return json.Marshal("True") }
func (p Atom) MarshalJSON() ([]byte, error)    { return Tagged("Atom", p.Expr) }
func (p Implies) MarshalJSON() ([]byte, error) { return Tagged("Implies", []Pred{p.L, p.R}) }
func (p Ite) MarshalJSON() ([]byte, error)     { return Tagged("Ite", []Pred{p.Cond, p.Then, p.Else}) }
func (p Not) MarshalJSON() ([]byte, error)     { return Tagged("Not", p.P) }
func (p And) MarshalJSON() ([]byte, error)     { return Tagged("And", nonNil([]Pred(p))) }
func (p Or) MarshalJSON() ([]byte, error)      { return Tagged("Or", nonNil([]Pred(p))) }
func (p Iff) MarshalJSON() ([]byte, error)     { return Tagged("Iff", []Pred{p.L, p.R}) }

// DecodePred decodes the wire form of a Pred.
func DecodePred(data []byte) (Pred, error) {
	const kind = "Pred"
	tag, payload, err := Variant(kind, data)
	if err != nil {
		return nil, err
	}
	if tag == "True" {
		return True{}, nil
	}
	if err := needPayload(kind, tag, payload, "Atom", "Implies", "Iff", "Ite", "Not", "And", "Or"); err != nil {
		return nil, err
	}
	switch tag {
	case "Atom":
		e, err := DecodeExpr(payload)
		if err != nil {
			return nil, err
		}
		return Atom{Expr: e}, nil
	case "Implies", "Iff":
		ps, err := decodePreds(kind, payload, 2)
		if err != nil {
			return nil, err
		}
		if tag == "Iff" {
			return Iff{L: ps[0], R: ps[1]}, nil
		}
		return Implies{L: ps[0], R: ps[1]}, nil
	case "Ite":
		ps, err := decodePreds(kind, payload, 3)
		if err != nil {
			return nil, err
		}
		return Ite{Cond: ps[0], Then: ps[1], Else: ps[2]}, nil
	case "Not":
		p, err := DecodePred(payload)
		if err != nil {
			return nil, err
		}
		return Not{P: p}, nil
	case "And", "Or":
		ps, err := decodeList(kind, payload, DecodePred)
		if err != nil {
			return nil, err
		}
		if tag == "And" {
			return And(ps), nil
		}
		return Or(ps), nil
	}
	return nil, decodeErr(kind, "unknown variant %q", tag)
}

func decodePreds(kind string, data []byte, n int) ([]Pred, error) {
	fields, err := Fields(kind, data, n)
	if err != nil {
		return nil, err
	}
	out := make([]Pred, n)
	for i, f := range fields {
		p, err := DecodePred(f)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// =============================================================================
// SPECIFICATIONS
// =============================================================================

func (v FreeVar) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{v.Type, v.Name})
}

func (v *FreeVar) UnmarshalJSON(data []byte) error {
	const kind = "FreeVar"
	fields, err := Fields(kind, data, 2)
	if err != nil {
		return err
	}
	ty, err := DecodeType(fields[0])
	if err != nil {
		return err
	}
	name, err := decodeString(kind, fields[1])
	if err != nil {
		return err
	}
	*v = FreeVar{Type: ty, Name: name}
	return nil
}

func (v TypedVar) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{v.Type, v.Name})
}

func (v *TypedVar) UnmarshalJSON(data []byte) error {
	const kind = "TypedVar"
	fields, err := Fields(kind, data, 2)
	if err != nil {
		return err
	}
	ty, err := DecodeAssertionType(fields[0])
	if err != nil {
		return err
	}
	name, err := decodeString(kind, fields[1])
	if err != nil {
		return err
	}
	*v = TypedVar{Type: ty, Name: name}
	return nil
}

func (f ForallFormula) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{nonNil(f.Vars), f.Body})
}

func (f *ForallFormula) UnmarshalJSON(data []byte) error {
	const kind = "ForallFormula"
	fields, err := Fields(kind, data, 2)
	if err != nil {
		return err
	}
	var vars []FreeVar
	if err := json.Unmarshal(fields[0], &vars); err != nil {
		return wrapDecodeErr(kind, err)
	}
	body, err := DecodePred(fields[1])
	if err != nil {
		return err
	}
	*f = ForallFormula{Vars: vars, Body: body}
	return nil
}

func (s Spec) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{nonNil(s.Args), s.Formula})
}

func (s *Spec) UnmarshalJSON(data []byte) error {
	const kind = "Spec"
	fields, err := Fields(kind, data, 2)
	if err != nil {
		return err
	}
	var args []TypedVar
	if err := json.Unmarshal(fields[0], &args); err != nil {
		return wrapDecodeErr(kind, err)
	}
	var formula ForallFormula
	if err := json.Unmarshal(fields[1], &formula); err != nil {
		return wrapDecodeErr(kind, err)
	}
	*s = Spec{Args: args, Formula: formula}
	return nil
}

func (k KnownPredicate) MarshalJSON() ([]byte, error) {
	if !k.valid() {
		return nil, fmt.Errorf("invalid known predicate %d", int(k))
	}
	return json.Marshal(k.Tag())
}

func (k *KnownPredicate) UnmarshalJSON(data []byte) error {
	const kind = "KnownPredicate"
	tag, err := decodeString(kind, data)
	if err != nil {
		return err
	}
	p, ok := PredicateByTag(tag)
	if !ok {
		return decodeErr(kind, "unknown variant %q", tag)
	}
	*k = p
	return nil
}

func (ps Predicates) MarshalJSON() ([]byte, error) {
	return json.Marshal(nonNil([]KnownPredicate(ps)))
}

// =============================================================================
// RESULTS
// =============================================================================

func (b Binding) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{b.Value, b.Name})
}

func (b *Binding) UnmarshalJSON(data []byte) error {
	const kind = "Binding"
	fields, err := Fields(kind, data, 2)
	if err != nil {
		return err
	}
	v, err := DecodeValue(fields[0])
	if err != nil {
		return err
	}
	name, err := decodeString(kind, fields[1])
	if err != nil {
		return err
	}
	*b = Binding{Value: v, Name: name}
	return nil
}

func (ns NamedSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{ns.Spec, ns.Name})
}

func (ns *NamedSpec) UnmarshalJSON(data []byte) error {
	const kind = "NamedSpec"
	fields, err := Fields(kind, data, 2)
	if err != nil {
		return err
	}
	var s Spec
	if err := json.Unmarshal(fields[0], &s); err != nil {
		return wrapDecodeErr(kind, err)
	}
	name, err := decodeString(kind, fields[1])
	if err != nil {
		return err
	}
	*ns = NamedSpec{Spec: s, Name: name}
	return nil
}

func (c Cex) MarshalJSON() ([]byte, error) {
	witnesses := make([][]Binding, len(c))
	for i, w := range c {
		witnesses[i] = nonNil(w)
	}
	return Tagged("Cex", witnesses)
}

func (d Discovered) MarshalJSON() ([]byte, error) {
	return Tagged("Result", nonNil([]NamedSpec(d)))
}

// DecodeResult decodes the wire form of a Result.
func DecodeResult(data []byte) (Result, error) {
	const kind = "Result"
	tag, payload, err := Variant(kind, data)
	if err != nil {
		return nil, err
	}
	if err := needPayload(kind, tag, payload, "Cex", "Result"); err != nil {
		return nil, err
	}
	switch tag {
	case "Cex":
		var witnesses [][]Binding
		if err := json.Unmarshal(payload, &witnesses); err != nil {
			return nil, wrapDecodeErr(kind, err)
		}
		return Cex(witnesses), nil
	case "Result":
		var specs []NamedSpec
		if err := json.Unmarshal(payload, &specs); err != nil {
			return nil, wrapDecodeErr(kind, err)
		}
		return Discovered(specs), nil
	}
	return nil, decodeErr(kind, "unknown variant %q", tag)
}
