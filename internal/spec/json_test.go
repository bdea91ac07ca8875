package spec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireEncoding(t *testing.T) {
	x := Var{Type: Int, Name: "x"}
	tests := []struct {
		name string
		v    interface{}
		want string
	}{
		{"basic type", IntTreeI, `"IntTreeI"`},
		{"generic type", Generic{Name: "Customstk.t"}, `{"Generic":"Customstk.t"}`},
		{"tuple type", TupleType{Elems: []Type{Int, Bool}}, `{"Tuple":["Int","Bool"]}`},
		{"arrow type", Arrow{Dom: Int, Cod: Bool}, `{"Arrow":["Int","Bool"]}`},
		{"assertion type", AGeneric{Name: "T"}, `{"Generic":"T"}`},
		{"negative literal", Lit{Type: Int, Value: IntLit(-3)}, `{"Literal":["Int",{"Int":-3}]}`},
		{"empty list literal", Lit{Type: IntList, Value: IntListLit(nil)}, `{"Literal":["IntList",{"IntList":[]}]}`},
		{"var", x, `{"Var":["Int","x"]}`},
		{"nullary op", Op{Type: Bool, Name: "t"}, `{"Op":["Bool","t",[]]}`},
		{"tuple expr", TupleExpr{Elems: []SimpleExpr{x, x}}, `{"Tuple":[{"Var":["Int","x"]},{"Var":["Int","x"]}]}`},
		{"true", True{}, `"True"`},
		{"implies", Implies{L: True{}, R: Atom{Expr: x}}, `{"Implies":["True",{"Atom":{"Var":["Int","x"]}}]}`},
		{"not", Not{P: True{}}, `{"Not":"True"}`},
		{"empty and", And(nil), `{"And":[]}`},
		{"forall", ForallFormula{Body: True{}}, `[[],"True"]`},
		{"spec", Spec{Args: []TypedVar{{Type: AInt{}, Name: "x"}}, Formula: ForallFormula{
			Vars: []FreeVar{{Type: IntList, Name: "l"}}, Body: True{},
		}}, `[[["Int","x"]],[[["IntList","l"]],"True"]]`},
		{"predicates", Predicates{Member, Order}, `["member","order"]`},
		{"no predicates", Predicates(nil), `[]`},
		{"cex", Cex{{{Value: ListValue{1, 2}, Name: "x"}, {Value: NotADt{}, Name: "y"}}},
			`{"Cex":[[[{"L":[1,2]},"x"],["NotADt","y"]]]}`},
		{"discovered", Discovered{{Spec: Spec{Formula: ForallFormula{Body: True{}}}, Name: "concat"}},
			`{"Result":[[[[],[[],"True"]],"concat"]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.v)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func roundTrip[T any](t *testing.T, v T, decode func([]byte) (T, error)) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	got, err := decode(data)
	require.NoError(t, err, "decoding %s", data)
	if diff := cmp.Diff(v, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip of %s (-want +got):\n%s", data, diff)
	}
}

func TestWireRoundTrip(t *testing.T) {
	u := Var{Type: Int, Name: "u"}
	l := Var{Type: Generic{Name: "Customstk.t"}, Name: "l"}

	for _, ty := range []Type{
		Bool, Int, IntList, IntTree, IntTreeI, IntTreeB,
		Generic{Name: "Batchedq.t"},
		TupleType{},
		TupleType{Elems: []Type{Int, Arrow{Dom: IntList, Cod: Bool}}},
	} {
		roundTrip(t, ty, DecodeType)
	}

	for _, at := range []AssertionType{ABool{}, AInt{}, AGeneric{Name: "Splayhp.t"}} {
		roundTrip(t, at, DecodeAssertionType)
	}

	for _, v := range []Value{ListValue{}, ListValue{-1, 0, 1}, IntValue(-9), BoolValue(true), NotADt{}} {
		roundTrip(t, v, DecodeValue)
	}

	for _, e := range []SimpleExpr{
		Lit{Type: Bool, Value: BoolLit(false)},
		Lit{Type: IntList, Value: IntListLit{}},
		Lit{Type: IntList, Value: IntListLit{-4, 5}},
		Op{Type: Int, Name: "+", Args: []SimpleExpr{Lit{Type: Int, Value: IntLit(1)}, u}},
		TupleExpr{Elems: []SimpleExpr{u, l}},
	} {
		roundTrip(t, e, DecodeExpr)
	}

	memb := Atom{Expr: Op{Type: Bool, Name: "mem", Args: []SimpleExpr{l, u}}}
	for _, p := range []Pred{
		True{},
		memb,
		Implies{L: memb, R: True{}},
		Ite{Cond: memb, Then: True{}, Else: Not{P: memb}},
		And{memb, Or{memb, True{}}},
		Or{},
		Iff{L: memb, R: memb},
	} {
		roundTrip(t, p, DecodePred)
	}

	spec := Spec{
		Args:    []TypedVar{{Type: AGeneric{Name: "Customstk.t"}, Name: "l"}, {Type: AInt{}, Name: "u"}},
		Formula: ForallFormula{Vars: []FreeVar{{Type: Int, Name: "u"}}, Body: memb},
	}
	for _, r := range []Result{
		Cex{},
		Cex{{}, {{Value: IntValue(-2), Name: "x"}}},
		Discovered{},
		Discovered{{Spec: spec, Name: "concat"}},
	} {
		roundTrip(t, r, DecodeResult)
	}
}

func TestStructRoundTrip(t *testing.T) {
	in := Predicates{Root, Length, Ance}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	var out Predicates
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)

	s := Spec{
		Args:    []TypedVar{{Type: ABool{}, Name: "b"}},
		Formula: ForallFormula{Body: Atom{Expr: Var{Type: Bool, Name: "b"}}},
	}
	data, err = json.Marshal(s)
	require.NoError(t, err)
	var got Spec
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(s, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("spec round trip (-want +got):\n%s", diff)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		decode func([]byte) error
		in     string
		want   string
	}{
		{"unknown type tag", func(b []byte) error { _, err := DecodeType(b); return err }, `"Float"`, `unknown variant "Float"`},
		{"two tags", func(b []byte) error { _, err := DecodePred(b); return err }, `{"Not":"True","And":[]}`, "exactly one variant tag"},
		{"missing payload", func(b []byte) error { _, err := DecodePred(b); return err }, `"Not"`, "requires a payload"},
		{"unknown unit pred", func(b []byte) error { _, err := DecodePred(b); return err }, `"False"`, `unknown variant "False"`},
		{"unknown unit value", func(b []byte) error { _, err := DecodeValue(b); return err }, `"S"`, `unknown variant "S"`},
		{"unknown unit result", func(b []byte) error { _, err := DecodeResult(b); return err }, `"Unsat"`, `unknown variant "Unsat"`},
		{"known tag without payload", func(b []byte) error { _, err := DecodeType(b); return err }, `"Arrow"`, "requires a payload"},
		{"wrong arity", func(b []byte) error { _, err := DecodePred(b); return err }, `{"Iff":["True"]}`, "expected 2 fields, got 1"},
		{"not json", func(b []byte) error { _, err := DecodeExpr(b); return err }, `{"Var":`, "malformed payload"},
		{"empty", func(b []byte) error { _, err := DecodeValue(b); return err }, ``, "empty payload"},
		{"unknown predicate", func(b []byte) error { var k KnownPredicate; return json.Unmarshal(b, &k) }, `"size"`, `unknown variant "size"`},
		{"bad binding", func(b []byte) error { _, err := DecodeResult(b); return err }, `{"Cex":[[[{"Q":1},"x"]]]}`, `unknown variant "Q"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode([]byte(tt.in))
			require.Error(t, err)
			var de *DecodeError
			assert.True(t, errors.As(err, &de), "want *DecodeError, got %T: %v", err, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
