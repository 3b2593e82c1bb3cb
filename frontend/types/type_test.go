package types_test

import (
	"testing"

	"github.com/quill-lang/quill/frontend/types"
	"github.com/stretchr/testify/assert"
)

func sampleTypes() map[string]types.Type {
	return map[string]types.Type{
		"int":       types.Int,
		"float":     types.Float,
		"bool":      types.Bool,
		"str":       types.String,
		"void":      types.Void,
		"function":  types.NewFunction(types.Int, types.Int, types.Float),
		"list":      types.NewList(types.Float),
		"tuple":     types.NewTuple(types.Int, types.String),
		"union":     types.NewUnion(types.Int, types.String),
		"du":        types.NewDiscriminatedUnion(types.Variant{Tag: "Some", Payload: types.Int}, types.Variant{Tag: "None", Payload: types.Void}),
		"interface": types.NewInterface("Shape", types.Method{Name: "area", Signature: types.NewFunction(types.Float)}),
		"generic":   types.NewGeneric("T"),
	}
}

func TestEqualsIsReflexiveAndStructural(t *testing.T) {
	for name, typ := range sampleTypes() {
		t.Run(name, func(t *testing.T) {
			assert.True(t, typ.Equals(typ))
			clone := typ.Clone()
			assert.True(t, typ.Equals(clone))
			assert.True(t, clone.Equals(typ))
			assert.Equal(t, typ.Hash(), clone.Hash())
			assert.Equal(t, typ.String(), clone.String())
		})
	}
}

func TestDistinctTypesAreNotEqual(t *testing.T) {
	all := sampleTypes()
	for n1, t1 := range all {
		for n2, t2 := range all {
			if n1 == n2 {
				continue
			}
			assert.False(t, t1.Equals(t2), "%s should not equal %s", n1, n2)
		}
	}
}

func TestUnknownAndErrorNeverEqual(t *testing.T) {
	unknown := types.Unknown
	err := types.NewError("boom")

	assert.False(t, unknown.Equals(unknown))
	assert.False(t, err.Equals(err))
	assert.False(t, unknown.Equals(types.Unknown.Clone()))
	assert.False(t, err.Equals(types.NewError("boom")))
	assert.False(t, types.Int.Equals(unknown))
	assert.False(t, types.NewList(unknown).Equals(types.NewList(unknown)))
}

func TestAssignability(t *testing.T) {
	tests := []struct {
		name     string
		target   types.Type
		source   types.Type
		expected bool
	}{
		{"float accepts int", types.Float, types.Int, true},
		{"int rejects float", types.Int, types.Float, false},
		{"str rejects int", types.String, types.Int, false},
		{"unknown accepts everything", types.Unknown, types.NewList(types.String), true},
		{"error source is accepted", types.Int, types.NewError("earlier failure"), true},
		{"union accepts member", types.NewUnion(types.Int, types.String), types.String, true},
		{"union accepts promoted member", types.NewUnion(types.Float, types.String), types.Int, true},
		{"union rejects non member", types.NewUnion(types.Int, types.String), types.Bool, false},
		{"union accepts sub union", types.NewUnion(types.Int, types.String, types.Bool), types.NewUnion(types.Bool, types.Int), true},
		{"union rejects wider union", types.NewUnion(types.Int), types.NewUnion(types.Bool, types.Int), false},
		{"du accepts payload", types.NewDiscriminatedUnion(types.Variant{Tag: "Ok", Payload: types.Int}), types.Int, true},
		{"tuple elementwise", types.NewTuple(types.Float, types.String), types.NewTuple(types.Int, types.String), true},
		{"tuple arity", types.NewTuple(types.Float), types.NewTuple(types.Int, types.String), false},
		{"list is invariant", types.NewList(types.Float), types.NewList(types.Int), false},
		{"function exact", types.NewFunction(types.Int, types.Int), types.NewFunction(types.Int, types.Int), true},
		{"function differing return", types.NewFunction(types.Int, types.Int), types.NewFunction(types.Float, types.Int), false},
		{
			"interface accepts superset",
			types.NewInterface("Shape", types.Method{Name: "area", Signature: types.NewFunction(types.Float)}),
			types.NewInterface("Square",
				types.Method{Name: "side", Signature: types.NewFunction(types.Float)},
				types.Method{Name: "area", Signature: types.NewFunction(types.Float)},
			),
			true,
		},
		{
			"interface rejects differing signature",
			types.NewInterface("Shape", types.Method{Name: "area", Signature: types.NewFunction(types.Float)}),
			types.NewInterface("Bad", types.Method{Name: "area", Signature: types.NewFunction(types.Int)}),
			false,
		},
		{"generic accepts same name", types.NewGeneric("T"), types.NewGeneric("T"), true},
		{"generic rejects concrete", types.NewGeneric("T"), types.Int, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.target.IsAssignableFrom(tt.source))
		})
	}
}

func TestPromote(t *testing.T) {
	numeric := []types.Type{types.Int, types.Float}
	for _, a := range numeric {
		for _, b := range numeric {
			assert.True(t, types.Promote(a, b).Equals(types.Promote(b, a)), "promote(%v, %v) is commutative", a, b)
		}
	}
	assert.True(t, types.Promote(types.Int, types.Int).Equals(types.Int))
	assert.True(t, types.Promote(types.Int, types.Float).Equals(types.Float))
	assert.True(t, types.IsError(types.Promote(types.Int, types.String)))
	assert.True(t, types.IsError(types.Promote(types.Bool, types.Bool)))
}

func TestUnify(t *testing.T) {
	assert.True(t, types.Unify(types.Int, types.Float).Equals(types.Float))
	assert.True(t, types.Unify(types.String, types.String).Equals(types.String))
	assert.True(t, types.Unify(types.Unknown, types.Bool).Equals(types.Bool))
	assert.True(t, types.IsError(types.Unify(types.Int, types.String)))
}

func TestUnionEquality(t *testing.T) {
	a := types.NewUnion(types.Int, types.String, types.Int)
	b := types.NewUnion(types.String, types.NewUnion(types.Int))
	assert.Len(t, a.Members(), 2)
	assert.True(t, a.Equals(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equals(types.NewUnion(types.Int, types.String, types.Bool)))
	assert.False(t, types.NewUnion(types.Int, types.Bool).Equals(types.NewUnion(types.Int, types.String)))
}

func TestDiscriminatedUnionEqualityIgnoresOrder(t *testing.T) {
	a := types.NewDiscriminatedUnion(
		types.Variant{Tag: "Some", Payload: types.Int},
		types.Variant{Tag: "None", Payload: types.Void},
	)
	b := types.NewDiscriminatedUnion(
		types.Variant{Tag: "None", Payload: types.Void},
		types.Variant{Tag: "Some", Payload: types.Int},
	)
	c := types.NewDiscriminatedUnion(
		types.Variant{Tag: "None", Payload: types.Void},
		types.Variant{Tag: "Some", Payload: types.Float},
	)
	assert.True(t, a.Equals(b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equals(c))
	assert.Equal(t, []string{"None", "Some"}, a.Tags())
}

func TestDiscriminatedUnionRepeatedTags(t *testing.T) {
	intFloat := []types.Variant{{Tag: "A", Payload: types.Int}, {Tag: "A", Payload: types.Float}}
	intInt := []types.Variant{{Tag: "A", Payload: types.Int}, {Tag: "A", Payload: types.Int}}

	a := types.NewDiscriminatedUnion(intFloat...)
	b := types.NewDiscriminatedUnion(intInt...)
	assert.Len(t, a.Variants, 1)
	assert.Equal(t, "A(int)", a.String())
	assert.True(t, a.Equals(b))
	assert.True(t, b.Equals(a))

	rawA := &types.DiscriminatedUnion{Variants: intFloat}
	rawB := &types.DiscriminatedUnion{Variants: intInt}
	assert.Equal(t, rawA.Equals(rawB), rawB.Equals(rawA))
	assert.Equal(t, rawA.Hash(), rawB.Hash())
}

func TestString(t *testing.T) {
	tests := []struct {
		typ      types.Type
		expected string
	}{
		{types.Int, "int"},
		{types.String, "str"},
		{types.NewFunction(types.Int, types.Int, types.Int), "(int, int) -> int"},
		{types.NewList(types.Float), "list[float]"},
		{types.NewTuple(types.Int, types.String), "tuple[int, str]"},
		{types.NewUnion(types.Int, types.String), "int | str"},
		{types.NewDiscriminatedUnion(types.Variant{Tag: "Some", Payload: types.Int}, types.Variant{Tag: "None", Payload: types.Void}), "Some(int) | None(void)"},
		{types.NewInterface("Shape", types.Method{Name: "area", Signature: types.NewFunction(types.Float)}), "interface Shape { area: () -> float }"},
		{types.Unknown, "unknown"},
		{types.NewError("x"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.typ.String())
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	inner := types.NewList(types.Int)
	fn := types.NewFunction(inner, inner.Clone())
	clone := fn.Clone().(*types.Function)

	assert.NotSame(t, fn.Return, clone.Return)
	assert.NotSame(t, fn.Params[0], clone.Params[0])
	assert.True(t, fn.Equals(clone))
}
