package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoping(t *testing.T) {
	env := NewEnvironment()
	env.Define("global", Int)

	env.PushScope()
	env.Define("local", String)
	env.Define("global", Float)
	assert.Equal(t, 2, env.Depth())

	found, ok := env.Lookup("global")
	require.True(t, ok)
	assert.True(t, found.Equals(Float), "innermost binding shadows the global one")
	assert.True(t, env.IsDefinedInCurrentScope("local"))

	env.PopScope()
	_, ok = env.Lookup("local")
	assert.False(t, ok, "names of a popped scope are invisible")
	found, ok = env.Lookup("global")
	require.True(t, ok)
	assert.True(t, found.Equals(Int))
}

func TestGlobalScopeIsPermanent(t *testing.T) {
	env := NewEnvironment()
	env.Define("x", Bool)
	env.PopScope()
	env.PopScope()
	assert.Equal(t, 1, env.Depth())
	_, ok := env.Lookup("x")
	assert.True(t, ok)
}

func TestLookupFunction(t *testing.T) {
	env := NewEnvironment()
	env.DefineFunction("add", NewFunction(Int, Int, Int))
	env.DefineFunction("add", NewFunction(String, String, String))
	env.Define("notAFunction", Int)

	fn, err := env.LookupFunction("add", []Type{String, String})
	require.NoError(t, err)
	assert.True(t, fn.Return.Equals(String))

	fn, err = env.LookupFunction("add", []Type{Int, Int})
	require.NoError(t, err)
	assert.True(t, fn.Return.Equals(Int))

	_, err = env.LookupFunction("add", []Type{Int})
	assert.True(t, errors.Is(err, ErrNoMatchingOverload), "arity mismatch")

	_, err = env.LookupFunction("add", []Type{Float, Float})
	assert.True(t, errors.Is(err, ErrNoMatchingOverload), "float does not narrow to int")

	_, err = env.LookupFunction("missing", nil)
	assert.True(t, errors.Is(err, ErrUndefined))

	_, err = env.LookupFunction("notAFunction", nil)
	assert.True(t, errors.Is(err, ErrUndefined))
}

func TestLookupFunctionPromotesArguments(t *testing.T) {
	env := NewEnvironment()
	env.DefineFunction("half", NewFunction(Float, Float))
	fn, err := env.LookupFunction("half", []Type{Int})
	require.NoError(t, err)
	assert.True(t, fn.Return.Equals(Float))
}

func TestDefineFunctionReplacesEqualSignature(t *testing.T) {
	env := NewEnvironment()
	env.DefineFunction("f", NewFunction(Unknown, Unknown))
	env.DefineFunction("f", NewFunction(Int, Int))
	env.DefineFunction("f", NewFunction(Float, Int))
	assert.Len(t, env.Overloads("f"), 2)
}

func TestInnerOverloadsComeFirst(t *testing.T) {
	env := NewEnvironment()
	env.DefineFunction("f", NewFunction(Int, Float))
	env.PushScope()
	env.DefineFunction("f", NewFunction(String, Float))

	fn, err := env.LookupFunction("f", []Type{Int})
	require.NoError(t, err)
	assert.True(t, fn.Return.Equals(String))
}

func TestReplaceFunctionRefinesProvisionalSignature(t *testing.T) {
	env := NewEnvironment()
	env.DefineFunction("f", NewFunction(Unknown, Unknown, Unknown))
	env.ReplaceFunction("f", NewFunction(Float, Float, Float))

	overloads := env.Overloads("f")
	require.Len(t, overloads, 1)
	assert.True(t, overloads[0].Return.Equals(Float))
}
