package check_test

import (
	"go/token"
	"testing"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/check"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/frontend/types"
	"github.com/quill-lang/quill/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkSource(t *testing.T, src string) *check.ProgramResult {
	t.Helper()
	prog, errs := parser.ParseToAST(token.NewFileSet(), "test.ql", []byte(src))
	require.False(t, errs.HasError(), "%v", errs.Messages())
	return check.NewChecker().CheckProgram(prog)
}

func signature(t *testing.T, res *check.ProgramResult, name string) string {
	t.Helper()
	sig, ok := res.Signature(name, -1)
	require.True(t, ok, "no signature for %s", name)
	return sig.String()
}

func block(stmts ...ast.Stmt) *ast.Block {
	return &ast.Block{Stmts: stmts}
}

func TestCallSiteSpecialization(t *testing.T) {
	res := checkSource(t, `
def f(a, b):
    return a + b

def main():
    return f(5, 3)
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())

	assert.Equal(t, "(float, float) -> float", signature(t, res, "f"))
	assert.Equal(t, "() -> int", signature(t, res, "main"))
	assert.True(t, res.HasSpecialization("f", []types.Type{types.Int, types.Int}))

	specs := res.SpecializationsOf("f")
	require.Len(t, specs, 1)
	assert.Equal(t, "(int, int) -> int", specs[0].String())
}

func TestSpecializationIsCachedPerArgumentTypes(t *testing.T) {
	res := checkSource(t, `
def double(x):
    return x * 2

def main():
    a = double(1)
    b = double(2)
    c = double(1.5)
    return a + b
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	assert.Equal(t, "() -> int", signature(t, res, "main"))
	// the float call uses the default signature
	assert.Len(t, res.SpecializationsOf("double"), 1)
}

func TestRecursiveFunctions(t *testing.T) {
	res := checkSource(t, `
def fib(n):
    if n < 2:
        return n
    return fib(n - 1) + fib(n - 2)

def main():
    return fib(10)
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	assert.Equal(t, "(float) -> float", signature(t, res, "fib"))
	assert.Equal(t, "() -> float", signature(t, res, "main"))
	assert.True(t, res.HasSpecialization("fib", []types.Type{types.Int}))

	res = checkSource(t, `
def fact(n):
    if n < 2:
        return 1
    return n * fact(n - 1)

def main():
    x = fact(2.5)
    x = 0.5
    return x
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	assert.Equal(t, "(float) -> float", signature(t, res, "fact"))
	assert.Equal(t, "() -> float", signature(t, res, "main"))
}

func TestForwardReference(t *testing.T) {
	res := checkSource(t, `
def main():
    return later()

def later():
    return 1
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	assert.Equal(t, "() -> int", signature(t, res, "main"))
}

func TestIfMergeUnifiesBranches(t *testing.T) {
	res := checkSource(t, `
def g(c):
    if c:
        x = 1
    else:
        x = 2.5
    return x
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	assert.Equal(t, "(float) -> float", signature(t, res, "g"))

	c := check.NewChecker()
	c.Environment().Define("c", types.Bool)
	stmt := &ast.If{
		Cond: &ast.Variable{Name: "c"},
		Then: block(&ast.Assignment{Name: "x", Value: &ast.Number{Value: 1}}),
		Else: block(&ast.Assignment{Name: "x", Value: &ast.Number{Value: 2.5}}),
	}
	stmtRes := c.CheckStatement(stmt)
	require.False(t, stmtRes.HasErrors())

	x, ok := c.Context().Get("x")
	require.True(t, ok)
	assert.Equal(t, types.Float, x)
	assert.True(t, c.Context().IsModified("x"))
}

func TestIfMergeKeepsFirstTypeWhenBranchesDisagree(t *testing.T) {
	c := check.NewChecker()
	stmt := &ast.If{
		Cond: &ast.Number{Value: 1},
		Then: block(&ast.Assignment{Name: "x", Value: &ast.Number{Value: 1}}),
		Else: block(&ast.Assignment{Name: "x", Value: &ast.String{Value: "s"}}),
	}
	res := c.CheckStatement(stmt)
	require.False(t, res.HasErrors())

	x, ok := c.Context().Get("x")
	require.True(t, ok)
	assert.Equal(t, types.Int, x)
}

func TestWhileLoop(t *testing.T) {
	res := checkSource(t, `
def count():
    i = 0
    while i < 3:
        i = i + 1
    return i
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	assert.Equal(t, "() -> int", signature(t, res, "count"))
}

func TestExpressionTypes(t *testing.T) {
	tests := []struct {
		expr     string
		expected string
	}{
		{"1", "int"},
		{"1.5", "float"},
		{"'s'", "str"},
		{"1 + 2", "int"},
		{"1 + 2.5", "float"},
		{"7 % 2", "int"},
		{"1 < 2", "bool"},
		{"'a' == 'b'", "bool"},
		{"1 < 2 and 3", "bool"},
		{"not 1", "bool"},
		{"-2", "int"},
		{"-2.5", "float"},
		{"True", "int"},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			res := checkSource(t, "def f():\n    return "+test.expr+"\n")
			require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
			assert.Equal(t, "() -> "+test.expected, signature(t, res, "f"))
		})
	}
}

func TestAnnotations(t *testing.T) {
	res := checkSource(t, `
def scale(x: int, factor: float) -> float:
    return x * factor

def name(s: str) -> str:
    return s
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	assert.Equal(t, "(int, float) -> float", signature(t, res, "scale"))
	assert.Equal(t, "(str) -> str", signature(t, res, "name"))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		code     qerr.ErrCode
		expected string
	}{
		{
			name:     "undefined variable",
			src:      "def f():\n    return y\n",
			code:     qerr.UndefinedVariable,
			expected: "undefined variable: y",
		},
		{
			name:     "undefined function",
			src:      "def f():\n    return g(1)\n",
			code:     qerr.UndefinedFunction,
			expected: "undefined function: g",
		},
		{
			name:     "no matching overload",
			src:      "def f(a: int):\n    return a\n\ndef main():\n    return f(2.5)\n",
			code:     qerr.NoMatchingOverload,
			expected: "no matching overload for f(float)",
		},
		{
			name:     "assignment mismatch",
			src:      "def f():\n    x = 1\n    x = 's'\n",
			code:     qerr.TypeMismatch,
			expected: "type error in assignment to variable 'x': expected int, got str",
		},
		{
			name:     "string condition",
			src:      "def f():\n    if 's':\n        pass\n",
			code:     qerr.InvalidCondition,
			expected: "if condition must be boolean or numeric, got: str",
		},
		{
			name:     "non numeric operand",
			src:      "def f():\n    return 'a' - 1\n",
			code:     qerr.NonNumericOperand,
			expected: "operator - requires numeric types, got: str and int",
		},
		{
			name:     "incomparable operands",
			src:      "def f():\n    return 'a' < 1\n",
			code:     qerr.IncomparableOperands,
			expected: "cannot compare incompatible types: str and int",
		},
		{
			name:     "inconsistent returns",
			src:      "def f(c):\n    if c:\n        return 1\n    return 's'\n",
			code:     qerr.InconsistentReturn,
			expected: "function 'f' returns incompatible types: int, str",
		},
		{
			name:     "annotated return mismatch",
			src:      "def f() -> int:\n    return 2.5\n",
			code:     qerr.TypeMismatch,
			expected: "type error in return type of function 'f': expected int, got float",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := checkSource(t, test.src)
			require.Equal(t, 1, res.Errors.Len(), "%v", res.Errors.Messages())
			err := res.Errors.Errors()[0]
			assert.Equal(t, test.code, err.Code())
			assert.Equal(t, test.expected, err.Error())
		})
	}
}

func TestInvalidAnnotation(t *testing.T) {
	res := checkSource(t, "def f(x: foo):\n    return 1\n")
	require.Equal(t, 1, res.Errors.Len())
	assert.Equal(t, qerr.InvalidAnnotation, res.Errors.Errors()[0].Code())
	assert.Contains(t, res.Errors.Errors()[0].Error(), "invalid type annotation 'foo'")
}

func TestErrorsDoNotCascade(t *testing.T) {
	res := checkSource(t, `
def broken():
    x = missing
    y = x + 1
    return y * 2

def fine(a):
    return a - 1
`)
	require.Equal(t, 1, res.Errors.Len(), "%v", res.Errors.Messages())
	assert.Equal(t, "undefined variable: missing", res.Errors.Errors()[0].Error())
	assert.Equal(t, "(float) -> float", signature(t, res, "fine"))
}

func TestWarnings(t *testing.T) {
	res := checkSource(t, `
def f():
    return 1
    print(2)

def f():
    return 2
`)
	require.False(t, res.HasErrors(), "%v", res.Errors.Messages())
	messages := make([]string, len(res.Warnings))
	for i, w := range res.Warnings {
		messages[i] = w.Message
	}
	assert.ElementsMatch(t, []string{
		"duplicate declaration of function 'f' with 0 parameters, the last one is used",
	}, messages)

	res = checkSource(t, "def g():\n    return 1\n    print(2)\n")
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "unreachable statement after return", res.Warnings[0].Message)
}

func TestNilNodes(t *testing.T) {
	c := check.NewChecker()

	res := c.CheckStatement(nil)
	require.True(t, res.HasErrors())
	assert.Equal(t, qerr.Structural, res.Errors.Errors()[0].Code())

	res = c.InferExpression((*ast.Number)(nil))
	require.True(t, res.HasErrors())
	assert.Equal(t, "malformed syntax tree: null expression", res.Errors.Errors()[0].Error())

	res = c.CheckStatement(&ast.Assignment{Name: "x"})
	assert.True(t, res.HasErrors())

	prog := c.CheckProgram(&ast.Program{Functions: []*ast.Function{nil, {Name: "empty"}}})
	assert.Equal(t, 2, prog.Errors.Len(), "%v", prog.Errors.Messages())

	assert.True(t, c.CheckProgram(nil).HasErrors())
}

func TestUnknownOperator(t *testing.T) {
	c := check.NewChecker()
	res := c.InferExpression(&ast.Binary{Operator: token.XOR, Lhs: &ast.Number{Value: 1}, Rhs: &ast.Number{Value: 2}})
	require.True(t, res.HasErrors())
	assert.Equal(t, "unknown operator: ^", res.Errors.Errors()[0].Error())
}

func TestCheckFunction(t *testing.T) {
	c := check.NewChecker()
	res := c.CheckFunction(&ast.Function{
		Name:   "inc",
		Params: []ast.Param{{Name: "x"}},
		Body:   &ast.Return{Value: &ast.Binary{Operator: token.ADD, Lhs: &ast.Variable{Name: "x"}, Rhs: &ast.Number{Value: 1}}},
	})
	require.False(t, res.HasErrors())
	assert.Equal(t, "(float) -> float", res.Type.String())

	call := c.InferExpression(&ast.Call{Callee: "inc", Args: []ast.Expr{&ast.Number{Value: 1}}})
	require.False(t, call.HasErrors())
	assert.Equal(t, types.Int, call.Type)
}
