package parser_test

import (
	"go/token"
	"testing"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/parser"
	"github.com/sanity-io/litter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) (*ast.Program, *qerr.Errors, *token.FileSet) {
	t.Helper()
	fset := token.NewFileSet()
	prog, errs := parser.ParseToAST(fset, "test.ql", []byte(src))
	require.NotNil(t, prog)
	return prog, errs, fset
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name: "simple function",
			src:  "def add(a, b):\n    return a + b\n",
			expected: "def add(a, b):\n" +
				"    return a + b\n",
		},
		{
			name: "annotations are kept verbatim",
			src:  "def f(x: int, y: list[float], z: int | str) -> tuple[int, float]:\n    return x\n",
			expected: "def f(x: int, y: list[float], z: int | str) -> tuple[int, float]:\n" +
				"    return x\n",
		},
		{
			name: "precedence",
			src:  "def f(a, b, c):\n    return (a + b) * c - a / (b - c)\n",
			expected: "def f(a, b, c):\n" +
				"    return (a + b) * c - a / (b - c)\n",
		},
		{
			name: "elif becomes nested if",
			src: "def sign(x):\n" +
				"    if x > 0:\n" +
				"        return 1\n" +
				"    elif x < 0:\n" +
				"        return -1\n" +
				"    else:\n" +
				"        return 0\n",
			expected: "def sign(x):\n" +
				"    if x > 0:\n" +
				"        return 1\n" +
				"    else:\n" +
				"        if x < 0:\n" +
				"            return -1\n" +
				"        else:\n" +
				"            return 0\n",
		},
		{
			name: "while, print and logical operators",
			src: "def main():\n" +
				"    i = 0\n" +
				"    while i < 10 and not i == 5 or False:\n" +
				"        print(i)\n" +
				"        i = i + 1\n" +
				"    print(\"done\\n\")\n",
			expected: "def main():\n" +
				"    i = 0\n" +
				"    while i < 10 and not i == 5 or 0:\n" +
				"        print(i)\n" +
				"        i = i + 1\n" +
				"    print(\"done\\n\")\n",
		},
		{
			name: "single line suite and pass",
			src:  "def f(): return 1\ndef g():\n    pass\n",
			expected: "def f():\n" +
				"    return 1\n" +
				"\n" +
				"def g():\n" +
				"    pass\n",
		},
		{
			name: "calls and bare return",
			src:  "def f(x):\n    g(x, h(1), 2.5)\n    return\n",
			expected: "def f(x):\n" +
				"    g(x, h(1), 2.5)\n" +
				"    return\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			prog, errs, _ := parse(t, test.src)
			require.False(t, errs.HasError(), "%v", errs.Messages())
			assert.Equal(t, test.expected, ast.ProgramString(prog))
		})
	}
}

func TestParseStructure(t *testing.T) {
	prog, errs, _ := parse(t, "def f(x):\n    x = x * 2 + 1\n    return -x\n")
	require.False(t, errs.HasError())
	require.Len(t, prog.Functions, 1)

	body, ok := prog.Functions[0].Body.(*ast.Block)
	require.True(t, ok, litter.Sdump(prog.Functions[0].Body))
	require.Len(t, body.Stmts, 2)

	assign, ok := body.Stmts[0].(*ast.Assignment)
	require.True(t, ok)
	assert.Equal(t, "x", assign.Name)
	sum, ok := assign.Value.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, token.ADD, sum.Operator)
	product, ok := sum.Lhs.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, token.MUL, product.Operator)

	ret, ok := body.Stmts[1].(*ast.Return)
	require.True(t, ok)
	neg, ok := ret.Value.(*ast.Unary)
	require.True(t, ok)
	assert.Equal(t, token.SUB, neg.Operator)
}

func TestParsePositions(t *testing.T) {
	prog, errs, fset := parse(t, "def f():\n    return 1\n\ndef g():\n    return 2\n")
	require.False(t, errs.HasError())
	require.Len(t, prog.Functions, 2)

	g := prog.Functions[1]
	pos := fset.Position(g.Pos())
	assert.Equal(t, "test.ql", pos.Filename)
	assert.Equal(t, 4, pos.Line)
	assert.Equal(t, 1, pos.Column)
}

func TestParseStringEscapes(t *testing.T) {
	prog, errs, _ := parse(t, `def f():
    print("a\tb\\c\"d")
    print('it\'s')
`)
	require.False(t, errs.HasError(), "%v", errs.Messages())
	stmts := prog.Functions[0].Body.(*ast.Block).Stmts
	assert.Equal(t, "a\tb\\c\"d", stmts[0].(*ast.Print).Value.(*ast.String).Value)
	assert.Equal(t, "it's", stmts[1].(*ast.Print).Value.(*ast.String).Value)
}

func TestParseErrors(t *testing.T) {
	t.Run("recovers at the next function", func(t *testing.T) {
		prog, errs, _ := parse(t, "def f(:\n    return 1\ndef g():\n    return 2\n")
		require.True(t, errs.HasError())
		assert.Equal(t, qerr.Syntax, errs.Errors()[0].Code())
		require.Len(t, prog.Functions, 1)
		assert.Equal(t, "g", prog.Functions[0].Name)
	})
	t.Run("missing body", func(t *testing.T) {
		prog, errs, _ := parse(t, "def f():\ndef g():\n    return 2\n")
		require.True(t, errs.HasError())
		require.Len(t, prog.Functions, 1)
		assert.Equal(t, "g", prog.Functions[0].Name)
	})
	t.Run("statement at top level", func(t *testing.T) {
		_, errs, _ := parse(t, "x = 1\n")
		require.Equal(t, 1, errs.Len())
		assert.Contains(t, errs.Errors()[0].Error(), "expected 'def' at top level")
	})
	t.Run("bad dedent is reported with its position", func(t *testing.T) {
		_, errs, fset := parse(t, "def f():\n        a = 1\n    return a\n")
		require.True(t, errs.HasError())
		msg := qerr.FormatWithCodeAndSource(errs.Errors()[0], fset)
		assert.Equal(t, "test.ql:3:5: (E001) syntax error: unindent does not match any outer indentation level", msg)
	})
	t.Run("unknown escape", func(t *testing.T) {
		_, errs, _ := parse(t, "def f():\n    print('\\q')\n")
		require.Equal(t, 1, errs.Len())
		assert.Contains(t, errs.Errors()[0].Error(), `unknown escape sequence \q`)
	})
}
