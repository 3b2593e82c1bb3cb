package quill

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/frontend/types"
	"github.com/quill-lang/quill/optimize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testError(t *testing.T, prog string, shouldContain ...string) *Unit {
	unit, err := NewUnitFromBytes([]byte(prog), "test.ql", Settings{})
	require.NoError(t, err)
	require.True(t, unit.Errors().HasError())
	errMsg := unit.FormatErrors()
	for _, s := range shouldContain {
		assert.Contains(t, errMsg, s)
	}
	t.Log("error message:\n" + errMsg)
	return unit
}

func TestSyntaxErrorStopsPipeline(t *testing.T) {
	unit := testError(t, "def main():\n    x = (1 +\n", "test.ql:")
	assert.Nil(t, unit.Check)
	assert.Nil(t, unit.Module)
	assert.Equal(t, qerr.Syntax, unit.Errors().Errors()[0].Code())
}

func TestTypeErrorsStopBeforeEmit(t *testing.T) {
	unit := testError(t, "def main():\n    return y\n", "test.ql:2:", "(E")
	assert.NotNil(t, unit.Check)
	assert.Nil(t, unit.Module)
}

func TestCompileAndRun(t *testing.T) {
	src := "def f(a, b):\n    return a + b\n\ndef main():\n    print(f(5, 3))\n    return 0\n"
	for _, level := range []optimize.Level{optimize.O0, optimize.O1, optimize.O2, optimize.O3} {
		t.Run(level.String(), func(t *testing.T) {
			unit, err := NewUnitFromBytes([]byte(src), "add.ql", Settings{Level: level})
			require.NoError(t, err)
			require.False(t, unit.Errors().HasError(), unit.FormatErrors())
			assert.True(t, unit.Check.HasSpecialization("f", []types.Type{types.Int, types.Int}))

			out := &bytes.Buffer{}
			_, err = unit.Run(out, 0)
			require.NoError(t, err)
			assert.Equal(t, "8\n", out.String())

			phases := make([]string, 0, len(unit.Timings))
			for _, timing := range unit.Timings {
				phases = append(phases, timing.Phase)
			}
			assert.Equal(t, []string{"parse", "check", "emit", "optimize"}, phases)
		})
	}
}

func TestLoadFile(t *testing.T) {
	fsys := fstest.MapFS{
		"src/prog.ql": &fstest.MapFile{Data: []byte("def main():\n    return 2 * 21\n")},
	}
	unit, err := LoadFile(fsys, "src/prog.ql", Settings{Level: optimize.O1})
	require.NoError(t, err)
	assert.Equal(t, "prog.ql", unit.Name)
	ret, err := unit.Run(&bytes.Buffer{}, 0)
	require.NoError(t, err)
	assert.Equal(t, 42.0, ret)

	buf := &bytes.Buffer{}
	require.NoError(t, unit.WriteLLVM(buf))
	assert.Contains(t, buf.String(), "define double @main()")
	assert.Contains(t, buf.String(), "ret double 42.0")

	_, err = LoadFile(fsys, "missing.ql", Settings{})
	assert.Error(t, err)
}

func TestKeepGoingAndSkipTypeCheck(t *testing.T) {
	src := "def f(x: int) -> int:\n    return x\n\ndef main():\n    print(f(2.5))\n"

	unit, err := NewUnitFromBytes([]byte(src), "t.ql", Settings{})
	require.NoError(t, err)
	assert.True(t, unit.Errors().HasError())
	assert.Nil(t, unit.Module)

	unit, err = NewUnitFromBytes([]byte(src), "t.ql", Settings{KeepGoing: true})
	require.NoError(t, err)
	assert.True(t, unit.Errors().HasError())
	out := &bytes.Buffer{}
	_, err = unit.Run(out, 0)
	require.NoError(t, err)
	assert.Equal(t, "2.500000\n", out.String())

	unit, err = NewUnitFromBytes([]byte(src), "t.ql", Settings{SkipTypeCheck: true})
	require.NoError(t, err)
	assert.False(t, unit.Errors().HasError())
	assert.Nil(t, unit.Check)
	assert.Nil(t, unit.Warnings())
	assert.NotNil(t, unit.Module)
}

func TestRunErrors(t *testing.T) {
	unit, err := NewUnitFromBytes([]byte("def helper():\n    return 1\n"), "lib.ql", Settings{})
	require.NoError(t, err)
	_, err = unit.Run(&bytes.Buffer{}, 0)
	assert.True(t, errors.Is(err, ErrNoEntryPoint))

	unit, err = NewUnitFromBytes([]byte("def main():\n    while 1:\n        x = 1\n"), "spin.ql", Settings{})
	require.NoError(t, err)
	_, err = unit.Run(&bytes.Buffer{}, 1000)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "out of fuel"))
}

func TestPassSelection(t *testing.T) {
	src := []byte("def main():\n    return 1 + 2\n")
	unit, err := NewUnitFromBytes(src, "p.ql", Settings{Level: optimize.O0, EnablePasses: []string{"constfold"}})
	require.NoError(t, err)
	assert.Equal(t, 1, unit.Stats.ConstantsFolded)

	_, err = NewUnitFromBytes(src, "p.ql", Settings{DisablePasses: []string{"nope"}})
	assert.Error(t, err)
}
