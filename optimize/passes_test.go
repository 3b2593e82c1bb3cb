package optimize_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
	"github.com/quill-lang/quill/optimize"
	"github.com/sanity-io/litter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

func dbl(f float64) *constant.Float {
	return constant.NewFloat(types.Double, f)
}

func returned(t *testing.T, f *ir.Func) value.Value {
	t.Helper()
	ret, ok := f.Blocks[len(f.Blocks)-1].Term.(*ir.TermRet)
	require.True(t, ok, "last block does not return")
	return ret.X
}

func runMain(t *testing.T, m *ir.Module) float64 {
	t.Helper()
	ret, err := irutil.NewMachine(m, &bytes.Buffer{}).Run("main")
	if err != nil {
		t.Fatalf("running main: %v", err)
	}
	return ret
}

func TestConstantFolding(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("main", types.Double)
	b := f.NewBlock("entry")
	mul := b.NewFMul(dbl(3), dbl(2))
	b.NewRet(b.NewFAdd(dbl(5), mul))

	pass := &optimize.ConstantFolding{Logger: quiet}
	stats := &optimize.Stats{}
	assert.True(t, pass.RunOnFunction(f, stats))
	assert.Equal(t, 2, stats.ConstantsFolded)
	assert.Empty(t, b.Insts)
	folded, ok := irutil.FloatConst(returned(t, f))
	require.True(t, ok)
	assert.Equal(t, 11.0, folded)

	assert.False(t, pass.RunOnFunction(f, stats), "folding is a fixed point")
	assert.Equal(t, 2, stats.ConstantsFolded)
}

func TestConstantFoldingLeavesDivisionByZero(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("main", types.Double)
	b := f.NewBlock("entry")
	b.NewRet(b.NewFDiv(dbl(1), dbl(0)))
	assert.False(t, (&optimize.ConstantFolding{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
	assert.Len(t, b.Insts, 1)
}

func TestFold(t *testing.T) {
	tests := []struct {
		name     string
		inst     ir.Instruction
		expected string
	}{
		{name: "frem", inst: ir.NewFRem(dbl(10), dbl(4)), expected: "2.0"},
		{name: "fcmp", inst: ir.NewFCmp(enum.FPredOLT, dbl(1), dbl(2)), expected: "true"},
		{name: "int add wraps", inst: ir.NewAdd(constant.NewInt(types.I8, 127), constant.NewInt(types.I8, 1)), expected: "-128"},
		{name: "sitofp", inst: ir.NewSIToFP(constant.NewInt(types.I32, -3), types.Double), expected: "-3.0"},
		{name: "select", inst: ir.NewSelect(constant.False, dbl(1), dbl(2)), expected: "2.0"},
		{name: "and i1", inst: ir.NewAnd(constant.True, constant.True), expected: "true"},
		{name: "or i1", inst: ir.NewOr(constant.False, constant.True), expected: "true"},
		{name: "xor i1", inst: ir.NewXor(constant.True, constant.True), expected: "false"},
		{name: "add i1 wraps", inst: ir.NewAdd(constant.True, constant.True), expected: "false"},
		{name: "sext i1", inst: ir.NewSExt(constant.True, types.I32), expected: "-1"},
		{name: "zext i1", inst: ir.NewZExt(constant.True, types.I32), expected: "1"},
		{name: "zext masks", inst: ir.NewZExt(constant.NewInt(types.I8, -1), types.I32), expected: "255"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			folded, ok := optimize.Fold(test.inst)
			require.True(t, ok)
			assert.Equal(t, test.expected, folded.Ident())
		})
	}
	_, ok := optimize.Fold(ir.NewFRem(dbl(1), dbl(0)))
	assert.False(t, ok)
}

func TestConstantFoldingBooleans(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := ir.NewModule()
	f := m.NewFunc("main", types.Double)
	b := f.NewBlock("entry")
	both := b.NewAnd(b.NewFCmp(enum.FPredOLT, dbl(1), dbl(2)), b.NewFCmp(enum.FPredOLT, dbl(2), dbl(3)))
	either := b.NewOr(b.NewFCmp(enum.FPredOGT, dbl(1), dbl(2)), both)
	b.NewRet(b.NewUIToFP(either, types.Double))

	require.NotPanics(t, func() {
		assert.True(t, (&optimize.ConstantFolding{Logger: logger}).RunOnFunction(f, &optimize.Stats{}))
	})
	assert.Empty(t, b.Insts)
	folded, ok := irutil.FloatConst(returned(t, f))
	require.True(t, ok)
	assert.Equal(t, 1.0, folded)
	assert.Contains(t, buf.String(), "fcmp olt double 1.0, 2.0")
	assert.Contains(t, buf.String(), "to=true")
	assert.NotPanics(t, func() { _ = m.String() })
}

func TestSingleStoreFolding(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("main", types.Double)
	b := f.NewBlock("entry")
	slot := b.NewAlloca(types.Double)
	b.NewStore(dbl(4), slot)
	x := b.NewLoad(types.Double, slot)
	b.NewRet(b.NewFMul(x, x))

	assert.True(t, (&optimize.ConstantFolding{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
	assert.Empty(t, b.Insts, litter.Sdump(f.LLString()))
	folded, _ := irutil.FloatConst(returned(t, f))
	assert.Equal(t, 16.0, folded)
}

func TestDeadCodeElimination(t *testing.T) {
	m := ir.NewModule()
	f := m.NewFunc("main", types.Double, ir.NewParam("x", types.Double))
	entry := f.NewBlock("entry")
	next := f.NewBlock("next")
	dead := f.NewBlock("dead")

	unused := entry.NewFAdd(f.Params[0], dbl(1))
	entry.NewFMul(unused, dbl(2))
	slot := entry.NewAlloca(types.Double)
	entry.NewStore(f.Params[0], slot)
	entry.NewBr(next)
	next.NewRet(f.Params[0])
	dead.NewRet(dbl(0))

	pass := &optimize.DeadCodeElimination{Logger: quiet}
	stats := &optimize.Stats{}
	assert.True(t, pass.RunOnFunction(f, stats))
	require.Len(t, f.Blocks, 1, "unreachable block removed and next merged into entry")
	assert.Empty(t, f.Blocks[0].Insts)
	assert.Equal(t, f.Params[0], returned(t, f))

	assert.False(t, pass.RunOnFunction(f, stats))
	assert.False(t, pass.RunOnFunction(f, stats))
}

func TestDeadCodeEliminationKeepsSideEffects(t *testing.T) {
	m := ir.NewModule()
	printD := m.NewFunc("print_double", types.Void, ir.NewParam("x", types.Double))
	f := m.NewFunc("main", types.Double)
	b := f.NewBlock("entry")
	b.NewCall(printD, dbl(1))
	b.NewRet(dbl(0))

	assert.False(t, (&optimize.DeadCodeElimination{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
	assert.Len(t, b.Insts, 1)
}

func TestDeadCodeEliminationIdempotentOnEmittedCode(t *testing.T) {
	m := compile(t, programs["loop"])
	pass := &optimize.DeadCodeElimination{Logger: quiet}
	for _, f := range m.Funcs {
		if irutil.IsDeclaration(f) {
			continue
		}
		pass.RunOnFunction(f, &optimize.Stats{})
		minimal := f.LLString()
		assert.False(t, pass.RunOnFunction(f, &optimize.Stats{}))
		assert.False(t, pass.RunOnFunction(f, &optimize.Stats{}))
		assert.Equal(t, minimal, f.LLString())
	}
}

func TestReassociate(t *testing.T) {
	m := ir.NewModule()
	x := ir.NewParam("x", types.Double)
	n := ir.NewParam("n", types.I64)
	f := m.NewFunc("f", types.I64, x, n)
	b := f.NewBlock("entry")
	sum := b.NewFAdd(dbl(1), x)
	cmp := b.NewFCmp(enum.FPredOLT, dbl(2), x)
	inner := b.NewAdd(n, constant.NewInt(types.I64, 2))
	outer := b.NewAdd(inner, constant.NewInt(types.I64, 3))
	b.NewRet(outer)

	stats := &optimize.Stats{}
	assert.True(t, (&optimize.Reassociate{Logger: quiet}).RunOnFunction(f, stats))
	assert.Equal(t, x, sum.X)
	assert.Equal(t, x, cmp.X)
	assert.Equal(t, enum.FPredOGT, cmp.Pred)
	assert.Equal(t, n, outer.X)
	c, ok := irutil.IntConst(outer.Y)
	require.True(t, ok)
	assert.Equal(t, int64(5), c)
	assert.Equal(t, 1, stats.ConstantsFolded)
}

func TestValueNumbering(t *testing.T) {
	m := ir.NewModule()
	x := ir.NewParam("x", types.Double)
	f := m.NewFunc("f", types.Double, x)
	b := f.NewBlock("entry")
	a := b.NewFAdd(x, dbl(1))
	again := b.NewFAdd(dbl(1), x)
	slot := b.NewAlloca(types.Double)
	b.NewStore(a, slot)
	loaded := b.NewLoad(types.Double, slot)
	product := b.NewFMul(again, loaded)
	b.NewRet(product)

	stats := &optimize.Stats{}
	assert.True(t, (&optimize.ValueNumbering{Logger: quiet}).RunOnFunction(f, stats))
	assert.Equal(t, a, product.X)
	assert.Equal(t, a, product.Y, "store forwarded to the load")
	assert.Equal(t, 2, stats.InstructionsEliminated)
}

func TestValueNumberingCallsClobberMemory(t *testing.T) {
	m := ir.NewModule()
	g := m.NewFunc("g", types.Void)
	f := m.NewFunc("f", types.Double)
	b := f.NewBlock("entry")
	slot := b.NewAlloca(types.Double)
	b.NewStore(dbl(1), slot)
	b.NewCall(g)
	loaded := b.NewLoad(types.Double, slot)
	b.NewRet(loaded)

	assert.False(t, (&optimize.ValueNumbering{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
	assert.Equal(t, loaded, returned(t, f))
}

func TestInliner(t *testing.T) {
	m := ir.NewModule()
	a, c := ir.NewParam("a", types.Double), ir.NewParam("b", types.Double)
	add := m.NewFunc("add", types.Double, a, c)
	ab := add.NewBlock("entry")
	ab.NewRet(ab.NewFAdd(a, c))

	fact := m.NewFunc("fact", types.Double, ir.NewParam("n", types.Double))
	fb := fact.NewBlock("entry")
	fb.NewRet(fb.NewCall(fact, fact.Params[0]))

	main := m.NewFunc("main", types.Double)
	mb := main.NewBlock("entry")
	sum := mb.NewCall(add, dbl(5), dbl(3))
	mb.NewCall(fact, dbl(1))
	mb.NewRet(sum)

	inliner := &optimize.Inliner{Logger: quiet}
	assert.True(t, optimize.IsRecursive(fact))
	assert.False(t, optimize.IsRecursive(add))
	assert.True(t, inliner.ShouldInline(main, add))
	assert.False(t, inliner.ShouldInline(main, fact))
	assert.False(t, inliner.ShouldInline(add, main), "the entry point stays")
	assert.Equal(t, 2, optimize.Weight(add))

	stats := &optimize.Stats{}
	assert.True(t, inliner.RunOnModule(m, stats))
	assert.Equal(t, 1, stats.FunctionsInlined)

	calls := 0
	for _, b := range main.Blocks {
		for _, inst := range b.Insts {
			if call, ok := inst.(*ir.InstCall); ok {
				calls++
				assert.Equal(t, fact, call.Callee, "only the recursive call is left")
			}
		}
	}
	assert.Equal(t, 1, calls)
	assert.False(t, inliner.RunOnModule(m, stats))
}

func TestInlinerThreshold(t *testing.T) {
	m := ir.NewModule()
	x := ir.NewParam("x", types.Double)
	big := m.NewFunc("big", types.Double, x)
	b := big.NewBlock("entry")
	var acc value.Value = x
	for i := 0; i < 30; i++ {
		acc = b.NewFMul(acc, x)
	}
	b.NewRet(acc)
	main := m.NewFunc("main", types.Double)
	mb := main.NewBlock("entry")
	mb.NewRet(mb.NewCall(big, dbl(1)))

	assert.False(t, (&optimize.Inliner{Logger: quiet}).RunOnModule(m, &optimize.Stats{}))
	assert.True(t, (&optimize.Inliner{Logger: quiet, Threshold: 100}).RunOnModule(m, &optimize.Stats{}))
	assert.Equal(t, 1.0, runMain(t, m))
}

func TestArithmeticSimplification(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *ir.Block, x value.Value) value.Value
		// expected is the param itself when nil, otherwise the literal it reduces to
		expected *float64
	}{
		{name: "x+0", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFAdd(x, dbl(0)) }},
		{name: "0+x", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFAdd(dbl(0), x) }},
		{name: "x-0", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFSub(x, dbl(0)) }},
		{name: "x*1", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFMul(x, dbl(1)) }},
		{name: "1*x", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFMul(dbl(1), x) }},
		{name: "x/1", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFDiv(x, dbl(1)) }},
		{name: "x-x", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFSub(x, x) }, expected: ptr(0)},
		{name: "x*0", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFMul(x, dbl(0)) }, expected: ptr(0)},
		{name: "x/x", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFDiv(x, x) }, expected: ptr(1)},
		{name: "0/x", build: func(b *ir.Block, x value.Value) value.Value { return b.NewFDiv(dbl(0), x) }, expected: ptr(0)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := ir.NewModule()
			x := ir.NewParam("x", types.Double)
			f := m.NewFunc("f", types.Double, x)
			b := f.NewBlock("entry")
			b.NewRet(test.build(b, x))

			stats := &optimize.Stats{}
			assert.True(t, (&optimize.ArithmeticSimplification{Logger: quiet}).RunOnFunction(f, stats))
			assert.Empty(t, b.Insts)
			assert.Equal(t, 1, stats.InstructionsEliminated)
			if test.expected == nil {
				assert.Equal(t, x, returned(t, f))
				return
			}
			got, ok := irutil.FloatConst(returned(t, f))
			require.True(t, ok)
			assert.Equal(t, *test.expected, got)
		})
	}
}

func ptr(f float64) *float64 { return &f }

func TestArithmeticDoubling(t *testing.T) {
	m := ir.NewModule()
	x := ir.NewParam("x", types.Double)
	f := m.NewFunc("f", types.Double, x)
	b := f.NewBlock("entry")
	b.NewRet(b.NewFAdd(x, x))

	assert.True(t, (&optimize.ArithmeticSimplification{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
	mul, ok := returned(t, f).(*ir.InstFMul)
	require.True(t, ok)
	assert.Equal(t, x, mul.X)
	two, _ := irutil.FloatConst(mul.Y)
	assert.Equal(t, 2.0, two)
	assert.False(t, (&optimize.ArithmeticSimplification{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
}

// integerMain builds main() returning op applied to sitofp(fptosi(seed))
func integerMain(seed float64, op func(b *ir.Block, x value.Value) value.Value) (*ir.Module, *ir.Block) {
	m := ir.NewModule()
	f := m.NewFunc("main", types.Double)
	b := f.NewBlock("entry")
	i := b.NewFPToSI(dbl(seed), types.I32)
	x := b.NewSIToFP(i, types.Double)
	b.NewRet(op(b, x))
	return m, b
}

func TestTypeDirectedShifts(t *testing.T) {
	t.Run("multiplication by 8", func(t *testing.T) {
		m, b := integerMain(5, func(b *ir.Block, x value.Value) value.Value { return b.NewFMul(x, dbl(8)) })
		want := runMain(t, m)
		stats := &optimize.Stats{}
		assert.True(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(m.Funcs[0], stats))
		assert.Equal(t, 1, stats.MulsToShifts)

		conv, ok := b.Term.(*ir.TermRet).X.(*ir.InstSIToFP)
		require.True(t, ok)
		shl, ok := conv.From.(*ir.InstShl)
		require.True(t, ok, litter.Sdump(b.Insts))
		k, _ := irutil.IntConst(shl.Y)
		assert.Equal(t, int64(3), k)
		assert.Equal(t, want, runMain(t, m))
		assert.Equal(t, 40.0, want)
	})
	t.Run("multiplication with the literal first", func(t *testing.T) {
		m, _ := integerMain(-3, func(b *ir.Block, x value.Value) value.Value { return b.NewFMul(dbl(4), x) })
		stats := &optimize.Stats{}
		assert.True(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(m.Funcs[0], stats))
		assert.Equal(t, 1, stats.MulsToShifts)
		assert.Equal(t, -12.0, runMain(t, m))
	})
	t.Run("exact division by 4", func(t *testing.T) {
		m := ir.NewModule()
		f := m.NewFunc("main", types.Double)
		b := f.NewBlock("entry")
		b.NewRet(b.NewFDiv(dbl(12), dbl(4)))

		stats := &optimize.Stats{}
		assert.True(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(f, stats))
		assert.Equal(t, 1, stats.DivsToShifts)
		conv := b.Term.(*ir.TermRet).X.(*ir.InstSIToFP)
		shr, ok := conv.From.(*ir.InstAShr)
		require.True(t, ok)
		k, _ := irutil.IntConst(shr.Y)
		assert.Equal(t, int64(2), k)
		assert.Equal(t, 3.0, runMain(t, m))
	})
	t.Run("inexact division stays", func(t *testing.T) {
		m := ir.NewModule()
		f := m.NewFunc("main", types.Double)
		b := f.NewBlock("entry")
		b.NewRet(b.NewFDiv(dbl(10), dbl(4)))
		assert.False(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
		assert.Equal(t, 2.5, runMain(t, m))
	})
	t.Run("non-integer operand stays", func(t *testing.T) {
		m := ir.NewModule()
		x := ir.NewParam("x", types.Double)
		f := m.NewFunc("f", types.Double, x)
		b := f.NewBlock("entry")
		b.NewRet(b.NewFMul(x, dbl(8)))
		assert.False(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
	})
}

func TestTypeDirectedComparisons(t *testing.T) {
	m, _ := integerMain(7, func(b *ir.Block, x value.Value) value.Value {
		cmp := b.NewFCmp(enum.FPredOGT, x, dbl(3))
		flag := b.NewUIToFP(cmp, types.Double)
		test := b.NewFCmp(enum.FPredONE, flag, dbl(0))
		return b.NewSelect(test, dbl(10), dbl(20))
	})
	want := runMain(t, m)
	stats := &optimize.Stats{}
	assert.True(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(m.Funcs[0], stats))
	assert.Equal(t, 2, stats.NumericOpsOptimized)
	assert.Equal(t, want, runMain(t, m))
	assert.Equal(t, 10.0, want)
}

func TestTypeDirectedCasts(t *testing.T) {
	t.Run("same type", func(t *testing.T) {
		m := ir.NewModule()
		n := ir.NewParam("n", types.I64)
		f := m.NewFunc("f", types.I64, n)
		b := f.NewBlock("entry")
		b.NewRet(b.NewBitCast(n, types.I64))

		stats := &optimize.Stats{}
		assert.True(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(f, stats))
		assert.Equal(t, 1, stats.CastsEliminated)
		assert.Equal(t, n, returned(t, f))
	})
	t.Run("round trip collapses", func(t *testing.T) {
		m := ir.NewModule()
		n := ir.NewParam("n", types.I32)
		f := m.NewFunc("f", types.I32, n)
		b := f.NewBlock("entry")
		wide := b.NewSExt(n, types.I64)
		b.NewRet(b.NewTrunc(wide, types.I32))

		stats := &optimize.Stats{}
		assert.True(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(f, stats))
		assert.Equal(t, 1, stats.CastsEliminated)
		assert.Equal(t, n, returned(t, f))
	})
	t.Run("lossy round trip stays", func(t *testing.T) {
		m := ir.NewModule()
		x := ir.NewParam("x", types.Double)
		f := m.NewFunc("f", types.Double, x)
		b := f.NewBlock("entry")
		i := b.NewFPToSI(x, types.I64)
		b.NewRet(b.NewSIToFP(i, types.Double))
		assert.False(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
	})
	t.Run("extensions fuse", func(t *testing.T) {
		m := ir.NewModule()
		n := ir.NewParam("n", types.I8)
		f := m.NewFunc("f", types.I64, n)
		b := f.NewBlock("entry")
		mid := b.NewZExt(n, types.I32)
		b.NewRet(b.NewZExt(mid, types.I64))

		assert.True(t, (&optimize.TypeDirected{Logger: quiet}).RunOnFunction(f, &optimize.Stats{}))
		fused, ok := returned(t, f).(*ir.InstZExt)
		require.True(t, ok)
		assert.Equal(t, n, fused.From)
	})
}

func TestTypeDirectedCountsSpecializations(t *testing.T) {
	m := compile(t, "def add(a, b):\n    return a + b\n\ndef main():\n    return add(1, 2) + add(3, 4)\n")
	stats := &optimize.Stats{}
	main := m.Funcs[len(m.Funcs)-1]
	(&optimize.TypeDirected{Logger: quiet}).RunOnFunction(main, stats)
	assert.Equal(t, 2, stats.Specializations)
}
