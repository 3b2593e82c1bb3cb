package optimize

import (
	"log/slog"
	"math"
	"math/bits"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
)

// specializationMaxInsts bounds the size of callees counted as specialization candidates
const specializationMaxInsts = 10

// TypeDirected uses what is known about the integer-ness of double values to replace
// floating-point operations with integer ones, strength-reduces power-of-two
// multiplications and divisions to shifts and removes redundant casts.
//
// A double is integer-valued when it is an integral literal or the result of an
// int-to-float conversion. Call sites that could be specialized are counted only.
type TypeDirected struct {
	Logger *slog.Logger
}

func (p *TypeDirected) Name() string { return "typedirected" }

func (p *TypeDirected) RunOnFunction(f *ir.Func, stats *Stats) bool {
	changed := p.rewrite(f, stats, p.numeric)
	changed = p.rewrite(f, stats, p.casts) || changed
	p.countSpecializations(f, stats)
	return changed
}

// rewriteFunc returns instructions to insert in place of inst and the value replacing it,
// or a nil replacement to keep inst
type rewriteFunc func(inst ir.Instruction, stats *Stats) ([]ir.Instruction, value.Value)

func (p *TypeDirected) rewrite(f *ir.Func, stats *Stats, rw rewriteFunc) bool {
	changed := false
	for _, b := range f.Blocks {
		out := make([]ir.Instruction, 0, len(b.Insts))
		for _, inst := range b.Insts {
			insts, replacement := rw(inst, stats)
			if replacement == nil {
				out = append(out, inst)
				continue
			}
			p.Logger.Debug("rewrote", "inst", llText{inst}, "to", identText{replacement})
			for _, created := range insts {
				irutil.Name(created, "td")
			}
			out = append(out, insts...)
			irutil.ReplaceAllUses(f, inst.(value.Value), replacement)
			changed = true
		}
		b.Insts = out
	}
	return changed
}

// intSource is the integer behind an integer-valued double
type intSource struct {
	isConst  bool
	constant int64
	value    value.Value
	signed   bool
}

func integerValued(v value.Value) (intSource, bool) {
	if n, ok := irutil.IntegralFloat(v); ok {
		if f, _ := irutil.FloatConst(v); math.Signbit(f) && n == 0 {
			return intSource{}, false
		}
		return intSource{isConst: true, constant: n}, true
	}
	switch conv := v.(type) {
	case *ir.InstSIToFP:
		if _, ok := conv.From.Type().(*types.IntType); ok {
			return intSource{value: conv.From, signed: true}, true
		}
	case *ir.InstUIToFP:
		if it, ok := conv.From.Type().(*types.IntType); ok && it.BitSize < 64 {
			return intSource{value: conv.From}, true
		}
	}
	return intSource{}, false
}

// i64 returns s as an i64 value, appending the extension it needs to insts
func (s intSource) i64(insts *[]ir.Instruction) value.Value {
	if s.isConst {
		return constant.NewInt(types.I64, s.constant)
	}
	if it := s.value.Type().(*types.IntType); it.BitSize == 64 {
		return s.value
	}
	var ext ir.Instruction
	if s.signed {
		ext = ir.NewSExt(s.value, types.I64)
	} else {
		ext = ir.NewZExt(s.value, types.I64)
	}
	*insts = append(*insts, ext)
	return ext.(value.Value)
}

// log2 returns k when n == 2^k
func log2(n int64) (int64, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	return int64(bits.TrailingZeros64(uint64(n))), true
}

func isDouble(v value.Value) bool {
	return v.Type().Equal(types.Double)
}

func (p *TypeDirected) numeric(inst ir.Instruction, stats *Stats) ([]ir.Instruction, value.Value) {
	var insts []ir.Instruction
	toDouble := func(v value.Value) value.Value {
		conv := ir.NewSIToFP(v, types.Double)
		insts = append(insts, conv)
		return conv
	}
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		x, okX := integerValued(inst.X)
		y, okY := integerValued(inst.Y)
		if !okX || !okY || !isDouble(inst) {
			return nil, nil
		}
		add := ir.NewAdd(x.i64(&insts), y.i64(&insts))
		insts = append(insts, add)
		stats.NumericOpsOptimized++
		result := toDouble(add)
		return insts, result
	case *ir.InstFMul:
		if !isDouble(inst) {
			return nil, nil
		}
		x, okX := integerValued(inst.X)
		k, okK := powerOfTwo(inst.Y)
		if !okX || !okK {
			// the literal may be on the left
			x, okX = integerValued(inst.Y)
			k, okK = powerOfTwo(inst.X)
		}
		if !okX || !okK {
			return nil, nil
		}
		shl := ir.NewShl(x.i64(&insts), constant.NewInt(types.I64, k))
		insts = append(insts, shl)
		stats.NumericOpsOptimized++
		stats.MulsToShifts++
		result := toDouble(shl)
		return insts, result
	case *ir.InstFDiv:
		x, okX := integerValued(inst.X)
		k, okK := powerOfTwo(inst.Y)
		// the shift is exact only when the division is
		if !okX || !okK || !x.isConst || x.constant%(int64(1)<<k) != 0 || !isDouble(inst) {
			return nil, nil
		}
		shr := ir.NewAShr(x.i64(&insts), constant.NewInt(types.I64, k))
		insts = append(insts, shr)
		stats.NumericOpsOptimized++
		stats.DivsToShifts++
		result := toDouble(shr)
		return insts, result
	case *ir.InstFCmp:
		if flag, ok := testsFlag(inst); ok {
			stats.NumericOpsOptimized++
			return nil, flag
		}
		pred, ok := integerPredicate(inst.Pred)
		if !ok {
			return nil, nil
		}
		x, okX := integerValued(inst.X)
		y, okY := integerValued(inst.Y)
		if !okX || !okY {
			return nil, nil
		}
		cmp := ir.NewICmp(pred, x.i64(&insts), y.i64(&insts))
		insts = append(insts, cmp)
		stats.NumericOpsOptimized++
		return insts, cmp
	}
	return nil, nil
}

func powerOfTwo(v value.Value) (int64, bool) {
	n, ok := irutil.IntegralFloat(v)
	if !ok {
		return 0, false
	}
	return log2(n)
}

// testsFlag matches `fcmp one (uitofp i1 %c), 0.0`, which is %c itself
func testsFlag(cmp *ir.InstFCmp) (value.Value, bool) {
	if cmp.Pred != enum.FPredONE && cmp.Pred != enum.FPredUNE {
		return nil, false
	}
	conv, ok := cmp.X.(*ir.InstUIToFP)
	if !ok || !isFloat(cmp.Y, 0) {
		return nil, false
	}
	if !conv.From.Type().Equal(types.I1) {
		return nil, false
	}
	return conv.From, true
}

func integerPredicate(pred enum.FPred) (enum.IPred, bool) {
	switch pred {
	case enum.FPredOEQ:
		return enum.IPredEQ, true
	case enum.FPredONE, enum.FPredUNE:
		return enum.IPredNE, true
	case enum.FPredOLT:
		return enum.IPredSLT, true
	case enum.FPredOLE:
		return enum.IPredSLE, true
	case enum.FPredOGT:
		return enum.IPredSGT, true
	case enum.FPredOGE:
		return enum.IPredSGE, true
	}
	return 0, false
}

// castOf returns the operand and destination type of a conversion instruction
func castOf(v any) (value.Value, types.Type, bool) {
	switch c := v.(type) {
	case *ir.InstSIToFP:
		return c.From, c.To, true
	case *ir.InstUIToFP:
		return c.From, c.To, true
	case *ir.InstFPToSI:
		return c.From, c.To, true
	case *ir.InstFPToUI:
		return c.From, c.To, true
	case *ir.InstZExt:
		return c.From, c.To, true
	case *ir.InstSExt:
		return c.From, c.To, true
	case *ir.InstTrunc:
		return c.From, c.To, true
	case *ir.InstFPExt:
		return c.From, c.To, true
	case *ir.InstFPTrunc:
		return c.From, c.To, true
	case *ir.InstBitCast:
		return c.From, c.To, true
	}
	return nil, nil, false
}

// lossless reports whether a conversion keeps every value of its source
func lossless(v any) bool {
	switch c := v.(type) {
	case *ir.InstZExt, *ir.InstSExt, *ir.InstFPExt, *ir.InstBitCast:
		return true
	case *ir.InstSIToFP:
		it, ok := c.From.Type().(*types.IntType)
		return ok && it.BitSize <= 53
	case *ir.InstUIToFP:
		it, ok := c.From.Type().(*types.IntType)
		return ok && it.BitSize <= 53
	}
	return false
}

func (p *TypeDirected) casts(inst ir.Instruction, stats *Stats) ([]ir.Instruction, value.Value) {
	from, to, ok := castOf(inst)
	if !ok {
		return nil, nil
	}
	if from.Type().Equal(to) {
		stats.CastsEliminated++
		return nil, from
	}
	innerFrom, _, ok := castOf(from)
	if !ok {
		return nil, nil
	}
	if innerFrom.Type().Equal(to) && lossless(from) {
		stats.CastsEliminated++
		return nil, innerFrom
	}
	if fused := fuse(inst, from, innerFrom, to); fused != nil {
		stats.CastsEliminated++
		return []ir.Instruction{fused}, fused.(value.Value)
	}
	return nil, nil
}

// fuse returns a single conversion of x equivalent to outer applied to inner
func fuse(outer ir.Instruction, inner value.Value, x value.Value, to types.Type) ir.Instruction {
	xBits, xIsInt := bitWidth(x.Type())
	toBits, toIsInt := bitWidth(to)
	switch outer.(type) {
	case *ir.InstZExt:
		if _, ok := inner.(*ir.InstZExt); ok {
			return ir.NewZExt(x, to)
		}
	case *ir.InstSExt:
		switch inner.(type) {
		case *ir.InstSExt:
			return ir.NewSExt(x, to)
		case *ir.InstZExt:
			return ir.NewZExt(x, to)
		}
	case *ir.InstSIToFP:
		switch inner.(type) {
		case *ir.InstSExt:
			return ir.NewSIToFP(x, to)
		case *ir.InstZExt:
			return ir.NewUIToFP(x, to)
		}
	case *ir.InstUIToFP:
		if _, ok := inner.(*ir.InstZExt); ok {
			return ir.NewUIToFP(x, to)
		}
	case *ir.InstFPExt:
		if _, ok := inner.(*ir.InstFPExt); ok {
			return ir.NewFPExt(x, to)
		}
	case *ir.InstTrunc:
		if !xIsInt || !toIsInt {
			return nil
		}
		switch inner.(type) {
		case *ir.InstZExt:
			if toBits < xBits {
				return ir.NewTrunc(x, to)
			}
			return ir.NewZExt(x, to)
		case *ir.InstSExt:
			if toBits < xBits {
				return ir.NewTrunc(x, to)
			}
			return ir.NewSExt(x, to)
		}
	}
	return nil
}

func bitWidth(t types.Type) (uint64, bool) {
	if it, ok := t.(*types.IntType); ok {
		return it.BitSize, true
	}
	return 0, false
}

// countSpecializations counts calls to small functions with parameters, which a later
// version could clone for their argument types
func (p *TypeDirected) countSpecializations(f *ir.Func, stats *Stats) {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			callee, ok := call.Callee.(*ir.Func)
			if !ok || irutil.IsDeclaration(callee) || len(callee.Params) == 0 {
				continue
			}
			if irutil.InstCount(callee) <= specializationMaxInsts {
				stats.Specializations++
			}
		}
	}
}
