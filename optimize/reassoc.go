package optimize

import (
	"log/slog"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
)

// Reassociate puts the operands of commutative instructions in canonical order, literals
// last and otherwise by definition order, and merges integer literal chains such as
// (x + 1) + 2 into x + 3.
type Reassociate struct {
	Logger *slog.Logger
}

func (p *Reassociate) Name() string { return "reassoc" }

func (p *Reassociate) RunOnFunction(f *ir.Func, stats *Stats) bool {
	ranks := rankValues(f)
	rank := func(v value.Value) int {
		if irutil.IsConstant(v) {
			return math.MaxInt
		}
		return ranks[v]
	}
	changed := false
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			ops := irutil.Operands(inst)
			switch inst := inst.(type) {
			case *ir.InstFAdd, *ir.InstFMul, *ir.InstAdd, *ir.InstMul, *ir.InstAnd, *ir.InstOr, *ir.InstXor:
				if rank(*ops[0]) > rank(*ops[1]) {
					*ops[0], *ops[1] = *ops[1], *ops[0]
					changed = true
				}
			case *ir.InstFCmp:
				if rank(inst.X) > rank(inst.Y) {
					inst.X, inst.Y = inst.Y, inst.X
					inst.Pred = mirrorFPred(inst.Pred)
					changed = true
				}
			case *ir.InstICmp:
				if rank(inst.X) > rank(inst.Y) {
					inst.X, inst.Y = inst.Y, inst.X
					inst.Pred = mirrorIPred(inst.Pred)
					changed = true
				}
			}
			if p.foldChain(inst) {
				stats.ConstantsFolded++
				changed = true
			}
		}
	}
	return changed
}

// rankValues numbers parameters and instructions in definition order
func rankValues(f *ir.Func) map[value.Value]int {
	ranks := make(map[value.Value]int)
	next := 1
	for _, param := range f.Params {
		ranks[param] = next
		next++
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if v, ok := inst.(value.Value); ok {
				ranks[v] = next
				next++
			}
		}
	}
	return ranks
}

// foldChain rewrites (x op c1) op c2 into x op (c1 op c2) for integer add and mul.
// The inner instruction stays for its other users.
func (p *Reassociate) foldChain(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.InstAdd, *ir.InstMul:
	default:
		return false
	}
	ops := irutil.Operands(inst)
	c2, ok := irutil.IntConst(*ops[1])
	if !ok {
		return false
	}
	inner, ok := (*ops[0]).(ir.Instruction)
	if !ok || !sameOpcode(inst, inner) {
		return false
	}
	innerOps := irutil.Operands(inner)
	c1, ok := irutil.IntConst(*innerOps[1])
	typ, okT := (*ops[1]).Type().(*types.IntType)
	if !ok || !okT {
		return false
	}
	combined, ok := foldInt(inst, c1, c2, typ.BitSize)
	if !ok {
		return false
	}
	p.Logger.Debug("merged literal chain", "inst", llText{inst})
	*ops[0] = *innerOps[0]
	*ops[1] = intOf(typ, combined)
	return true
}

func sameOpcode(a, b ir.Instruction) bool {
	switch a.(type) {
	case *ir.InstAdd:
		_, ok := b.(*ir.InstAdd)
		return ok
	case *ir.InstMul:
		_, ok := b.(*ir.InstMul)
		return ok
	}
	return false
}

// mirrorFPred returns the predicate that holds for (y, x) whenever pred holds for (x, y)
func mirrorFPred(pred enum.FPred) enum.FPred {
	switch pred {
	case enum.FPredOLT:
		return enum.FPredOGT
	case enum.FPredOGT:
		return enum.FPredOLT
	case enum.FPredOLE:
		return enum.FPredOGE
	case enum.FPredOGE:
		return enum.FPredOLE
	case enum.FPredULT:
		return enum.FPredUGT
	case enum.FPredUGT:
		return enum.FPredULT
	case enum.FPredULE:
		return enum.FPredUGE
	case enum.FPredUGE:
		return enum.FPredULE
	}
	return pred
}

func mirrorIPred(pred enum.IPred) enum.IPred {
	switch pred {
	case enum.IPredSLT:
		return enum.IPredSGT
	case enum.IPredSGT:
		return enum.IPredSLT
	case enum.IPredSLE:
		return enum.IPredSGE
	case enum.IPredSGE:
		return enum.IPredSLE
	case enum.IPredULT:
		return enum.IPredUGT
	case enum.IPredUGT:
		return enum.IPredULT
	case enum.IPredULE:
		return enum.IPredUGE
	case enum.IPredUGE:
		return enum.IPredULE
	}
	return pred
}
