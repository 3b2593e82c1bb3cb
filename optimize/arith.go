package optimize

import (
	"log/slog"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
)

// ArithmeticSimplification rewrites algebraic identities on floating-point instructions
// in a single sweep. x+x becomes x*2 so that the type-directed pass can turn it into a shift.
type ArithmeticSimplification struct {
	Logger *slog.Logger
}

func (p *ArithmeticSimplification) Name() string { return "arith" }

func (p *ArithmeticSimplification) RunOnFunction(f *ir.Func, stats *Stats) bool {
	changed := false
	for _, b := range f.Blocks {
		for i := 0; i < len(b.Insts); i++ {
			inst := b.Insts[i]
			replacement, created := simplify(inst)
			if replacement == nil {
				continue
			}
			p.Logger.Debug("simplified", "inst", llText{inst}, "to", identText{replacement})
			if created != nil {
				irutil.Name(created, "arith")
				b.Insts[i] = created
				irutil.ReplaceAllUses(f, inst.(value.Value), replacement)
			} else {
				irutil.ReplaceAndErase(f, b, inst, replacement)
				i--
				stats.InstructionsEliminated++
			}
			changed = true
		}
	}
	return changed
}

// simplify returns the value inst reduces to. When that value is a new instruction it is
// also returned as created and takes the place of inst.
func simplify(inst ir.Instruction) (value.Value, ir.Instruction) {
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		switch {
		case isFloat(inst.Y, 0):
			return inst.X, nil
		case isFloat(inst.X, 0):
			return inst.Y, nil
		case inst.X == inst.Y:
			mul := ir.NewFMul(inst.X, floatLike(inst.X.Type(), 2))
			return mul, mul
		}
	case *ir.InstFSub:
		switch {
		case isFloat(inst.Y, 0):
			return inst.X, nil
		case inst.X == inst.Y:
			return floatLike(inst.X.Type(), 0), nil
		}
	case *ir.InstFMul:
		switch {
		case isFloat(inst.X, 0), isFloat(inst.Y, 0):
			return floatLike(inst.X.Type(), 0), nil
		case isFloat(inst.Y, 1):
			return inst.X, nil
		case isFloat(inst.X, 1):
			return inst.Y, nil
		}
	case *ir.InstFDiv:
		switch {
		case isFloat(inst.Y, 1):
			return inst.X, nil
		case inst.X == inst.Y:
			return floatLike(inst.X.Type(), 1), nil
		case isFloat(inst.X, 0):
			return floatLike(inst.X.Type(), 0), nil
		}
	}
	return nil, nil
}

func isFloat(v value.Value, want float64) bool {
	f, ok := irutil.FloatConst(v)
	return ok && f == want
}

func floatLike(t types.Type, f float64) value.Value {
	if ft, ok := t.(*types.FloatType); ok {
		c, _ := floatOf(ft, f)
		return c
	}
	return irutil.NewDouble(f)
}
