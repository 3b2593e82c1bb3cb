package optimize

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
)

// ValueNumbering removes redundant computations inside each block: pure instructions
// that repeat an earlier one, loads whose slot already holds a known value and loads
// that follow a store to the same slot.
type ValueNumbering struct {
	Logger *slog.Logger
}

func (p *ValueNumbering) Name() string { return "gvn" }

func (p *ValueNumbering) RunOnFunction(f *ir.Func, stats *Stats) bool {
	ids := map[value.Value]int{}
	idOf := func(v value.Value) string {
		if c, ok := v.(constant.Constant); ok {
			return c.Type().String() + " " + c.Ident()
		}
		id, ok := ids[v]
		if !ok {
			id = len(ids) + 1
			ids[v] = id
		}
		return fmt.Sprintf("%%%d", id)
	}

	changed := false
	for _, b := range f.Blocks {
		available := map[string]value.Value{}
		memory := map[value.Value]value.Value{}
		for i := 0; i < len(b.Insts); {
			inst := b.Insts[i]
			if replacement, ok := p.redundant(inst, available, memory, idOf); ok {
				p.Logger.Debug("replaced redundant value", "inst", llText{inst}, "with", identText{replacement})
				irutil.ReplaceAllUses(f, inst.(value.Value), replacement)
				b.Insts = slices.Delete(b.Insts, i, i+1)
				stats.InstructionsEliminated++
				changed = true
				continue
			}
			i++
		}
	}
	return changed
}

// redundant returns an earlier value equal to inst, updating the block state otherwise
func (p *ValueNumbering) redundant(inst ir.Instruction, available map[string]value.Value,
	memory map[value.Value]value.Value, idOf func(value.Value) string) (value.Value, bool) {
	switch inst := inst.(type) {
	case *ir.InstStore:
		if _, isSlot := inst.Dst.(*ir.InstAlloca); isSlot {
			memory[inst.Dst] = inst.Src
		} else {
			clear(memory)
		}
		return nil, false
	case *ir.InstLoad:
		if known, ok := memory[inst.Src]; ok && known.Type().Equal(inst.Type()) {
			return known, true
		}
		memory[inst.Src] = inst
		return nil, false
	case *ir.InstCall:
		clear(memory)
		return nil, false
	}
	key, ok := valueKey(inst, idOf)
	if !ok {
		return nil, false
	}
	if earlier, seen := available[key]; seen {
		return earlier, true
	}
	available[key] = inst.(value.Value)
	return nil, false
}

// valueKey identifies a pure instruction by opcode, predicate, result type and operands.
// Operands of commutative instructions are sorted.
func valueKey(inst ir.Instruction, idOf func(value.Value) string) (string, bool) {
	var opcode string
	commutative := false
	switch inst := inst.(type) {
	case *ir.InstFAdd, *ir.InstFMul, *ir.InstAdd, *ir.InstMul, *ir.InstAnd, *ir.InstOr, *ir.InstXor:
		opcode = fmt.Sprintf("%T", inst)
		commutative = true
	case *ir.InstFSub, *ir.InstFDiv, *ir.InstFRem, *ir.InstFNeg, *ir.InstSub, *ir.InstSDiv, *ir.InstSRem,
		*ir.InstShl, *ir.InstAShr, *ir.InstLShr, *ir.InstSelect, *ir.InstGetElementPtr:
		opcode = fmt.Sprintf("%T", inst)
	case *ir.InstFCmp:
		opcode = "fcmp " + inst.Pred.String()
	case *ir.InstICmp:
		opcode = "icmp " + inst.Pred.String()
	case *ir.InstSIToFP, *ir.InstUIToFP, *ir.InstFPToSI, *ir.InstFPToUI, *ir.InstZExt, *ir.InstSExt,
		*ir.InstTrunc, *ir.InstFPExt, *ir.InstFPTrunc, *ir.InstBitCast:
		opcode = fmt.Sprintf("%T", inst)
	default:
		return "", false
	}
	v, ok := inst.(value.Value)
	if !ok {
		return "", false
	}
	operands := make([]string, 0, 3)
	for _, op := range irutil.Operands(inst) {
		operands = append(operands, idOf(*op))
	}
	if commutative {
		slices.Sort(operands)
	}
	return opcode + " " + v.Type().String() + " " + strings.Join(operands, ", "), true
}
