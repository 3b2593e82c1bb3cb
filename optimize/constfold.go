package optimize

import (
	"log/slog"
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
)

// ConstantFolding evaluates instructions whose operands are all literals, and replaces
// loads of slots that are written exactly once, with a literal, in the entry block.
type ConstantFolding struct {
	Logger *slog.Logger
}

func (p *ConstantFolding) Name() string { return "constfold" }

func (p *ConstantFolding) RunOnFunction(f *ir.Func, stats *Stats) bool {
	changed := false
	for {
		progress := p.foldInstructions(f, stats)
		progress = p.foldSingleStores(f, stats) || progress
		if !progress {
			return changed
		}
		changed = true
	}
}

func (p *ConstantFolding) foldInstructions(f *ir.Func, stats *Stats) bool {
	changed := false
	for _, b := range f.Blocks {
		for i := 0; i < len(b.Insts); {
			inst := b.Insts[i]
			folded, ok := Fold(inst)
			if !ok {
				i++
				continue
			}
			p.Logger.Debug("folded", "inst", llText{inst}, "to", identText{folded})
			irutil.ReplaceAndErase(f, b, inst, folded)
			stats.ConstantsFolded++
			stats.InstructionsEliminated++
			changed = true
		}
	}
	return changed
}

// Fold evaluates inst when all of its operands are literals.
// Division and remainder by zero are left for the runtime.
func Fold(inst ir.Instruction) (constant.Constant, bool) {
	switch inst := inst.(type) {
	case *ir.InstFAdd, *ir.InstFSub, *ir.InstFMul, *ir.InstFDiv, *ir.InstFRem:
		ops := irutil.Operands(inst)
		x, okX := irutil.FloatConst(*ops[0])
		y, okY := irutil.FloatConst(*ops[1])
		if !okX || !okY {
			return nil, false
		}
		var r float64
		switch inst.(type) {
		case *ir.InstFAdd:
			r = x + y
		case *ir.InstFSub:
			r = x - y
		case *ir.InstFMul:
			r = x * y
		case *ir.InstFDiv:
			if y == 0 {
				return nil, false
			}
			r = x / y
		case *ir.InstFRem:
			if y == 0 {
				return nil, false
			}
			r = math.Mod(x, y)
		}
		return floatOf((*ops[0]).Type(), r)
	case *ir.InstFNeg:
		x, ok := irutil.FloatConst(inst.X)
		if !ok {
			return nil, false
		}
		return floatOf(inst.X.Type(), -x)
	case *ir.InstAdd, *ir.InstSub, *ir.InstMul, *ir.InstSDiv, *ir.InstSRem,
		*ir.InstShl, *ir.InstAShr, *ir.InstLShr, *ir.InstAnd, *ir.InstOr, *ir.InstXor:
		ops := irutil.Operands(inst)
		x, okX := irutil.IntConst(*ops[0])
		y, okY := irutil.IntConst(*ops[1])
		typ, okT := (*ops[0]).Type().(*types.IntType)
		if !okX || !okY || !okT {
			return nil, false
		}
		r, ok := foldInt(inst, x, y, typ.BitSize)
		if !ok {
			return nil, false
		}
		return intOf(typ, r), true
	case *ir.InstFCmp:
		x, okX := irutil.FloatConst(inst.X)
		y, okY := irutil.FloatConst(inst.Y)
		if !okX || !okY {
			return nil, false
		}
		return constant.NewBool(irutil.CompareFloats(inst.Pred, x, y)), true
	case *ir.InstICmp:
		x, okX := irutil.IntConst(inst.X)
		y, okY := irutil.IntConst(inst.Y)
		typ, okT := inst.X.Type().(*types.IntType)
		if !okX || !okY || !okT {
			return nil, false
		}
		return constant.NewBool(irutil.CompareInts(inst.Pred, uint64(x), uint64(y), typ.BitSize)), true
	case *ir.InstSIToFP:
		x, ok := irutil.IntConst(inst.From)
		if !ok {
			return nil, false
		}
		return floatOf(inst.To, float64(x))
	case *ir.InstUIToFP:
		x, ok := irutil.IntConst(inst.From)
		if !ok || x < 0 {
			return nil, false
		}
		return floatOf(inst.To, float64(x))
	case *ir.InstFPToSI:
		x, ok := irutil.IntegralFloat(inst.From)
		to, okT := inst.To.(*types.IntType)
		if !ok || !okT || wrap(x, to.BitSize) != x || to.BitSize == 1 {
			return nil, false
		}
		return intOf(to, x), true
	case *ir.InstZExt:
		x, ok := irutil.IntConst(inst.From)
		from, okF := inst.From.Type().(*types.IntType)
		to, okT := inst.To.(*types.IntType)
		if !ok || !okF || !okT || from.BitSize >= 64 {
			return nil, false
		}
		return intOf(to, int64(lowBits(x, from.BitSize))), true
	case *ir.InstSExt:
		x, ok := irutil.IntConst(inst.From)
		from, okF := inst.From.Type().(*types.IntType)
		to, okT := inst.To.(*types.IntType)
		if !ok || !okF || !okT {
			return nil, false
		}
		return intOf(to, wrap(x, from.BitSize)), true
	case *ir.InstSelect:
		cond, ok := irutil.IntConst(inst.Cond)
		if !ok || !irutil.IsConstant(inst.ValueTrue) || !irutil.IsConstant(inst.ValueFalse) {
			return nil, false
		}
		if cond != 0 {
			return inst.ValueTrue.(constant.Constant), true
		}
		return inst.ValueFalse.(constant.Constant), true
	}
	return nil, false
}

func floatOf(t types.Type, f float64) (constant.Constant, bool) {
	ft, ok := t.(*types.FloatType)
	if !ok || math.IsNaN(f) {
		return nil, false
	}
	if ft.Kind == types.FloatKindFloat {
		f = float64(float32(f))
	}
	return constant.NewFloat(ft, f), true
}

// intOf builds an integer literal of type t from the low bits of x.
// i1 literals are 0 or 1 rather than the sign-extended -1.
func intOf(t *types.IntType, x int64) *constant.Int {
	if t.BitSize == 1 {
		return constant.NewInt(t, x&1)
	}
	return constant.NewInt(t, wrap(x, t.BitSize))
}

// wrap truncates x to size bits and sign-extends the result back
func wrap(x int64, size uint64) int64 {
	if size >= 64 {
		return x
	}
	shift := 64 - size
	return x << shift >> shift
}

func foldInt(inst ir.Instruction, x, y int64, size uint64) (int64, bool) {
	switch inst.(type) {
	case *ir.InstAdd:
		return x + y, true
	case *ir.InstSub:
		return x - y, true
	case *ir.InstMul:
		return x * y, true
	case *ir.InstSDiv:
		if y == 0 || x == math.MinInt64 && y == -1 {
			return 0, false
		}
		return x / y, true
	case *ir.InstSRem:
		if y == 0 || x == math.MinInt64 && y == -1 {
			return 0, false
		}
		return x % y, true
	case *ir.InstShl:
		if y < 0 || uint64(y) >= size {
			return 0, false
		}
		return x << y, true
	case *ir.InstAShr:
		if y < 0 || uint64(y) >= size {
			return 0, false
		}
		return x >> y, true
	case *ir.InstLShr:
		if y < 0 || uint64(y) >= size {
			return 0, false
		}
		return int64(lowBits(x, size) >> y), true
	case *ir.InstAnd:
		return x & y, true
	case *ir.InstOr:
		return x | y, true
	case *ir.InstXor:
		return x ^ y, true
	}
	return 0, false
}

// foldSingleStores replaces the loads of an alloca with the literal stored into it when
// that store is the only one, sits in the entry block and precedes every load there.
// The slot, its store and its loads are then erased.
func (p *ConstantFolding) foldSingleStores(f *ir.Func, stats *Stats) bool {
	if len(f.Blocks) == 0 {
		return false
	}
	type slotUse struct {
		stores []*ir.InstStore
		loads  []*ir.InstLoad
		other  bool
	}
	slots := map[*ir.InstAlloca]*slotUse{}
	var order []*ir.InstAlloca
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if a, ok := inst.(*ir.InstAlloca); ok {
				slots[a] = &slotUse{}
				order = append(order, a)
			}
		}
	}
	if len(slots) == 0 {
		return false
	}
	record := func(v any) {
		for _, op := range irutil.Operands(v) {
			a, ok := (*op).(*ir.InstAlloca)
			if !ok {
				continue
			}
			use := slots[a]
			if use == nil {
				continue
			}
			switch v := v.(type) {
			case *ir.InstStore:
				if v.Dst == value.Value(a) && v.Src != value.Value(a) {
					use.stores = append(use.stores, v)
				} else {
					use.other = true
				}
			case *ir.InstLoad:
				use.loads = append(use.loads, v)
			default:
				use.other = true
			}
		}
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			record(inst)
		}
		record(b.Term)
	}

	entry := f.Blocks[0]
	changed := false
	for _, a := range order {
		use := slots[a]
		if use.other || len(use.stores) != 1 || !irutil.IsConstant(use.stores[0].Src) {
			continue
		}
		store := use.stores[0]
		storeAt := indexOf(entry, store)
		if storeAt < 0 {
			continue
		}
		if !loadsFollow(f, entry, storeAt, use.loads) {
			continue
		}
		for _, load := range use.loads {
			irutil.ReplaceAllUses(f, load, store.Src)
			eraseAnywhere(f, load)
		}
		irutil.Erase(entry, store)
		eraseAnywhere(f, a)
		p.Logger.Debug("forwarded single store", "slot", identText{a}, "value", identText{store.Src}, "loads", len(use.loads))
		stats.ConstantsFolded += len(use.loads)
		stats.InstructionsEliminated += len(use.loads) + 2
		changed = true
	}
	return changed
}

func indexOf(b *ir.Block, inst ir.Instruction) int {
	for i, candidate := range b.Insts {
		if candidate == inst {
			return i
		}
	}
	return -1
}

// loadsFollow reports whether every load runs after the entry-block instruction at storeAt.
// Loads outside an entry block without predecessors always do.
func loadsFollow(f *ir.Func, entry *ir.Block, storeAt int, loads []*ir.InstLoad) bool {
	if len(irutil.Predecessors(f)[entry]) > 0 {
		return false
	}
	for _, load := range loads {
		if i := indexOf(entry, load); i >= 0 && i < storeAt {
			return false
		}
	}
	return true
}

func lowBits(x int64, size uint64) uint64 {
	if size >= 64 {
		return uint64(x)
	}
	return uint64(x) & (1<<size - 1)
}

func eraseAnywhere(f *ir.Func, inst ir.Instruction) {
	for _, b := range f.Blocks {
		if irutil.Erase(b, inst) {
			return
		}
	}
}
