// Package irutil holds the primitives every optimization pass is written in terms of
// (operand access, replace-all-uses, erasure, cloning and CFG queries) together with
// an interpreter for the modules the emitter produces.
package irutil

import (
	"math"
	"slices"

	"github.com/hashicorp/go-set/v3"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/quill-lang/quill/util"
)

type user interface {
	Operands() []*value.Value
}

// Operands returns mutable references to the operands of an instruction or terminator
func Operands(v any) []*value.Value {
	if u, ok := v.(user); ok {
		return u.Operands()
	}
	return nil
}

// Defines reports whether inst produces a value other instructions can use
func Defines(inst ir.Instruction) bool {
	v, ok := inst.(value.Value)
	if !ok {
		return false
	}
	return !v.Type().Equal(types.Void)
}

// HasSideEffects reports whether inst must be kept even when its value is unused
func HasSideEffects(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.InstStore, *ir.InstCall, *ir.InstFence, *ir.InstAtomicRMW, *ir.InstCmpXchg:
		return true
	}
	return false
}

// UseCounts counts, for every value used in f, how many operand slots refer to it
func UseCounts(f *ir.Func) map[value.Value]int {
	counts := make(map[value.Value]int)
	count := func(v any) {
		for _, op := range Operands(v) {
			if *op != nil {
				counts[*op]++
			}
		}
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			count(inst)
		}
		if b.Term != nil {
			count(b.Term)
		}
	}
	return counts
}

// ReplaceAllUses rewrites every operand of f that refers to old so that it refers to
// replacement instead, returning the number of operands rewritten
func ReplaceAllUses(f *ir.Func, old, replacement value.Value) int {
	n := 0
	replace := func(v any) {
		for _, op := range Operands(v) {
			if *op == old {
				*op = replacement
				n++
			}
		}
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			replace(inst)
		}
		if b.Term != nil {
			replace(b.Term)
		}
	}
	return n
}

// Erase removes inst from b. Callers replace the uses of inst first.
func Erase(b *ir.Block, inst ir.Instruction) bool {
	i := slices.Index(b.Insts, inst)
	if i < 0 {
		return false
	}
	b.Insts = slices.Delete(b.Insts, i, i+1)
	return true
}

// ReplaceAndErase replaces the uses of inst in f with replacement and removes inst from b
func ReplaceAndErase(f *ir.Func, b *ir.Block, inst ir.Instruction, replacement value.Value) {
	if v, ok := inst.(value.Value); ok {
		ReplaceAllUses(f, v, replacement)
	}
	Erase(b, inst)
}

// InsertBefore inserts inst into b right before the instruction at index i
func InsertBefore(b *ir.Block, i int, insts ...ir.Instruction) {
	b.Insts = slices.Insert(b.Insts, i, insts...)
}

// Successors returns the blocks the terminator of b may branch to
func Successors(b *ir.Block) []*ir.Block {
	if b.Term == nil {
		return nil
	}
	return b.Term.Succs()
}

// Predecessors maps every block of f to the blocks that may branch to it
func Predecessors(f *ir.Func) map[*ir.Block][]*ir.Block {
	preds := make(map[*ir.Block][]*ir.Block, len(f.Blocks))
	for _, b := range f.Blocks {
		for _, succ := range Successors(b) {
			preds[succ] = append(preds[succ], b)
		}
	}
	return preds
}

// Reachable returns the blocks of f reachable from its entry block
func Reachable(f *ir.Func) *set.Set[*ir.Block] {
	reached := set.New[*ir.Block](len(f.Blocks))
	if len(f.Blocks) == 0 {
		return reached
	}
	work := &util.Stack[*ir.Block]{}
	work.Push(f.Blocks[0])
	for b, ok := work.Pop(); ok; b, ok = work.Pop() {
		if !reached.Insert(b) {
			continue
		}
		for _, succ := range Successors(b) {
			work.Push(succ)
		}
	}
	return reached
}

// IsDeclaration reports whether f has no body
func IsDeclaration(f *ir.Func) bool {
	return len(f.Blocks) == 0
}

// InstCount counts the instructions of f, terminators included
func InstCount(f *ir.Func) int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Insts)
		if b.Term != nil {
			n++
		}
	}
	return n
}

// FloatConst returns the value of a floating-point constant
func FloatConst(v value.Value) (float64, bool) {
	c, ok := v.(*constant.Float)
	if !ok || c.X == nil {
		return 0, false
	}
	if c.NaN {
		return math.NaN(), true
	}
	f, _ := c.X.Float64()
	return f, true
}

// IntConst returns the value of an integer constant
func IntConst(v value.Value) (int64, bool) {
	c, ok := v.(*constant.Int)
	if !ok || c.X == nil || !c.X.IsInt64() {
		return 0, false
	}
	return c.X.Int64(), true
}

// IsConstant reports whether v is a float or integer literal
func IsConstant(v value.Value) bool {
	switch v.(type) {
	case *constant.Float, *constant.Int:
		return true
	}
	return false
}

// IntegralFloat returns the integer value of a float constant that has no fractional part
// and fits in an int64 without loss
func IntegralFloat(v value.Value) (int64, bool) {
	f, ok := FloatConst(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

// NewDouble returns the double constant f, the IR representation of every Quill number
func NewDouble(f float64) *constant.Float {
	return constant.NewFloat(types.Double, f)
}
