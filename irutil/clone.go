package irutil

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

var nameCounter atomic.Uint64

// FreshName returns a local name that no other call returns, so values created by
// different passes never collide
func FreshName(prefix string) string {
	return fmt.Sprintf("%s.%d", prefix, nameCounter.Add(1))
}

// Name gives v a fresh name derived from prefix when v is a named local value
func Name(v any, prefix string) {
	if named, ok := v.(value.Named); ok {
		named.SetName(FreshName(prefix))
	}
}

// ErrUnsupportedInst is returned for instructions CloneInst cannot copy
var ErrUnsupportedInst = errors.New("unsupported instruction")

// CloneInst returns a copy of inst whose operands are rewritten through remap.
// The copy gets a fresh name derived from prefix when it defines a value.
func CloneInst(inst ir.Instruction, prefix string, remap func(value.Value) value.Value) (ir.Instruction, error) {
	var clone ir.Instruction
	switch inst := inst.(type) {
	case *ir.InstFAdd:
		c := *inst
		clone = &c
	case *ir.InstFSub:
		c := *inst
		clone = &c
	case *ir.InstFMul:
		c := *inst
		clone = &c
	case *ir.InstFDiv:
		c := *inst
		clone = &c
	case *ir.InstFRem:
		c := *inst
		clone = &c
	case *ir.InstFNeg:
		c := *inst
		clone = &c
	case *ir.InstAdd:
		c := *inst
		clone = &c
	case *ir.InstSub:
		c := *inst
		clone = &c
	case *ir.InstMul:
		c := *inst
		clone = &c
	case *ir.InstSDiv:
		c := *inst
		clone = &c
	case *ir.InstSRem:
		c := *inst
		clone = &c
	case *ir.InstShl:
		c := *inst
		clone = &c
	case *ir.InstAShr:
		c := *inst
		clone = &c
	case *ir.InstLShr:
		c := *inst
		clone = &c
	case *ir.InstAnd:
		c := *inst
		clone = &c
	case *ir.InstOr:
		c := *inst
		clone = &c
	case *ir.InstXor:
		c := *inst
		clone = &c
	case *ir.InstFCmp:
		c := *inst
		clone = &c
	case *ir.InstICmp:
		c := *inst
		clone = &c
	case *ir.InstSelect:
		c := *inst
		clone = &c
	case *ir.InstAlloca:
		c := *inst
		clone = &c
	case *ir.InstLoad:
		c := *inst
		clone = &c
	case *ir.InstStore:
		c := *inst
		clone = &c
	case *ir.InstCall:
		c := *inst
		c.Args = slices.Clone(inst.Args)
		clone = &c
	case *ir.InstGetElementPtr:
		c := *inst
		c.Indices = slices.Clone(inst.Indices)
		clone = &c
	case *ir.InstSIToFP:
		c := *inst
		clone = &c
	case *ir.InstUIToFP:
		c := *inst
		clone = &c
	case *ir.InstFPToSI:
		c := *inst
		clone = &c
	case *ir.InstFPToUI:
		c := *inst
		clone = &c
	case *ir.InstZExt:
		c := *inst
		clone = &c
	case *ir.InstSExt:
		c := *inst
		clone = &c
	case *ir.InstTrunc:
		c := *inst
		clone = &c
	case *ir.InstFPExt:
		c := *inst
		clone = &c
	case *ir.InstFPTrunc:
		c := *inst
		clone = &c
	case *ir.InstBitCast:
		c := *inst
		clone = &c
	default:
		return nil, errors.Wrapf(ErrUnsupportedInst, "cannot clone %T", inst)
	}
	for _, op := range Operands(clone) {
		*op = remap(*op)
	}
	if Defines(clone) {
		Name(clone, prefix)
	}
	return clone, nil
}
