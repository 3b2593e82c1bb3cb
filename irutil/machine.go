package irutil

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
	"github.com/quill-lang/quill/internal/log"
)

// DefaultFuel is the number of instructions a Machine executes before giving up
const DefaultFuel = 10_000_000

var (
	ErrOutOfFuel      = errors.New("out of fuel")
	ErrUnknownFunc    = errors.New("unknown function")
	ErrUnreachable    = errors.New("reached unreachable code")
	ErrStackOverflow  = errors.New("call stack too deep")
	errUnsupportedVal = errors.New("unsupported value")
)

const maxDepth = 10_000

// cell is the memory an alloca points to
type cell struct {
	v any
}

// Machine executes functions of a module the way the Quill runtime would.
// Floating-point values are float64, integers are their raw bits as uint64,
// pointers to allocas are *cell and pointers into string globals are string.
type Machine struct {
	Module *ir.Module
	Out    io.Writer
	// Fuel is the instruction budget of each Run; DefaultFuel when zero
	Fuel   int
	Logger *slog.Logger

	steps int
	depth int
	funcs map[string]*ir.Func
}

func NewMachine(m *ir.Module, out io.Writer) *Machine {
	vm := &Machine{
		Module: m,
		Out:    out,
		Logger: log.DefaultLogger.With("section", "irutil.machine"),
		funcs:  make(map[string]*ir.Func, len(m.Funcs)),
	}
	for _, f := range m.Funcs {
		vm.funcs[f.Name()] = f
	}
	return vm
}

// Run calls the function name with the given double arguments and returns its result
// converted to float64. Functions returning void yield 0.
func (vm *Machine) Run(name string, args ...float64) (float64, error) {
	f, ok := vm.funcs[name]
	if !ok {
		return 0, errors.Wrap(ErrUnknownFunc, name)
	}
	vm.steps = 0
	vm.depth = 0
	in := make([]any, len(args))
	for i, a := range args {
		in[i] = a
	}
	ret, err := vm.call(f, in)
	if err != nil {
		return 0, err
	}
	switch ret := ret.(type) {
	case float64:
		return ret, nil
	case uint64:
		return float64(toSigned(ret, bitSize(f.Sig.RetType))), nil
	}
	return 0, nil
}

func (vm *Machine) fuel() int {
	if vm.Fuel <= 0 {
		return DefaultFuel
	}
	return vm.Fuel
}

type frame struct {
	locals map[value.Value]any
}

func (vm *Machine) call(f *ir.Func, args []any) (any, error) {
	if IsDeclaration(f) {
		return vm.builtin(f, args)
	}
	if vm.depth >= maxDepth {
		return nil, errors.Wrap(ErrStackOverflow, f.Name())
	}
	vm.depth++
	defer func() { vm.depth-- }()

	fr := &frame{locals: make(map[value.Value]any)}
	for i, p := range f.Params {
		if i < len(args) {
			fr.locals[p] = args[i]
		}
	}

	var prev *ir.Block
	block := f.Blocks[0]
	for {
		for _, inst := range block.Insts {
			vm.steps++
			if vm.steps > vm.fuel() {
				return nil, errors.Wrapf(ErrOutOfFuel, "after %d instructions", vm.fuel())
			}
			if err := vm.exec(fr, prev, inst); err != nil {
				return nil, errors.Wrapf(err, "in %s", f.Name())
			}
		}
		switch term := block.Term.(type) {
		case *ir.TermRet:
			if term.X == nil {
				return nil, nil
			}
			return vm.eval(fr, term.X)
		case *ir.TermBr:
			prev, block = block, term.Succs()[0]
		case *ir.TermCondBr:
			cond, err := vm.eval(fr, term.Cond)
			if err != nil {
				return nil, err
			}
			succs := term.Succs()
			next := succs[1]
			if truthy(cond) {
				next = succs[0]
			}
			prev, block = block, next
		case *ir.TermUnreachable:
			return nil, errors.Wrap(ErrUnreachable, f.Name())
		default:
			return nil, errors.Errorf("unsupported terminator %T in %s", term, f.Name())
		}
	}
}

func truthy(v any) bool {
	switch v := v.(type) {
	case uint64:
		return v != 0
	case float64:
		return v != 0
	}
	return v != nil
}

// builtin implements the runtime functions the emitter declares
func (vm *Machine) builtin(f *ir.Func, args []any) (any, error) {
	switch f.Name() {
	case "print_double":
		if len(args) != 1 {
			return nil, errors.Errorf("print_double takes 1 argument, got %d", len(args))
		}
		x, _ := args[0].(float64)
		_, err := fmt.Fprintln(vm.Out, FormatDouble(x))
		return nil, err
	case "puts":
		if len(args) != 1 {
			return nil, errors.Errorf("puts takes 1 argument, got %d", len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, errors.Wrapf(errUnsupportedVal, "puts of %T", args[0])
		}
		_, err := fmt.Fprintln(vm.Out, s)
		return uint64(0), err
	}
	return nil, errors.Wrap(ErrUnknownFunc, f.Name())
}

// FormatDouble renders x the way the runtime's print_double does:
// integral values without decimals, others with six
func FormatDouble(x float64) string {
	if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1<<63 {
		return strconv.FormatFloat(x, 'f', 0, 64)
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func (vm *Machine) eval(fr *frame, v value.Value) (any, error) {
	switch v := v.(type) {
	case *constant.Float:
		f, _ := FloatConst(v)
		if ft := v.Typ; ft != nil && ft.Kind == types.FloatKindFloat {
			f = float64(float32(f))
		}
		return f, nil
	case *constant.Int:
		if v.X.IsInt64() {
			return mask(uint64(v.X.Int64()), bitSize(v.Typ)), nil
		}
		return mask(v.X.Uint64(), bitSize(v.Typ)), nil
	case *constant.ExprGetElementPtr:
		return vm.stringAt(v.Src)
	case *ir.Global:
		return vm.stringAt(v)
	case *ir.Func:
		return v, nil
	}
	if got, ok := fr.locals[v]; ok {
		return got, nil
	}
	return nil, errors.Wrapf(errUnsupportedVal, "%T %s has no value", v, v.Ident())
}

// stringAt reads a NUL-terminated string global
func (vm *Machine) stringAt(v value.Value) (any, error) {
	g, ok := v.(*ir.Global)
	if !ok {
		return nil, errors.Wrapf(errUnsupportedVal, "pointer into %T", v)
	}
	arr, ok := g.Init.(*constant.CharArray)
	if !ok {
		return nil, errors.Wrapf(errUnsupportedVal, "global %s is not a string", g.Ident())
	}
	s := string(arr.X)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s, nil
}

func bitSize(t types.Type) uint64 {
	if it, ok := t.(*types.IntType); ok {
		return it.BitSize
	}
	return 64
}

func mask(bits, size uint64) uint64 {
	if size >= 64 {
		return bits
	}
	return bits & (1<<size - 1)
}

func toSigned(bits, size uint64) int64 {
	if size >= 64 {
		return int64(bits)
	}
	shift := 64 - size
	return int64(bits<<shift) >> shift
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (vm *Machine) operands(fr *frame, vs ...value.Value) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		got, err := vm.eval(fr, v)
		if err != nil {
			return nil, err
		}
		out[i] = got
	}
	return out, nil
}

func (vm *Machine) floats(fr *frame, x, y value.Value) (float64, float64, error) {
	ops, err := vm.operands(fr, x, y)
	if err != nil {
		return 0, 0, err
	}
	a, okA := ops[0].(float64)
	b, okB := ops[1].(float64)
	if !okA || !okB {
		return 0, 0, errors.Wrapf(errUnsupportedVal, "expected floats, got %T and %T", ops[0], ops[1])
	}
	return a, b, nil
}

func (vm *Machine) ints(fr *frame, x, y value.Value) (uint64, uint64, error) {
	ops, err := vm.operands(fr, x, y)
	if err != nil {
		return 0, 0, err
	}
	a, okA := ops[0].(uint64)
	b, okB := ops[1].(uint64)
	if !okA || !okB {
		return 0, 0, errors.Wrapf(errUnsupportedVal, "expected integers, got %T and %T", ops[0], ops[1])
	}
	return a, b, nil
}

func (vm *Machine) exec(fr *frame, prev *ir.Block, inst ir.Instruction) error {
	var result any
	switch inst := inst.(type) {
	case *ir.InstFAdd, *ir.InstFSub, *ir.InstFMul, *ir.InstFDiv, *ir.InstFRem:
		ops := Operands(inst)
		a, b, err := vm.floats(fr, *ops[0], *ops[1])
		if err != nil {
			return err
		}
		result = floatBinary(inst, a, b)
	case *ir.InstFNeg:
		x, err := vm.eval(fr, inst.X)
		if err != nil {
			return err
		}
		f, _ := x.(float64)
		result = -f
	case *ir.InstAdd, *ir.InstSub, *ir.InstMul, *ir.InstSDiv, *ir.InstSRem,
		*ir.InstShl, *ir.InstAShr, *ir.InstLShr, *ir.InstAnd, *ir.InstOr, *ir.InstXor:
		ops := Operands(inst)
		a, b, err := vm.ints(fr, *ops[0], *ops[1])
		if err != nil {
			return err
		}
		size := bitSize((*ops[0]).Type())
		r, err := intBinary(inst, a, b, size)
		if err != nil {
			return err
		}
		result = mask(r, size)
	case *ir.InstFCmp:
		a, b, err := vm.floats(fr, inst.X, inst.Y)
		if err != nil {
			return err
		}
		result = boolBits(CompareFloats(inst.Pred, a, b))
	case *ir.InstICmp:
		a, b, err := vm.ints(fr, inst.X, inst.Y)
		if err != nil {
			return err
		}
		result = boolBits(CompareInts(inst.Pred, a, b, bitSize(inst.X.Type())))
	case *ir.InstSelect:
		ops, err := vm.operands(fr, inst.Cond, inst.ValueTrue, inst.ValueFalse)
		if err != nil {
			return err
		}
		result = ops[2]
		if truthy(ops[0]) {
			result = ops[1]
		}
	case *ir.InstAlloca:
		result = &cell{}
	case *ir.InstLoad:
		src, err := vm.eval(fr, inst.Src)
		if err != nil {
			return err
		}
		c, ok := src.(*cell)
		if !ok {
			return errors.Wrapf(errUnsupportedVal, "load from %T", src)
		}
		if c.v == nil {
			return errors.Errorf("load of uninitialized %s", inst.Src.Ident())
		}
		result = c.v
	case *ir.InstStore:
		ops, err := vm.operands(fr, inst.Src, inst.Dst)
		if err != nil {
			return err
		}
		c, ok := ops[1].(*cell)
		if !ok {
			return errors.Wrapf(errUnsupportedVal, "store to %T", ops[1])
		}
		c.v = ops[0]
		return nil
	case *ir.InstGetElementPtr:
		s, err := vm.stringAt(inst.Src)
		if err != nil {
			return err
		}
		result = s
	case *ir.InstCall:
		callee, ok := inst.Callee.(*ir.Func)
		if !ok {
			return errors.Wrapf(errUnsupportedVal, "indirect call through %T", inst.Callee)
		}
		args, err := vm.operands(fr, inst.Args...)
		if err != nil {
			return err
		}
		got, err := vm.call(callee, args)
		if err != nil {
			return err
		}
		result = got
	case *ir.InstPhi:
		for _, inc := range inst.Incs {
			if inc.Pred == prev {
				got, err := vm.eval(fr, inc.X)
				if err != nil {
					return err
				}
				result = got
			}
		}
	default:
		got, handled, err := vm.cast(fr, inst)
		if err != nil {
			return err
		}
		if !handled {
			return errors.Errorf("unsupported instruction %T", inst)
		}
		result = got
	}
	if v, ok := inst.(value.Value); ok && Defines(inst) {
		fr.locals[v] = result
	}
	return nil
}

func floatBinary(inst ir.Instruction, a, b float64) float64 {
	switch inst.(type) {
	case *ir.InstFAdd:
		return a + b
	case *ir.InstFSub:
		return a - b
	case *ir.InstFMul:
		return a * b
	case *ir.InstFDiv:
		return a / b
	}
	return math.Mod(a, b)
}

func intBinary(inst ir.Instruction, a, b, size uint64) (uint64, error) {
	sa, sb := toSigned(a, size), toSigned(b, size)
	switch inst.(type) {
	case *ir.InstAdd:
		return a + b, nil
	case *ir.InstSub:
		return a - b, nil
	case *ir.InstMul:
		return a * b, nil
	case *ir.InstSDiv:
		if sb == 0 {
			return 0, errors.New("integer division by zero")
		}
		return uint64(sa / sb), nil
	case *ir.InstSRem:
		if sb == 0 {
			return 0, errors.New("integer division by zero")
		}
		return uint64(sa % sb), nil
	case *ir.InstShl:
		return a << b, nil
	case *ir.InstAShr:
		return uint64(sa >> b), nil
	case *ir.InstLShr:
		return a >> b, nil
	case *ir.InstAnd:
		return a & b, nil
	case *ir.InstOr:
		return a | b, nil
	case *ir.InstXor:
		return a ^ b, nil
	}
	return 0, errors.Errorf("unsupported integer instruction %T", inst)
}

// CompareFloats evaluates an fcmp predicate
func CompareFloats(pred enum.FPred, a, b float64) bool {
	unordered := math.IsNaN(a) || math.IsNaN(b)
	switch pred {
	case enum.FPredFalse:
		return false
	case enum.FPredTrue:
		return true
	case enum.FPredORD:
		return !unordered
	case enum.FPredUNO:
		return unordered
	case enum.FPredOEQ:
		return !unordered && a == b
	case enum.FPredONE:
		return !unordered && a != b
	case enum.FPredOLT:
		return !unordered && a < b
	case enum.FPredOLE:
		return !unordered && a <= b
	case enum.FPredOGT:
		return !unordered && a > b
	case enum.FPredOGE:
		return !unordered && a >= b
	case enum.FPredUEQ:
		return unordered || a == b
	case enum.FPredUNE:
		return unordered || a != b
	case enum.FPredULT:
		return unordered || a < b
	case enum.FPredULE:
		return unordered || a <= b
	case enum.FPredUGT:
		return unordered || a > b
	case enum.FPredUGE:
		return unordered || a >= b
	}
	return false
}

// CompareInts evaluates an icmp predicate on the low size bits of a and b
func CompareInts(pred enum.IPred, a, b, size uint64) bool {
	a, b = mask(a, size), mask(b, size)
	sa, sb := toSigned(a, size), toSigned(b, size)
	switch pred {
	case enum.IPredEQ:
		return a == b
	case enum.IPredNE:
		return a != b
	case enum.IPredSLT:
		return sa < sb
	case enum.IPredSLE:
		return sa <= sb
	case enum.IPredSGT:
		return sa > sb
	case enum.IPredSGE:
		return sa >= sb
	case enum.IPredULT:
		return a < b
	case enum.IPredULE:
		return a <= b
	case enum.IPredUGT:
		return a > b
	case enum.IPredUGE:
		return a >= b
	}
	return false
}

func (vm *Machine) cast(fr *frame, inst ir.Instruction) (any, bool, error) {
	ops := Operands(inst)
	if len(ops) != 1 {
		return nil, false, nil
	}
	from := *ops[0]
	x, err := vm.eval(fr, from)
	if err != nil {
		return nil, true, err
	}
	fromSize := bitSize(from.Type())
	asFloat, _ := x.(float64)
	asInt, _ := x.(uint64)
	switch inst := inst.(type) {
	case *ir.InstSIToFP:
		return roundTo(inst.To, float64(toSigned(asInt, fromSize))), true, nil
	case *ir.InstUIToFP:
		return roundTo(inst.To, float64(asInt)), true, nil
	case *ir.InstFPToSI:
		return mask(uint64(int64(asFloat)), bitSize(inst.To)), true, nil
	case *ir.InstFPToUI:
		return mask(uint64(asFloat), bitSize(inst.To)), true, nil
	case *ir.InstZExt:
		return asInt, true, nil
	case *ir.InstSExt:
		return mask(uint64(toSigned(asInt, fromSize)), bitSize(inst.To)), true, nil
	case *ir.InstTrunc:
		return mask(asInt, bitSize(inst.To)), true, nil
	case *ir.InstFPExt:
		return asFloat, true, nil
	case *ir.InstFPTrunc:
		return roundTo(inst.To, asFloat), true, nil
	case *ir.InstBitCast:
		switch {
		case isFloat(from.Type()) && !isFloat(inst.To):
			return math.Float64bits(asFloat), true, nil
		case !isFloat(from.Type()) && isFloat(inst.To):
			return math.Float64frombits(asInt), true, nil
		}
		return x, true, nil
	}
	return nil, false, nil
}

func isFloat(t types.Type) bool {
	_, ok := t.(*types.FloatType)
	return ok
}

func roundTo(t types.Type, f float64) float64 {
	if ft, ok := t.(*types.FloatType); ok && ft.Kind == types.FloatKindFloat {
		return float64(float32(f))
	}
	return f
}
