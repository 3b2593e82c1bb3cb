// Package backend lowers checked Quill programs to LLVM IR and writes it out.
package backend

import (
	"fmt"
	"go/token"
	"log/slog"
	"strconv"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/internal/log"
	"github.com/samber/lo"
)

const (
	PrintDouble = "print_double"
	Puts        = "puts"
)

var (
	ErrUnsupported = errors.New("unsupported construct")
	ErrUndefined   = errors.New("undefined name")
)

type funcKey struct {
	name  string
	arity int
}

// Emitter lowers a program to a module where every value is a double.
// Variables live in entry-block allocas; truth values are doubles that are 0 or 1.
type Emitter struct {
	*slog.Logger
	fset *token.FileSet

	module  *ir.Module
	printD  *ir.Func
	puts    *ir.Func
	funcs   map[funcKey]*ir.Func
	strings int

	// per function
	fn      *ir.Func
	entry   *ir.Block
	block   *ir.Block // nil after a terminator, until the next statement needs a block
	slots   map[string]*ir.InstAlloca
	allocas int
	labels  map[string]int
	last    value.Value
}

// NewEmitter returns an Emitter that reports positions through fset, which may be nil
func NewEmitter(fset *token.FileSet) *Emitter {
	return &Emitter{
		Logger: log.DefaultLogger.With("section", "emit"),
		fset:   fset,
	}
}

// EmitProgram lowers prog into a new module. When a function is declared twice with the
// same arity, the last declaration is used.
func (e *Emitter) EmitProgram(prog *ast.Program) (*ir.Module, error) {
	if prog == nil {
		return nil, errors.Wrap(ErrUnsupported, "nil program")
	}
	e.module = ir.NewModule()
	e.module.SourceFilename = prog.Name
	e.printD = e.module.NewFunc(PrintDouble, types.Void, ir.NewParam("x", types.Double))
	e.puts = e.module.NewFunc(Puts, types.I32, ir.NewParam("s", types.NewPointer(types.I8)))
	e.funcs = map[funcKey]*ir.Func{}
	e.strings = 0

	decls := lastDeclarations(prog.Functions)
	arities := lo.CountValuesBy(decls, func(fn *ast.Function) string { return fn.Name })
	for _, decl := range decls {
		params := make([]*ir.Param, len(decl.Params))
		seen := map[string]bool{}
		for i, p := range decl.Params {
			name := p.Name
			if seen[name] {
				name += "." + strconv.Itoa(i)
			}
			seen[name] = true
			params[i] = ir.NewParam(name, types.Double)
		}
		symbol := decl.Name
		if arities[decl.Name] > 1 {
			symbol += "." + strconv.Itoa(len(params))
		}
		e.funcs[funcKey{decl.Name, len(params)}] = e.module.NewFunc(symbol, types.Double, params...)
	}
	for _, decl := range decls {
		if err := e.emitFunction(decl); err != nil {
			return nil, errors.Wrapf(err, "in function %s", decl.Name)
		}
	}
	e.Debug("emitted module", "functions", len(decls), "strings", e.strings)
	return e.module, nil
}

func lastDeclarations(fns []*ast.Function) []*ast.Function {
	index := map[funcKey]int{}
	var decls []*ast.Function
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		key := funcKey{fn.Name, len(fn.Params)}
		if i, ok := index[key]; ok {
			decls[i] = fn
			continue
		}
		index[key] = len(decls)
		decls = append(decls, fn)
	}
	return decls
}

func (e *Emitter) emitFunction(decl *ast.Function) error {
	f := e.funcs[funcKey{decl.Name, len(decl.Params)}]
	e.fn = f
	e.entry = f.NewBlock("entry")
	e.block = e.entry
	e.slots = map[string]*ir.InstAlloca{}
	e.allocas = 0
	e.labels = map[string]int{}
	e.last = nil

	for i, p := range decl.Params {
		e.block.NewStore(f.Params[i], e.slot(p.Name))
	}
	if err := e.emitStmt(decl.Body); err != nil {
		return err
	}
	if e.block != nil && e.block.Term == nil {
		var ret value.Value = zero()
		if e.last != nil {
			ret = e.last
		}
		e.block.NewRet(ret)
	}
	return nil
}

func zero() *constant.Float {
	return constant.NewFloat(types.Double, 0)
}

// slot returns the alloca of a variable, creating it at the top of the entry block
func (e *Emitter) slot(name string) *ir.InstAlloca {
	if a, ok := e.slots[name]; ok {
		return a
	}
	a := ir.NewAlloca(types.Double)
	a.SetName(name + ".addr")
	e.entry.Insts = append(e.entry.Insts, nil)
	copy(e.entry.Insts[e.allocas+1:], e.entry.Insts[e.allocas:])
	e.entry.Insts[e.allocas] = a
	e.allocas++
	e.slots[name] = a
	return a
}

func (e *Emitter) newBlock(label string) *ir.Block {
	e.labels[label]++
	return e.fn.NewBlock(fmt.Sprintf("%s%d", label, e.labels[label]))
}

// current returns the block being filled, opening an unreachable one after a terminator
func (e *Emitter) current() *ir.Block {
	if e.block == nil {
		e.block = e.newBlock("dead")
	}
	return e.block
}

func (e *Emitter) jump(target *ir.Block) {
	if e.block != nil && e.block.Term == nil {
		e.block.NewBr(target)
	}
}

func (e *Emitter) position(n ast.Node) string {
	if ast.IsNil(n) {
		return "?"
	}
	return ast.Locate(e.fset, n)
}

func (e *Emitter) emitStmt(stmt ast.Stmt) error {
	if ast.IsNil(stmt) {
		return errors.Wrap(ErrUnsupported, "nil statement")
	}
	switch s := stmt.(type) {
	case *ast.Assignment:
		v, err := e.emitExpr(s.Value)
		if err != nil {
			return err
		}
		e.current().NewStore(v, e.slot(s.Name))
		e.last = nil
	case *ast.Return:
		var v value.Value = zero()
		if !ast.IsNil(s.Value) {
			var err error
			if v, err = e.emitExpr(s.Value); err != nil {
				return err
			}
		}
		e.current().NewRet(v)
		e.block = nil
		e.last = nil
	case *ast.If:
		return e.emitIf(s)
	case *ast.While:
		return e.emitWhile(s)
	case *ast.Print:
		e.last = nil
		return e.emitPrint(s.Value)
	case *ast.Block:
		for _, inner := range s.Stmts {
			if err := e.emitStmt(inner); err != nil {
				return err
			}
		}
	case *ast.ExprStmt:
		v, err := e.emitExpr(s.X)
		if err != nil {
			return err
		}
		e.last = v
	default:
		return errors.Wrapf(ErrUnsupported, "%s: statement %T", e.position(stmt), stmt)
	}
	return nil
}

func (e *Emitter) emitIf(s *ast.If) error {
	cond, err := e.emitExpr(s.Cond)
	if err != nil {
		return err
	}
	test := e.current().NewFCmp(enum.FPredONE, cond, zero())
	from := e.block
	then := e.newBlock("then")
	var otherwise *ir.Block
	if !ast.IsNil(s.Else) {
		otherwise = e.newBlock("else")
	}
	merge := e.newBlock("endif")
	if otherwise == nil {
		from.NewCondBr(test, then, merge)
	} else {
		from.NewCondBr(test, then, otherwise)
	}

	e.block = then
	if err := e.emitStmt(s.Then); err != nil {
		return err
	}
	e.jump(merge)
	if otherwise != nil {
		e.block = otherwise
		if err := e.emitStmt(s.Else); err != nil {
			return err
		}
		e.jump(merge)
	}
	e.block = merge
	e.last = nil
	return nil
}

func (e *Emitter) emitWhile(s *ast.While) error {
	head := e.newBlock("while")
	body := e.newBlock("do")
	exit := e.newBlock("endwhile")
	e.current()
	e.jump(head)

	e.block = head
	cond, err := e.emitExpr(s.Cond)
	if err != nil {
		return err
	}
	test := e.block.NewFCmp(enum.FPredONE, cond, zero())
	e.block.NewCondBr(test, body, exit)

	e.block = body
	if err := e.emitStmt(s.Body); err != nil {
		return err
	}
	e.jump(head)
	e.block = exit
	e.last = nil
	return nil
}

func (e *Emitter) emitPrint(x ast.Expr) error {
	if str, ok := x.(*ast.String); ok {
		e.current().NewCall(e.puts, e.stringPtr(str.Value))
		return nil
	}
	v, err := e.emitExpr(x)
	if err != nil {
		return err
	}
	e.current().NewCall(e.printD, v)
	return nil
}

// stringPtr returns a pointer to a private NUL-terminated global holding s
func (e *Emitter) stringPtr(s string) value.Value {
	g := e.module.NewGlobalDef(fmt.Sprintf(".str.%d", e.strings), constant.NewCharArrayFromString(s+"\x00"))
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	e.strings++
	return e.current().NewGetElementPtr(g.ContentType, g,
		constant.NewInt(types.I32, 0), constant.NewInt(types.I32, 0))
}

func (e *Emitter) emitExpr(expr ast.Expr) (value.Value, error) {
	if ast.IsNil(expr) {
		return nil, errors.Wrap(ErrUnsupported, "nil expression")
	}
	switch x := expr.(type) {
	case *ast.Number:
		return constant.NewFloat(types.Double, x.Value), nil
	case *ast.String:
		return nil, errors.Wrapf(ErrUnsupported, "%s: string literal outside print", e.position(x))
	case *ast.Variable:
		a, ok := e.slots[x.Name]
		if !ok {
			return nil, errors.Wrapf(ErrUndefined, "%s: variable %s", e.position(x), x.Name)
		}
		return e.current().NewLoad(types.Double, a), nil
	case *ast.Binary:
		return e.emitBinary(x)
	case *ast.Unary:
		v, err := e.emitExpr(x.Operand)
		if err != nil {
			return nil, err
		}
		b := e.current()
		switch x.Operator {
		case token.SUB:
			return b.NewFNeg(v), nil
		case token.NOT:
			return b.NewUIToFP(b.NewFCmp(enum.FPredOEQ, v, zero()), types.Double), nil
		}
		return nil, errors.Wrapf(ErrUnsupported, "%s: unary operator %v", e.position(x), x.Operator)
	case *ast.Call:
		return e.emitCall(x)
	}
	return nil, errors.Wrapf(ErrUnsupported, "%s: expression %T", e.position(expr), expr)
}

var comparisons = map[token.Token]enum.FPred{
	token.LSS: enum.FPredOLT,
	token.LEQ: enum.FPredOLE,
	token.GTR: enum.FPredOGT,
	token.GEQ: enum.FPredOGE,
	token.EQL: enum.FPredOEQ,
	token.NEQ: enum.FPredUNE,
}

func (e *Emitter) emitBinary(x *ast.Binary) (value.Value, error) {
	l, err := e.emitExpr(x.Lhs)
	if err != nil {
		return nil, err
	}
	r, err := e.emitExpr(x.Rhs)
	if err != nil {
		return nil, err
	}
	b := e.current()
	switch x.Operator {
	case token.ADD:
		return b.NewFAdd(l, r), nil
	case token.SUB:
		return b.NewFSub(l, r), nil
	case token.MUL:
		return b.NewFMul(l, r), nil
	case token.QUO:
		return b.NewFDiv(l, r), nil
	case token.REM:
		return b.NewFRem(l, r), nil
	case token.LAND, token.LOR:
		lt := b.NewFCmp(enum.FPredONE, l, zero())
		rt := b.NewFCmp(enum.FPredONE, r, zero())
		if x.Operator == token.LAND {
			return b.NewUIToFP(b.NewAnd(lt, rt), types.Double), nil
		}
		return b.NewUIToFP(b.NewOr(lt, rt), types.Double), nil
	}
	if pred, ok := comparisons[x.Operator]; ok {
		return b.NewUIToFP(b.NewFCmp(pred, l, r), types.Double), nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "%s: binary operator %v", e.position(x), x.Operator)
}

func (e *Emitter) emitCall(x *ast.Call) (value.Value, error) {
	if x.Callee == "print" && len(x.Args) == 1 {
		if err := e.emitPrint(x.Args[0]); err != nil {
			return nil, err
		}
		return zero(), nil
	}
	callee, ok := e.funcs[funcKey{x.Callee, len(x.Args)}]
	if !ok {
		return nil, errors.Wrapf(ErrUndefined, "%s: function %s with %d arguments", e.position(x), x.Callee, len(x.Args))
	}
	args := make([]value.Value, len(x.Args))
	for i, arg := range x.Args {
		v, err := e.emitExpr(arg)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return e.current().NewCall(callee, args...), nil
}
