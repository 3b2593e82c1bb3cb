// Package check implements the type checker: it walks a parsed program,
// infers a type for every expression and statement, and reports type errors
// without stopping at the first one.
package check

import (
	"fmt"
	"log/slog"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/frontend/types"
	"github.com/quill-lang/quill/internal/log"
)

type funcKey struct {
	name  string
	arity int
}

func (k funcKey) String() string {
	return fmt.Sprintf("%s/%d", k.name, k.arity)
}

type checkState int

const (
	unchecked checkState = iota
	inProgress
	checked
)

type funcInfo struct {
	key  funcKey
	decl *ast.Function
	// declared parameter types; nil where the parameter is unannotated
	annotated []types.Type
	// declared return type, nil when unannotated
	returns types.Type

	state     checkState
	signature *types.Function
	result    Result
}

// defaultParams binds every unannotated parameter to float
func (f *funcInfo) defaultParams() []types.Type {
	params := make([]types.Type, len(f.annotated))
	for i, t := range f.annotated {
		if t == nil {
			t = types.Float
		}
		params[i] = t
	}
	return params
}

// frame is the state of the function whose body is being checked
type frame struct {
	fn      *funcInfo
	returns []types.Type
}

type Checker struct {
	Logger *slog.Logger

	// globals holds builtins and the signatures of the program's functions
	globals *types.Environment
	// env holds the local variables of the function being checked
	env   *types.Environment
	ctx   *InferenceContext
	frame *frame

	funcs map[funcKey]*funcInfo
	order []funcKey

	specializations map[string]*types.Function
	specOrder       []Specialization
	specializing    map[funcKey]bool
}

func NewChecker() *Checker {
	c := &Checker{
		Logger: ast.ExprLogger(log.DefaultLogger.With("section", "check")),
	}
	c.reset()
	return c
}

func (c *Checker) reset() {
	c.globals = types.NewEnvironment()
	c.globals.DefineFunction("print", types.NewFunction(types.Void, types.Unknown))
	c.env = types.NewEnvironment()
	c.ctx = NewInferenceContext()
	c.frame = nil
	c.funcs = make(map[funcKey]*funcInfo)
	c.order = nil
	c.specializations = make(map[string]*types.Function)
	c.specOrder = nil
	c.specializing = make(map[funcKey]bool)
}

// Globals is the environment of builtins and function signatures
func (c *Checker) Globals() *types.Environment {
	return c.globals
}

// Environment is the environment of local variables used by CheckStatement and InferExpression
func (c *Checker) Environment() *types.Environment {
	return c.env
}

// Context is the inference context of the current control-flow path
func (c *Checker) Context() *InferenceContext {
	return c.ctx
}

// CheckProgram checks every function of prog.
//
// Signatures are collected first, as provisional signatures with unknown types,
// so functions may call functions declared after them. Bodies are then checked in
// declaration order; a call to a function whose body has not been checked yet checks
// that body first.
func (c *Checker) CheckProgram(prog *ast.Program) *ProgramResult {
	c.reset()
	result := &ProgramResult{}
	if prog == nil {
		result.Errors = result.Errors.With(qerr.New(qerr.NewStructural{Positioner: qerr.NoPos, What: "null program"}))
		return result
	}

	for _, fn := range prog.Functions {
		if fn == nil {
			result.Errors = result.Errors.With(qerr.New(qerr.NewStructural{Positioner: prog, What: "null function declaration"}))
			continue
		}
		info, errs := c.declare(fn)
		result.Errors = result.Errors.Merge(errs)
		if _, dup := c.funcs[info.key]; dup {
			result.Warnings = append(result.Warnings, Warning{
				Positioner: fn,
				Message:    fmt.Sprintf("duplicate declaration of function '%s' with %d parameters, the last one is used", fn.Name, info.key.arity),
			})
		} else {
			c.order = append(c.order, info.key)
		}
		c.funcs[info.key] = info
	}

	for _, key := range c.order {
		info := c.funcs[key]
		c.ensureChecked(info)
		result.Errors = result.Errors.Merge(info.result.Errors)
		result.Warnings = append(result.Warnings, info.result.Warnings...)
		result.Signatures = append(result.Signatures, NamedSignature{Name: key.name, Signature: info.signature})
	}
	result.Specializations = c.specOrder

	c.Logger.Debug("checked program", "name", prog.Name, "result", result)
	return result
}

// CheckFunction checks a single function declaration. Its Result carries the
// default signature of fn as Type. fn may call functions declared by earlier
// calls to CheckFunction or CheckProgram.
func (c *Checker) CheckFunction(fn *ast.Function) Result {
	if fn == nil {
		return failed(qerr.New(qerr.NewStructural{Positioner: qerr.NoPos, What: "null function declaration"}))
	}
	info, errs := c.declare(fn)
	if _, known := c.funcs[info.key]; !known {
		c.order = append(c.order, info.key)
	}
	c.funcs[info.key] = info
	c.ensureChecked(info)

	res := info.result
	res.Errors = errs.Merge(res.Errors)
	res.Type = info.signature
	return res
}

// declare registers a provisional signature for fn and resolves its annotations
func (c *Checker) declare(fn *ast.Function) (*funcInfo, *qerr.Errors) {
	var errs *qerr.Errors
	info := &funcInfo{
		key:       funcKey{name: fn.Name, arity: len(fn.Params)},
		decl:      fn,
		annotated: make([]types.Type, len(fn.Params)),
	}
	for i, param := range fn.Params {
		if param.Annotation == "" {
			continue
		}
		t, err := types.ParseAnnotation(param.Annotation)
		if err != nil {
			errs = errs.With(qerr.New(qerr.NewInvalidAnnotation{Positioner: param, Annotation: param.Annotation, Reason: err.Error()}))
			continue
		}
		info.annotated[i] = t
	}
	if fn.ReturnAnnotation != "" {
		t, err := types.ParseAnnotation(fn.ReturnAnnotation)
		if err != nil {
			errs = errs.With(qerr.New(qerr.NewInvalidAnnotation{Positioner: fn, Annotation: fn.ReturnAnnotation, Reason: err.Error()}))
		} else {
			info.returns = t
		}
	}

	provisional := make([]types.Type, len(fn.Params))
	for i := range provisional {
		provisional[i] = types.Unknown
	}
	c.globals.ReplaceFunction(fn.Name, types.NewFunction(types.Unknown, provisional...))
	return info, errs
}

// ensureChecked checks the body of info under its default signature, once.
// While the body is being checked, calls to info see the provisional signature.
func (c *Checker) ensureChecked(info *funcInfo) {
	if info.state != unchecked {
		return
	}
	info.state = inProgress
	params := info.defaultParams()
	info.result = c.checkBody(info, params)
	info.signature = types.NewFunction(info.result.Type, params...)
	c.globals.ReplaceFunction(info.key.name, info.signature)
	info.state = checked
	c.Logger.Debug("checked function", "function", info.key, "signature", info.signature)
}

// checkBody checks the body of info with its parameters bound to params, in a fresh
// local environment and inference context. The Result's Type is the return type.
func (c *Checker) checkBody(info *funcInfo, params []types.Type) Result {
	savedEnv, savedCtx, savedFrame := c.env, c.ctx, c.frame
	defer func() {
		c.env, c.ctx, c.frame = savedEnv, savedCtx, savedFrame
	}()

	c.env = types.NewEnvironment()
	c.env.PushScope()
	for i, param := range info.decl.Params {
		c.env.Define(param.Name, params[i])
	}
	c.ctx = NewInferenceContext()
	c.frame = &frame{fn: info}

	var res Result
	if ast.IsNil(info.decl.Body) {
		res = failed(qerr.New(qerr.NewStructural{Positioner: info.decl, What: fmt.Sprintf("function '%s' has no body", info.decl.Name)}))
	} else {
		res = c.CheckStatement(info.decl.Body)
	}

	ret := c.returnType(info, res)
	if info.returns != nil {
		if !info.returns.IsAssignableFrom(ret.Type) {
			ret.absorb(failed(qerr.New(qerr.NewTypeMismatch{
				Positioner: info.decl,
				Context:    fmt.Sprintf("return type of function '%s'", info.decl.Name),
				Expected:   info.returns.String(),
				Got:        ret.Type.String(),
			})))
		}
		ret.Type = info.returns
	}
	ret.absorb(res)
	return ret
}

// returnType unifies the types of the explicit returns of the function.
// Without explicit returns the type of the body is the return type.
func (c *Checker) returnType(info *funcInfo, body Result) Result {
	returns := c.frame.returns
	if len(returns) == 0 {
		if body.Type == nil {
			return ok(types.Void)
		}
		return ok(body.Type)
	}
	unified := returns[0]
	for _, t := range returns[1:] {
		next := types.Unify(unified, t)
		if types.IsError(next) && !types.IsError(unified) && !types.IsError(t) {
			names := make([]string, len(returns))
			for i, r := range returns {
				names[i] = r.String()
			}
			return failed(qerr.New(qerr.NewInconsistentReturn{
				Positioner: info.decl,
				Function:   info.decl.Name,
				Types:      names,
			}))
		}
		unified = next
	}
	return ok(unified)
}
