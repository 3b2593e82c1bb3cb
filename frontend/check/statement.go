package check

import (
	"fmt"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/frontend/types"
)

// CheckStatement checks stmt against the current environment and inference context.
// The Result's Type is Void for every statement except expression statements and
// returns, which carry the type of their expression, and blocks, which carry the type
// of their last non-void statement.
func (c *Checker) CheckStatement(stmt ast.Stmt) Result {
	if ast.IsNil(stmt) {
		return failed(qerr.New(qerr.NewStructural{Positioner: qerr.NoPos, What: "null statement"}))
	}
	switch stmt := stmt.(type) {
	case *ast.Assignment:
		return c.checkAssignment(stmt)
	case *ast.Return:
		return c.checkReturn(stmt)
	case *ast.If:
		return c.checkIf(stmt)
	case *ast.While:
		return c.checkWhile(stmt)
	case *ast.Print:
		res := c.InferExpression(stmt.Value)
		res.Type = types.Void
		return res
	case *ast.Block:
		return c.checkBlock(stmt)
	case *ast.ExprStmt:
		return c.InferExpression(stmt.X)
	}
	return failed(qerr.New(qerr.NewStructural{Positioner: stmt, What: fmt.Sprintf("unknown statement %T", stmt)}))
}

// lookupVariable prefers what is known on the current path over the declared type
func (c *Checker) lookupVariable(name string) (types.Type, bool) {
	if t, ok := c.ctx.Get(name); ok {
		return t, true
	}
	return c.env.Lookup(name)
}

func (c *Checker) checkAssignment(stmt *ast.Assignment) Result {
	value := c.InferExpression(stmt.Value)
	res := Result{Type: types.Void}
	res.absorb(value)

	existing, found := c.lookupVariable(stmt.Name)
	switch {
	case found && !types.IsWildcard(existing):
		if !existing.IsAssignableFrom(value.Type) {
			res.absorb(failed(qerr.New(qerr.NewTypeMismatch{
				Positioner: stmt,
				Context:    fmt.Sprintf("assignment to variable '%s'", stmt.Name),
				Expected:   existing.String(),
				Got:        value.Type.String(),
			})))
		}
		c.ctx.Set(stmt.Name, existing)
	default:
		c.env.Define(stmt.Name, value.Type)
		c.ctx.Set(stmt.Name, value.Type)
	}
	return res
}

func (c *Checker) checkReturn(stmt *ast.Return) Result {
	res := ok(types.Void)
	if stmt.Value != nil {
		res = c.InferExpression(stmt.Value)
	}
	if c.frame != nil {
		c.frame.returns = append(c.frame.returns, res.Type)
	}
	return res
}

// checkCondition requires cond to be a boolean or a number: nonzero numbers are true
func (c *Checker) checkCondition(statement string, cond ast.Expr) Result {
	res := c.InferExpression(cond)
	if res.HasErrors() {
		return res
	}
	if !isTruthy(res.Type) {
		return failed(qerr.New(qerr.NewInvalidCondition{Positioner: cond, Statement: statement, Got: res.Type.String()}))
	}
	return res
}

func isTruthy(t types.Type) bool {
	return types.IsNumeric(t) || types.IsWildcard(t) || t.Kind() == types.KindBool
}

func (c *Checker) checkIf(stmt *ast.If) Result {
	res := Result{Type: types.Void}
	res.absorb(c.checkCondition("if", stmt.Cond))

	before := c.ctx
	c.ctx = before.Clone()
	res.absorb(c.CheckStatement(stmt.Then))
	thenCtx := c.ctx

	c.ctx = before.Clone()
	if !ast.IsNil(stmt.Else) {
		res.absorb(c.CheckStatement(stmt.Else))
	}
	elseCtx := c.ctx

	c.ctx = thenCtx.Merge(elseCtx, c.logMergeFailure(stmt))
	return res
}

// checkWhile checks the body once: types that only change on later iterations are not re-verified
func (c *Checker) checkWhile(stmt *ast.While) Result {
	res := Result{Type: types.Void}
	res.absorb(c.checkCondition("while", stmt.Cond))

	before := c.ctx
	c.ctx = before.Clone()
	res.absorb(c.CheckStatement(stmt.Body))
	c.ctx = c.ctx.Merge(before, c.logMergeFailure(stmt))
	return res
}

func (c *Checker) logMergeFailure(at ast.Node) func(string, types.Type, types.Type) {
	return func(name string, left, right types.Type) {
		c.Logger.Debug("branch types do not unify, keeping the first",
			"variable", name, "first", left, "second", right, "at", at)
	}
}

func (c *Checker) checkBlock(stmt *ast.Block) Result {
	c.env.PushScope()
	defer c.env.PopScope()

	res := Result{Type: types.Void}
	returned := false
	for _, s := range stmt.Stmts {
		if returned {
			pos := ast.Positioner(qerr.NoPos)
			if !ast.IsNil(s) {
				pos = s
			}
			res.Warnings = append(res.Warnings, Warning{Positioner: pos, Message: "unreachable statement after return"})
			returned = false
		}
		sres := c.CheckStatement(s)
		res.absorb(sres)
		if sres.Type != nil && sres.Type.Kind() != types.KindVoid {
			res.Type = sres.Type
		}
		if _, isReturn := s.(*ast.Return); isReturn {
			returned = true
		}
	}
	return res
}
