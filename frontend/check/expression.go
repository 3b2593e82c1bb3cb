package check

import (
	"errors"
	"fmt"
	"go/token"

	"github.com/quill-lang/quill/frontend/ast"
	"github.com/quill-lang/quill/frontend/qerr"
	"github.com/quill-lang/quill/frontend/types"
	"github.com/samber/lo"
)

// InferExpression infers the type of expr on the current control-flow path
func (c *Checker) InferExpression(expr ast.Expr) Result {
	if ast.IsNil(expr) {
		return failed(qerr.New(qerr.NewStructural{Positioner: qerr.NoPos, What: "null expression"}))
	}
	switch expr := expr.(type) {
	case *ast.Number:
		if expr.IsIntegral() {
			return ok(types.Int)
		}
		return ok(types.Float)
	case *ast.String:
		return ok(types.String)
	case *ast.Variable:
		if t, found := c.lookupVariable(expr.Name); found {
			return ok(t)
		}
		return failed(qerr.New(qerr.NewUndefinedVariable{Positioner: expr, Name: expr.Name}))
	case *ast.Binary:
		return c.inferBinary(expr)
	case *ast.Unary:
		return c.inferUnary(expr)
	case *ast.Call:
		return c.inferCall(expr)
	}
	return failed(qerr.New(qerr.NewStructural{Positioner: expr, What: fmt.Sprintf("unknown expression %T", expr)}))
}

func (c *Checker) inferBinary(expr *ast.Binary) Result {
	lhs := c.InferExpression(expr.Lhs)
	rhs := c.InferExpression(expr.Rhs)
	res := Result{}
	res.absorb(lhs)
	res.absorb(rhs)
	if res.HasErrors() {
		res.Type = types.NewError("invalid operand of %v", expr.Operator)
		return res
	}

	l, r := lhs.Type, rhs.Type
	op := ast.OperatorString(expr.Operator)
	switch {
	case ast.IsArithmetic(expr.Operator):
		switch {
		case types.IsError(l) || types.IsError(r):
			res.Type = types.NewError("invalid operand of %s", op)
		case types.IsNumeric(l) && types.IsNumeric(r):
			res.Type = types.Promote(l, r)
		case (types.IsWildcard(l) || types.IsNumeric(l)) && (types.IsWildcard(r) || types.IsNumeric(r)):
			// a Float side decides the result whatever the other side turns out to be
			if l.Kind() == types.KindFloat || r.Kind() == types.KindFloat {
				res.Type = types.Float
			} else {
				res.Type = types.Unknown
			}
		default:
			return failed(qerr.New(qerr.NewNonNumericOperand{Positioner: expr, Operator: op, Operands: []string{l.String(), r.String()}}))
		}
	case ast.IsComparison(expr.Operator):
		if !isComparable(l, r) {
			return failed(qerr.New(qerr.NewIncomparableOperands{Positioner: expr, Left: l.String(), Right: r.String()}))
		}
		res.Type = types.Bool
	case ast.IsLogical(expr.Operator):
		if !isTruthy(l) || !isTruthy(r) {
			return failed(qerr.New(qerr.NewNonNumericOperand{Positioner: expr, Operator: op, Operands: []string{l.String(), r.String()}}))
		}
		res.Type = types.Bool
	default:
		return failed(qerr.New(qerr.NewUnknownOperator{Positioner: expr, Operator: expr.Operator.String()}))
	}
	return res
}

func isComparable(l, r types.Type) bool {
	switch {
	case types.IsWildcard(l) || types.IsWildcard(r):
		return true
	case l.Equals(r):
		return true
	case types.IsNumeric(l) && types.IsNumeric(r):
		return true
	}
	return l.Kind() == types.KindString && r.Kind() == types.KindString
}

func (c *Checker) inferUnary(expr *ast.Unary) Result {
	operand := c.InferExpression(expr.Operand)
	if operand.HasErrors() {
		return operand
	}
	switch expr.Operator {
	case token.SUB:
		if !types.IsNumeric(operand.Type) && !types.IsWildcard(operand.Type) {
			return failed(qerr.New(qerr.NewNonNumericOperand{Positioner: expr, Operator: "-", Operands: []string{operand.Type.String()}}))
		}
		return operand
	case token.NOT:
		return ok(types.Bool)
	}
	return failed(qerr.New(qerr.NewUnknownOperator{Positioner: expr, Operator: expr.Operator.String()}))
}

func (c *Checker) inferCall(expr *ast.Call) Result {
	res := Result{}
	args := make([]types.Type, len(expr.Args))
	for i, arg := range expr.Args {
		argRes := c.InferExpression(arg)
		res.absorb(argRes)
		args[i] = argRes.Type
	}
	if res.HasErrors() {
		res.Type = types.NewError("invalid argument to %s", expr.Callee)
		return res
	}

	info := c.funcs[funcKey{name: expr.Callee, arity: len(args)}]
	if info != nil {
		c.ensureChecked(info)
	}

	fn, err := c.globals.LookupFunction(expr.Callee, args)
	switch {
	case errors.Is(err, types.ErrUndefined):
		return failed(qerr.New(qerr.NewUndefinedFunction{Positioner: expr, Name: expr.Callee}))
	case errors.Is(err, types.ErrNoMatchingOverload):
		return failed(qerr.New(qerr.NewNoMatchingOverload{
			Positioner: expr,
			Name:       expr.Callee,
			Args:       lo.Map(args, func(t types.Type, _ int) string { return t.String() }),
		}))
	case err != nil:
		return failed(qerr.New(qerr.Unclassified{From: err, Positioner: expr}))
	}

	if info != nil && info.state == checked {
		if sig, specialized := c.specialize(info, args); specialized {
			return ok(sig.Return)
		}
	}
	return ok(fn.Return)
}
