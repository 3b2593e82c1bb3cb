package ast

import (
	"go/token"
	"strconv"
	"strings"
)

func ExprString(expr Expr) string {
	ctx := newShowContext()
	ctx.showExprWalker(expr, 0)
	return ctx.String()
}

// StmtString renders a statement in source syntax, indenting nested blocks
func StmtString(stmt Stmt) string {
	ctx := newShowContext()
	ctx.showStmtWalker(stmt)
	return strings.TrimSuffix(ctx.String(), "\n")
}

// ProgramString renders every function of p in source syntax
func ProgramString(p *Program) string {
	ctx := newShowContext()
	for i, fn := range p.Functions {
		if i > 0 {
			ctx.WriteString("\n")
		}
		ctx.showFunction(fn)
	}
	return ctx.String()
}

type showContext struct {
	*strings.Builder
	indent    int
	indentStr string
}

func newShowContext() *showContext {
	return &showContext{
		Builder:   &strings.Builder{},
		indentStr: "    ",
		indent:    0,
	}
}

func (ctx *showContext) currentIndent() string {
	return strings.Repeat(ctx.indentStr, ctx.indent)
}

// Precedence returns the binding power of a binary operator, higher binds tighter
func Precedence(op token.Token) int16 {
	switch op {
	case token.LOR:
		return 1
	case token.LAND:
		return 2
	case token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ:
		return 4
	case token.ADD, token.SUB:
		return 5
	case token.MUL, token.QUO, token.REM:
		return 6
	}
	return 0
}

const unaryPrecedence int16 = 7

// notPrecedence places 'not' between 'and' and the comparisons
const notPrecedence int16 = 3

// OperatorString renders op the way the source language spells it
func OperatorString(op token.Token) string {
	switch op {
	case token.LAND:
		return "and"
	case token.LOR:
		return "or"
	case token.NOT:
		return "not "
	}
	return op.String()
}

func (ctx *showContext) showExprWalker(expr Expr, outerPrecedence int16) {
	if isNilNode(expr) {
		ctx.WriteString("nil")
		return
	}
	switch expr := expr.(type) {
	case *Number:
		ctx.WriteString(strconv.FormatFloat(expr.Value, 'g', -1, 64))
	case *String:
		ctx.WriteString(strconv.Quote(expr.Value))
	case *Variable:
		ctx.WriteString(expr.Name)
	case *Call:
		ctx.WriteString(expr.Callee)
		ctx.WriteString("(")
		for i, arg := range expr.Args {
			if i > 0 {
				ctx.WriteString(", ")
			}
			ctx.showExprWalker(arg, 0)
		}
		ctx.WriteString(")")
	case *Unary:
		prec := unaryPrecedence
		if expr.Operator == token.NOT {
			prec = notPrecedence
		}
		if outerPrecedence > prec {
			ctx.WriteString("(")
			defer ctx.WriteString(")")
		}
		ctx.WriteString(OperatorString(expr.Operator))
		ctx.showExprWalker(expr.Operand, prec)
	case *Binary:
		prec := Precedence(expr.Operator)
		if outerPrecedence > prec {
			ctx.WriteString("(")
			defer ctx.WriteString(")")
		}
		ctx.showExprWalker(expr.Lhs, prec)
		ctx.WriteString(" ")
		ctx.WriteString(OperatorString(expr.Operator))
		ctx.WriteString(" ")
		// left associative: a right operand of equal precedence needs parens
		ctx.showExprWalker(expr.Rhs, prec+1)
	default:
		ctx.WriteString("<?>")
	}
}

func (ctx *showContext) line(s string) {
	ctx.WriteString(ctx.currentIndent())
	ctx.WriteString(s)
	ctx.WriteString("\n")
}

func (ctx *showContext) showFunction(fn *Function) {
	if fn == nil {
		ctx.line("nil")
		return
	}
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Name
		if p.Annotation != "" {
			params[i] += ": " + p.Annotation
		}
	}
	header := "def " + fn.Name + "(" + strings.Join(params, ", ") + ")"
	if fn.ReturnAnnotation != "" {
		header += " -> " + fn.ReturnAnnotation
	}
	ctx.line(header + ":")
	ctx.showBody(fn.Body)
}

func (ctx *showContext) showBody(body Stmt) {
	ctx.indent++
	defer func() { ctx.indent-- }()
	if block, ok := body.(*Block); ok && block != nil {
		if len(block.Stmts) == 0 {
			ctx.line("pass")
		}
		for _, stmt := range block.Stmts {
			ctx.showStmtWalker(stmt)
		}
		return
	}
	ctx.showStmtWalker(body)
}

func (ctx *showContext) showStmtWalker(stmt Stmt) {
	if isNilNode(stmt) {
		ctx.line("nil")
		return
	}
	switch stmt := stmt.(type) {
	case *Assignment:
		ctx.line(stmt.Name + " = " + ExprString(stmt.Value))
	case *Return:
		if stmt.Value == nil {
			ctx.line("return")
		} else {
			ctx.line("return " + ExprString(stmt.Value))
		}
	case *Print:
		ctx.line("print(" + ExprString(stmt.Value) + ")")
	case *ExprStmt:
		ctx.line(ExprString(stmt.X))
	case *If:
		ctx.line("if " + ExprString(stmt.Cond) + ":")
		ctx.showBody(stmt.Then)
		if !isNilNode(stmt.Else) {
			ctx.line("else:")
			ctx.showBody(stmt.Else)
		}
	case *While:
		ctx.line("while " + ExprString(stmt.Cond) + ":")
		ctx.showBody(stmt.Body)
	case *Block:
		if len(stmt.Stmts) == 0 {
			ctx.line("pass")
		}
		for _, s := range stmt.Stmts {
			ctx.showStmtWalker(s)
		}
	default:
		ctx.line("<?>")
	}
}
