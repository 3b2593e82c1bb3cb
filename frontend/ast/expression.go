package ast

import (
	"go/token"
	"math"
)

// All expression types implement the Expr interface

// Number is a numeric literal. Literals without a fractional part are integers.
type Number struct {
	Range
	Value float64
}

func (e *Number) exprNode() {}

// IsIntegral reports whether the literal has no fractional part
func (e *Number) IsIntegral() bool {
	return !math.IsInf(e.Value, 0) && e.Value == math.Trunc(e.Value)
}

// Hash returns a hash value for the Number, based on its structural characteristics
func (e *Number) Hash() uint64 {
	return hashOf("Number", nil, e.Range.Hash(), hashFloat(e.Value))
}

// String is a string literal, with escapes already resolved.
type String struct {
	Range
	Value string
}

func (e *String) exprNode() {}

// Hash returns a hash value for the String, based on its structural characteristics
func (e *String) Hash() uint64 {
	return hashOf("String", []string{e.Value}, e.Range.Hash())
}

// Variable is a reference to a named variable.
type Variable struct {
	Range
	Name string
}

func (e *Variable) exprNode() {}

// Hash returns a hash value for the Variable, based on its structural characteristics
func (e *Variable) Hash() uint64 {
	return hashOf("Variable", []string{e.Name}, e.Range.Hash())
}

// Binary is a binary operation.
// Operator is one of + - * / % < <= > >= == != && ||
// (token.ADD, token.SUB, token.MUL, token.QUO, token.REM, token.LSS, token.LEQ,
// token.GTR, token.GEQ, token.EQL, token.NEQ, token.LAND, token.LOR)
type Binary struct {
	Range
	Operator token.Token
	Lhs, Rhs Expr
}

func (e *Binary) exprNode() {}

// Hash returns a hash value for the Binary, based on its structural characteristics
func (e *Binary) Hash() uint64 {
	return hashOf("Binary", []string{e.Operator.String()}, e.Range.Hash(), hashExpr(e.Lhs), hashExpr(e.Rhs))
}

// Unary is a prefix operation: token.SUB (negation) or token.NOT (logical not).
type Unary struct {
	Range
	Operator token.Token
	Operand  Expr
}

func (e *Unary) exprNode() {}

// Hash returns a hash value for the Unary, based on its structural characteristics
func (e *Unary) Hash() uint64 {
	return hashOf("Unary", []string{e.Operator.String()}, e.Range.Hash(), hashExpr(e.Operand))
}

// Call is a call of a named function.
type Call struct {
	Range
	Callee string
	Args   []Expr
}

func (e *Call) exprNode() {}

// Hash returns a hash value for the Call, based on its structural characteristics
func (e *Call) Hash() uint64 {
	parts := []uint64{e.Range.Hash()}
	for _, arg := range e.Args {
		parts = append(parts, hashExpr(arg))
	}
	return hashOf("Call", []string{e.Callee}, parts...)
}

// IsArithmetic reports whether op is one of + - * / %
func IsArithmetic(op token.Token) bool {
	switch op {
	case token.ADD, token.SUB, token.MUL, token.QUO, token.REM:
		return true
	}
	return false
}

// IsComparison reports whether op is one of < <= > >= == !=
func IsComparison(op token.Token) bool {
	switch op {
	case token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ:
		return true
	}
	return false
}

// IsLogical reports whether op is && or ||
func IsLogical(op token.Token) bool {
	return op == token.LAND || op == token.LOR
}

func hashExpr(e Expr) uint64 {
	if isNilNode(e) {
		return 0
	}
	return e.Hash()
}
