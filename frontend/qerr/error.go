package qerr

import (
	"fmt"
	"go/token"
	"runtime/debug"
	"strings"

	"github.com/quill-lang/quill/frontend/ast"
)

// enableDebugErrorPrinting makes errors include the frame that created them when printed
const enableDebugErrorPrinting bool = false
const enableDebugFullStacktrace bool = false

type ErrCode int

const (
	None ErrCode = iota
	Syntax
	UndefinedVariable
	UndefinedFunction
	NoMatchingOverload
	TypeMismatch
	InvalidCondition
	NonNumericOperand
	IncomparableOperands
	UnknownOperator
	Structural
	InvalidAnnotation
	InconsistentReturn
)

// QuillError is a diagnostic about a source program
type QuillError interface {
	Error() string
	Code() ErrCode
	ast.Positioner

	withStack([]byte) QuillError
	getStack() []byte
}

func FormatWithCode(e QuillError) string {
	if enableDebugErrorPrinting && e.getStack() != nil {
		stack := string(e.getStack())
		if !enableDebugFullStacktrace {
			if lines := strings.Split(stack, "\n"); len(lines) > 6 {
				stack = lines[6]
			}
		}
		return fmt.Sprintf("%s:(E%03d) %s", stack, e.Code(), e.Error())
	}
	return fmt.Sprintf("(E%03d) %s", e.Code(), e.Error())
}

// FormatWithCodeAndSource prefixes FormatWithCode with the file:line:col of e in fset
func FormatWithCodeAndSource(e QuillError, fset *token.FileSet) string {
	if fset == nil || !e.Pos().IsValid() {
		return FormatWithCode(e)
	}
	return fmt.Sprintf("%s: %s", ast.Locate(fset, e), FormatWithCode(e))
}

func New[E QuillError](err E) QuillError {
	return err.withStack(debug.Stack())
}

type Unclassified struct {
	From error
	ast.Positioner
	stack []byte
}

func (e Unclassified) Error() string {
	return fmt.Sprintf("unclassified error: %v", e.From)
}
func (e Unclassified) Code() ErrCode    { return None }
func (e Unclassified) getStack() []byte { return e.stack }
func (e Unclassified) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewSyntax struct {
	ast.Positioner
	ParserMessage string
	stack         []byte
}

func (e NewSyntax) Error() string    { return "syntax error: " + e.ParserMessage }
func (e NewSyntax) Code() ErrCode    { return Syntax }
func (e NewSyntax) getStack() []byte { return e.stack }
func (e NewSyntax) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewUndefinedVariable struct {
	ast.Positioner
	Name  string
	stack []byte
}

func (e NewUndefinedVariable) Code() ErrCode { return UndefinedVariable }
func (e NewUndefinedVariable) Error() string {
	return fmt.Sprintf("undefined variable: %s", e.Name)
}
func (e NewUndefinedVariable) getStack() []byte { return e.stack }
func (e NewUndefinedVariable) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewUndefinedFunction struct {
	ast.Positioner
	Name  string
	stack []byte
}

func (e NewUndefinedFunction) Code() ErrCode { return UndefinedFunction }
func (e NewUndefinedFunction) Error() string {
	return fmt.Sprintf("undefined function: %s", e.Name)
}
func (e NewUndefinedFunction) getStack() []byte { return e.stack }
func (e NewUndefinedFunction) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewNoMatchingOverload struct {
	ast.Positioner
	Name  string
	Args  []string
	stack []byte
}

func (e NewNoMatchingOverload) Code() ErrCode { return NoMatchingOverload }
func (e NewNoMatchingOverload) Error() string {
	return fmt.Sprintf("no matching overload for %s(%s)", e.Name, strings.Join(e.Args, ", "))
}
func (e NewNoMatchingOverload) getStack() []byte { return e.stack }
func (e NewNoMatchingOverload) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

// NewTypeMismatch reports a value of type Got flowing into a location of type Expected
type NewTypeMismatch struct {
	ast.Positioner
	Context  string
	Expected string
	Got      string
	stack    []byte
}

func (e NewTypeMismatch) Code() ErrCode { return TypeMismatch }
func (e NewTypeMismatch) Error() string {
	return fmt.Sprintf("type error in %s: expected %s, got %s", e.Context, e.Expected, e.Got)
}
func (e NewTypeMismatch) getStack() []byte { return e.stack }
func (e NewTypeMismatch) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewInvalidCondition struct {
	ast.Positioner
	Statement string
	Got       string
	stack     []byte
}

func (e NewInvalidCondition) Code() ErrCode { return InvalidCondition }
func (e NewInvalidCondition) Error() string {
	return fmt.Sprintf("%s condition must be boolean or numeric, got: %s", e.Statement, e.Got)
}
func (e NewInvalidCondition) getStack() []byte { return e.stack }
func (e NewInvalidCondition) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewNonNumericOperand struct {
	ast.Positioner
	Operator string
	Operands []string
	stack    []byte
}

func (e NewNonNumericOperand) Code() ErrCode { return NonNumericOperand }
func (e NewNonNumericOperand) Error() string {
	return fmt.Sprintf("operator %s requires numeric types, got: %s", e.Operator, strings.Join(e.Operands, " and "))
}
func (e NewNonNumericOperand) getStack() []byte { return e.stack }
func (e NewNonNumericOperand) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewIncomparableOperands struct {
	ast.Positioner
	Left, Right string
	stack       []byte
}

func (e NewIncomparableOperands) Code() ErrCode { return IncomparableOperands }
func (e NewIncomparableOperands) Error() string {
	return fmt.Sprintf("cannot compare incompatible types: %s and %s", e.Left, e.Right)
}
func (e NewIncomparableOperands) getStack() []byte { return e.stack }
func (e NewIncomparableOperands) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewUnknownOperator struct {
	ast.Positioner
	Operator string
	stack    []byte
}

func (e NewUnknownOperator) Code() ErrCode { return UnknownOperator }
func (e NewUnknownOperator) Error() string {
	return fmt.Sprintf("unknown operator: %s", e.Operator)
}
func (e NewUnknownOperator) getStack() []byte { return e.stack }
func (e NewUnknownOperator) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

// NewStructural reports a malformed or missing syntax tree node
type NewStructural struct {
	ast.Positioner
	What  string
	stack []byte
}

func (e NewStructural) Code() ErrCode { return Structural }
func (e NewStructural) Error() string {
	return fmt.Sprintf("malformed syntax tree: %s", e.What)
}
func (e NewStructural) getStack() []byte { return e.stack }
func (e NewStructural) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewInvalidAnnotation struct {
	ast.Positioner
	Annotation string
	Reason     string
	stack      []byte
}

func (e NewInvalidAnnotation) Code() ErrCode { return InvalidAnnotation }
func (e NewInvalidAnnotation) Error() string {
	return fmt.Sprintf("invalid type annotation '%s': %s", e.Annotation, e.Reason)
}
func (e NewInvalidAnnotation) getStack() []byte { return e.stack }
func (e NewInvalidAnnotation) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

type NewInconsistentReturn struct {
	ast.Positioner
	Function string
	Types    []string
	stack    []byte
}

func (e NewInconsistentReturn) Code() ErrCode { return InconsistentReturn }
func (e NewInconsistentReturn) Error() string {
	return fmt.Sprintf("function '%s' returns incompatible types: %s", e.Function, strings.Join(e.Types, ", "))
}
func (e NewInconsistentReturn) getStack() []byte { return e.stack }
func (e NewInconsistentReturn) withStack(stack []byte) QuillError {
	e.stack = stack
	return e
}

// NoPos is a Positioner for diagnostics that cannot be attributed to a source range
var NoPos ast.Positioner = ast.Range{PosStart: token.NoPos, PosEnd: token.NoPos}
