package ast

import "reflect"

// All statement types implement the Stmt interface

// Assignment binds the value of an expression to a name, declaring it on first use.
type Assignment struct {
	Range
	Name  string
	Value Expr
}

func (s *Assignment) stmtNode() {}

// Hash returns a hash value for the Assignment, based on its structural characteristics
func (s *Assignment) Hash() uint64 {
	return hashOf("Assignment", []string{s.Name}, s.Range.Hash(), hashExpr(s.Value))
}

// Return leaves the enclosing function. Value is nil for a bare return.
type Return struct {
	Range
	Value Expr
}

func (s *Return) stmtNode() {}

// Hash returns a hash value for the Return, based on its structural characteristics
func (s *Return) Hash() uint64 {
	return hashOf("Return", nil, s.Range.Hash(), hashExpr(s.Value))
}

// If is a conditional. Else is nil when there is no else branch.
type If struct {
	Range
	Cond Expr
	Then Stmt
	Else Stmt
}

func (s *If) stmtNode() {}

// Hash returns a hash value for the If, based on its structural characteristics
func (s *If) Hash() uint64 {
	return hashOf("If", nil, s.Range.Hash(), hashExpr(s.Cond), hashStmt(s.Then), hashStmt(s.Else))
}

// While is a pre-tested loop.
type While struct {
	Range
	Cond Expr
	Body Stmt
}

func (s *While) stmtNode() {}

// Hash returns a hash value for the While, based on its structural characteristics
func (s *While) Hash() uint64 {
	return hashOf("While", nil, s.Range.Hash(), hashExpr(s.Cond), hashStmt(s.Body))
}

// Print writes the value of an expression to standard output.
type Print struct {
	Range
	Value Expr
}

func (s *Print) stmtNode() {}

// Hash returns a hash value for the Print, based on its structural characteristics
func (s *Print) Hash() uint64 {
	return hashOf("Print", nil, s.Range.Hash(), hashExpr(s.Value))
}

// Block represents an indented sequence of statements.
type Block struct {
	Range
	Stmts []Stmt
}

func (s *Block) stmtNode() {}

// Hash returns a hash value for the Block, based on its structural characteristics
func (s *Block) Hash() uint64 {
	parts := []uint64{s.Range.Hash()}
	for _, stmt := range s.Stmts {
		parts = append(parts, hashStmt(stmt))
	}
	return hashOf("Block", nil, parts...)
}

// ExprStmt represents an expression used as a statement.
type ExprStmt struct {
	Range
	X Expr
}

func (s *ExprStmt) stmtNode() {}

// Hash returns a hash value for the ExprStmt, based on its structural characteristics
func (s *ExprStmt) Hash() uint64 {
	return hashOf("ExprStmt", nil, s.Range.Hash(), hashExpr(s.X))
}

func hashStmt(s Stmt) uint64 {
	if isNilNode(s) {
		return 0
	}
	return s.Hash()
}

// IsNil reports whether n is nil, including typed nil pointers stored in an interface
func IsNil(n Node) bool {
	return isNilNode(n)
}

func isNilNode(n Node) bool {
	if n == nil {
		return true
	}
	v := reflect.ValueOf(n)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
