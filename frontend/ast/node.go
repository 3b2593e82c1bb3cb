package ast

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// Node is the base interface for all AST nodes.
type Node interface {
	Positioner
	Hash() uint64
}

// Expr is the interface for all expression nodes in the AST.
type Expr interface {
	Node
	exprNode() // Marker method to distinguish expressions
}

// Stmt is the interface for all statement nodes in the AST.
type Stmt interface {
	Node
	stmtNode() // Marker method to distinguish statements
}

// Program is a parsed source file: an ordered list of function declarations.
type Program struct {
	Range
	Name      string
	Functions []*Function
}

// Hash returns a hash value for the Program, based on its structural characteristics
func (p *Program) Hash() uint64 {
	parts := make([]uint64, 0, len(p.Functions)+1)
	parts = append(parts, p.Range.Hash())
	for _, fn := range p.Functions {
		if fn != nil {
			parts = append(parts, fn.Hash())
		}
	}
	return hashOf("Program", []string{p.Name}, parts...)
}

// Function looks up a declared function by name, returning the last declaration if it is repeated
func (p *Program) Function(name string) *Function {
	var found *Function
	for _, fn := range p.Functions {
		if fn != nil && fn.Name == name {
			found = fn
		}
	}
	return found
}

// Param is a function parameter with an optional type annotation.
type Param struct {
	Range
	Name       string
	Annotation string // empty when the parameter is unannotated
}

// Function represents a function declaration.
type Function struct {
	Range
	Name             string
	Params           []Param
	ReturnAnnotation string // empty when the return type is unannotated
	Body             Stmt
}

// ParamNames returns the ordered parameter names of f
func (f *Function) ParamNames() []string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return names
}

// Hash returns a hash value for the Function, based on its structural characteristics
func (f *Function) Hash() uint64 {
	strs := []string{f.Name, f.ReturnAnnotation}
	parts := []uint64{f.Range.Hash()}
	for _, p := range f.Params {
		strs = append(strs, p.Name, p.Annotation)
	}
	if f.Body != nil {
		parts = append(parts, f.Body.Hash())
	}
	return hashOf("Function", strs, parts...)
}

func hashOf(kind string, strs []string, parts ...uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(kind))
	for _, s := range strs {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	arr := []byte{}
	for _, part := range parts {
		arr = binary.LittleEndian.AppendUint64(arr, part)
	}
	_, _ = h.Write(arr)
	return h.Sum64()
}

func hashFloat(f float64) uint64 {
	return math.Float64bits(f)
}
