// Package types implements the Quill type model: a closed set of structural types with
// equality, assignability and numeric promotion, the scoped type Environment,
// and generic instantiation through constraint solving.
package types

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
)

// Kind discriminates the variants of Type
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindBool
	KindString
	KindVoid
	KindFunction
	KindList
	KindTuple
	KindUnion
	KindDiscriminatedUnion
	KindInterface
	KindGeneric
	KindUnknown
	KindError
)

var kindNames = map[Kind]string{
	KindInt:                "int",
	KindFloat:              "float",
	KindBool:               "bool",
	KindString:             "str",
	KindVoid:               "void",
	KindFunction:           "function",
	KindList:               "list",
	KindTuple:              "tuple",
	KindUnion:              "union",
	KindDiscriminatedUnion: "discriminated union",
	KindInterface:          "interface",
	KindGeneric:            "generic",
	KindUnknown:            "unknown",
	KindError:              "error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is a Quill type. The set of implementations is closed to this package.
//
// Types are trees: a composite type exclusively owns its children,
// and no method mutates a Type once it is constructed.
type Type interface {
	fmt.Stringer
	Kind() Kind
	// Equals is structural equality. Unknown and Error never equal anything.
	Equals(other Type) bool
	// IsAssignableFrom reports whether a value of type other may be stored
	// in a location of this type.
	IsAssignableFrom(other Type) bool
	// Clone returns a deep copy of the type tree
	Clone() Type
	// Hash is consistent with Equals: equal types have equal hashes
	Hash() uint64

	isType()
}

var (
	_ Type = (*primitiveType)(nil)
	_ Type = (*Function)(nil)
	_ Type = (*List)(nil)
	_ Type = (*Tuple)(nil)
	_ Type = (*Union)(nil)
	_ Type = (*DiscriminatedUnion)(nil)
	_ Type = (*Interface)(nil)
	_ Type = (*Generic)(nil)
	_ Type = (*UnknownType)(nil)
	_ Type = (*ErrorType)(nil)
)

type primitiveType struct {
	kind Kind
}

var (
	Int    Type = &primitiveType{kind: KindInt}
	Float  Type = &primitiveType{kind: KindFloat}
	Bool   Type = &primitiveType{kind: KindBool}
	String Type = &primitiveType{kind: KindString}
	Void   Type = &primitiveType{kind: KindVoid}
)

func (p *primitiveType) isType()        {}
func (p *primitiveType) Kind() Kind     { return p.kind }
func (p *primitiveType) String() string { return p.kind.String() }
func (p *primitiveType) Clone() Type    { return p }
func (p *primitiveType) Hash() uint64   { return hashOf(p.kind) }

func (p *primitiveType) Equals(other Type) bool {
	o, ok := other.(*primitiveType)
	return ok && o != nil && o.kind == p.kind
}

func (p *primitiveType) IsAssignableFrom(other Type) bool {
	if isWildcard(other) {
		return true
	}
	if p.Equals(other) {
		return true
	}
	// numeric promotion: int widens to float
	return p.kind == KindFloat && isKind(other, KindInt)
}

// UnknownType marks a slot whose type has not been inferred yet
type UnknownType struct{}

// Unknown is the not-yet-inferred type. It accepts every type and equals none.
var Unknown Type = &UnknownType{}

func (u *UnknownType) isType()                      {}
func (u *UnknownType) Kind() Kind                   { return KindUnknown }
func (u *UnknownType) String() string               { return "unknown" }
func (u *UnknownType) Equals(Type) bool             { return false }
func (u *UnknownType) IsAssignableFrom(o Type) bool { return o != nil }
func (u *UnknownType) Clone() Type                  { return u }
func (u *UnknownType) Hash() uint64                 { return hashOf(KindUnknown) }

// ErrorType is the type of an expression that failed to check.
// It is accepted everywhere so that one mistake is reported once.
type ErrorType struct {
	Message string
}

func NewError(format string, args ...any) *ErrorType {
	return &ErrorType{Message: fmt.Sprintf(format, args...)}
}

func (e *ErrorType) isType()                      {}
func (e *ErrorType) Kind() Kind                   { return KindError }
func (e *ErrorType) String() string               { return "error" }
func (e *ErrorType) Equals(Type) bool             { return false }
func (e *ErrorType) IsAssignableFrom(o Type) bool { return o != nil }
func (e *ErrorType) Clone() Type                  { return &ErrorType{Message: e.Message} }
func (e *ErrorType) Hash() uint64                 { return hashOf(KindError) }

// IsNumeric reports whether t is int or float
func IsNumeric(t Type) bool {
	return isKind(t, KindInt) || isKind(t, KindFloat)
}

// IsWildcard reports whether t is Unknown or Error, the types that are compatible with everything
func IsWildcard(t Type) bool {
	return isWildcard(t)
}

func isWildcard(t Type) bool {
	return isKind(t, KindUnknown) || isKind(t, KindError)
}

func isKind(t Type, k Kind) bool {
	return t != nil && t.Kind() == k
}

// Promote computes the result type of arithmetic between a and b:
// float if either is float and both are numeric, int if both are int, an Error otherwise
func Promote(a, b Type) Type {
	if !IsNumeric(a) || !IsNumeric(b) {
		return NewError("cannot promote %v and %v", a, b)
	}
	if isKind(a, KindFloat) || isKind(b, KindFloat) {
		return Float
	}
	return Int
}

// Unify finds a type both a and b can be stored in:
// a itself when the types are equal, the promotion of two numeric types,
// the other type when one side is Unknown, and an Error otherwise.
func Unify(a, b Type) Type {
	switch {
	case a == nil || b == nil:
		return NewError("cannot unify a missing type")
	case a.Equals(b):
		return a
	case IsNumeric(a) && IsNumeric(b):
		return Promote(a, b)
	case isKind(a, KindUnknown):
		return b
	case isKind(b, KindUnknown):
		return a
	case isKind(a, KindError):
		return a
	case isKind(b, KindError):
		return b
	}
	return NewError("cannot unify %v and %v", a, b)
}

// IsError reports whether t is an Error type
func IsError(t Type) bool {
	return isKind(t, KindError)
}

func hashOf(kind Kind, parts ...uint64) uint64 {
	h := fnv.New64a()
	arr := binary.LittleEndian.AppendUint64(nil, uint64(kind))
	for _, part := range parts {
		arr = binary.LittleEndian.AppendUint64(arr, part)
	}
	_, _ = h.Write(arr)
	return h.Sum64()
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func equalLists(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] == nil || !a[i].Equals(b[i]) {
			return false
		}
	}
	return true
}

func cloneList(ts []Type) []Type {
	cloned := make([]Type, len(ts))
	for i, t := range ts {
		if t != nil {
			cloned[i] = t.Clone()
		}
	}
	return cloned
}

func hashList(kind Kind, ts []Type, extra ...uint64) uint64 {
	parts := make([]uint64, 0, len(ts)+len(extra))
	parts = append(parts, extra...)
	for _, t := range ts {
		if t != nil {
			parts = append(parts, t.Hash())
		}
	}
	return hashOf(kind, parts...)
}
