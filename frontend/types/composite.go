package types

import "strings"

// Function is the type of a callable: ordered parameter types and one return type
type Function struct {
	Params []Type
	Return Type
}

func NewFunction(ret Type, params ...Type) *Function {
	return &Function{Params: params, Return: ret}
}

func (f *Function) isType()    {}
func (f *Function) Kind() Kind { return KindFunction }

func (f *Function) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = typeString(p)
	}
	return "(" + strings.Join(params, ", ") + ") -> " + typeString(f.Return)
}

func (f *Function) Equals(other Type) bool {
	o, ok := other.(*Function)
	if !ok || o == nil || f.Return == nil {
		return false
	}
	return equalLists(f.Params, o.Params) && f.Return.Equals(o.Return)
}

// IsAssignableFrom accepts structurally equal functions only: parameter types are not
// checked contravariantly.
func (f *Function) IsAssignableFrom(other Type) bool {
	return isWildcard(other) || f.Equals(other)
}

func (f *Function) Clone() Type {
	var ret Type
	if f.Return != nil {
		ret = f.Return.Clone()
	}
	return &Function{Params: cloneList(f.Params), Return: ret}
}

func (f *Function) Hash() uint64 {
	var ret uint64
	if f.Return != nil {
		ret = f.Return.Hash()
	}
	return hashList(KindFunction, f.Params, ret, uint64(len(f.Params)))
}

// Accepts reports whether f can be called with arguments of the given types
func (f *Function) Accepts(args []Type) bool {
	if len(args) != len(f.Params) {
		return false
	}
	for i, param := range f.Params {
		if param == nil || !param.IsAssignableFrom(args[i]) {
			return false
		}
	}
	return true
}

// List is a homogeneous sequence
type List struct {
	Elem Type
}

func NewList(elem Type) *List {
	return &List{Elem: elem}
}

func (l *List) isType()        {}
func (l *List) Kind() Kind     { return KindList }
func (l *List) String() string { return "list[" + typeString(l.Elem) + "]" }

func (l *List) Equals(other Type) bool {
	o, ok := other.(*List)
	return ok && o != nil && l.Elem != nil && l.Elem.Equals(o.Elem)
}

func (l *List) IsAssignableFrom(other Type) bool {
	return isWildcard(other) || l.Equals(other)
}

func (l *List) Clone() Type {
	if l.Elem == nil {
		return &List{}
	}
	return &List{Elem: l.Elem.Clone()}
}

func (l *List) Hash() uint64 {
	return hashList(KindList, []Type{l.Elem})
}

// Tuple is a fixed-length, order-significant product of types
type Tuple struct {
	Elems []Type
}

func NewTuple(elems ...Type) *Tuple {
	return &Tuple{Elems: elems}
}

func (t *Tuple) isType()    {}
func (t *Tuple) Kind() Kind { return KindTuple }

func (t *Tuple) String() string {
	elems := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		elems[i] = typeString(e)
	}
	return "tuple[" + strings.Join(elems, ", ") + "]"
}

func (t *Tuple) Equals(other Type) bool {
	o, ok := other.(*Tuple)
	return ok && o != nil && equalLists(t.Elems, o.Elems)
}

// IsAssignableFrom accepts tuples of the same length whose elements are assignable pairwise
func (t *Tuple) IsAssignableFrom(other Type) bool {
	if isWildcard(other) {
		return true
	}
	o, ok := other.(*Tuple)
	if !ok || o == nil || len(o.Elems) != len(t.Elems) {
		return false
	}
	for i, e := range t.Elems {
		if e == nil || !e.IsAssignableFrom(o.Elems[i]) {
			return false
		}
	}
	return true
}

func (t *Tuple) Clone() Type {
	return &Tuple{Elems: cloneList(t.Elems)}
}

func (t *Tuple) Hash() uint64 {
	return hashList(KindTuple, t.Elems, uint64(len(t.Elems)))
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
