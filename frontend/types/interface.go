package types

import (
	"slices"
	"strings"
)

// Method is a named member of an Interface
type Method struct {
	Name      string
	Signature *Function
}

// Interface is a structural type: any type exposing every method with an identical
// signature is assignable to it
type Interface struct {
	Name    string
	Methods []Method
}

func NewInterface(name string, methods ...Method) *Interface {
	return &Interface{Name: name, Methods: methods}
}

func (i *Interface) isType()    {}
func (i *Interface) Kind() Kind { return KindInterface }

// Method returns the signature of the method called name
func (i *Interface) Method(name string) (*Function, bool) {
	idx := slices.IndexFunc(i.Methods, func(m Method) bool { return m.Name == name })
	if idx < 0 {
		return nil, false
	}
	return i.Methods[idx].Signature, true
}

func (i *Interface) String() string {
	sb := &strings.Builder{}
	sb.WriteString("interface ")
	sb.WriteString(i.Name)
	sb.WriteString(" {")
	for idx, m := range i.Methods {
		if idx > 0 {
			sb.WriteString(";")
		}
		sb.WriteString(" ")
		sb.WriteString(m.Name)
		sb.WriteString(": ")
		if m.Signature == nil {
			sb.WriteString("<nil>")
		} else {
			sb.WriteString(m.Signature.String())
		}
	}
	sb.WriteString(" }")
	return sb.String()
}

// Equals requires the same name and the same method set with equal signatures
func (i *Interface) Equals(other Type) bool {
	o, ok := other.(*Interface)
	if !ok || o == nil || o.Name != i.Name || len(o.Methods) != len(i.Methods) {
		return false
	}
	return i.exposedBy(o)
}

// IsAssignableFrom accepts any interface exposing a superset of identically-signed methods
func (i *Interface) IsAssignableFrom(other Type) bool {
	if isWildcard(other) {
		return true
	}
	o, ok := other.(*Interface)
	return ok && o != nil && i.exposedBy(o)
}

func (i *Interface) exposedBy(o *Interface) bool {
	for _, required := range i.Methods {
		sig, ok := o.Method(required.Name)
		if !ok || required.Signature == nil || !required.Signature.Equals(sig) {
			return false
		}
	}
	return true
}

func (i *Interface) Clone() Type {
	methods := make([]Method, len(i.Methods))
	for idx, m := range i.Methods {
		methods[idx] = Method{Name: m.Name}
		if m.Signature != nil {
			methods[idx].Signature = m.Signature.Clone().(*Function)
		}
	}
	return &Interface{Name: i.Name, Methods: methods}
}

func (i *Interface) Hash() uint64 {
	hashes := make([]uint64, 0, len(i.Methods)+1)
	for _, m := range i.Methods {
		var sig uint64
		if m.Signature != nil {
			sig = m.Signature.Hash()
		}
		hashes = append(hashes, hashOf(KindInterface, hashString(m.Name), sig))
	}
	slices.Sort(hashes)
	return hashOf(KindInterface, append(hashes, hashString(i.Name))...)
}
