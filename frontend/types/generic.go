package types

import "strings"

// Generic is an unresolved type parameter, optionally bounded by constraint types
type Generic struct {
	Name        string
	Constraints []Type
}

func NewGeneric(name string, constraints ...Type) *Generic {
	return &Generic{Name: name, Constraints: constraints}
}

func (g *Generic) isType()    {}
func (g *Generic) Kind() Kind { return KindGeneric }

func (g *Generic) String() string {
	if len(g.Constraints) == 0 {
		return g.Name
	}
	bounds := make([]string, len(g.Constraints))
	for i, c := range g.Constraints {
		bounds[i] = typeString(c)
	}
	return g.Name + ": " + strings.Join(bounds, " + ")
}

// Equals compares parameters by name
func (g *Generic) Equals(other Type) bool {
	o, ok := other.(*Generic)
	return ok && o != nil && o.Name == g.Name
}

func (g *Generic) IsAssignableFrom(other Type) bool {
	return isWildcard(other) || g.Equals(other)
}

func (g *Generic) Clone() Type {
	return &Generic{Name: g.Name, Constraints: cloneList(g.Constraints)}
}

func (g *Generic) Hash() uint64 {
	return hashOf(KindGeneric, hashString(g.Name))
}

// HasGenerics reports whether t mentions any Generic parameter
func HasGenerics(t Type) bool {
	found := false
	Walk(t, func(t Type) bool {
		if _, ok := t.(*Generic); ok {
			found = true
		}
		return !found
	})
	return found
}

// Walk visits t and its sub-types depth first, stopping early when visit returns false
func Walk(t Type, visit func(Type) bool) bool {
	if t == nil {
		return true
	}
	if !visit(t) {
		return false
	}
	var children []Type
	switch t := t.(type) {
	case *Function:
		children = append(append(children, t.Params...), t.Return)
	case *List:
		children = []Type{t.Elem}
	case *Tuple:
		children = t.Elems
	case Members:
		children = t.Members()
	case *Interface:
		for _, m := range t.Methods {
			if m.Signature != nil {
				children = append(children, m.Signature)
			}
		}
	}
	for _, child := range children {
		if !Walk(child, visit) {
			return false
		}
	}
	return true
}
