package types

import (
	"maps"

	"github.com/quill-lang/quill/util"
)

// Instantiator maps generic parameter names to the concrete types bound to them
// and substitutes those bindings through type trees
type Instantiator struct {
	bindings map[string]Type
}

func NewInstantiator() *Instantiator {
	return &Instantiator{bindings: make(map[string]Type)}
}

// Bind records t as the binding of the generic parameter name, replacing any earlier binding
func (in *Instantiator) Bind(name string, t Type) {
	in.bindings[name] = t
}

func (in *Instantiator) Binding(name string) (Type, bool) {
	t, ok := in.bindings[name]
	return t, ok
}

func (in *Instantiator) IsBound(name string) bool {
	_, ok := in.bindings[name]
	return ok
}

// Bindings returns a copy of the current bindings
func (in *Instantiator) Bindings() map[string]Type {
	return maps.Clone(in.bindings)
}

// Names returns the bound parameter names in ascending order
func (in *Instantiator) Names() []string {
	return util.SortedKeys(in.bindings)
}

func (in *Instantiator) Clear() {
	clear(in.bindings)
}

// Instantiate rewrites t, replacing every bound Generic by a clone of its binding.
// Unbound generics and primitives are returned unchanged.
func (in *Instantiator) Instantiate(t Type) Type {
	switch t := t.(type) {
	case nil:
		return nil
	case *Generic:
		if bound, ok := in.bindings[t.Name]; ok {
			return bound.Clone()
		}
		return t
	case *Function:
		return in.InstantiateFunction(t)
	case *List:
		return &List{Elem: in.Instantiate(t.Elem)}
	case *Tuple:
		return &Tuple{Elems: in.instantiateAll(t.Elems)}
	case *Union:
		return NewUnion(in.instantiateAll(t.members)...)
	case *DiscriminatedUnion:
		variants := make([]Variant, len(t.Variants))
		for i, v := range t.Variants {
			variants[i] = Variant{Tag: v.Tag, Payload: in.Instantiate(v.Payload)}
		}
		return &DiscriminatedUnion{Variants: variants}
	case *Interface:
		methods := make([]Method, len(t.Methods))
		for i, m := range t.Methods {
			methods[i] = Method{Name: m.Name}
			if m.Signature != nil {
				methods[i].Signature = in.InstantiateFunction(m.Signature)
			}
		}
		return &Interface{Name: t.Name, Methods: methods}
	}
	return t
}

func (in *Instantiator) InstantiateFunction(fn *Function) *Function {
	return &Function{
		Params: in.instantiateAll(fn.Params),
		Return: in.Instantiate(fn.Return),
	}
}

func (in *Instantiator) instantiateAll(ts []Type) []Type {
	out := make([]Type, len(ts))
	for i, t := range ts {
		out[i] = in.Instantiate(t)
	}
	return out
}
