package types

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quill-lang/quill/util"
)

var (
	// ErrUndefined is returned when a name is not bound in any scope
	ErrUndefined = errors.New("undefined")
	// ErrNoMatchingOverload is returned when a function name exists but none of its
	// signatures accepts the argument types
	ErrNoMatchingOverload = errors.New("no matching overload")
)

type scope struct {
	vars      map[string]Type
	overloads map[string][]*Function
}

func newScope() *scope {
	return &scope{
		vars:      make(map[string]Type),
		overloads: make(map[string][]*Function),
	}
}

// Environment is a lexically scoped symbol table. Scope 0 is the global scope and is never popped.
type Environment struct {
	scopes util.Stack[*scope]
}

func NewEnvironment() *Environment {
	env := &Environment{}
	env.scopes.Push(newScope())
	return env
}

func (e *Environment) PushScope() {
	e.scopes.Push(newScope())
}

// PopScope discards the innermost scope. Popping the global scope is a no-op.
func (e *Environment) PopScope() {
	if e.scopes.Len() <= 1 {
		return
	}
	_, _ = e.scopes.Pop()
}

// Depth is the number of scopes, including the global one
func (e *Environment) Depth() int {
	return e.scopes.Len()
}

func (e *Environment) innermost() *scope {
	s, _ := e.scopes.Peek()
	return s
}

// Define binds name to t in the innermost scope, replacing any binding there
func (e *Environment) Define(name string, t Type) {
	s := e.innermost()
	s.vars[name] = t
	delete(s.overloads, name)
}

// DefineFunction adds fn as an overload of name in the innermost scope.
// An existing overload with equal parameter types is replaced.
func (e *Environment) DefineFunction(name string, fn *Function) {
	s := e.innermost()
	overloads := s.overloads[name]
	if _, isFunc := s.vars[name].(*Function); !isFunc {
		overloads = nil
	}
	replaced := false
	for i, existing := range overloads {
		if equalLists(existing.Params, fn.Params) {
			overloads[i] = fn
			replaced = true
		}
	}
	if !replaced {
		overloads = append(overloads, fn)
	}
	s.overloads[name] = overloads
	s.vars[name] = fn
}

// ReplaceFunction drops the overloads of name in the innermost scope that have the arity of fn,
// then adds fn. It refines a provisional signature once the real one is known.
func (e *Environment) ReplaceFunction(name string, fn *Function) {
	s := e.innermost()
	kept := s.overloads[name][:0]
	for _, existing := range s.overloads[name] {
		if len(existing.Params) != len(fn.Params) {
			kept = append(kept, existing)
		}
	}
	s.overloads[name] = kept
	e.DefineFunction(name, fn)
}

// Lookup returns the innermost binding of name
func (e *Environment) Lookup(name string) (Type, bool) {
	for s := range e.scopes.TopDown() {
		if t, ok := s.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// IsDefinedInCurrentScope reports whether name is bound in the innermost scope
func (e *Environment) IsDefinedInCurrentScope(name string) bool {
	_, ok := e.innermost().vars[name]
	return ok
}

// Overloads returns every signature bound to name, innermost scope first
func (e *Environment) Overloads(name string) []*Function {
	var found []*Function
	for s := range e.scopes.TopDown() {
		if fns, ok := s.overloads[name]; ok {
			found = append(found, fns...)
			continue
		}
		if fn, ok := s.vars[name].(*Function); ok {
			found = append(found, fn)
		}
	}
	return found
}

// LookupFunction resolves a call of name with arguments of the given types.
// The first overload, innermost scope first, whose arity matches and whose parameters
// accept every argument wins. The error wraps ErrUndefined when name is not a bound
// function, and ErrNoMatchingOverload when it is but no signature fits.
func (e *Environment) LookupFunction(name string, args []Type) (*Function, error) {
	candidates := e.Overloads(name)
	if len(candidates) == 0 {
		if t, ok := e.Lookup(name); ok {
			return nil, fmt.Errorf("%w: %s is a %v, not a function", ErrUndefined, name, t)
		}
		return nil, fmt.Errorf("%w: %s", ErrUndefined, name)
	}
	for _, fn := range candidates {
		if fn.Accepts(args) {
			return fn, nil
		}
	}
	argStrs := make([]string, len(args))
	for i, a := range args {
		argStrs[i] = typeString(a)
	}
	return nil, fmt.Errorf("%w for %s(%s)", ErrNoMatchingOverload, name, strings.Join(argStrs, ", "))
}
