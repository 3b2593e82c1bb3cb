package check

import (
	"slices"
	"sort"

	"github.com/benbjohnson/immutable"
	"github.com/hashicorp/go-set/v3"
	"github.com/quill-lang/quill/frontend/types"
	xset "github.com/xtgo/set"
)

// InferenceContext holds what is known about local variables on the current control-flow path.
// Forking it at a branch is cheap: the variable map is persistent, so a Clone
// shares structure with its parent until either side assigns.
type InferenceContext struct {
	vars     *immutable.Map[string, types.Type]
	modified *set.Set[string]
}

func NewInferenceContext() *InferenceContext {
	return &InferenceContext{
		vars:     immutable.NewMap[string, types.Type](immutable.NewHasher("")),
		modified: set.New[string](0),
	}
}

// Set records t as the type of name on this path and marks name as modified
func (c *InferenceContext) Set(name string, t types.Type) {
	c.vars = c.vars.Set(name, t)
	c.modified.Insert(name)
}

func (c *InferenceContext) Get(name string) (types.Type, bool) {
	return c.vars.Get(name)
}

func (c *InferenceContext) IsModified(name string) bool {
	return c.modified.Contains(name)
}

func (c *InferenceContext) Len() int {
	return c.vars.Len()
}

// Names returns the variables with a recorded type, sorted
func (c *InferenceContext) Names() []string {
	names := make([]string, 0, c.vars.Len())
	itr := c.vars.Iterator()
	for !itr.Done() {
		name, _, _ := itr.Next()
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Modified returns the names assigned on this path, sorted
func (c *InferenceContext) Modified() []string {
	names := c.modified.Slice()
	slices.Sort(names)
	return names
}

func (c *InferenceContext) Clone() *InferenceContext {
	return &InferenceContext{
		vars:     c.vars,
		modified: c.modified.Copy(),
	}
}

// Merge joins the contexts of two branches that both flow into the same point.
// A name known on only one side keeps that side's type. A name known on both sides
// gets the unification of the two types; when the types do not unify, the type
// from c is kept and onFailure, if not nil, is told about it.
func (c *InferenceContext) Merge(other *InferenceContext, onFailure func(name string, left, right types.Type)) *InferenceContext {
	merged := &InferenceContext{
		vars:     c.vars,
		modified: c.modified.Copy(),
	}
	merged.modified.InsertSet(other.modified)

	for _, name := range unionSorted(c.Names(), other.Names()) {
		left, inLeft := c.vars.Get(name)
		right, inRight := other.vars.Get(name)
		switch {
		case !inRight:
			continue
		case !inLeft:
			merged.vars = merged.vars.Set(name, right)
		default:
			unified := types.Unify(left, right)
			if types.IsError(unified) && !types.IsError(left) && !types.IsError(right) {
				if onFailure != nil {
					onFailure(name, left, right)
				}
				continue
			}
			merged.vars = merged.vars.Set(name, unified)
		}
	}
	return merged
}

// unionSorted returns the sorted union of two sorted, duplicate-free slices
func unionSorted(a, b []string) []string {
	data := make(sort.StringSlice, 0, len(a)+len(b))
	data = append(append(data, a...), b...)
	n := xset.Union(data, len(a))
	return data[:n]
}
