package check

import (
	"strings"

	"github.com/quill-lang/quill/frontend/types"
	"github.com/samber/lo"
)

// genericSignature models every unannotated parameter of info as a Generic named after it
func (f *funcInfo) genericSignature() []types.Type {
	params := make([]types.Type, len(f.annotated))
	for i, t := range f.annotated {
		if t == nil {
			t = types.NewGeneric(f.decl.Params[i].Name)
		}
		params[i] = t
	}
	return params
}

func specializationKey(name string, params []types.Type) string {
	return name + "(" + strings.Join(lo.Map(params, func(t types.Type, _ int) string { return t.String() }), ", ") + ")"
}

// specialize computes the signature info takes when called with arguments of the given types.
//
// Each unannotated parameter gets an Equals constraint binding it to its argument type;
// parameters left unbound default to float. The body is then checked again under the
// solved parameter types to find the specialized return type. Results are cached per
// argument-type tuple.
//
// specialize reports false, so that the caller uses the default signature, when the
// function has no unannotated parameters, when the arguments do not refine the default
// signature, on recursive re-entry, and when the body does not check under the
// specialized parameter types.
func (c *Checker) specialize(info *funcInfo, args []types.Type) (*types.Function, bool) {
	if !lo.Contains(info.annotated, nil) || c.specializing[info.key] {
		return nil, false
	}
	if lo.ContainsBy(args, types.IsWildcard) {
		return nil, false
	}

	generic := info.genericSignature()
	constraints := &types.ConstraintSet{}
	for i, param := range generic {
		if _, isGeneric := param.(*types.Generic); isGeneric {
			constraints.Add(types.Equals, param, args[i])
		}
	}
	in := types.NewInstantiator()
	if err := constraints.Solve(in); err != nil {
		c.Logger.Debug("specialization constraints failed", "function", info.key, "err", err)
		return nil, false
	}
	params := make([]types.Type, len(generic))
	for i, param := range generic {
		params[i] = in.Instantiate(param)
		if types.HasGenerics(params[i]) {
			params[i] = types.Float
		}
	}
	defaults := info.defaultParams()
	if lo.EveryBy(lo.Range(len(params)), func(i int) bool { return params[i].Equals(defaults[i]) }) {
		return nil, false
	}

	key := specializationKey(info.key.name, params)
	if sig, cached := c.specializations[key]; cached {
		return sig, sig != nil
	}

	c.specializing[info.key] = true
	res := c.checkBody(info, params)
	delete(c.specializing, info.key)

	if res.HasErrors() {
		c.Logger.Debug("specialization does not check, using the default signature",
			"function", info.key, "params", key, "errors", res.Errors)
		c.specializations[key] = nil
		return nil, false
	}
	sig := types.NewFunction(res.Type, params...)
	c.specializations[key] = sig
	c.specOrder = append(c.specOrder, Specialization{Function: info.key.name, Signature: sig})
	c.Logger.Debug("specialized call", "function", info.key, "signature", sig)
	return sig, true
}
