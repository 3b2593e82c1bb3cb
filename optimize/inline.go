package optimize

import (
	"log/slog"
	"slices"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
)

const (
	// EntryPoint is never inlined
	EntryPoint = "main"
	// inlineMaxBlocks bounds the control flow of an inlined callee
	inlineMaxBlocks = 3
	// maxInlinesPerCaller stops expansion through long call cycles
	maxInlinesPerCaller = 64
)

// Inliner splices the bodies of small non-recursive functions into their callers
type Inliner struct {
	Logger    *slog.Logger
	Threshold int
}

func (p *Inliner) Name() string { return "inline" }

func (p *Inliner) RunOnModule(m *ir.Module, stats *Stats) bool {
	changed := false
	for _, caller := range m.Funcs {
		if irutil.IsDeclaration(caller) {
			continue
		}
		for n := 0; n < maxInlinesPerCaller; n++ {
			block, call, callee := p.nextCandidate(caller)
			if call == nil {
				break
			}
			if err := p.inline(caller, block, call, callee); err != nil {
				p.Logger.Debug("could not inline", "caller", caller.Name(), "callee", callee.Name(), "err", err)
				break
			}
			p.Logger.Debug("inlined", "caller", caller.Name(), "callee", callee.Name())
			stats.FunctionsInlined++
			changed = true
		}
	}
	return changed
}

// Weight is the inlining cost of f: one per instruction and terminator, plus five per call,
// two per memory access and one per branch
func Weight(f *ir.Func) int {
	w := 0
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			w++
			switch inst.(type) {
			case *ir.InstCall:
				w += 5
			case *ir.InstLoad, *ir.InstStore:
				w += 2
			}
		}
		w++
		switch b.Term.(type) {
		case *ir.TermBr, *ir.TermCondBr:
			w++
		}
	}
	return w
}

// IsRecursive reports whether f calls itself directly or through one intermediate function
func IsRecursive(f *ir.Func) bool {
	for _, callee := range calleesOf(f) {
		if callee == f {
			return true
		}
		if slices.Contains(calleesOf(callee), f) {
			return true
		}
	}
	return false
}

func calleesOf(f *ir.Func) []*ir.Func {
	var callees []*ir.Func
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if call, ok := inst.(*ir.InstCall); ok {
				if callee, ok := call.Callee.(*ir.Func); ok && !slices.Contains(callees, callee) {
					callees = append(callees, callee)
				}
			}
		}
	}
	return callees
}

// ShouldInline reports whether calls to callee from caller may be replaced by its body
func (p *Inliner) ShouldInline(caller, callee *ir.Func) bool {
	switch {
	case irutil.IsDeclaration(callee), callee.Name() == EntryPoint, callee == caller:
		return false
	case len(callee.Blocks) > inlineMaxBlocks, Weight(callee) > p.threshold():
		return false
	case IsRecursive(callee), hasPhi(callee):
		return false
	case !callee.Sig.RetType.Equal(types.Void) && !returnsValue(callee):
		return false
	}
	return true
}

func (p *Inliner) threshold() int {
	if p.Threshold <= 0 {
		return DefaultInlineThreshold
	}
	return p.Threshold
}

func returnsValue(f *ir.Func) bool {
	return slices.ContainsFunc(f.Blocks, func(b *ir.Block) bool {
		ret, ok := b.Term.(*ir.TermRet)
		return ok && ret.X != nil
	})
}

func hasPhi(f *ir.Func) bool {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if _, ok := inst.(*ir.InstPhi); ok {
				return true
			}
		}
	}
	return false
}

func (p *Inliner) nextCandidate(caller *ir.Func) (*ir.Block, *ir.InstCall, *ir.Func) {
	for _, b := range caller.Blocks {
		for _, inst := range b.Insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			callee, ok := call.Callee.(*ir.Func)
			if ok && len(call.Args) == len(callee.Params) && p.ShouldInline(caller, callee) {
				return b, call, callee
			}
		}
	}
	return nil, nil, nil
}

// inline replaces call, found in block of caller, with a copy of the body of callee.
// The block is split after the call; the copied blocks sit in between and branch to
// the second half where the callee returned.
func (p *Inliner) inline(caller *ir.Func, block *ir.Block, call *ir.InstCall, callee *ir.Func) error {
	prefix := callee.Name() + ".inl"
	mapping := map[value.Value]value.Value{}
	for i, param := range callee.Params {
		mapping[param] = call.Args[i]
	}
	blocks := map[*ir.Block]*ir.Block{}
	var copies []*ir.Block
	var hoisted []ir.Instruction
	var clones []ir.Instruction
	for _, b := range callee.Blocks {
		nb := ir.NewBlock(irutil.FreshName(prefix))
		nb.Parent = caller
		blocks[b] = nb
		copies = append(copies, nb)
		for _, inst := range b.Insts {
			clone, err := irutil.CloneInst(inst, prefix, func(v value.Value) value.Value { return v })
			if err != nil {
				return err
			}
			if v, ok := inst.(value.Value); ok {
				mapping[v] = clone.(value.Value)
			}
			clones = append(clones, clone)
			if _, isSlot := clone.(*ir.InstAlloca); isSlot {
				hoisted = append(hoisted, clone)
				continue
			}
			nb.Insts = append(nb.Insts, clone)
		}
	}
	remap := func(v value.Value) value.Value {
		if mapped, ok := mapping[v]; ok {
			return mapped
		}
		return v
	}
	for _, clone := range clones {
		for _, op := range irutil.Operands(clone) {
			*op = remap(*op)
		}
	}

	at := slices.Index(block.Insts, ir.Instruction(call))
	cont := ir.NewBlock(irutil.FreshName(prefix + ".cont"))
	cont.Parent = caller
	cont.Insts = slices.Clone(block.Insts[at+1:])
	cont.Term = block.Term
	retargetPhis(caller, block, cont)
	block.Insts = block.Insts[:at]
	block.Term = ir.NewBr(blocks[callee.Blocks[0]])

	var results []*ir.Incoming
	for _, b := range callee.Blocks {
		nb := blocks[b]
		switch term := b.Term.(type) {
		case *ir.TermRet:
			if term.X != nil {
				results = append(results, ir.NewIncoming(remap(term.X), nb))
			}
			nb.Term = ir.NewBr(cont)
		case *ir.TermBr:
			nb.Term = ir.NewBr(blocks[term.Succs()[0]])
		case *ir.TermCondBr:
			succs := term.Succs()
			nb.Term = ir.NewCondBr(remap(term.Cond), blocks[succs[0]], blocks[succs[1]])
		default:
			nb.Term = ir.NewUnreachable()
		}
	}

	i := slices.Index(caller.Blocks, block)
	caller.Blocks = slices.Insert(caller.Blocks, i+1, append(copies, cont)...)

	if irutil.Defines(call) {
		var result value.Value
		switch len(results) {
		case 0:
		case 1:
			result = results[0].X
		default:
			phi := ir.NewPhi(results...)
			irutil.Name(phi, prefix)
			cont.Insts = slices.Insert(cont.Insts, 0, ir.Instruction(phi))
			result = phi
		}
		if result != nil {
			irutil.ReplaceAllUses(caller, call, result)
		}
	}

	irutil.InsertBefore(caller.Blocks[0], 0, hoisted...)
	return nil
}

// retargetPhis makes phis that named from as a predecessor name to instead
func retargetPhis(f *ir.Func, from, to *ir.Block) {
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			phi, ok := inst.(*ir.InstPhi)
			if !ok {
				continue
			}
			for _, inc := range phi.Incs {
				if pred, ok := any(inc.Pred).(*ir.Block); ok && pred == from {
					inc.Pred = to
				}
			}
		}
	}
}
