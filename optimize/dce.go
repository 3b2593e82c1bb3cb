package optimize

import (
	"log/slog"
	"slices"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"
	"github.com/quill-lang/quill/irutil"
)

// DeadCodeElimination removes unused side-effect-free instructions and unreachable blocks,
// and merges blocks into their single predecessor, repeating until nothing changes.
type DeadCodeElimination struct {
	Logger *slog.Logger
}

func (p *DeadCodeElimination) Name() string { return "dce" }

func (p *DeadCodeElimination) RunOnFunction(f *ir.Func, stats *Stats) bool {
	changed := false
	for {
		removed := p.removeDeadInstructions(f) + p.removeDeadSlots(f) + p.removeUnreachableBlocks(f) + p.mergeBlocks(f)
		if removed == 0 {
			return changed
		}
		stats.InstructionsEliminated += removed
		changed = true
	}
}

func (p *DeadCodeElimination) removeDeadInstructions(f *ir.Func) int {
	uses := irutil.UseCounts(f)
	removed := 0
	// walk backwards so a chain of dead values goes in one sweep
	for _, b := range slices.Backward(f.Blocks) {
		for i := len(b.Insts) - 1; i >= 0; i-- {
			inst := b.Insts[i]
			if irutil.HasSideEffects(inst) {
				continue
			}
			v, ok := inst.(value.Value)
			if ok && uses[v] > 0 {
				continue
			}
			for _, op := range irutil.Operands(inst) {
				if *op != nil {
					uses[*op]--
				}
			}
			b.Insts = slices.Delete(b.Insts, i, i+1)
			removed++
		}
	}
	if removed > 0 {
		p.Logger.Debug("removed dead instructions", "func", f.Name(), "count", removed)
	}
	return removed
}

// removeDeadSlots erases allocas that are only ever stored to, together with their stores
func (p *DeadCodeElimination) removeDeadSlots(f *ir.Func) int {
	onlyStored := map[value.Value]bool{}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if a, ok := inst.(*ir.InstAlloca); ok {
				onlyStored[a] = true
			}
		}
	}
	if len(onlyStored) == 0 {
		return 0
	}
	disqualify := func(v any) {
		store, isStore := v.(*ir.InstStore)
		for _, op := range irutil.Operands(v) {
			if isStore && op == &store.Dst {
				continue
			}
			if _, tracked := onlyStored[*op]; tracked {
				onlyStored[*op] = false
			}
		}
	}
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			disqualify(inst)
		}
		disqualify(b.Term)
	}
	removed := 0
	for _, b := range f.Blocks {
		kept := b.Insts[:0]
		for _, inst := range b.Insts {
			dead := false
			switch inst := inst.(type) {
			case *ir.InstAlloca:
				dead = onlyStored[inst]
			case *ir.InstStore:
				dead = onlyStored[inst.Dst]
			}
			if dead {
				removed++
				continue
			}
			kept = append(kept, inst)
		}
		b.Insts = kept
	}
	if removed > 0 {
		p.Logger.Debug("removed write-only slots", "func", f.Name(), "count", removed)
	}
	return removed
}

func (p *DeadCodeElimination) removeUnreachableBlocks(f *ir.Func) int {
	reachable := irutil.Reachable(f)
	if reachable.Size() == len(f.Blocks) {
		return 0
	}
	removed := 0
	kept := f.Blocks[:0]
	for _, b := range f.Blocks {
		if reachable.Contains(b) {
			kept = append(kept, b)
			continue
		}
		removed += len(b.Insts) + 1
		p.Logger.Debug("removed unreachable block", "func", f.Name(), "block", identText{b})
	}
	f.Blocks = kept
	for _, b := range f.Blocks {
		for _, inst := range b.Insts {
			if phi, ok := inst.(*ir.InstPhi); ok {
				phi.Incs = slices.DeleteFunc(phi.Incs, func(inc *ir.Incoming) bool {
					pred, isBlock := any(inc.Pred).(*ir.Block)
					return isBlock && !reachable.Contains(pred)
				})
			}
		}
	}
	return removed
}

// mergeBlocks appends a block to its predecessor when that predecessor jumps only to it
// and nothing else jumps to it. Each merge drops one terminator.
func (p *DeadCodeElimination) mergeBlocks(f *ir.Func) int {
	merged := 0
	for {
		preds := irutil.Predecessors(f)
		i := slices.IndexFunc(f.Blocks, func(b *ir.Block) bool {
			br, ok := b.Term.(*ir.TermBr)
			if !ok {
				return false
			}
			succ := br.Succs()[0]
			return succ != b && succ != f.Blocks[0] && len(preds[succ]) == 1 && !startsWithPhi(succ)
		})
		if i < 0 {
			return merged
		}
		b := f.Blocks[i]
		succ := b.Term.Succs()[0]
		b.Insts = append(b.Insts, succ.Insts...)
		b.Term = succ.Term
		retargetPhis(f, succ, b)
		f.Blocks = slices.DeleteFunc(f.Blocks, func(candidate *ir.Block) bool { return candidate == succ })
		p.Logger.Debug("merged block", "func", f.Name(), "into", identText{b}, "block", identText{succ})
		merged++
	}
}

func startsWithPhi(b *ir.Block) bool {
	if len(b.Insts) == 0 {
		return false
	}
	_, ok := b.Insts[0].(*ir.InstPhi)
	return ok
}
