package mem2reg

import (
	"utcc/internal/cfg"
	"utcc/internal/dom"
	"utcc/internal/ir"
)

// ----------------------------
// ----- Functions -----------
// ----------------------------

// Promote rewrites f in place, replacing every escape-safe local slot
// (per the rules in escape.go) with pure SSA values, inserting phi nodes
// at the iterated dominance frontier of each promoted slot's definition
// set and renaming reads/writes by a pre-order dominator-tree walk, per
// spec.md §4.4. It returns the rebuilt CFG over the promoted function.
func Promote(f *ir.Function) (*cfg.CFG, error) {
	promo := promotable(f)
	// Implicit zero-initialisation on function entry: one Imm per promoted
	// slot, moved to just after the entry Label before the CFG is built.
	current := map[int]ir.Vreg{}
	n := len(f.Instrs)
	for slot := range promo {
		current[slot] = f.Imm(f.Locals[slot].Size, 0)
	}
	if at := 1; n > 0 && f.Instrs[0].Op == ir.OpLabel {
		inits := append([]ir.Instruction(nil), f.Instrs[n:]...)
		f.Instrs = append(f.Instrs[:at], append(inits, f.Instrs[at:n]...)...)
	}
	c0, err := cfg.Build(f)
	if err != nil {
		return nil, err
	}
	c0, err = cfg.EliminateDeadBlocks(c0)
	if err != nil {
		return nil, err
	}
	if len(promo) == 0 {
		return c0, nil
	}

	events := collectEvents(c0, promo)
	liveInSlots := liveIn(c0, events)

	tree, err := dom.Build(c0)
	if err != nil {
		return nil, err
	}

	// defBlocks[slot] = blocks containing a Store to slot.
	defBlocks := map[int][]int{}
	for bi, evs := range events {
		seen := map[int]bool{}
		for _, e := range evs {
			if e.isStore && !seen[e.slot] {
				seen[e.slot] = true
				defBlocks[e.slot] = append(defBlocks[e.slot], bi)
			}
		}
	}

	// phiSlots[block] = slots that need a phi target in that block:
	// the IDF of slot's def blocks, restricted to where slot is live-in.
	phiSlots := make([][]int, len(c0.Blocks))
	for slot := range promo {
		for _, b := range tree.IDF(defBlocks[slot]) {
			if b < len(liveInSlots) && slot < len(liveInSlots[b]) && liveInSlots[b][slot] {
				phiSlots[b] = append(phiSlots[b], slot)
			}
		}
	}

	r := &renamer{
		f:        f,
		c:        c0,
		tree:     tree,
		promo:    promo,
		phiSlots: phiSlots,
		phiOf:    make([]*ir.PhiNode, len(c0.Blocks)),
		rewrite:  map[ir.Vreg]ir.Vreg{},
	}

	// Allocate phi target vregs up front so block-entry renaming and the
	// predecessor-side column writes agree on the same vreg.
	for bi, slots := range phiSlots {
		if len(slots) == 0 {
			continue
		}
		targets := make([]ir.Vreg, len(slots))
		sizes := make([]ir.Size, len(slots))
		for i, s := range slots {
			targets[i] = f.NewVreg()
			sizes[i] = f.Locals[s].Size
		}
		phi := ir.NewPhiNode(targets, sizes)
		r.phiOf[bi] = phi
		attachPhi(f, c0.Blocks[bi], phi)
	}

	r.walk(0, current)
	r.fixRewrites()
	return c0, nil
}

// collectEvents turns each block's instruction stream into the ordered
// slot-event list liveIn's dataflow needs, restricted to slots in promo.
func collectEvents(c *cfg.CFG, promo map[int]bool) [][]slotEvent {
	out := make([][]slotEvent, len(c.Blocks))
	for bi, b := range c.Blocks {
		instrs := c.Instructions(b)
		for i := 0; i < len(instrs); i++ {
			in := instrs[i]
			if in.Op != ir.OpLocalAddr || !promo[in.Slot] {
				continue
			}
			if i+1 >= len(instrs) {
				continue
			}
			next := instrs[i+1]
			switch next.Op {
			case ir.OpLoad:
				out[bi] = append(out[bi], slotEvent{slot: in.Slot, isStore: false})
			case ir.OpStore:
				out[bi] = append(out[bi], slotEvent{slot: in.Slot, isStore: true})
			}
		}
	}
	return out
}

// attachPhi wires phi into block b's leading Label instruction.
func attachPhi(f *ir.Function, b *cfg.Block, phi *ir.PhiNode) {
	if len(f.Instrs) == 0 {
		return
	}
	idx := b.Start
	if idx < len(f.Instrs) && f.Instrs[idx].Op == ir.OpLabel {
		f.Instrs[idx].Phi = phi
	}
}

// renamer carries the state of the dominator-tree renaming walk.
type renamer struct {
	f        *ir.Function
	c        *cfg.CFG
	tree     *dom.Tree
	promo    map[int]bool
	phiSlots [][]int
	phiOf    []*ir.PhiNode
	rewrite  map[ir.Vreg]ir.Vreg
}

// walk performs the pre-order dominator-tree renaming of spec.md
// §4.4(c): it pushes the new vreg at each definition and at block entry
// for any pending phi, rewrites Load results to the current value,
// overwrites promoted Load/Store/LocalAddr triples with Nop, records
// predecessor columns on successors' phi nodes, recurses into dominator
// children, then restores the slot->vreg map on exit (the "stack" is
// realised here as a copied map passed by value down each recursive
// call rather than an explicit push/pop per slot).
func (r *renamer) walk(bi int, current map[int]ir.Vreg) {
	// Absorb this block's own phi targets into current.
	if phi := r.phiOf[bi]; phi != nil {
		for i, slot := range r.phiSlots[bi] {
			current[slot] = phi.Targets[i]
		}
	}

	b := r.c.Blocks[bi]
	instrs := r.f.Instrs
	for i := b.Start; i < b.End; i++ {
		in := &instrs[i]
		if in.Op == ir.OpLocalAddr && r.promo[in.Slot] && i+1 < b.End {
			next := &instrs[i+1]
			slot := in.Slot
			switch next.Op {
			case ir.OpLoad:
				r.rewrite[next.Result] = current[slot]
				in.Op = ir.OpNop
				next.Op = ir.OpNop
				i++
				continue
			case ir.OpStore:
				current[slot] = r.resolve(next.B)
				in.Op = ir.OpNop
				next.Op = ir.OpNop
				i++
				continue
			}
		}
	}

	// Record this block's contribution to each successor's phi columns.
	for _, s := range b.Succ {
		phi := r.phiOf[s]
		if phi == nil {
			continue
		}
		src := make([]ir.Vreg, len(r.phiSlots[s]))
		for i, slot := range r.phiSlots[s] {
			src[i] = current[slot]
		}
		phi.AddPred(bi, src)
	}

	for _, child := range r.tree.Children[bi] {
		childCurrent := make(map[int]ir.Vreg, len(current))
		for k, v := range current {
			childCurrent[k] = v
		}
		r.walk(child, childCurrent)
	}
}

// resolve follows the rewrite chain for v to a fixed point.
func (r *renamer) resolve(v ir.Vreg) ir.Vreg {
	for {
		nv, ok := r.rewrite[v]
		if !ok || nv == v {
			return v
		}
		v = nv
	}
}

// fixRewrites applies the accumulated rewrite map to every remaining use
// in the function, following each chain to a fixed point, per spec.md
// §4.4's "every use's vreg is fixed by following the rewrite chain."
func (r *renamer) fixRewrites() {
	if len(r.rewrite) == 0 {
		return
	}
	apply := func(v ir.Vreg) ir.Vreg { return r.resolve(v) }
	for i := range r.f.Instrs {
		in := &r.f.Instrs[i]
		switch in.Op {
		case ir.OpStore:
			in.A = apply(in.A)
			in.B = apply(in.B)
		case ir.OpLoad, ir.OpJcc, ir.OpJnc, ir.OpCallV, ir.OpCvtS, ir.OpCvtP, ir.OpRet, ir.OpArg:
			in.A = apply(in.A)
		default:
			if in.Op.IsArith() || in.Op.IsCompare() {
				in.A = apply(in.A)
				in.B = apply(in.B)
			}
		}
		if in.Op == ir.OpLabel && in.Phi != nil {
			for ci := range in.Phi.Sources {
				for ti := range in.Phi.Sources[ci] {
					in.Phi.Sources[ci][ti] = apply(in.Phi.Sources[ci][ti])
				}
			}
		}
	}
}
