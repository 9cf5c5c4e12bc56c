package regalloc

import (
	"utcc/internal/cfg"
	"utcc/internal/ir"
	"utcc/internal/regfile"
)

// state is the mutable working state threaded through one allocation
// attempt (one Renumber..Select pass; a spill forces a fresh state).
type state struct {
	rf    *regfile.File
	f     *ir.Function
	c     *cfg.CFG
	ranges    []*LiveRange
	vregRange map[ir.Vreg]LiveRangeId // vreg -> its (possibly coalesced) live range.
	physRange [64]LiveRangeId         // physical register id -> its precoloured range.
	copies    []Copy
}

// renumber implements spec.md §4.6's Renumber phase: one live range per
// physical register (precoloured, infinite spill cost), one per
// argument/phi-target/ordinary result/target-before-after pseudo, plus
// the four kinds of structural Copy.
func renumber(rf *regfile.File, f *ir.Function, c *cfg.CFG) *state {
	st := &state{rf: rf, f: f, c: c, vregRange: map[ir.Vreg]LiveRangeId{}}

	newRange := func(precolor int) LiveRangeId {
		id := LiveRangeId(len(st.ranges))
		lr := &LiveRange{Id: id, Members: map[ir.Vreg]bool{}, Class: rf.All, Precolor: precolor, Color: -1}
		if precolor >= 0 {
			lr.SpillCost = 1e18
			lr.Color = precolor
		}
		st.ranges = append(st.ranges, lr)
		return id
	}

	for _, r := range rf.Regs {
		if !rf.All.Has(r.Id) {
			continue
		}
		id := newRange(r.Id)
		st.physRange[r.Id] = id
	}

	ensure := func(v ir.Vreg) LiveRangeId {
		if id, ok := st.vregRange[v]; ok {
			return id
		}
		id := newRange(-1)
		st.ranges[id].Members[v] = true
		st.vregRange[v] = id
		return id
	}

	// Argument copies: block 0's register-passed parameters arrive in
	// ABI argument registers.
	argIdx := 0
	for _, a := range f.Args {
		if a.Reg == ir.NoVreg {
			continue
		}
		ensure(a.Reg)
		if argIdx < len(rf.ArgOrder) {
			st.copies = append(st.copies, Copy{Kind: CopyArgument, Block: 0, From: ir.NoVreg, To: a.Reg, Reg: rf.ArgOrder[argIdx]})
		}
		argIdx++
	}

	for bi, b := range c.Blocks {
		instrs := c.Instructions(b)
		for ii, in := range instrs {
			idx := b.Start + ii
			if r, ok := in.Defines(); ok {
				ensure(r)
			}
			for _, u := range in.Uses() {
				ensure(u)
			}

			// Two-address copy: the selector's chosen rule forces the
			// result into operand A's register on the target's destructive
			// forms. Driven off in.TwoAddress (set by selector.Reduce from
			// the chosen Rule.IsTwoAddress), not off the IR Op, since which
			// forms are destructive is a target property (spec.md §4.5) —
			// the amd64 compare rules (cmp/setX) are not two-address even
			// though OpEq..OpGe are arithmetic-shaped ops.
			if in.TwoAddress && in.A != ir.NoVreg {
				if r, ok := in.Defines(); ok {
					st.copies = append(st.copies, Copy{Kind: CopyTwoAddress, Block: bi, InstrIndex: idx, From: in.A, To: r})
				}
			}

			// Target-before/after pseudos pin ABI-fixed registers around
			// calls: Arg operands feed the argument registers in order,
			// and a call's result is pinned in the return register.
			if in.Op == ir.OpArg && in.ArgPos < len(rf.ArgOrder) {
				st.copies = append(st.copies, Copy{Kind: CopyTargetBefore, Block: bi, InstrIndex: idx, From: in.A, To: ir.NoVreg, Reg: rf.ArgOrder[in.ArgPos]})
			}
			if (in.Op == ir.OpCall || in.Op == ir.OpCallV) && in.Result != ir.NoVreg {
				st.copies = append(st.copies, Copy{Kind: CopyTargetAfter, Block: bi, InstrIndex: idx, From: ir.NoVreg, Reg: rf.ReturnReg, To: in.Result})
			}
			if in.Op == ir.OpDiv {
				// Signed division clobbers rdx:rax; handled as a clobber
				// in build.go rather than a copy.
			}

			if in.Op == ir.OpLabel && in.Phi != nil {
				for _, t := range in.Phi.Targets {
					ensure(t)
				}
				for pi, pred := range in.Phi.Preds {
					predBlock := c.Blocks[pred]
					for ti, src := range in.Phi.Sources[pi] {
						st.copies = append(st.copies, Copy{
							Kind: CopyPhi, Block: pred, InstrIndex: predBlock.End - 1,
							From: src, To: in.Phi.Targets[ti],
						})
					}
				}
			}
		}
	}

	return st
}

// rangeOf returns the live range currently representing v (following
// coalescing unions).
func (st *state) rangeOf(v ir.Vreg) *LiveRange {
	return st.ranges[st.vregRange[v]]
}
