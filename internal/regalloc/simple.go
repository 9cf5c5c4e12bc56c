package regalloc

import (
	"utcc/internal/cfg"
	"utcc/internal/ir"
	"utcc/internal/regfile"
)

// SimpleAllocate implements spec.md §4.7's reference allocator: every
// vreg gets its own dedicated frame slot and never otherwise occupies a
// register. A use reloads its vreg into a scratch register drawn from
// the instruction's operand class immediately beforehand; a definition
// spills its result immediately afterward. Structural copies from
// Renumber (arguments, phi, two-address, ABI-fixed targets) all
// resolve to MemMoves, since every endpoint lives in memory. This
// allocator exists to validate the IR and emitter independently of the
// optimising Briggs pipeline, so it never coalesces, colours or
// spill-cost-weighs anything — it is deliberately slow and always
// correct.
func SimpleAllocate(rf *regfile.File, f *ir.Function) (*Result, error) {
	c, err := cfg.Build(f)
	if err != nil {
		return nil, err
	}
	c, err = cfg.EliminateDeadBlocks(c)
	if err != nil {
		return nil, err
	}
	st := renumber(rf, f, c)

	slot := map[ir.Vreg]int{}
	slotOf := func(v ir.Vreg) int {
		if s, ok := slot[v]; ok {
			return s
		}
		s := f.AddLocal(sizeOfVreg(f, v), 1, "simple")
		slot[v] = s
		return s
	}

	res := &Result{Records: map[ir.Vreg]*AllocationRecord{}, Relocations: map[int][]Relocation{}}
	recordOf := func(v ir.Vreg) *AllocationRecord {
		if r, ok := res.Records[v]; ok {
			return r
		}
		r := &AllocationRecord{Vreg: v}
		res.Records[v] = r
		return r
	}

	scratch := rf.All.Members()
	pick := func(avoid map[int]bool, i int) int {
		for _, cand := range scratch {
			if !avoid[cand] {
				return cand
			}
		}
		return scratch[i%len(scratch)]
	}

	for bi, b := range st.c.Blocks {
		instrs := st.c.Instructions(b)
		for ii, in := range instrs {
			idx := b.Start + ii
			var relocs []Relocation
			used := map[int]bool{}

			for oi, u := range in.Uses() {
				reg := pick(used, oi)
				used[reg] = true
				s := slotOf(u)
				relocs = append(relocs, Relocation{Kind: RelocReload, Size: in.Size, From: -1, To: reg, Slot: s})
				recordOf(u).Insert(idx, idx+1, reg)
			}
			if r, ok := in.Defines(); ok {
				reg := pick(used, len(used))
				s := slotOf(r)
				relocs = append(relocs, Relocation{Kind: RelocSpill, Size: in.Size, From: reg, To: -1, Slot: s, After: true})
				recordOf(r).Insert(idx, idx+1, reg)
			}
			if len(relocs) > 0 {
				res.Relocations[idx] = relocs
			}
		}
		_ = bi
	}

	// Structural copies: with every vreg memory-resident, each becomes a
	// MemMove (or, for an ABI-fixed endpoint, a Move touching only one
	// memory side). Scheduled after the producing instruction for
	// CopyTwoAddress/CopyTargetAfter, before it otherwise, matching the
	// "spills before moves/reloads" ordering spec.md §4.7 requires for
	// phi resolution.
	for _, cp := range st.copies {
		reloc := Relocation{Kind: RelocMemMove, From: -1, To: -1}
		if cp.From != ir.NoVreg {
			reloc.Slot = slotOf(cp.From)
		} else {
			reloc.From = cp.Reg
		}
		if cp.To != ir.NoVreg {
			reloc.Slot2 = slotOf(cp.To)
		} else {
			reloc.To = cp.Reg
		}
		reloc.After = cp.Kind == CopyTwoAddress || cp.Kind == CopyTargetAfter
		res.Relocations[cp.InstrIndex] = append(res.Relocations[cp.InstrIndex], reloc)
	}

	return res, nil
}

func sizeOfVreg(f *ir.Function, v ir.Vreg) ir.Size {
	for _, in := range f.Instrs {
		if r, ok := in.Defines(); ok && r == v {
			return in.Size
		}
	}
	return ir.S64
}
