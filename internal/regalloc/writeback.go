package regalloc

import (
	"sort"

	"utcc/internal/ir"
)

// writeBack implements spec.md §4.6's Write-back phase: it walks every
// block in program order and, for each instruction, records which
// physical register (or spill slot) each use/def of a vreg maps to as
// an Interval on that vreg's AllocationRecord, then emits the
// Relocation list the emitter consumes to place the actual moves.
//
// Spilled ranges are assigned slots in st.f.Locals space (appended past
// the function's existing locals) and degrade to RelocReload before
// every use and RelocSpill after every def.
func (st *state) writeBack() *Result {
	res := &Result{
		Records:     map[ir.Vreg]*AllocationRecord{},
		Relocations: map[int][]Relocation{},
	}

	recordOf := func(v ir.Vreg) *AllocationRecord {
		if r, ok := res.Records[v]; ok {
			return r
		}
		r := &AllocationRecord{Vreg: v}
		res.Records[v] = r
		return r
	}

	slotOf := map[LiveRangeId]int{}
	nextSlot := 0
	for _, lr := range st.ranges {
		if lr.Spilled {
			slot := st.f.AddLocal(ir.S64, 1, "spill")
			slotOf[lr.Id] = slot
			lr.Slot = slot
			nextSlot++
		}
	}
	res.SpillSlots = nextSlot

	for bi, b := range st.c.Blocks {
		instrs := st.c.Instructions(b)
		for ii, in := range instrs {
			idx := b.Start + ii
			var relocs []Relocation

			for _, u := range in.Uses() {
				lr := st.rangeOf(u)
				if lr.Spilled {
					relocs = append(relocs, Relocation{Kind: RelocReload, Size: in.Size, From: -1, Slot: lr.Slot})
				} else {
					recordOf(u).Insert(idx, idx+1, lr.Color)
				}
			}
			if r, ok := in.Defines(); ok {
				lr := st.rangeOf(r)
				if lr.Spilled {
					relocs = append(relocs, Relocation{Kind: RelocSpill, Size: in.Size, To: -1, Slot: lr.Slot, After: true})
				} else {
					recordOf(r).Insert(idx, idx+1, lr.Color)
				}
			}

			if len(relocs) > 0 {
				res.Relocations[idx] = relocs
			}
		}
		_ = bi
	}

	// Structural copies not eliminated by coalescing become moves: a
	// register-register move when both ends colour to different
	// registers, a MemMove when either end spilled.
	for _, cp := range st.copies {
		if cp.Coalesced {
			continue
		}
		var kind RelocKind
		switch cp.Kind {
		case CopyPhi:
			kind = RelocMemMove
		default:
			kind = RelocMove
		}

		fromReg, fromSlot := -1, -1
		if cp.From != ir.NoVreg {
			if lr, ok := st.vregRange[cp.From]; ok {
				if st.ranges[lr].Spilled {
					fromSlot = st.ranges[lr].Slot
				} else {
					fromReg = st.ranges[lr].Color
				}
			}
		} else {
			fromReg = cp.Reg
		}
		toReg, toSlot := -1, -1
		if cp.To != ir.NoVreg {
			if lr, ok := st.vregRange[cp.To]; ok {
				if st.ranges[lr].Spilled {
					toSlot = st.ranges[lr].Slot
				} else {
					toReg = st.ranges[lr].Color
				}
			}
		} else {
			toReg = cp.Reg
		}

		if fromSlot >= 0 || toSlot >= 0 {
			kind = RelocMemMove
		}
		if fromReg == toReg && kind != RelocMemMove {
			continue // already in place, nothing to emit.
		}

		res.Relocations[cp.InstrIndex] = append(res.Relocations[cp.InstrIndex], Relocation{
			Kind: kind, From: fromReg, To: toReg, Slot: fromSlot, Slot2: toSlot, After: cp.Kind == CopyTargetAfter,
		})
	}

	for _, r := range res.Records {
		sort.Slice(r.Intervals, func(i, j int) bool { return r.Intervals[i].Start < r.Intervals[j].Start })
	}
	return res
}
