// Package regalloc implements the Chaitin-Briggs family register
// allocator of spec.md §4.6 (renumber, build, conservative coalesce,
// spill-cost-driven simplify, optimistic select, spill-code insertion and
// iteration, write-back) and the trivial reference allocator of §4.7.
//
// Grounded on vslc's backend/lir/regalloc.go (the same renumber-then-
// colour shape: a node wrapping a Value with neighbours, a stack-based
// simplify/select loop) generalised from vslc's single-pass, no-spill,
// no-coalescing allocator to the full Briggs pipeline spec.md §4.6
// requires, and on original_source's briggs/{build,coalesce,simplify,
// select,renumber,write_back}.rs for the phase split and the four copy
// kinds (ArgumentCopy/PhiCopy/TwoAddress/TargetBefore/TargetAfter).
package regalloc

import (
	"utcc/internal/ir"
	"utcc/internal/regfile"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// LiveRangeId indexes into state.ranges.
type LiveRangeId int

// LiveRange is a set of vregs merged by coalescing, plus an accumulated
// spill cost and an optional precolor pinning it to a physical register
// (spec.md §3).
type LiveRange struct {
	Id       LiveRangeId
	Members  map[ir.Vreg]bool
	Class    regfile.Class // permitted physical registers; starts as every allocatable register.
	SpillCost float64
	Precolor int // -1 if none; every physical register's own range precolors to itself.
	Color    int // -1 until Select runs; -1 again if Select could not colour it (spill).
	Spilled  bool
	Slot     int // frame spill-slot index, valid when Spilled.
}

// CopyKind discriminates the four structural-move shapes the renumber
// phase records, per spec.md §4.6.
type CopyKind int

const (
	CopyArgument CopyKind = iota // ArgumentCopy{reg, vreg}: block 0, physical arg reg -> arg's vreg.
	CopyPhi                      // PhiCopy{from, to}: end of predecessor, source vreg -> phi target.
	CopyTwoAddress                // TwoAddress{from, to}: first operand -> result, at a two-address instruction.
	CopyTargetBefore              // TargetBefore{vreg, reg}: vreg pinned into a fixed physical register before use.
	CopyTargetAfter                // TargetAfter{reg, vreg}: fixed physical register's result pinned into vreg after def.
)

// Copy is one structural move the allocator may eliminate by coalescing
// its two live ranges together.
type Copy struct {
	Kind        CopyKind
	Block       int // block id the copy is conceptually emitted in (predecessor for CopyPhi).
	InstrIndex  int // instruction the copy is attached to (its position for ordering during write-back).
	From, To    ir.Vreg
	Reg         int // physical register id, for CopyArgument/CopyTargetBefore/CopyTargetAfter.
	Coalesced   bool
}

// RelocKind discriminates the emitter-facing relocation shapes of
// spec.md §3.
type RelocKind int

const (
	RelocMove RelocKind = iota
	RelocMoveAfter
	RelocTwoAddressMove
	RelocSpill
	RelocSpillEarly
	RelocReload
	RelocMemMove
)

// Relocation is one register-file edit the emitter renders literally,
// attached to the instruction it logically belongs next to.
type Relocation struct {
	Kind   RelocKind
	Size   ir.Size
	From   int // register id, or -1 if the source is a spill slot (see Slot).
	To     int // register id, or -1 if the destination is a spill slot.
	Slot   int // spill-slot index, meaningful for Spill/SpillEarly/Reload/MemMove.
	Slot2  int // second spill slot, for MemMove.
	Scratch int // scratch register id, for MemMove.
	After  bool // true: emitted after the owning instruction (Spill, MoveAfter).
}

// Interval is one [Start,End) instruction-index range during which a
// vreg holds a given physical register, or -1 ("none") if spilled for
// that range.
type Interval struct {
	Start, End int
	Reg        int
}

// AllocationRecord is the per-vreg output of write-back: a sequence of
// non-overlapping one-instruction intervals, one at each instruction that
// reads or writes the vreg. The stretches of the live range between
// those instructions are not recorded.
type AllocationRecord struct {
	Vreg      ir.Vreg
	Intervals []Interval
}

// Insert splits any existing interval overlapping [start,end) into
// before/during/after pieces and inserts reg for [start,end), per
// spec.md §3's invariant that insertion must never overwrite.
func (a *AllocationRecord) Insert(start, end, reg int) {
	var out []Interval
	inserted := false
	for _, iv := range a.Intervals {
		switch {
		case iv.End <= start || iv.Start >= end:
			out = append(out, iv)
		default:
			if iv.Start < start {
				out = append(out, Interval{Start: iv.Start, End: start, Reg: iv.Reg})
			}
			if !inserted {
				out = append(out, Interval{Start: start, End: end, Reg: reg})
				inserted = true
			}
			if iv.End > end {
				out = append(out, Interval{Start: end, End: iv.End, Reg: iv.Reg})
			}
		}
	}
	if !inserted {
		out = append(out, Interval{Start: start, End: end, Reg: reg})
	}
	a.Intervals = out
}

// Result is the whole allocator's output for one function: the
// per-vreg allocation records, the per-instruction relocation lists and
// the number of spill slots added to the frame.
type Result struct {
	Records      map[ir.Vreg]*AllocationRecord
	Relocations  map[int][]Relocation // instruction index -> relocations.
	SpillSlots   int
}
