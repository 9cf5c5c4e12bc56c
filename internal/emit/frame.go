package emit

import (
	"strconv"

	"utcc/internal/ir"
	"utcc/internal/regalloc"
	"utcc/internal/regfile"
)

// stackAlign is the x86-64 SysV/consensus alignment requirement: rsp
// must be 16-byte aligned immediately before a call instruction.
const stackAlign = 16

// Frame describes one function's final stack layout, resolved once the
// allocator (Briggs or the simple reference allocator, both of which may
// have appended spill slots to f.Locals) has finished, per spec.md
// §4.8: "the allocator's final stack size ... is resolved and every
// slot offset is shifted by the newly-added spill-area size." Locals
// are laid out in declaration order, so a spill slot appended after
// allocation naturally lands below every pre-existing local.
type Frame struct {
	SlotOffset  []int // byte offset from rbp (negative) per f.Locals index.
	LocalsBytes int
	CalleeSaved []int // physical register ids, in push order.
	TotalSize   int   // bytes subtracted from rsp in the prologue.
}

// planFrame computes a function's frame layout. Grounded on vslc's
// backend/arm/function.go genFunction, which computes a single stack
// adjustment from param/local counts and rounds up to stackAlign;
// generalised here to per-local variable sizes and an explicit
// callee-saved push list driven by which registers the allocator
// actually assigned.
func planFrame(rf *regfile.File, f *ir.Function, alloc *regalloc.Result) *Frame {
	fr := &Frame{SlotOffset: make([]int, len(f.Locals))}

	offset := 0
	for i, loc := range f.Locals {
		n := loc.Count
		if n < 1 {
			n = 1
		}
		offset += loc.Size.Bytes() * n
		fr.SlotOffset[i] = -offset
	}
	fr.LocalsBytes = offset

	used := map[int]bool{}
	for _, rec := range alloc.Records {
		for _, iv := range rec.Intervals {
			if iv.Reg >= 0 {
				used[iv.Reg] = true
			}
		}
	}
	for _, relocs := range alloc.Relocations {
		for _, r := range relocs {
			if r.From >= 0 {
				used[r.From] = true
			}
			if r.To >= 0 {
				used[r.To] = true
			}
		}
	}
	for _, id := range rf.CalleeSaved.Members() {
		if used[id] {
			fr.CalleeSaved = append(fr.CalleeSaved, id)
		}
	}

	pushed := len(fr.CalleeSaved) * 8
	total := offset
	pad := (stackAlign - (total+pushed)%stackAlign) % stackAlign
	fr.TotalSize = total + pad
	return fr
}

// SlotAddr renders the rbp-relative addressing text (no brackets) for
// local slot.
func (fr *Frame) SlotAddr(slot int) string {
	off := fr.SlotOffset[slot]
	if off >= 0 {
		return "+" + strconv.Itoa(off)
	}
	return strconv.Itoa(off)
}
