// Package mem2reg promotes escape-safe stack slots to virtual registers,
// inserting phi nodes at the iterated dominance frontier of each
// promoted slot's definition set and renaming by a dominator-tree walk,
// per spec.md §4.4. There is no direct precedent in vslc (its LIR is
// already SSA-by-construction via builder calls, never address-taken
// locals); the escape analysis and renaming here follow the classical
// Cytron-et-al. shape the dom package's Tree is built to support.
package mem2reg

import (
	"utcc/internal/ir"
)

// ----------------------------
// ----- Functions -----------
// ----------------------------

// promotable returns the set of local slot indices of f that satisfy
// spec.md §4.4's three escape-safety rules: (1) scalar element type and
// count exactly one; (2) not a by-stack argument (by construction, slots
// only ever name true locals in this IR — stack arguments are never
// given a slot); (3) every LocalAddr naming the slot is used exactly
// once, by an immediately following Load or Store whose address operand
// is that LocalAddr (and, for Store, whose value operand is not the
// address itself).
func promotable(f *ir.Function) map[int]bool {
	ok := make(map[int]bool, len(f.Locals))
	for i, l := range f.Locals {
		ok[i] = l.Count == 1 && (l.Size.IsInteger() || l.Size.Kind == ir.SizePtr)
	}

	// addrSlot maps each LocalAddr result to the slot it names;
	// pairedUse marks the ones immediately followed by their Load/Store.
	// Any other use of an address is caught by the scan below.
	addrSlot := map[ir.Vreg]int{}
	pairedUse := map[ir.Vreg]bool{}

	for i, in := range f.Instrs {
		if in.Op == ir.OpLocalAddr {
			addrSlot[in.Result] = in.Slot
			if i+1 >= len(f.Instrs) {
				ok[in.Slot] = false
				continue
			}
			next := f.Instrs[i+1]
			switch {
			case next.Op == ir.OpLoad && next.A == in.Result:
				pairedUse[in.Result] = true
			case next.Op == ir.OpStore && next.A == in.Result && next.B != in.Result:
				pairedUse[in.Result] = true
			default:
				ok[in.Slot] = false
			}
		}
	}

	for _, in := range f.Instrs {
		for _, u := range allOperands(in) {
			if slot, isAddr := addrSlot[u]; isAddr {
				// A reference to an address vreg that isn't the one
				// immediate paired use is an escape.
				if !isImmediatePair(f, u, in) {
					ok[slot] = false
				}
			}
		}
	}
	_ = pairedUse
	var out = map[int]bool{}
	for slot, p := range ok {
		if p {
			out[slot] = true
		}
	}
	return out
}

// allOperands returns every vreg operand read by in. It is exactly
// in.Uses() (which already covers Store's address operand), kept as a
// separate name for the escape scan.
func allOperands(in ir.Instruction) []ir.Vreg {
	return in.Uses()
}

// isImmediatePair reports whether candidate use `in` of address vreg r
// is exactly the Load/Store instruction immediately following r's
// defining LocalAddr.
func isImmediatePair(f *ir.Function, r ir.Vreg, in ir.Instruction) bool {
	for i, cand := range f.Instrs {
		if cand.Op == ir.OpLocalAddr && cand.Result == r {
			if i+1 < len(f.Instrs) {
				next := &f.Instrs[i+1]
				return next.Op == in.Op && next.A == in.A && next.B == in.B && next.Label == in.Label
			}
		}
	}
	return false
}
