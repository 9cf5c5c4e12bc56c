package mem2reg

import "utcc/internal/cfg"

// liveIn computes, for each block, the set of promotable slots live on
// entry, via backward worklist iteration over gen/used sets restricted
// to promotable slots, per spec.md §4.4(a).
//
// events supplies, per block, the ordered list of (slot, isStore) events
// in program order, built by mem2reg.go's collectEvents, which scans
// each block's LocalAddr/Load/Store opcodes for promotable slots.
func liveIn(c *cfg.CFG, events [][]slotEvent) [][]bool {
	n := len(c.Blocks)
	gen := make([]map[int]bool, n)
	kill := make([]map[int]bool, n)
	for bi := range c.Blocks {
		gen[bi] = map[int]bool{}
		kill[bi] = map[int]bool{}
		for _, e := range events[bi] {
			if e.isStore {
				if !gen[bi][e.slot] {
					kill[bi][e.slot] = true
				}
			} else {
				if !kill[bi][e.slot] {
					gen[bi][e.slot] = true
				}
			}
		}
	}

	liveInSet := make([]map[int]bool, n)
	liveOutSet := make([]map[int]bool, n)
	for i := range liveInSet {
		liveInSet[i] = map[int]bool{}
		liveOutSet[i] = map[int]bool{}
	}

	changed := true
	for changed {
		changed = false
		for bi := n - 1; bi >= 0; bi-- {
			b := c.Blocks[bi]
			out := map[int]bool{}
			for _, s := range b.Succ {
				for slot := range liveInSet[s] {
					out[slot] = true
				}
			}
			in := map[int]bool{}
			for slot := range gen[bi] {
				in[slot] = true
			}
			for slot := range out {
				if !kill[bi][slot] {
					in[slot] = true
				}
			}
			if !equalSet(in, liveInSet[bi]) {
				liveInSet[bi] = in
				changed = true
			}
			liveOutSet[bi] = out
		}
	}

	res := make([]map[int]bool, n)
	copy(res, liveInSet)
	out := make([][]bool, n)
	maxSlot := 0
	for _, m := range res {
		for s := range m {
			if s+1 > maxSlot {
				maxSlot = s + 1
			}
		}
	}
	for bi := range out {
		out[bi] = make([]bool, maxSlot)
		for s := range res[bi] {
			out[bi][s] = true
		}
	}
	return out
}

// slotEvent is one upward-exposed-use/kill event in program order within
// a block.
type slotEvent struct {
	slot    int
	isStore bool
}

func equalSet(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
