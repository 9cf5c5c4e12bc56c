package regalloc

import (
	"utcc/internal/cfg"
	"utcc/internal/ir"
)

// blockVregSets holds the upward-exposed-use and kill sets of one block,
// restricted to ordinary vregs (not physical registers).
type blockVregSets struct {
	used map[ir.Vreg]bool
	def  map[ir.Vreg]bool
}

// computeLiveness returns per-block live-in sets of vregs, computed by a
// backward dataflow over used/def sets that revisits the blocks in
// descending index order until no set changes (the backward variant of
// spec.md §9's two acceptable live-in analyses). Phi targets are treated as defined at the top
// of their block; phi sources are treated as used at the bottom of each
// predecessor block (not mid-block), matching how CopyPhi moves are
// scheduled during renumber.
func computeLiveness(c *cfg.CFG) []map[ir.Vreg]bool {
	n := len(c.Blocks)
	sets := make([]blockVregSets, n)
	for bi, b := range c.Blocks {
		sets[bi] = blockVregSets{used: map[ir.Vreg]bool{}, def: map[ir.Vreg]bool{}}
		for _, in := range c.Instructions(b) {
			for _, u := range in.Uses() {
				if !sets[bi].def[u] {
					sets[bi].used[u] = true
				}
			}
			if r, ok := in.Defines(); ok {
				sets[bi].def[r] = true
			}
			if in.Op == ir.OpLabel && in.Phi != nil {
				for _, t := range in.Phi.Targets {
					sets[bi].def[t] = true
				}
			}
		}
	}
	// Phi sources are upward-exposed uses of the predecessor block that
	// supplies them, even though textually they live in the successor.
	for _, b := range c.Blocks {
		instrs := c.Instructions(b)
		if len(instrs) == 0 || instrs[0].Op != ir.OpLabel || instrs[0].Phi == nil {
			continue
		}
		phi := instrs[0].Phi
		for pi, pred := range phi.Preds {
			for _, v := range phi.Sources[pi] {
				if !sets[pred].def[v] {
					sets[pred].used[v] = true
				}
			}
		}
	}

	liveIn := make([]map[ir.Vreg]bool, n)
	for i := range liveIn {
		liveIn[i] = map[ir.Vreg]bool{}
	}
	changed := true
	for changed {
		changed = false
		for bi := n - 1; bi >= 0; bi-- {
			out := map[ir.Vreg]bool{}
			for _, s := range c.Blocks[bi].Succ {
				for v := range liveIn[s] {
					out[v] = true
				}
			}
			in := map[ir.Vreg]bool{}
			for v := range sets[bi].used {
				in[v] = true
			}
			for v := range out {
				if !sets[bi].def[v] {
					in[v] = true
				}
			}
			if len(in) != len(liveIn[bi]) {
				changed = true
				liveIn[bi] = in
				continue
			}
			for v := range in {
				if !liveIn[bi][v] {
					changed = true
					break
				}
			}
			liveIn[bi] = in
		}
	}
	return liveIn
}

// loopDepth returns, per block, the number of enclosing natural loops
// detected via back edges (an edge b -> h where h dominates b), used to
// weight spill cost by 10^depth per spec.md §4.6.
func loopDepth(c *cfg.CFG, dominates func(a, b int) bool) []int {
	depth := make([]int, len(c.Blocks))
	for _, b := range c.Blocks {
		for _, s := range b.Succ {
			if dominates(s, b.Index) {
				// Back edge b.Index -> s (s is the loop header). Mark
				// every block in the natural loop: everything that can
				// reach b.Index via predecessors without passing
				// through s, plus s itself.
				header := s
				inLoop := map[int]bool{header: true, b.Index: true}
				work := []int{b.Index}
				for len(work) > 0 {
					cur := work[len(work)-1]
					work = work[:len(work)-1]
					for _, p := range c.Blocks[cur].Pred {
						if !inLoop[p] {
							inLoop[p] = true
							work = append(work, p)
						}
					}
				}
				for bi := range inLoop {
					depth[bi]++
				}
			}
		}
	}
	return depth
}
