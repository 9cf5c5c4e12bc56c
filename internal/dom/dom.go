// Package dom computes the dominator tree, dominance frontier and
// iterated dominance frontier of a CFG using the Cooper-Harvey-Kennedy
// fixed-point algorithm, per spec.md §4.2. There is no teacher precedent
// for this pass in vslc (it never builds a dominator tree); the shape
// here follows the CFG/Block index-into-owning-vector convention laid
// down by internal/cfg and design note §9 ("Graphs with back-references
// ... model every node as an index into an owning vector").
package dom

import (
	"fmt"

	"utcc/internal/cfg"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Tree holds, indexed by CFG block id, the immediate dominator, the
// dominator tree's children (the inverse of Idom) and the dominance
// frontier. The iterated dominance frontier is not stored; Tree.IDF
// computes it on demand.
type Tree struct {
	Idom     []int   // Idom[b] is b's immediate dominator block id; Idom[0] == 0.
	Children [][]int // Children[b] lists blocks whose immediate dominator is b.
	DF       [][]int // Dominance frontier of each block.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Build computes Tree for c. It fails only if c is malformed: some block
// other than 0 is unreachable from 0. Callers must run
// cfg.EliminateDeadBlocks first, per spec.md §4.2's failure model.
func Build(c *cfg.CFG) (*Tree, error) {
	rpo := c.ReversePostOrder()
	if len(rpo) != len(c.Blocks) {
		return nil, fmt.Errorf("dom: %d of %d blocks are unreachable from block 0; run dead-block elimination first",
			len(c.Blocks)-len(rpo), len(c.Blocks))
	}

	// rpoIndex[b] is b's position in reverse-post order; comparisons
	// during the fixed-point iteration are done in this space so "less
	// than" means "earlier in reverse post order", per spec.md §4.2.
	rpoIndex := make([]int, len(c.Blocks))
	for i, b := range rpo {
		rpoIndex[b] = i
	}

	idom := make([]int, len(c.Blocks))
	for i := range idom {
		idom[i] = -1
	}
	idom[0] = 0

	intersect := func(a, b int) int {
		for a != b {
			for rpoIndex[a] > rpoIndex[b] {
				a = idom[a]
			}
			for rpoIndex[b] > rpoIndex[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, bi := range rpo {
			if bi == 0 {
				continue
			}
			var newIdom = -1
			for _, p := range c.Blocks[bi].Pred {
				if idom[p] == -1 {
					continue
				}
				if newIdom == -1 {
					newIdom = p
				} else {
					newIdom = intersect(newIdom, p)
				}
			}
			if newIdom == -1 {
				return nil, fmt.Errorf("dom: block %d is unreachable from block 0", bi)
			}
			if idom[bi] != newIdom {
				idom[bi] = newIdom
				changed = true
			}
		}
	}

	t := &Tree{
		Idom:     idom,
		Children: make([][]int, len(c.Blocks)),
		DF:       make([][]int, len(c.Blocks)),
	}
	for b := 1; b < len(c.Blocks); b++ {
		t.Children[idom[b]] = append(t.Children[idom[b]], b)
	}

	// Dominance frontier: standard Cytron et al. computation. For each
	// block b with >=2 predecessors, walk up from each predecessor to
	// (but not including) idom[b], adding b to each visited block's DF.
	for _, b := range c.Blocks {
		if len(b.Pred) < 2 {
			continue
		}
		for _, p := range b.Pred {
			runner := p
			for runner != idom[b.Index] {
				t.DF[runner] = appendUnique(t.DF[runner], b.Index)
				runner = idom[runner]
			}
		}
	}
	return t, nil
}

// Dominates reports whether a dominates b (every path from block 0 to b
// passes through a), including the reflexive case a == b.
func (t *Tree) Dominates(a, b int) bool {
	for {
		if a == b {
			return true
		}
		if b == 0 {
			return false
		}
		b = t.Idom[b]
	}
}

// IDF returns the iterated dominance frontier of the block set s: the
// least fixed point of DF extended to s ∪ DF(result), per spec.md §4.2.
func (t *Tree) IDF(s []int) []int {
	seen := map[int]bool{}
	var result []int
	work := append([]int(nil), s...)
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range t.DF[b] {
			if !seen[f] {
				seen[f] = true
				result = append(result, f)
				work = append(work, f)
			}
		}
	}
	return result
}

func appendUnique(s []int, v int) []int {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
