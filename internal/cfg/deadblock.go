package cfg

import "utcc/internal/ir"

// EliminateDeadBlocks iteratively removes blocks with no predecessors
// (except block 0), per spec.md §4.3, then renumbers the remaining blocks
// densely and rewrites every label reference (branch targets and phi
// predecessor columns) through the renumber map. It returns a fresh CFG
// built over the rewritten instruction stream.
//
// The dead-block work list starts from every block (other than 0) with no
// predecessors; removing a block may empty a successor's predecessor
// list, which enqueues that successor in turn.
func EliminateDeadBlocks(c *CFG) (*CFG, error) {
	alive := make([]bool, len(c.Blocks))
	for i := range alive {
		alive[i] = true
	}

	var worklist []int
	for _, b := range c.Blocks {
		if b.Index != 0 && len(b.Pred) == 0 {
			worklist = append(worklist, b.Index)
		}
	}

	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if !alive[n] {
			continue
		}
		alive[n] = false
		for _, s := range c.Blocks[n].Succ {
			if !alive[s] {
				continue
			}
			sb := c.Blocks[s]
			kept := sb.Pred[:0]
			for _, p := range sb.Pred {
				if p != n {
					kept = append(kept, p)
				}
			}
			sb.Pred = kept
			if len(sb.Pred) == 0 && s != 0 {
				worklist = append(worklist, s)
			}
		}
	}

	renumber := map[int]int{}
	next := 0
	for _, b := range c.Blocks {
		if alive[b.Index] {
			renumber[b.Index] = next
			next++
		}
	}

	f := c.Func
	var out []ir.Instruction
	for _, b := range c.Blocks {
		if !alive[b.Index] {
			continue
		}
		for _, in := range f.Instrs[b.Start:b.End] {
			switch in.Op {
			case ir.OpLabel:
				in.Label = renumber[in.Label]
				if in.Phi != nil {
					keptPreds := in.Phi.Preds[:0]
					keptSrc := in.Phi.Sources[:0]
					for i, p := range in.Phi.Preds {
						if nl, ok := renumber[p]; ok {
							keptPreds = append(keptPreds, nl)
							keptSrc = append(keptSrc, in.Phi.Sources[i])
						}
					}
					in.Phi.Preds = keptPreds
					in.Phi.Sources = keptSrc
				}
			case ir.OpJmp, ir.OpJcc, ir.OpJnc:
				in.Label = renumber[in.Label]
			}
			out = append(out, in)
		}
	}
	f.Instrs = out

	return Build(f)
}
