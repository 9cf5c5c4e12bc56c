package regalloc

import "utcc/internal/util"

// selectColors implements spec.md §4.6's Select phase: pop the stack
// built by simplify, and for each range assign the lowest-numbered
// register in its allowed class not already taken by a neighbour that
// has been coloured. A range left without an available colour is an
// actual spill and is reported back for spill-code insertion.
func (st *state) selectColors(g *graph, stack *util.Stack) (spilled []LiveRangeId) {
	for stack.Size() > 0 {
		id := stack.Pop().(LiveRangeId)
		lr := st.ranges[id]
		if lr.Color >= 0 {
			continue // precoloured physical-register range.
		}

		used := map[int]bool{}
		for _, n := range g.neighbours(id) {
			if c := st.ranges[n].Color; c >= 0 {
				used[c] = true
			}
		}

		chosen := -1
		for _, r := range lr.Class.Members() {
			if !used[r] {
				chosen = r
				break
			}
		}
		if chosen == -1 {
			lr.Spilled = true
			spilled = append(spilled, id)
			continue
		}
		lr.Color = chosen
	}
	return spilled
}
