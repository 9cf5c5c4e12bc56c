package regalloc

import "utcc/internal/util"

// simplify implements spec.md §4.6's Simplify phase over a snapshot of
// the interference graph: repeatedly push a degree < k node onto a
// stack, decrementing its neighbours' degrees (tracked here via a working
// adjacency copy and an "enabled" set, not by mutating g), until only
// degree >= k nodes remain, at which point the node with the lowest
// spill_cost/degree is forced onto the stack (optimistic colouring).
// Precoloured physical-register ranges are never pushed — Select assigns
// them their own colour directly.
func (st *state) simplify(g *graph, k int) *util.Stack {
	stack := &util.Stack{}
	enabled := map[LiveRangeId]bool{}
	for id := range g.adj {
		enabled[id] = true
	}
	for _, lr := range st.ranges {
		if lr.Precolor >= 0 {
			enabled[lr.Id] = false
		} else if _, ok := g.adj[lr.Id]; !ok && len(lr.Members) > 0 {
			// A live range with no recorded interference still needs a
			// colour; treat it as present with degree 0.
			enabled[lr.Id] = true
		}
	}

	curDegree := func(id LiveRangeId) int {
		d := 0
		for _, n := range g.neighbours(id) {
			if enabled[n] {
				d++
			}
		}
		return d
	}

	remaining := map[LiveRangeId]bool{}
	for id, en := range enabled {
		if en {
			remaining[id] = true
		}
	}

	for len(remaining) > 0 {
		pushed := false
		for id := range remaining {
			if st.ranges[id].Precolor >= 0 {
				delete(remaining, id)
				continue
			}
			if curDegree(id) < k {
				stack.Push(id)
				delete(remaining, id)
				enabled[id] = false
				pushed = true
			}
		}
		if pushed || len(remaining) == 0 {
			continue
		}

		// No low-degree node remains: optimistically spill the node
		// with the lowest spill_cost/degree.
		var worst LiveRangeId
		worstScore := -1.0
		first := true
		for id := range remaining {
			d := curDegree(id)
			if d == 0 {
				d = 1
			}
			score := st.ranges[id].SpillCost / float64(d)
			if first || score < worstScore {
				worstScore = score
				worst = id
				first = false
			}
		}
		stack.Push(worst)
		delete(remaining, worst)
		enabled[worst] = false
	}
	return stack
}
