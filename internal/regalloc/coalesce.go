package regalloc

// coalesce performs conservative (Briggs) coalescing: two live ranges a
// and b may merge iff the number of neighbours in their union with
// degree >= K is less than K, per spec.md §4.6. It mutates st in place,
// folding b's members into a, marking the originating copy Coalesced,
// and returns the number of merges performed this pass.
func (st *state) coalesce(g *graph, k int) int {
	merged := 0
	for i := range st.copies {
		cp := &st.copies[i]
		if cp.Kind != CopyTwoAddress && cp.Kind != CopyPhi {
			continue
		}
		if cp.From == -1 || cp.To == -1 {
			continue
		}
		aId, aOk := st.vregRange[cp.From]
		bId, bOk := st.vregRange[cp.To]
		if !aOk || !bOk || aId == bId {
			continue
		}
		if g.interferes(aId, bId) {
			continue
		}
		if briggsSafe(g, aId, bId, k) {
			st.mergeRanges(g, aId, bId)
			cp.Coalesced = true
			merged++
		}
	}
	return merged
}

// briggsSafe implements the Briggs conservative-coalescing safety test:
// the union of a and b's neighbours, counted once each, must have fewer
// than k members of degree >= k (those nodes are guaranteed colourable
// regardless of whether a and b merge).
func briggsSafe(g *graph, a, b LiveRangeId, k int) bool {
	seen := map[LiveRangeId]bool{}
	highDegree := 0
	count := func(id LiveRangeId) {
		for _, n := range g.neighbours(id) {
			if n == a || n == b || seen[n] {
				continue
			}
			seen[n] = true
			if g.degree(n) >= k {
				highDegree++
			}
		}
	}
	count(a)
	count(b)
	return highDegree < k
}

// mergeRanges unions b's members and interference edges into a, then
// retargets every vreg->range mapping and copy endpoint pointing at b.
func (st *state) mergeRanges(g *graph, a, b LiveRangeId) {
	lrA, lrB := st.ranges[a], st.ranges[b]
	for v := range lrB.Members {
		lrA.Members[v] = true
		st.vregRange[v] = a
	}
	lrA.SpillCost += lrB.SpillCost
	if lrB.Precolor >= 0 {
		lrA.Precolor = lrB.Precolor
	}
	lrA.Class = lrA.Class.Intersect(lrB.Class)

	for _, n := range g.neighbours(b) {
		if n != a {
			g.add(a, n)
		}
	}
	delete(g.adj, b)
	for _, m := range g.adj {
		delete(m, b)
	}
}
