package regalloc

import (
	"math"

	"utcc/internal/dom"
	"utcc/internal/ir"
	"utcc/internal/regfile"
)

// graph is the symmetric interference adjacency over live ranges, kept as
// a map during Build (spec.md §3 calls for a triangular bit matrix here;
// a map is the Go-idiomatic equivalent for a live-range count that is not
// known in advance at this stage) and converted to adjacency slices
// before Simplify.
type graph struct {
	adj map[LiveRangeId]map[LiveRangeId]bool
}

func newGraph() *graph { return &graph{adj: map[LiveRangeId]map[LiveRangeId]bool{}} }

func (g *graph) add(a, b LiveRangeId) {
	if a == b {
		return
	}
	if g.adj[a] == nil {
		g.adj[a] = map[LiveRangeId]bool{}
	}
	if g.adj[b] == nil {
		g.adj[b] = map[LiveRangeId]bool{}
	}
	g.adj[a][b] = true
	g.adj[b][a] = true
}

func (g *graph) interferes(a, b LiveRangeId) bool { return g.adj[a][b] }

func (g *graph) degree(a LiveRangeId) int { return len(g.adj[a]) }

func (g *graph) neighbours(a LiveRangeId) []LiveRangeId {
	out := make([]LiveRangeId, 0, len(g.adj[a]))
	for n := range g.adj[a] {
		out = append(out, n)
	}
	return out
}

// build implements spec.md §4.6's Build phase: pre-coloured nodes start
// mutually interfering with degree K-1 (every physical register
// interferes with every other), then each block is scanned backward,
// from its last instruction to its first, with a live set that starts as
// the block's live-out set, adding interference edges at each definition
// and accumulating spill cost weighted by 10^loopDepth. The scan does not
// run forward from the block's live-in set.
func (st *state) build() *graph {
	g := newGraph()

	// Pre-coloured registers mutually interfere.
	var physIds []LiveRangeId
	for _, id := range st.physRange {
		physIds = append(physIds, id)
	}
	for i, a := range physIds {
		for _, b := range physIds[i+1:] {
			g.add(a, b)
		}
	}

	liveInSets := computeLiveness(st.c)
	var depths []int
	if tree, err := dom.Build(st.c); err == nil {
		depths = loopDepth(st.c, tree.Dominates)
	} else {
		depths = make([]int, len(st.c.Blocks))
	}

	for bi, b := range st.c.Blocks {
		// Live-out: the successors' live-in sets plus the phi sources this
		// block supplies to its successors' phi columns.
		live := map[ir.Vreg]bool{}
		for _, s := range b.Succ {
			for v := range liveInSets[s] {
				live[v] = true
			}
			if head := st.c.Instructions(st.c.Blocks[s]); len(head) > 0 && head[0].Phi != nil {
				for pi, pred := range head[0].Phi.Preds {
					if pred == bi {
						for _, v := range head[0].Phi.Sources[pi] {
							live[v] = true
						}
					}
				}
			}
		}
		weight := math.Pow(10, float64(depths[bi]))

		instrs := st.c.Instructions(b)
		for ii := len(instrs) - 1; ii >= 0; ii-- {
			in := instrs[ii]

			if r, ok := in.Defines(); ok {
				rid := st.vregRange[r]
				// Every vreg still in live survives past in and must
				// interfere with r. A two-address/phi copy's source only
				// avoids this edge by dying here, which means it is not
				// yet a member of live (its own use is folded in below,
				// after this def). coalesce() reads interference off this
				// graph to decide whether a copy is actually safe to merge.
				for v := range live {
					if v == r {
						continue
					}
					g.add(rid, st.vregRange[v])
				}
				if in.TwoAddress {
					// The TwoAddressMove is emitted before in, writing r's
					// register before in reads its other operands.
					for _, u := range in.Uses() {
						if u != in.A && u != r {
							g.add(rid, st.vregRange[u])
						}
					}
				}
				st.ranges[rid].SpillCost += weight
				delete(live, r)
			}

			if in.Op == ir.OpDiv {
				// Signed division clobbers rdx; every live vreg at this
				// point must avoid colliding with it.
				rdxId := st.physRange[regfile.RDX]
				for v := range live {
					g.add(rdxId, st.vregRange[v])
				}
			}
			if in.Op == ir.OpCall || in.Op == ir.OpCallV {
				for _, rid := range callerSavedIds(st) {
					for v := range live {
						g.add(rid, st.vregRange[v])
					}
				}
			}

			for _, u := range in.Uses() {
				rid := st.vregRange[u]
				st.ranges[rid].SpillCost += weight
				live[u] = true
			}
		}
	}
	return g
}

func callerSavedIds(st *state) []LiveRangeId {
	var out []LiveRangeId
	for _, id := range st.rf.CallerSaved.Members() {
		out = append(out, st.physRange[id])
	}
	return out
}
