package selector

import "utcc/internal/ir"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Result is the reducer's output: the chosen rule per instruction index,
// and the set of instruction indices folded into a consumer (the
// emitter skips folded producers — their text is fused into the
// consumer's own template).
type Result struct {
	Rule   []int // parallel to f.Instrs; -1 for unreachable nodes. A folded producer keeps the NTStmt rule its fold chain reduced to.
	Folded []bool
}

// Reduce fixes, for every node reachable from the function's statement
// list with NTStmt as its root goal, the rule chosen during Label,
// walking in reverse order (last instruction first), per spec.md §4.5. An
// already-reduced node (one already visited because it was folded into
// an earlier consumer) is skipped. Reduce also writes the chosen rule id
// into each ir.Instruction.Rule field, so the allocator and emitter can
// read it directly off the IR.
func Reduce(g *Grammar, af *Func, l *Labels) *Result {
	res := &Result{Rule: make([]int, len(af.Nodes)), Folded: make([]bool, len(af.Nodes))}
	for i := range res.Rule {
		res.Rule[i] = -1
	}

	var reduce func(idx int, want NonTerminal)
	reduce = func(idx int, want NonTerminal) {
		n := af.Nodes[idx]
		t := l.tables[idx]
		ri := t.rule[want]
		if ri < 0 {
			return
		}
		r := g.Rules[ri]

		if want == NTStmt {
			if res.Rule[idx] != -1 {
				return
			}
			res.Rule[idx] = ri
			af.F.Instrs[idx].Rule = ri
			af.F.Instrs[idx].TwoAddress = r.IsTwoAddress
			for ci, childNT := range r.Children {
				if ci < len(n.OperandDef) && n.OperandDef[ci] >= 0 {
					// NTAddr/NTImm children are textually fused into this
					// node's own template (the producer contributes no
					// instruction of its own); an NTReg child still emits
					// its own instruction normally and is only "free" in
					// the sense that no extra move is needed to use it.
					if childNT != NTReg {
						res.Folded[n.OperandDef[ci]] = true
					}
					reduce(n.OperandDef[ci], childNT)
				}
			}
			return
		}

		// Chain rule: recurse into the same node's NTStmt reduction (it
		// may already have happened via a different consumer).
		if r.IsChain {
			reduce(idx, NTStmt)
		}
	}

	for i := len(af.Nodes) - 1; i >= 0; i-- {
		if res.Rule[i] == -1 && !res.Folded[i] {
			reduce(i, NTStmt)
		}
	}
	// A side-effecting node that nothing reached in the reverse walk is
	// conservatively reduced here so the emitter never sees Rule==-1 for
	// code with side effects.
	for i := range af.Nodes {
		if res.Rule[i] == -1 && sideEffecting(af.F.Instrs[i].Op) {
			reduce(i, NTStmt)
		}
	}
	return res
}

func sideEffecting(op ir.Op) bool {
	switch op {
	case ir.OpStore, ir.OpCall, ir.OpCallV, ir.OpJcc, ir.OpJnc, ir.OpJmp, ir.OpLabel, ir.OpRet, ir.OpArg, ir.OpNop:
		return true
	default:
		return false
	}
}
