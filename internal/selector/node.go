package selector

import "utcc/internal/ir"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Node is the labeler/reducer's view of one instruction: its index into
// the function's stream plus, for each operand, either the defining
// instruction (when it may be folded — single use, same function) or a
// leaf marker meaning "materialise this vreg before use."
type Node struct {
	Index int
	Instr *ir.Instruction

	// Operand fold candidates, parallel to ir.Instruction.Uses() order.
	// -1 means the operand is a leaf (a register must hold its value).
	OperandDef []int
}

// Children returns the operand nodes available for folding (only ones
// whose defining instruction has exactly one use elsewhere in the
// function, the BURS precondition for fusing a producer into a
// consumer's addressing mode or immediate slot without duplicating
// work).
func (n *Node) Children(f *Func) []*Node {
	out := make([]*Node, len(n.OperandDef))
	for i, idx := range n.OperandDef {
		if idx >= 0 {
			out[i] = f.Nodes[idx]
		}
	}
	return out
}

// Func wraps an ir.Function with the per-vreg definition/use-count index
// the selector needs to decide what may be folded.
type Func struct {
	F        *ir.Function
	Nodes    []*Node // one per instruction, indexed by instruction index.
	DefOf    map[ir.Vreg]int // vreg -> defining instruction index.
	UseCount map[ir.Vreg]int
}

// Analyze builds the Func view used by Label/Reduce.
func Analyze(f *ir.Function) *Func {
	af := &Func{F: f, DefOf: map[ir.Vreg]int{}, UseCount: map[ir.Vreg]int{}}
	for i := range f.Instrs {
		in := &f.Instrs[i]
		if r, ok := in.Defines(); ok {
			af.DefOf[r] = i
		}
	}
	for i := range f.Instrs {
		in := &f.Instrs[i]
		for _, u := range in.Uses() {
			af.UseCount[u]++
		}
		if in.Op == ir.OpLabel && in.Phi != nil {
			for _, col := range in.Phi.Sources {
				for _, v := range col {
					af.UseCount[v]++
				}
			}
		}
	}

	af.Nodes = make([]*Node, len(f.Instrs))
	for i := range f.Instrs {
		in := &f.Instrs[i]
		n := &Node{Index: i, Instr: in}
		for _, u := range in.Uses() {
			def, hasDef := af.DefOf[u]
			if hasDef && af.UseCount[u] == 1 {
				n.OperandDef = append(n.OperandDef, def)
			} else {
				n.OperandDef = append(n.OperandDef, -1)
			}
		}
		af.Nodes[i] = n
	}
	return af
}
