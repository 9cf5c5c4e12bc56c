// Package cfg partitions a Function's linear instruction stream into basic
// blocks at labels, computes successor/predecessor edges from each
// block's terminator and provides a reverse-post-order iterator. Grounded
// on vslc's block-owning Function.blocks shape (src/ir/lir/function.go,
// block.go) but reversed: here the CFG is a view computed over a
// Function's existing linear stream rather than the thing instructions
// are appended to, matching spec.md §3's "Control-flow graph — a vector
// of nodes; each node owns a contiguous half-open instruction range."
package cfg

import (
	"fmt"

	"utcc/internal/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Block is one basic block: a contiguous, half-open range of a Function's
// Instrs, plus its successor/predecessor edges. Block has no label field
// of its own: Build maps each Label instruction's id to the Index of the
// block it opens and resolves branch targets through that map.
type Block struct {
	Index int
	Start int // inclusive
	End   int // exclusive
	Succ  []int
	Pred  []int
}

// CFG is the control-flow graph of one Function, immutable after
// construction unless a pass explicitly rebuilds it (spec.md §3).
type CFG struct {
	Func   *ir.Function
	Blocks []*Block
}

// ---------------------
// ----- Functions -----
// ---------------------

// Build partitions f's instruction stream into basic blocks at each
// OpLabel and wires successor/predecessor edges from each block's
// terminator, per spec.md §4.1. Exactly one block is created per Label;
// the first block carries label 0 implicitly even if f.Instrs does not
// start with an explicit Label 0 (evaluator-emitted functions always
// start their body with one, but Build tolerates its absence for hand
// built test fixtures).
func Build(f *ir.Function) (*CFG, error) {
	c := &CFG{Func: f}

	starts := []int{0}
	labelAt := map[int]int{0: 0} // label id -> block index, filled as we scan.
	for i, in := range f.Instrs {
		if in.Op == ir.OpLabel {
			if i == 0 {
				labelAt[in.Label] = 0
				continue
			}
			starts = append(starts, i)
			labelAt[in.Label] = len(starts) - 1
		}
	}

	for bi, s := range starts {
		e := len(f.Instrs)
		if bi+1 < len(starts) {
			e = starts[bi+1]
		}
		c.Blocks = append(c.Blocks, &Block{Index: bi, Start: s, End: e})
	}

	for bi, b := range c.Blocks {
		if b.End == b.Start {
			continue
		}
		term := f.Instrs[b.End-1]
		fallthroughIdx := bi + 1
		switch term.Op {
		case ir.OpJmp:
			tgt, ok := labelAt[term.Label]
			if !ok {
				return nil, fmt.Errorf("cfg: jmp to undefined label%d", term.Label)
			}
			b.Succ = []int{tgt}
		case ir.OpJcc, ir.OpJnc:
			tgt, ok := labelAt[term.Label]
			if !ok {
				return nil, fmt.Errorf("cfg: branch to undefined label%d", term.Label)
			}
			b.Succ = []int{tgt}
			if fallthroughIdx < len(c.Blocks) {
				b.Succ = append(b.Succ, fallthroughIdx)
			}
		case ir.OpRet:
			// No successors.
		default:
			if fallthroughIdx < len(c.Blocks) {
				b.Succ = []int{fallthroughIdx}
			}
		}
	}
	// Last block never falls through even if unterminated.
	if n := len(c.Blocks); n > 0 {
		last := c.Blocks[n-1]
		if len(last.Succ) > 0 && last.Succ[len(last.Succ)-1] == n {
			last.Succ = last.Succ[:len(last.Succ)-1]
		}
	}

	for _, b := range c.Blocks {
		for _, s := range b.Succ {
			c.Blocks[s].Pred = append(c.Blocks[s].Pred, b.Index)
		}
	}
	return c, nil
}

// Instructions returns the slice of instructions owned by b.
func (c *CFG) Instructions(b *Block) []ir.Instruction {
	return c.Func.Instrs[b.Start:b.End]
}

// ReversePostOrder returns block indices in reverse post order from block
// 0, per spec.md §4.1: a depth-first traversal pushing a node after all
// its successors are visited, then reversing the push order.
func (c *CFG) ReversePostOrder() []int {
	visited := make([]bool, len(c.Blocks))
	var post []int
	var visit func(int)
	visit = func(n int) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, s := range c.Blocks[n].Succ {
			visit(s)
		}
		post = append(post, n)
	}
	if len(c.Blocks) > 0 {
		visit(0)
	}
	rpo := make([]int, len(post))
	for i, n := range post {
		rpo[len(post)-1-i] = n
	}
	return rpo
}
