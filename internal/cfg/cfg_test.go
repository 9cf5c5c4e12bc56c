package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utcc/internal/ir"
)

// straightLine builds label0 -> imm -> ret, a single block with no
// branches.
func straightLine() *ir.Function {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	v := f.Imm(ir.S32, 5)
	f.Ret(ir.S32, v)
	return f
}

// branchy builds an if/else: label0's Jcc is the block's own terminator
// (taken edge to label2, fallthrough edge to label1), both label1 and
// label2 jump to label3. A conditional branch must be the last
// instruction of its block for Build to see its target, since Build
// derives a block's edges from its terminator only.
func branchy() *ir.Function {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	cond := f.Imm(ir.S32, 1)
	f.Jcc(cond, 2)
	f.Label(1)
	f.Jmp(3)
	f.Label(2)
	f.Jmp(3)
	f.Label(3)
	v := f.Imm(ir.S32, 0)
	f.Ret(ir.S32, v)
	return f
}

func TestBuildStraightLine(t *testing.T) {
	c, err := Build(straightLine())
	require.NoError(t, err)
	require.Len(t, c.Blocks, 1)
	assert.Empty(t, c.Blocks[0].Succ)
	assert.Equal(t, 0, c.Blocks[0].Index)
}

func TestBuildBranchSuccessorsAndPreds(t *testing.T) {
	c, err := Build(branchy())
	require.NoError(t, err)
	require.Len(t, c.Blocks, 4)

	// block 0: Jcc taken to block 2 (label2), fallthrough to block 1 (label1).
	assert.ElementsMatch(t, []int{2, 1}, c.Blocks[0].Succ)
	// block 1 and 2 both jump to 3.
	assert.Equal(t, []int{3}, c.Blocks[1].Succ)
	assert.Equal(t, []int{3}, c.Blocks[2].Succ)
	// block 3 (ret) has no successors.
	assert.Empty(t, c.Blocks[3].Succ)

	// Predecessors are the symmetric inverse of successors (property 2,
	// spec.md §8).
	assert.ElementsMatch(t, []int{1, 2}, c.Blocks[3].Pred)
	assert.Equal(t, []int{0}, c.Blocks[1].Pred)
	assert.Equal(t, []int{0}, c.Blocks[2].Pred)

	for _, b := range c.Blocks {
		assert.Equal(t, b.Index, c.Func.Instrs[b.Start].Label, "each block's leading Label id equals its Index")
	}
}

func TestReversePostOrderVisitsEveryReachableBlockOnce(t *testing.T) {
	c, err := Build(branchy())
	require.NoError(t, err)
	rpo := c.ReversePostOrder()
	assert.Len(t, rpo, len(c.Blocks))
	assert.Equal(t, 0, rpo[0], "block 0 is always first in reverse post order")

	seen := map[int]bool{}
	for _, b := range rpo {
		assert.False(t, seen[b], "block %d visited twice", b)
		seen[b] = true
	}
}

func TestBuildUndefinedLabelErrors(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	f.Jmp(99)
	_, err := Build(f)
	assert.Error(t, err)
}

func TestEliminateDeadBlocksRemovesUnreachableAndRenumbers(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	f.Jmp(2)
	f.Label(1) // unreachable: no predecessor.
	v1 := f.Imm(ir.S32, 1)
	f.Ret(ir.S32, v1)
	f.Label(2)
	v2 := f.Imm(ir.S32, 2)
	f.Ret(ir.S32, v2)

	c, err := Build(f)
	require.NoError(t, err)
	require.Len(t, c.Blocks, 3)

	c2, err := EliminateDeadBlocks(c)
	require.NoError(t, err)
	require.Len(t, c2.Blocks, 2)
	// Block 0's Jmp target must have been renumbered from label 2 to
	// label 1 (the new index of the only surviving successor).
	term := c2.Func.Instrs[c2.Blocks[0].End-1]
	assert.Equal(t, ir.OpJmp, term.Op)
	assert.Equal(t, 1, term.Label)
}
