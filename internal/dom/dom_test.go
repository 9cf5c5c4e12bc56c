package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utcc/internal/cfg"
	"utcc/internal/ir"
)

// diamond builds the canonical diamond CFG: 0 -> {1,2} -> 3, so that
// idom(3) == 0 even though neither 1 nor 2 alone dominates it, and
// DF(1) == DF(2) == {3}.
func diamond(t *testing.T) *cfg.CFG {
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

	c, err := cfg.Build(f)
	require.NoError(t, err)
	return c
}

func TestBuildDiamondDominance(t *testing.T) {
	c := diamond(t)
	tree, err := Build(c)
	require.NoError(t, err)

	assert.Equal(t, 0, tree.Idom[0])
	assert.Equal(t, 0, tree.Idom[1])
	assert.Equal(t, 0, tree.Idom[2])
	assert.Equal(t, 0, tree.Idom[3], "neither arm alone dominates the merge block")

	// Property 3 (spec.md §8): idom(b) strictly dominates b for b != 0.
	for b := 1; b < len(c.Blocks); b++ {
		assert.True(t, tree.Dominates(tree.Idom[b], b))
		assert.False(t, tree.Dominates(b, tree.Idom[b]), "strict: idom must not be dominated back by b")
	}
}

func TestDominanceFrontierOfDiamond(t *testing.T) {
	c := diamond(t)
	tree, err := Build(c)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, tree.DF[1])
	assert.Equal(t, []int{3}, tree.DF[2])
	assert.Empty(t, tree.DF[0])
	assert.Empty(t, tree.DF[3])
}

func TestIDFOfBothDiamondArmsIsTheJoinBlock(t *testing.T) {
	c := diamond(t)
	tree, err := Build(c)
	require.NoError(t, err)

	idf := tree.IDF([]int{1, 2})
	assert.ElementsMatch(t, []int{3}, idf)
}

func TestDominatesIsReflexive(t *testing.T) {
	c := diamond(t)
	tree, err := Build(c)
	require.NoError(t, err)
	for b := range c.Blocks {
		assert.True(t, tree.Dominates(b, b))
	}
}

func TestBuildRejectsUnreachableBlock(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	v := f.Imm(ir.S32, 0)
	f.Ret(ir.S32, v)
	f.Label(1) // unreachable, no predecessor, and EliminateDeadBlocks not run.
	v1 := f.Imm(ir.S32, 1)
	f.Ret(ir.S32, v1)

	c, err := cfg.Build(f)
	require.NoError(t, err)
	_, err = Build(c)
	assert.Error(t, err, "dom.Build must fail on a block unreachable from 0, per its documented failure model")
}
