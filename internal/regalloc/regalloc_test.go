package regalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utcc/internal/ir"
	"utcc/internal/regfile"
	"utcc/internal/selector"
)

func TestSimpleAllocateReloadsBeforeUseAndSpillsAfterDef(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	x := f.Imm(ir.S32, 5)
	f.Ret(ir.S32, x)

	rf := regfile.NewAMD64()
	res, err := SimpleAllocate(rf, f)
	require.NoError(t, err)

	// Instrs: 0 label, 1 imm x (defines x), 2 ret (uses x).
	defRelocs := res.Relocations[1]
	require.Len(t, defRelocs, 1)
	assert.Equal(t, RelocSpill, defRelocs[0].Kind)
	assert.True(t, defRelocs[0].After, "a definition's spill is emitted after the instruction")

	useRelocs := res.Relocations[2]
	require.Len(t, useRelocs, 1)
	assert.Equal(t, RelocReload, useRelocs[0].Kind)
	assert.False(t, useRelocs[0].After, "a use's reload is emitted before the instruction")

	rec, ok := res.Records[x]
	require.True(t, ok)
	require.Len(t, rec.Intervals, 2, "x occupies a register only momentarily around its def and its use")
}

func TestSimpleAllocateNeverCoalescesOrColors(t *testing.T) {
	// The reference allocator gives every vreg its own frame slot; two
	// distinct vregs must never be told to share one, even when nothing
	// else is live (spec.md §4.7: "never coalesces, colours or
	// spill-cost-weighs anything").
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	a := f.Imm(ir.S32, 1)
	b := f.Imm(ir.S32, 2)
	f.Arith(ir.OpAdd, ir.S32, a, b)
	f.Ret(ir.S32, a)

	rf := regfile.NewAMD64()
	res, err := SimpleAllocate(rf, f)
	require.NoError(t, err)

	for _, v := range []ir.Vreg{a, b} {
		rec, ok := res.Records[v]
		require.True(t, ok)
		for _, iv := range rec.Intervals {
			assert.GreaterOrEqual(t, iv.Reg, 0)
		}
	}

	// a and b are each spilled right after their defining Imm
	// (instructions 1 and 2), into slots of their own.
	require.Len(t, res.Relocations[1], 1)
	require.Len(t, res.Relocations[2], 1)
	assert.NotEqual(t, res.Relocations[1][0].Slot, res.Relocations[2][0].Slot, "a and b must not share a frame slot")
}

// simpleChain builds a = 1; b = 2; c = a + b; d = 3; e = c + d; ret e — a
// handful of overlapping, low-pressure live ranges that must colour
// cleanly in the 14-register x86-64 file with no spilling.
func simpleChain() *ir.Function {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	a := f.Imm(ir.S32, 1)
	b := f.Imm(ir.S32, 2)
	c := f.Arith(ir.OpAdd, ir.S32, a, b)
	d := f.Imm(ir.S32, 3)
	e := f.Arith(ir.OpAdd, ir.S32, c, d)
	f.Ret(ir.S32, e)
	return f
}

func TestAllocateProducesNonOverlappingColorsPerVreg(t *testing.T) {
	f := simpleChain()
	rf := regfile.NewAMD64()
	res, err := Allocate(rf, f)
	require.NoError(t, err)
	assertNoOverlap(t, res)
}

func TestAllocateAssignsOnlyAllocatableRegisters(t *testing.T) {
	f := simpleChain()
	rf := regfile.NewAMD64()
	res, err := Allocate(rf, f)
	require.NoError(t, err)

	allocatable := map[int]bool{}
	for _, id := range rf.All.Members() {
		allocatable[id] = true
	}
	for v, rec := range res.Records {
		for _, iv := range rec.Intervals {
			if iv.Reg >= 0 {
				assert.True(t, allocatable[iv.Reg], "vreg %d assigned non-allocatable register %d", v, iv.Reg)
			}
		}
	}
}

// TestAllocateDoesNotCoalesceAnOperandStillLiveAfterATwoAddressOp builds
// a=1; b=2; c=a+b; d=a+c; ret d — the same reuse-across-two-address-ops
// shape as the spec's own f(n-1)+f(n-2) acceptance scenario. a is still
// live when c's destructive add writes its result, since d's add reads a
// again; a and c must therefore never be coalesced into the same colour.
func TestAllocateDoesNotCoalesceAnOperandStillLiveAfterATwoAddressOp(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	a := f.Imm(ir.S32, 1)
	b := f.Imm(ir.S32, 2)
	c := f.Arith(ir.OpAdd, ir.S32, a, b)
	d := f.Arith(ir.OpAdd, ir.S32, a, c)
	f.Ret(ir.S32, d)

	grammar := selector.AMD64Grammar()
	af := selector.Analyze(f)
	labels, err := selector.Label(grammar, af)
	require.NoError(t, err)
	selector.Reduce(grammar, af, labels)

	rf := regfile.NewAMD64()
	res, err := Allocate(rf, f)
	require.NoError(t, err)
	assertNoOverlap(t, res)
}

// assertNoOverlap checks property 6 (spec.md §8): no two distinct vregs'
// intervals may claim the same physical register over overlapping
// instruction-index ranges.
func assertNoOverlap(t *testing.T, res *Result) {
	t.Helper()
	type span struct {
		start, end, reg int
		v               ir.Vreg
	}
	var all []span
	for v, rec := range res.Records {
		for _, iv := range rec.Intervals {
			if iv.Reg >= 0 {
				all = append(all, span{iv.Start, iv.End, iv.Reg, v})
			}
		}
	}
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i].v == all[j].v || all[i].reg != all[j].reg {
				continue
			}
			overlap := all[i].start < all[j].end && all[j].start < all[i].end
			assert.False(t, overlap,
				"vreg %d and vreg %d both claim register %d over overlapping ranges [%d,%d) and [%d,%d)",
				all[i].v, all[j].v, all[i].reg, all[i].start, all[i].end, all[j].start, all[j].end)
		}
	}
}
