package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utcc/internal/ir"
	"utcc/internal/regalloc"
	"utcc/internal/regfile"
	"utcc/internal/selector"
)

func TestGlobalsRendersDataAndBssSections(t *testing.T) {
	mod := ir.NewModule()
	init := int64(7)
	mod.AddGlobal("counter", ir.S32, &init, 4)
	mod.AddGlobal("buf", ir.Blob(64), nil, 1)

	text := Globals(mod)
	assert.Contains(t, text, "section .data")
	assert.Contains(t, text, "counter:")
	assert.Contains(t, text, "dq\t7")
	assert.Contains(t, text, "section .bss")
	assert.Contains(t, text, "buf:")
	assert.Contains(t, text, "resb\t64")
}

func TestGlobalsOmitsEmptySections(t *testing.T) {
	mod := ir.NewModule()
	init := int64(1)
	mod.AddGlobal("x", ir.S32, &init, 4)

	text := Globals(mod)
	assert.Contains(t, text, "section .data")
	assert.NotContains(t, text, "section .bss")
}

func TestStringsEscapesQuotesAndNonPrintableBytes(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	i := f.AddString("hi\"there")

	text := Strings(f)
	assert.Equal(t, "__string_f_0", StringSymbol(f, i))
	assert.Contains(t, text, `"hi", 34, "there"`)
}

// addTwoArgs builds `define s32 add2(%0, %1) { label0: %2 = add %0, %1; ret %2 }`
// — both operands come from the calling convention, not from an earlier
// instruction, so nothing is fold-eligible and the add renders as the
// plain register-register form.
func addTwoArgs() *ir.Function {
	f := ir.NewFunction("add2", ir.S32)
	x := f.AddArg(ir.S32)
	y := f.AddArg(ir.S32)
	f.Label(0)
	s := f.Arith(ir.OpAdd, ir.S32, x, y)
	f.Ret(ir.S32, s)
	return f
}

func TestFunctionEmitsPrologueBodyAndEpilogue(t *testing.T) {
	f := addTwoArgs()
	grammar := selector.AMD64Grammar()
	af := selector.Analyze(f)
	labels, err := selector.Label(grammar, af)
	require.NoError(t, err)
	sres := selector.Reduce(grammar, af, labels)

	rf := regfile.NewAMD64()
	alloc, err := regalloc.SimpleAllocate(rf, f)
	require.NoError(t, err)

	text, err := Function(rf, grammar, f, af, sres, alloc)
	require.NoError(t, err)

	assert.Contains(t, text, "global add2\n")
	assert.Contains(t, text, "add2:\n")
	assert.Contains(t, text, "push\trbp")
	assert.Contains(t, text, "mov\trbp, rsp")
	assert.Contains(t, text, "add ")
	assert.Contains(t, text, ".end:")
	assert.Contains(t, text, "leave")
	assert.Contains(t, text, "ret")
}
