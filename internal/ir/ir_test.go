package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVregsAreDenseInFunctionOrder(t *testing.T) {
	f := NewFunction("f", S32)
	a := f.Imm(S32, 1)
	b := f.Imm(S32, 2)
	c := f.Arith(OpAdd, S32, a, b)
	assert.Equal(t, Vreg(0), a)
	assert.Equal(t, Vreg(1), b)
	assert.Equal(t, Vreg(2), c)
	assert.Equal(t, 3, f.VregCount())
}

func TestArgRunsTrackPositionPerCallIdentity(t *testing.T) {
	f := NewFunction("f", S32)
	x := f.Imm(S32, 1)
	y := f.Imm(S32, 2)
	f.Arg(S32, x, 0)
	f.Arg(S32, y, 0)
	f.Call(S32, "add", 2, true)

	z := f.Imm(S32, 3)
	f.Arg(S32, z, 1)
	f.Call(S32, "id", 1, true)

	var argPos []int
	var argIdx []int
	for _, in := range f.Instrs {
		if in.Op == OpArg {
			argPos = append(argPos, in.ArgPos)
			argIdx = append(argIdx, in.ArgIndex)
		}
	}
	require.Len(t, argPos, 3)
	// First call's run: positions 0, 1.
	assert.Equal(t, []int{0, 1, 0}, argPos, "each call's Arg run restarts its position counter")
	assert.Equal(t, []int{0, 0, 1}, argIdx, "ArgIndex is the call-identity tag passed by the caller, unaffected by position")
}

func TestArithPanicsOnNonArithmeticOp(t *testing.T) {
	f := NewFunction("f", S32)
	a := f.Imm(S32, 1)
	b := f.Imm(S32, 2)
	assert.Panics(t, func() { f.Arith(OpJmp, S32, a, b) })
}

func TestDefinesAndUses(t *testing.T) {
	f := NewFunction("f", S32)
	a := f.Imm(S32, 1)
	b := f.Imm(S32, 2)
	sum := f.Arith(OpAdd, S32, a, b)

	in := f.Instrs[2]
	r, ok := in.Defines()
	require.True(t, ok)
	assert.Equal(t, sum, r)
	assert.Equal(t, []Vreg{a, b}, in.Uses())

	imm := f.Instrs[0]
	_, ok = imm.Defines()
	assert.True(t, ok, "Imm defines its result")
	assert.Empty(t, imm.Uses())
}

func TestPhiAttachesToMostRecentLabel(t *testing.T) {
	f := NewFunction("f", S32)
	f.Label(0)
	phi := NewPhiNode([]Vreg{0}, []Size{S32})
	f.Phi(phi)
	assert.Same(t, phi, f.Instrs[0].Phi)
}

func TestPhiWithNoPrecedingLabelPanics(t *testing.T) {
	f := NewFunction("f", S32)
	assert.Panics(t, func() {
		f.Phi(NewPhiNode(nil, nil))
	})
}

func TestPhiNodeAddPredRejectsMismatchedArity(t *testing.T) {
	phi := NewPhiNode([]Vreg{0, 1}, []Size{S32, S32})
	assert.Panics(t, func() {
		phi.AddPred(0, []Vreg{5})
	})
}

func TestPhiNodeDropPredIsToleranceOfMissingLabel(t *testing.T) {
	phi := NewPhiNode([]Vreg{0}, []Size{S32})
	phi.AddPred(1, []Vreg{7})
	phi.DropPred(99) // no-op: label 99 was never a predecessor.
	require.Len(t, phi.Preds, 1)
	phi.DropPred(1)
	assert.Empty(t, phi.Preds)
	assert.Empty(t, phi.Sources)
}

func TestSizeBytes(t *testing.T) {
	assert.Equal(t, 1, S8.Bytes())
	assert.Equal(t, 2, S16.Bytes())
	assert.Equal(t, 4, S32.Bytes())
	assert.Equal(t, 8, S64.Bytes())
	assert.Equal(t, 8, SPtr.Bytes())
	assert.Equal(t, 0, SVoid.Bytes())
	assert.Equal(t, 12, Blob(12).Bytes())
}

func TestFunctionStringContainsSignatureAndBody(t *testing.T) {
	f := NewFunction("add", S32)
	f.AddArg(S32)
	f.AddArg(S32)
	f.Label(0)
	a := f.Imm(S32, 1)
	f.Ret(S32, a)

	text := f.String()
	assert.True(t, strings.HasPrefix(text, "define s32 add("))
	assert.Contains(t, text, "label0:")
	assert.Contains(t, text, "imm 1")
	assert.Contains(t, text, "ret s32")
}

func TestModuleStringRendersGlobalsAndFunctions(t *testing.T) {
	m := NewModule()
	init := int64(7)
	m.AddGlobal("counter", S32, &init, 4)
	m.AddGlobal("buf", Blob(64), nil, 1)
	f := m.AddFunction("main", S32)
	f.Label(0)
	v := f.Imm(S32, 0)
	f.Ret(S32, v)

	text := m.String()
	assert.Contains(t, text, "global counter s32 = 7")
	assert.Contains(t, text, "common buf")
	assert.Contains(t, text, "define s32 main()")
	assert.Same(t, f, m.FindFunction("main"))
	assert.Nil(t, m.FindFunction("missing"))
}
