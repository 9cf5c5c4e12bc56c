package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utcc/internal/ir"
)

// addImmFunc builds `x = 5; y = 3; ret x + y;` — y has exactly one use, so
// the grammar's fold-immediate-operand rule should beat the plain
// register-register rule on cost.
func addImmFunc() *ir.Function {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	x := f.Imm(ir.S32, 5)
	y := f.Imm(ir.S32, 3)
	sum := f.Arith(ir.OpAdd, ir.S32, x, y)
	f.Ret(ir.S32, sum)
	return f
}

func TestAnalyzeMarksSingleUseOperandsAsFoldCandidates(t *testing.T) {
	f := addImmFunc()
	af := Analyze(f)

	// sum = x + y: both x and y have exactly one use (the add), so both
	// are candidates; the labeler decides whether folding is profitable.
	// Instrs: 0 label, 1 imm x, 2 imm y, 3 add, 4 ret.
	addNode := af.Nodes[3]
	require.Equal(t, ir.OpAdd, addNode.Instr.Op)
	assert.NotEqual(t, -1, addNode.OperandDef[0])
	assert.NotEqual(t, -1, addNode.OperandDef[1])
}

func TestAnalyzeDoesNotFoldMultiUseOperands(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	x := f.Imm(ir.S32, 1)
	a := f.Arith(ir.OpAdd, ir.S32, x, x) // x used twice: never a fold candidate.
	f.Ret(ir.S32, a)
	af := Analyze(f)

	// Instrs: 0 label, 1 imm x, 2 add, 3 ret.
	addNode := af.Nodes[2]
	assert.Equal(t, -1, addNode.OperandDef[0])
	assert.Equal(t, -1, addNode.OperandDef[1])
}

func TestLabelAndReducePreferFoldedImmediateOverRegisterPair(t *testing.T) {
	f := addImmFunc()
	g := AMD64Grammar()
	af := Analyze(f)
	labels, err := Label(g, af)
	require.NoError(t, err)
	sres := Reduce(g, af, labels)

	// Instrs: 0 label, 1 imm x, 2 imm y, 3 add, 4 ret.
	addIdx := 3
	require.NotEqual(t, -1, sres.Rule[addIdx])
	rule := g.Rules[sres.Rule[addIdx]]
	assert.Contains(t, rule.Template, "%imm1", "folding y's immediate into the add must be cheaper than a reg,reg add")

	yIdx := 2
	assert.True(t, sres.Folded[yIdx], "y is folded into the add's immediate operand")

	xIdx := 1
	assert.False(t, sres.Folded[xIdx], "x is still materialised into a register operand")
	assert.NotEqual(t, -1, sres.Rule[xIdx], "x still gets its own imm-load instruction")
}

func TestReduceFoldsLocalAddrIntoLoadAddressingMode(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	slot := f.AddLocal(ir.S32, 1, "a")
	f.Label(0)
	addr := f.LocalAddr(slot)
	v := f.Load(ir.S32, addr)
	f.Ret(ir.S32, v)

	g := AMD64Grammar()
	af := Analyze(f)
	labels, err := Label(g, af)
	require.NoError(t, err)
	sres := Reduce(g, af, labels)

	// Instrs: 0 label, 1 localaddr, 2 load, 3 ret.
	loadIdx := 2
	rule := g.Rules[sres.Rule[loadIdx]]
	assert.Contains(t, rule.Template, "%addr0")

	addrIdx := 1
	assert.True(t, sres.Folded[addrIdx], "a single-use LocalAddr folds into its consuming Load")
}

func TestLabelReturnsNoRuleErrorForUncoveredOp(t *testing.T) {
	f := ir.NewFunction("f", ir.S32)
	f.Label(0)
	a := f.Imm(ir.S32, 1)
	b := f.Imm(ir.S32, 2)
	f.Arith(ir.OpMul, ir.S32, a, b)
	f.Ret(ir.S32, a)

	// A grammar missing an OpMul rule must surface as a NoRuleError: per
	// spec.md §7, any reachable node without a finite-cost rule is an
	// internal inconsistency, not a user-facing error.
	g := Build([]Rule{
		{LHS: NTStmt, Op: ir.OpLabel, Cost: 1, Template: "label%label:"},
		{LHS: NTStmt, Op: ir.OpImm, Cost: 1, Template: "mov %d0, %imm"},
		{LHS: NTStmt, Op: ir.OpRet, Children: []NonTerminal{NTReg}, Cost: 1, Template: "mov rax, %s0\n\tjmp .end"},
		{LHS: NTReg, IsChain: true, AnyOp: true, FromNT: NTStmt, Cost: 1, Template: "%reg"},
	})
	af := Analyze(f)
	_, err := Label(g, af)
	require.Error(t, err)
	var nre *NoRuleError
	assert.ErrorAs(t, err, &nre)
}

func TestEveryStmtReachableNodeGetsAFiniteRuleOnFullGrammar(t *testing.T) {
	// Property 5 (spec.md §8): with the real target grammar, every
	// instruction the labeler visits resolves to a finite-cost NTStmt
	// rule — Label must not error on ordinary, fully-covered IR.
	f := ir.NewFunction("f", ir.S32)
	f.AddArg(ir.S32)
	f.Label(0)
	arg := f.Args[0].Reg
	one := f.Imm(ir.S32, 1)
	sum := f.Arith(ir.OpAdd, ir.S32, arg, one)
	cmp := f.Compare(ir.OpGt, ir.S32, sum, one)
	f.Jcc(cmp, 1)
	f.Jnc(cmp, 1)
	f.Label(1)
	f.Ret(ir.S32, sum)

	g := AMD64Grammar()
	af := Analyze(f)
	_, err := Label(g, af)
	assert.NoError(t, err)
}
