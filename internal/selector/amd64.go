package selector

import "utcc/internal/ir"

// AMD64Grammar returns the rule table for the x86-64 target: one root
// ("stmt") rule per IR op plus the fold-in chain rules (imm, addr) that
// let a producer with a single use disappear into its consumer's
// operand. Templates use %d0 for the result register, %s0/%s1 for the
// (possibly folded) source operands — internal/emit substitutes these
// once the allocator has assigned registers.
func AMD64Grammar() *Grammar {
	var rules []Rule
	add := func(r Rule) { r.Id = len(rules); rules = append(rules, r) }

	reg2 := []NonTerminal{NTReg, NTReg}
	reg1 := []NonTerminal{NTReg}

	add(Rule{LHS: NTStmt, Op: ir.OpImm, Cost: 1, Template: "mov %d0, %imm"})
	add(Rule{LHS: NTStmt, Op: ir.OpLocalAddr, Cost: 1, Template: "lea %d0, [rbp%slot]"})
	add(Rule{LHS: NTStmt, Op: ir.OpGlobalAddr, Cost: 1, Template: "lea %d0, [rel %sym]"})

	// Arithmetic: two-address x86 form, result forced into op1's register
	// by the allocator's TwoAddress copy (spec.md §4.5).
	for _, spec := range []struct {
		op   ir.Op
		mnem string
	}{
		{ir.OpAdd, "add"}, {ir.OpSub, "sub"}, {ir.OpAnd, "and"}, {ir.OpOr, "or"}, {ir.OpXor, "xor"},
	} {
		add(Rule{LHS: NTStmt, Op: spec.op, Children: reg2, Cost: 1, Template: spec.mnem + " %d0, %s1", IsTwoAddress: true})
	}
	// Fold an immediate right-hand operand directly into add/sub/and/or/xor.
	for _, spec := range []struct {
		op   ir.Op
		mnem string
	}{
		{ir.OpAdd, "add"}, {ir.OpSub, "sub"}, {ir.OpAnd, "and"}, {ir.OpOr, "or"}, {ir.OpXor, "xor"},
	} {
		add(Rule{LHS: NTStmt, Op: spec.op, Children: []NonTerminal{NTReg, NTImm}, Cost: 1, Template: spec.mnem + " %d0, %imm1", IsTwoAddress: true})
	}
	add(Rule{LHS: NTStmt, Op: ir.OpMul, Children: reg2, Cost: 2, Template: "imul %d0, %s1", IsTwoAddress: true})
	// Signed division is destructive on rdx:rax, not on operand A's own
	// register, so it is not a simple two-address form; build.go pins the
	// dividend and clobbers rdx explicitly instead.
	add(Rule{LHS: NTStmt, Op: ir.OpDiv, Children: reg2, Cost: 6, Custom: divCustom})

	for op, rel := range map[ir.Op]string{
		ir.OpEq: "sete", ir.OpNe: "setne", ir.OpLt: "setl", ir.OpLe: "setle", ir.OpGt: "setg", ir.OpGe: "setge",
	} {
		add(Rule{LHS: NTStmt, Op: op, Children: reg2, Cost: 2, Template: "cmp %s0, %s1\n\t" + rel + " %d0b"})
	}

	add(Rule{LHS: NTStmt, Op: ir.OpJcc, Children: reg1, Cost: 1, Template: "test %s0, %s0\n\tjnz label%label"})
	add(Rule{LHS: NTStmt, Op: ir.OpJnc, Children: reg1, Cost: 1, Template: "test %s0, %s0\n\tjz label%label"})
	add(Rule{LHS: NTStmt, Op: ir.OpJmp, Cost: 1, Template: "jmp label%label"})
	add(Rule{LHS: NTStmt, Op: ir.OpLabel, Cost: 1, Template: "label%label:"})
	add(Rule{LHS: NTStmt, Op: ir.OpRet, Children: reg1, Cost: 1, Template: "mov rax, %s0\n\tjmp .end"})
	add(Rule{LHS: NTStmt, Op: ir.OpNop, Cost: 1, Template: ""})

	add(Rule{LHS: NTStmt, Op: ir.OpLoad, Children: []NonTerminal{NTAddr}, Cost: 1, Template: "mov %d0, [%addr0]"})
	add(Rule{LHS: NTStmt, Op: ir.OpLoad, Children: reg1, Cost: 1, Template: "mov %d0, [%s0]"})
	add(Rule{LHS: NTStmt, Op: ir.OpStore, Children: []NonTerminal{NTAddr, NTReg}, Cost: 1, Template: "mov [%addr0], %s1"})
	add(Rule{LHS: NTStmt, Op: ir.OpStore, Children: reg2, Cost: 1, Template: "mov [%s0], %s1"})

	add(Rule{LHS: NTStmt, Op: ir.OpCvtS, Children: reg1, Cost: 1, Custom: cvtSCustom})
	add(Rule{LHS: NTStmt, Op: ir.OpCvtP, Children: reg1, Cost: 1, Template: "mov %d0, %s0"})

	add(Rule{LHS: NTStmt, Op: ir.OpArg, Children: reg1, Cost: 1, Template: "mov %argreg, %s0"})
	add(Rule{LHS: NTStmt, Op: ir.OpCall, Cost: 3, Custom: callCustom})
	add(Rule{LHS: NTStmt, Op: ir.OpCallV, Children: reg1, Cost: 3, Custom: callVCustom})

	// Chain rules: an Imm node also satisfies NTImm and NTReg goals for
	// its consumers, and a LocalAddr/GlobalAddr with a single use also
	// satisfies NTAddr.
	add(Rule{LHS: NTImm, IsChain: true, FromNT: NTStmt, Op: ir.OpImm, Cost: 0, Template: "%imm"})
	add(Rule{LHS: NTAddr, IsChain: true, FromNT: NTStmt, Op: ir.OpLocalAddr, Cost: 0, Template: "rbp%slot"})
	add(Rule{LHS: NTAddr, IsChain: true, FromNT: NTStmt, Op: ir.OpGlobalAddr, Cost: 0, Template: "rel %sym"})
	add(Rule{LHS: NTReg, IsChain: true, AnyOp: true, FromNT: NTStmt, Cost: 1, Template: "%reg"})

	return Build(rules)
}

func divCustom(n *Node) (string, bool) {
	return "cqo\n\tidiv %s1", false
}

func cvtSCustom(n *Node) (string, bool) {
	from := n.Instr.FromSize.Bytes()
	to := n.Instr.Size.Bytes()
	if to <= from {
		return "mov %d0, %s0", false
	}
	return "movsx %d0, %s0", false
}

func callCustom(n *Node) (string, bool)  { return "call %sym", false }
func callVCustom(n *Node) (string, bool) { return "call %s0", false }
