package ir

import "fmt"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Vreg is a non-negative integer identifying a virtual register, dense in
// [0, Function.VregCount) per spec.md §3. NoVreg marks an absent operand
// or result.
type Vreg int

// NoVreg marks the absence of a virtual register operand/result.
const NoVreg Vreg = -1

// Op enumerates the instruction variants of spec.md §3's table. Op is a
// closed tagged-union discriminant: every Instruction carries exactly one
// Op and the operand fields relevant to it, rather than a distinct Go type
// per variant, matching design note §9 ("a tagged sum with per-variant
// payload") without the inheritance that interface-per-variant would
// otherwise tempt.
type Op uint8

const (
	OpImm        Op = iota // result, Imm
	OpLocalAddr            // result, Slot
	OpGlobalAddr           // result, Sym
	OpArg                  // A (src vreg), ArgIndex (back-pointer to Call index)
	OpLoad                 // result, A (addr vreg)
	OpStore                // A (addr vreg), B (value vreg)
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpAnd
	OpOr
	OpXor
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpJcc  // A (cond vreg), Label
	OpJnc  // A (cond vreg), Label
	OpJmp  // Label
	OpCall // result, Sym, CallArgs (preceding Arg count)
	OpCallV // result, A (callee vreg), CallArgs
	OpLabel // Label, optional Phi
	OpCvtS  // signed convert: result, FromSize, A
	OpCvtP  // pointer convert: result, FromSize, A
	OpPhi   // payload lives on the owning Label instruction via Phi
	OpRet   // A (value vreg, dummy for void)
	OpNop   // placeholder left by mem2reg over a promoted Load/Store
)

var opNames = [...]string{
	"imm", "localaddr", "globaladdr", "arg", "load", "store",
	"add", "sub", "mul", "div", "and", "or", "xor",
	"eq", "ne", "lt", "le", "gt", "ge",
	"jcc", "jnc", "jmp", "call", "callv", "label",
	"cvts", "cvtp", "phi", "ret", "nop",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "?"
}

// IsArith reports whether o is one of Add/Sub/Mul/Div/And/Or/Xor.
func (o Op) IsArith() bool {
	return o >= OpAdd && o <= OpXor
}

// IsCompare reports whether o is one of Eq/Ne/Lt/Le/Gt/Ge.
func (o Op) IsCompare() bool {
	return o >= OpEq && o <= OpGe
}

// IsTerminator reports whether o ends a basic block.
func (o Op) IsTerminator() bool {
	return o == OpJcc || o == OpJnc || o == OpJmp || o == OpRet
}

// PhiNode is the block-leading payload describing a set of parallel
// definitions chosen by predecessor edge, attached only to an OpLabel
// instruction per spec.md §3's invariant.
type PhiNode struct {
	Targets []Vreg   // One new vreg defined per promoted slot merging here.
	Sizes   []Size   // Size tag of each target, parallel to Targets.
	Preds   []int    // Predecessor block (label) ids, in column order.
	Sources [][]Vreg // Sources[p][i] is the vreg for Targets[i] on edge from Preds[p].
}

// NewPhiNode allocates a PhiNode with n targets and no predecessor
// columns yet; AddPred appends columns as predecessors are discovered.
func NewPhiNode(targets []Vreg, sizes []Size) *PhiNode {
	return &PhiNode{Targets: targets, Sizes: sizes}
}

// AddPred appends a predecessor column whose per-target sources are src,
// which must have the same length as p.Targets.
func (p *PhiNode) AddPred(label int, src []Vreg) {
	if len(src) != len(p.Targets) {
		panic(fmt.Sprintf("phi: predecessor %d supplies %d sources, want %d", label, len(src), len(p.Targets)))
	}
	p.Preds = append(p.Preds, label)
	p.Sources = append(p.Sources, src)
}

// DropPred removes the column for predecessor label, tolerating a label
// that is not present (dead-block elimination may have already removed
// it), per spec.md §4.3.
func (p *PhiNode) DropPred(label int) {
	for i, l := range p.Preds {
		if l == label {
			p.Preds = append(p.Preds[:i], p.Preds[i+1:]...)
			p.Sources = append(p.Sources[:i], p.Sources[i+1:]...)
			return
		}
	}
}

// Instruction is a single IR operation. Fields not relevant to Op are
// zero/NoVreg and ignored; see the Op const block above for the operand
// mapping of each variant.
type Instruction struct {
	Op     Op
	Size   Size
	Result Vreg

	A, B Vreg // generic operand slots; meaning depends on Op (see const block).

	Imm      int64
	Slot     int
	Sym      string
	Label    int
	ArgIndex int // identifies which Call/CallV this Arg belongs to; shared by every Arg in its run.
	ArgPos   int // 0-based position of this Arg within its run, i.e. its ABI argument-register index.
	FromSize Size
	CallArgs int
	Phi      *PhiNode

	// Rule is the BURS rule chosen by the selector for this node; -1
	// until instruction selection has run. Set by internal/selector.
	Rule int

	// TwoAddress mirrors the chosen Rule's IsTwoAddress flag: true when the
	// target's destructive form forces the result into operand A's
	// register (spec.md §4.5). Driven off the grammar rather than the Op,
	// since whether an instruction is two-address is a target property,
	// not a generic IR property. Set alongside Rule by internal/selector.
	TwoAddress bool

	// Extern marks a Call/CallV target not defined in this module, so the
	// emitter knows to annotate it for the PLT per spec.md §6.
	Extern bool
}

// Defines reports whether the instruction defines a vreg, and returns it.
func (in *Instruction) Defines() (Vreg, bool) {
	switch in.Op {
	case OpImm, OpLocalAddr, OpGlobalAddr, OpLoad, OpCall, OpCallV, OpCvtS, OpCvtP:
		return in.Result, in.Result != NoVreg
	default:
		if in.Op.IsArith() || in.Op.IsCompare() {
			return in.Result, in.Result != NoVreg
		}
	}
	return NoVreg, false
}

// Uses returns the vregs read by the instruction, excluding any defined
// by Phi (those are read along control-flow edges, handled separately by
// the allocator's PhiCopy bookkeeping).
func (in *Instruction) Uses() []Vreg {
	switch in.Op {
	case OpArg:
		return []Vreg{in.A}
	case OpLoad:
		return []Vreg{in.A}
	case OpStore:
		return []Vreg{in.A, in.B}
	case OpJcc, OpJnc:
		return []Vreg{in.A}
	case OpCallV:
		return []Vreg{in.A}
	case OpCvtS, OpCvtP:
		return []Vreg{in.A}
	case OpRet:
		return []Vreg{in.A}
	default:
		if in.Op.IsArith() || in.Op.IsCompare() {
			return []Vreg{in.A, in.B}
		}
	}
	return nil
}

// String renders the instruction using the LLVM-like surface syntax of
// spec.md §6.
func (in *Instruction) String() string {
	res := func() string {
		if r, ok := in.Defines(); ok {
			return fmt.Sprintf("%%%d = ", r)
		}
		return ""
	}
	switch in.Op {
	case OpImm:
		return fmt.Sprintf("%s%s imm %d", res(), in.Size, in.Imm)
	case OpLocalAddr:
		return fmt.Sprintf("%s%s localaddr %d", res(), in.Size, in.Slot)
	case OpGlobalAddr:
		return fmt.Sprintf("%s%s globaladdr @%s", res(), in.Size, in.Sym)
	case OpArg:
		return fmt.Sprintf("arg %s %%%d -> call%d", in.Size, in.A, in.ArgIndex)
	case OpLoad:
		return fmt.Sprintf("%s%s load %%%d", res(), in.Size, in.A)
	case OpStore:
		return fmt.Sprintf("%s store %%%d, %%%d", in.Size, in.A, in.B)
	case OpJcc:
		return fmt.Sprintf("jcc %%%d, label%d", in.A, in.Label)
	case OpJnc:
		return fmt.Sprintf("jnc %%%d, label%d", in.A, in.Label)
	case OpJmp:
		return fmt.Sprintf("jmp label%d", in.Label)
	case OpCall:
		ext := ""
		if in.Extern {
			ext = " extern"
		}
		return fmt.Sprintf("%s%s call @%s/%d%s", res(), in.Size, in.Sym, in.CallArgs, ext)
	case OpCallV:
		return fmt.Sprintf("%s%s callv %%%d/%d", res(), in.Size, in.A, in.CallArgs)
	case OpLabel:
		if in.Phi != nil {
			return fmt.Sprintf("label%d: %s", in.Label, in.Phi.String())
		}
		return fmt.Sprintf("label%d:", in.Label)
	case OpCvtS:
		return fmt.Sprintf("%s%s cvts %s %%%d", res(), in.Size, in.FromSize, in.A)
	case OpCvtP:
		return fmt.Sprintf("%s%s cvtp %s %%%d", res(), in.Size, in.FromSize, in.A)
	case OpRet:
		return fmt.Sprintf("ret %s %%%d", in.Size, in.A)
	case OpNop:
		return "nop"
	default:
		if in.Op.IsArith() || in.Op.IsCompare() {
			return fmt.Sprintf("%s%s %s %%%d, %%%d", res(), in.Size, in.Op, in.A, in.B)
		}
	}
	return fmt.Sprintf("<unknown op %d>", in.Op)
}

// String renders a PhiNode's payload: `phi [label0: %1, %2] [label1: %3, %4] -> %5:s32, %6:p`.
func (p *PhiNode) String() string {
	s := "phi"
	for i, pred := range p.Preds {
		s += fmt.Sprintf(" [label%d:", pred)
		for j := range p.Targets {
			if j > 0 {
				s += ","
			}
			s += fmt.Sprintf(" %%%d", p.Sources[i][j])
		}
		s += "]"
	}
	s += " ->"
	for i, t := range p.Targets {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(" %%%d:%s", t, p.Sizes[i])
	}
	return s
}
