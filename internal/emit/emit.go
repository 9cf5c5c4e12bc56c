// Package emit renders the chosen BURS rule for every reduced
// instruction, plus the allocator's relocations, into NASM-syntax
// x86-64 assembly text. Grounded on vslc's backend/arm/print.go and
// function.go (a shared util.Writer, one line per instruction, a
// hand-computed prologue/epilogue around a generated body) generalised
// from vslc's direct per-opcode switch/case emission to spec.md §4.8's
// rule-template-plus-relocation model: internal/selector has already
// chosen, per instruction, a Rule (a template string or a custom
// printer) and internal/regalloc has already produced, per vreg, the
// physical register (or spill slot) it occupies at each program point.
package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"utcc/internal/ir"
	"utcc/internal/regalloc"
	"utcc/internal/regfile"
	"utcc/internal/selector"
)

// Function renders one function's full assembly text: label, prologue,
// body (one line per non-folded, non-nop instruction, with relocations
// spliced in before/after per spec.md §4.8), and the shared epilogue.
func Function(rf *regfile.File, grammar *selector.Grammar, f *ir.Function, af *selector.Func, sres *selector.Result, alloc *regalloc.Result) (string, error) {
	fr := planFrame(rf, f, alloc)

	var sb strings.Builder
	sb.WriteString("\nglobal " + f.Name + "\n")
	sb.WriteString(f.Name + ":\n")
	sb.WriteString(prologue(rf, fr))

	for idx := range f.Instrs {
		in := &f.Instrs[idx]
		if sres.Folded[idx] || in.Op == ir.OpNop {
			continue
		}
		if in.Rule < 0 {
			return "", errors.Errorf("emit: %s instruction %d (%s) has no chosen rule", f.Name, idx, in.Op)
		}

		before, after := relocationsAt(alloc, idx)
		for _, r := range before {
			sb.WriteString(renderReloc(rf, fr, r))
		}

		text, err := renderRule(rf, fr, grammar, af, alloc, idx)
		if err != nil {
			return "", err
		}
		if text != "" {
			if in.Op != ir.OpLabel {
				sb.WriteByte('\t')
			}
			sb.WriteString(text)
			sb.WriteByte('\n')
		}

		for _, r := range after {
			sb.WriteString(renderReloc(rf, fr, r))
		}
	}

	sb.WriteString(epilogue(rf, fr))
	sb.WriteString(Strings(f))
	return sb.String(), nil
}

// relocationsAt splits the relocations attached to instruction idx into
// those rendered before the instruction's own text and those after,
// per spec.md §4.8's fixed ordering.
func relocationsAt(alloc *regalloc.Result, idx int) (before, after []regalloc.Relocation) {
	for _, r := range alloc.Relocations[idx] {
		if r.After {
			after = append(after, r)
		} else {
			before = append(before, r)
		}
	}
	return before, after
}

func renderReloc(rf *regfile.File, fr *Frame, r regalloc.Relocation) string {
	w := r.Size.Bytes()
	if w == 0 {
		w = 8
	}
	switch r.Kind {
	case regalloc.RelocMove, regalloc.RelocMoveAfter, regalloc.RelocTwoAddressMove:
		return fmt.Sprintf("\tmov\t%s, %s\n", rf.Get(r.To).Sized(w), rf.Get(r.From).Sized(w))
	case regalloc.RelocSpill, regalloc.RelocSpillEarly:
		return fmt.Sprintf("\tmov\t[rbp%s], %s\n", fr.SlotAddr(r.Slot), rf.Get(r.From).Sized(w))
	case regalloc.RelocReload:
		return fmt.Sprintf("\tmov\t%s, [rbp%s]\n", rf.Get(r.To).Sized(w), fr.SlotAddr(r.Slot))
	case regalloc.RelocMemMove:
		return renderMemMove(rf, fr, r, w)
	default:
		return ""
	}
}

// renderMemMove covers the four shapes a structural copy can take once
// either endpoint turns out to be memory-resident: reg->mem, mem->reg,
// mem->mem (through a scratch register) and the degenerate reg->reg
// case emitted by the simple allocator when neither endpoint spilled.
func renderMemMove(rf *regfile.File, fr *Frame, r regalloc.Relocation, w int) string {
	switch {
	case r.From >= 0 && r.To >= 0:
		return fmt.Sprintf("\tmov\t%s, %s\n", rf.Get(r.To).Sized(w), rf.Get(r.From).Sized(w))
	case r.From >= 0:
		return fmt.Sprintf("\tmov\t[rbp%s], %s\n", fr.SlotAddr(r.Slot2), rf.Get(r.From).Sized(w))
	case r.To >= 0:
		return fmt.Sprintf("\tmov\t%s, [rbp%s]\n", rf.Get(r.To).Sized(w), fr.SlotAddr(r.Slot))
	default:
		scratch := rf.Get(r.Scratch).Sized(w)
		return fmt.Sprintf("\tmov\t%s, [rbp%s]\n\tmov\t[rbp%s], %s\n", scratch, fr.SlotAddr(r.Slot), fr.SlotAddr(r.Slot2), scratch)
	}
}

// renderRule instantiates instruction idx's chosen rule: a custom
// printer if one is set (which may additionally request the generic
// template, per spec.md §4.8), otherwise the template alone.
func renderRule(rf *regfile.File, fr *Frame, grammar *selector.Grammar, af *selector.Func, alloc *regalloc.Result, idx int) (string, error) {
	in := &af.F.Instrs[idx]
	r := grammar.Rules[in.Rule]
	n := af.Nodes[idx]

	ctx := &substCtx{rf: rf, fr: fr, af: af, alloc: alloc, idx: idx, in: in, node: n}

	if r.Custom != nil {
		// None of this target's custom printers currently ask for the
		// generic template in addition to their own text (divCustom,
		// cvtSCustom, callCustom, callVCustom all return their complete
		// rendering); the boolean exists for a future printer that only
		// wants to prepend setup instructions ahead of the normal form.
		text, _ := r.Custom(n)
		return ctx.expand(text), nil
	}
	return ctx.expand(r.Template), nil
}

// substCtx carries everything template-token expansion needs for one
// instruction.
type substCtx struct {
	rf    *regfile.File
	fr    *Frame
	af    *selector.Func
	alloc *regalloc.Result
	idx   int
	in    *ir.Instruction
	node  *selector.Node
}

// expand substitutes every %token in template, per the vocabulary laid
// out in internal/selector/amd64.go's rule comments: d0/d0b (result
// register), s0/s1 (source operand registers, address-width when the
// operand is an unfolded Load/Store address), imm/imm0/imm1 (own or
// folded-producer immediate), addr0/addr1 (folded address-mode text),
// slot, sym, label, argreg.
func (c *substCtx) expand(template string) string {
	var sb strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] != '%' {
			sb.WriteByte(template[i])
			continue
		}
		j := i + 1
		for j < len(template) && isTokenChar(template[j]) {
			j++
		}
		token := template[i+1 : j]
		sb.WriteString(c.token(token))
		i = j - 1
	}
	return sb.String()
}

func isTokenChar(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func (c *substCtx) token(tok string) string {
	switch {
	case tok == "d0":
		return c.destReg(c.in.Size.Bytes())
	case tok == "d0b":
		return c.destReg(1)
	case tok == "s0":
		return c.srcReg(0, c.operandWidth(0))
	case tok == "s1":
		return c.srcReg(1, c.operandWidth(1))
	case tok == "imm":
		return strconv.FormatInt(c.in.Imm, 10)
	case strings.HasPrefix(tok, "imm"):
		ci := digitSuffix(tok, "imm")
		return strconv.FormatInt(c.foldedProducer(ci).Imm, 10)
	case strings.HasPrefix(tok, "addr"):
		ci := digitSuffix(tok, "addr")
		return c.addrText(c.foldedProducer(ci))
	case tok == "slot":
		return c.fr.SlotAddr(c.in.Slot)
	case tok == "sym":
		return c.in.Sym
	case tok == "label":
		return strconv.Itoa(c.in.Label)
	case tok == "argreg":
		return c.rf.Get(c.rf.ArgOrder[c.in.ArgPos]).Sized(c.in.Size.Bytes())
	case tok == "reg":
		return c.destReg(c.in.Size.Bytes())
	default:
		return "%" + tok
	}
}

// digitSuffix extracts the trailing operand-index digit from a token
// like "imm1"/"addr0". A bare "addr" arrives with an empty suffix and
// maps to operand 0; a bare "imm" is handled by its exact-match case
// above and never reaches here.
func digitSuffix(tok, prefix string) int {
	rest := tok[len(prefix):]
	if rest == "" {
		return 0
	}
	n, _ := strconv.Atoi(rest)
	return n
}

func (c *substCtx) destReg(width int) string {
	r, ok := c.in.Defines()
	if !ok {
		return "?"
	}
	reg := regAt(c.alloc, r, c.idx)
	return c.rf.Get(reg).Sized(width)
}

func (c *substCtx) srcReg(ci, width int) string {
	uses := c.in.Uses()
	if ci >= len(uses) {
		return "?"
	}
	reg := regAt(c.alloc, uses[ci], c.idx)
	return c.rf.Get(reg).Sized(width)
}

// operandWidth returns the width a source register should render at:
// Load/Store's address operand is always pointer-width regardless of
// the value being moved, every other operand renders at the
// instruction's own size.
func (c *substCtx) operandWidth(ci int) int {
	if (c.in.Op == ir.OpLoad || c.in.Op == ir.OpStore) && ci == 0 {
		return ir.PointerBytes
	}
	return c.in.Size.Bytes()
}

// foldedProducer returns the instruction folded into operand ci.
func (c *substCtx) foldedProducer(ci int) *ir.Instruction {
	if ci < len(c.node.OperandDef) && c.node.OperandDef[ci] >= 0 {
		return &c.af.F.Instrs[c.node.OperandDef[ci]]
	}
	return c.in
}

// addrText renders a folded LocalAddr/GlobalAddr producer's address
// expression, without the enclosing brackets (the consuming rule's own
// template supplies those).
func (c *substCtx) addrText(producer *ir.Instruction) string {
	switch producer.Op {
	case ir.OpLocalAddr:
		return "rbp" + c.fr.SlotAddr(producer.Slot)
	case ir.OpGlobalAddr:
		return "rel " + producer.Sym
	default:
		return "?"
	}
}

// regAt returns the physical register holding vreg v at instruction
// index idx, per the allocator's AllocationRecord intervals.
func regAt(alloc *regalloc.Result, v ir.Vreg, idx int) int {
	rec, ok := alloc.Records[v]
	if !ok {
		return 0
	}
	for _, iv := range rec.Intervals {
		if idx >= iv.Start && idx < iv.End && iv.Reg >= 0 {
			return iv.Reg
		}
	}
	if len(rec.Intervals) > 0 {
		return rec.Intervals[0].Reg
	}
	return 0
}
