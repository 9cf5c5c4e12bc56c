// Package selector implements bottom-up rewrite system (BURS) instruction
// selection: a declarative tree-grammar of rewrite rules with per-rule
// costs, a labeler that computes the minimum-cost rule for every
// non-terminal at every IR node, and a reducer that fixes one rule per
// node for a required root non-terminal, per spec.md §4.5.
//
// vslc has no BURS selector of its own — its backend/arm and backend/riscv
// packages hand-emit one template per IR node directly (see
// backend/arm/expressions.go). The rule-table shape here follows design
// note §9's minimum contract instead: "(rule -> left-hand non-terminal),
// (rule -> cost), (rule -> child non-terminals), (rule -> template or
// custom-print callback)" — grounded on original_source/src/backend/rburg_template.rs,
// which is the macro-generated table this spec's design note explicitly
// says a hand-written table may replace.
package selector

import "utcc/internal/ir"

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// NonTerminal names a goal the BURS grammar can reduce an operand to.
type NonTerminal string

const (
	// NTStmt is the root goal for every instruction: "this value has been
	// fully reduced to emittable assembly."
	NTStmt NonTerminal = "stmt"
	// NTReg is the goal "this operand's value is materialised in a
	// general-purpose register."
	NTReg NonTerminal = "reg"
	// NTImm is the goal "this operand is usable as an immediate."
	NTImm NonTerminal = "imm"
	// NTAddr is the goal "this operand is usable as a memory operand",
	// reached by folding a LocalAddr/GlobalAddr producer with exactly one
	// use directly into the consuming instruction's addressing mode.
	NTAddr NonTerminal = "addr"
)

// Unreachable is the cost-table marker for "this rule does not apply at
// this node", per spec.md §4.5's 0xFFF sentinel.
const Unreachable = 0xFFF

// CustomPrinter renders target-specific text for a reduced node. It
// returns the rendered text and whether the generic template should
// additionally fire afterwards, per spec.md §4.5.
type CustomPrinter func(n *Node) (text string, alsoGeneric bool)

// Rule is one production of the grammar: a left-hand non-terminal, a
// pattern matching an IR Op (AnyOp matches any instruction, used for
// pure non-terminal chain rules such as "an immediate is also a constant
// operand"), the non-terminals required of each child operand, a base
// cost, and either a template string or a custom printer.
type Rule struct {
	Id       int
	LHS      NonTerminal
	Op       ir.Op
	IsChain  bool // true: this rule reduces another NT's result without matching an Op directly.
	AnyOp    bool // true: this chain rule applies regardless of the node's Op (e.g. "materialise in a register").
	FromNT   NonTerminal // for chain rules: the child non-terminal being re-labelled.
	Children []NonTerminal // required non-terminal of each operand, in operand order.
	Cost     int
	Template string
	Custom   CustomPrinter

	// IsTwoAddress marks a rule whose target form is destructive: the
	// result is written into operand A's register, so operand A's value
	// does not survive the instruction unless it is live again afterward
	// (spec.md §4.5, "Two-address rules (a property of the target)"). The
	// register allocator reads this off the chosen ir.Instruction.Rule
	// (via ir.Instruction.TwoAddress) to decide which defs may coalesce
	// with their first operand.
	IsTwoAddress bool
}

// Grammar is the full rule table for one target.
type Grammar struct {
	Rules []Rule
	// byOp indexes non-chain rules whose Op matches, for fast lookup
	// during labeling.
	byOp map[ir.Op][]int
	// chains indexes chain rules by the NT they consume.
	chains map[NonTerminal][]int
}

// Build indexes rules into a Grammar ready for labeling.
func Build(rules []Rule) *Grammar {
	g := &Grammar{Rules: rules, byOp: map[ir.Op][]int{}, chains: map[NonTerminal][]int{}}
	for i, r := range rules {
		if r.IsChain {
			g.chains[r.FromNT] = append(g.chains[r.FromNT], i)
		} else {
			g.byOp[r.Op] = append(g.byOp[r.Op], i)
		}
	}
	return g
}
