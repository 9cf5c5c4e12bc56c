package regalloc

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"utcc/internal/cfg"
	"utcc/internal/ir"
	"utcc/internal/regfile"
)

// maxIterations bounds the renumber/build/coalesce/simplify/select loop
// spec.md §4.6 says must terminate: each spilled iteration adds at least
// one mandatory spill slot to the interference graph's pressure, so the
// loop is guaranteed to converge well under this bound in practice.
const maxIterations = 10

// Allocate runs the full Chaitin-Briggs pipeline over f, iterating
// renumber->build->coalesce->simplify->select and, whenever Select
// leaves ranges uncoloured, rewriting the function with explicit
// spill/reload instructions before starting the next iteration. It
// returns the final Result once every range in the last iteration
// coloured cleanly.
func Allocate(rf *regfile.File, f *ir.Function) (*Result, error) {
	k := rf.K()

	for iter := 0; iter < maxIterations; iter++ {
		c, err := cfg.Build(f)
		if err != nil {
			return nil, errors.Wrapf(err, "regalloc: %s", f.Name)
		}
		c, err = cfg.EliminateDeadBlocks(c)
		if err != nil {
			return nil, errors.Wrapf(err, "regalloc: %s", f.Name)
		}

		st := renumber(rf, f, c)
		g := st.build()
		for {
			if st.coalesce(g, k) == 0 {
				break
			}
		}

		stack := st.simplify(g, k)
		spilled := st.selectColors(g, stack)

		if len(spilled) == 0 {
			return st.writeBack(), nil
		}

		logrus.WithFields(logrus.Fields{
			"function":  f.Name,
			"iteration": iter,
			"spilled":   len(spilled),
		}).Debug("regalloc: inserting spill code and restarting")

		insertSpillCode(f, st, spilled)
	}

	return nil, errors.Errorf("regalloc: %s did not converge within %d iterations", f.Name, maxIterations)
}

// insertSpillCode rewrites f in place: every spilled live range's
// members get a dedicated stack slot, a LocalAddr+Load immediately
// before each use and a LocalAddr+Store immediately after each
// definition, per spec.md §4.6's spill-code-insertion step. The next
// Renumber pass picks up the fresh vregs these reload/store pairs
// introduce; spilled addresses are never themselves coalesced into
// the range they spilled, since they are minted fresh every iteration.
func insertSpillCode(f *ir.Function, st *state, spilled []LiveRangeId) {
	spillSlot := map[ir.Vreg]int{}
	spillSize := map[ir.Vreg]ir.Size{}
	for _, id := range spilled {
		size := sizeOfRange(st, id)
		slot := f.AddLocal(size, 1, "spill")
		for v := range st.ranges[id].Members {
			spillSlot[v] = slot
			spillSize[v] = size
		}
	}

	original := f.Instrs
	out := make([]ir.Instruction, 0, len(original))
	for _, in := range original {
		for _, u := range in.Uses() {
			if slot, ok := spillSlot[u]; ok {
				size := spillSize[u]
				addr := f.NewVreg()
				fresh := f.NewVreg()
				out = append(out,
					ir.Instruction{Op: ir.OpLocalAddr, Size: ir.SPtr, Result: addr, Slot: slot},
					ir.Instruction{Op: ir.OpLoad, Size: size, Result: fresh, A: addr},
				)
				replaceUse(&in, u, fresh)
			}
		}
		out = append(out, in)

		if r, ok := in.Defines(); ok {
			if slot, ok := spillSlot[r]; ok {
				size := spillSize[r]
				addr := f.NewVreg()
				out = append(out,
					ir.Instruction{Op: ir.OpLocalAddr, Size: ir.SPtr, Result: addr, Slot: slot},
					ir.Instruction{Op: ir.OpStore, Size: size, A: addr, B: r},
				)
			}
		}
	}
	f.Instrs = out
}

func sizeOfRange(st *state, id LiveRangeId) ir.Size {
	for v := range st.ranges[id].Members {
		for _, in := range st.f.Instrs {
			if r, ok := in.Defines(); ok && r == v {
				return in.Size
			}
		}
	}
	return ir.S64
}

// replaceUse rewrites in's operand(s) matching old to fresh; an
// instruction may use the same vreg in both A and B (e.g. x + x).
func replaceUse(in *ir.Instruction, old, fresh ir.Vreg) {
	if in.A == old {
		in.A = fresh
	}
	if in.B == old {
		in.B = fresh
	}
}
