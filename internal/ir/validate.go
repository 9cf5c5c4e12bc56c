package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ---------------------
// ----- Functions -----
// ---------------------

// Validate checks property 1 of spec.md §8 for every function in m: vregs
// dense in [0, vregCount), every branch target exists, every Arg sits in
// a contiguous run ending at a Call/CallV, and every Phi payload has as
// many columns as the block has predecessors (checked by the caller once
// a CFG is available; Validate alone only checks the column/target-length
// agreement, since predecessor counts are a CFG property).
func (m *Module) Validate() error {
	for _, f := range m.Functions {
		if err := f.Validate(); err != nil {
			return errors.Wrapf(err, "function %s", f.Name)
		}
	}
	return nil
}

// Validate checks f in isolation; see Module.Validate.
func (f *Function) Validate() error {
	labels := map[int]bool{}
	for _, in := range f.Instrs {
		if in.Op == OpLabel {
			if labels[in.Label] {
				return fmt.Errorf("duplicate label%d", in.Label)
			}
			labels[in.Label] = true
		}
	}

	maxVreg := Vreg(-1)
	seen := map[Vreg]bool{}
	track := func(v Vreg) error {
		if v == NoVreg {
			return nil
		}
		if v < 0 || int(v) >= f.vregCount {
			return fmt.Errorf("vreg %%%d out of dense range [0,%d)", v, f.vregCount)
		}
		if v > maxVreg {
			maxVreg = v
		}
		return nil
	}

	inArgRun := false
	argRunCallIdx := -1
	for i, in := range f.Instrs {
		if r, ok := in.Defines(); ok {
			if seen[r] {
				return fmt.Errorf("instruction %d: vreg %%%d defined more than once", i, r)
			}
			seen[r] = true
			if err := track(r); err != nil {
				return err
			}
		}
		for _, u := range in.Uses() {
			if err := track(u); err != nil {
				return err
			}
		}

		switch in.Op {
		case OpJcc, OpJnc, OpJmp:
			if !labels[in.Label] {
				return fmt.Errorf("instruction %d: branch target label%d does not exist", i, in.Label)
			}
		case OpArg:
			if !inArgRun {
				inArgRun = true
				argRunCallIdx = in.ArgIndex
			} else if in.ArgIndex != argRunCallIdx {
				return fmt.Errorf("instruction %d: Arg run interrupted before reaching call %d", i, argRunCallIdx)
			}
			continue
		case OpCall, OpCallV:
			inArgRun = false
			continue
		}
		if inArgRun {
			return fmt.Errorf("instruction %d: Arg run for call %d not immediately followed by its Call/CallV", i, argRunCallIdx)
		}

		if in.Op == OpLabel && in.Phi != nil {
			for j, col := range in.Phi.Sources {
				if len(col) != len(in.Phi.Targets) {
					return fmt.Errorf("label%d: phi predecessor column %d has %d sources, want %d",
						in.Label, j, len(col), len(in.Phi.Targets))
				}
			}
		}
	}
	return nil
}
