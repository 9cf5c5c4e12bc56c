// Package backend drives one module's functions through the
// mem2reg -> BURS selection -> register allocation -> emission pipeline
// and assembles the result into one NASM source text. Grounded on
// vslc's src/backend/asm.go (same package name, same
// GenerateAssembler entry point) and on vslc's ir/optimise.go for the
// per-function parallel fan-out: functions compile independently and
// in parallel when util.Options.Threads > 1, matching spec.md §5's
// rule that only cross-function work may parallelise.
package backend

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"utcc/internal/emit"
	"utcc/internal/ir"
	"utcc/internal/mem2reg"
	"utcc/internal/regalloc"
	"utcc/internal/regfile"
	"utcc/internal/selector"
	"utcc/internal/util"
)

// GenerateAssembler compiles every function in mod and returns the
// complete NASM source text for the module.
func GenerateAssembler(opt util.Options, mod *ir.Module) (string, error) {
	rf := regfile.NewAMD64()
	grammar := selector.AMD64Grammar()

	out := make([]string, len(mod.Functions))
	errs := util.NewPerror(len(mod.Functions))

	compileOne := func(i int) {
		text, err := compileFunction(opt, rf, grammar, mod.Functions[i])
		if err != nil {
			errs.Append(errors.Wrapf(err, "function %s", mod.Functions[i].Name))
			return
		}
		out[i] = text
	}

	t := opt.Threads
	l := len(mod.Functions)
	if t > l {
		t = l
	}
	if t <= 1 {
		for i := range mod.Functions {
			compileOne(i)
		}
	} else {
		wg := sync.WaitGroup{}
		n := l / t
		res := l % t
		start := 0
		end := n
		wg.Add(t)
		for w := 0; w < t; w++ {
			if w < res {
				end++
			}
			go func(start, end int) {
				defer wg.Done()
				for i := start; i < end; i++ {
					compileOne(i)
				}
			}(start, end)
			start = end
			end += n
		}
		wg.Wait()
	}

	if errs.Len() > 0 {
		for _, e := range errs.Errors() {
			logrus.WithError(e).Error("backend: function compilation failed")
		}
		return "", errors.Errorf("backend: %d of %d functions failed to compile", errs.Len(), len(mod.Functions))
	}

	var sb strings.Builder
	sb.WriteString(externDecls(mod))
	sb.WriteString(emit.Globals(mod))
	sb.WriteString("section .text\n")
	for _, text := range out {
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// compileFunction runs the single-function pipeline sequentially, per
// spec.md §5's "strictly single-threaded per function" rule: mem2reg,
// BURS labeling/reduction, register allocation (Briggs by default, the
// simple reference allocator at -O0, matching spec.md §4.7's "used to
// validate the IR and emitter independently of the optimising
// allocator"), then NASM emission.
func compileFunction(opt util.Options, rf *regfile.File, grammar *selector.Grammar, f *ir.Function) (string, error) {
	if _, err := mem2reg.Promote(f); err != nil {
		return "", errors.Wrap(err, "mem2reg")
	}

	af := selector.Analyze(f)
	labels, err := selector.Label(grammar, af)
	if err != nil {
		return "", errors.Wrap(err, "burs labeling")
	}
	sres := selector.Reduce(grammar, af, labels)

	var alloc *regalloc.Result
	if opt.Optimise == 0 {
		alloc, err = regalloc.SimpleAllocate(rf, f)
	} else {
		alloc, err = regalloc.Allocate(rf, f)
	}
	if err != nil {
		return "", errors.Wrap(err, "register allocation")
	}

	text, err := emit.Function(rf, grammar, f, af, sres, alloc)
	if err != nil {
		return "", errors.Wrap(err, "emission")
	}
	return text, nil
}

// externDecls renders `extern` directives for every called symbol not
// defined in this module, sorted for deterministic output.
func externDecls(mod *ir.Module) string {
	defined := map[string]bool{}
	for _, f := range mod.Functions {
		defined[f.Name] = true
	}
	externs := map[string]bool{}
	for _, f := range mod.Functions {
		for i := range f.Instrs {
			in := &f.Instrs[i]
			if in.Op == ir.OpCall && in.Extern && !defined[in.Sym] {
				externs[in.Sym] = true
			}
		}
	}
	if len(externs) == 0 {
		return ""
	}
	names := make([]string, 0, len(externs))
	for n := range externs {
		names = append(names, n)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, n := range names {
		sb.WriteString("extern " + n + "\n")
	}
	return sb.String()
}
