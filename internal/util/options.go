// Package util provides cross-cutting helpers shared by every compilation
// stage: command line options, diagnostic collection, label generation and
// a parallel-safe stack, ported from the small-compiler idiom of keeping
// this glue in one narrow package rather than scattering it.
package util

import (
	"fmt"
	"os"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Stage identifies how far the driver should carry an input file.
type Stage int

const (
	StageFull    Stage = iota // Compile all the way to a linked executable.
	StagePreproc              // -E: preprocess only.
	StageAsm                  // -S: compile to assembly.
	StageObject               // -c: assemble to object, no link.
)

// Arch identifies the target register/ABI model. Only Amd64 is wired into
// internal/emit; the rest of the core is parameterised over internal/regfile
// so additional targets only need a register file and an emitter.
type Arch int

const (
	Amd64 Arch = iota
)

// Options carries every flag that influences compilation, independent of
// how those flags were parsed (cmd/utcc uses pflag; internal packages only
// ever see this struct).
type Options struct {
	Inputs      []string // Input file paths.
	Out         string   // Output file path ("-o").
	Stage       Stage
	Arch        Arch
	Threads     int  // Parallelism across independent functions; 1 disables it.
	Verbose     bool
	TokenStream bool // -ts: print the token stream and exit (frontend collaborator flag, passed through).
	Optimise    int  // -O0..-O3; no optimisation passes run (Non-goal), but -O0 selects the simple reference allocator over Briggs (see spec.md §4.7).
	TempDir     string
	IncludeDir  string
}

// ---------------------
// ----- Constants -----
// ---------------------

// EnvTempDir and EnvIncludeDir name the environment variables that override
// the driver's default scratch and include directories.
const (
	EnvTempDir    = "UTCC_TEMP_DIR"
	EnvIncludeDir = "UTCC_INCLUDE_DIR"
)

// ---------------------
// ----- Functions -----
// ---------------------

// Resolve fills in directory defaults from the environment when the caller
// did not set them explicitly, and validates the stage/input-count rule: a
// stage flag (-E, -S, -c) combined with more than one input is an error.
func (o *Options) Resolve() error {
	if o.TempDir == "" {
		if d := os.Getenv(EnvTempDir); d != "" {
			o.TempDir = d
		} else {
			o.TempDir = os.TempDir()
		}
	}
	if o.IncludeDir == "" {
		if d := os.Getenv(EnvIncludeDir); d != "" {
			o.IncludeDir = d
		} else {
			o.IncludeDir = "/usr/include"
		}
	}
	if o.Stage != StageFull && len(o.Inputs) > 1 {
		return fmt.Errorf("-E, -S and -c require exactly one input file, got %d", len(o.Inputs))
	}
	if o.Threads < 1 {
		o.Threads = 1
	}
	return nil
}

// StageOf infers the compilation stage implied by an input file's suffix,
// per spec.md §6: .c sources start at preprocessing, .ppc is already
// preprocessed, .s/.asm is already assembly, anything else is an object.
func StageOf(path string) Stage {
	n := len(path)
	switch {
	case n >= 2 && path[n-2:] == ".c":
		return StagePreproc
	case n >= 4 && path[n-4:] == ".ppc":
		return StageAsm
	case n >= 2 && path[n-2:] == ".s":
		return StageObject
	case n >= 4 && path[n-4:] == ".asm":
		return StageObject
	default:
		return StageFull
	}
}
