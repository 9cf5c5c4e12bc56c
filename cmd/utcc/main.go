// Command utcc is the driver: it resolves command-line flags into a
// util.Options, orchestrates the cpp/compile/nasm/gcc pipeline per
// spec.md §6, and exits with the status code §7 specifies (0 success,
// 1 any stage failed, 2 internal inconsistency during BURS reduction).
//
// Grounded on vslc's src/main.go (a run(opt) function wrapping the
// stage sequence, flag parsing separated into util, a deferred writer
// close), generalised from vslc's hand-rolled os.Args scanner to
// github.com/spf13/pflag for long-flag parsing at this outermost
// layer only, per SPEC_FULL.md §4 ("internal/util.Options remains the
// same struct the rest of the core consumes, so every internal
// package is unaffected").
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"utcc/internal/backend"
	"utcc/internal/ir"
	"utcc/internal/util"
)

// exitInternal is the code reserved for internal inconsistencies
// surfaced during BURS reduction or register allocation, per
// spec.md §7 ("log, exit the process with code 2").
const exitInternal = 2

func main() {
	opt, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "utcc:", err)
		os.Exit(1)
	}

	if err := run(opt); err != nil {
		logrus.WithError(err).Error("utcc: compilation failed")
		if errors.Is(err, errInternal) {
			os.Exit(exitInternal)
		}
		os.Exit(1)
	}
}

// errInternal wraps an error that originates from an internal
// inconsistency (as opposed to a user/sub-process error), so main can
// tell the two exit codes apart without string matching.
var errInternal = errors.New("internal inconsistency")

// parseFlags builds a util.Options from argv using pflag, then applies
// util.Options.Resolve()'s environment-driven defaults and stage/input
// validation.
func parseFlags(argv []string) (util.Options, error) {
	fs := pflag.NewFlagSet("utcc", pflag.ContinueOnError)

	out := fs.StringP("output", "o", "", "output file path")
	preproc := fs.BoolP("preprocess-only", "E", false, "preprocess only")
	asmOnly := fs.BoolP("assembly-only", "S", false, "compile to assembly only")
	objOnly := fs.BoolP("compile-only", "c", false, "assemble to object, no link")
	threads := fs.Int("threads", 0, "parallelism across independent functions (0 = autodetect)")
	verbose := fs.BoolP("verbose", "v", false, "verbose diagnostics")
	tokenStream := fs.Bool("ts", false, "print the token stream and exit")
	tempDir := fs.String("temp-dir", "", "scratch directory (overrides UTCC_TEMP_DIR)")
	includeDir := fs.String("include-dir", "", "system include directory (overrides UTCC_INCLUDE_DIR)")

	// -O0..-O3 are accepted: no optimisation passes are implemented
	// (Non-goal), but a real-feeling gcc/cpp-style driver must not choke
	// on them. -O0 selects the simple reference allocator per
	// spec.md §4.7; -O1..-O3 are otherwise equivalent and pass through
	// to the Briggs allocator.
	oFlags := make(map[string]*bool, 4)
	for _, level := range []string{"0", "1", "2", "3"} {
		usage := "optimisation level (accepted; selects the Briggs allocator)"
		if level == "0" {
			usage = "optimisation level (accepted; selects the reference allocator)"
		}
		oFlags[level] = fs.Bool("O"+level, false, usage)
	}

	// pflag reads "-O0" as the shorthand -O followed by more shorthands,
	// so each exact "-O<level>" argument is rewritten to "--O<level>".
	args := make([]string, len(argv))
	for i, a := range argv {
		if len(a) == 3 && a[0] == '-' && a[1] == 'O' && a[2] >= '0' && a[2] <= '3' {
			a = "-" + a
		}
		args[i] = a
	}
	if err := fs.Parse(args); err != nil {
		return util.Options{}, err
	}

	opt := util.Options{
		Inputs:      fs.Args(),
		Out:         *out,
		Threads:     *threads,
		Verbose:     *verbose,
		TokenStream: *tokenStream,
		TempDir:     *tempDir,
		IncludeDir:  *includeDir,
		Optimise:    1,
	}
	for level, set := range oFlags {
		if *set {
			opt.Optimise = digitToInt(level)
		}
	}
	switch {
	case *preproc:
		opt.Stage = util.StagePreproc
	case *asmOnly:
		opt.Stage = util.StageAsm
	case *objOnly:
		opt.Stage = util.StageObject
	default:
		opt.Stage = util.StageFull
	}

	if opt.Threads == 0 {
		opt.Threads = util.DefaultThreads()
	}
	if err := opt.Resolve(); err != nil {
		return util.Options{}, err
	}
	if opt.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return opt, nil
}

// run drives every input file through the stages its inferred start and
// requested stop demand, stopping at the first failing stage per input
// per spec.md §7 ("the stage reports failure without attempting further
// stages for that input").
func run(opt util.Options) error {
	for _, input := range opt.Inputs {
		start := util.StageOf(input)
		stop := opt.Stage
		if err := compileOne(opt, input, start, stop); err != nil {
			return errors.Wrapf(err, "input %s", input)
		}
	}
	return nil
}

// compileOne carries a single input file through preprocessing, code
// generation, assembly and linking. start (inferred from input's suffix
// by util.StageOf) says which of those phases the input has already been
// through and so which to skip; stop (the -E/-S/-c flag, or util.StageFull
// for the default full pipeline) says where to stop early. These are
// independent: a bare .c input with no flags must still run the full
// pipeline, even though util.StageOf("foo.c") returns the same
// util.StagePreproc value -E uses to mean "stop after preprocessing".
func compileOne(opt util.Options, input string, start, stop util.Stage) error {
	ppOut := input
	if start == util.StagePreproc {
		var err error
		ppOut, err = preprocess(opt, input)
		if err != nil {
			return errors.Wrap(err, "preprocess")
		}
	}
	if stop == util.StagePreproc {
		text, err := os.ReadFile(ppOut)
		if err != nil {
			return errors.Wrap(err, "preprocess")
		}
		return writeOutput(opt, string(text))
	}

	var asmText string
	switch start {
	case util.StagePreproc, util.StageAsm:
		// The evaluator (AST -> ir.Module) is an external collaborator,
		// per SPEC_FULL.md §1: this driver only has a place to call it.
		// Without a wired frontend, generateModule must be supplied the
		// *ir.Module another stage already parsed and lowered.
		mod, err := generateModule(ppOut)
		if err != nil {
			return errors.Wrap(err, "ir generation")
		}
		if err := mod.Validate(); err != nil {
			return errors.Wrap(errInternal, err.Error())
		}
		asmText, err = backend.GenerateAssembler(opt, mod)
		if err != nil {
			return errors.Wrap(errInternal, err.Error())
		}
	case util.StageObject:
		// Input is already hand-written or previously emitted assembly
		// text (.s/.asm): codegen is skipped, it goes straight to nasm.
		data, err := os.ReadFile(input)
		if err != nil {
			return errors.Wrap(err, "read assembly")
		}
		asmText = string(data)
	default:
		// start == util.StageFull: input is already an object file: only
		// linking remains.
	}
	if stop == util.StageAsm {
		return writeOutput(opt, asmText)
	}

	objPath := input
	if start != util.StageFull {
		asmPath, err := stageTempFile(opt, ".s", asmText)
		if err != nil {
			return err
		}
		objPath, err = assemble(opt, asmPath)
		if err != nil {
			return errors.Wrap(err, "assemble")
		}
	}
	if stop == util.StageObject {
		return copyToOutput(opt, objPath, input)
	}
	return link(opt, objPath, input)
}

// generateModule is the seam for the external AST-to-IR evaluator.
// This package does not parse C; callers feeding object/assembly
// stages through compileOne never reach this path, and a full
// compile wires a real evaluator in here.
func generateModule(path string) (*ir.Module, error) {
	return nil, errors.Errorf("no IR evaluator wired for %s", path)
}

// preprocess invokes cpp -nostdinc with the two -I search paths
// spec.md §6 specifies, writing its output to a scratch file.
func preprocess(opt util.Options, input string) (string, error) {
	out, err := stageTempPath(opt, ".ppc")
	if err != nil {
		return "", err
	}
	cmd := exec.Command("cpp", "-nostdinc", "-I", opt.IncludeDir, "-I", ".", "-o", out, input)
	if err := runSub(cmd); err != nil {
		return "", err
	}
	return out, nil
}

// assemble invokes nasm -felf64 on an assembly source file.
func assemble(opt util.Options, asmPath string) (string, error) {
	out, err := stageTempPath(opt, ".o")
	if err != nil {
		return "", err
	}
	cmd := exec.Command("nasm", "-felf64", asmPath, "-o", out)
	if err := runSub(cmd); err != nil {
		return "", err
	}
	return out, nil
}

// link invokes gcc -m64 -fPIC to produce the final executable and
// marks it executable, since gcc's own umask-derived mode may not set
// every execute bit callers expect.
func link(opt util.Options, objPath, input string) error {
	out := opt.Out
	if out == "" {
		out = "a.out"
	}
	cmd := exec.Command("gcc", "-m64", "-fPIC", objPath, "-o", out)
	if err := runSub(cmd); err != nil {
		return errors.Wrap(err, "link")
	}
	return util.MarkExecutable(out)
}

// runSub runs cmd, relaying its stderr into the diagnostic stream on
// failure per spec.md §6's "sub-process failures propagate their
// stderr into the diagnostic stream".
func runSub(cmd *exec.Cmd) error {
	out, err := cmd.CombinedOutput()
	if err != nil {
		logrus.WithField("cmd", cmd.Args).WithField("output", string(out)).Error("utcc: sub-process failed")
		return errors.Wrapf(err, "%s: %s", cmd.Args[0], out)
	}
	return nil
}

func stageTempPath(opt util.Options, suffix string) (string, error) {
	f, err := util.TempFile(opt.TempDir, "utcc-*"+suffix)
	if err != nil {
		return "", err
	}
	path := f.Name()
	return path, f.Close()
}

func stageTempFile(opt util.Options, suffix, content string) (string, error) {
	path, err := stageTempPath(opt, suffix)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func writeOutput(opt util.Options, content string) error {
	if opt.Out == "" || opt.Out == "-" {
		_, err := fmt.Print(content)
		return err
	}
	return os.WriteFile(opt.Out, []byte(content), 0644)
}

func copyToOutput(opt util.Options, path, input string) error {
	out := opt.Out
	if out == "" {
		out = defaultObjectName(input)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0644)
}

// digitToInt converts a single decimal digit string to its integer
// value; used only for the fixed "0".."3" optimisation-level set above.
func digitToInt(digit string) int {
	return int(digit[0] - '0')
}

// defaultObjectName derives gcc's default -c output name: the input's
// basename with its suffix replaced by .o.
func defaultObjectName(input string) string {
	i := len(input)
	for i > 0 && input[i-1] != '.' {
		i--
	}
	if i == 0 {
		return input + ".o"
	}
	return input[:i] + "o"
}
