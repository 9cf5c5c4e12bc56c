package util

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerrorIgnoresNilAndCollectsInOrder(t *testing.T) {
	p := NewPerror(0)
	p.Append(nil)
	p.Append(errors.New("first"))
	p.Append(nil)
	p.Append(errors.New("second"))

	assert.Equal(t, 2, p.Len())
	errs := p.Errors()
	require.Len(t, errs, 2)
	assert.EqualError(t, errs[0], "first")
	assert.EqualError(t, errs[1], "second")
}

func TestPerrorIsSafeForConcurrentAppend(t *testing.T) {
	p := NewPerror(100)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Append(errors.New("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, p.Len())
}

func TestStackIsLIFO(t *testing.T) {
	var s Stack
	assert.Equal(t, 0, s.Size())
	assert.Nil(t, s.Pop())
	assert.Nil(t, s.Peek())

	s.Push(1)
	s.Push(2)
	s.Push(3)
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, 3, s.Peek())
	assert.Equal(t, 3, s.Pop())
	assert.Equal(t, 2, s.Pop())
	assert.Equal(t, 1, s.Size())
	assert.Equal(t, 1, s.Pop())
	assert.Nil(t, s.Pop())
}

func TestStackPushIgnoresNil(t *testing.T) {
	var s Stack
	s.Push(nil)
	assert.Equal(t, 0, s.Size())
}

func TestLabelerProducesUniqueMonotonicLabels(t *testing.T) {
	var l Labeler
	a := l.New(LabelEnd)
	b := l.New(LabelEnd)
	c := l.New(LabelSpill)

	assert.Equal(t, ".Lend_000", a)
	assert.Equal(t, ".Lend_001", b)
	assert.Equal(t, ".Lspill_000", c, "each LabelKind counts independently")
}

func TestOptionsResolveFillsDefaultsAndValidatesStageArity(t *testing.T) {
	o := Options{Inputs: []string{"a.c"}, Stage: StageFull}
	require.NoError(t, o.Resolve())
	assert.NotEmpty(t, o.TempDir)
	assert.NotEmpty(t, o.IncludeDir)
	assert.Equal(t, 1, o.Threads)

	bad := Options{Inputs: []string{"a.c", "b.c"}, Stage: StageAsm}
	assert.Error(t, bad.Resolve(), "-S with more than one input must be rejected")
}

func TestStageOfInfersFromSuffix(t *testing.T) {
	assert.Equal(t, StagePreproc, StageOf("foo.c"))
	assert.Equal(t, StageAsm, StageOf("foo.ppc"))
	assert.Equal(t, StageObject, StageOf("foo.s"))
	assert.Equal(t, StageObject, StageOf("foo.asm"))
	assert.Equal(t, StageFull, StageOf("foo.o"))
}

func TestReadSourceConcatenatesInputsInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.c")
	b := filepath.Join(dir, "b.c")
	require.NoError(t, os.WriteFile(a, []byte("int a;"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("int b;"), 0o644))

	src, err := ReadSource(Options{Inputs: []string{a, b}})
	require.NoError(t, err)
	assert.Equal(t, "int a;\nint b;", src)
}

func TestWriterFlushesEveryFragmentInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.asm")
	f, err := os.Create(path)
	require.NoError(t, err)

	w := ListenWrite(f)
	w.Label("main")
	w.Ins1("push", "rbp")
	w.Ins2("mov", "rbp", "rsp")
	w.WriteString("; done\n")
	w.Close()
	require.NoError(t, f.Close())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "main:\n\tpush\trbp\n\tmov\trbp, rsp\n; done\n", string(out))
}
