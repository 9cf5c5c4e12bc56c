// io.go provides source-file reading and a streaming output writer, ported
// from vslc's util/io.go. The writer runs on its own goroutine so that
// per-function assembly text can be appended as soon as it is generated
// (relevant once the emitter is parallelised across functions) without
// serialising callers on file I/O.
package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ReadSource concatenates every input file named in opt.Inputs, in order,
// separated by a newline. A single logical source unit is all the
// frontend ever sees; file boundaries are not observable past this point.
func ReadSource(opt Options) (string, error) {
	var sb strings.Builder
	for i, path := range opt.Inputs {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "reading input %q", path)
		}
		sb.Write(b)
		if i < len(opt.Inputs)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// Writer accepts textual assembly fragments and appends them, in the order
// received, to either an *os.File or standard output.
type Writer struct {
	ch   chan string
	done chan struct{}
}

// ListenWrite starts the background writer goroutine. w may be nil, in
// which case output is written to os.Stdout.
func ListenWrite(w io.Writer) *Writer {
	if w == nil {
		w = os.Stdout
	}
	wr := &Writer{
		ch:   make(chan string, 64),
		done: make(chan struct{}),
	}
	go func() {
		defer close(wr.done)
		for s := range wr.ch {
			_, _ = io.WriteString(w, s)
		}
	}()
	return wr
}

// Write formats and enqueues a fragment for output.
func (w *Writer) Write(format string, args ...interface{}) {
	w.ch <- fmt.Sprintf(format, args...)
}

// WriteString enqueues s verbatim, with no formatting.
func (w *Writer) WriteString(s string) {
	w.ch <- s
}

// Label enqueues a one-line NASM label.
func (w *Writer) Label(name string) {
	w.Write("%s:\n", name)
}

// Ins0 enqueues a zero-operand instruction line.
func (w *Writer) Ins0(op string) {
	w.Write("\t%s\n", op)
}

// Ins1 enqueues a one-operand instruction line.
func (w *Writer) Ins1(op, a string) {
	w.Write("\t%s\t%s\n", op, a)
}

// Ins2 enqueues a two-operand instruction line, NASM dest-then-source order.
func (w *Writer) Ins2(op, dst, src string) {
	w.Write("\t%s\t%s, %s\n", op, dst, src)
}

// Close signals no more writes will occur and blocks until the background
// goroutine has flushed everything queued.
func (w *Writer) Close() {
	close(w.ch)
	<-w.done
}
