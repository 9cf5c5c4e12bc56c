// label.go provides thread-safe generation of unique assembly-local labels,
// ported from vslc's util/label.go: .L-prefixed labels with no
// corresponding IR label id, numbered independently per LabelKind. The
// emitter in internal/emit does not use it; its shared epilogue label is
// the fixed `.end`.
package util

import (
	"fmt"
	"sync"
)

// LabelKind identifies the purpose of a generated label, purely for the
// readability of the emitted assembly.
type LabelKind int

const (
	LabelEnd      LabelKind = iota // Function epilogue landing pad.
	LabelSpill                     // Spill/reload fix-up blocks.
	LabelPhiMove                   // Memory-to-memory phi resolution blocks.
	LabelAlignPad                  // Call-site stack alignment padding.
)

var labelPrefixes = [...]string{
	LabelEnd:      ".Lend",
	LabelSpill:    ".Lspill",
	LabelPhiMove:  ".Lphi",
	LabelAlignPad: ".Lalign",
}

// Labeler hands out unique, monotonically increasing labels of a given
// LabelKind. It is safe for concurrent use by the per-function worker
// goroutines spawned during parallel register allocation.
type Labeler struct {
	mu      sync.Mutex
	indices [len(labelPrefixes)]int
}

// New returns a label of kind k, unique within l's lifetime.
func (l *Labeler) New(k LabelKind) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.indices[k]
	l.indices[k]++
	return fmt.Sprintf("%s_%03d", labelPrefixes[k], n)
}
