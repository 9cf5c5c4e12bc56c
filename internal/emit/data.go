package emit

import (
	"fmt"
	"strings"

	"utcc/internal/ir"
)

// Globals renders the `.data`/`.bss` sections for a module's globals,
// per spec.md §4.8: initialised globals carry an explicit `align`
// directive and their constant value, uninitialised ("common") symbols
// live in `.bss` sized with `resb`.
func Globals(mod *ir.Module) string {
	var data, bss strings.Builder
	for _, g := range mod.Globals {
		if g.Init != nil {
			data.WriteString(fmt.Sprintf("%s:\n\talign\t%d\n\tdq\t%d\n", g.Name, g.Align, *g.Init))
		} else {
			bss.WriteString(fmt.Sprintf("%s:\n\tresb\t%d\n", g.Name, g.Size.Bytes()))
		}
	}

	var sb strings.Builder
	if data.Len() > 0 {
		sb.WriteString("section .data\n")
		sb.WriteString(data.String())
	}
	if bss.Len() > 0 {
		sb.WriteString("section .bss\n")
		sb.WriteString(bss.String())
	}
	return sb.String()
}

// Strings renders one function's interned string-literal table as
// `__string_<func>_<N>: db ..., 0` entries, named by StringSymbol. The
// names are per-function symbols, not `.__stringN` local labels.
func Strings(f *ir.Function) string {
	var sb strings.Builder
	if len(f.Strings) > 0 {
		sb.WriteString("section .data\n")
	}
	for i, s := range f.Strings {
		sb.WriteString(fmt.Sprintf("%s:\n\tdb\t%s, 0\n", StringSymbol(f, i), nasmStringLiteral(s)))
	}
	return sb.String()
}

// StringSymbol names the data symbol for f's i-th interned string.
func StringSymbol(f *ir.Function, i int) string {
	return fmt.Sprintf("__string_%s_%d", f.Name, i)
}

// nasmStringLiteral renders s as a NASM double-quoted byte sequence,
// splitting on any byte NASM can't place inside a quoted string.
func nasmStringLiteral(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c < 0x20 || c > 0x7e {
			sb.WriteString(fmt.Sprintf("\", %d, \"", c))
			continue
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
	return sb.String()
}
