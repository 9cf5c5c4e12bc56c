package emit

import (
	"strconv"
	"strings"

	"utcc/internal/regfile"
)

// prologue renders the entry sequence: save rbp, establish the new
// frame pointer, subtract the frame size, then push every callee-saved
// register the allocator actually used. Mirrors vslc's
// backend/arm/function.go genFunction stack-adjust-then-save shape,
// adapted to x86-64's push-based callee-save convention instead of
// aarch64's paired stp.
func prologue(rf *regfile.File, fr *Frame) string {
	var sb strings.Builder
	sb.WriteString("\tpush\trbp\n")
	sb.WriteString("\tmov\trbp, rsp\n")
	if fr.TotalSize > 0 {
		sb.WriteString("\tsub\trsp, " + strconv.Itoa(fr.TotalSize) + "\n")
	}
	for _, id := range fr.CalleeSaved {
		sb.WriteString("\tpush\t" + rf.Get(id).String() + "\n")
	}
	return sb.String()
}

// epilogue renders the shared `.end` landing label every non-terminal
// Ret jumps to: pop the callee-saved registers in reverse order, tear
// down the frame and return.
func epilogue(rf *regfile.File, fr *Frame) string {
	var sb strings.Builder
	sb.WriteString(".end:\n")
	for i := len(fr.CalleeSaved) - 1; i >= 0; i-- {
		sb.WriteString("\tpop\t" + rf.Get(fr.CalleeSaved[i]).String() + "\n")
	}
	sb.WriteString("\tleave\n")
	sb.WriteString("\tret\n")
	return sb.String()
}

// callAlignPad returns the padding (0 or 8) needed before a call so
// that rsp is 16-byte aligned at the call instruction, given the
// current frame size and the number of stack-passed arguments pushed
// for this call.
func callAlignPad(fr *Frame, stackArgs int) int {
	used := fr.TotalSize + 8*len(fr.CalleeSaved) + 16 /* return address + pushed rbp */ + 8*stackArgs
	if used%stackAlign != 0 {
		return 8
	}
	return 0
}
