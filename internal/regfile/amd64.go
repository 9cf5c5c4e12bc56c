package regfile

// ----------------------------
// ----- Constants -----------
// ----------------------------

// Register ids for the x86-64 integer file, fixed and stable: callers may
// hard-code these ids (e.g. the emitter's prologue code) rather than
// looking registers up by name.
const (
	RAX = iota
	RBX
	RCX
	RDX
	RSI
	RDI
	RBP
	RSP
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// NewAMD64 returns the physical register file for the x86-64 target,
// per spec.md §6's ABI subset: first six integer/pointer arguments in
// rdi, rsi, rcx, rdx, r8, r9 (the spec's deliberately source-matching
// order, not System V's); return in rax; callee-saved rbx, r12-r15, rbp.
func NewAMD64() *File {
	regs := []Register{
		{Id: RAX, Name8: "al", Name16: "ax", Name32: "eax", Name64: "rax"},
		{Id: RBX, Name8: "bl", Name16: "bx", Name32: "ebx", Name64: "rbx"},
		{Id: RCX, Name8: "cl", Name16: "cx", Name32: "ecx", Name64: "rcx"},
		{Id: RDX, Name8: "dl", Name16: "dx", Name32: "edx", Name64: "rdx"},
		{Id: RSI, Name8: "sil", Name16: "si", Name32: "esi", Name64: "rsi"},
		{Id: RDI, Name8: "dil", Name16: "di", Name32: "edi", Name64: "rdi"},
		{Id: RBP, Name8: "bpl", Name16: "bp", Name32: "ebp", Name64: "rbp"},
		{Id: RSP, Name8: "spl", Name16: "sp", Name32: "esp", Name64: "rsp"},
		{Id: R8, Name8: "r8b", Name16: "r8w", Name32: "r8d", Name64: "r8"},
		{Id: R9, Name8: "r9b", Name16: "r9w", Name32: "r9d", Name64: "r9"},
		{Id: R10, Name8: "r10b", Name16: "r10w", Name32: "r10d", Name64: "r10"},
		{Id: R11, Name8: "r11b", Name16: "r11w", Name32: "r11d", Name64: "r11"},
		{Id: R12, Name8: "r12b", Name16: "r12w", Name32: "r12d", Name64: "r12"},
		{Id: R13, Name8: "r13b", Name16: "r13w", Name32: "r13d", Name64: "r13"},
		{Id: R14, Name8: "r14b", Name16: "r14w", Name32: "r14d", Name64: "r14"},
		{Id: R15, Name8: "r15b", Name16: "r15w", Name32: "r15d", Name64: "r15"},
	}

	// Allocatable general-purpose registers: everything except rsp/rbp,
	// which are reserved for the frame.
	all := NewClass(RAX, RBX, RCX, RDX, RSI, RDI, R8, R9, R10, R11, R12, R13, R14, R15)

	return &File{
		Regs:        regs,
		All:         all,
		ArgOrder:    []int{RDI, RSI, RCX, RDX, R8, R9},
		CalleeSaved: NewClass(RBX, R12, R13, R14, R15, RBP),
		CallerSaved: NewClass(RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11),
		SP:          RSP,
		FP:          RBP,
		ReturnReg:   RAX,
	}
}
