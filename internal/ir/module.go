package ir

import (
	"strconv"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Global is a module-level datum: a defined function, a global variable
// with an optional constant initialiser, or a common (uninitialised)
// symbol, per spec.md §3.
type Global struct {
	Name    string
	Size    Size
	Init    *int64 // nil for uninitialised ("common") symbols.
	IsFunc  bool
	Align   int
}

// Module is the top-level compilation unit: every function and global
// produced by the external evaluator collaborator.
type Module struct {
	Functions []*Function
	Globals   []*Global
}

// NewModule returns an empty module.
func NewModule() *Module { return &Module{} }

// AddFunction appends and returns a new function envelope.
func (m *Module) AddFunction(name string, ret Size) *Function {
	f := NewFunction(name, ret)
	m.Functions = append(m.Functions, f)
	return f
}

// AddGlobal appends a global variable or common symbol.
func (m *Module) AddGlobal(name string, size Size, init *int64, align int) *Global {
	g := &Global{Name: name, Size: size, Init: init, Align: align}
	m.Globals = append(m.Globals, g)
	return g
}

// FindFunction returns the named function, or nil.
func (m *Module) FindFunction(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// String renders the whole module using the LLVM-like surface syntax of
// spec.md §6.
func (m *Module) String() string {
	var sb strings.Builder
	for _, g := range m.Globals {
		if g.Init != nil {
			sb.WriteString("global " + g.Name + " " + g.Size.String() + " = " + strconv.FormatInt(*g.Init, 10) + "\n")
		} else {
			sb.WriteString("common " + g.Name + " " + g.Size.String() + "\n")
		}
	}
	for _, f := range m.Functions {
		sb.WriteString(f.String())
	}
	return sb.String()
}
