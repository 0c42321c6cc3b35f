package cjit

import (
	"errors"

	"github.com/ebitengine/purego"
)

// Sym is the runtime address of a resolved symbol.
type Sym uintptr

var (
	// ErrArgument occurs when the synthesized front end command line is malformed.
	ErrArgument = errors.New("error on parsing args")
	// ErrLibraryNotFound occurs when a required library is missing from every search path.
	ErrLibraryNotFound = errors.New("could not load library")
	// ErrCompilation occurs when the source can not be translated to IR.
	ErrCompilation = errors.New("failed to execute translation action")
	// ErrLink occurs when a compiled module can not be added to the session.
	ErrLink = errors.New("failed to link module")
	// ErrSymbolNotFound occurs when a name is absent from the search order.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrInvalidHandle occurs for handles that never existed or were freed.
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrUnitInUse occurs when freeing a unit other live units imported from.
	ErrUnitInUse = errors.New("unit in use")
	// ErrClosed occurs on use of a closed JIT.
	ErrClosed = errors.New("jit closed")
	// ErrToolchain occurs when a toolchain program is missing.
	ErrToolchain = errors.New("missing toolchain")
	// ErrUnsupportedHost is the panic value of an unsupported host platform.
	ErrUnsupportedHost = errors.New("unsupported host")
)

// Call invokes the C function at s with integer or pointer arguments and
// returns its integer result register.
func Call(s Sym, args ...uintptr) uintptr {
	r, _, _ := purego.SyscallN(uintptr(s), args...)
	return r
}

// Bind converts s to a Go function of type T, for example
//
//	add := Bind[func(int32, int32) int32](sym)
//
// The C signature must match T.
func Bind[T any](s Sym) (f T) {
	purego.RegisterFunc(&f, uintptr(s))
	return
}
