/*
Package linker maps relocatable ELF objects into executable memory.

It is the object-linking layer of cjit: sections are laid out in one mapping
(code first, then data), external symbols are resolved through a [Resolver],
calls that may land out of range go through per-image stubs and indirect
references through a per-image GOT. Relocation back ends exist for x86-64
and AArch64.

An [Image] owns its pages until [Image.Free].
*/
package linker

import "errors"

var (
	// ErrFormat occurs when the input is not a 64-bit little endian relocatable ELF object.
	ErrFormat = errors.New("invalid object")
	// ErrMachine occurs when the object targets another machine than the back end.
	ErrMachine = errors.New("machine mismatch")
	// ErrUnresolved occurs when undefined symbols can not be resolved.
	ErrUnresolved = errors.New("unresolved symbols")
	// ErrRelocation occurs on an unknown or malformed relocation.
	ErrRelocation = errors.New("unsupported relocation")
	// ErrOverflow occurs when a relocated value does not fit its field.
	ErrOverflow = errors.New("relocation overflow")
	// ErrUnsupported occurs for object features the loader does not handle, like TLS.
	ErrUnsupported = errors.New("unsupported object feature")
	// ErrMemory occurs when pages can not be mapped or protected.
	ErrMemory = errors.New("memory manager failure")
)
