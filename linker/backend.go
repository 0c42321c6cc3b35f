package linker

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"math"
)

// Backend applies the relocations of one machine.
type Backend interface {
	Machine() elf.Machine
	// StubSize is the size of one call stub, a multiple of 8.
	StubSize() int
	// WriteStub writes an absolute jump to target into b.
	WriteStub(b []byte, target uint64)
	// IsBranch reports relocation types of direct calls and jumps, which go through a stub for undefined symbols.
	IsBranch(t uint32) bool
	// IsGOT reports relocation types that reference a GOT slot of the symbol.
	IsGOT(t uint32) bool
	// Apply patches loc (starting at the relocated place p) for symbol address s, addend a and GOT slot address got.
	Apply(loc []byte, t uint32, p, s uint64, a int64, got uint64) error
	// TypeName for diagnostics.
	TypeName(t uint32) string
}

var backends = map[elf.Machine]Backend{
	elf.EM_X86_64:  x86_64{},
	elf.EM_AARCH64: aarch64{},
}

// BackendFor returns the relocation back end of machine m.
func BackendFor(m elf.Machine) (Backend, error) {
	if b, ok := backends[m]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%w: no back end for %v", ErrMachine, m)
}

func need(loc []byte, n int, t string) error {
	if len(loc) < n {
		return fmt.Errorf("%w: %s needs %d bytes, %d left in section", ErrRelocation, t, n, len(loc))
	}
	return nil
}

func putInt32(loc []byte, v int64, t string) error {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return fmt.Errorf("%w: %s value %#x", ErrOverflow, t, v)
	}
	binary.LittleEndian.PutUint32(loc, uint32(int32(v)))
	return nil
}

func putUint32(loc []byte, v int64, t string) error {
	if v < 0 || v > math.MaxUint32 {
		return fmt.Errorf("%w: %s value %#x", ErrOverflow, t, v)
	}
	binary.LittleEndian.PutUint32(loc, uint32(v))
	return nil
}
