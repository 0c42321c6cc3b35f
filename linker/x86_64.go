package linker

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

type x86_64 struct{}

func (x86_64) Machine() elf.Machine { return elf.EM_X86_64 }

func (x86_64) StubSize() int { return 16 }

// jmp *0(%rip); .quad target
func (x86_64) WriteStub(b []byte, target uint64) {
	copy(b, []byte{0xff, 0x25, 0, 0, 0, 0})
	binary.LittleEndian.PutUint64(b[6:], target)
	b[14], b[15] = 0xcc, 0xcc
}

func (x86_64) IsBranch(t uint32) bool {
	return elf.R_X86_64(t) == elf.R_X86_64_PLT32
}

func (x86_64) IsGOT(t uint32) bool {
	switch elf.R_X86_64(t) {
	case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX:
		return true
	}
	return false
}

func (x86_64) TypeName(t uint32) string { return elf.R_X86_64(t).String() }

func (x x86_64) Apply(loc []byte, t uint32, p, s uint64, a int64, got uint64) (err error) {
	name := x.TypeName(t)
	switch elf.R_X86_64(t) {
	case elf.R_X86_64_NONE:
	case elf.R_X86_64_64:
		if err = need(loc, 8, name); err == nil {
			binary.LittleEndian.PutUint64(loc, s+uint64(a))
		}
	case elf.R_X86_64_PC64:
		if err = need(loc, 8, name); err == nil {
			binary.LittleEndian.PutUint64(loc, s+uint64(a)-p)
		}
	case elf.R_X86_64_PC32, elf.R_X86_64_PLT32:
		if err = need(loc, 4, name); err == nil {
			err = putInt32(loc, int64(s)+a-int64(p), name)
		}
	case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX:
		if got == 0 {
			return fmt.Errorf("%w: %s without GOT slot", ErrRelocation, name)
		}
		if err = need(loc, 4, name); err == nil {
			err = putInt32(loc, int64(got)+a-int64(p), name)
		}
	case elf.R_X86_64_32:
		if err = need(loc, 4, name); err == nil {
			err = putUint32(loc, int64(s)+a, name)
		}
	case elf.R_X86_64_32S:
		if err = need(loc, 4, name); err == nil {
			err = putInt32(loc, int64(s)+a, name)
		}
	default:
		err = fmt.Errorf("%w: %s", ErrRelocation, name)
	}
	return
}
