package linker

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

type aarch64 struct{}

func (aarch64) Machine() elf.Machine { return elf.EM_AARCH64 }

func (aarch64) StubSize() int { return 16 }

// ldr x16, #8; br x16; .quad target
func (aarch64) WriteStub(b []byte, target uint64) {
	binary.LittleEndian.PutUint32(b, 0x58000050)
	binary.LittleEndian.PutUint32(b[4:], 0xd61f0200)
	binary.LittleEndian.PutUint64(b[8:], target)
}

func (aarch64) IsBranch(t uint32) bool {
	switch elf.R_AARCH64(t) {
	case elf.R_AARCH64_CALL26, elf.R_AARCH64_JUMP26:
		return true
	}
	return false
}

func (aarch64) IsGOT(t uint32) bool {
	switch elf.R_AARCH64(t) {
	case elf.R_AARCH64_ADR_GOT_PAGE, elf.R_AARCH64_LD64_GOT_LO12_NC:
		return true
	}
	return false
}

func (aarch64) TypeName(t uint32) string { return elf.R_AARCH64(t).String() }

func page(v int64) int64 { return v &^ 0xfff }

// branch encodes a pc relative word offset of bits width at shift.
func branch(loc []byte, off int64, bits, shift uint, name string) error {
	if off&3 != 0 {
		return fmt.Errorf("%w: %s misaligned target %#x", ErrRelocation, name, off)
	}
	lim := int64(1) << (bits + 1)
	if off < -lim || off >= lim {
		return fmt.Errorf("%w: %s offset %#x", ErrOverflow, name, off)
	}
	mask := uint32(1)<<bits - 1
	insn := binary.LittleEndian.Uint32(loc)
	insn = insn&^(mask<<shift) | (uint32(off>>2)&mask)<<shift
	binary.LittleEndian.PutUint32(loc, insn)
	return nil
}

// adr encodes a 21 bit immediate into an ADR/ADRP instruction.
func adr(loc []byte, imm int64, name string) error {
	if imm < -(1<<20) || imm >= 1<<20 {
		return fmt.Errorf("%w: %s immediate %#x", ErrOverflow, name, imm)
	}
	insn := binary.LittleEndian.Uint32(loc)
	lo := uint32(imm) & 3
	hi := uint32(imm>>2) & 0x7ffff
	insn = insn&^(3<<29|0x7ffff<<5) | lo<<29 | hi<<5
	binary.LittleEndian.PutUint32(loc, insn)
	return nil
}

// lo12 encodes the low 12 bits of v, scaled by the access size, into imm12.
func lo12(loc []byte, v int64, scale uint) {
	insn := binary.LittleEndian.Uint32(loc)
	imm := uint32(v&0xfff) >> scale
	insn = insn&^(0xfff<<10) | imm<<10
	binary.LittleEndian.PutUint32(loc, insn)
}

func (x aarch64) Apply(loc []byte, t uint32, p, s uint64, a int64, got uint64) (err error) {
	name := x.TypeName(t)
	r := elf.R_AARCH64(t)
	if r == elf.R_AARCH64_NONE {
		return nil
	}
	width := 4
	if r == elf.R_AARCH64_ABS64 || r == elf.R_AARCH64_PREL64 {
		width = 8
	}
	if err = need(loc, width, name); err != nil {
		return
	}
	sa := int64(s) + a
	pc := int64(p)
	switch r {
	case elf.R_AARCH64_ABS64:
		binary.LittleEndian.PutUint64(loc, uint64(sa))
	case elf.R_AARCH64_ABS32:
		err = putUint32(loc, sa, name)
	case elf.R_AARCH64_PREL64:
		binary.LittleEndian.PutUint64(loc, uint64(sa-pc))
	case elf.R_AARCH64_PREL32:
		err = putInt32(loc, sa-pc, name)
	case elf.R_AARCH64_CALL26, elf.R_AARCH64_JUMP26:
		err = branch(loc, sa-pc, 26, 0, name)
	case elf.R_AARCH64_CONDBR19:
		err = branch(loc, sa-pc, 19, 5, name)
	case elf.R_AARCH64_TSTBR14:
		err = branch(loc, sa-pc, 14, 5, name)
	case elf.R_AARCH64_ADR_PREL_LO21:
		err = adr(loc, sa-pc, name)
	case elf.R_AARCH64_ADR_PREL_PG_HI21:
		err = adr(loc, (page(sa)-page(pc))>>12, name)
	case elf.R_AARCH64_ADD_ABS_LO12_NC, elf.R_AARCH64_LDST8_ABS_LO12_NC:
		lo12(loc, sa, 0)
	case elf.R_AARCH64_LDST16_ABS_LO12_NC:
		lo12(loc, sa, 1)
	case elf.R_AARCH64_LDST32_ABS_LO12_NC:
		lo12(loc, sa, 2)
	case elf.R_AARCH64_LDST64_ABS_LO12_NC:
		lo12(loc, sa, 3)
	case elf.R_AARCH64_LDST128_ABS_LO12_NC:
		lo12(loc, sa, 4)
	case elf.R_AARCH64_ADR_GOT_PAGE:
		if got == 0 {
			return fmt.Errorf("%w: %s without GOT slot", ErrRelocation, name)
		}
		err = adr(loc, (page(int64(got))-page(pc))>>12, name)
	case elf.R_AARCH64_LD64_GOT_LO12_NC:
		if got == 0 {
			return fmt.Errorf("%w: %s without GOT slot", ErrRelocation, name)
		}
		lo12(loc, int64(got), 3)
	default:
		err = fmt.Errorf("%w: %s", ErrRelocation, name)
	}
	return
}
