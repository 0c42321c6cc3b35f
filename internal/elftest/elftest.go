// Package elftest writes minimal relocatable ELF objects for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

// Section indexes of Build objects.
const (
	Text = 1
	Data = 2
)

type (
	// Sym is a symbol table entry.
	Sym struct {
		Name    string
		Bind    elf.SymBind
		Type    elf.SymType
		Section uint16
		Value   uint64
		Size    uint64
	}
	// Rela relocates Text or Data.
	Rela struct {
		Section int
		Off     uint64
		Sym     uint32 // index into the symbol list, starting at 1
		Type    uint32
		Addend  int64
	}
	strtab struct{ bytes.Buffer }
)

func (s *strtab) add(v string) uint32 {
	if s.Len() == 0 {
		s.WriteByte(0)
	}
	if v == "" {
		return 0
	}
	off := uint32(s.Len())
	s.WriteString(v)
	s.WriteByte(0)
	return off
}

// Build writes a relocatable object with .text, .data, their rela sections,
// .symtab, .strtab and .shstrtab.
func Build(machine elf.Machine, text, data []byte, syms []Sym, relas []Rela) []byte {
	le := binary.LittleEndian
	var str, shstr strtab
	str.add("")
	shstr.add("")
	var symtab, relaText, relaData bytes.Buffer
	_ = binary.Write(&symtab, le, elf.Sym64{})
	for _, s := range syms {
		_ = binary.Write(&symtab, le, elf.Sym64{
			Name:  str.add(s.Name),
			Info:  elf.ST_INFO(s.Bind, s.Type),
			Shndx: s.Section,
			Value: s.Value,
			Size:  s.Size,
		})
	}
	for _, r := range relas {
		out := &relaText
		if r.Section == Data {
			out = &relaData
		}
		_ = binary.Write(out, le, elf.Rela64{Off: r.Off, Info: elf.R_INFO(r.Sym, r.Type), Addend: r.Addend})
	}
	type sec struct {
		hdr  elf.Section64
		name string
		body []byte
	}
	secs := []sec{
		{},
		{name: ".text", body: text, hdr: elf.Section64{Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR), Addralign: 16}},
		{name: ".data", body: data, hdr: elf.Section64{Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC | elf.SHF_WRITE), Addralign: 8}},
		{name: ".rela.text", body: relaText.Bytes(), hdr: elf.Section64{Type: uint32(elf.SHT_RELA), Link: 5, Info: Text, Addralign: 8, Entsize: 24}},
		{name: ".rela.data", body: relaData.Bytes(), hdr: elf.Section64{Type: uint32(elf.SHT_RELA), Link: 5, Info: Data, Addralign: 8, Entsize: 24}},
		{name: ".symtab", body: symtab.Bytes(), hdr: elf.Section64{Type: uint32(elf.SHT_SYMTAB), Link: 6, Info: 1, Addralign: 8, Entsize: 24}},
		{name: ".strtab", hdr: elf.Section64{Type: uint32(elf.SHT_STRTAB), Addralign: 1}},
		{name: ".shstrtab", hdr: elf.Section64{Type: uint32(elf.SHT_STRTAB), Addralign: 1}},
	}
	for i := range secs {
		secs[i].hdr.Name = shstr.add(secs[i].name)
	}
	secs[6].body = str.Bytes()
	secs[7].body = shstr.Bytes()

	var out bytes.Buffer
	out.Write(make([]byte, 64))
	for i := 1; i < len(secs); i++ {
		for out.Len()%8 != 0 {
			out.WriteByte(0)
		}
		secs[i].hdr.Off = uint64(out.Len())
		secs[i].hdr.Size = uint64(len(secs[i].body))
		out.Write(secs[i].body)
	}
	for out.Len()%8 != 0 {
		out.WriteByte(0)
	}
	shoff := out.Len()
	for _, s := range secs {
		_ = binary.Write(&out, le, s.hdr)
	}
	hdr := elf.Header64{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Shoff:     uint64(shoff),
		Ehsize:    64,
		Shentsize: 64,
		Shnum:     uint16(len(secs)),
		Shstrndx:  7,
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	var h bytes.Buffer
	_ = binary.Write(&h, le, hdr)
	b := out.Bytes()
	copy(b, h.Bytes())
	return b
}

// TextAdd is x86-64 add(a, b int32) int32: mov eax, edi; add eax, esi; ret
var TextAdd = []byte{0x89, 0xf8, 0x01, 0xf0, 0xc3}

// Func defines one global x86-64 function of text.
func Func(name string, text []byte) []byte {
	return Build(elf.EM_X86_64, text, nil, []Sym{
		{Name: name, Bind: elf.STB_GLOBAL, Type: elf.STT_FUNC, Section: Text, Size: uint64(len(text))},
	}, nil)
}

// Add defines TextAdd as add.
func Add() []byte {
	return Func("add", TextAdd)
}
