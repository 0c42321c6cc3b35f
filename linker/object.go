package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
)

type (
	// Resolver resolves undefined symbols of an object to runtime addresses.
	Resolver interface {
		Resolve(name string) (uintptr, bool)
	}
	// ResolverFunc adapts a function to Resolver.
	ResolverFunc func(name string) (uintptr, bool)
	// Linker maps relocatable objects of one machine into memory.
	Linker struct {
		Backend  Backend
		Resolver Resolver
		Debug    bool
	}
	section struct {
		*elf.Section
		off  int
		code bool
	}
	reloc struct {
		target *section
		off    uint64
		sym    int
		typ    uint32
		addend int64
	}
	object struct {
		name     string
		file     *elf.File
		syms     []elf.Symbol // index 0 is the null symbol
		sections map[int]*section
		order    []*section
		relocs   []reloc
		addr     []uint64
		commons  map[int]int
		got      map[int]int
		stubs    map[int]int
		imports  map[string]uintptr
	}
)

func (f ResolverFunc) Resolve(name string) (uintptr, bool) { return f(name) }

const relaSize = 24

func open(name string, data []byte) (o *object, err error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, name, err)
	}
	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB || f.Type != elf.ET_REL {
		return nil, fmt.Errorf("%w: %s is not a 64-bit little endian relocatable object", ErrFormat, name)
	}
	o = &object{
		name:     name,
		file:     f,
		sections: make(map[int]*section),
		commons:  make(map[int]int),
		got:      make(map[int]int),
		stubs:    make(map[int]int),
		imports:  make(map[string]uintptr),
	}
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, fmt.Errorf("%w: %s: %v", ErrFormat, name, err)
	}
	o.syms = append([]elf.Symbol{{}}, syms...)
	o.addr = make([]uint64, len(o.syms))
	return o, nil
}

func (o *object) symbolName(i int) string {
	if i <= 0 || i >= len(o.syms) {
		return "<none>"
	}
	s := o.syms[i]
	if s.Name == "" && elf.ST_TYPE(s.Info) == elf.STT_SECTION && int(s.Section) < len(o.file.Sections) {
		return o.file.Sections[s.Section].Name
	}
	return s.Name
}

func (o *object) readSections() error {
	for i, s := range o.file.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		if s.Flags&elf.SHF_TLS != 0 {
			return fmt.Errorf("%w: %s: thread local section %s", ErrUnsupported, o.name, s.Name)
		}
		sec := &section{Section: s, code: s.Flags&elf.SHF_EXECINSTR != 0}
		o.sections[i] = sec
		o.order = append(o.order, sec)
	}
	for _, s := range o.file.Sections {
		if s.Type != elf.SHT_RELA && s.Type != elf.SHT_REL {
			continue
		}
		target, ok := o.sections[int(s.Info)]
		if !ok {
			continue
		}
		if s.Type == elf.SHT_REL {
			return fmt.Errorf("%w: %s: REL section %s", ErrRelocation, o.name, s.Name)
		}
		data, err := s.Data()
		if err != nil {
			return fmt.Errorf("%w: %s: %s: %v", ErrFormat, o.name, s.Name, err)
		}
		if len(data)%relaSize != 0 {
			return fmt.Errorf("%w: %s: truncated %s", ErrFormat, o.name, s.Name)
		}
		for b := data; len(b) > 0; b = b[relaSize:] {
			info := binary.LittleEndian.Uint64(b[8:])
			r := reloc{
				target: target,
				off:    binary.LittleEndian.Uint64(b),
				sym:    int(elf.R_SYM64(info)),
				typ:    elf.R_TYPE64(info),
				addend: int64(binary.LittleEndian.Uint64(b[16:])),
			}
			if r.sym >= len(o.syms) {
				return fmt.Errorf("%w: %s: %s references symbol %d", ErrFormat, o.name, s.Name, r.sym)
			}
			if r.off >= target.Size {
				return fmt.Errorf("%w: %s: %s offset %#x out of %s", ErrFormat, o.name, s.Name, r.off, target.Name)
			}
			o.relocs = append(o.relocs, r)
		}
	}
	return nil
}

// resolve undefined symbols, collecting every missing name.
func (o *object) resolve(r Resolver) error {
	var missing []string
	for i, s := range o.syms {
		if i == 0 || s.Section != elf.SHN_UNDEF || s.Name == "" {
			continue
		}
		if elf.ST_TYPE(s.Info) == elf.STT_TLS {
			return fmt.Errorf("%w: %s: thread local symbol %s", ErrUnsupported, o.name, s.Name)
		}
		var p uintptr
		ok := false
		if r != nil {
			p, ok = r.Resolve(s.Name)
		}
		switch {
		case ok:
			o.addr[i] = uint64(p)
			o.imports[s.Name] = p
		case elf.ST_BIND(s.Info) == elf.STB_WEAK:
			o.addr[i] = 0
		default:
			missing = append(missing, s.Name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s: %s", ErrUnresolved, o.name, strings.Join(missing, ", "))
	}
	return nil
}

func (o *object) layout(b Backend) (code, data int) {
	for _, s := range o.order {
		if s.code {
			code = align(code, int(s.Addralign))
			s.off = code
			code += int(s.Size)
		}
	}
	for _, r := range o.relocs {
		s := o.syms[r.sym]
		if b.IsBranch(r.typ) && r.sym != 0 && s.Section == elf.SHN_UNDEF {
			if _, ok := o.stubs[r.sym]; !ok {
				o.stubs[r.sym] = len(o.stubs)
			}
		}
		if b.IsGOT(r.typ) {
			if _, ok := o.got[r.sym]; !ok {
				o.got[r.sym] = len(o.got)
			}
		}
	}
	stubs := align(code, 16)
	for k, v := range o.stubs {
		o.stubs[k] = stubs + v*b.StubSize()
	}
	code = stubs + len(o.stubs)*b.StubSize()
	for _, s := range o.order {
		if !s.code {
			data = align(data, int(s.Addralign))
			s.off = data
			data += int(s.Size)
		}
	}
	for i, s := range o.syms {
		if i > 0 && s.Section == elf.SHN_COMMON {
			data = align(data, int(s.Value))
			o.commons[i] = data
			data += int(s.Size)
		}
	}
	got := align(data, 8)
	for k, v := range o.got {
		o.got[k] = got + v*8
	}
	data = got + len(o.got)*8
	return
}

// Load maps the object, resolves its imports, applies relocations and
// protects its code. On failure nothing stays mapped.
func (l *Linker) Load(name string, data []byte) (img *Image, err error) {
	if l.Backend == nil {
		return nil, fmt.Errorf("%w: no back end", ErrMachine)
	}
	o, err := open(name, data)
	if err != nil {
		return
	}
	if o.file.Machine != l.Backend.Machine() {
		return nil, fmt.Errorf("%w: %s is %v, want %v", ErrMachine, name, o.file.Machine, l.Backend.Machine())
	}
	if err = o.readSections(); err != nil {
		return
	}
	if err = o.resolve(l.Resolver); err != nil {
		return
	}
	code, size := o.layout(l.Backend)
	mem, err := Allocate(code, size)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = mem.Release()
		}
	}()
	dataBase := mem.CodeSize()
	for k, v := range o.commons {
		o.commons[k] = v + dataBase
	}
	for k, v := range o.got {
		o.got[k] = v + dataBase
	}
	region := mem.Bytes()
	base := uint64(mem.Base())
	for _, s := range o.order {
		if !s.code {
			s.off += dataBase
		}
		if s.Type == elf.SHT_NOBITS || s.Size == 0 {
			continue
		}
		var b []byte
		if b, err = s.Data(); err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrFormat, name, s.Name, err)
		}
		copy(region[s.off:], b)
	}
	for i, s := range o.syms {
		if i == 0 {
			continue
		}
		switch {
		case s.Section == elf.SHN_UNDEF:
		case s.Section == elf.SHN_ABS:
			o.addr[i] = s.Value
		case s.Section == elf.SHN_COMMON:
			o.addr[i] = base + uint64(o.commons[i])
		default:
			if sec, ok := o.sections[int(s.Section)]; ok {
				o.addr[i] = base + uint64(sec.off) + s.Value
			}
		}
	}
	for k, off := range o.got {
		binary.LittleEndian.PutUint64(region[off:], o.addr[k])
	}
	for k, off := range o.stubs {
		l.Backend.WriteStub(region[off:off+l.Backend.StubSize()], o.addr[k])
	}
	for _, r := range o.relocs {
		at := r.target.off + int(r.off)
		p := base + uint64(at)
		s := o.addr[r.sym]
		if off, ok := o.stubs[r.sym]; ok && l.Backend.IsBranch(r.typ) {
			s = base + uint64(off)
		}
		var got uint64
		if off, ok := o.got[r.sym]; ok {
			got = base + uint64(off)
		}
		loc := region[at : r.target.off+int(r.target.Size)]
		if err = l.Backend.Apply(loc, r.typ, p, s, r.addend, got); err != nil {
			return nil, fmt.Errorf("%s: %s+%#x (%s): %w", name, r.target.Name, r.off, o.symbolName(r.sym), err)
		}
	}
	if err = mem.Finalize(); err != nil {
		return
	}
	img = &Image{
		Name:    name,
		Symbols: o.exports(),
		Imports: o.imports,
		mem:     mem,
	}
	if l.Debug {
		log.Printf("loaded %s at %#x: code %d bytes, data %d bytes, %d stubs, %d got slots, %d relocations",
			name, base, code, size, len(o.stubs), len(o.got), len(o.relocs))
	}
	return
}

func exported(s elf.Symbol) bool {
	if s.Name == "" || s.Section == elf.SHN_UNDEF {
		return false
	}
	switch elf.ST_BIND(s.Info) {
	case elf.STB_GLOBAL, elf.STB_WEAK:
	default:
		return false
	}
	switch elf.ST_TYPE(s.Info) {
	case elf.STT_SECTION, elf.STT_FILE, elf.STT_TLS:
		return false
	}
	switch elf.ST_VISIBILITY(s.Other) {
	case elf.STV_HIDDEN, elf.STV_INTERNAL:
		return false
	}
	return true
}

func (o *object) exports() map[string]uintptr {
	m := make(map[string]uintptr)
	for i, s := range o.syms {
		if i > 0 && exported(s) {
			m[s.Name] = uintptr(o.addr[i])
		}
	}
	return m
}

// Inspect lists the exported and the undefined symbol names of an object.
func Inspect(name string, data []byte) (defined, undefined []string, err error) {
	o, err := open(name, data)
	if err != nil {
		return
	}
	for i, s := range o.syms {
		if i == 0 || s.Name == "" {
			continue
		}
		switch {
		case s.Section == elf.SHN_UNDEF:
			undefined = append(undefined, s.Name)
		case exported(s):
			defined = append(defined, s.Name)
		}
	}
	sort.Strings(defined)
	sort.Strings(undefined)
	return
}
