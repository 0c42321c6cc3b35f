package linker

import (
	"sort"

	"github.com/ZenLiuCN/fn"
)

// Image is one object mapped into memory.
type Image struct {
	Name    string
	Symbols map[string]uintptr // exported definitions
	Imports map[string]uintptr // resolved undefined symbols
	mem     *Memory
}

// Lookup an exported symbol of the image.
func (i *Image) Lookup(name string) (p uintptr, ok bool) {
	if i.mem == nil {
		return 0, false
	}
	p, ok = i.Symbols[name]
	return
}

// Exports sorted by name.
func (i *Image) Exports() []string {
	v := fn.MapKeys(i.Symbols)
	sort.Strings(v)
	return v
}

// Size of the mapping, zero after Free.
func (i *Image) Size() int {
	if i.mem == nil {
		return 0
	}
	return i.mem.Size()
}

// Free unmaps the image. Addresses of the image are invalid afterwards.
func (i *Image) Free() error {
	if i.mem == nil {
		return nil
	}
	err := i.mem.Release()
	i.mem = nil
	return err
}
