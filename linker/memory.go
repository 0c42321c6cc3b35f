package linker

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Memory is a section based memory manager. One anonymous mapping holds the
// code part first and the data part after it, both page aligned, so every
// section of an object stays within rel32 reach of each other.
type Memory struct {
	region []byte
	code   int
}

func align(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) &^ (a - 1)
}

// Allocate maps a writable region with room for code and data bytes.
func Allocate(code, data int) (*Memory, error) {
	page := unix.Getpagesize()
	code = align(code, page)
	size := code + align(data, page)
	if size == 0 {
		size = page
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("%w: map %d bytes: %v", ErrMemory, size, err)
	}
	return &Memory{region: b, code: code}, nil
}

// Bytes of the whole mapping, valid until Finalize.
func (m *Memory) Bytes() []byte { return m.region }

// Base address of the mapping.
func (m *Memory) Base() uintptr { return uintptr(unsafe.Pointer(&m.region[0])) }

// CodeSize is the page aligned size of the code part.
func (m *Memory) CodeSize() int { return m.code }

// Size of the mapping.
func (m *Memory) Size() int { return len(m.region) }

// Finalize flushes the caches over the code part and turns it read+exec. No
// writes to code are allowed after.
func (m *Memory) Finalize() error {
	if m.code == 0 {
		return nil
	}
	base := m.Base()
	flushCache(base, base+uintptr(m.code))
	if err := unix.Mprotect(m.region[:m.code], unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("%w: protect code: %v", ErrMemory, err)
	}
	return nil
}

// Release unmaps the region. Calling it twice is a no-op.
func (m *Memory) Release() error {
	if m.region == nil {
		return nil
	}
	err := unix.Munmap(m.region)
	m.region = nil
	if err != nil {
		return fmt.Errorf("%w: unmap: %v", ErrMemory, err)
	}
	return nil
}
