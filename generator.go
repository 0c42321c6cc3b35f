package cjit

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Generator is a source of symbol definitions searched after the units of a
// session.
type Generator interface {
	Name() string
	Lookup(name string) (uintptr, bool)
}

type (
	// processGenerator searches every object loaded into the process.
	processGenerator struct{}
	// imageGenerator searches the symbol table of the host executable.
	imageGenerator map[string]uintptr
	// libraryGenerator searches one dynamically loaded shared library.
	libraryGenerator struct {
		path   string
		handle uintptr
	}
)

func (processGenerator) Name() string { return "<process>" }

func (processGenerator) Lookup(name string) (uintptr, bool) {
	p, err := purego.Dlsym(purego.RTLD_DEFAULT, name)
	return p, err == nil && p != 0
}

func (imageGenerator) Name() string { return "<image>" }

func (g imageGenerator) Lookup(name string) (p uintptr, ok bool) {
	p, ok = g[name]
	return p, ok && p != 0
}

func openLibrary(path string) (*libraryGenerator, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
	}
	return &libraryGenerator{path: path, handle: h}, nil
}

func (g *libraryGenerator) Name() string { return g.path }

func (g *libraryGenerator) Lookup(name string) (uintptr, bool) {
	if g.handle == 0 {
		return 0, false
	}
	p, err := purego.Dlsym(g.handle, name)
	return p, err == nil && p != 0
}

func (g *libraryGenerator) Close() (err error) {
	if g.handle != 0 {
		err = purego.Dlclose(g.handle)
		g.handle = 0
	}
	return
}
