package cjit

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/ZenLiuCN/cjit/linker"
	"github.com/davecgh/go-spew/spew"
)

// Handle identifies a unit of a JIT. Zero is never a valid unit.
type Handle uintptr

type (
	// Unit is one linked translation. Its exports form their own scope.
	Unit struct {
		id      Handle
		name    string
		image   *linker.Image
		imports map[*Unit]struct{} // units this unit resolved symbols from
		users   map[*Unit]struct{} // live units resolving symbols from this unit
	}
	// Session owns the units and the generators of one JIT. It is not safe for
	// concurrent use.
	Session struct {
		target    *target
		layer     IRLayer
		units     []*Unit // creation order
		byID      map[Handle]*Unit
		next      Handle
		libraries []*libraryGenerator
		process   Generator
		image     Generator
		strict    bool
		debug     bool
	}
)

// Handle of the unit.
func (u *Unit) Handle() Handle { return u.id }

// Name of the module the unit was built from.
func (u *Unit) Name() string { return u.name }

func newSession(t *target, tools *Toolchain, strict, debug bool) *Session {
	s := &Session{
		target:  t,
		byID:    make(map[Handle]*Unit),
		process: processGenerator{},
		image:   imageGenerator(t.image),
		strict:  strict,
		debug:   debug,
	}
	s.layer = &OptimizeLayer{
		Base: &CompileLayer{
			Base:   &LinkLayer{Session: s},
			Tools:  tools,
			Triple: t.triple,
		},
		Tools: tools,
	}
	return s
}

// nextName is the module name of the next unit.
func (s *Session) nextName() string {
	return fmt.Sprintf("unit%d", s.next+1)
}

// AddModule pushes m through the pipeline into a new unit. Nothing of a
// failed module stays in the session.
func (s *Session) AddModule(m *Module) (*Unit, error) {
	u := &Unit{
		id:      s.next + 1,
		name:    m.Name,
		imports: make(map[*Unit]struct{}),
		users:   make(map[*Unit]struct{}),
	}
	if err := s.layer.Add(u, m); err != nil {
		return nil, err
	}
	s.next = u.id
	s.units = append(s.units, u)
	s.byID[u.id] = u
	for d := range u.imports {
		d.users[u] = struct{}{}
	}
	if s.debug {
		log.Printf("unit %d %s: %s", u.id, u.name, spew.Sdump(u.image.Symbols))
	}
	return u, nil
}

// admit checks the exports of a new image against the namespace policy.
func (s *Session) admit(img *linker.Image) error {
	if !s.strict {
		return nil
	}
	var dup []string
	for _, name := range img.Exports() {
		for _, u := range s.units {
			if _, ok := u.image.Lookup(name); ok {
				dup = append(dup, fmt.Sprintf("%s (unit %d)", name, u.id))
				break
			}
		}
	}
	if len(dup) > 0 {
		return fmt.Errorf("%w: duplicate definition of %s", ErrLink, strings.Join(dup, ", "))
	}
	return nil
}

// resolve an import of u, recording the unit it came from.
func (s *Session) resolve(u *Unit, name string) (uintptr, bool) {
	for _, x := range s.units {
		if p, ok := x.image.Lookup(name); ok {
			u.imports[x] = struct{}{}
			if s.debug {
				log.Printf("%s: %s from %s", u.Name(), name, x.Name())
			}
			return p, true
		}
	}
	g, p, ok := s.generator(name)
	if ok && s.debug {
		log.Printf("%s: %s from %s", u.Name(), name, g.Name())
	}
	return p, ok
}

// generator finds the first generator defining name: libraries in
// registration order, then the process and the host image.
func (s *Session) generator(name string) (Generator, uintptr, bool) {
	for _, g := range s.libraries {
		if p, ok := g.Lookup(name); ok {
			return g, p, true
		}
	}
	for _, g := range []Generator{s.process, s.image} {
		if p, ok := g.Lookup(name); ok {
			return g, p, true
		}
	}
	return nil, 0, false
}

// Unit by handle.
func (s *Session) Unit(h Handle) (*Unit, error) {
	u, ok := s.byID[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, h)
	}
	return u, nil
}

// Lookup the logical name. A non zero handle searches its unit first, then
// every unit in creation order and the generators.
func (s *Session) Lookup(h Handle, name string) (Sym, error) {
	mangled := s.target.mangle(name)
	if h != 0 {
		u, err := s.Unit(h)
		if err != nil {
			return 0, err
		}
		if p, ok := u.image.Lookup(mangled); ok {
			return Sym(p), nil
		}
	}
	for _, u := range s.units {
		if p, ok := u.image.Lookup(mangled); ok {
			return Sym(p), nil
		}
	}
	if _, p, ok := s.generator(mangled); ok {
		return Sym(p), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrSymbolNotFound, name)
}

// Symbols exported by a unit, sorted.
func (s *Session) Symbols(h Handle) ([]string, error) {
	u, err := s.Unit(h)
	if err != nil {
		return nil, err
	}
	exports := u.image.Exports()
	for i, name := range exports {
		exports[i] = s.target.demangle(name)
	}
	return exports, nil
}

// RegisterLibrary appends a shared library to the search order.
func (s *Session) RegisterLibrary(path string) error {
	g, err := openLibrary(path)
	if err != nil {
		return err
	}
	s.libraries = append(s.libraries, g)
	return nil
}

// Remove unmaps a unit. Units other live units imported from are kept.
func (s *Session) Remove(h Handle) error {
	u, err := s.Unit(h)
	if err != nil {
		return err
	}
	if len(u.users) > 0 {
		users := make([]int, 0, len(u.users))
		for x := range u.users {
			users = append(users, int(x.id))
		}
		sort.Ints(users)
		return fmt.Errorf("%w: unit %d (%s) is imported by units %v", ErrUnitInUse, h, u.Name(), users)
	}
	if s.debug {
		log.Printf("remove %s", u.Name())
	}
	delete(s.byID, h)
	for i, x := range s.units {
		if x == u {
			s.units = append(s.units[:i], s.units[i+1:]...)
			break
		}
	}
	for d := range u.imports {
		delete(d.users, u)
	}
	return u.image.Free()
}

// Handles of the live units in creation order.
func (s *Session) Handles() []Handle {
	h := make([]Handle, len(s.units))
	for i, u := range s.units {
		h[i] = u.id
	}
	return h
}

// Close unmaps every unit, newest first, and closes the libraries.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.units) - 1; i >= 0; i-- {
		errs = append(errs, s.units[i].image.Free())
	}
	s.units = nil
	s.byID = make(map[Handle]*Unit)
	for _, g := range s.libraries {
		errs = append(errs, g.Close())
	}
	s.libraries = nil
	return errors.Join(errs...)
}
