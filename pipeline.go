package cjit

import (
	"fmt"
	"log"

	"github.com/ZenLiuCN/cjit/linker"
)

// Object is a relocatable object compiled from a Module.
type Object struct {
	Name string
	Data []byte
}

type (
	// IRLayer accepts IR modules for a unit.
	IRLayer interface {
		Add(u *Unit, m *Module) error
	}
	// ObjectLayer accepts compiled objects for a unit.
	ObjectLayer interface {
		Add(u *Unit, o *Object) error
	}
	// OptimizeLayer runs the fixed function pass pipeline before handing the
	// module down.
	OptimizeLayer struct {
		Base  IRLayer
		Tools *Toolchain
	}
	// CompileLayer generates a native object for the host.
	CompileLayer struct {
		Base   ObjectLayer
		Tools  *Toolchain
		Triple string
	}
	// LinkLayer maps objects into memory, resolving imports by the session
	// search order.
	LinkLayer struct {
		Session *Session
	}
)

// Passes applied to every function: instruction combining, reassociation,
// global value numbering and control flow simplification.
const Passes = "function(instcombine,reassociate,gvn,simplifycfg)"

func (l *OptimizeLayer) Add(u *Unit, m *Module) error {
	ir, err := l.Tools.run(l.Tools.Opt, []string{"-passes=" + Passes, "-S", "-o", "-", "-"}, m.IR)
	if err != nil {
		return fmt.Errorf("%w: optimize %s: %v", ErrLink, m.Name, err)
	}
	m.IR = ir
	return l.Base.Add(u, m)
}

func (l *CompileLayer) Add(u *Unit, m *Module) error {
	obj, err := l.Tools.run(l.Tools.Llc, []string{
		"-O2",
		"-filetype=obj",
		"-relocation-model=pic",
		"-mtriple=" + l.Triple,
		"-o", "-", "-",
	}, m.IR)
	if err != nil {
		return fmt.Errorf("%w: compile %s: %v", ErrLink, m.Name, err)
	}
	return l.Base.Add(u, &Object{Name: m.Name, Data: obj})
}

func (l *LinkLayer) Add(u *Unit, o *Object) error {
	s := l.Session
	ln := &linker.Linker{
		Backend: s.target.backend,
		Resolver: linker.ResolverFunc(func(name string) (uintptr, bool) {
			return s.resolve(u, name)
		}),
		Debug: s.debug,
	}
	img, err := ln.Load(o.Name, o.Data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLink, err)
	}
	if err = s.admit(img); err != nil {
		_ = img.Free()
		return err
	}
	u.image = img
	if s.debug {
		log.Printf("linked %s: %d bytes, exports %v", o.Name, img.Size(), img.Exports())
	}
	return nil
}
