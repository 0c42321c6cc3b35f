package cjit

import (
	"fmt"
	"log"
	"sync"
)

type (
	// Request to translate one C source.
	Request struct {
		Source       string   // complete C translation unit
		HeaderPaths  []string // additional system include directories, in order
		LibraryPaths []string // directories searched for Libraries, in order
		Libraries    []string // short library names, resolved to lib<name>.so
		Debug        bool     // compile without optimization
	}
	// JIT compiles C source into callable code of the running process. It is
	// safe for concurrent use: translations are serialized, lookups run in
	// parallel.
	//
	// Use Steps:
	//
	//	1. New to check the toolchain and create the session.
	//	2. JIT.Translate to compile source into a unit.
	//	3. JIT.GetFunction to fetch a symbol, then Call or Bind it.
	//	4. JIT.Free or JIT.Close to release the code.
	JIT struct {
		mu      sync.RWMutex
		session *Session
		front   *frontend
		libs    *libraryLoader
		closed  bool
		debug   bool
	}
)

// unique keeps the first occurrence of every value.
func unique(v []string) []string {
	if len(v) < 2 {
		return v
	}
	seen := make(map[string]struct{}, len(v))
	out := make([]string, 0, len(v))
	for _, x := range v {
		if _, ok := seen[x]; !ok {
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	return out
}

// normalize copies the request, dropping repeated paths and libraries.
func (r Request) normalize() Request {
	r.HeaderPaths = unique(r.HeaderPaths)
	r.LibraryPaths = unique(r.LibraryPaths)
	r.Libraries = unique(r.Libraries)
	return r
}

// New creates a JIT for the host. It panics if the host is unsupported.
func New(cfg Config) (*JIT, error) {
	t := ensureHostTargetInitialized()
	tools := &Toolchain{Clang: cfg.Clang, Opt: cfg.Opt, Llc: cfg.Llc, debug: cfg.Debug}
	if err := tools.Check(); err != nil {
		return nil, err
	}
	if cfg.Standard == "" {
		cfg.Standard = "c99"
	}
	if cfg.Runtime == "" {
		cfg.Runtime = DefaultRuntime()
	}
	if cfg.SystemIncludes == nil {
		cfg.SystemIncludes = t.systemIncludes()
	}
	j := &JIT{debug: cfg.Debug}
	j.session = newSession(t, tools, cfg.StrictNamespace, cfg.Debug)
	j.front = &frontend{
		tools:    tools,
		target:   t,
		runtime:  cfg.Runtime,
		standard: cfg.Standard,
		system:   cfg.SystemIncludes,
		debug:    cfg.Debug,
	}
	j.libs = newLibraryLoader(j.session.RegisterLibrary, cfg.Debug)
	return j, nil
}

// Translate compiles, optimizes and links req.Source into a new unit. The
// required libraries are loaded first; a failure leaves libraries loaded
// before it registered but adds no unit.
func (j *JIT) Translate(req Request) (Handle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, ErrClosed
	}
	req = req.normalize()
	if err := j.libs.ensure(req.Libraries, req.LibraryPaths); err != nil {
		return 0, err
	}
	m, err := j.front.compileToIR(j.session.nextName(), req.Source, req.HeaderPaths, req.Debug)
	if err != nil {
		return 0, err
	}
	u, err := j.session.AddModule(m)
	if err != nil {
		return 0, err
	}
	if j.debug {
		log.Printf("translated unit %d", u.id)
	}
	return u.id, nil
}

// GetFunction resolves name. A zero handle searches every unit in creation
// order, then libraries, the process and the host image. A unit handle
// searches its own unit first.
func (j *JIT) GetFunction(h Handle, name string) (Sym, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0, ErrClosed
	}
	return j.session.Lookup(h, name)
}

// Symbols exported by the unit of h.
func (j *JIT) Symbols(h Handle) ([]string, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}
	return j.session.Symbols(h)
}

// Units are the live handles in creation order.
func (j *JIT) Units() []Handle {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.session.Handles()
}

// Free unmaps the unit of h. Symbols fetched from it must not be used
// afterwards.
func (j *JIT) Free(h Handle) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	if err := j.session.Remove(h); err != nil {
		return err
	}
	if j.debug {
		log.Printf("freed unit %d", h)
	}
	return nil
}

// Close releases every unit and library. Closing twice is a no-op.
func (j *JIT) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if err := j.session.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
