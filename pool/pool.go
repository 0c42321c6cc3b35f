package pool

import (
	"errors"
	"slices"
	"sync"

	. "github.com/ZenLiuCN/cjit"
	"github.com/ZenLiuCN/fn"
)

// Pool keeps named units of one JIT. Units loaded later may use symbols of
// units loaded earlier.
type Pool struct {
	*JIT
	Modules map[string]Handle
	Loaded  []string // names in load order
	sync.RWMutex
}

var (
	ErrAlreadyLoad = errors.New("module already loaded")
	ErrNotLoad     = errors.New("module not loaded")
	ErrCorrupted   = errors.New("recording corrupted")
)

// Load translates req as module name.
func (p *Pool) Load(name string, req Request) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[name]; ok {
		return ErrAlreadyLoad
	}
	return p.load(name, req)
}

func (p *Pool) load(name string, req Request) error {
	h, err := p.Translate(req)
	if err != nil {
		return err
	}
	p.Modules[name] = h
	p.Loaded = append(p.Loaded, name)
	return nil
}

// Reload replaces module name. Modules loaded after it are unloaded first,
// newest first, and must be loaded again by the caller.
func (p *Pool) Reload(name string, req Request) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Modules[name]; !ok {
		return ErrNotLoad
	}
	i := slices.Index(p.Loaded, name)
	if i < 0 {
		return ErrCorrupted
	}
	for j := len(p.Loaded) - 1; j >= i; j-- {
		if err = p.unload(p.Loaded[j]); err != nil {
			return
		}
	}
	return p.load(name, req)
}

// Unload frees module name. Modules using it keep it alive.
func (p *Pool) Unload(name string) error {
	p.Lock()
	defer p.Unlock()
	return p.unload(name)
}

func (p *Pool) unload(name string) error {
	h, ok := p.Modules[name]
	if !ok {
		return ErrNotLoad
	}
	if err := p.Free(h); err != nil {
		return err
	}
	delete(p.Modules, name)
	p.Loaded = slices.DeleteFunc(p.Loaded, func(s string) bool { return s == name })
	return nil
}

// Lookup a symbol of module name.
func (p *Pool) Lookup(name, symbol string) (Sym, error) {
	p.RLock()
	defer p.RUnlock()
	h, ok := p.Modules[name]
	if !ok {
		return 0, ErrNotLoad
	}
	return p.GetFunction(h, symbol)
}

// Require fetch symbol from module, panics on failure.
func (p *Pool) Require(name, symbol string) Sym {
	return fn.Panic1(p.Lookup(name, symbol))
}

// Close the pool and its JIT.
func (p *Pool) Close() error {
	p.Lock()
	defer p.Unlock()
	p.Modules = make(map[string]Handle)
	p.Loaded = nil
	return p.JIT.Close()
}

// NewPool create new pool
func NewPool(cfg Config) (p *Pool, err error) {
	p = new(Pool)
	p.Modules = make(map[string]Handle)
	p.JIT, err = New(cfg)
	return
}
