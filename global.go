package cjit

import (
	"debug/elf"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ZenLiuCN/cjit/linker"
	"github.com/ZenLiuCN/fn"
	"github.com/pkujhd/goloader"
)

// target is the host code is compiled for and mapped into.
type target struct {
	triple    string
	multiarch string // multiarch include directory name
	prefix    string // global prefix of the mangling scheme
	backend   linker.Backend
	image     map[string]uintptr
}

// Process wide host target, registered once and never torn down.
var (
	hostMu        sync.Mutex
	hostDone      bool
	host          *target
	registrations atomic.Int32
)

// ensureHostTargetInitialized registers the host target on first use. Every
// caller blocks until registration completed. An unsupported host panics.
func ensureHostTargetInitialized() *target {
	hostMu.Lock()
	defer hostMu.Unlock()
	if !hostDone {
		host = registerHostTarget()
		hostDone = true
	}
	return host
}

func registerHostTarget() *target {
	registrations.Add(1)
	t := new(target)
	var m elf.Machine
	switch runtime.GOOS + "/" + runtime.GOARCH {
	case "linux/amd64":
		t.triple, t.multiarch, m = "x86_64-unknown-linux-gnu", "x86_64-linux-gnu", elf.EM_X86_64
	case "linux/arm64":
		t.triple, t.multiarch, m = "aarch64-unknown-linux-gnu", "aarch64-linux-gnu", elf.EM_AARCH64
	default:
		panic(fmt.Errorf("%w: %s/%s", ErrUnsupportedHost, runtime.GOOS, runtime.GOARCH))
	}
	t.backend = fn.Panic1(linker.BackendFor(m))
	// symbols of the host executable, including those missing from its dynamic symbol table
	t.image = make(map[string]uintptr)
	if err := goloader.RegSymbol(t.image); err != nil {
		log.Printf("host image symbols unavailable: %v", err)
	}
	return t
}

// mangle maps a logical name to the linker name.
func (t *target) mangle(name string) string {
	return t.prefix + name
}

func (t *target) demangle(name string) string {
	return name[len(t.prefix):]
}

// systemIncludes are the fixed OS default include directories.
func (t *target) systemIncludes() []string {
	return []string{"/usr/include", "/usr/include/" + t.multiarch}
}
