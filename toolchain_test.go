package cjit

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"github.com/ZenLiuCN/fn"
	"github.com/davecgh/go-spew/spew"
)

const sourceAdd = "int add(int a, int b) { return a + b; }\n"

// newJIT uses the installed toolchain, skipping without one.
func newJIT(t testing.TB, strict bool) *JIT {
	cfg := DefaultConfig()
	for _, tool := range []string{cfg.Clang, cfg.Opt, cfg.Llc} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("toolchain: %v", err)
		}
	}
	cfg.StrictNamespace = strict
	j := fn.Panic1(New(cfg))
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestToolchainAdd(t *testing.T) {
	for _, debug := range []bool{false, true} {
		j := newJIT(t, false)
		h := fn.Panic1(j.Translate(Request{Source: sourceAdd, Debug: debug}))
		add := Bind[func(int32, int32) int32](fn.Panic1(j.GetFunction(h, "add")))
		if r := add(2, 3); r != 5 {
			t.Fatalf("debug %v: add(2, 3) = %d", debug, r)
		}
		if r := add(-7, 3); r != -4 {
			t.Fatalf("debug %v: add(-7, 3) = %d", debug, r)
		}
	}
}

func TestToolchainInvalidSource(t *testing.T) {
	j := newJIT(t, false)
	_, err := j.Translate(Request{Source: "int add(int a, int b) { return a + }\n"})
	if !errors.Is(err, ErrCompilation) {
		t.Fatalf("want ErrCompilation, got %v", err)
	}
	if !strings.Contains(err.Error(), sourcePath) {
		t.Fatalf("diagnostic does not name the source: %v", err)
	}
	if len(j.Units()) != 0 {
		t.Fatal("failed translation added a unit")
	}
}

func TestToolchainUnresolved(t *testing.T) {
	j := newJIT(t, false)
	_, err := j.Translate(Request{Source: "int cjit_missing(void);\nint f(void) { return cjit_missing(); }\n"})
	if !errors.Is(err, ErrLink) || !strings.Contains(err.Error(), "cjit_missing") {
		t.Fatalf("want ErrLink naming cjit_missing, got %v", err)
	}
	if _, err = j.GetFunction(0, "f"); !errors.Is(err, ErrSymbolNotFound) {
		t.Fatal(err)
	}
}

func TestToolchainCrossUnit(t *testing.T) {
	j := newJIT(t, false)
	fn.Panic1(j.Translate(Request{Source: sourceAdd}))
	h := fn.Panic1(j.Translate(Request{Source: "int add(int, int);\nint twice(int a) { return add(a, a); }\n"}))
	twice := Bind[func(int32) int32](fn.Panic1(j.GetFunction(h, "twice")))
	if r := twice(21); r != 42 {
		t.Fatalf("twice(21) = %d", r)
	}
}

func TestToolchainLibc(t *testing.T) {
	j := newJIT(t, false)
	h := fn.Panic1(j.Translate(Request{Source: `#include <string.h>
#include <stdlib.h>
static int counter;
size_t length(const char *s) { return strlen(s); }
int next(void) { return ++counter; }
int absolute(int v) { return abs(v); }
`}))
	b := []byte("cjit\x00")
	if r := Call(fn.Panic1(j.GetFunction(h, "length")), uintptr(unsafe.Pointer(&b[0]))); r != 4 {
		t.Fatalf("length = %d", r)
	}
	runtime.KeepAlive(b)
	next := Bind[func() int32](fn.Panic1(j.GetFunction(h, "next")))
	if next() != 1 || next() != 2 {
		t.Fatal("static state lost")
	}
	if r := Bind[func(int32) int32](fn.Panic1(j.GetFunction(h, "absolute")))(-3); r != 3 {
		t.Fatalf("absolute(-3) = %d", r)
	}
	if names := fn.Panic1(j.Symbols(h)); len(names) != 3 {
		t.Fatalf("exports %s", spew.Sdump(names))
	}
}

func TestToolchainHeaderPaths(t *testing.T) {
	j := newJIT(t, false)
	first, second := t.TempDir(), t.TempDir()
	fn.Panic(os.WriteFile(filepath.Join(first, "answer.h"), []byte("#define ANSWER 42\n"), 0o644))
	fn.Panic(os.WriteFile(filepath.Join(second, "answer.h"), []byte("#define ANSWER 7\n"), 0o644))
	h := fn.Panic1(j.Translate(Request{
		Source:      "#include <answer.h>\nint answer(void) { return ANSWER; }\n",
		HeaderPaths: []string{first, second},
	}))
	if r := Bind[func() int32](fn.Panic1(j.GetFunction(h, "answer")))(); r != 42 {
		t.Fatalf("answer() = %d, want header of the first path", r)
	}
}

func TestToolchainLibrary(t *testing.T) {
	j := newJIT(t, false)
	clang := fn.Panic1(exec.LookPath(DefaultConfig().Clang))
	dir := t.TempDir()
	src := filepath.Join(dir, "triple.c")
	fn.Panic(os.WriteFile(src, []byte("int cjit_triple(int v) { return 3 * v; }\n"), 0o644))
	if out, err := exec.Command(clang, "-shared", "-fPIC", "-o", filepath.Join(dir, "libcjittriple.so"), src).CombinedOutput(); err != nil {
		t.Skipf("build shared library: %v\n%s", err, out)
	}
	h := fn.Panic1(j.Translate(Request{
		Source:       "int cjit_triple(int);\nint nine(void) { return cjit_triple(3); }\n",
		Libraries:    []string{"cjittriple", "cjittriple"},
		LibraryPaths: []string{t.TempDir(), dir},
	}))
	if r := Bind[func() int32](fn.Panic1(j.GetFunction(h, "nine")))(); r != 9 {
		t.Fatalf("nine() = %d", r)
	}
	if _, err := j.GetFunction(0, "cjit_triple"); err != nil {
		t.Fatal(err)
	}
}

func TestToolchainNamespace(t *testing.T) {
	j := newJIT(t, false)
	h1 := fn.Panic1(j.Translate(Request{Source: "int value(void) { return 1; }\n"}))
	h2 := fn.Panic1(j.Translate(Request{Source: "int value(void) { return 2; }\n"}))
	value := func(h Handle) int32 {
		return Bind[func() int32](fn.Panic1(j.GetFunction(h, "value")))()
	}
	if value(h1) != 1 || value(h2) != 2 || value(0) != 1 {
		t.Fatal("unit scopes mixed")
	}
	strict := newJIT(t, true)
	fn.Panic1(strict.Translate(Request{Source: "int value(void) { return 1; }\n"}))
	if _, err := strict.Translate(Request{Source: "int value(void) { return 2; }\n"}); !errors.Is(err, ErrLink) {
		t.Fatalf("strict duplicate: %v", err)
	}
}

func TestToolchainSamples(t *testing.T) {
	j := newJIT(t, false)
	h := fn.Panic1(j.Translate(fn.Panic1(ReadRequest("testdata/add.c", nil, nil, nil, false))))
	if r := Call(fn.Panic1(j.GetFunction(h, "add")), 40, 2); int32(r) != 42 {
		t.Fatalf("add(40, 2) = %d", int32(r))
	}
	h = fn.Panic1(j.Translate(fn.Panic1(ReadRequest("testdata/strings.c", nil, nil, nil, true))))
	if r := Bind[func(int32) int32](fn.Panic1(j.GetFunction(h, "upper")))('a'); r != 'A' {
		t.Fatalf("upper('a') = %c", r)
	}
	if names := fn.Panic1(j.Symbols(h)); len(names) != 3 {
		t.Fatalf("exports %v", names)
	}
	_, err := j.Translate(fn.Panic1(ReadRequest("testdata/invalid.c", nil, nil, nil, false)))
	if !errors.Is(err, ErrCompilation) {
		t.Fatalf("invalid.c: %v", err)
	}
}
