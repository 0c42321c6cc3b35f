package cjit

import (
	"runtime"
	"sync"
	"testing"
)

func TestEnsureHostTargetInitialized(t *testing.T) {
	var wg sync.WaitGroup
	got := make([]*target, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = ensureHostTargetInitialized()
		}(i)
	}
	wg.Wait()
	for _, x := range got {
		if x == nil || x != got[0] {
			t.Fatal("callers observed different targets")
		}
	}
	if n := registrations.Load(); n != 1 {
		t.Fatalf("registered %d times", n)
	}
	if got[0].backend == nil || got[0].triple == "" {
		t.Fatalf("incomplete target %+v", got[0])
	}
	switch runtime.GOARCH {
	case "amd64":
		if got[0].triple != "x86_64-unknown-linux-gnu" {
			t.Fatal(got[0].triple)
		}
	case "arm64":
		if got[0].triple != "aarch64-unknown-linux-gnu" {
			t.Fatal(got[0].triple)
		}
	}
}

func TestMangle(t *testing.T) {
	x := &target{prefix: "_"}
	if x.mangle("add") != "_add" || x.demangle("_add") != "add" {
		t.Fatal("prefix scheme")
	}
	h := ensureHostTargetInitialized()
	if h.mangle("add") != "add" {
		t.Fatal("ELF names are not decorated")
	}
	if inc := h.systemIncludes(); len(inc) != 2 || inc[0] != "/usr/include" {
		t.Fatal(inc)
	}
}
