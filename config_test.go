package cjit

import (
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("CJIT_CLANG", "/opt/llvm/bin/clang")
	t.Setenv("CJIT_STRICT", "true")
	cfg := DefaultConfig()
	if cfg.Clang != "/opt/llvm/bin/clang" {
		t.Fatalf("clang %q", cfg.Clang)
	}
	if cfg.Opt == "" || cfg.Llc == "" {
		t.Fatalf("defaults %+v", cfg)
	}
	if !cfg.StrictNamespace || cfg.Standard != "c99" {
		t.Fatalf("config %+v", cfg)
	}
}

func TestReadConfig(t *testing.T) {
	t.Setenv("CJIT_LLC", "llc-17")
	cfg, err := ReadConfig(strings.NewReader(`
clang: clang-17
runtime: /usr/lib/cjit/include
system_includes:
  - /usr/local/include
  - /usr/include
debug: true
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Clang != "clang-17" || cfg.Llc != "llc-17" || !cfg.Debug {
		t.Fatalf("config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.SystemIncludes, []string{"/usr/local/include", "/usr/include"}) {
		t.Fatal(cfg.SystemIncludes)
	}
	if cfg, err = ReadConfig(strings.NewReader("")); err != nil || cfg.Standard != "c99" {
		t.Fatalf("empty config %+v: %v", cfg, err)
	}
	if _, err = ReadConfig(strings.NewReader("clang: [")); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := LoadConfig(t.TempDir() + "/missing.yaml"); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestDefaultConfigReloads(t *testing.T) {
	t.Setenv("CJIT_CLANG", "clang")
	if cfg := DefaultConfig(); cfg.Clang != "clang" {
		t.Fatalf("clang %q", cfg.Clang)
	}
	t.Setenv("CJIT_CLANG", "/usr/local/bin/clang-99")
	t.Setenv("CJIT_DEBUG", "true")
	cfg := DefaultConfig()
	if cfg.Clang != "/usr/local/bin/clang-99" || !cfg.Debug {
		t.Fatalf("stale environment %+v", cfg)
	}
}

func TestDefaultRuntime(t *testing.T) {
	t.Setenv("CJIT_RUNTIME", "")
	rt := DefaultRuntime()
	if filepath.Base(rt) != "clang_stdlib" || !filepath.IsAbs(rt) {
		t.Fatalf("runtime %q", rt)
	}
	if cfg := DefaultConfig(); cfg.Runtime != rt {
		t.Fatalf("config runtime %q", cfg.Runtime)
	}
	t.Setenv("CJIT_RUNTIME", "/usr/lib/cjit/include")
	if cfg := DefaultConfig(); cfg.Runtime != "/usr/lib/cjit/include" {
		t.Fatalf("config runtime %q", cfg.Runtime)
	}
}
