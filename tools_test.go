package cjit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZenLiuCN/fn"
)

func TestInspectFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "jump.o")
	fn.Panic(os.WriteFile(p, objectJump("add"), 0o644))
	info := fn.Panic1(InspectFile(p))
	if len(info.Defined) != 1 || info.Defined[0] != "jump" || len(info.Undefined) != 1 || info.Undefined[0] != "add" {
		t.Fatalf("info %+v", info)
	}
	s := Infos{info}.String()
	if !strings.Contains(s, "\tT jump\n") || !strings.Contains(s, "\tU add\n") {
		t.Fatalf("%q", s)
	}
	if _, err := InspectFile(filepath.Join(t.TempDir(), "missing.o")); err == nil {
		t.Fatal("missing file inspected")
	}
	fn.Panic(os.WriteFile(p, []byte("junk"), 0o644))
	if _, err := InspectFile(p); err == nil {
		t.Fatal("junk inspected")
	}
}

func TestReadRequest(t *testing.T) {
	p := filepath.Join(t.TempDir(), "add.c")
	fn.Panic(os.WriteFile(p, []byte(sourceAdd), 0o644))
	req := fn.Panic1(ReadRequest(p, []string{"/h"}, []string{"/l"}, []string{"m"}, true))
	if req.Source != sourceAdd || req.HeaderPaths[0] != "/h" || req.Libraries[0] != "m" || !req.Debug {
		t.Fatalf("request %+v", req)
	}
}

func TestCopyDir(t *testing.T) {
	src := filepath.Join(t.TempDir(), "internal")
	fn.Panic(os.MkdirAll(filepath.Join(src, "goobj", "testdata"), 0o755))
	fn.Panic(os.WriteFile(filepath.Join(src, "doc.go"), []byte("package internal\n"), 0o644))
	fn.Panic(os.WriteFile(filepath.Join(src, "goobj", "objfile.go"), []byte("package goobj\n"), 0o600))
	fn.Panic(os.WriteFile(filepath.Join(src, "goobj", "testdata", "run.sh"), []byte("#!/bin/sh\n"), 0o755))
	dest := filepath.Join(t.TempDir(), "objfile")
	fn.Panic(CopyDir(src, dest, nil))
	for file, mode := range map[string]os.FileMode{
		"doc.go":                0o644,
		"goobj/objfile.go":      0o600,
		"goobj/testdata/run.sh": 0o755,
	} {
		p := filepath.Join(dest, filepath.FromSlash(file))
		info, err := os.Stat(p)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != mode {
			t.Fatalf("%s mode %v", file, info.Mode())
		}
		if b := fn.Panic1(os.ReadFile(p)); len(b) == 0 {
			t.Fatalf("%s empty", file)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "testdata")); !os.IsNotExist(err) {
		t.Fatalf("nested directory copied to the top: %v", err)
	}
	if err := CopyDir(filepath.Join(src, "missing"), dest, nil); err == nil {
		t.Fatal("missing source copied")
	}
}

func TestPrepareSDK(t *testing.T) {
	root := t.TempDir()
	internal := filepath.Join(root, "src", "cmd", "internal", "objabi")
	fn.Panic(os.MkdirAll(internal, 0o755))
	fn.Panic(os.WriteFile(filepath.Join(internal, "head.go"), []byte("package objabi\n"), 0o644))
	objfile := filepath.Join(root, "src", "cmd", "objfile")
	fn.Panic(PrepareSDK(root, testing.Verbose()))
	copied := filepath.Join(objfile, "objabi", "head.go")
	if b := fn.Panic1(os.ReadFile(copied)); string(b) != "package objabi\n" {
		t.Fatalf("%q", b)
	}
	fn.Panic(os.WriteFile(copied, []byte("package patched\n"), 0o644))
	fn.Panic(PrepareSDK(root, false))
	if b := fn.Panic1(os.ReadFile(copied)); string(b) != "package patched\n" {
		t.Fatal("existing copy replaced")
	}
	fn.Panic(CleanSDK(root, testing.Verbose()))
	if _, err := os.Stat(objfile); !os.IsNotExist(err) {
		t.Fatalf("objfile left: %v", err)
	}
	fn.Panic(CleanSDK(root, false))
	if _, err := os.Stat(internal); err != nil {
		t.Fatal(err)
	}
	if err := PrepareSDK(t.TempDir(), false); err == nil {
		t.Fatal("sdk without cmd/internal prepared")
	}
}
