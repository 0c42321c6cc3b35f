package cjit

import (
	"fmt"
	"log"
	"strconv"
)

// sourcePath is where translated source text appears to the front end.
const sourcePath = "/cjit_memory_mapped_file.c"

// Module is the IR of one translated source.
type Module struct {
	Name string
	Path string // presumed source file
	IR   []byte // textual LLVM IR
}

type frontend struct {
	tools    *Toolchain
	target   *target
	runtime  string   // built-in runtime headers
	standard string   // language standard
	system   []string // OS default include directories
	debug    bool
}

// command synthesizes the front end arguments for one translation.
func (f *frontend) command(headers []string, debug bool) []string {
	args := make([]string, 0, 4+len(headers)+len(f.system))
	if debug {
		args = append(args, "-O0")
	} else {
		args = append(args, "-O3")
	}
	args = append(args, "-std="+f.standard, "-isystem"+f.runtime)
	for _, h := range headers {
		args = append(args, "-isystem"+h)
	}
	for _, s := range f.system {
		args = append(args, "-isystem"+s)
	}
	return append(args, sourcePath)
}

// mapSource presents source as the content of path. Nothing touches the disk.
func mapSource(path, source string) []byte {
	b := make([]byte, 0, len(path)+len(source)+8)
	b = append(b, "# 1 "...)
	b = strconv.AppendQuote(b, path)
	b = append(b, '\n')
	return append(b, source...)
}

// compileToIR translates C source into a Module named name.
func (f *frontend) compileToIR(name, source string, headers []string, debug bool) (*Module, error) {
	inv, err := ParseInvocation(f.command(headers, debug))
	if err != nil {
		return nil, err
	}
	args := append(inv.Args(),
		"-target", f.target.triple,
		"-fPIC",
		"-fno-asynchronous-unwind-tables",
		"-S", "-emit-llvm",
		"-o", "-",
		"-x", "c", "-")
	ir, err := f.tools.run(f.tools.Clang, args, mapSource(inv.Input, source))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompilation, err)
	}
	if f.debug {
		log.Printf("translated %s: %d bytes of IR", name, len(ir))
	}
	return &Module{Name: name, Path: inv.Input, IR: ir}, nil
}
