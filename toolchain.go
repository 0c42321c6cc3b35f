package cjit

import (
	"bytes"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
)

// Toolchain locates the LLVM programs driving each stage.
type Toolchain struct {
	Clang string // C front end
	Opt   string // IR optimizer
	Llc   string // code generator
	debug bool
}

// Check resolves every program against PATH.
func (t *Toolchain) Check() (err error) {
	for _, p := range []*string{&t.Clang, &t.Opt, &t.Llc} {
		var path string
		if path, err = exec.LookPath(*p); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrToolchain, *p, err)
		}
		*p = path
	}
	return
}

// run a program feeding in on stdin and returning its stdout. Diagnostics
// of a failing run are part of the error.
func (t *Toolchain) run(tool string, args []string, in []byte) ([]byte, error) {
	cmd := exec.Command(tool, args...)
	cmd.Stdin = bytes.NewReader(in)
	var out, diag bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &diag
	if t.debug {
		log.Printf("execute: %v", cmd.Args)
	}
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w\n%s", filepath.Base(tool), err, strings.TrimSpace(diag.String()))
	}
	if t.debug && diag.Len() > 0 {
		log.Printf("%s: %s", filepath.Base(tool), diag.String())
	}
	return out.Bytes(), nil
}
