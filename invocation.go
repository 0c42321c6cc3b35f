package cjit

import (
	"fmt"
	"strings"
)

// Invocation is a parsed front end command line.
type Invocation struct {
	Optimization   string   // level after -O
	Standard       string   // language standard after -std=
	SystemIncludes []string // -isystem directories in search order
	Input          string
}

func argError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArgument, fmt.Sprintf(format, args...))
}

func checkDir(opt, dir string) error {
	switch {
	case dir == "":
		return argError("argument to '%s' is missing", opt)
	case strings.HasPrefix(dir, "-"):
		return argError("argument to '%s' is missing, found option %s", opt, dir)
	case strings.IndexByte(dir, 0) >= 0:
		return argError("argument to '%s' contains NUL", opt)
	}
	return nil
}

// ParseInvocation validates front end arguments. Unknown options, empty or
// missing option values, zero or several inputs are rejected with ErrArgument.
func ParseInvocation(args []string) (*Invocation, error) {
	inv := &Invocation{Optimization: "0"}
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.HasPrefix(a, "-O"):
			switch level := a[2:]; level {
			case "0", "1", "2", "3", "s", "z":
				inv.Optimization = level
			default:
				return nil, argError("invalid integral value '%s' in '%s'", level, a)
			}
		case strings.HasPrefix(a, "-std="):
			if inv.Standard = a[len("-std="):]; inv.Standard == "" {
				return nil, argError("argument to '-std=' is missing")
			}
		case a == "-isystem":
			if i+1 >= len(args) {
				return nil, argError("argument to '-isystem' is missing")
			}
			i++
			if err := checkDir(a, args[i]); err != nil {
				return nil, err
			}
			inv.SystemIncludes = append(inv.SystemIncludes, args[i])
		case strings.HasPrefix(a, "-isystem"):
			dir := a[len("-isystem"):]
			if err := checkDir("-isystem", dir); err != nil {
				return nil, err
			}
			inv.SystemIncludes = append(inv.SystemIncludes, dir)
		case strings.HasPrefix(a, "-"):
			return nil, argError("unknown argument: '%s'", a)
		default:
			if inv.Input != "" {
				return nil, argError("multiple inputs: %s and %s", inv.Input, a)
			}
			inv.Input = a
		}
	}
	if inv.Input == "" {
		return nil, argError("no input files")
	}
	return inv, nil
}

// Args renders the invocation without its input.
func (inv *Invocation) Args() []string {
	args := make([]string, 0, 2+2*len(inv.SystemIncludes))
	args = append(args, "-O"+inv.Optimization)
	if inv.Standard != "" {
		args = append(args, "-std="+inv.Standard)
	}
	for _, dir := range inv.SystemIncludes {
		args = append(args, "-isystem", dir)
	}
	return args
}
