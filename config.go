package cjit

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/ZenLiuCN/fn"
	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"
)

// Config of a JIT.
type Config struct {
	Clang           string   `yaml:"clang"`            // C front end program
	Opt             string   `yaml:"opt"`              // IR optimizer program
	Llc             string   `yaml:"llc"`              // code generator program
	Runtime         string   `yaml:"runtime"`          // built-in runtime header directory, searched first
	Standard        string   `yaml:"std"`              // C language standard
	SystemIncludes  []string `yaml:"system_includes"`  // OS default include directories, searched last
	StrictNamespace bool     `yaml:"strict_namespace"` // reject exports already defined by a live unit
	Debug           bool     `yaml:"debug"`            // log every stage
}

// DefaultConfig reads CJIT_CLANG, CJIT_OPT, CJIT_LLC, CJIT_RUNTIME,
// CJIT_STRICT and CJIT_DEBUG from the environment. The environment is read
// again on every call.
func DefaultConfig() Config {
	env.Load()
	return Config{
		Clang:           env.Str("CJIT_CLANG", "clang"),
		Opt:             env.Str("CJIT_OPT", "opt"),
		Llc:             env.Str("CJIT_LLC", "llc"),
		Runtime:         env.Str("CJIT_RUNTIME", DefaultRuntime()),
		Standard:        "c99",
		StrictNamespace: env.Bool("CJIT_STRICT"),
		Debug:           env.Bool("CJIT_DEBUG"),
	}
}

// DefaultRuntime is the clang_stdlib directory beside the running executable.
func DefaultRuntime() string {
	exe, err := os.Executable()
	if err != nil {
		return "clang_stdlib"
	}
	return filepath.Join(filepath.Dir(exe), "clang_stdlib")
}

// ReadConfig decodes YAML over DefaultConfig.
func ReadConfig(r io.Reader) (cfg Config, err error) {
	cfg = DefaultConfig()
	if err = yaml.NewDecoder(r).Decode(&cfg); errors.Is(err, io.EOF) {
		err = nil
	}
	return
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (cfg Config, err error) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer fn.IgnoreClose(f)
	return ReadConfig(f)
}
