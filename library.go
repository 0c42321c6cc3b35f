package cjit

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// libraryLoader makes named libraries available to a session at most once.
type libraryLoader struct {
	loaded   map[string]string // name to path
	exists   func(path string) bool
	register func(path string) error
	debug    bool
}

func newLibraryLoader(register func(path string) error, debug bool) *libraryLoader {
	return &libraryLoader{
		loaded:   make(map[string]string),
		exists:   fileExists,
		register: register,
		debug:    debug,
	}
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// libraryFile is the platform file name of library name.
func libraryFile(name string) string {
	return "lib" + name + ".so"
}

// ensure registers every library in names not yet loaded. The first
// directory of paths holding the library file wins. It stops at the first
// library that can not be found or registered; libraries before it stay
// registered.
func (l *libraryLoader) ensure(names, paths []string) error {
	for _, name := range names {
		if _, ok := l.loaded[name]; ok {
			continue
		}
		file := libraryFile(name)
		found := ""
		for _, dir := range paths {
			if p := filepath.Join(dir, file); l.exists(p) {
				found = p
				break
			}
		}
		if found == "" {
			return fmt.Errorf("%w %s: %s not in [%s]", ErrLibraryNotFound, name, file, strings.Join(paths, ", "))
		}
		if err := l.register(found); err != nil {
			return err
		}
		l.loaded[name] = found
		if l.debug {
			log.Printf("loaded library %s from %s", name, found)
		}
	}
	return nil
}
