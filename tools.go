package cjit

import (
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZenLiuCN/cjit/linker"
	"github.com/ZenLiuCN/fn"
)

// CopyFile from src to dest with optional src file info
func CopyFile(src string, dest string, si fs.FileInfo) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(sf)
	df, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer fn.IgnoreClose(df)
	if _, err = io.Copy(df, sf); err != nil {
		return
	}
	if si == nil {
		if si, err = os.Stat(src); err != nil {
			return
		}
	}
	return os.Chmod(dest, si.Mode())
}

// CopyDir from src to dest with optional src file info
func CopyDir(src string, dest string, si fs.FileInfo) (err error) {
	if si == nil {
		if si, err = os.Stat(src); err != nil {
			return err
		}
	}
	if err = os.MkdirAll(dest, si.Mode()); err != nil {
		return err
	}
	return filepath.Walk(src, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		dp := filepath.Join(dest, rel)
		if info.IsDir() {
			if err = CopyDir(path, dp, info); err != nil {
				return err
			}
			return filepath.SkipDir
		}
		return CopyFile(path, dp, info)
	})
}

// sdkDirs are the internal packages of a go sdk and the public copy the host
// image loader compiles against.
func sdkDirs(goroot string) (src, dir string) {
	return filepath.Join(goroot, "src", "cmd", "internal"), filepath.Join(goroot, "src", "cmd", "objfile")
}

// PrepareSDK copies $GOROOT/src/cmd/internal to $GOROOT/src/cmd/objfile,
// which must exist to build an executable hosting the JIT. An existing copy
// is kept.
func PrepareSDK(goroot string, debug bool) (err error) {
	src, dir := sdkDirs(goroot)
	if debug {
		log.Printf("prepare go sdk from %s to %s", src, dir)
	}
	if _, err = os.Stat(dir); err == nil {
		if debug {
			log.Printf("did nothing for %s", dir)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return
	}
	if err = CopyDir(src, dir, nil); err != nil {
		return
	}
	if debug {
		log.Printf("copied %s from %s", dir, src)
	}
	return
}

// CleanSDK removes the copy made by PrepareSDK.
func CleanSDK(goroot string, debug bool) (err error) {
	_, dir := sdkDirs(goroot)
	if _, err = os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			if debug {
				log.Printf("did nothing for %s", dir)
			}
			return nil
		}
		return
	}
	if err = os.RemoveAll(dir); err == nil && debug {
		log.Printf("removed %s", dir)
	}
	return
}

// Infos is a stringer slice of Info
type Infos []*Info

func (i Infos) String() string {
	s := strings.Builder{}
	for _, v := range i {
		s.WriteString(v.String())
	}
	return s.String()
}

// Info contains the symbols of a relocatable object file
type Info struct {
	File      string
	Defined   []string // exported definitions
	Undefined []string // symbols resolved at link time
}

func (i Info) String() string {
	s := strings.Builder{}
	s.WriteString(i.File)
	s.WriteByte('\n')
	for _, v := range i.Defined {
		s.WriteString(fmt.Sprintf("\tT %s\n", v))
	}
	for _, v := range i.Undefined {
		s.WriteString(fmt.Sprintf("\tU %s\n", v))
	}
	return s.String()
}

// InspectFile lists the symbols of an object file.
func InspectFile(file string) (info *Info, err error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return
	}
	info = &Info{File: file}
	if info.Defined, info.Undefined, err = linker.Inspect(file, data); err != nil {
		return nil, err
	}
	return
}

// ReadRequest reads a C source file as a request with the given search paths.
func ReadRequest(file string, headers, libraryPaths, libraries []string, debug bool) (req Request, err error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return
	}
	return Request{
		Source:       string(src),
		HeaderPaths:  headers,
		LibraryPaths: libraryPaths,
		Libraries:    libraries,
		Debug:        debug,
	}, nil
}
