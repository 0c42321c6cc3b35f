/*
Package cjit is a just in time compiler for C source text based on the LLVM toolchain.

# License

Source codes are under Apache License Version 2.0.

# Underwater

 1. Source text is translated to LLVM IR by clang, without touching the disk: it is mapped to a synthetic file.
 2. IR is optimized by opt with instruction combining, reassociation, GVN and CFG simplification, then compiled by llc.
 3. The relocatable object is linked by package [github.com/ZenLiuCN/cjit/linker] into executable memory of the process.
 4. Undefined symbols resolve against earlier units, loaded libraries, the process and the host executable, in this order.

# Notes

 1. Current only linux on amd64 and arm64, the toolchain must be installed (or configured via CJIT_CLANG, CJIT_OPT, CJIT_LLC).
 2. Every translation is an own unit with its own scope, the same name may be defined by many units.
    Use Config.StrictNamespace to reject such definitions.
 3. A unit other units import from can not be freed before them.
 4. Static constructors and thread local storage are not supported.
 5. Sym is a raw code address. Use [Call] or [Bind] to invoke it, and never after the unit is freed.

# Compiler tool

The cli tool translates C files and calls their functions:

	go install github.com/ZenLiuCN/cjit/compiler@latest

For more details see the cli help:

	compiler -h

# Use this library on develop stage or compile distribution binaries

Exported symbols of the host executable are registered via [goloader], which compiles against
internal packages of the go sdk.

  - 1. Prepare GO sdk

    use compiler cli tool via `compiler prepare`, it copies $GOROOT/src/cmd/internal to $GOROOT/src/cmd/objfile.

  - 2. Build the host executable

  - 3. Restore the GO SDK

    use compiler cli tool via `compiler clean`.

# Samples

See testdata and tests.

[goloader]: https://github.com/pkujhd/goloader
*/
package cjit
