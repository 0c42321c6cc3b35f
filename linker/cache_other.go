//go:build !arm64

package linker

// flushCache is a no-op where instruction fetch is coherent with data writes.
func flushCache(start, end uintptr) {}
