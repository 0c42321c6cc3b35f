package linker

// flushCache cleans the data cache and invalidates the instruction cache over
// [start, end), so instructions written there are seen by every core.
func flushCache(start, end uintptr)
