// Package membuf stands in for the native heap that a real accelerator
// backend would allocate buffers on. The JIT ABI (spec.md §4.4) passes
// buffers around as raw allocated/aligned pointer words inside a packed
// memref descriptor; since this runtime has no cgo/native compiler backend
// available, those pointer words are opaque handles into this package's
// arena rather than real addresses, and pkg/ir's interpreter resolves them
// back to Go slices when it executes an op.
package membuf

import (
	"sync"
	"sync/atomic"

	"github.com/gomlx/exceptions"
)

// Buffer is the arena-resident payload behind a memref handle: a flat,
// row-major element slice. It carries no dtype tag; the slice's Go type is
// all a reader has to interpret it.
type Buffer struct {
	// Data holds the elements as a Go slice of the dtype's native Go type
	// (e.g. []float64, []int32, []bool). Interpreters type-assert it.
	Data any
}

var (
	counter atomic.Uint64
	mu      sync.RWMutex
	table   = make(map[uintptr]*Buffer)
)

// Alloc registers data in the arena and returns the opaque handle that the
// packed-ABI memref descriptor carries as its allocated/aligned pointer
// words.
func Alloc(data any) uintptr {
	h := uintptr(counter.Add(1))
	mu.Lock()
	table[h] = &Buffer{Data: data}
	mu.Unlock()
	return h
}

// Lookup resolves a handle back to its Buffer. It returns false if the
// handle was never allocated or has since been freed.
func Lookup(handle uintptr) (*Buffer, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := table[handle]
	return b, ok
}

// Free releases a handle. Freeing an already-free or unknown handle is a
// no-op: unlike registry.Del, arena bookkeeping carries no user-visible
// double-drop semantics.
func Free(handle uintptr) {
	mu.Lock()
	delete(table, handle)
	mu.Unlock()
}

// MustLookup is Lookup for callers (the interpreter, delivery callbacks)
// that treat a dangling handle as a compiler/runtime invariant violation
// rather than recoverable input, mirroring how gomlx's exceptions package is
// used for "this should be structurally impossible" failures.
func MustLookup(handle uintptr) *Buffer {
	b, ok := Lookup(handle)
	if !ok {
		exceptions.Panicf("membuf: dangling handle %d", handle)
	}
	return b
}
