package enginetest

import (
	"sync"
	"unsafe"
)

// Allocator is a native-style allocator backed by Go memory that records every
// allocation, so tests can assert each buffer is freed exactly once and by the right party
type Allocator struct {
	live    map[uintptr][]byte
	allocs  int
	frees   int
	invalid int
	lock    sync.Mutex
}

// NewAllocator creates an empty Allocator
func NewAllocator() *Allocator {
	a := &Allocator{
		live: map[uintptr][]byte{},
	}

	return a
}

// Malloc returns zeroed, 8-byte aligned memory that stays put until freed
func (a *Allocator) Malloc(size uintptr) unsafe.Pointer {
	a.lock.Lock()
	defer a.lock.Unlock()

	// round up so pointer arrays stay aligned, and never hand out zero bytes
	n := (size + 7) &^ 7
	if n == 0 {
		n = 8
	}

	b := make([]byte, n)
	ptr := unsafe.Pointer(&b[0])

	a.live[uintptr(ptr)] = b
	a.allocs++

	return ptr
}

// Free releases ptr. Freeing nil is a no-op; anything not currently live counts as an invalid free.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if _, ok := a.live[uintptr(ptr)]; !ok {
		a.invalid++
		return
	}

	delete(a.live, uintptr(ptr))
	a.frees++
}

// Owns returns true if ptr is a live allocation of this allocator
func (a *Allocator) Owns(ptr unsafe.Pointer) bool {
	a.lock.Lock()
	defer a.lock.Unlock()

	_, ok := a.live[uintptr(ptr)]

	return ok
}

// Live returns the number of allocations not yet freed
func (a *Allocator) Live() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return len(a.live)
}

// Allocs returns the total number of allocations
func (a *Allocator) Allocs() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.allocs
}

// Frees returns the total number of successful frees
func (a *Allocator) Frees() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.frees
}

// InvalidFrees returns how many frees targeted memory this allocator did not own (double or foreign frees)
func (a *Allocator) InvalidFrees() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.invalid
}
