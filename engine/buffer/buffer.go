package buffer

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
)

// ErrEmbeddedNull is returned when a string cannot become a NUL-terminated buffer
var ErrEmbeddedNull = errors.New("string contains an embedded NUL byte")

// ErrUnterminated is returned when a library buffer has no NUL terminator within the allowed size
var ErrUnterminated = errors.New("buffer is not NUL-terminated within the size limit")

// Owner identifies which allocator domain must release a buffer
type Owner int

const (
	// CallerOwned buffers were allocated by the binding and are freed with its native allocator
	CallerOwned Owner = iota
	// LibraryOwned buffers were allocated by the external library and are freed with the library's free function
	LibraryOwned
)

func (o Owner) String() string {
	switch o {
	case CallerOwned:
		return "caller"
	case LibraryOwned:
		return "library"
	}

	return fmt.Sprintf("owner(%d)", int(o))
}

// Allocator is a native allocator whose memory is never moved by the Go runtime
type Allocator interface {
	Malloc(size uintptr) unsafe.Pointer
	Free(ptr unsafe.Pointer)
}

// ConversionError describes a value that could not be converted for the C ABI
type ConversionError struct {
	Field string
	Index int
}

func (c *ConversionError) Error() string {
	if c.Index >= 0 {
		return fmt.Sprintf("convert %s[%d]: %s", c.Field, c.Index, ErrEmbeddedNull)
	}

	return fmt.Sprintf("convert %s: %s", c.Field, ErrEmbeddedNull)
}

// Unwrap allows errors.Is(err, ErrEmbeddedNull)
func (c *ConversionError) Unwrap() error {
	return ErrEmbeddedNull
}

// Buffer is a pointer into native memory tagged with the party responsible for releasing it
type Buffer struct {
	ptr      unsafe.Pointer
	owner    Owner
	free     func(unsafe.Pointer)
	released bool
}

// CString copies s into a NUL-terminated caller-owned buffer
func CString(alloc Allocator, field string, s string) (*Buffer, error) {
	return cstring(alloc, &ConversionError{Field: field, Index: -1}, s)
}

func cstring(alloc Allocator, convErr *ConversionError, s string) (*Buffer, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, convErr
	}

	ptr := alloc.Malloc(uintptr(len(s) + 1))
	if ptr == nil {
		return nil, errors.Errorf("native allocation of %d bytes failed", len(s)+1)
	}

	dst := unsafe.Slice((*byte)(ptr), len(s)+1)
	copy(dst, s)
	dst[len(s)] = 0

	b := &Buffer{
		ptr:   ptr,
		owner: CallerOwned,
		free:  alloc.Free,
	}

	return b, nil
}

// Adopt takes ownership of a buffer returned by the library, to be released with free.
// A nil pointer produces an already-released buffer.
func Adopt(ptr unsafe.Pointer, free func(unsafe.Pointer)) *Buffer {
	return &Buffer{
		ptr:      ptr,
		owner:    LibraryOwned,
		free:     free,
		released: ptr == nil,
	}
}

// Ptr returns the raw pointer, or nil once released
func (b *Buffer) Ptr() unsafe.Pointer {
	if b == nil || b.released {
		return nil
	}

	return b.ptr
}

// Owner returns the buffer's allocator domain
func (b *Buffer) Owner() Owner {
	return b.owner
}

// Released reports whether the buffer has been freed
func (b *Buffer) Released() bool {
	return b == nil || b.released
}

// Release frees the buffer through its owner's allocator. Only the first call has an effect.
func (b *Buffer) Release() {
	if b == nil || b.released {
		return
	}

	b.released = true
	b.free(b.ptr)
	b.ptr = nil
}

// GoString copies the NUL-terminated buffer at ptr into Go memory, scanning at most max bytes
func GoString(ptr unsafe.Pointer, max int) (string, error) {
	if ptr == nil {
		return "", errors.New("nil buffer")
	}

	for n := 0; n < max; n++ {
		if *(*byte)(unsafe.Add(ptr, n)) == 0 {
			return string(unsafe.Slice((*byte)(ptr), n)), nil
		}
	}

	return "", ErrUnterminated
}
