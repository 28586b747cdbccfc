package buffer

import (
	"unsafe"

	"github.com/pkg/errors"
)

// ArgumentVector is an argc/argv pair in native memory. The argv array
// carries a trailing NULL sentinel as the C calling convention expects.
type ArgumentVector struct {
	alloc Allocator
	args  []*Buffer
	argv  unsafe.Pointer
}

// NewArgumentVector converts args into NUL-terminated caller-owned buffers. If any
// argument fails to convert, everything allocated so far is released before returning.
func NewArgumentVector(alloc Allocator, args []string) (*ArgumentVector, error) {
	v := &ArgumentVector{
		alloc: alloc,
		args:  make([]*Buffer, 0, len(args)),
	}

	for i, arg := range args {
		b, err := cstring(alloc, &ConversionError{Field: "argv", Index: i}, arg)
		if err != nil {
			v.Release()
			return nil, err
		}

		v.args = append(v.args, b)
	}

	ptrSize := unsafe.Sizeof(uintptr(0))

	argv := alloc.Malloc(ptrSize * uintptr(len(args)+1))
	if argv == nil {
		v.Release()
		return nil, errors.New("native allocation of argv failed")
	}

	slots := unsafe.Slice((*unsafe.Pointer)(argv), len(args)+1)
	for i, b := range v.args {
		slots[i] = b.Ptr()
	}
	slots[len(args)] = nil

	v.argv = argv

	return v, nil
}

// Argc returns the argument count, excluding the sentinel
func (v *ArgumentVector) Argc() int32 {
	return int32(len(v.args))
}

// Argv returns the pointer to the first element of the argv array
func (v *ArgumentVector) Argv() unsafe.Pointer {
	return v.argv
}

// Release frees every argument buffer and the argv array. Safe to call more than once.
func (v *ArgumentVector) Release() {
	if v == nil {
		return
	}

	for _, b := range v.args {
		b.Release()
	}

	if v.argv != nil {
		v.alloc.Free(v.argv)
		v.argv = nil
	}
}

// SourceUnit is a source text and its logical name, both as caller-owned C strings
type SourceUnit struct {
	source *Buffer
	name   *Buffer
}

// NewSourceUnit converts source and name for an evaluate call
func NewSourceUnit(alloc Allocator, source, name string) (*SourceUnit, error) {
	src, err := CString(alloc, "source", source)
	if err != nil {
		return nil, err
	}

	n, err := CString(alloc, "name", name)
	if err != nil {
		src.Release()
		return nil, err
	}

	return &SourceUnit{source: src, name: n}, nil
}

// Source returns the source text pointer
func (s *SourceUnit) Source() unsafe.Pointer {
	return s.source.Ptr()
}

// Name returns the logical name pointer
func (s *SourceUnit) Name() unsafe.Pointer {
	return s.name.Ptr()
}

// Release frees both buffers
func (s *SourceUnit) Release() {
	if s == nil {
		return
	}

	s.source.Release()
	s.name.Release()
}
