//go:build cgo && zscript_cgo

package native

/*
#cgo LDFLAGS: -lzscript
#include <stdlib.h>

extern void ZScript_Init(int argc, char** argv);
extern int ZScript_Interpret(char* csrc, char* cname);
extern int ZScript_RunFile(char* cpath);
extern char* ZScript_InterpretWithResult(char* csrc, char* cname, int* exitCode);
extern char* ZScript_RunFileWithResult(char* cpath, int* exitCode);
extern void ZScript_Free(void);
*/
import "C"

import (
	"unsafe"

	"github.com/suborbital/zsbind/engine/buffer"
)

// LinkedLibrary is the Library bound at link time against -lzscript
type LinkedLibrary struct{}

// the linked library is process-wide, so there is exactly one value for it
var linked = &LinkedLibrary{}

type cAllocator struct{}

func (cAllocator) Malloc(size uintptr) unsafe.Pointer {
	return C.malloc(C.size_t(size))
}

func (cAllocator) Free(ptr unsafe.Pointer) {
	C.free(ptr)
}

// OpenLinked returns the link-time bound library. Symbol names are fixed.
func OpenLinked() *LinkedLibrary {
	return linked
}

func (LinkedLibrary) Init(argc int32, argv unsafe.Pointer) {
	C.ZScript_Init(C.int(argc), (**C.char)(argv))
}

func (LinkedLibrary) RunFile(path unsafe.Pointer) int32 {
	return int32(C.ZScript_RunFile((*C.char)(path)))
}

func (LinkedLibrary) Interpret(source, name unsafe.Pointer) (int32, error) {
	return int32(C.ZScript_Interpret((*C.char)(source), (*C.char)(name))), nil
}

func (LinkedLibrary) InterpretWithResult(source, name unsafe.Pointer, exitCode *int32) unsafe.Pointer {
	var code C.int
	res := C.ZScript_InterpretWithResult((*C.char)(source), (*C.char)(name), &code)
	*exitCode = int32(code)

	return unsafe.Pointer(res)
}

func (LinkedLibrary) RunFileWithResult(path unsafe.Pointer, exitCode *int32) (unsafe.Pointer, error) {
	var code C.int
	res := C.ZScript_RunFileWithResult((*C.char)(path), &code)
	*exitCode = int32(code)

	return unsafe.Pointer(res), nil
}

// FreeResult uses C.free, the allocator behind the library's C.CString results
func (LinkedLibrary) FreeResult(ptr unsafe.Pointer) {
	C.free(ptr)
}

func (LinkedLibrary) Teardown() {
	C.ZScript_Free()
}

func (LinkedLibrary) Allocator() buffer.Allocator {
	return cAllocator{}
}

func (LinkedLibrary) Close() error {
	return nil
}
