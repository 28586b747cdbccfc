//go:build darwin || linux

package native

import (
	"runtime"
	"sort"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"

	"github.com/suborbital/zsbind/engine/buffer"
)

// DynamicLibrary is a Library loaded at runtime with dlopen
type DynamicLibrary struct {
	path   string
	handle uintptr
	libc   uintptr
	alloc  *libcAllocator

	init                func(argc int32, argv unsafe.Pointer)
	runFile             func(path unsafe.Pointer) int32
	interpret           func(source, name unsafe.Pointer) int32
	interpretWithResult func(source, name unsafe.Pointer, exitCode unsafe.Pointer) unsafe.Pointer
	runFileWithResult   func(path unsafe.Pointer, exitCode unsafe.Pointer) unsafe.Pointer
	freeResult          func(ptr unsafe.Pointer)
	teardown            func()

	// missing holds the optional entry points the library does not export, keyed by symbol name
	missing map[string]error
	syms    Symbols
}

// libcAllocator is the process malloc/free pair
type libcAllocator struct {
	malloc func(size uintptr) unsafe.Pointer
	free   func(ptr unsafe.Pointer)
}

func (a *libcAllocator) Malloc(size uintptr) unsafe.Pointer {
	return a.malloc(size)
}

func (a *libcAllocator) Free(ptr unsafe.Pointer) {
	if ptr != nil {
		a.free(ptr)
	}
}

// DefaultPath returns the platform file name of the engine library
func DefaultPath() string {
	if runtime.GOOS == "darwin" {
		return "libzscript.dylib"
	}

	return "libzscript.so"
}

func libcName() string {
	if runtime.GOOS == "darwin" {
		return "/usr/lib/libSystem.B.dylib"
	}

	return "libc.so.6"
}

// Open loads the library described by cfg and resolves its entry points
func Open(cfg Config) (*DynamicLibrary, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultPath()
	}

	syms := cfg.Symbols.WithDefaults()

	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to Dlopen %s", path)
	}

	libc, err := purego.Dlopen(libcName(), purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		purego.Dlclose(handle)
		return nil, errors.Wrapf(err, "failed to Dlopen %s", libcName())
	}

	l := &DynamicLibrary{
		path:    path,
		handle:  handle,
		libc:    libc,
		alloc:   &libcAllocator{},
		missing: map[string]error{},
		syms:    syms,
	}

	required := []struct {
		lib  uintptr
		name string
		fn   interface{}
	}{
		{libc, "malloc", &l.alloc.malloc},
		{libc, "free", &l.alloc.free},
		{handle, syms.Init, &l.init},
		{handle, syms.RunFile, &l.runFile},
		{handle, syms.InterpretWithResult, &l.interpretWithResult},
		{handle, syms.Teardown, &l.teardown},
	}

	// a configured free function is never replaced by the process free
	if syms.FreeResult != "" {
		required = append(required, struct {
			lib  uintptr
			name string
			fn   interface{}
		}{handle, syms.FreeResult, &l.freeResult})
	}

	for _, r := range required {
		if err := register(r.lib, r.name, r.fn); err != nil {
			l.Close()
			return nil, err
		}
	}

	optional := []struct {
		name string
		fn   interface{}
	}{
		{syms.Interpret, &l.interpret},
		{syms.RunFileWithResult, &l.runFileWithResult},
	}

	// a missing optional symbol leaves the func nil, checked at call time
	for _, o := range optional {
		if err := register(handle, o.name, o.fn); err != nil {
			l.missing[o.name] = err
		}
	}

	return l, nil
}

// Missing returns the optional entry points that the library does not export
func (l *DynamicLibrary) Missing() []string {
	names := make([]string, 0, len(l.missing))
	for name := range l.missing {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// unresolved reports a call to an optional entry point that failed to resolve
func (l *DynamicLibrary) unresolved(name string) error {
	return symbolNotFound(name, l.missing[name])
}

func register(lib uintptr, name string, fptr interface{}) error {
	sym, err := purego.Dlsym(lib, name)
	if err != nil {
		return errors.Wrapf(err, "failed to Dlsym %s", name)
	}

	purego.RegisterFunc(fptr, sym)

	return nil
}

func (l *DynamicLibrary) Init(argc int32, argv unsafe.Pointer) {
	l.init(argc, argv)
}

func (l *DynamicLibrary) RunFile(path unsafe.Pointer) int32 {
	return l.runFile(path)
}

func (l *DynamicLibrary) Interpret(source, name unsafe.Pointer) (int32, error) {
	if l.interpret == nil {
		return 0, l.unresolved(l.syms.Interpret)
	}

	return l.interpret(source, name), nil
}

func (l *DynamicLibrary) InterpretWithResult(source, name unsafe.Pointer, exitCode *int32) unsafe.Pointer {
	return l.interpretWithResult(source, name, unsafe.Pointer(exitCode))
}

func (l *DynamicLibrary) RunFileWithResult(path unsafe.Pointer, exitCode *int32) (unsafe.Pointer, error) {
	if l.runFileWithResult == nil {
		return nil, l.unresolved(l.syms.RunFileWithResult)
	}

	return l.runFileWithResult(path, unsafe.Pointer(exitCode)), nil
}

// FreeResult releases a result buffer with the library's own free function when it
// exports one, otherwise with the process free that its C strings are allocated from
func (l *DynamicLibrary) FreeResult(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	if l.freeResult != nil {
		l.freeResult(ptr)
		return
	}

	l.alloc.Free(ptr)
}

func (l *DynamicLibrary) Teardown() {
	l.teardown()
}

func (l *DynamicLibrary) Allocator() buffer.Allocator {
	return l.alloc
}

// Path returns the path the library was loaded from
func (l *DynamicLibrary) Path() string {
	return l.path
}

// Close unloads the library. The engine must have been torn down first.
func (l *DynamicLibrary) Close() error {
	var errs []error

	if l.handle != 0 {
		if err := purego.Dlclose(l.handle); err != nil {
			errs = append(errs, errors.Wrap(err, "failed to Dlclose library"))
		}
		l.handle = 0
	}

	if l.libc != 0 {
		if err := purego.Dlclose(l.libc); err != nil {
			errs = append(errs, errors.Wrap(err, "failed to Dlclose libc"))
		}
		l.libc = 0
	}

	if len(errs) > 0 {
		return errs[0]
	}

	return nil
}
