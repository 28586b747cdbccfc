package enginetest

import (
	"os"
	"strings"
	"sync"
	"unsafe"

	"github.com/suborbital/zsbind/engine/buffer"
	"github.com/suborbital/zsbind/engine/native"
)

const maxInput = 1 << 20

// Exit codes reported by the fake, matching libzscript
const (
	codeOK           int32 = 0
	codeCompileError int32 = 65
	codeRuntimeError int32 = 70
	codeIOError      int32 = 74
)

// Response is a canned evaluation outcome
type Response struct {
	Value string
	Code  int32
}

// Library is an in-process stand-in for libzscript. Caller buffers come from Caller,
// result buffers are allocated from Heap and must come back through FreeResult.
type Library struct {
	Caller *Allocator
	Heap   *Allocator

	// Responses overrides evaluation for an exact source text
	Responses map[string]Response
	// NullOnFailure makes the *WithResult calls return nil when the exit code is non-zero
	NullOnFailure bool
	// NilOnSuccess makes the *WithResult calls return nil with a zero exit code
	NilOnSuccess bool
	// RawResult, when set, is returned verbatim (plus a NUL) instead of the formatted value
	RawResult []byte
	// NoInterpret and NoRunFileWithResult simulate libraries without those optional exports
	NoInterpret         bool
	NoRunFileWithResult bool

	Args      []string
	Sentinel  bool
	Inits     int
	Teardowns int
	Names     []string
	Sources   []string
	Paths     []string
	Closes    int
	// ForeignInput is set when an input pointer did not come from the Caller allocator
	ForeignInput bool

	lock sync.Mutex
}

var _ native.Library = &Library{}
var _ native.Partial = &Library{}

// NewLibrary creates a fake library with fresh allocators
func NewLibrary() *Library {
	l := &Library{
		Caller:    NewAllocator(),
		Heap:      NewAllocator(),
		Responses: map[string]Response{},
	}

	return l
}

func (l *Library) Init(argc int32, argv unsafe.Pointer) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.Inits++
	l.Args = nil

	slots := unsafe.Slice((*unsafe.Pointer)(argv), int(argc)+1)
	for i := 0; i < int(argc); i++ {
		l.Args = append(l.Args, l.read(slots[i]))
	}

	l.Sentinel = slots[argc] == nil
}

func (l *Library) RunFile(path unsafe.Pointer) int32 {
	l.lock.Lock()
	defer l.lock.Unlock()

	_, code := l.runFile(path)

	return code
}

// Missing names the optional entry points switched off with NoInterpret and NoRunFileWithResult
func (l *Library) Missing() []string {
	syms := native.DefaultSymbols()
	names := []string{}

	if l.NoInterpret {
		names = append(names, syms.Interpret)
	}

	if l.NoRunFileWithResult {
		names = append(names, syms.RunFileWithResult)
	}

	return names
}

func (l *Library) Interpret(source, name unsafe.Pointer) (int32, error) {
	if l.NoInterpret {
		return 0, native.ErrSymbolNotFound
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	_, code := l.evaluate(l.read(source), l.read(name))

	return code, nil
}

func (l *Library) InterpretWithResult(source, name unsafe.Pointer, exitCode *int32) unsafe.Pointer {
	l.lock.Lock()
	defer l.lock.Unlock()

	value, code := l.evaluate(l.read(source), l.read(name))
	*exitCode = code

	return l.result(value, code)
}

func (l *Library) RunFileWithResult(path unsafe.Pointer, exitCode *int32) (unsafe.Pointer, error) {
	if l.NoRunFileWithResult {
		return nil, native.ErrSymbolNotFound
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	value, code := l.runFile(path)
	*exitCode = code

	return l.result(value, code), nil
}

func (l *Library) FreeResult(ptr unsafe.Pointer) {
	l.Heap.Free(ptr)
}

func (l *Library) Teardown() {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.Teardowns++
}

func (l *Library) Allocator() buffer.Allocator {
	return l.Caller
}

func (l *Library) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.Closes++

	return nil
}

// read copies a caller-owned string, noting whether it really came from the caller allocator
func (l *Library) read(ptr unsafe.Pointer) string {
	if !l.Caller.Owns(ptr) {
		l.ForeignInput = true
	}

	s, err := buffer.GoString(ptr, maxInput)
	if err != nil {
		return ""
	}

	return s
}

func (l *Library) runFile(path unsafe.Pointer) (string, int32) {
	p := l.read(path)
	l.Paths = append(l.Paths, p)

	source, err := os.ReadFile(p)
	if err != nil {
		return "null", codeIOError
	}

	return l.evaluate(string(source), p)
}

func (l *Library) evaluate(source, name string) (string, int32) {
	l.Sources = append(l.Sources, source)
	l.Names = append(l.Names, name)

	if resp, ok := l.Responses[source]; ok {
		return resp.Value, resp.Code
	}

	return Evaluate(source)
}

// result allocates the returned buffer on the library heap the way C.CString would
func (l *Library) result(value string, code int32) unsafe.Pointer {
	if code != codeOK && l.NullOnFailure {
		return nil
	}

	if code == codeOK && l.NilOnSuccess {
		return nil
	}

	data := []byte(value)
	if l.RawResult != nil {
		data = l.RawResult
	}

	ptr := l.Heap.Malloc(uintptr(len(data) + 1))
	dst := unsafe.Slice((*byte)(ptr), len(data)+1)
	copy(dst, data)
	dst[len(data)] = 0

	return ptr
}

// Evaluate computes the value of the last statement in source, formatted the way libzscript
// formats numbers. It understands numeric literals, parentheses, + - * / and string literals.
func Evaluate(source string) (string, int32) {
	var last string
	for _, stmt := range strings.Split(source, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			last = s
		}
	}

	if last == "" {
		return "null", codeOK
	}

	p := &parser{src: last}

	value, err := p.parse()
	if err != nil {
		return "null", err.code
	}

	return value, codeOK
}
