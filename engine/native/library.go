package native

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/suborbital/zsbind/engine/buffer"
)

// ErrSymbolNotFound is returned when an optional entry point was not exported by the library
var ErrSymbolNotFound = errors.New("the requested entry point is not exported by the library")

// symbolNotFound wraps ErrSymbolNotFound with the name of the entry point and, when known,
// the loader's reason for not resolving it
func symbolNotFound(name string, cause error) error {
	if cause == nil {
		return errors.Wrapf(ErrSymbolNotFound, "%s", name)
	}

	return errors.Wrapf(ErrSymbolNotFound, "%s (%s)", name, cause)
}

// Partial is implemented by libraries that loaded without some optional entry points
type Partial interface {
	Missing() []string
}

// Library is the C ABI exposed by the scripting engine, expressed in raw pointers.
// Every pointer argument is caller-owned and must stay valid for the duration of the call.
// Result pointers are library-owned and must be released with FreeResult.
type Library interface {
	// Init forwards argc/argv (NULL-sentinel terminated) to the engine
	Init(argc int32, argv unsafe.Pointer)
	// RunFile executes the script at path and returns its exit code
	RunFile(path unsafe.Pointer) int32
	// Interpret evaluates source under the logical name and returns its exit code
	Interpret(source, name unsafe.Pointer) (int32, error)
	// InterpretWithResult evaluates source and returns the formatted last value
	InterpretWithResult(source, name unsafe.Pointer, exitCode *int32) unsafe.Pointer
	// RunFileWithResult executes the script at path and returns the formatted last value
	RunFileWithResult(path unsafe.Pointer, exitCode *int32) (unsafe.Pointer, error)
	// FreeResult releases a buffer returned by one of the *WithResult calls
	FreeResult(ptr unsafe.Pointer)
	// Teardown releases all engine-internal process state
	Teardown()
	// Allocator is the caller-side native allocator
	Allocator() buffer.Allocator
	// Close unloads the library
	Close() error
}

// Symbols names the library's exported entry points
type Symbols struct {
	Init                string `env:"INIT" yaml:"init" toml:"init"`
	RunFile             string `env:"RUNFILE" yaml:"run_file" toml:"run_file"`
	Interpret           string `env:"INTERPRET" yaml:"interpret" toml:"interpret"`
	InterpretWithResult string `env:"INTERPRETWITHRESULT" yaml:"interpret_with_result" toml:"interpret_with_result"`
	RunFileWithResult   string `env:"RUNFILEWITHRESULT" yaml:"run_file_with_result" toml:"run_file_with_result"`
	Teardown            string `env:"TEARDOWN" yaml:"teardown" toml:"teardown"`
	// FreeResult is optional; results are released through the process allocator when empty
	FreeResult string `env:"FREERESULT" yaml:"free_result" toml:"free_result"`
}

// DefaultSymbols returns the entry point names exported by libzscript
func DefaultSymbols() Symbols {
	return Symbols{
		Init:                "ZScript_Init",
		RunFile:             "ZScript_RunFile",
		Interpret:           "ZScript_Interpret",
		InterpretWithResult: "ZScript_InterpretWithResult",
		RunFileWithResult:   "ZScript_RunFileWithResult",
		Teardown:            "ZScript_Free",
	}
}

// WithDefaults fills every empty required name from DefaultSymbols
func (s Symbols) WithDefaults() Symbols {
	d := DefaultSymbols()

	if s.Init == "" {
		s.Init = d.Init
	}
	if s.RunFile == "" {
		s.RunFile = d.RunFile
	}
	if s.Interpret == "" {
		s.Interpret = d.Interpret
	}
	if s.InterpretWithResult == "" {
		s.InterpretWithResult = d.InterpretWithResult
	}
	if s.RunFileWithResult == "" {
		s.RunFileWithResult = d.RunFileWithResult
	}
	if s.Teardown == "" {
		s.Teardown = d.Teardown
	}

	return s
}

// Config configures how a library is loaded
type Config struct {
	Path    string
	Symbols Symbols
}
