package engine

import (
	"fmt"

	"github.com/pkg/errors"
)

// ExitCode is the status returned by the scripting engine
type ExitCode int32

const (
	ExitOK           ExitCode = 0
	ExitCompileError ExitCode = 65
	ExitRuntimeError ExitCode = 70
	ExitIOError      ExitCode = 74
)

func (c ExitCode) String() string {
	switch c {
	case ExitOK:
		return "ok"
	case ExitCompileError:
		return "compile error"
	case ExitRuntimeError:
		return "runtime error"
	case ExitIOError:
		return "file I/O error"
	}

	return fmt.Sprintf("exit code %d", int32(c))
}

// Result is the outcome of an evaluation: a Value when Code is ExitOK, otherwise only the Code
type Result struct {
	Value string
	Code  ExitCode
}

// OK returns true when the evaluation succeeded
func (r Result) OK() bool {
	return r.Code == ExitOK
}

var (
	ErrNotInitialized     = errors.New("engine has not been initialized")
	ErrAlreadyInitialized = errors.New("engine has already been initialized")
	ErrShutDown           = errors.New("engine has been shut down")
	ErrLibraryInUse       = errors.New("library is already in use by another engine")
	ErrFaulted            = errors.New("engine is faulted after a contract violation and only accepts Shutdown")
	ErrContractViolation  = errors.New("native library contract violation")
)

// ContractViolationError reports a broken invariant of the native boundary
type ContractViolationError struct {
	Op     string
	Reason string
}

func (c *ContractViolationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrContractViolation, c.Op, c.Reason)
}

// Unwrap allows errors.Is(err, ErrContractViolation)
func (c *ContractViolationError) Unwrap() error {
	return ErrContractViolation
}
