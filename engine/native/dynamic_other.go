//go:build !darwin && !linux

package native

import (
	"runtime"

	"github.com/pkg/errors"
)

// DynamicLibrary is unavailable on this platform
type DynamicLibrary struct {
	Library
}

// DefaultPath returns the platform file name of the engine library
func DefaultPath() string {
	return "zscript.dll"
}

// Open is not supported on this platform
func Open(cfg Config) (*DynamicLibrary, error) {
	return nil, errors.Errorf("dynamic loading is not supported on %s", runtime.GOOS)
}
