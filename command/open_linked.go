//go:build cgo && zscript_cgo

package command

import (
	"github.com/suborbital/zsbind/engine/native"
)

// DefaultOpener returns the link-time bound libzscript. The path and symbol names in cfg
// are fixed by the linker in this build.
func DefaultOpener(_ native.Config) (native.Library, error) {
	return native.OpenLinked(), nil
}
