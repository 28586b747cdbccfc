//go:build !(cgo && zscript_cgo)

package command

import (
	"github.com/suborbital/zsbind/engine/native"
)

// DefaultOpener loads libzscript at runtime from cfg.Path
func DefaultOpener(cfg native.Config) (native.Library, error) {
	lib, err := native.Open(cfg)
	if err != nil {
		return nil, err
	}

	return lib, nil
}
