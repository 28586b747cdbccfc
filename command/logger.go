package command

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/suborbital/zsbind/options"
	"github.com/suborbital/zsbind/release"
)

func setupLogger(w io.Writer, opts *options.Options) zerolog.Logger {
	level, err := opts.Level()
	if err != nil {
		level = zerolog.WarnLevel
	}

	return zerolog.New(w).With().
		Timestamp().
		Str("command", "zsbind").
		Str("version", release.ZsbindDotVersion).
		Str("abi", release.ABIVersion).
		Logger().Level(level)
}
