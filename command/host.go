package command

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	sdkTrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/suborbital/zsbind/engine"
	"github.com/suborbital/zsbind/engine/native"
	"github.com/suborbital/zsbind/foundation/metrics"
	"github.com/suborbital/zsbind/foundation/tracing"
	"github.com/suborbital/zsbind/options"
)

// Opener loads the native library described by cfg
type Opener func(cfg native.Config) (native.Library, error)

// ExitError reports a script that ran to completion with a non-zero exit code
type ExitError struct {
	Path string
	Code engine.ExitCode
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %s (exit code %d)", e.Path, e.Code, int32(e.Code))
}

// host is everything a command needs around an engine: the loaded library, the
// logger and tracer, and the engine modifiers derived from the resolved options
type host struct {
	logger   zerolog.Logger
	lib      native.Library
	provider *sdkTrace.TracerProvider
	mods     []engine.Modifier
}

func setup(cmd *cobra.Command, open Opener, lookuper envconfig.Lookuper) (*host, error) {
	flagOpts, err := optionsFromFlags(cmd.Flags())
	if err != nil {
		return nil, errors.Wrap(err, "failed to optionsFromFlags")
	}

	opts, err := options.Resolve(lookuper, flagOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to options.Resolve")
	}

	logger := setupLogger(cmd.ErrOrStderr(), opts)

	provider, err := tracing.SetupTracing(opts.TracerConfig, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to SetupTracing")
	}

	m, err := metrics.ResolveMetrics(cmd.Context(), opts.MetricsConfig, logger)
	if err != nil {
		shutdownTracing(provider, logger)
		return nil, errors.Wrap(err, "failed to ResolveMetrics")
	}

	lib, err := open(opts.NativeConfig())
	if err != nil {
		shutdownTracing(provider, logger)
		return nil, errors.Wrapf(err, "failed to load %s", opts.LibraryPath)
	}

	logger.Debug().Str("path", opts.LibraryPath).Str("failureResult", opts.FailureResult).Msg("library loaded")

	if partial, ok := lib.(native.Partial); ok {
		for _, name := range partial.Missing() {
			logger.Debug().Str("symbol", name).Msg("optional entry point not exported by the library")
		}
	}

	h := &host{
		logger:   logger,
		lib:      lib,
		provider: provider,
		mods: append(opts.EngineModifiers(),
			engine.UseLogger(logger),
			engine.UseTracer(provider.Tracer("zsbind")),
			engine.UseMetrics(m),
		),
	}

	return h, nil
}

func (h *host) close() {
	if err := h.lib.Close(); err != nil {
		h.logger.Warn().Err(err).Msg("failed to close library")
	}

	shutdownTracing(h.provider, h.logger)
}

func shutdownTracing(provider *sdkTrace.TracerProvider, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to shut down tracer provider")
	}
}
