package tracing

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdkTrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/suborbital/go-kit/observability"

	"github.com/suborbital/zsbind/options"
)

const (
	ExporterCollector = "collector"
	ExporterNone      = "none"
)

// SetupTracing configures open telemetry with the exporter named in config and installs it as the
// global tracer provider. The caller must Shutdown the returned provider to flush pending spans.
func SetupTracing(config options.TracerConfig, logger zerolog.Logger) (*sdkTrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var traceProvider *sdkTrace.TracerProvider
	var err error

	ll := logger.With().Str("tracerType", config.TracerType).Logger()

	switch config.TracerType {
	case ExporterCollector:
		if config.Collector.Endpoint == "" {
			return nil, errors.New("missing collector tracing endpoint")
		}

		ll.Info().Msg("configuring collector exporter for tracing")

		conn, err := observability.GrpcConnection(ctx, config.Collector.Endpoint)
		if err != nil {
			ll.Err(err).Msg("observability.GrpcConnection failed")
			return nil, errors.Wrap(err, "collector GrpcConnection")
		}

		traceProvider, err = observability.OtelTracer(ctx, conn, observability.TracingConfig{
			Probability: config.SampleProbability(),
			ServiceName: config.ServiceName,
		})
		if err != nil {
			ll.Err(err).Msg("observability.OtelTracer failed")
			return nil, errors.Wrap(err, "observability.OtelTracer")
		}

		ll.Info().Msg("created collector trace exporter")
	default:
		ll.Warn().Msg("unrecognised tracer type configuration. Defaulting to no tracer")
		fallthrough
	case ExporterNone, "":
		traceProvider, err = observability.NoopTracer()
		if err != nil {
			return nil, errors.Wrap(err, "noop Tracer")
		}

		ll.Debug().Msg("finished setting up default noop tracer")
	}

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return traceProvider, nil
}
