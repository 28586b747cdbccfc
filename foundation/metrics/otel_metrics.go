package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	"go.opentelemetry.io/otel/metric/instrument"
	"go.opentelemetry.io/otel/metric/unit"

	"github.com/suborbital/go-kit/observability"

	"github.com/suborbital/zsbind/release"
)

const (
	otelCollectionPeriod = 3 * time.Second
	microseconds         = unit.Unit("us")
)

// setupOtelMetrics delegates setting up the global meter provider to the go-kit observability package
func setupOtelMetrics(ctx context.Context, config Config) (Metrics, error) {
	if config.Endpoint == "" {
		return Metrics{}, errors.New("resolving otel metrics is missing the endpoint")
	}

	conn, err := observability.GrpcConnection(ctx, config.Endpoint)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "otel metrics grpc connection")
	}

	_, err = observability.OtelMeter(ctx, conn, observability.MeterConfig{CollectPeriod: otelCollectionPeriod})
	if err != nil {
		return Metrics{}, errors.Wrap(err, "observability.OtelMeter")
	}

	return FromMeter(global.Meter("zsbind", metric.WithInstrumentationVersion(release.ZsbindDotVersion)))
}

// FromMeter creates the script execution instruments on m
func FromMeter(m metric.Meter) (Metrics, error) {
	si64 := m.SyncInt64()

	executions, err := si64.Counter(
		"script_executions",
		instrument.WithUnit(unit.Dimensionless),
		instrument.WithDescription("How many script executions reached the library"),
	)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "sync int 64 provider script_executions")
	}

	failed, err := si64.Counter(
		"failed_script_executions",
		instrument.WithUnit(unit.Dimensionless),
		instrument.WithDescription("How many script executions returned a non-zero exit code"),
	)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "sync int 64 provider failed_script_executions")
	}

	violations, err := si64.Counter(
		"contract_violations",
		instrument.WithUnit(unit.Dimensionless),
		instrument.WithDescription("How many library calls broke the native contract and faulted the engine"),
	)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "sync int 64 provider contract_violations")
	}

	executionTime, err := si64.Histogram(
		"execution_time",
		instrument.WithUnit(microseconds),
		instrument.WithDescription("How much time was spent inside library execution calls"),
	)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "sync int 64 provider execution_time")
	}

	initTime, err := si64.Histogram(
		"init_time",
		instrument.WithUnit(microseconds),
		instrument.WithDescription("How much time the library spent initializing"),
	)
	if err != nil {
		return Metrics{}, errors.Wrap(err, "sync int 64 provider init_time")
	}

	return Metrics{
		ScriptExecutions:       executions,
		FailedScriptExecutions: failed,
		ContractViolations:     violations,
		ExecutionTime:          executionTime,
		InitTime:               initTime,
	}, nil
}
