package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/instrument"
)

func SetupNoopMetrics() Metrics {
	return Metrics{
		ScriptExecutions:       noopCounter{},
		FailedScriptExecutions: noopCounter{},
		ContractViolations:     noopCounter{},
		ExecutionTime:          noopHistogram{},
		InitTime:               noopHistogram{},
	}
}

// noopCounter satisfies syncint64.Counter and does nothing
type noopCounter struct {
	instrument.Synchronous
}

func (noopCounter) Add(_ context.Context, _ int64, _ ...attribute.KeyValue) {}

// noopHistogram satisfies syncint64.Histogram and does nothing
type noopHistogram struct {
	instrument.Synchronous
}

func (noopHistogram) Record(_ context.Context, _ int64, _ ...attribute.KeyValue) {}
