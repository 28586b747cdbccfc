// Package metrics provides a factory function that resolves to either a none, or an otel implementation
// of the script execution metrics.
package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric/instrument/syncint64"
)

const (
	TypeOtel = "otel"
	TypeNone = "none"
)

// Config selects the metrics implementation. All values have a prefix of ZSCRIPT_METRICS_
// specified in the parent options struct.
type Config struct {
	Type     string `env:"TYPE" yaml:"type" toml:"type"`
	Endpoint string `env:"ENDPOINT" yaml:"endpoint" toml:"endpoint"`
}

// Metrics holds the instruments an engine records into
type Metrics struct {
	ScriptExecutions       syncint64.Counter
	FailedScriptExecutions syncint64.Counter
	ContractViolations     syncint64.Counter
	ExecutionTime          syncint64.Histogram
	InitTime               syncint64.Histogram
}

type Timer struct {
	start time.Time
}

// ObserveMs returns the number of ms passed since NewTimer was called.
func (t Timer) ObserveMs() int64 {
	return time.Since(t.start).Milliseconds()
}

// ObserveMicroS returns the number of microseconds passed since NewTimer was called.
func (t Timer) ObserveMicroS() int64 {
	return time.Since(t.start).Microseconds()
}

// NewTimer returns a Timer with the current time stored in it.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// ResolveMetrics returns otel backed metrics when config asks for them and noop metrics otherwise
func ResolveMetrics(ctx context.Context, config Config, l zerolog.Logger) (Metrics, error) {
	switch config.Type {
	case TypeOtel:
		l.Info().Msg("setting up otel metrics")

		m, err := setupOtelMetrics(ctx, config)
		if err != nil {
			l.Err(err).Msg("setupOtelMetrics failed")
			return Metrics{}, errors.Wrap(err, "setupOtelMetrics")
		}

		return m, nil
	case TypeNone, "":
	default:
		l.Warn().Str("metricsType", config.Type).Msg("unrecognised metrics type configuration. Defaulting to no metrics")
	}

	l.Debug().Msg("setting up noop metrics")

	return SetupNoopMetrics(), nil
}
