package engine

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/suborbital/zsbind/foundation/metrics"
)

// DefaultMaxResultSize bounds the scan for a result buffer's NUL terminator
const DefaultMaxResultSize = 64 << 20

// FailurePolicy says what the evaluate entry point returns when the exit code is non-zero
type FailurePolicy int

const (
	// FreeOnFailure treats the failure pointer as a library buffer that must still be freed
	FreeOnFailure FailurePolicy = iota
	// NullOnFailure expects a nil pointer on failure; anything else is a contract violation
	NullOnFailure
)

func (f FailurePolicy) String() string {
	if f == NullOnFailure {
		return "null"
	}

	return "free"
}

// ParseFailurePolicy parses "free" or "null"
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(s) {
	case "", "free":
		return FreeOnFailure, nil
	case "null":
		return NullOnFailure, nil
	}

	return FreeOnFailure, errors.Errorf("unknown failure result policy %q, expected free or null", s)
}

type config struct {
	logger        zerolog.Logger
	tracer        trace.Tracer
	metrics       metrics.Metrics
	policy        FailurePolicy
	maxResultSize int
}

func defaultConfig() config {
	return config{
		logger:        zerolog.Nop(),
		tracer:        trace.NewNoopTracerProvider().Tracer("zsbind"),
		metrics:       metrics.SetupNoopMetrics(),
		policy:        FreeOnFailure,
		maxResultSize: DefaultMaxResultSize,
	}
}

// Modifier configures an Engine
type Modifier func(*config)

// UseLogger sets the logger
func UseLogger(l zerolog.Logger) Modifier {
	return func(c *config) {
		c.logger = l
	}
}

// UseTracer sets the tracer that records one span per native call
func UseTracer(t trace.Tracer) Modifier {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

// UseMetrics sets the instruments that count and time native calls
func UseMetrics(m metrics.Metrics) Modifier {
	return func(c *config) {
		c.metrics = m
	}
}

// UseFailurePolicy sets the evaluate failure-path contract
func UseFailurePolicy(p FailurePolicy) Modifier {
	return func(c *config) {
		c.policy = p
	}
}

// UseMaxResultSize sets the longest result buffer accepted, in bytes
func UseMaxResultSize(n int) Modifier {
	return func(c *config) {
		if n > 0 {
			c.maxResultSize = n
		}
	}
}
