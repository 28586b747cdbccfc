package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/suborbital/zsbind/engine/buffer"
	"github.com/suborbital/zsbind/engine/native"
	"github.com/suborbital/zsbind/foundation/metrics"
)

/*
 The scripting engine keeps its state in process-wide globals behind a handful of C entry points.
 Engine wraps those entry points in a single lifecycle object:

   Uninitialized -> Initialized -> (Executing -> Initialized)* -> ShutDown

 Every public operation checks the state first, so calling out of order returns an error instead of
 reaching the library. Calls are serialised with a mutex, and a process-wide claim keyed by the
 Library value keeps two engines from driving the same library at once.

 Buffers crossing the boundary are tagged with their owner (see engine/buffer). Caller-owned buffers
 are freed with the Library's Allocator once the call returns. Result buffers are library-owned and are
 freed exactly once through Library.FreeResult.
*/

// State is the lifecycle state of an Engine
type State int

const (
	Uninitialized State = iota
	Initialized
	Executing
	Faulted
	ShutDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Executing:
		return "executing"
	case Faulted:
		return "faulted"
	case ShutDown:
		return "shut down"
	}

	return fmt.Sprintf("state(%d)", int(s))
}

// claims maps a native.Library to the UUID of the engine currently driving it
var claims = sync.Map{}

// Engine is the lifecycle manager and script executor for one native library
type Engine struct {
	UUID string

	lib   native.Library
	alloc buffer.Allocator
	conf  config
	log   zerolog.Logger

	state State
	lock  sync.Mutex
}

// New creates an Engine for lib. The library is not touched until Initialize.
func New(lib native.Library, mods ...Modifier) *Engine {
	conf := defaultConfig()
	for _, mod := range mods {
		mod(&conf)
	}

	id := uuid.New().String()

	e := &Engine{
		UUID:  id,
		lib:   lib,
		alloc: lib.Allocator(),
		conf:  conf,
		log:   conf.logger.With().Str("engine", id).Logger(),
		state: Uninitialized,
	}

	return e
}

// With initializes an engine with args, runs fn, and shuts the engine down on every exit path
func With(lib native.Library, args []string, fn func(*Engine) error, mods ...Modifier) (err error) {
	e := New(lib, mods...)

	defer func() {
		if shutdownErr := e.Shutdown(); shutdownErr != nil && err == nil {
			err = errors.Wrap(shutdownErr, "failed to Shutdown")
		}
	}()

	if err := e.Initialize(args); err != nil {
		return errors.Wrap(err, "failed to Initialize")
	}

	return fn(e)
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.state
}

// Initialize forwards args to the library's init entry point. It must be called exactly once.
func (e *Engine) Initialize(args []string) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	switch e.state {
	case Uninitialized:
	case ShutDown:
		return ErrShutDown
	default:
		return ErrAlreadyInitialized
	}

	argv, err := buffer.NewArgumentVector(e.alloc, args)
	if err != nil {
		return errors.Wrap(err, "failed to NewArgumentVector")
	}

	defer argv.Release()

	if _, loaded := claims.LoadOrStore(e.lib, e.UUID); loaded {
		return ErrLibraryInUse
	}

	ctx, span := e.span("init", attribute.Int("argc", int(argv.Argc())))
	defer span.End()

	timer := metrics.NewTimer()

	e.lib.Init(argv.Argc(), argv.Argv())
	e.state = Initialized

	e.conf.metrics.InitTime.Record(ctx, timer.ObserveMicroS())

	e.log.Debug().Int32("argc", argv.Argc()).Msg("engine initialized")

	return nil
}

// Shutdown invokes the library's teardown entry point. A second call returns ErrShutDown
// without reaching the library; shutting down an engine that never initialized is a no-op.
func (e *Engine) Shutdown() error {
	e.lock.Lock()
	defer e.lock.Unlock()

	switch e.state {
	case ShutDown:
		return ErrShutDown
	case Uninitialized:
		e.state = ShutDown
		return nil
	}

	_, span := e.span("teardown")
	defer span.End()

	e.lib.Teardown()
	claims.Delete(e.lib)
	e.state = ShutDown

	e.log.Debug().Msg("engine shut down")

	return nil
}

// begin checks that an execution call is allowed and moves to Executing. The caller holds the lock.
func (e *Engine) begin() error {
	switch e.state {
	case Initialized:
		e.state = Executing
		return nil
	case Uninitialized:
		return ErrNotInitialized
	case Faulted:
		return ErrFaulted
	case ShutDown:
		return ErrShutDown
	}

	return errors.Errorf("engine is %s", e.state)
}

// end returns to Initialized unless the call faulted
func (e *Engine) end() {
	if e.state == Executing {
		e.state = Initialized
	}
}

// fault records a contract violation; from now on only Shutdown is accepted
func (e *Engine) fault(span trace.Span, op, reason string) error {
	e.state = Faulted

	err := &ContractViolationError{Op: op, Reason: reason}

	span.RecordError(err)
	span.SetStatus(codes.Error, reason)

	e.conf.metrics.ContractViolations.Add(context.Background(), 1, attribute.String("op", op))

	e.log.Error().Str("op", op).Str("reason", reason).Msg("native contract violation, engine faulted")

	return err
}

// observe records one finished execution call
func (e *Engine) observe(ctx context.Context, op string, timer metrics.Timer, code ExitCode) {
	attrs := []attribute.KeyValue{attribute.String("op", op)}

	e.conf.metrics.ExecutionTime.Record(ctx, timer.ObserveMicroS(), attrs...)
	e.conf.metrics.ScriptExecutions.Add(ctx, 1, attrs...)

	if code != ExitOK {
		e.conf.metrics.FailedScriptExecutions.Add(ctx, 1, append(attrs, attribute.Int("code", int(code)))...)
	}
}

func (e *Engine) span(op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("zscript.engine", e.UUID))

	return e.conf.tracer.Start(context.Background(), "zscript."+op, trace.WithAttributes(attrs...))
}
