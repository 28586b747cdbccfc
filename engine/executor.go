package engine

import (
	"unicode/utf8"
	"unsafe"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/suborbital/zsbind/engine/buffer"
	"github.com/suborbital/zsbind/foundation/metrics"
)

// RunFile executes the script at path and passes its exit code through unchanged
func (e *Engine) RunFile(path string) (ExitCode, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if err := e.begin(); err != nil {
		return 0, err
	}

	defer e.end()

	p, err := buffer.CString(e.alloc, "path", path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to CString")
	}

	defer p.Release()

	ctx, span := e.span("run_file", attribute.String("zscript.path", path))
	defer span.End()

	timer := metrics.NewTimer()

	code := ExitCode(e.lib.RunFile(p.Ptr()))
	e.observe(ctx, "run_file", timer, code)
	span.SetAttributes(attribute.Int("zscript.exit_code", int(code)))

	e.log.Debug().Str("path", path).Int32("code", int32(code)).Msg("run file")

	return code, nil
}

// Eval evaluates source without retrieving a value and returns the exit code
func (e *Engine) Eval(source, name string) (ExitCode, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if err := e.begin(); err != nil {
		return 0, err
	}

	defer e.end()

	unit, err := buffer.NewSourceUnit(e.alloc, source, name)
	if err != nil {
		return 0, errors.Wrap(err, "failed to NewSourceUnit")
	}

	defer unit.Release()

	ctx, span := e.span("interpret", attribute.String("zscript.name", name))
	defer span.End()

	timer := metrics.NewTimer()

	code, err := e.lib.Interpret(unit.Source(), unit.Name())
	if err != nil {
		return 0, errors.Wrap(err, "failed to Interpret")
	}

	e.observe(ctx, "eval", timer, ExitCode(code))

	span.SetAttributes(attribute.Int("zscript.exit_code", int(code)))

	return ExitCode(code), nil
}

// Interpret evaluates source under the logical name and returns the formatted last value.
// A non-zero exit code is an ordinary Result, not an error; a broken native contract
// is returned as a *ContractViolationError and faults the engine.
func (e *Engine) Interpret(source, name string) (Result, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if err := e.begin(); err != nil {
		return Result{}, err
	}

	defer e.end()

	unit, err := buffer.NewSourceUnit(e.alloc, source, name)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to NewSourceUnit")
	}

	defer unit.Release()

	ctx, span := e.span("interpret_with_result", attribute.String("zscript.name", name))
	defer span.End()

	timer := metrics.NewTimer()

	var code int32
	raw := e.lib.InterpretWithResult(unit.Source(), unit.Name(), &code)
	e.observe(ctx, "interpret", timer, ExitCode(code))

	return e.collect(span, "interpret", raw, code)
}

// RunFileWithResult executes the script at path and returns the formatted last value
func (e *Engine) RunFileWithResult(path string) (Result, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if err := e.begin(); err != nil {
		return Result{}, err
	}

	defer e.end()

	p, err := buffer.CString(e.alloc, "path", path)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to CString")
	}

	defer p.Release()

	ctx, span := e.span("run_file_with_result", attribute.String("zscript.path", path))
	defer span.End()

	timer := metrics.NewTimer()

	var code int32
	raw, err := e.lib.RunFileWithResult(p.Ptr(), &code)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to RunFileWithResult")
	}

	e.observe(ctx, "run_file_with_result", timer, ExitCode(code))

	return e.collect(span, "run_file", raw, code)
}

// collect turns a library-owned result pointer into a Result, releasing the buffer exactly once
func (e *Engine) collect(span trace.Span, op string, raw unsafe.Pointer, code int32) (Result, error) {
	span.SetAttributes(attribute.Int("zscript.exit_code", int(code)))

	res := buffer.Adopt(raw, e.lib.FreeResult)

	if code != 0 {
		if e.conf.policy == NullOnFailure && raw != nil {
			// the library broke its documented contract, so the pointer is not ours to free
			return Result{}, e.fault(span, op, "non-nil result buffer on the failure path")
		}

		// nothing in a failure buffer is trusted, so it is never decoded
		res.Release()

		e.log.Debug().Str("op", op).Int32("code", code).Msg("execution failed")

		return Result{Code: ExitCode(code)}, nil
	}

	if raw == nil {
		return Result{}, e.fault(span, op, "nil result buffer on the success path")
	}

	defer res.Release()

	value, err := buffer.GoString(raw, e.conf.maxResultSize)
	if err != nil {
		return Result{}, e.fault(span, op, err.Error())
	}

	if !utf8.ValidString(value) {
		return Result{}, e.fault(span, op, "result buffer is not valid UTF-8")
	}

	return Result{Value: value, Code: ExitOK}, nil
}
