package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suborbital/zsbind/engine"
	"github.com/suborbital/zsbind/engine/buffer"
	"github.com/suborbital/zsbind/engine/enginetest"
	"github.com/suborbital/zsbind/engine/native"
	"github.com/suborbital/zsbind/release"
)

type invocation struct {
	lib    *enginetest.Library
	env    map[string]string
	opened []native.Config
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newInvocation() *invocation {
	return &invocation{
		lib: enginetest.NewLibrary(),
		env: map[string]string{},
	}
}

func (i *invocation) open(cfg native.Config) (native.Library, error) {
	i.opened = append(i.opened, cfg)

	return i.lib, nil
}

func (i *invocation) execute(args ...string) error {
	cmd := Root(i.open, envconfig.MapLookuper(i.env))
	cmd.SetOut(&i.stdout)
	cmd.SetErr(&i.stderr)
	cmd.SetArgs(args)

	return cmd.Execute()
}

func TestRootInline(t *testing.T) {
	inv := newInvocation()

	require.NoError(t, inv.execute())

	assert.Equal(t, "Last value: 3\n", inv.stdout.String())

	assert.Equal(t, []string{"zsbind"}, inv.lib.Args)
	assert.True(t, inv.lib.Sentinel)
	assert.Equal(t, []string{"1 + 2;"}, inv.lib.Sources)
	assert.Equal(t, []string{"<test>"}, inv.lib.Names)

	assert.Equal(t, 1, inv.lib.Inits)
	assert.Equal(t, 1, inv.lib.Teardowns)
	assert.Equal(t, 1, inv.lib.Closes)

	assert.Equal(t, 0, inv.lib.Heap.Live())
	assert.Equal(t, 0, inv.lib.Caller.Live())
}

func TestRootInlineFailure(t *testing.T) {
	inv := newInvocation()
	inv.lib.Responses[inlineSource] = enginetest.Response{Code: 70}

	require.NoError(t, inv.execute())

	assert.Equal(t, "Execution failed with code 70\n", inv.stdout.String())
	assert.Equal(t, 1, inv.lib.Heap.Frees())
	assert.Equal(t, 1, inv.lib.Teardowns)
}

func TestRootInlineContractViolation(t *testing.T) {
	inv := newInvocation()
	inv.lib.NilOnSuccess = true

	err := inv.execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrContractViolation))

	assert.Empty(t, inv.stdout.String())
	assert.Equal(t, 1, inv.lib.Teardowns, "a faulted engine is still torn down")
	assert.Equal(t, 1, inv.lib.Closes)
}

func TestRootFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.zs")
	require.NoError(t, os.WriteFile(good, []byte("6 * 7;"), 0o600))

	bad := filepath.Join(dir, "bad.zs")
	require.NoError(t, os.WriteFile(bad, []byte("6 *;"), 0o600))

	tests := []struct {
		name string
		path string
		want engine.ExitCode
	}{
		{"ok", good, engine.ExitOK},
		{"compile error", bad, engine.ExitCompileError},
		{"missing file", filepath.Join(dir, "missing.zs"), engine.ExitIOError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newInvocation()

			err := inv.execute(tt.path)

			if tt.want == engine.ExitOK {
				require.NoError(t, err)
			} else {
				var exitErr *ExitError
				require.True(t, errors.As(err, &exitErr))
				assert.Equal(t, tt.want, exitErr.Code)
				assert.Equal(t, tt.path, exitErr.Path)
			}

			assert.Empty(t, inv.stdout.String(), "file mode prints nothing itself")
			assert.Equal(t, []string{"zsbind", tt.path}, inv.lib.Args)
			assert.Equal(t, []string{tt.path}, inv.lib.Paths)

			assert.Equal(t, 1, inv.lib.Teardowns)
			assert.Equal(t, 0, inv.lib.Heap.Allocs())
			assert.Equal(t, 0, inv.lib.Caller.Live())
		})
	}
}

func TestRootFileConversionFailure(t *testing.T) {
	inv := newInvocation()

	err := inv.execute("bad\x00path.zs")
	require.Error(t, err)
	assert.True(t, errors.Is(err, buffer.ErrEmbeddedNull))

	assert.Equal(t, 0, inv.lib.Inits, "argv conversion fails before the library is initialized")
	assert.Equal(t, 0, inv.lib.Teardowns)
	assert.Equal(t, 1, inv.lib.Closes)
	assert.Equal(t, 0, inv.lib.Caller.Live())
}

func TestRootTooManyArgs(t *testing.T) {
	inv := newInvocation()

	require.Error(t, inv.execute("one.zs", "two.zs"))
	assert.Empty(t, inv.opened)
}

func TestRootOpenFailure(t *testing.T) {
	cmd := Root(func(cfg native.Config) (native.Library, error) {
		return nil, errors.New("no such library")
	}, envconfig.MapLookuper(map[string]string{}))

	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such library")
}

func TestRootOptions(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		args     []string
		wantPath string
		wantErr  assert.ErrorAssertionFunc
	}{
		{
			name:     "default library",
			wantPath: native.DefaultPath(),
			wantErr:  assert.NoError,
		},
		{
			name:     "environment",
			env:      map[string]string{"ZSCRIPT_LIB_PATH": "/env/libzscript.so"},
			wantPath: "/env/libzscript.so",
			wantErr:  assert.NoError,
		},
		{
			name:     "flag beats environment",
			env:      map[string]string{"ZSCRIPT_LIB_PATH": "/env/libzscript.so"},
			args:     []string{"--lib", "/flag/libzscript.so"},
			wantPath: "/flag/libzscript.so",
			wantErr:  assert.NoError,
		},
		{
			name:     "null failure result",
			args:     []string{"--failure-result", "null"},
			wantPath: native.DefaultPath(),
			wantErr:  assert.NoError,
		},
		{
			name:    "bad failure result",
			args:    []string{"--failure-result", "leak"},
			wantErr: assert.Error,
		},
		{
			name:    "bad log level",
			env:     map[string]string{"ZSCRIPT_LOG_LEVEL": "shouty"},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newInvocation()
			if tt.env != nil {
				inv.env = tt.env
			}

			err := inv.execute(tt.args...)
			tt.wantErr(t, err)

			if err != nil {
				assert.Empty(t, inv.opened, "the library is not loaded with invalid options")
				return
			}

			require.Len(t, inv.opened, 1)
			assert.Equal(t, tt.wantPath, inv.opened[0].Path)
			assert.Equal(t, native.DefaultSymbols(), inv.opened[0].Symbols)
		})
	}
}

func TestRootDebugLogging(t *testing.T) {
	inv := newInvocation()

	require.NoError(t, inv.execute("--log-level", "debug"))

	assert.Contains(t, inv.stderr.String(), `"message":"library loaded"`)
	assert.Contains(t, inv.stderr.String(), `"version":"`+release.ZsbindDotVersion+`"`)
	assert.Contains(t, inv.stderr.String(), `"abi":"`+release.ABIVersion+`"`)
}

func TestRootLogsMissingEntryPoints(t *testing.T) {
	inv := newInvocation()
	inv.lib.NoRunFileWithResult = true

	require.NoError(t, inv.execute("--log-level", "debug"))

	assert.Contains(t, inv.stderr.String(), `"symbol":"ZScript_RunFileWithResult"`)
	assert.Contains(t, inv.stderr.String(), "optional entry point not exported by the library")
	assert.NotContains(t, inv.stderr.String(), `"symbol":"ZScript_Interpret"`)
}

func TestRootMetricsConfig(t *testing.T) {
	inv := newInvocation()
	inv.env["ZSCRIPT_METRICS_TYPE"] = "otel"

	err := inv.execute()
	require.Error(t, err, "otel metrics need an endpoint")
	assert.Empty(t, inv.opened)
}

func TestRootVersion(t *testing.T) {
	inv := newInvocation()

	require.NoError(t, inv.execute("--version"))

	assert.Equal(t, release.ZsbindDotVersion+"\n", inv.stdout.String())
	assert.Empty(t, inv.opened)
}

func TestExitError(t *testing.T) {
	err := &ExitError{Path: "script.zs", Code: engine.ExitCompileError}

	assert.Equal(t, "script.zs: compile error (exit code 65)", err.Error())
}
