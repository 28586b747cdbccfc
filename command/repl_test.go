package command

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suborbital/zsbind/engine"
	"github.com/suborbital/zsbind/engine/enginetest"
)

type replFixture struct {
	lib     *enginetest.Library
	session *session
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

func newReplFixture(t *testing.T) *replFixture {
	t.Helper()

	f := &replFixture{lib: enginetest.NewLibrary()}

	e := engine.New(f.lib)
	require.NoError(t, e.Initialize([]string{"zsbind"}))

	t.Cleanup(func() {
		_ = e.Shutdown()
	})

	f.session = newSession(e, &f.stdout, &f.stderr)

	return f
}

func TestSessionSingleLine(t *testing.T) {
	f := newReplFixture(t)

	block, err := f.session.feed("  1 + 2;  ")
	require.NoError(t, err)

	assert.Equal(t, "1 + 2;", block)
	assert.Equal(t, "3\n", f.stdout.String())
	assert.Equal(t, []string{"<repl>"}, f.lib.Names)
	assert.Equal(t, promptPrimary, f.session.prompt())
}

func TestSessionBlankLines(t *testing.T) {
	f := newReplFixture(t)

	for _, line := range []string{"", "   ", "\t"} {
		block, err := f.session.feed(line)
		require.NoError(t, err)
		assert.Empty(t, block)
	}

	assert.Empty(t, f.lib.Sources)
	assert.Equal(t, promptPrimary, f.session.prompt())
}

func TestSessionMultiLineBlock(t *testing.T) {
	f := newReplFixture(t)
	f.lib.Responses["if (true) {\n\nprint 1;\n}"] = enginetest.Response{Value: "null"}

	lines := []struct {
		input  string
		prompt string
	}{
		{"if (true) {", promptContinue},
		{"", promptContinue},
		{"  print 1;", promptContinue},
		{"}", promptPrimary},
	}

	var block string

	for _, l := range lines {
		var err error

		block, err = f.session.feed(l.input)
		require.NoError(t, err)
		assert.Equal(t, l.prompt, f.session.prompt(), l.input)
	}

	assert.Equal(t, "if (true) {\n\nprint 1;\n}", block)
	assert.Equal(t, []string{block}, f.lib.Sources, "the block is evaluated once, when it closes")
	assert.Equal(t, "null\n", f.stdout.String())
}

func TestSessionNestedBlocks(t *testing.T) {
	f := newReplFixture(t)
	f.lib.Responses["fun f() { if (x) { return 1; }\n}"] = enginetest.Response{Value: "null"}

	_, err := f.session.feed("fun f() { if (x) { return 1; }")
	require.NoError(t, err)
	assert.Equal(t, promptContinue, f.session.prompt())
	assert.Empty(t, f.lib.Sources)

	_, err = f.session.feed("}")
	require.NoError(t, err)
	assert.Equal(t, promptPrimary, f.session.prompt())
	assert.Len(t, f.lib.Sources, 1)
}

func TestSessionUnmatchedBrace(t *testing.T) {
	f := newReplFixture(t)

	block, err := f.session.feed("}")
	require.NoError(t, err)
	assert.Empty(t, block)

	assert.Contains(t, f.stderr.String(), "unmatched closing brace")
	assert.Empty(t, f.lib.Sources)
	assert.Equal(t, promptPrimary, f.session.prompt())

	// the buffer was discarded, so the next line stands alone
	_, err = f.session.feed("4 * 4;")
	require.NoError(t, err)
	assert.Equal(t, []string{"4 * 4;"}, f.lib.Sources)
	assert.Equal(t, "16\n", f.stdout.String())
}

func TestSessionReset(t *testing.T) {
	f := newReplFixture(t)

	_, err := f.session.feed("{")
	require.NoError(t, err)
	assert.Equal(t, promptContinue, f.session.prompt())

	f.session.reset()
	assert.Equal(t, promptPrimary, f.session.prompt())

	_, err = f.session.feed("2;")
	require.NoError(t, err)
	assert.Equal(t, []string{"2;"}, f.lib.Sources)
}

func TestSessionFailures(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"compile error", "1 +;", "compile error in REPL\n"},
		{"runtime error", "1 / 0;", "runtime error in REPL\n"},
		{"embedded null", "1;\x002;", "REPL error:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReplFixture(t)

			_, err := f.session.feed(tt.source)
			require.NoError(t, err, "script failures keep the session alive")

			assert.Contains(t, f.stderr.String(), tt.want)
			assert.Empty(t, f.stdout.String())
			assert.Equal(t, 0, f.lib.Caller.Live())
		})
	}
}

func TestSessionContractViolationEnds(t *testing.T) {
	f := newReplFixture(t)
	f.lib.NilOnSuccess = true

	_, err := f.session.feed("1;")
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrContractViolation))
}

func TestCountBlocks(t *testing.T) {
	assert.Equal(t, 0, countBlocks("1 + 2;"))
	assert.Equal(t, 1, countBlocks("while (x) {"))
	assert.Equal(t, 0, countBlocks("{ }"))
	assert.Equal(t, -1, countBlocks("}"))
	assert.Equal(t, 2, countBlocks("{{"))
}

func TestReplInvalidOptions(t *testing.T) {
	inv := newInvocation()

	err := inv.execute("repl", "--failure-result", "leak")
	require.Error(t, err)

	assert.Empty(t, inv.opened)
	assert.Equal(t, 0, inv.lib.Inits)
}

func TestReplRejectsArguments(t *testing.T) {
	cmd := Root(newInvocation().open, envconfig.MapLookuper(map[string]string{}))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"repl", "script.zs"})

	assert.Error(t, cmd.Execute())
}
