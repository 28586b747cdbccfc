package buffer_test

import (
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suborbital/zsbind/engine/buffer"
	"github.com/suborbital/zsbind/engine/enginetest"
)

func TestArgumentVector(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"program only", []string{"prog"}},
		{"program and script", []string{"prog", "/tmp/script.zs"}},
		{"empty", []string{}},
		{"empty strings", []string{"", "", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := enginetest.NewAllocator()

			v, err := buffer.NewArgumentVector(alloc, tt.args)
			require.NoError(t, err)

			assert.Equal(t, int32(len(tt.args)), v.Argc())

			slots := unsafe.Slice((*unsafe.Pointer)(v.Argv()), len(tt.args)+1)
			for i, arg := range tt.args {
				got, err := buffer.GoString(slots[i], 1024)
				require.NoError(t, err)
				assert.Equal(t, arg, got)
			}

			assert.Nil(t, slots[len(tt.args)], "argv must end with a NULL sentinel")

			// one buffer per argument plus the argv array
			assert.Equal(t, len(tt.args)+1, alloc.Live())

			v.Release()
			v.Release()

			assert.Equal(t, 0, alloc.Live())
			assert.Equal(t, len(tt.args)+1, alloc.Frees())
			assert.Equal(t, 0, alloc.InvalidFrees())
		})
	}
}

func TestArgumentVectorPartialFailure(t *testing.T) {
	alloc := enginetest.NewAllocator()

	v, err := buffer.NewArgumentVector(alloc, []string{"prog", "ok", "bro\x00ken", "never"})
	require.Error(t, err)
	assert.Nil(t, v)

	var convErr *buffer.ConversionError
	require.True(t, errors.As(err, &convErr))
	assert.Equal(t, "argv", convErr.Field)
	assert.Equal(t, 2, convErr.Index)

	assert.Equal(t, 2, alloc.Allocs())
	assert.Equal(t, 0, alloc.Live(), "buffers converted before the failure must be released")
	assert.Equal(t, 0, alloc.InvalidFrees())
}

func TestSourceUnit(t *testing.T) {
	alloc := enginetest.NewAllocator()

	unit, err := buffer.NewSourceUnit(alloc, "1 + 2;", "<test>")
	require.NoError(t, err)

	src, err := buffer.GoString(unit.Source(), 64)
	require.NoError(t, err)
	assert.Equal(t, "1 + 2;", src)

	name, err := buffer.GoString(unit.Name(), 64)
	require.NoError(t, err)
	assert.Equal(t, "<test>", name)

	unit.Release()
	assert.Equal(t, 0, alloc.Live())
	assert.Equal(t, 2, alloc.Frees())
}

func TestSourceUnitBadName(t *testing.T) {
	alloc := enginetest.NewAllocator()

	unit, err := buffer.NewSourceUnit(alloc, "1 + 2;", "<te\x00st>")
	require.Error(t, err)
	assert.Nil(t, unit)

	assert.Equal(t, 1, alloc.Allocs())
	assert.Equal(t, 0, alloc.Live(), "the source buffer must be released when the name fails")
}
