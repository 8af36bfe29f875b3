package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoPassesErrorsThrough(t *testing.T) {
	want := errors.New("boom")
	assert.ErrorIs(t, Do(func() error { return want }), want)
	assert.NoError(t, Do(func() error { return nil }))
}

func TestDoRecoversPanics(t *testing.T) {
	err := Do(func() error { panic("bad state") })

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad state", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, "panic: bad state", err.Error())
}
