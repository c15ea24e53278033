package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := New("TEST", "something broke")
	assert.Equal(t, "something broke", err.Error())

	wrapped := Wrap(err, fmt.Errorf("file not found"))
	assert.Equal(t, "something broke: file not found", wrapped.Error())
}

func TestWrapMatchesSentinel(t *testing.T) {
	cause := fmt.Errorf("open data/raw: no such file")
	err := Wrap(ErrSourceLoad, cause)

	assert.ErrorIs(t, err, ErrSourceLoad)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, cause)
}

func TestWrapfMatchesSentinel(t *testing.T) {
	err := Wrapf(ErrInvalidConfig, "duplicate source name %q", "edstem")

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), `"edstem"`)
}

func TestMatchSurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("loading sources: %w", Wrap(ErrIdentityResolution, nil))
	assert.ErrorIs(t, err, ErrIdentityResolution)

	var pe *PipelineError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, "IDENTITY_RESOLUTION_FAILED", pe.Code)
}
