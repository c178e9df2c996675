package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, "Unknown property", errFactory.New(errors.ErrUnknownMetric).Error())
	assert.Equal(t, "Unknown property: fan_speed",
		errFactory.WithData(errors.ErrUnknownMetric, "fan_speed").Error())
	assert.Equal(t, "custom", errFactory.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "unlisted_code", errFactory.New("unlisted_code").Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("exec: \"nvidia-smi\": executable file not found in $PATH")
	err := errors.New().Wrap(errors.ErrProcessSpawn, cause)

	assert.Contains(t, err.Error(), "GPU monitoring command failed")
	assert.Contains(t, err.Error(), "executable file not found")
	assert.ErrorIs(t, err, cause)
}

func TestHasCode(t *testing.T) {
	inner := errors.New().New(errors.ErrNoData)
	outer := errors.New().Wrap(errors.ErrProcessOutput, inner)
	wrapped := fmt.Errorf("tick: %w", outer)

	assert.True(t, errors.HasCode(wrapped, errors.ErrProcessOutput))
	assert.True(t, errors.HasCode(wrapped, errors.ErrNoData))
	assert.False(t, errors.HasCode(wrapped, errors.ErrParse))
	assert.False(t, errors.HasCode(nil, errors.ErrParse))
	assert.Equal(t, errors.ErrProcessOutput, errors.CodeOf(wrapped))
	assert.Equal(t, errors.ErrorCode(""), errors.CodeOf(fmt.Errorf("plain")))
}
