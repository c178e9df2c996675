package process

import (
	"context"
	"fmt"
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tempCmd = "nvidia-smi --query-gpu=temperature.gpu --format=csv,noheader -i GPU-abc123"

func newTestProcessor(t *testing.T, runner Runner) Processor {
	t.Helper()
	p, err := NewProcessor(smiQuery, runner)
	require.NoError(t, err)

	return p
}

func TestProcessReturnsLines(t *testing.T) {
	runner := NewStubRunner().Stdout(tempCmd, "47\n")

	lines, err := newTestProcessor(t, runner).Process(context.Background(), "GPU-abc123", "temperature.gpu")
	require.NoError(t, err)
	assert.Equal(t, []string{"47"}, lines)
	assert.Len(t, runner.Calls(), 1)
}

func TestProcessEmptyOutput(t *testing.T) {
	runner := NewStubRunner()

	lines, err := newTestProcessor(t, runner).Process(context.Background(), "GPU-abc123", "temperature.gpu")
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestProcessStderrOnly(t *testing.T) {
	runner := NewStubRunner().Stderr(tempCmd, "No devices were found\n")

	lines, err := newTestProcessor(t, runner).Process(context.Background(), "GPU-abc123", "temperature.gpu")
	require.Error(t, err)
	assert.Nil(t, lines)
	assert.True(t, errors.HasCode(err, errors.ErrProcessOutput))
	assert.Contains(t, err.Error(), "No devices were found")
}

func TestProcessStderrWithStdout(t *testing.T) {
	runner := NewStubRunner().
		Stdout(tempCmd, "47\n").
		Stderr(tempCmd, "warning: driver mismatch")

	lines, err := newTestProcessor(t, runner).Process(context.Background(), "GPU-abc123", "temperature.gpu")
	require.NoError(t, err)
	assert.Equal(t, []string{"47"}, lines)
}

func TestProcessRunnerError(t *testing.T) {
	spawn := errors.New().Wrap(errors.ErrProcessSpawn, fmt.Errorf("executable file not found"))
	runner := NewStubRunner().Fail(tempCmd, spawn)

	_, err := newTestProcessor(t, runner).Process(context.Background(), "GPU-abc123", "temperature.gpu")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrProcessSpawn))
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestProcessBadArgsNeverRuns(t *testing.T) {
	runner := NewStubRunner()

	_, err := newTestProcessor(t, runner).Process(context.Background(), "", "temperature.gpu")
	require.Error(t, err)
	assert.Empty(t, runner.Calls())
}

func TestNewProcessorValidates(t *testing.T) {
	_, err := NewProcessor(Command{Program: "nvidia-smi"}, NewStubRunner())
	assert.True(t, errors.HasCode(err, errors.ErrInvalidCommand))

	_, err = NewProcessor(smiQuery, nil)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}
