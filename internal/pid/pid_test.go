package pid

import (
	"os"
	"strconv"
	"testing"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := New(fs, "/run")

	require.NoError(t, f.Write())
	data, err := afero.ReadFile(fs, "/run/nvidiamon.pid")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, f.Remove())
	require.NoError(t, f.Remove())

	exists, err := afero.Exists(fs, f.Path())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestWriteRefusesLiveProcess(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := New(fs, "/run")
	require.NoError(t, afero.WriteFile(fs, f.Path(), []byte(strconv.Itoa(os.Getpid())), 0o600))

	err := f.Write()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestWriteReplacesStaleFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := New(fs, "/run")

	for _, content := range []string{"99999999", "garbage", ""} {
		require.NoError(t, afero.WriteFile(fs, f.Path(), []byte(content), 0o600))
		require.NoError(t, f.Write(), content)
	}
}
