// Package pid keeps a single nvidiamon instance per machine.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"github.com/spf13/afero"
)

const (
	pidFile = "nvidiamon.pid"
)

type File struct {
	fs   afero.Fs
	path string
}

// New returns the PID file in dir, or in the system temp dir when dir is
// empty.
func New(fs afero.Fs, dir string) *File {
	if dir == "" {
		dir = os.TempDir()
	}

	return &File{fs: fs, path: filepath.Join(dir, pidFile)}
}

func (f *File) Path() string {
	return f.path
}

// Write writes the current process ID, failing if the recorded process is
// still alive. A stale or unreadable file is replaced.
func (f *File) Write() error {
	errFactory := errors.New()

	if data, err := afero.ReadFile(f.fs, f.path); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(data))); err == nil && alive(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	}

	if err := afero.WriteFile(f.fs, f.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file.
func (f *File) Remove() error {
	errFactory := errors.New()

	if err := f.fs.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}
