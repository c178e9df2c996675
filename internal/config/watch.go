package config

import (
	"context"
	"path/filepath"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

var _ Watcher = (*Store)(nil)

// Watch reloads the store whenever the config file changes and then calls
// callback. It watches the containing directory so that editors replacing
// the file are noticed. Only the OS filesystem can be watched.
func (s *Store) Watch(ctx context.Context, callback func(*Store)) error {
	errFactory := errors.New()

	if _, ok := s.opts.fs.(*afero.OsFs); !ok {
		return errFactory.WithData(errors.ErrWatchConfig, "filesystem does not support watching")
	}

	path := s.ConfigFile()
	if path == "" {
		return errFactory.WithData(errors.ErrWatchConfig, "no config file in use")
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return errFactory.Wrap(errors.ErrWatchConfig, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errFactory.Wrap(errors.ErrWatchConfig, err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return errFactory.Wrap(errors.ErrWatchConfig, err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				if err := s.Reload(); err != nil {
					logger.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
					continue
				}

				logger.Info().Str("path", path).Msg("Config reloaded")
				callback(s)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("Config watcher error")
			}
		}
	}()

	return nil
}
