// Package history records GPU readings to a SQLite database.
package history

import (
	"context"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/monitor"
)

type service struct {
	repo Repository
	cfg  Config
}

type noopRecorder struct{}

func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("History disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create history repository")
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Int("batch_size", cfg.BatchSize).
		Msg("History service initialized")

	return &service{repo: repo, cfg: cfg}, nil
}

// NewSnapshot converts a monitor update. Updates whose GPU listing failed
// carry no readings and produce an empty snapshot.
func NewSnapshot(u monitor.Update) *Snapshot {
	s := &Snapshot{
		Timestamp: u.Time,
		Provider:  u.Provider.String(),
	}

	for _, gpu := range u.GPUs {
		if len(gpu.Readings) == 0 {
			continue
		}

		g := GPUSnapshot{UUID: gpu.UUID}
		for _, r := range gpu.Readings {
			g.Readings = append(g.Readings, Reading{
				Metric: string(r.Metric),
				Value:  r.Value,
				Failed: r.Err != nil,
			})
		}
		s.GPUs = append(s.GPUs, g)
	}

	return s
}

func (s *service) Record(ctx context.Context, snapshot *Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.New(ErrInvalidSnapshot)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationCanceled, ctx.Err())
	default:
		if err := s.repo.Record(snapshot); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	return nil
}

func (noopRecorder) Record(_ context.Context, _ *Snapshot) error {
	return nil
}

func (noopRecorder) Close() error {
	return nil
}
