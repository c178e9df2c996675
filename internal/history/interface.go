package history

import (
	"context"
	"time"
)

// Recorder stores refresh results.
type Recorder interface {
	Record(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

// Repository is the storage behind a Recorder.
type Repository interface {
	Record(snapshot *Snapshot) error
	Close() error
}

// Snapshot is one refresh of every GPU.
type Snapshot struct {
	Timestamp time.Time
	Provider  string
	GPUs      []GPUSnapshot
}

type GPUSnapshot struct {
	UUID     string
	Readings []Reading
}

// Reading is one formatted value. Failed readings keep the placeholder.
type Reading struct {
	Metric string
	Value  string
	Failed bool
}
