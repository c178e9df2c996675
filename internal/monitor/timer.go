package monitor

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/logger"
	"github.com/robfig/cron/v3"
)

// Timer runs one recurring job. Arming it again replaces the previous
// schedule, so at most one recurring entry exists at any time.
type Timer struct {
	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	armed    bool
	interval time.Duration
}

func NewTimer(log logger.Logger) *Timer {
	l := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Start()

	return &Timer{cron: c}
}

// Arm cancels any scheduled job and schedules job every interval. Intervals
// are whole seconds, at least one.
func (t *Timer) Arm(interval time.Duration, job func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		t.cron.Remove(t.entry)
	}

	t.entry = t.cron.Schedule(cron.Every(interval), cron.FuncJob(job))
	t.armed = true
	t.interval = interval
}

// Disarm cancels the scheduled job. A running job is not interrupted.
func (t *Timer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.armed {
		t.cron.Remove(t.entry)
		t.armed = false
		t.interval = 0
	}
}

// Interval returns the armed interval, or zero when disarmed.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.interval
}

// Stop disarms the timer and stops the scheduler. The returned context is
// done once running jobs have finished.
func (t *Timer) Stop() context.Context {
	t.Disarm()

	return t.cron.Stop()
}

func (t *Timer) entries() int {
	return len(t.cron.Entries())
}

// cronLogger adapts the logger to cron's logging interface.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
