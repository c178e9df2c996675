// Package monitor refreshes GPU readings on a timer, off the caller's
// goroutine, and delivers them as updates on a channel.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/process"
	"codeberg.org/mutker/nvidiamon/internal/provider"
)

// Settings is what the monitor reads from the settings store.
type Settings interface {
	RefreshRate() (int, error)
	ProviderKind() (int, error)
	TemperatureFormat() (int, error)
}

// GPUReport holds the readings of one GPU for one refresh.
type GPUReport struct {
	UUID     string
	Readings []provider.Reading
	Err      error
}

// Update is the result of one refresh. When the GPUs could not be listed,
// Err is set and GPUs repeats the previously known set without readings.
type Update struct {
	Time     time.Time
	Provider provider.Kind
	GPUs     []GPUReport
	Err      error
}

type Monitor struct {
	settings Settings
	runner   process.Runner
	log      logger.Logger
	timer    *Timer
	updates  chan Update
	inFlight atomic.Bool
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	provider   *provider.Provider
	cancelTick context.CancelFunc
	lastGPUs   []string
	started    bool
	closed     bool
}

func New(settings Settings, runner process.Runner, log logger.Logger) (*Monitor, error) {
	errFactory := errors.New()

	if settings == nil || runner == nil || log == nil {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, "monitor needs settings, runner and logger")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		settings: settings,
		runner:   runner,
		log:      log,
		timer:    NewTimer(log),
		updates:  make(chan Update, 1),
		ctx:      ctx,
		cancel:   cancel,
	}

	if err := m.Reconfigure(); err != nil {
		cancel()
		m.timer.Stop()
		return nil, err
	}

	return m, nil
}

// Updates delivers refresh results. It is closed by Close.
func (m *Monitor) Updates() <-chan Update {
	return m.updates
}

// Provider returns the provider currently in use.
func (m *Monitor) Provider() *provider.Provider {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.provider
}

// Start arms the refresh timer and triggers a first refresh right away.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New().New(errors.ErrClosed)
	}
	m.started = true
	m.wg.Add(1)
	m.mu.Unlock()

	if err := m.arm(); err != nil {
		m.wg.Done()
		return err
	}

	go func() {
		defer m.wg.Done()
		m.tick()
	}()

	return nil
}

// Reconfigure applies the current settings. A provider change cancels the
// refresh in flight; an interval change re-arms the timer.
func (m *Monitor) Reconfigure() error {
	value, err := m.settings.ProviderKind()
	if err != nil {
		return err
	}
	kind, err := provider.ParseKind(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New().New(errors.ErrClosed)
	}

	if m.provider == nil || m.provider.Kind() != kind {
		p, err := provider.New(kind, m.runner, m.settings)
		if err != nil {
			m.mu.Unlock()
			return err
		}

		if m.cancelTick != nil {
			m.cancelTick()
		}
		if m.provider != nil {
			m.log.Info().
				Str("from", m.provider.Kind().String()).
				Str("to", kind.String()).
				Msg("Provider changed")
		}
		m.provider = p
		m.lastGPUs = nil
	}
	started := m.started
	m.mu.Unlock()

	if started {
		return m.arm()
	}

	return nil
}

func (m *Monitor) arm() error {
	rate, err := m.settings.RefreshRate()
	if err != nil {
		return err
	}

	interval := time.Duration(rate) * time.Second
	if m.timer.Interval() != interval {
		m.timer.Arm(interval, m.tick)
		m.log.Debug().Dur("interval", interval).Msg("Refresh timer armed")
	}

	return nil
}

// RefreshNow runs one refresh on the calling goroutine.
func (m *Monitor) RefreshNow(ctx context.Context) (Update, error) {
	return m.refresh(ctx)
}

// Close stops the timer, cancels any refresh in flight and closes the
// updates channel once every refresh goroutine has returned.
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	<-m.timer.Stop().Done()
	m.wg.Wait()
	close(m.updates)

	return nil
}

// tick is the timer job. It never touches the caller's goroutine; results
// go through the updates channel.
func (m *Monitor) tick() {
	u, err := m.refresh(m.ctx)
	if err != nil {
		if !errors.HasCode(err, errors.ErrRefreshBusy) && !errors.HasCode(err, errors.ErrCanceled) {
			m.log.Warn().Err(err).Msg("Refresh failed")
		}
		return
	}

	select {
	case m.updates <- u:
	case <-m.ctx.Done():
	}
}

// refresh lists the GPUs and reads every metric of each. Only one refresh
// runs at a time.
func (m *Monitor) refresh(parent context.Context) (Update, error) {
	errFactory := errors.New()

	if !m.inFlight.CompareAndSwap(false, true) {
		return Update{}, errFactory.New(errors.ErrRefreshBusy)
	}
	defer m.inFlight.Store(false)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Update{}, errFactory.New(errors.ErrClosed)
	}
	p := m.provider
	m.cancelTick = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.cancelTick = nil
		m.mu.Unlock()
	}()

	u := Update{Time: time.Now(), Provider: p.Kind()}

	uuids, err := p.GPUUUIDs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Update{}, errFactory.Wrap(errors.ErrCanceled, ctx.Err())
		}

		m.log.Warn().Err(err).Str("provider", p.Kind().String()).Msg("GPU monitoring command failed")

		m.mu.Lock()
		for _, uuid := range m.lastGPUs {
			u.GPUs = append(u.GPUs, GPUReport{UUID: uuid})
		}
		m.mu.Unlock()
		u.Err = err

		return u, nil
	}

	for _, uuid := range uuids {
		readings, err := p.Snapshot(ctx, uuid)
		if ctx.Err() != nil {
			return Update{}, errFactory.Wrap(errors.ErrCanceled, ctx.Err())
		}

		for _, r := range readings {
			if r.Err != nil {
				m.log.Warn().
					Err(r.Err).
					Str("gpu", uuid).
					Str("metric", string(r.Metric)).
					Msg("GPU monitoring command failed")
			}
		}

		u.GPUs = append(u.GPUs, GPUReport{UUID: uuid, Readings: readings, Err: err})
	}

	m.mu.Lock()
	if m.provider == p {
		m.lastGPUs = uuids
	}
	m.mu.Unlock()

	return u, nil
}
