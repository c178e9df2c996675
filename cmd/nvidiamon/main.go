package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/config"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/history"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/monitor"
	"codeberg.org/mutker/nvidiamon/internal/pid"
	"codeberg.org/mutker/nvidiamon/internal/process"
	"codeberg.org/mutker/nvidiamon/internal/provider"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.IsDebug(), cfg.IsVerbose(), logger.IsService())
	logger.SetLogLevel(cfg.LogLevel())
	logger.Debug().Str("config_file", cfg.ConfigFile()).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	runner := process.NewExecRunner()

	switch {
	case cfg.IsProbe():
		err = probe(ctx, cfg, runner)
	case cfg.IsOpenSettings():
		err = openSettings(ctx, cfg, runner)
	case cfg.IsOnce():
		err = once(ctx, cfg, runner)
	default:
		err = serve(ctx, cfg, runner)
	}

	if err != nil {
		if appErr, ok := err.(errors.Error); ok {
			logger.ErrorWithCode(appErr).Msg("Exiting")
		} else {
			logger.Error().Err(err).Msg("Exiting")
		}
		os.Exit(1)
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// serve refreshes on the configured interval until ctx is done.
func serve(ctx context.Context, cfg *config.Store, runner process.Runner) error {
	pidFile := pid.New(afero.NewOsFs(), "")
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	logInventory()

	recorder, err := history.NewService(historyConfig(cfg), logger.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close history")
		}
	}()

	m, err := monitor.New(cfg, runner, logger.Default())
	if err != nil {
		return err
	}

	if err := cfg.Watch(ctx, func(s *config.Store) {
		logger.SetLogLevel(s.LogLevel())
		if err := m.Reconfigure(); err != nil {
			logger.Warn().Err(err).Msg("Failed to apply config change")
		}
	}); err != nil {
		logger.Debug().Err(err).Msg("Config reload disabled")
	}

	if err := m.Start(); err != nil {
		return err
	}
	logger.Info().Str("provider", m.Provider().Kind().String()).Msg("Monitoring started")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range m.Updates() {
			printUpdate(os.Stdout, u)
			if err := recorder.Record(context.Background(), history.NewSnapshot(u)); err != nil {
				logger.Warn().Err(err).Msg("Failed to record history")
			}
		}
	}()

	<-ctx.Done()

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()

	select {
	case err := <-closed:
		<-done
		logger.Info().Msg("Exiting...")
		return err
	case <-time.After(shutdownTimeout):
		return errors.New().New(errors.ErrTimeout)
	}
}

func once(ctx context.Context, cfg *config.Store, runner process.Runner) error {
	m, err := monitor.New(cfg, runner, logger.Default())
	if err != nil {
		return err
	}
	defer m.Close()

	u, err := m.RefreshNow(ctx)
	if err != nil {
		return err
	}
	printUpdate(os.Stdout, u)

	return u.Err
}

func openSettings(ctx context.Context, cfg *config.Store, runner process.Runner) error {
	value, err := cfg.ProviderKind()
	if err != nil {
		return err
	}
	kind, err := provider.ParseKind(value)
	if err != nil {
		return err
	}

	p, err := provider.New(kind, runner, cfg)
	if err != nil {
		return err
	}

	return p.OpenSettingsApp(ctx)
}

// probe lists the NVML inventory next to what the configured provider
// reports.
func probe(ctx context.Context, cfg *config.Store, runner process.Runner) error {
	inv, err := gpu.Probe(logger.Default())
	if err != nil {
		return err
	}

	fmt.Printf("driver %s\n", inv.DriverVersion)
	for _, d := range inv.Devices {
		fmt.Printf("%d  %s  %s\n", d.Index, d.UUID, d.Name)
	}

	m, err := monitor.New(cfg, runner, logger.Default())
	if err != nil {
		return err
	}
	defer m.Close()

	listed, err := m.Provider().GPUUUIDs(ctx)
	if err != nil {
		return err
	}
	for _, uuid := range inv.Missing(listed) {
		logger.Warn().
			Str("gpu", uuid).
			Str("provider", m.Provider().Kind().String()).
			Msg("GPU not listed by provider")
	}

	return nil
}

func logInventory() {
	inv, err := gpu.Probe(logger.Default())
	if err != nil {
		logger.Debug().Err(err).Msg("NVML unavailable")
		return
	}

	for _, d := range inv.Devices {
		logger.Info().
			Str("gpu", d.UUID).
			Str("name", d.Name).
			Str("driver", inv.DriverVersion).
			Msg("Detected GPU")
	}
}

func historyConfig(cfg *config.Store) history.Config {
	h := cfg.History()

	return history.Config{
		Enabled:      h.Enabled,
		DBPath:       h.DBPath,
		BatchSize:    h.BatchSize,
		BatchTimeout: h.BatchTimeout,
	}
}

// printUpdate writes one line per GPU, metrics in display order.
func printUpdate(w io.Writer, u monitor.Update) {
	for _, g := range u.GPUs {
		fields := make([]string, 0, len(g.Readings)+1)
		fields = append(fields, g.UUID)

		if len(g.Readings) == 0 {
			fields = append(fields, provider.Placeholder)
		}
		for _, r := range g.Readings {
			fields = append(fields, string(r.Metric)+"="+r.Value)
		}

		fmt.Fprintln(w, strings.Join(fields, "  "))

		logger.Debug().
			Str("gpu", g.UUID).
			Str("provider", u.Provider.String()).
			Int("readings", len(g.Readings)).
			Msg("Refreshed")
	}
}
