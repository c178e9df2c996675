package process

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
)

const DefaultTimeout = 10 * time.Second

// ExecRunner runs commands with os/exec. The child is killed when ctx is
// cancelled or Timeout elapses.
type ExecRunner struct {
	Timeout time.Duration
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{Timeout: DefaultTimeout}
}

func (r *ExecRunner) Run(ctx context.Context, argv []string) (Result, error) {
	errFactory := errors.New()

	if len(argv) == 0 {
		return Result{}, errFactory.WithData(errors.ErrInvalidCommand, "empty argv")
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug().Strs("argv", argv).Msg("Executing command")

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, contextError(ctxErr)
	}

	result := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return Result{}, errFactory.Wrap(errors.ErrProcessSpawn, err)
		}

		result.ExitCode = exitErr.ExitCode()
		logger.Debug().
			Strs("argv", argv).
			Int("exit_code", result.ExitCode).
			Msg("Command exited with non-zero status")
	}

	return result, nil
}

// Start launches the child detached from ctx's lifetime and reaps it in the
// background.
func (r *ExecRunner) Start(ctx context.Context, argv []string) error {
	errFactory := errors.New()

	if len(argv) == 0 {
		return errFactory.WithData(errors.ErrInvalidCommand, "empty argv")
	}
	if err := ctx.Err(); err != nil {
		return contextError(err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return errFactory.Wrap(errors.ErrProcessSpawn, err)
	}

	logger.Debug().Strs("argv", argv).Int("pid", cmd.Process.Pid).Msg("Started command")

	go func() {
		if err := cmd.Wait(); err != nil {
			logger.Debug().Err(err).Strs("argv", argv).Msg("Detached command exited")
		}
	}()

	return nil
}

// contextError tells a deadline apart from an explicit cancellation.
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.New().Wrap(errors.ErrTimeout, err)
	}

	return errors.New().Wrap(errors.ErrCanceled, err)
}
