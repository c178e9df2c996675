package process

import (
	"bytes"
	"context"

	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/parser"
)

// Processor binds a Command to the Runner that executes it. It holds no
// per-call state and may be shared between goroutines.
type Processor struct {
	command Command
	runner  Runner
}

func NewProcessor(command Command, runner Runner) (Processor, error) {
	errFactory := errors.New()

	if runner == nil {
		return Processor{}, errFactory.WithData(errors.ErrInvalidArgument, "nil runner")
	}
	if err := command.Validate(); err != nil {
		return Processor{}, err
	}

	return Processor{command: command, runner: runner}, nil
}

func (p Processor) Command() Command {
	return p.command
}

// Process runs the command for target and key and returns stdout split into
// records. A nil slice with a nil error means the child printed nothing at
// all. Empty stdout with something on stderr is an output error; stderr next
// to usable stdout is only logged.
func (p Processor) Process(ctx context.Context, target, key string) ([]string, error) {
	errFactory := errors.New()

	argv, err := p.command.Args(target, key)
	if err != nil {
		return nil, err
	}

	result, err := p.runner.Run(ctx, argv)
	if err != nil {
		return nil, err
	}

	lines := parser.Lines(result.Stdout)
	stderr := string(bytes.TrimSpace(result.Stderr))

	if len(lines) > 0 {
		if stderr != "" {
			logger.Warn().
				Strs("argv", argv).
				Str("stderr", stderr).
				Msg("Command wrote to stderr")
		}

		return lines, nil
	}

	if stderr == "" {
		return nil, nil
	}

	return nil, errFactory.WithData(errors.ErrProcessOutput, stderr)
}
