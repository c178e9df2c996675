package process

import (
	"context"
	"strings"
	"sync"
)

// StubRunner is a Runner returning canned output keyed by the space-joined
// argument vector. Unknown commands produce empty output.
type StubRunner struct {
	Responses map[string]Result
	Errors    map[string]error
	// Block, when set, makes Run wait until it is closed or ctx ends.
	Block chan struct{}

	mu      sync.Mutex
	calls   [][]string
	started [][]string
}

func NewStubRunner() *StubRunner {
	return &StubRunner{
		Responses: make(map[string]Result),
		Errors:    make(map[string]error),
	}
}

// Stdout registers stdout for the command line.
func (s *StubRunner) Stdout(cmdline, stdout string) *StubRunner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses[cmdline] = Result{Stdout: []byte(stdout)}

	return s
}

// Stderr registers stderr for the command line.
func (s *StubRunner) Stderr(cmdline, stderr string) *StubRunner {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.Responses[cmdline]
	res.Stderr = []byte(stderr)
	s.Responses[cmdline] = res

	return s
}

// Fail makes the command line return err from Run and Start.
func (s *StubRunner) Fail(cmdline string, err error) *StubRunner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors[cmdline] = err

	return s
}

func (s *StubRunner) Run(ctx context.Context, argv []string) (Result, error) {
	key := strings.Join(argv, " ")

	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), argv...))
	block := s.Block
	res, err := s.Responses[key], s.Errors[key]
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Result{}, contextError(ctx.Err())
		}
	}

	if err != nil {
		return Result{}, err
	}

	return res, nil
}

func (s *StubRunner) Start(_ context.Context, argv []string) error {
	key := strings.Join(argv, " ")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, append([]string(nil), argv...))

	return s.Errors[key]
}

// Calls returns the argument vectors passed to Run so far.
func (s *StubRunner) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]string(nil), s.calls...)
}

// Started returns the argument vectors passed to Start so far.
func (s *StubRunner) Started() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]string(nil), s.started...)
}
