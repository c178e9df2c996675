package process

import "context"

// Runner executes an argument vector as a child process. No shell is
// involved; argv[0] is resolved through PATH.
type Runner interface {
	// Run blocks until the child exits and returns its captured output.
	Run(ctx context.Context, argv []string) (Result, error)
	// Start launches the child and returns without waiting for it.
	Start(ctx context.Context, argv []string) error
}

// Result holds the captured streams of a finished child process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Shape selects how a Command splices the metric key and target
// identifier into the argument vector.
type Shape int

const (
	// ShapeList: program prefix... tail...
	ShapeList Shape = iota
	// ShapeQuery: program prefix... head+key tail... target
	ShapeQuery
	// ShapeAttribute: program prefix... head+target+middle+key tail...
	ShapeAttribute
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeQuery:
		return "query"
	case ShapeAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}
