package process

import (
	"strings"
	"unicode"

	"codeberg.org/mutker/nvidiamon/internal/errors"
)

// Command describes one external call: the program, an optional wrapped
// program (optirun's target), and the fixed fragments around the metric key
// and target identifier.
type Command struct {
	Program string
	Prefix  []string
	Head    string
	Middle  string
	Tail    []string
	Shape   Shape
}

// Validate checks that the fragments fit the declared shape.
func (c Command) Validate() error {
	errFactory := errors.New()

	if c.Program == "" {
		return errFactory.WithData(errors.ErrInvalidCommand, "empty program")
	}

	switch c.Shape {
	case ShapeList:
		if c.Head != "" || c.Middle != "" || len(c.Tail) == 0 {
			return errFactory.WithData(errors.ErrInvalidCommand, c.Shape.String())
		}
	case ShapeQuery:
		if c.Head == "" || c.Middle != "" {
			return errFactory.WithData(errors.ErrInvalidCommand, c.Shape.String())
		}
	case ShapeAttribute:
		if c.Head == "" || c.Middle == "" {
			return errFactory.WithData(errors.ErrInvalidCommand, c.Shape.String())
		}
	default:
		return errFactory.WithData(errors.ErrInvalidCommand, c.Shape.String())
	}

	return nil
}

// Args builds the argument vector for target and key. List commands take
// neither; query and attribute commands require both.
func (c Command) Args(target, key string) ([]string, error) {
	errFactory := errors.New()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	argv := make([]string, 0, 2+len(c.Prefix)+len(c.Tail)+1)
	argv = append(argv, c.Program)
	argv = append(argv, c.Prefix...)

	switch c.Shape {
	case ShapeList:
		if target != "" || key != "" {
			return nil, errFactory.WithData(errors.ErrInvalidCommand, "list command takes no key or target")
		}
		argv = append(argv, c.Tail...)

	case ShapeQuery:
		if err := checkTokens(target, key); err != nil {
			return nil, err
		}
		argv = append(argv, c.Head+key)
		argv = append(argv, c.Tail...)
		argv = append(argv, target)

	case ShapeAttribute:
		if err := checkTokens(target, key); err != nil {
			return nil, err
		}
		argv = append(argv, c.Head+target+c.Middle+key)
		argv = append(argv, c.Tail...)
	}

	return argv, nil
}

// String renders the command for logs.
func (c Command) String() string {
	parts := append([]string{c.Program}, c.Prefix...)
	if c.Head != "" {
		parts = append(parts, c.Head+"<key>")
	}

	return strings.Join(append(parts, c.Tail...), " ")
}

// checkTokens rejects identifiers that could change the meaning of the
// spliced argument, such as a target carrying its own "]/" selector.
func checkTokens(tokens ...string) error {
	errFactory := errors.New()

	for _, token := range tokens {
		if token == "" {
			return errFactory.WithData(errors.ErrInvalidCommand, "missing key or target")
		}
		for _, r := range token {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("-_.:", r) {
				continue
			}

			return errFactory.WithData(errors.ErrInvalidArgument, token)
		}
	}

	return nil
}
