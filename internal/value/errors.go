package value

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedShape is matched by every ShapeError via errors.Is.
var ErrUnsupportedShape = errors.New("unsupported shape")

// ShapeError reports a Go value that has no plain representation.
//
// Path locates the offending value inside the input, e.g. ["nodes", "3"].
// GoType is the %T rendering of the rejected value.
type ShapeError struct {
	Path   []string
	GoType string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%s: %s", ErrUnsupportedShape, e.GoType)
	}
	return fmt.Sprintf("%s: %s at %s", ErrUnsupportedShape, e.GoType, strings.Join(e.Path, "."))
}

// Is makes errors.Is(err, ErrUnsupportedShape) match.
func (e *ShapeError) Is(target error) bool {
	return target == ErrUnsupportedShape
}

// IsUnsupportedShape returns true if err is or wraps a ShapeError.
func IsUnsupportedShape(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// within returns a copy of err with key prepended to its path.
func within(key string, err error) error {
	var se *ShapeError
	if !errors.As(err, &se) {
		return err
	}
	path := make([]string, 0, len(se.Path)+1)
	path = append(path, key)
	path = append(path, se.Path...)
	return &ShapeError{Path: path, GoType: se.GoType}
}
