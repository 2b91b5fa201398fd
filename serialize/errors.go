package serialize

import (
	"errors"
	"fmt"
)

var (
	ErrRecursionDetected  = errors.New("recursion detected in object graph")
	ErrStackDepthExceeded = errors.New("max traversal depth exceeded")
	ErrSessionReused      = errors.New("session already consumed, create a new one")
)

// PathError decorates a structural failure with the property path at which
// traversal stopped.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}

	return fmt.Sprintf("at %s: %s", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
