package request

import "errors"

var (
	// ErrInternalServer is returned to clients when a handler panics or
	// fails in a way that should not be exposed.
	ErrInternalServer = errors.New("internal server error")
)
