package engine

import "errors"

// HTTP handlers map these to status codes centrally rather than
// re-deriving them per handler.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation")
)
