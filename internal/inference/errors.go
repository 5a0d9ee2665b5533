package inference

import "errors"

// Error taxonomy surfaced by Classify. The HTTP layer maps these to status
// codes; anything else is an internal failure.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrModelUnavailable = errors.New("no model loaded")
)
