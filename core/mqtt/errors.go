package mqtt

import "errors"

// ErrInvalidTask is returned when an ingested task message cannot be used.
var ErrInvalidTask = errors.New("invalid task message")
