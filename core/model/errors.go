package model

import "errors"

// ErrPrecondition is returned when a protocol operation is invoked in a state
// that does not allow it, for instance claiming a task that is not assigned.
// It indicates a coordination bug and must abort the run.
var ErrPrecondition = errors.New("precondition violated")

// ErrConsistency is returned when an allocation invariant is broken: a task
// was lost, duplicated or claimed by two agents.
var ErrConsistency = errors.New("consistency violated")
