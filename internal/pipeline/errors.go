package pipeline

import (
	"errors"
	"fmt"
)

// ErrLocked matches any LockedError via errors.Is.
var ErrLocked = errors.New("middleware can't be added once the stack is dequeuing")

// ErrContinuationReused is returned when a participant invokes the same
// continuation twice while the same queue is active.
var ErrContinuationReused = errors.New("continuation already invoked for the active queue")

// ErrNilParticipant is returned by Pipe for a nil participant.
var ErrNilParticipant = errors.New("participant is nil")

// LockedError is returned when a participant is registered after dispatch
// has started.
type LockedError struct {
	Participant string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("pipeline locked: %s: %v", e.Participant, ErrLocked)
}

// Is reports whether target is ErrLocked.
func (e *LockedError) Is(target error) bool {
	return target == ErrLocked
}

// IsLocked returns true if the error is a pipeline lock violation.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}
