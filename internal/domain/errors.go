package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is the errors.Is target for every TransitionError.
var ErrInvalidTransition = errors.New("invalid_transition")

// TransitionError reports a state-machine event applied in a state that does
// not permit it. Illegal transitions are always rejected, never forced or
// silently dropped.
type TransitionError struct {
	Entity string
	From   string
	Event  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: event %s not allowed from %s", e.Entity, e.Event, e.From)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }
