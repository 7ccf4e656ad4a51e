package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested channel or video does not exist.
var ErrNotFound = errors.New("not found")

// ErrAliasTaken indicates the requested alias is already in use.
var ErrAliasTaken = errors.New("alias already in use")

// TransitionError reports a state change the lifecycle machine does not allow.
type TransitionError struct {
	VideoID string
	From    State
	To      State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("video %s: invalid transition %s -> %s", e.VideoID, e.From, e.To)
}

// IsInvalidTransition reports whether err is a lifecycle transition violation.
func IsInvalidTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
