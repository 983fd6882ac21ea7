package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyActive is returned when a call is registered while another one
	// is still live.
	ErrAlreadyActive = errors.New("there cannot be more than one call at the same time")

	// ErrSessionClosed is returned by control operations issued after the
	// backend session ended.
	ErrSessionClosed = errors.New("call session closed")

	ErrUnknownAction = errors.New("unknown call action")
)

// ControlError is a rejection reported by the call-control backend. Code is
// forwarded as is and never interpreted.
type ControlError struct {
	Code int
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("call control failed with code %d", e.Code)
}

// ControlErrorCode extracts the backend code from err. Errors that did not
// come from the backend map to -1.
func ControlErrorCode(err error) int {
	var ce *ControlError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}
