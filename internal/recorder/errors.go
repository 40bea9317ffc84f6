package recorder

import "errors"

// SessionErrorKind tags the closed set of invalid state transitions.
type SessionErrorKind string

const (
	ErrAlreadyRecording SessionErrorKind = "already_recording"
	ErrNotRecording     SessionErrorKind = "not_recording"
	ErrAlreadyPaused    SessionErrorKind = "already_paused"
	ErrNotPaused        SessionErrorKind = "not_paused"
)

// SessionError reports a control call made from the wrong state.
type SessionError struct {
	Kind SessionErrorKind
}

func (e *SessionError) Error() string {
	return "session error: " + string(e.Kind)
}

// IsSessionError reports whether err is a SessionError of the given kind.
func IsSessionError(err error, kind SessionErrorKind) bool {
	var se *SessionError
	return errors.As(err, &se) && se.Kind == kind
}
