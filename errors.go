package vcable

import "errors"

// Sentinel errors for session operations, classified with errors.Is.
var (
	// ErrIndexOutOfRange indicates a plugin index outside [0, Len()].
	ErrIndexOutOfRange = errors.New("plugin index out of range")

	// ErrOptionsNotSet indicates SetPlugin was called before SetOptions
	// succeeded.
	ErrOptionsNotSet = errors.New("options must be set before selecting a plugin")

	// ErrOpenFailed indicates the selected plugin refused to open. The session
	// is left inactive.
	ErrOpenFailed = errors.New("plugin failed to open")

	// ErrReleased indicates an operation on a released session.
	ErrReleased = errors.New("session released")
)
