package plantuml

import "errors"

// Sentinel errors for renderer invocation. Callers classify failures with
// errors.Is; messages wrapped around them carry the detail.
var (
	// ErrConfiguration means the renderer cannot be invoked as configured
	// (for example an empty executable path). Not retryable.
	ErrConfiguration = errors.New("renderer not configured")

	// ErrLaunch means the renderer process could not be started at all
	// (executable missing, permission denied). Carries the OS cause.
	ErrLaunch = errors.New("renderer failed to start")

	// ErrRender means the renderer ran but produced no usable output or
	// exited non-zero. Carries the best available diagnostic text.
	ErrRender = errors.New("render failed")
)
