package experiment

import "errors"

// Sequencing errors.
var (
	// ErrSequenceDone is returned by Sequence.Next when no steps remain.
	ErrSequenceDone = errors.New("sequence done")
	// ErrSequenceAborted is returned by Next after Abort.
	ErrSequenceAborted = errors.New("sequence aborted")
	// ErrSensorDisconnected is returned by Stepper.Run when the headset
	// connection drops mid-session.
	ErrSensorDisconnected = errors.New("lost connection to headset")
)

// Recoverable trial conditions. They are logged and counted, never returned
// to the stepper.
var (
	ErrArtifactDetected      = errors.New("motion artifact detected")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// Setup errors.
var (
	ErrInvalidSettings     = errors.New("invalid experiment settings")
	ErrNoItems             = errors.New("no learning items")
	ErrInsufficientStimuli = errors.New("not enough training stimuli for the configured blocks")
	ErrMissingDependency   = errors.New("missing dependency")
)

// ErrInvalidTransition is returned when a runner is driven out of order.
var ErrInvalidTransition = errors.New("invalid state transition")
