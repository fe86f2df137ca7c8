package service

import "errors"

var (
	ErrHypothesisNotFound = errors.New("hypothesis not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrProbeNotFound      = errors.New("probe not found")

	// ErrInvalidAnswer means the answer token is not a key of the probe's
	// confidence mappings. The session stays usable.
	ErrInvalidAnswer = errors.New("answer token not in probe mapping")

	// ErrProbeConsumed means the probe packet was already answered.
	ErrProbeConsumed = errors.New("probe already consumed")

	ErrInvalidTransition  = errors.New("invalid session state transition")
	ErrSessionComplete    = errors.New("session is complete")
	ErrSessionNotComplete = errors.New("session is not complete")

	// ErrSessionExhausted is a normal terminal signal, not a failure: no open
	// hypothesis can be probed any further. The session manager converts it
	// into the complete state before returning it.
	ErrSessionExhausted = errors.New("session exhausted")

	// ErrDuplicateStrategy is a startup-time conflict, never a runtime error.
	ErrDuplicateStrategy = errors.New("strategy name already registered")

	ErrNoOpenHypotheses    = errors.New("no open hypotheses for user")
	ErrInvalidDistribution = errors.New("candidate probabilities must sum to 1.0")
)
