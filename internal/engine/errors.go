package engine

import (
	"errors"
	"fmt"
)

// Outcome classifies what happened to one pick or trigger. Every pick the
// pipeline sees ends in exactly one outcome; none of them is fatal.
type Outcome string

const (
	// OutcomeRejected: the pick failed intake filtering and was not stored.
	OutcomeRejected Outcome = "rejected"

	// OutcomeInsufficient: the trigger window held too few picks.
	OutcomeInsufficient Outcome = "insufficient"

	// OutcomeEngineFailure: the association engine failed or returned
	// nothing usable.
	OutcomeEngineFailure Outcome = "engine_failure"

	// OutcomeNoOrigin: every origin was discarded by validation or
	// deduplication.
	OutcomeNoOrigin Outcome = "no_origin"

	// OutcomePublished: at least one origin was published.
	OutcomePublished Outcome = "published"

	// OutcomeTransportFailure: origins were produced but sending failed.
	OutcomeTransportFailure Outcome = "transport_failure"

	// OutcomeAnomaly: an equal-size, non-identical pick set was compared.
	// Recorded alongside the trigger's final outcome.
	OutcomeAnomaly Outcome = "anomaly"
)

// ErrInsufficientPicks is returned by WindowBuilder.Window when the window
// holds fewer picks than the association engine requires.
var ErrInsufficientPicks = errors.New("insufficient picks in window")

// PipelineError is a failure attributed to one trigger pick. The Run loop
// logs it and carries on with the next pick.
type PipelineError struct {
	// Code is the outcome category.
	Code Outcome

	// Message is a human-readable description.
	Message string

	// PickID identifies the trigger pick, if any.
	PickID string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.PickID != "" {
		msg += fmt.Sprintf(" (pick=%s)", e.PickID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// IsEngineFailure reports whether err is an association engine failure.
// Uses errors.As to handle wrapped errors.
func IsEngineFailure(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == OutcomeEngineFailure
	}
	return false
}

// IsTransportFailure reports whether err is a transport send failure.
func IsTransportFailure(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code == OutcomeTransportFailure
	}
	return false
}

func newEngineFailure(pickID string, err error) *PipelineError {
	return &PipelineError{
		Code:    OutcomeEngineFailure,
		Message: "association engine returned no usable result",
		PickID:  pickID,
		Err:     err,
	}
}

func newTransportFailure(pickID string, n int, err error) *PipelineError {
	return &PipelineError{
		Code:    OutcomeTransportFailure,
		Message: fmt.Sprintf("failed to send %d origin(s)", n),
		PickID:  pickID,
		Err:     err,
	}
}
