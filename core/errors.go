package core

import (
	"errors"
	"fmt"
)

var (
	// ErrClassificationUnavailable means the safety gate could not produce a
	// verdict. Callers must block the turn instead of assuming "safe".
	ErrClassificationUnavailable = errors.New("safety classification unavailable")

	// ErrTypeMismatch means a specific message variant was required and a
	// different one was supplied.
	ErrTypeMismatch = errors.New("message type mismatch")

	// ErrProtocolViolation means an event stream broke the tool-call protocol
	// (missing tool result, unknown tool_call_id, premature end of stream).
	ErrProtocolViolation = errors.New("event stream protocol violation")

	// ErrUpstream marks a model inference failure (transport error, timeout,
	// rate limit, empty response).
	ErrUpstream = errors.New("upstream inference failure")

	// ErrStepBudgetExceeded is raised by the execution host when a turn reaches
	// a non-terminal state without any remaining steps.
	ErrStepBudgetExceeded = errors.New("step budget exceeded")

	// ErrReconstructorConsumed is returned when a transcript reconstructor is
	// driven a second time.
	ErrReconstructorConsumed = errors.New("reconstructor already consumed")
)

// TypeMismatchError reports the variant that was expected and the value that
// was received. It matches ErrTypeMismatch via errors.Is.
type TypeMismatchError struct {
	Want string
	Got  any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%v: want %s, got %T", ErrTypeMismatch, e.Want, e.Got)
}

// Is implements errors.Is matching against ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool { return target == ErrTypeMismatch }

// UpstreamError wraps a provider failure. It matches ErrUpstream via errors.Is
// and unwraps to the underlying cause.
type UpstreamError struct {
	Provider string
	Model    string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("%v (%s/%s): %v", ErrUpstream, e.Provider, e.Model, e.Err)
	}

	return fmt.Sprintf("%v (%s): %v", ErrUpstream, e.Provider, e.Err)
}

// Is implements errors.Is matching against ErrUpstream.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// Unwrap returns the underlying provider error.
func (e *UpstreamError) Unwrap() error { return e.Err }

// ProtocolError describes a protocol violation observed by a stream consumer.
type ProtocolError struct {
	Reason string
	CallID string
}

func (e *ProtocolError) Error() string {
	if e.CallID != "" {
		return fmt.Sprintf("%v: %s (tool_call_id=%s)", ErrProtocolViolation, e.Reason, e.CallID)
	}

	return fmt.Sprintf("%v: %s", ErrProtocolViolation, e.Reason)
}

// Is implements errors.Is matching against ErrProtocolViolation.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocolViolation }
