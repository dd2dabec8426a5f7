package session

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePatchFailed indicates a snapshot could not be mirrored.
	ErrCodePatchFailed RuntimeErrorCode = "PATCH_FAILED"

	// ErrCodeMergeFailed indicates remote ops could not be merged, usually
	// because they arrived before the ops they build on.
	ErrCodeMergeFailed RuntimeErrorCode = "MERGE_FAILED"

	// ErrCodeUnknownEvent indicates an event with an unknown or incomplete
	// payload.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"

	// ErrCodeQueueClosed indicates the session has stopped.
	ErrCodeQueueClosed RuntimeErrorCode = "QUEUE_CLOSED"
)

// RuntimeError represents an error detected while processing an event.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string

	// Event is the name of the event type being processed.
	Event string

	Err error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Event != "" {
		msg += fmt.Sprintf(" (event=%s)", e.Event)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsPatchError reports whether err is a failed patch.
func IsPatchError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodePatchFailed
	}
	return false
}

// IsMergeError reports whether err is a failed merge of remote ops.
func IsMergeError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeMergeFailed
	}
	return false
}

// IsQueueClosed reports whether err came from a stopped session.
func IsQueueClosed(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQueueClosed
	}
	return false
}

func newPatchError(err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePatchFailed,
		Message: "snapshot not mirrored",
		Event:   EventTypeSnapshot.String(),
		Err:     err,
	}
}

func newMergeError(err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMergeFailed,
		Message: "remote ops not merged",
		Event:   EventTypeRemoteOps.String(),
		Err:     err,
	}
}

func newUnknownEventError(t EventType, msg string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownEvent,
		Message: msg,
		Event:   t.String(),
	}
}

var errQueueClosed = &RuntimeError{
	Code:    ErrCodeQueueClosed,
	Message: "session stopped",
}
