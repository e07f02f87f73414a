package ml

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed prediction.
type ErrorKind int

const (
	// KindInvalidInput covers malformed numbers and weights at or below zero.
	KindInvalidInput ErrorKind = iota
	// KindOutOfRange covers weights above MaxWeight.
	KindOutOfRange
	// KindModelUnavailable means no parameters were loaded at startup.
	KindModelUnavailable
	// KindInternal is the catch-all for unexpected evaluation faults.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindOutOfRange:
		return "out_of_range"
	case KindModelUnavailable:
		return "model_unavailable"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// UserCorrectable reports whether the caller can fix the request and retry.
func (k ErrorKind) UserCorrectable() bool {
	return k == KindInvalidInput || k == KindOutOfRange
}

// PredictionError is the structured failure of Predict and PredictRaw.
// Message is safe to show to end users.
type PredictionError struct {
	Kind    ErrorKind
	Message string
	// cause is never rendered to clients.
	cause error
}

func (e *PredictionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PredictionError) Unwrap() error {
	return e.cause
}

// KindOf returns the kind of a prediction error, or KindInternal for any
// other non-nil error.
func KindOf(err error) ErrorKind {
	var perr *PredictionError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindInternal
}

// ErrModelUnavailable is returned by ModelStore.Get while the store is empty.
var ErrModelUnavailable = errors.New("model not loaded")

// ErrAlreadyLoaded is the cause of a ModelLoadError on a second load.
var ErrAlreadyLoaded = errors.New("model store already loaded")

// ModelLoadError reports why an artifact could not become ModelParameters.
type ModelLoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *ModelLoadError) Error() string {
	msg := fmt.Sprintf("load model from %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

func loadError(source, reason string, err error) *ModelLoadError {
	return &ModelLoadError{Source: source, Reason: reason, Err: err}
}
