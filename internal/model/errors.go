package model

import (
	"errors"
	"strings"
)

// ErrorKind classifies why a run stopped.
type ErrorKind string

const (
	ErrKindQuery             ErrorKind = "query_error"
	ErrKindNoObservations    ErrorKind = "no_observations_found"
	ErrKindNoMatchingProduct ErrorKind = "no_matching_product"
	ErrKindRetrieval         ErrorKind = "retrieval_error"
	ErrKindContainerParse    ErrorKind = "container_parse_error"
	ErrKindMissingData       ErrorKind = "missing_data"
	ErrKindNoImageData       ErrorKind = "no_image_data_found"
)

// NoticeUnsupportedRender is shown for data types that are extracted but not
// charted. It is informational and never fails a run.
const NoticeUnsupportedRender = "Timeseries data visualization not yet implemented."

// StageError is a classified pipeline failure.
type StageError struct {
	Kind    ErrorKind
	Stage   RunState
	Message string
	// Extensions is the container listing attached to no_image_data_found.
	Extensions []ExtensionInfo
	Err        error
}

// NewStageError builds a StageError with the given kind and message.
func NewStageError(kind ErrorKind, msg string, err error) *StageError {
	return &StageError{Kind: kind, Message: msg, Err: err}
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a
// StageError.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// AsStageError extracts the StageError from err's chain.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	ok := errors.As(err, &se)
	return se, ok
}
