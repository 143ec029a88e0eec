package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every way a turn can fail.
type ErrorKind string

const (
	ErrRateLimited                ErrorKind = "rate_limited"
	ErrMalformedBody              ErrorKind = "malformed_body"
	ErrMessageTooLong             ErrorKind = "message_too_long"
	ErrTooManyFiles               ErrorKind = "too_many_files"
	ErrFileTooLarge               ErrorKind = "file_too_large"
	ErrEmptyTurn                  ErrorKind = "empty_turn"
	ErrNoProviderConfigured       ErrorKind = "no_provider_configured"
	ErrAttachmentProcessingFailed ErrorKind = "attachment_processing_failed"
	ErrStreamingUnsupported       ErrorKind = "streaming_unsupported"
	ErrContentBlocked             ErrorKind = "content_blocked"
	ErrBackendCallFailed          ErrorKind = "backend_call_failed"
)

// TurnError is returned by pipeline stages. Message is safe to show to the
// user; Details carries diagnostic text such as upstream status and body.
type TurnError struct {
	Kind    ErrorKind
	Message string
	Details string
	Err     error
}

func (e *TurnError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TurnError) Unwrap() error { return e.Err }

// NewTurnError builds a TurnError without an underlying cause.
func NewTurnError(kind ErrorKind, msg string) *TurnError {
	return &TurnError{Kind: kind, Message: msg}
}

// WrapTurnError builds a TurnError whose details are the cause's text.
func WrapTurnError(kind ErrorKind, msg string, err error) *TurnError {
	te := &TurnError{Kind: kind, Message: msg, Err: err}
	if err != nil {
		te.Details = err.Error()
	}
	return te
}

// KindOf returns the kind of the first TurnError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
