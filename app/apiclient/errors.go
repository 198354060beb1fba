package apiclient

import (
	"errors"
	"strings"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNetwork
	KindServer
	KindProcessor
	KindPersistenceMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindProcessor:
		return "processor"
	case KindPersistenceMismatch:
		return "persistence_mismatch"
	default:
		return "unknown"
	}
}

// Error is the single failure shape produced by the client layer.
// Message holds the server-supplied (or per-endpoint default) message; Cause holds
// the native error when the failure did not come from a response body.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		return e.Kind.String() + ": " + msg
	}
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewProcessorError(message string, cause error) *Error {
	return &Error{Kind: KindProcessor, Message: message, Cause: cause}
}

// AsError returns the typed client error inside err, or nil.
func AsError(err error) *Error {
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return nil
}

// KindOf reports the kind of a client error, or 0 for foreign errors.
func KindOf(err error) ErrorKind {
	if apiErr := AsError(err); apiErr != nil {
		return apiErr.Kind
	}
	return 0
}
