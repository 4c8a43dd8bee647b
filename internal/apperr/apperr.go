// Package apperr holds the error taxonomy shared by the registration and
// search flows. Every failure that reaches the HTTP boundary is one *Error.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindSecurity
	KindNotFound
	KindValidation
	KindBusinessRule
	KindConflict
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindSecurity:
		return "security"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindBusinessRule:
		return "business_rule"
	case KindConflict:
		return "conflict"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a kind onto the status code used by the ajax boundary.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindSecurity:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBusinessRule:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Machine readable codes sent to the client next to the message.
const (
	CodeInvalidNonce      = "invalid_nonce"
	CodeNotFound          = "not_found"
	CodeInvalidRequest    = "invalid_request"
	CodeRegistrationClose = "registration_closed"
	CodeAlreadyRegistered = "already_registered"
	CodeEventFull         = "event_full"
	CodeStorage           = "storage_error"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

func Security(message string) *Error {
	return New(KindSecurity, CodeInvalidNonce, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Validation(message string) *Error {
	return New(KindValidation, CodeInvalidRequest, message)
}

func BusinessRule(code, message string) *Error {
	return New(KindBusinessRule, code, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func Storage(message string, err error) *Error {
	return Wrap(KindStorage, CodeStorage, message, err)
}

// KindOf reports the kind of err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As is errors.As specialised for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
