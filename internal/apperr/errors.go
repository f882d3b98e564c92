package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error for the request boundary.
type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindNotFound            Kind = "NOT_FOUND"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindForbidden           Kind = "FORBIDDEN"
	KindIneligible          Kind = "INELIGIBLE"
	KindConflict            Kind = "CONFLICT"
	KindExternalService     Kind = "EXTERNAL_SERVICE_ERROR"
	KindVerificationFailure Kind = "VERIFICATION_FAILED"
	KindInternal            Kind = "INTERNAL_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByKind = map[Kind]Metadata{
	KindValidation:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
	KindNotFound:            {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", DetailsAllowed: true},
	KindUnauthorized:        {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", DetailsAllowed: true},
	KindForbidden:           {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", DetailsAllowed: false},
	KindIneligible:          {HTTPStatus: http.StatusBadRequest, PublicMessage: "we do not deliver here at the moment", DetailsAllowed: true},
	KindConflict:            {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", DetailsAllowed: true},
	KindExternalService:     {HTTPStatus: http.StatusBadGateway, PublicMessage: "upstream service failed", DetailsAllowed: true},
	KindVerificationFailure: {HTTPStatus: http.StatusBadRequest, PublicMessage: "payment verification failed", DetailsAllowed: true},
	KindInternal:            {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", DetailsAllowed: false},
}

// MetadataFor returns the response metadata for kind, falling back to Internal.
func MetadataFor(kind Kind) Metadata {
	if meta, ok := metadataByKind[kind]; ok {
		return meta
	}
	return metadataByKind[KindInternal]
}

type Error struct {
	kind    Kind
	message string
	cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{kind: kind, message: message, cause: err}
}

func (e *Error) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// As extracts the first *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// KindOf reports the kind of err; untyped errors are Internal.
func KindOf(err error) Kind {
	if typed := As(err); typed != nil {
		return typed.kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, fmt.Sprintf(format, args...))
}

func Ineligible(format string, args ...any) *Error {
	return New(KindIneligible, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, fmt.Sprintf(format, args...))
}

func ExternalService(err error, format string, args ...any) *Error {
	return Wrap(KindExternalService, err, fmt.Sprintf(format, args...))
}

func VerificationFailure(format string, args ...any) *Error {
	return New(KindVerificationFailure, fmt.Sprintf(format, args...))
}
