package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation         Kind = "VALIDATION_ERROR"
	KindNetwork            Kind = "NETWORK_ERROR"
	KindBackendRejected    Kind = "BACKEND_REJECTED"
	KindAlreadyConsumed    Kind = "SESSION_EXPIRED_OR_ALREADY_CONSUMED"
	KindAuthRequired       Kind = "AUTH_REQUIRED"
	KindMissingCorrelation Kind = "MISSING_CORRELATION_ID"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// Recovery is the single action a failure view offers
type Recovery string

const (
	RecoveryRetry Recovery = "retry"
	RecoveryBack  Recovery = "back"
)

type Metadata struct {
	HTTPStatus    int
	Recovery      Recovery
	PublicMessage string
}

var metadataByKind = map[Kind]Metadata{
	KindValidation: {
		HTTPStatus:    http.StatusBadRequest,
		Recovery:      RecoveryBack,
		PublicMessage: "Some checkout details are missing or invalid.",
	},
	KindNetwork: {
		HTTPStatus:    http.StatusBadGateway,
		Recovery:      RecoveryRetry,
		PublicMessage: "We could not reach the payment service. Please try again.",
	},
	KindBackendRejected: {
		HTTPStatus:    http.StatusBadGateway,
		Recovery:      RecoveryRetry,
		PublicMessage: "The payment was not completed.",
	},
	KindAlreadyConsumed: {
		HTTPStatus:    http.StatusConflict,
		Recovery:      RecoveryBack,
		PublicMessage: "This payment has already been checked. If it went through, your package is active in your account.",
	},
	KindAuthRequired: {
		HTTPStatus:    http.StatusUnauthorized,
		Recovery:      RecoveryBack,
		PublicMessage: "Please sign in to continue.",
	},
	KindMissingCorrelation: {
		HTTPStatus:    http.StatusBadRequest,
		Recovery:      RecoveryBack,
		PublicMessage: "No payment reference was found in the return link.",
	},
	KindInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Recovery:      RecoveryRetry,
		PublicMessage: "Something went wrong.",
	},
}

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

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return New(kind, message)
	}
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
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// KindOf classifies any error; untyped errors are internal
func KindOf(err error) Kind {
	if typed := As(err); typed != nil {
		return typed.kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
