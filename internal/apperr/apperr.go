// Package apperr defines the error taxonomy shared by the authorization,
// mutation and HTTP layers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind categorizes an application error.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindNotOwner
	KindInsufficientRole
	KindExecutorFieldRestricted
	KindUnknownExecutor
	KindUnknownEntity
	KindTokenExpired
	KindTokenInvalid
	KindInvalid
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "Unauthenticated"
	case KindNotOwner:
		return "NotOwner"
	case KindInsufficientRole:
		return "InsufficientRole"
	case KindExecutorFieldRestricted:
		return "ExecutorFieldRestricted"
	case KindUnknownExecutor:
		return "UnknownExecutor"
	case KindUnknownEntity:
		return "UnknownEntity"
	case KindTokenExpired:
		return "TokenExpired"
	case KindTokenInvalid:
		return "TokenInvalid"
	case KindInvalid:
		return "Invalid"
	case KindConflict:
		return "Conflict"
	default:
		return "Unknown"
	}
}

// Authorization reports whether k is a caller error produced by the
// authorization layer. These are never retried.
func (k Kind) Authorization() bool {
	switch k {
	case KindUnauthenticated, KindNotOwner, KindInsufficientRole, KindExecutorFieldRestricted:
		return true
	}
	return false
}

// Error is a categorized application error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// sentinel errors for errors.Is checks
var (
	ErrUnauthenticated         = &Error{Kind: KindUnauthenticated}
	ErrNotOwner                = &Error{Kind: KindNotOwner}
	ErrInsufficientRole        = &Error{Kind: KindInsufficientRole}
	ErrExecutorFieldRestricted = &Error{Kind: KindExecutorFieldRestricted}
	ErrUnknownExecutor         = &Error{Kind: KindUnknownExecutor}
	ErrUnknownEntity           = &Error{Kind: KindUnknownEntity}
	ErrTokenExpired            = &Error{Kind: KindTokenExpired}
	ErrTokenInvalid            = &Error{Kind: KindTokenInvalid}
	ErrInvalid                 = &Error{Kind: KindInvalid}
	ErrConflict                = &Error{Kind: KindConflict}
)

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// UnknownEntity reports a missing resource, naming its id.
func UnknownEntity(entity string, id int64) *Error {
	return New(KindUnknownEntity, "There is no %s with id: %d", entity, id)
}

// UnknownExecutor reports an executor id that does not resolve to a user.
func UnknownExecutor(id int64) *Error {
	return New(KindUnknownExecutor, "There is no User with executorId: %d", id)
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the message of the first *Error in err's chain without
// its kind prefix, or err.Error().
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// Body is the JSON shape of every error response.
type Body struct {
	Error      string `json:"error"`
	Reason     string `json:"reason"`
	TokenError string `json:"token_error,omitempty"`
}

// BodyOf builds the response body for err. Unclassified errors carry no
// detail.
func BodyOf(err error) Body {
	kind := KindOf(err)
	if kind == KindUnknown {
		return Body{Error: "internal error", Reason: kind.String()}
	}
	return Body{Error: MessageOf(err), Reason: kind.String()}
}

// HTTPStatus maps a kind to the response status code.
func HTTPStatus(k Kind) int {
	switch k {
	case KindUnauthenticated, KindTokenExpired, KindTokenInvalid:
		return http.StatusUnauthorized
	case KindNotOwner, KindInsufficientRole, KindExecutorFieldRestricted:
		return http.StatusForbidden
	case KindUnknownEntity:
		return http.StatusNotFound
	case KindUnknownExecutor, KindInvalid:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
