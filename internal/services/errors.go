package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies an operation failure
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindAuthorization
	KindNotFound
	KindCapacity
	KindAlreadyJoined
	KindConflict
	KindConnectivity
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindCapacity:
		return "capacity"
	case KindAlreadyJoined:
		return "already_joined"
	case KindConflict:
		return "conflict"
	case KindConnectivity:
		return "connectivity"
	case KindBackend:
		return "backend"
	}
	return "unknown"
}

// Tone is how a notice should be presented
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
)

// Tone maps the kind to its presentation tone
func (k Kind) Tone() Tone {
	switch k {
	case KindAlreadyJoined:
		return ToneInfo
	case KindValidation, KindCapacity, KindUnauthenticated, KindAuthorization:
		return ToneWarning
	}
	return ToneError
}

// Error is a failure carrying a user-facing title and message
type Error struct {
	Kind    Kind
	Title   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Notice is the short title and message shown to the user
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Tone    Tone   `json:"tone"`
}

// Notice converts the error into what the user sees
func (e *Error) Notice() Notice {
	return Notice{Title: e.Title, Message: e.Message, Tone: e.Kind.Tone()}
}

// Informational reports whether the error is a neutral outcome rather than a failure
func (e *Error) Informational() bool {
	return e.Kind == KindAlreadyJoined
}

func newError(kind Kind, title, message string) *Error {
	return &Error{Kind: kind, Title: title, Message: message}
}

func validationError(title, message string) *Error {
	return newError(KindValidation, title, message)
}

// ErrSignInRequired is returned when an operation needs a signed-in user
var ErrSignInRequired = newError(KindUnauthenticated, "Sign In Required", "Please sign in to continue")

// GenericNotice is shown when a failure has no better description
var GenericNotice = Notice{Title: "Something went wrong", Message: "An unexpected error occurred. Please try again.", Tone: ToneError}

// AsError returns err as *Error, classifying anything else as a remote failure
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return remoteError(err, "Request Failed", "Could not complete the request")
}

// NoticeFor returns the user-facing notice for any error
func NoticeFor(err error) Notice {
	if err == nil {
		return GenericNotice
	}
	return AsError(err).Notice()
}

// remoteError classifies a store or transport failure. Connectivity problems get
// a fixed message; anything else passes the backend's message through.
func remoteError(err error, title, message string) *Error {
	if isConnectivity(err) {
		return &Error{
			Kind:    KindConnectivity,
			Title:   "Connection Error",
			Message: "Unable to reach the server. Check your connection",
			Err:     err,
		}
	}
	msg := message
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Message != "" {
		msg = message + ": " + pgErr.Message
	}
	return &Error{Kind: KindBackend, Title: title, Message: msg, Err: err}
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}
