package ticket

import "errors"

// Kind is the machine-readable failure category carried on the wire in
// the "error" field of a failure response.  Issuance, redemption and
// client-local failures each have their own kinds.
type Kind string

const (
	// issuance-time
	KindUnauthorized        Kind = "Unauthorized"
	KindEventNotFound       Kind = "EventNotFound"
	KindCheckInWindowClosed Kind = "CheckInWindowClosed"

	// redemption-time
	KindInvalidToken Kind = "InvalidToken"
	KindExpired      Kind = "Expired"
	KindAlreadyUsed  Kind = "AlreadyUsed"

	// client-local
	KindCameraUnavailable Kind = "CameraUnavailable"
	KindNetworkError      Kind = "NetworkError"
)

// Error is a failure with a Kind and a human-readable message.  Two
// Errors match under errors.Is when their kinds are equal, so callers
// can write errors.Is(err, ticket.ErrExpired) regardless of the message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.  Their messages are the default
// user-facing text for each kind.
var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "caller is not allowed to request this ticket"}
	ErrEventNotFound       = &Error{Kind: KindEventNotFound, Message: "event not found"}
	ErrCheckInWindowClosed = &Error{Kind: KindCheckInWindowClosed, Message: "check-in is not open for this event"}
	ErrInvalidToken        = &Error{Kind: KindInvalidToken, Message: "ticket is not valid"}
	ErrExpired             = &Error{Kind: KindExpired, Message: "ticket has expired"}
	ErrAlreadyUsed         = &Error{Kind: KindAlreadyUsed, Message: "ticket has already been used"}
	ErrCameraUnavailable   = &Error{Kind: KindCameraUnavailable, Message: "camera is not available"}
	ErrNetwork             = &Error{Kind: KindNetworkError, Message: "network error"}
)

// Wrap returns a new error of the given kind that wraps cause.  The
// message is taken from cause when it is non-nil.
func Wrap(kind Kind, cause error) *Error {
	e := &Error{Kind: kind, Err: cause}
	if cause != nil {
		e.Message = cause.Error()
	}
	return e
}

// KindOf extracts the Kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the human-readable message of err.  For errors
// without a Kind the plain error text is returned.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
