package appointments

import (
	"errors"
	"time"

	"bookingdesk/backend/internal/availability"
	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/otp"
	"bookingdesk/backend/internal/store"
)

type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindState        Kind = "state"
	KindOTP          Kind = "otp"
)

type OTPReason string

const (
	OTPExpired   OTPReason = "expired"
	OTPWrongCode OTPReason = "wrong_code"
	OTPLocked    OTPReason = "locked"
	OTPCooldown  OTPReason = "cooldown"
)

// Error is every failure the engine anticipates. Anything else reaching the
// boundary is an internal error.
type Error struct {
	Kind    Kind
	Message string

	OTPReason         OTPReason
	AttemptsRemaining int
	RetryAfter        time.Duration

	err error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.err }

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func validationError(msg string) error { return newError(KindValidation, msg) }
func notFound(msg string) error        { return newError(KindNotFound, msg) }
func unauthorized(msg string) error    { return newError(KindUnauthorized, msg) }
func stateError(msg string) error      { return newError(KindState, msg) }

// translate maps collaborator sentinels onto engine kinds and leaves
// everything else untouched.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	wrap := func(kind Kind, msg string) error {
		return &Error{Kind: kind, Message: msg, err: err}
	}

	switch {
	case errors.Is(err, availability.ErrInPast), errors.Is(err, availability.ErrOutsideHours):
		return wrap(KindValidation, capitalize(err.Error()))
	case errors.Is(err, availability.ErrClosedDate):
		return wrap(KindConflict, capitalize(err.Error()))
	case errors.Is(err, availability.ErrSlotTaken), errors.Is(err, store.ErrConflict):
		return wrap(KindConflict, "Selected slot already taken")
	case errors.Is(err, availability.ErrNoAvailability):
		return wrap(KindConflict, capitalize(err.Error()))
	case errors.Is(err, domain.ErrNotPending):
		return wrap(KindState, "Appointment not in pending state")
	case errors.Is(err, otp.ErrExpired):
		return &Error{Kind: KindOTP, Message: "OTP expired", OTPReason: OTPExpired, err: err}
	case errors.Is(err, otp.ErrLocked):
		return &Error{Kind: KindOTP, Message: "OTP attempts exhausted; appointment locked", OTPReason: OTPLocked, err: err}
	case errors.Is(err, otp.ErrWrongCode):
		remaining := 0
		var wce *otp.WrongCodeError
		if errors.As(err, &wce) {
			remaining = wce.Remaining
		}
		return &Error{Kind: KindOTP, Message: "Wrong OTP", OTPReason: OTPWrongCode, AttemptsRemaining: remaining, err: err}
	case errors.Is(err, otp.ErrCooldown):
		var retry time.Duration
		var ce *otp.CooldownError
		if errors.As(err, &ce) {
			retry = ce.RetryAfter
		}
		return &Error{Kind: KindOTP, Message: "Please wait before requesting a new OTP", OTPReason: OTPCooldown, RetryAfter: retry, err: err}
	case errors.Is(err, store.ErrNotFound):
		return wrap(KindNotFound, "Appointment not found")
	}
	return err
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
