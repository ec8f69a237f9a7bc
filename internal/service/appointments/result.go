package appointments

import (
	"errors"
	"time"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the envelope every engine operation returns. Err is kept for
// transports to pick a status code and never serialized.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	Err error `json:"-"`
}

func (r Result) OK() bool { return r.Status == StatusSuccess }

func Success(msg string, data any) Result {
	return Result{Status: StatusSuccess, Message: msg, Data: data}
}

// OTPFailure is attached to OTP errors so clients can show remaining attempts
// or a retry hint.
type OTPFailure struct {
	Reason            OTPReason `json:"reason"`
	AttemptsRemaining *int      `json:"attemptsRemaining,omitempty"`
	RetryAfterSeconds *int      `json:"retryAfterSeconds,omitempty"`
}

// Failure converts err into an error envelope. Unanticipated errors are
// reported as "internal error" without detail.
func Failure(err error) Result {
	err = translate(err)
	var e *Error
	if !errors.As(err, &e) {
		return Result{Status: StatusError, Message: "internal error", Err: err}
	}

	r := Result{Status: StatusError, Message: e.Message, Err: e}
	if e.Kind == KindOTP {
		detail := OTPFailure{Reason: e.OTPReason}
		switch e.OTPReason {
		case OTPWrongCode:
			n := e.AttemptsRemaining
			detail.AttemptsRemaining = &n
		case OTPCooldown:
			secs := int((e.RetryAfter + time.Second - 1) / time.Second)
			detail.RetryAfterSeconds = &secs
		}
		r.Data = detail
	}
	return r
}

// KindOf returns the engine kind carried by r, or "" for success and
// internal errors.
func KindOf(r Result) Kind {
	var e *Error
	if errors.As(r.Err, &e) {
		return e.Kind
	}
	return ""
}

// Invalid is the envelope transports return for input they reject before
// reaching the engine.
func Invalid(msg string) Result {
	return Failure(validationError(msg))
}
