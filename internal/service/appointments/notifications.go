package appointments

import (
	"fmt"
	"time"

	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/notify"
)

const (
	subjectOTPIssued           = "Your appointment OTP"
	subjectOTPResent           = "Your appointment OTP (resend)"
	subjectCompleted           = "Appointment completed"
	subjectCancelledByProvider = "Appointment cancelled by provider"
	subjectCancelledByReq      = "Appointment cancelled by requester"
)

func when(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04 MST")
}

func otpIssuedMessage(r domain.Requester, p domain.Provider, a domain.Appointment, code string, ttl time.Duration, loc *time.Location) notify.Message {
	return notify.Message{
		To:      r.Email,
		Subject: subjectOTPIssued,
		Body: fmt.Sprintf("Your OTP for the appointment with %s on %s is: %s. It will expire in %d minutes.",
			p.FullName, when(a.ScheduledAt, loc), code, int(ttl/time.Minute)),
	}
}

func otpResentMessage(r domain.Requester, p domain.Provider, a domain.Appointment, code string, loc *time.Location) notify.Message {
	return notify.Message{
		To:      r.Email,
		Subject: subjectOTPResent,
		Body: fmt.Sprintf("Your new OTP for the appointment with %s on %s is: %s",
			p.FullName, when(a.ScheduledAt, loc), code),
	}
}

func completedMessage(r domain.Requester, p domain.Provider, a domain.Appointment, loc *time.Location) notify.Message {
	return notify.Message{
		To:      r.Email,
		Subject: subjectCompleted,
		Body: fmt.Sprintf("Your appointment with %s on %s is marked as completed.",
			p.FullName, when(a.ScheduledAt, loc)),
	}
}

// cancelledMessage addresses the party that did not cancel.
func cancelledMessage(by domain.CancelledBy, r domain.Requester, p domain.Provider, a domain.Appointment) notify.Message {
	if by == domain.CancelledByProvider {
		return notify.Message{
			To:      r.Email,
			Subject: subjectCancelledByProvider,
			Body:    fmt.Sprintf("Your appointment with %s was cancelled.\n\nReason: %s", p.FullName, a.CancelReason),
		}
	}
	return notify.Message{
		To:      p.Email,
		Subject: subjectCancelledByReq,
		Body:    fmt.Sprintf("Appointment with %s was cancelled.\n\nReason: %s", r.UserName, a.CancelReason),
	}
}
