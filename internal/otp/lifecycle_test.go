package otp

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bookingdesk/backend/internal/domain"
)

var issuedAt = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func newTestLifecycle() *Lifecycle {
	return NewLifecycle(DefaultPolicy(), NewBcryptHasher(bcrypt.MinCost))
}

func issued(t *testing.T, l *Lifecycle) (*domain.Appointment, string) {
	t.Helper()
	a := &domain.Appointment{Status: domain.StatusPending}
	code, err := l.Issue(a, issuedAt)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	return a, code
}

func TestIssue(t *testing.T) {
	l := newTestLifecycle()
	a, code := issued(t, l)

	if len(code) != DefaultLength {
		t.Fatalf("len(code) = %d", len(code))
	}
	if a.OTPHash == "" || a.OTPHash == code {
		t.Fatalf("hash not stored correctly: %q", a.OTPHash)
	}
	if a.OTPExpiry == nil || !a.OTPExpiry.Equal(issuedAt.Add(DefaultTTL)) {
		t.Fatalf("expiry = %v", a.OTPExpiry)
	}
	if a.OTPAttempts != 0 || a.MaxOTPAttempts != DefaultMaxAttempts {
		t.Fatalf("attempts = %d/%d", a.OTPAttempts, a.MaxOTPAttempts)
	}
}

func TestVerifyCorrectCode(t *testing.T) {
	l := newTestLifecycle()
	a, code := issued(t, l)

	if err := l.Verify(a, code, issuedAt.Add(time.Minute)); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if a.Status != domain.StatusPending {
		t.Fatalf("Verify must not transition by itself, got %s", a.Status)
	}
}

func TestVerifyExpired(t *testing.T) {
	l := newTestLifecycle()
	a, code := issued(t, l)

	err := l.Verify(a, code, issuedAt.Add(DefaultTTL))
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want %v", err, ErrExpired)
	}
	if a.OTPAttempts != 0 || a.Status != domain.StatusPending {
		t.Fatalf("expired verify must not consume attempts: %d %s", a.OTPAttempts, a.Status)
	}
}

func TestVerifyWrongCodesLock(t *testing.T) {
	l := newTestLifecycle()
	a, code := issued(t, l)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	now := issuedAt.Add(time.Minute)

	for i := 1; i < DefaultMaxAttempts; i++ {
		err := l.Verify(a, wrong, now)
		var wce *WrongCodeError
		if !errors.As(err, &wce) || !errors.Is(err, ErrWrongCode) {
			t.Fatalf("attempt %d: err = %v, want wrong code", i, err)
		}
		if wce.Remaining != DefaultMaxAttempts-i {
			t.Fatalf("attempt %d: remaining = %d", i, wce.Remaining)
		}
		if a.OTPAttempts != i {
			t.Fatalf("attempt %d: attempts = %d", i, a.OTPAttempts)
		}
	}

	if err := l.Verify(a, wrong, now); !errors.Is(err, ErrLocked) {
		t.Fatalf("final attempt err = %v, want %v", err, ErrLocked)
	}
	if a.Status != domain.StatusOTPLocked {
		t.Fatalf("status = %s, want %s", a.Status, domain.StatusOTPLocked)
	}

	if err := l.Verify(a, code, now); !errors.Is(err, domain.ErrNotPending) {
		t.Fatalf("correct code after lock: err = %v, want %v", err, domain.ErrNotPending)
	}
}

func TestVerifyLocksWhenAttemptsAlreadyExhausted(t *testing.T) {
	l := newTestLifecycle()
	a, code := issued(t, l)
	a.OTPAttempts = a.MaxOTPAttempts

	if err := l.Verify(a, code, issuedAt.Add(time.Minute)); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want %v", err, ErrLocked)
	}
	if a.Status != domain.StatusOTPLocked {
		t.Fatalf("status = %s", a.Status)
	}
}

func TestReissue(t *testing.T) {
	l := newTestLifecycle()
	a, oldCode := issued(t, l)

	_, err := l.Reissue(a, issuedAt.Add(30*time.Second))
	var ce *CooldownError
	if !errors.As(err, &ce) || !errors.Is(err, ErrCooldown) {
		t.Fatalf("immediate resend err = %v, want cooldown", err)
	}
	if ce.RetryAfter != 90*time.Second {
		t.Fatalf("retry after = %s, want 1m30s", ce.RetryAfter)
	}

	a.OTPAttempts = 2
	later := issuedAt.Add(DefaultResendCooldown)
	newCode, err := l.Reissue(a, later)
	if err != nil {
		t.Fatalf("Reissue error: %v", err)
	}
	if a.OTPAttempts != 0 {
		t.Fatalf("attempts not reset: %d", a.OTPAttempts)
	}
	if !a.OTPExpiry.Equal(later.Add(DefaultTTL)) {
		t.Fatalf("expiry = %v", a.OTPExpiry)
	}

	if oldCode != newCode {
		if err := l.Verify(a, oldCode, later.Add(time.Second)); !errors.Is(err, ErrWrongCode) {
			t.Fatalf("old code err = %v, want %v", err, ErrWrongCode)
		}
	}
	if err := l.Verify(a, newCode, later.Add(time.Second)); err != nil {
		t.Fatalf("new code err = %v", err)
	}
}

func TestReissueRequiresPending(t *testing.T) {
	l := newTestLifecycle()
	a, _ := issued(t, l)
	a.Status = domain.StatusCancelled

	if _, err := l.Reissue(a, issuedAt.Add(time.Hour)); !errors.Is(err, domain.ErrNotPending) {
		t.Fatalf("err = %v, want %v", err, domain.ErrNotPending)
	}
}

func TestPolicyRetryAfter(t *testing.T) {
	p := DefaultPolicy()
	if got := p.RetryAfter(issuedAt, nil); got != 0 {
		t.Fatalf("nil expiry must not block, got %s", got)
	}
	expiry := issuedAt.Add(p.TTL)
	tests := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{0, 2 * time.Minute},
		{time.Minute, time.Minute},
		{2 * time.Minute, 0},
		{20 * time.Minute, 0},
	}
	for _, tt := range tests {
		if got := p.RetryAfter(issuedAt.Add(tt.elapsed), &expiry); got != tt.want {
			t.Fatalf("RetryAfter after %s = %s, want %s", tt.elapsed, got, tt.want)
		}
	}
}
