package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"bookingdesk/backend/internal/domain"
)

const (
	DefaultTTL            = 15 * time.Minute
	DefaultResendCooldown = 2 * time.Minute
	DefaultMaxAttempts    = 3
)

var (
	ErrExpired   = errors.New("otp expired")
	ErrWrongCode = errors.New("invalid otp")
	ErrLocked    = errors.New("otp attempts exhausted")
	ErrCooldown  = errors.New("otp resend cooldown active")
)

type Policy struct {
	Length         int
	TTL            time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
}

func DefaultPolicy() Policy {
	return Policy{
		Length:         DefaultLength,
		TTL:            DefaultTTL,
		ResendCooldown: DefaultResendCooldown,
		MaxAttempts:    DefaultMaxAttempts,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Length <= 0 {
		p.Length = d.Length
	}
	if p.TTL <= 0 {
		p.TTL = d.TTL
	}
	if p.ResendCooldown < 0 || p.ResendCooldown > p.TTL {
		p.ResendCooldown = d.ResendCooldown
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	return p
}

// RetryAfter is how long a resend stays blocked. The previous code must be
// within the last TTL-cooldown of its life; a missing expiry never blocks.
func (p Policy) RetryAfter(now time.Time, expiry *time.Time) time.Duration {
	if expiry == nil {
		return 0
	}
	remaining := expiry.Sub(now)
	wait := remaining - (p.TTL - p.ResendCooldown)
	if wait <= 0 {
		return 0
	}
	return wait
}

// Lifecycle issues, re-issues and verifies the code attached to an appointment.
// It only mutates the appointment in memory; persisting is the caller's job.
type Lifecycle struct {
	policy Policy
	hasher Hasher
	random io.Reader
}

func NewLifecycle(policy Policy, hasher Hasher) *Lifecycle {
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	return &Lifecycle{policy: policy.withDefaults(), hasher: hasher, random: rand.Reader}
}

// WithRandom swaps the entropy source. Tests only.
func (l *Lifecycle) WithRandom(r io.Reader) *Lifecycle {
	cp := *l
	cp.random = r
	return &cp
}

func (l *Lifecycle) Policy() Policy {
	return l.policy
}

// Issue attaches a fresh code to a and returns the plaintext, which must only
// be handed to the notification request.
func (l *Lifecycle) Issue(a *domain.Appointment, now time.Time) (string, error) {
	code, err := Generate(l.random, l.policy.Length)
	if err != nil {
		return "", err
	}
	hash, err := l.hasher.Hash(code)
	if err != nil {
		return "", fmt.Errorf("otp: hash: %w", err)
	}

	expiry := now.Add(l.policy.TTL).UTC()
	a.OTPHash = hash
	a.OTPExpiry = &expiry
	a.OTPAttempts = 0
	if a.MaxOTPAttempts <= 0 {
		a.MaxOTPAttempts = l.policy.MaxAttempts
	}
	return code, nil
}

// Reissue replaces the code on a PENDING appointment once the cooldown has
// elapsed. The previous code stops verifying because its hash is overwritten.
func (l *Lifecycle) Reissue(a *domain.Appointment, now time.Time) (string, error) {
	if a.Status != domain.StatusPending {
		return "", domain.ErrNotPending
	}
	if wait := l.policy.RetryAfter(now, a.OTPExpiry); wait > 0 {
		return "", &CooldownError{RetryAfter: wait}
	}
	return l.Issue(a, now)
}

// Verify checks code against a PENDING appointment. Wrong codes consume an
// attempt and the last allowed failure locks the appointment; callers must
// persist a even when an error is returned.
func (l *Lifecycle) Verify(a *domain.Appointment, code string, now time.Time) error {
	if a.Status != domain.StatusPending {
		return domain.ErrNotPending
	}
	if a.OTPExpiry == nil || !now.Before(*a.OTPExpiry) {
		return ErrExpired
	}

	limit := a.MaxOTPAttempts
	if limit <= 0 {
		limit = l.policy.MaxAttempts
	}
	if a.OTPAttempts >= limit {
		if err := a.Lock(); err != nil {
			return err
		}
		return ErrLocked
	}

	ok, err := l.hasher.Verify(a.OTPHash, code)
	if err != nil {
		return fmt.Errorf("otp: verify: %w", err)
	}
	if ok {
		return nil
	}

	a.OTPAttempts++
	if a.OTPAttempts >= limit {
		if err := a.Lock(); err != nil {
			return err
		}
		return ErrLocked
	}
	return &WrongCodeError{Remaining: limit - a.OTPAttempts}
}

type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %s before requesting a new otp", e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Is(target error) bool { return target == ErrCooldown }

type WrongCodeError struct {
	Remaining int
}

func (e *WrongCodeError) Error() string {
	return fmt.Sprintf("invalid otp, attempts remaining: %d", e.Remaining)
}

func (e *WrongCodeError) Is(target error) bool { return target == ErrWrongCode }
