package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCancelled Status = "CANCELLED"
	StatusResolved  Status = "RESOLVED"
	StatusOTPLocked Status = "OTP_LOCKED"
)

// HistoryStatuses are the terminal statuses listed in appointment history.
var HistoryStatuses = []Status{StatusResolved, StatusCancelled, StatusOTPLocked}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusResolved || s == StatusOTPLocked
}

type CancelledBy string

const (
	CancelledByProvider  CancelledBy = "PROVIDER"
	CancelledByRequester CancelledBy = "REQUESTER"
)

const DefaultDurationMinutes = 30

// ErrNotPending is returned by every transition attempted out of a terminal status.
var ErrNotPending = errors.New("appointment is not pending")

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID   `bun:"id,pk,type:uuid"`
	ProviderID      uuid.UUID   `bun:"provider_id,notnull,type:uuid"`
	RequesterID     uuid.UUID   `bun:"requester_id,notnull,type:uuid"`
	ScheduledAt     time.Time   `bun:"scheduled_at,notnull"`
	DurationMinutes int         `bun:"duration_minutes,notnull"`
	Status          Status      `bun:"status,notnull"`
	Message         string      `bun:"message"`
	OTPHash         string      `bun:"otp_hash"`
	OTPExpiry       *time.Time  `bun:"otp_expiry"`
	OTPAttempts     int         `bun:"otp_attempts,notnull"`
	MaxOTPAttempts  int         `bun:"max_otp_attempts,notnull"`
	CancelledBy     CancelledBy `bun:"cancelled_by"`
	CancelReason    string      `bun:"cancel_reason"`
	ResolvedBy      *uuid.UUID  `bun:"resolved_by,type:uuid"`
	ResolvedAt      *time.Time  `bun:"resolved_at"`
	CreatedAt       time.Time   `bun:"created_at,notnull"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.DurationMinutes <= 0 {
			a.DurationMinutes = DefaultDurationMinutes
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// Resolve moves a pending appointment to RESOLVED and clears the OTP material.
func (a *Appointment) Resolve(providerID uuid.UUID, at time.Time) error {
	if a.Status != StatusPending {
		return ErrNotPending
	}
	a.Status = StatusResolved
	a.ResolvedBy = &providerID
	resolvedAt := at.UTC()
	a.ResolvedAt = &resolvedAt
	a.OTPHash = ""
	a.OTPExpiry = nil
	return nil
}

func (a *Appointment) Cancel(by CancelledBy, reason string) error {
	if a.Status != StatusPending {
		return ErrNotPending
	}
	a.Status = StatusCancelled
	a.CancelledBy = by
	a.CancelReason = reason
	return nil
}

// Lock is only reached from OTP verification once attempts are exhausted.
func (a *Appointment) Lock() error {
	if a.Status != StatusPending {
		return ErrNotPending
	}
	a.Status = StatusOTPLocked
	return nil
}

// AttemptsRemaining never goes below zero.
func (a *Appointment) AttemptsRemaining() int {
	if n := a.MaxOTPAttempts - a.OTPAttempts; n > 0 {
		return n
	}
	return 0
}
