package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookingdesk/backend/internal/domain"
)

// Party selects which side of the appointment a listing is scoped to.
type Party string

const (
	PartyRequester Party = "requester"
	PartyProvider  Party = "provider"
)

type View string

const (
	// ViewUpcoming is PENDING with scheduled_at after now, ascending.
	ViewUpcoming View = "upcoming"
	// ViewHistory is any terminal status, descending.
	ViewHistory View = "history"
)

type ListFilter struct {
	Party   Party
	PartyID uuid.UUID
	View    View
	Now     time.Time
	Page    int
	Size    int
}

type BookingStore interface {
	// InProviderTransaction runs fn in a transaction holding the provider's
	// booking lock, so slot checks and the insert are atomic per provider.
	InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx BookingTx) error) error
	// InTransaction runs fn in a plain transaction.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error

	FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, f ListFilter) (Page[domain.Appointment], error)
}

type BookingTx interface {
	FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	// FindAppointmentForUpdate locks the row until the transaction ends.
	FindAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	HasPendingAt(ctx context.Context, providerID uuid.UUID, scheduledAt time.Time) (bool, error)
	FindClosedDate(ctx context.Context, providerID uuid.UUID, day time.Time) (*domain.ClosedDate, error)
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
}
