package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookingdesk/backend/internal/domain"
)

const DefaultHorizonDays = 30

var (
	ErrInPast         = errors.New("selected date/time is in the past")
	ErrOutsideHours   = errors.New("selected time is outside provider's clinic hours")
	ErrClosedDate     = errors.New("provider is closed on the selected date")
	ErrSlotTaken      = errors.New("selected slot already taken")
	ErrNoAvailability = errors.New("provider not available for the selected time")
)

// ClosedDateIndex answers whether a provider has closed a calendar date.
type ClosedDateIndex interface {
	FindClosedDate(ctx context.Context, providerID uuid.UUID, day time.Time) (*domain.ClosedDate, error)
}

// ConflictGuard reports an exact-start PENDING booking. Overlapping durations
// with different start times are not conflicts.
type ConflictGuard interface {
	HasPendingAt(ctx context.Context, providerID uuid.UUID, scheduledAt time.Time) (bool, error)
}

type Calendar interface {
	ClosedDateIndex
	ConflictGuard
}

// OpenOn is the working-hours policy: a configured working day and a time
// inside [open, close).
func OpenOn(p domain.Provider, day time.Time, t domain.TimeOfDay) bool {
	return p.WorksOn(day.Weekday()) && p.OpenAt(t)
}

type Request struct {
	Provider domain.Provider
	Time     domain.TimeOfDay
	// Date is the explicitly requested calendar date; nil searches forward.
	Date *time.Time
	Now  time.Time
}

type Finder struct {
	HorizonDays int
	Location    *time.Location
}

func NewFinder(horizonDays int, loc *time.Location) Finder {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return Finder{HorizonDays: horizonDays, Location: loc}
}

// Find returns the scheduled instant for the request. An explicit date is
// validated as-is; otherwise the first open, unconflicted date within the
// horizon wins and ErrNoAvailability signals exhaustion.
func (f Finder) Find(ctx context.Context, cal Calendar, req Request) (time.Time, error) {
	if req.Date != nil {
		return f.validate(ctx, cal, req)
	}
	return f.search(ctx, cal, req)
}

func (f Finder) validate(ctx context.Context, cal Calendar, req Request) (time.Time, error) {
	at := req.Time.On(*req.Date, f.loc())
	if !at.After(req.Now) {
		return time.Time{}, ErrInPast
	}
	if !req.Provider.OpenAt(req.Time) {
		return time.Time{}, ErrOutsideHours
	}

	closed, err := cal.FindClosedDate(ctx, req.Provider.ID, at)
	if err != nil {
		return time.Time{}, err
	}
	if closed != nil {
		if closed.Reason != "" {
			return time.Time{}, fmt.Errorf("%w (%s)", ErrClosedDate, closed.Reason)
		}
		return time.Time{}, ErrClosedDate
	}

	taken, err := cal.HasPendingAt(ctx, req.Provider.ID, at)
	if err != nil {
		return time.Time{}, err
	}
	if taken {
		return time.Time{}, ErrSlotTaken
	}
	return at, nil
}

func (f Finder) search(ctx context.Context, cal Calendar, req Request) (time.Time, error) {
	horizon := f.HorizonDays
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	today := req.Now.In(f.loc())

	for i := 0; i < horizon; i++ {
		day := today.AddDate(0, 0, i)
		if !OpenOn(req.Provider, day, req.Time) {
			continue
		}
		at := req.Time.On(day, f.loc())
		if !at.After(req.Now) {
			continue
		}

		closed, err := cal.FindClosedDate(ctx, req.Provider.ID, at)
		if err != nil {
			return time.Time{}, err
		}
		if closed != nil {
			continue
		}

		taken, err := cal.HasPendingAt(ctx, req.Provider.ID, at)
		if err != nil {
			return time.Time{}, err
		}
		if taken {
			continue
		}
		return at, nil
	}

	return time.Time{}, fmt.Errorf("%w in the next %d days", ErrNoAvailability, horizon)
}

func (f Finder) loc() *time.Location {
	if f.Location == nil {
		return time.UTC
	}
	return f.Location
}
