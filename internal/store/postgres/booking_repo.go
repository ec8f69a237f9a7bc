package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

var _ store.BookingStore = (*BookingRepo)(nil)

type bookingTx struct {
	tx bun.IDB
}

func (r *BookingRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *BookingRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

// lockProviderCalendar serializes creates for one provider until the
// transaction ends.
func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (r *BookingRepo) FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return bookingTx{tx: r.db}.FindAppointment(ctx, id)
}

func (r *BookingRepo) ListAppointments(ctx context.Context, f store.ListFilter) (store.Page[domain.Appointment], error) {
	page, size := store.NormalizePage(f.Page, f.Size)
	out := store.Page[domain.Appointment]{Page: page, Size: size}

	var rows []domain.Appointment
	q := r.db.NewSelect().Model(&rows)

	switch f.Party {
	case store.PartyRequester:
		q = q.Where("requester_id = ?", f.PartyID)
	case store.PartyProvider:
		q = q.Where("provider_id = ?", f.PartyID)
	default:
		return out, fmt.Errorf("list appointments: unknown party %q", f.Party)
	}

	switch f.View {
	case store.ViewUpcoming:
		q = q.Where("status = ?", domain.StatusPending).
			Where("scheduled_at > ?", f.Now.UTC()).
			OrderExpr("scheduled_at ASC, id ASC")
	case store.ViewHistory:
		q = q.Where("status IN (?)", bun.In(domain.HistoryStatuses)).
			OrderExpr("scheduled_at DESC, id DESC")
	default:
		return out, fmt.Errorf("list appointments: unknown view %q", f.View)
	}

	total, err := q.Limit(size).Offset(page * size).ScanAndCount(ctx)
	if err != nil {
		return out, err
	}
	out.Items = rows
	out.Total = total
	return out, nil
}

func (r bookingTx) FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.tx.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return m, nil
}

func (r bookingTx) FindAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var m domain.Appointment
	err := r.tx.NewSelect().
		Model(&m).
		Where("id = ?", id).
		For("UPDATE").
		Scan(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return m, nil
}

func (r bookingTx) HasPendingAt(ctx context.Context, providerID uuid.UUID, scheduledAt time.Time) (bool, error) {
	return r.tx.NewSelect().
		Model((*domain.Appointment)(nil)).
		Where("provider_id = ?", providerID).
		Where("scheduled_at = ?", scheduledAt.UTC()).
		Where("status = ?", domain.StatusPending).
		Exists(ctx)
}

// FindClosedDate matches the calendar date of day in day's own location.
func (r bookingTx) FindClosedDate(ctx context.Context, providerID uuid.UUID, day time.Time) (*domain.ClosedDate, error) {
	var rows []domain.ClosedDate
	err := r.tx.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("closed_on = ?::date", day.Format(time.DateOnly)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r bookingTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	m.ScheduledAt = appt.ScheduledAt.UTC()
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, mapError(err)
	}
	return m, nil
}

func (r bookingTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column(
			"status", "otp_hash", "otp_expiry", "otp_attempts", "max_otp_attempts",
			"cancelled_by", "cancel_reason", "resolved_by", "resolved_at", "updated_at",
		).
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}
