package appointments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bookingdesk/backend/internal/availability"
	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/notify"
	"bookingdesk/backend/internal/otp"
	"bookingdesk/backend/internal/store"
)

const DefaultCancelReason = "No reason provided"

type Options struct {
	Finder          availability.Finder
	OTP             *otp.Lifecycle
	Notifier        notify.Dispatcher
	Logger          *slog.Logger
	Tracer          trace.Tracer
	Now             func() time.Time
	DefaultDuration int
}

type Service struct {
	bookings store.BookingStore
	accounts store.AccountStore
	guard    Guard
	finder   availability.Finder
	otp      *otp.Lifecycle
	notifier notify.Dispatcher
	log      *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	duration int
}

func NewService(bookings store.BookingStore, accounts store.AccountStore, opts Options) *Service {
	s := &Service{
		bookings: bookings,
		accounts: accounts,
		guard:    NewGuard(accounts),
		finder:   opts.Finder,
		otp:      opts.OTP,
		notifier: opts.Notifier,
		log:      opts.Logger,
		tracer:   opts.Tracer,
		now:      opts.Now,
		duration: opts.DefaultDuration,
	}
	if s.finder.HorizonDays <= 0 {
		s.finder = availability.NewFinder(availability.DefaultHorizonDays, s.finder.Location)
	}
	if s.otp == nil {
		s.otp = otp.NewLifecycle(otp.DefaultPolicy(), nil)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With(slog.String("component", "service.appointments"))
	if s.notifier == nil {
		s.notifier = notify.NewLogDispatcher(s.log)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("bookingdesk/service/appointments")
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.duration <= 0 {
		s.duration = domain.DefaultDurationMinutes
	}
	return s
}

func (s *Service) location() *time.Location {
	if s.finder.Location == nil {
		return time.UTC
	}
	return s.finder.Location
}

type CreateInput struct {
	ProviderID string
	// Date is optional, yyyy-MM-dd. Without it the next open date is searched.
	Date            string
	Time            string
	DurationMinutes *int
	Message         string
}

type CreateData struct {
	Appointment AppointmentSummary `json:"appointment"`
	OTPSent     bool               `json:"otpSent"`
}

type createRequest struct {
	providerID uuid.UUID
	date       *time.Time
	tod        domain.TimeOfDay
	duration   int
	message    string
}

func (s *Service) parseCreate(in CreateInput) (createRequest, error) {
	var req createRequest

	rawID := strings.TrimSpace(in.ProviderID)
	if rawID == "" {
		return req, validationError("providerId is required")
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return req, validationError("invalid providerId")
	}
	req.providerID = id

	rawTime := strings.TrimSpace(in.Time)
	if rawTime == "" {
		return req, validationError("time is required (HH:mm)")
	}
	tod, err := domain.ParseTimeOfDay(rawTime)
	if err != nil {
		return req, validationError("invalid time format, expected HH:mm")
	}
	req.tod = tod

	if rawDate := strings.TrimSpace(in.Date); rawDate != "" {
		d, err := time.ParseInLocation(time.DateOnly, rawDate, s.location())
		if err != nil {
			return req, validationError("invalid date format, expected yyyy-MM-dd")
		}
		req.date = &d
	}

	req.duration = s.duration
	if in.DurationMinutes != nil {
		if *in.DurationMinutes <= 0 {
			return req, validationError("durationMinutes must be positive")
		}
		req.duration = *in.DurationMinutes
	}

	req.message = strings.TrimSpace(in.Message)
	return req, nil
}

// Create books a slot for the calling requester and issues its first OTP.
// The appointment is committed before delivery is attempted; a delivery
// failure is reported as otpSent=false.
func (s *Service) Create(ctx context.Context, caller Caller, in CreateInput) Result {
	ctx, span := s.tracer.Start(ctx, "appointments.Create")
	defer span.End()

	req, err := s.parseCreate(in)
	if err != nil {
		return s.fail(ctx, span, "create", err)
	}
	span.SetAttributes(attribute.String("provider_id", req.providerID.String()))

	requester, err := s.guard.Booker(ctx, caller)
	if err != nil {
		return s.fail(ctx, span, "create", err)
	}
	provider, err := s.accounts.FindProvider(ctx, req.providerID)
	if errors.Is(err, store.ErrNotFound) {
		err = notFound("Provider not found")
	}
	if err != nil {
		return s.fail(ctx, span, "create", err)
	}

	now := s.now()
	appt := domain.Appointment{
		ProviderID:      provider.ID,
		RequesterID:     requester.ID,
		DurationMinutes: req.duration,
		Status:          domain.StatusPending,
		Message:         req.message,
	}
	// Hashing is slow; do it before the provider lock is taken.
	code, err := s.otp.Issue(&appt, now)
	if err != nil {
		return s.fail(ctx, span, "create", err)
	}

	var created domain.Appointment
	err = s.bookings.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.BookingTx) error {
		at, err := s.finder.Find(ctx, tx, availability.Request{
			Provider: provider,
			Time:     req.tod,
			Date:     req.date,
			Now:      now,
		})
		if err != nil {
			return err
		}
		appt.ScheduledAt = at
		created, err = tx.InsertAppointment(ctx, appt)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, "create", err)
	}

	log := s.log.With(
		slog.String("appointment_id", created.ID.String()),
		slog.String("provider_id", provider.ID.String()),
		slog.String("requester_id", requester.ID.String()),
	)
	log.InfoContext(ctx, "appointment created", slog.Time("scheduled_at", created.ScheduledAt))
	span.SetAttributes(attribute.String("appointment_id", created.ID.String()))

	sent := s.dispatch(ctx, log, otpIssuedMessage(requester, provider, created, code, s.otp.Policy().TTL, s.location()))
	data := CreateData{
		Appointment: summarize(created, &provider, &requester),
		OTPSent:     sent,
	}
	if !sent {
		return Success("Appointment created but the OTP could not be delivered; request a resend", data)
	}
	return Success("Appointment created and OTP sent to requester", data)
}

type ResendData struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	OTPSent       bool      `json:"otpSent"`
}

// ResendOTP replaces the code of a pending appointment once the cooldown has
// elapsed. Delivery failure does not undo the new code.
func (s *Service) ResendOTP(ctx context.Context, caller Caller, appointmentID uuid.UUID) Result {
	ctx, span := s.tracer.Start(ctx, "appointments.ResendOTP", trace.WithAttributes(
		attribute.String("appointment_id", appointmentID.String()),
	))
	defer span.End()

	requester, err := s.guard.Requester(ctx, caller)
	if err != nil {
		return s.fail(ctx, span, "resend_otp", err)
	}

	now := s.now()
	var (
		appt domain.Appointment
		code string
	)
	err = s.bookings.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.FindAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := CanResend(requester, a); err != nil {
			return err
		}
		if a.Status != domain.StatusPending {
			return stateError("Only pending appointments can receive OTP")
		}
		code, err = s.otp.Reissue(&a, now)
		if err != nil {
			return err
		}
		appt, err = tx.UpdateAppointment(ctx, a)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, "resend_otp", err)
	}

	log := s.log.With(slog.String("appointment_id", appt.ID.String()), slog.String("requester_id", requester.ID.String()))
	log.InfoContext(ctx, "otp reissued")

	var provider domain.Provider
	if p, err := s.accounts.FindProvider(ctx, appt.ProviderID); err == nil {
		provider = p
	} else {
		log.WarnContext(ctx, "provider lookup for resend notice failed", slog.Any("err", err))
	}

	sent := s.dispatch(ctx, log, otpResentMessage(requester, provider, appt, code, s.location()))
	data := ResendData{AppointmentID: appt.ID, OTPSent: sent}
	if !sent {
		return Success("OTP regenerated but could not be delivered", data)
	}
	return Success("OTP resent", data)
}

type AppointmentData struct {
	Appointment AppointmentSummary `json:"appointment"`
}

// Resolve confirms a pending appointment with the code held by the
// requester. The row stays locked for the whole check-verify-write sequence.
// Wrong codes and lockouts are committed even though an error is returned.
func (s *Service) Resolve(ctx context.Context, caller Caller, appointmentID uuid.UUID, code string) Result {
	ctx, span := s.tracer.Start(ctx, "appointments.Resolve", trace.WithAttributes(
		attribute.String("appointment_id", appointmentID.String()),
	))
	defer span.End()

	code = strings.TrimSpace(code)
	if code == "" {
		return s.fail(ctx, span, "resolve", validationError("otp is required"))
	}

	provider, err := s.guard.Provider(ctx, caller)
	if err != nil {
		return s.fail(ctx, span, "resolve", err)
	}

	now := s.now()
	var (
		appt      domain.Appointment
		verifyErr error
	)
	err = s.bookings.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.FindAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		if err := CanResolve(provider, a); err != nil {
			return err
		}
		if a.Status != domain.StatusPending {
			return stateError("Appointment not in pending state")
		}

		switch err := s.otp.Verify(&a, code, now); {
		case err == nil:
		case errors.Is(err, otp.ErrExpired):
			verifyErr = err
			return nil
		case errors.Is(err, otp.ErrWrongCode), errors.Is(err, otp.ErrLocked):
			verifyErr = err
			appt, err = tx.UpdateAppointment(ctx, a)
			return err
		default:
			return err
		}

		if err := a.Resolve(provider.ID, now); err != nil {
			return err
		}
		appt, err = tx.UpdateAppointment(ctx, a)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, "resolve", err)
	}

	log := s.log.With(slog.String("appointment_id", appointmentID.String()), slog.String("provider_id", provider.ID.String()))
	if verifyErr != nil {
		if appt.Status == domain.StatusOTPLocked {
			log.WarnContext(ctx, "appointment locked after otp attempts", slog.Int("attempts", appt.OTPAttempts))
		}
		return s.fail(ctx, span, "resolve", verifyErr)
	}
	log.InfoContext(ctx, "appointment resolved")

	requester, err := s.accounts.FindRequester(ctx, appt.RequesterID)
	if err != nil {
		log.WarnContext(ctx, "requester lookup for completion notice failed", slog.Any("err", err))
		return Success("Appointment resolved successfully", AppointmentData{Appointment: summarize(appt, &provider, nil)})
	}
	s.dispatch(ctx, log, completedMessage(requester, provider, appt, s.location()))
	return Success("Appointment resolved successfully", AppointmentData{Appointment: summarize(appt, &provider, &requester)})
}

// Cancel lets either party withdraw a pending appointment and notifies the
// other one.
func (s *Service) Cancel(ctx context.Context, caller Caller, appointmentID uuid.UUID, reason string) Result {
	ctx, span := s.tracer.Start(ctx, "appointments.Cancel", trace.WithAttributes(
		attribute.String("appointment_id", appointmentID.String()),
	))
	defer span.End()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}

	parties, err := s.guard.Parties(ctx, caller)
	if err != nil {
		return s.fail(ctx, span, "cancel", err)
	}

	var (
		appt domain.Appointment
		by   domain.CancelledBy
	)
	err = s.bookings.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		a, err := tx.FindAppointmentForUpdate(ctx, appointmentID)
		if err != nil {
			return err
		}
		by, err = parties.CancelRole(a)
		if err != nil {
			return err
		}
		if err := a.Cancel(by, reason); err != nil {
			return stateError("Only pending appointments can be cancelled")
		}
		appt, err = tx.UpdateAppointment(ctx, a)
		return err
	})
	if err != nil {
		return s.fail(ctx, span, "cancel", err)
	}

	log := s.log.With(slog.String("appointment_id", appt.ID.String()), slog.String("cancelled_by", string(by)))
	log.InfoContext(ctx, "appointment cancelled")

	var (
		provider  *domain.Provider
		requester *domain.Requester
	)
	if p, err := s.accounts.FindProvider(ctx, appt.ProviderID); err == nil {
		provider = &p
	} else {
		log.WarnContext(ctx, "provider lookup for cancel notice failed", slog.Any("err", err))
	}
	if r, err := s.accounts.FindRequester(ctx, appt.RequesterID); err == nil {
		requester = &r
	} else {
		log.WarnContext(ctx, "requester lookup for cancel notice failed", slog.Any("err", err))
	}

	if provider != nil && requester != nil {
		s.dispatch(ctx, log, cancelledMessage(by, *requester, *provider, appt))
	}
	return Success("Appointment cancelled", AppointmentData{Appointment: summarize(appt, provider, requester)})
}

// dispatch sends msg and reports whether it was accepted. Failures are
// logged without the body.
func (s *Service) dispatch(ctx context.Context, log *slog.Logger, msg notify.Message) bool {
	if err := s.notifier.Dispatch(ctx, msg); err != nil {
		log.WarnContext(ctx, "notification dispatch failed", slog.String("subject", msg.Subject), slog.Any("err", err))
		return false
	}
	return true
}

func (s *Service) fail(ctx context.Context, span trace.Span, op string, err error) Result {
	r := Failure(err)
	kind := KindOf(r)
	if kind == "" {
		s.log.ErrorContext(ctx, "appointment operation failed", slog.String("op", op), slog.Any("err", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
		return r
	}
	span.SetAttributes(attribute.String("error.kind", string(kind)))
	s.log.DebugContext(ctx, "appointment operation rejected", slog.String("op", op), slog.String("kind", string(kind)), slog.String("message", r.Message))
	return r
}
