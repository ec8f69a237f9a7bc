package grpc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"bookingdesk/backend/internal/identity"
	"bookingdesk/backend/internal/service/appointments"
	"bookingdesk/backend/internal/store"
)

type AppointmentsServer struct {
	svc appointmentsService
	log *slog.Logger
}

type appointmentsService interface {
	Create(ctx context.Context, caller appointments.Caller, in appointments.CreateInput) appointments.Result
	ResendOTP(ctx context.Context, caller appointments.Caller, appointmentID uuid.UUID) appointments.Result
	Resolve(ctx context.Context, caller appointments.Caller, appointmentID uuid.UUID, code string) appointments.Result
	Cancel(ctx context.Context, caller appointments.Caller, appointmentID uuid.UUID, reason string) appointments.Result
	List(ctx context.Context, caller appointments.Caller, in appointments.ListInput) appointments.Result
}

var _ AppointmentsServiceServer = (*AppointmentsServer)(nil)

func NewAppointmentsServer(svc appointmentsService, log *slog.Logger) *AppointmentsServer {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.appointments")),
	}
}

func callerFrom(ctx context.Context) appointments.Caller {
	return appointments.Caller{Email: identity.EmailFromContext(ctx)}
}

func (s *AppointmentsServer) CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	duration, err := intField(req, "durationMinutes")
	if err != nil {
		return s.reply(ctx, log, appointments.Invalid(err.Error()))
	}

	res := s.svc.Create(ctx, callerFrom(ctx), appointments.CreateInput{
		ProviderID:      stringField(req, "providerId"),
		Date:            stringField(req, "date"),
		Time:            stringField(req, "time"),
		DurationMinutes: duration,
		Message:         stringField(req, "message"),
	})
	return s.reply(ctx, log, res)
}

func (s *AppointmentsServer) ResendOTP(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ResendOTP"))

	id, ok := appointmentID(req)
	if !ok {
		return s.reply(ctx, log, appointments.Invalid("appointmentId must be a UUID"))
	}
	log = log.With(slog.String("appointment_id", id.String()))
	return s.reply(ctx, log, s.svc.ResendOTP(ctx, callerFrom(ctx), id))
}

func (s *AppointmentsServer) ResolveAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ResolveAppointment"))

	id, ok := appointmentID(req)
	if !ok {
		return s.reply(ctx, log, appointments.Invalid("appointmentId must be a UUID"))
	}
	log = log.With(slog.String("appointment_id", id.String()))
	return s.reply(ctx, log, s.svc.Resolve(ctx, callerFrom(ctx), id, stringField(req, "otp")))
}

func (s *AppointmentsServer) CancelAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	id, ok := appointmentID(req)
	if !ok {
		return s.reply(ctx, log, appointments.Invalid("appointmentId must be a UUID"))
	}
	log = log.With(slog.String("appointment_id", id.String()))
	return s.reply(ctx, log, s.svc.Cancel(ctx, callerFrom(ctx), id, stringField(req, "reason")))
}

func (s *AppointmentsServer) ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	role := strings.ToLower(strings.TrimSpace(stringField(req, "role")))
	party, ok := appointments.PartyForRole(role)
	if !ok {
		return s.reply(ctx, log, appointments.Invalid("role must be one of user, doctor, provider"))
	}
	page, err := intField(req, "page")
	if err != nil {
		return s.reply(ctx, log, appointments.Invalid(err.Error()))
	}
	size, err := intField(req, "size")
	if err != nil {
		return s.reply(ctx, log, appointments.Invalid(err.Error()))
	}

	in := appointments.ListInput{Party: party}
	in.View = viewOf(stringField(req, "view"))
	if page != nil {
		in.Page = *page
	}
	if size != nil {
		in.Size = *size
	}
	return s.reply(ctx, log, s.svc.List(ctx, callerFrom(ctx), in))
}

func (s *AppointmentsServer) reply(ctx context.Context, log *slog.Logger, res appointments.Result) (*structpb.Struct, error) {
	code := CodeFor(res)
	switch code {
	case codes.OK:
		log.DebugContext(ctx, "rpc ok", slog.String("message", res.Message))
		out, err := toStruct(res)
		if err != nil {
			log.ErrorContext(ctx, "response encode failed", slog.Any("err", err))
			return nil, status.Error(codes.Internal, "internal error")
		}
		return out, nil
	case codes.Internal:
		log.ErrorContext(ctx, "rpc failed", slog.Any("err", res.Err))
	default:
		log.InfoContext(ctx, "rpc rejected", slog.String("code", code.String()), slog.String("message", res.Message))
	}
	return nil, errorWithEnvelope(code, res)
}

func appointmentID(req *structpb.Struct) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(stringField(req, "appointmentId")))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// viewOf defaults to the upcoming view; unknown values are rejected by the
// engine.
func viewOf(raw string) store.View {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return store.ViewUpcoming
	}
	return store.View(raw)
}
