package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"bookingdesk/backend/internal/identity"
	"bookingdesk/backend/internal/service/appointments"
	"bookingdesk/backend/internal/store"
)

type appointmentsService interface {
	Create(ctx context.Context, caller appointments.Caller, in appointments.CreateInput) appointments.Result
	ResendOTP(ctx context.Context, caller appointments.Caller, appointmentID uuid.UUID) appointments.Result
	Resolve(ctx context.Context, caller appointments.Caller, appointmentID uuid.UUID, code string) appointments.Result
	Cancel(ctx context.Context, caller appointments.Caller, appointmentID uuid.UUID, reason string) appointments.Result
	List(ctx context.Context, caller appointments.Caller, in appointments.ListInput) appointments.Result
}

type AppointmentsHandler struct {
	svc appointmentsService
	log *slog.Logger
}

func NewAppointmentsHandler(svc appointmentsService, log *slog.Logger) *AppointmentsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentsHandler{svc: svc, log: log.With(slog.String("component", "http.appointments"))}
}

// RegisterRoutes mounts the appointment routes on g, normally /api/v1/appointments.
func (h *AppointmentsHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/create", h.create)
	g.POST("/:id/resend-otp", h.resendOTP)
	g.POST("/:id/resolve", h.resolve)
	g.PATCH("/:id/cancel", h.cancel)
	for _, role := range []string{"user", "doctor", "provider"} {
		for _, view := range []store.View{store.ViewUpcoming, store.ViewHistory} {
			g.GET("/"+role+"/"+string(view), h.list(role, view))
		}
	}
}

type createRequest struct {
	ProviderID      string `json:"providerId"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes *int   `json:"durationMinutes"`
	Message         string `json:"message"`
}

type resolveRequest struct {
	OTP string `json:"otp"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func callerOf(c echo.Context) appointments.Caller {
	return appointments.Caller{Email: identity.EmailFromContext(c.Request().Context())}
}

func (h *AppointmentsHandler) create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return h.reply(c, appointments.Invalid("invalid request body"))
	}
	return h.reply(c, h.svc.Create(c.Request().Context(), callerOf(c), appointments.CreateInput{
		ProviderID:      req.ProviderID,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Message:         req.Message,
	}))
}

func (h *AppointmentsHandler) resendOTP(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return h.reply(c, appointments.Invalid("invalid appointment id"))
	}
	return h.reply(c, h.svc.ResendOTP(c.Request().Context(), callerOf(c), id))
}

func (h *AppointmentsHandler) resolve(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return h.reply(c, appointments.Invalid("invalid appointment id"))
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return h.reply(c, appointments.Invalid("invalid request body"))
	}
	return h.reply(c, h.svc.Resolve(c.Request().Context(), callerOf(c), id, req.OTP))
}

func (h *AppointmentsHandler) cancel(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return h.reply(c, appointments.Invalid("invalid appointment id"))
	}
	// The body is optional; an empty reason falls back to the default.
	var req cancelRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return h.reply(c, appointments.Invalid("invalid request body"))
		}
	}
	return h.reply(c, h.svc.Cancel(c.Request().Context(), callerOf(c), id, req.Reason))
}

func (h *AppointmentsHandler) list(role string, view store.View) echo.HandlerFunc {
	party, _ := appointments.PartyForRole(role)
	return func(c echo.Context) error {
		page, err := queryInt(c, "page")
		if err != nil {
			return h.reply(c, appointments.Invalid("page must be an integer"))
		}
		size, err := queryInt(c, "size")
		if err != nil {
			return h.reply(c, appointments.Invalid("size must be an integer"))
		}
		return h.reply(c, h.svc.List(c.Request().Context(), callerOf(c), appointments.ListInput{
			Party: party,
			View:  view,
			Page:  page,
			Size:  size,
		}))
	}
}

func (h *AppointmentsHandler) reply(c echo.Context, res appointments.Result) error {
	code := StatusFor(res)
	log := h.log.With(slog.String("route", c.Path()))
	if id := c.Param("id"); id != "" {
		log = log.With(slog.String("appointment_id", id))
	}
	switch {
	case code >= http.StatusInternalServerError:
		log.ErrorContext(c.Request().Context(), "request failed", slog.Any("err", res.Err))
	case code >= http.StatusBadRequest:
		log.InfoContext(c.Request().Context(), "request rejected", slog.Int("status", code), slog.String("message", res.Message))
	}
	return c.JSON(code, res)
}

// StatusFor maps an engine result onto an HTTP status code.
func StatusFor(res appointments.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	switch appointments.KindOf(res) {
	case appointments.KindValidation:
		return http.StatusBadRequest
	case appointments.KindNotFound:
		return http.StatusNotFound
	case appointments.KindUnauthorized:
		return http.StatusForbidden
	case appointments.KindConflict, appointments.KindState:
		return http.StatusConflict
	case appointments.KindOTP:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func pathID(c echo.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	return id, err == nil
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
