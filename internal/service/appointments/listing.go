package appointments

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/store"
)

type ListInput struct {
	Party store.Party
	View  store.View
	Page  int
	Size  int
}

type ListData struct {
	Appointments []AppointmentSummary `json:"appointments"`
	Page         int                  `json:"page"`
	Size         int                  `json:"size"`
	TotalPages   int                  `json:"totalPages"`
	Total        int                  `json:"total"`
}

func (s *Service) ListUpcoming(ctx context.Context, caller Caller, party store.Party, page, size int) Result {
	return s.List(ctx, caller, ListInput{Party: party, View: store.ViewUpcoming, Page: page, Size: size})
}

func (s *Service) ListHistory(ctx context.Context, caller Caller, party store.Party, page, size int) Result {
	return s.List(ctx, caller, ListInput{Party: party, View: store.ViewHistory, Page: page, Size: size})
}

// List pages through the caller's appointments on one side of the booking.
func (s *Service) List(ctx context.Context, caller Caller, in ListInput) Result {
	ctx, span := s.tracer.Start(ctx, "appointments.List", trace.WithAttributes(
		attribute.String("party", string(in.Party)),
		attribute.String("view", string(in.View)),
	))
	defer span.End()

	if in.View != store.ViewUpcoming && in.View != store.ViewHistory {
		return s.fail(ctx, span, "list", validationError("unknown listing view"))
	}

	var partyID uuid.UUID
	switch in.Party {
	case store.PartyRequester:
		r, err := s.guard.Requester(ctx, caller)
		if err != nil {
			return s.fail(ctx, span, "list", err)
		}
		partyID = r.ID
	case store.PartyProvider:
		p, err := s.guard.Provider(ctx, caller)
		if err != nil {
			return s.fail(ctx, span, "list", err)
		}
		partyID = p.ID
	default:
		return s.fail(ctx, span, "list", validationError("unknown listing role"))
	}

	page, size := store.NormalizePage(in.Page, in.Size)
	res, err := s.bookings.ListAppointments(ctx, store.ListFilter{
		Party:   in.Party,
		PartyID: partyID,
		View:    in.View,
		Now:     s.now(),
		Page:    page,
		Size:    size,
	})
	if err != nil {
		return s.fail(ctx, span, "list", err)
	}

	items, err := s.summarizeAll(ctx, res.Items)
	if err != nil {
		return s.fail(ctx, span, "list", err)
	}

	return Success(listMessage(in.Party, in.View), ListData{
		Appointments: items,
		Page:         res.Page,
		Size:         res.Size,
		TotalPages:   res.TotalPages(),
		Total:        res.Total,
	})
}

func (s *Service) summarizeAll(ctx context.Context, rows []domain.Appointment) ([]AppointmentSummary, error) {
	providerIDs := make([]uuid.UUID, 0, len(rows))
	requesterIDs := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]bool, 2*len(rows))
	for _, a := range rows {
		if !seen[a.ProviderID] {
			seen[a.ProviderID] = true
			providerIDs = append(providerIDs, a.ProviderID)
		}
		if !seen[a.RequesterID] {
			seen[a.RequesterID] = true
			requesterIDs = append(requesterIDs, a.RequesterID)
		}
	}

	providers, err := s.accounts.FindProviders(ctx, providerIDs)
	if err != nil {
		return nil, err
	}
	requesters, err := s.accounts.FindRequesters(ctx, requesterIDs)
	if err != nil {
		return nil, err
	}

	out := make([]AppointmentSummary, 0, len(rows))
	for _, a := range rows {
		var p *domain.Provider
		if v, ok := providers[a.ProviderID]; ok {
			p = &v
		}
		var r *domain.Requester
		if v, ok := requesters[a.RequesterID]; ok {
			r = &v
		}
		out = append(out, summarize(a, p, r))
	}
	return out, nil
}

func listMessage(party store.Party, view store.View) string {
	switch {
	case party == store.PartyProvider && view == store.ViewUpcoming:
		return "Provider upcoming appointments"
	case party == store.PartyProvider:
		return "Provider appointment history"
	case view == store.ViewUpcoming:
		return "Upcoming appointments"
	default:
		return "Appointment history"
	}
}

// PartyForRole maps a public role segment onto a listing party. "user" is the
// requester side; "doctor" and "provider" are the provider side.
func PartyForRole(role string) (store.Party, bool) {
	switch role {
	case "user", "requester":
		return store.PartyRequester, true
	case "doctor", "provider":
		return store.PartyProvider, true
	}
	return "", false
}
