package appointments

import (
	"time"

	"github.com/google/uuid"

	"bookingdesk/backend/internal/domain"
)

// AppointmentSummary is the only appointment shape that leaves the engine.
// OTP material is never copied into it.
type AppointmentSummary struct {
	ID              uuid.UUID          `json:"id"`
	ScheduledAt     time.Time          `json:"scheduledAt"`
	DurationMinutes int                `json:"durationMinutes"`
	Status          domain.Status      `json:"status"`
	Message         string             `json:"message,omitempty"`
	CancelledBy     domain.CancelledBy `json:"cancelledBy,omitempty"`
	CancelReason    string             `json:"cancelReason,omitempty"`
	ResolvedBy      *uuid.UUID         `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time         `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`

	Provider  *ProviderSummary  `json:"provider,omitempty"`
	Requester *RequesterSummary `json:"requester,omitempty"`
}

type ProviderSummary struct {
	ID                 uuid.UUID `json:"id"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	PhoneNumber        string    `json:"phoneNumber,omitempty"`
	Specialization     string    `json:"specialization,omitempty"`
	ClinicName         string    `json:"clinicName,omitempty"`
	ClinicAddress      string    `json:"clinicAddress,omitempty"`
	City               string    `json:"city,omitempty"`
	State              string    `json:"state,omitempty"`
	About              string    `json:"about,omitempty"`
	RegistrationNumber string    `json:"registrationNumber,omitempty"`
	ProfileImageURL    string    `json:"profileImageUrl,omitempty"`
	ClinicOpenTime     string    `json:"clinicOpenTime,omitempty"`
	ClinicCloseTime    string    `json:"clinicCloseTime,omitempty"`
	WorkingDays        []string  `json:"workingDays,omitempty"`
	Verified           bool      `json:"verified"`
}

type RequesterSummary struct {
	ID        uuid.UUID `json:"id"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email"`
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func summarize(a domain.Appointment, p *domain.Provider, r *domain.Requester) AppointmentSummary {
	out := AppointmentSummary{
		ID:              a.ID,
		ScheduledAt:     a.ScheduledAt,
		DurationMinutes: a.DurationMinutes,
		Status:          a.Status,
		Message:         a.Message,
		CancelledBy:     a.CancelledBy,
		CancelReason:    a.CancelReason,
		ResolvedBy:      a.ResolvedBy,
		ResolvedAt:      a.ResolvedAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if p != nil {
		ps := summarizeProvider(*p)
		out.Provider = &ps
	}
	if r != nil {
		rs := summarizeRequester(*r)
		out.Requester = &rs
	}
	return out
}

func summarizeProvider(p domain.Provider) ProviderSummary {
	s := ProviderSummary{
		ID:                 p.ID,
		FullName:           p.FullName,
		Email:              p.Email,
		PhoneNumber:        p.PhoneNumber,
		Specialization:     p.Specialization,
		ClinicName:         p.ClinicName,
		ClinicAddress:      p.ClinicAddress,
		City:               p.City,
		State:              p.State,
		About:              p.About,
		RegistrationNumber: p.RegistrationNumber,
		ProfileImageURL:    p.ProfileImageURL,
		Verified:           p.Verified,
	}
	if p.ClinicOpenTime != nil {
		s.ClinicOpenTime = p.ClinicOpenTime.String()
	}
	if p.ClinicCloseTime != nil {
		s.ClinicCloseTime = p.ClinicCloseTime.String()
	}
	if len(p.WorkingDays) > 0 {
		s.WorkingDays = append([]string(nil), p.WorkingDays...)
	}
	return s
}

func summarizeRequester(r domain.Requester) RequesterSummary {
	return RequesterSummary{
		ID:        r.ID,
		UserName:  r.UserName,
		Email:     r.Email,
		City:      r.City,
		State:     r.State,
		Verified:  r.Verified,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
