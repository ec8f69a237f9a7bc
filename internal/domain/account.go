package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Requester is the account that books appointments. Registration and profile
// editing live outside the engine; it only reads these rows.
type Requester struct {
	bun.BaseModel `bun:"table:requesters"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	UserName     string    `bun:"user_name,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	City         string    `bun:"city"`
	State        string    `bun:"state"`
	Verified     bool      `bun:"verified,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func (r *Requester) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampAccount(query, &r.ID, &r.CreatedAt, &r.UpdatedAt)
	return nil
}

// Provider carries the availability profile the slot finder reads.
type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID                 uuid.UUID  `bun:"id,pk,type:uuid"`
	FullName           string     `bun:"full_name,notnull"`
	Email              string     `bun:"email,notnull,unique"`
	PasswordHash       string     `bun:"password_hash,notnull"`
	Verified           bool       `bun:"verified,notnull"`
	PhoneNumber        string     `bun:"phone_number"`
	Specialization     string     `bun:"specialization"`
	ClinicName         string     `bun:"clinic_name"`
	ClinicAddress      string     `bun:"clinic_address"`
	City               string     `bun:"city"`
	State              string     `bun:"state"`
	About              string     `bun:"about"`
	RegistrationNumber string     `bun:"registration_number"`
	ProfileImageURL    string     `bun:"profile_image_url"`
	ClinicOpenTime     *TimeOfDay `bun:"clinic_open_time,type:time"`
	ClinicCloseTime    *TimeOfDay `bun:"clinic_close_time,type:time"`
	WorkingDays        []string   `bun:"working_days,array"`
	CreatedAt          time.Time  `bun:"created_at,notnull"`
	UpdatedAt          time.Time  `bun:"updated_at,notnull"`
}

func (p *Provider) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	stampAccount(query, &p.ID, &p.CreatedAt, &p.UpdatedAt)
	return nil
}

// WorksOn reports whether the weekday is one of the configured working days.
// Days are stored as upper-case English names ("MONDAY").
func (p *Provider) WorksOn(day time.Weekday) bool {
	name := strings.ToUpper(day.String())
	for _, d := range p.WorkingDays {
		if strings.ToUpper(strings.TrimSpace(d)) == name {
			return true
		}
	}
	return false
}

// OpenAt reports whether t falls in [open, close). A provider without both
// bounds configured is never open.
func (p *Provider) OpenAt(t TimeOfDay) bool {
	if p.ClinicOpenTime == nil || p.ClinicCloseTime == nil {
		return false
	}
	return !t.Before(*p.ClinicOpenTime) && t.Before(*p.ClinicCloseTime)
}

type ClosedDate struct {
	bun.BaseModel `bun:"table:provider_closed_dates"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID uuid.UUID `bun:"provider_id,notnull,type:uuid"`
	ClosedOn   time.Time `bun:"closed_on,notnull,type:date"`
	Reason     string    `bun:"reason"`
}

func stampAccount(query bun.Query, id *uuid.UUID, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if *id == uuid.Nil {
			if v, err := uuid.NewV7(); err == nil {
				*id = v
			}
		}
		if createdAt.IsZero() {
			*createdAt = now
		}
		if updatedAt.IsZero() {
			*updatedAt = now
		}
	case *bun.UpdateQuery:
		*updatedAt = now
	}
}
