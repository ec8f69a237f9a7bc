package appointments

import (
	"context"
	"errors"
	"strings"

	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/store"
)

// Caller is the identity an upstream resolver attached to the request.
type Caller struct {
	Email string
}

// Guard decides who may act on an appointment. A foreign appointment is
// reported as unauthorized, never as missing. Account lookups happen before
// any row lock is taken; the ownership checks are pure.
type Guard struct {
	accounts store.AccountStore
}

func NewGuard(accounts store.AccountStore) Guard {
	return Guard{accounts: accounts}
}

func callerEmail(c Caller) (string, error) {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return "", unauthorized("Caller identity is required")
	}
	return email, nil
}

func (g Guard) Requester(ctx context.Context, c Caller) (domain.Requester, error) {
	email, err := callerEmail(c)
	if err != nil {
		return domain.Requester{}, err
	}
	r, err := g.accounts.FindRequesterByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Requester{}, notFound("Requester not found")
	}
	return r, err
}

func (g Guard) Provider(ctx context.Context, c Caller) (domain.Provider, error) {
	email, err := callerEmail(c)
	if err != nil {
		return domain.Provider{}, err
	}
	p, err := g.accounts.FindProviderByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Provider{}, notFound("Provider not found")
	}
	return p, err
}

// Booker returns the caller's requester account, which must be verified.
func (g Guard) Booker(ctx context.Context, c Caller) (domain.Requester, error) {
	r, err := g.Requester(ctx, c)
	if err != nil {
		return domain.Requester{}, err
	}
	if !r.Verified {
		return domain.Requester{}, unauthorized("Requester account is not verified")
	}
	return r, nil
}

// Parties looks the caller up on both sides; either may be absent.
func (g Guard) Parties(ctx context.Context, c Caller) (Parties, error) {
	email, err := callerEmail(c)
	if err != nil {
		return Parties{}, err
	}
	var out Parties

	p, err := g.accounts.FindProviderByEmail(ctx, email)
	switch {
	case err == nil:
		out.Provider = &p
	case !errors.Is(err, store.ErrNotFound):
		return Parties{}, err
	}

	r, err := g.accounts.FindRequesterByEmail(ctx, email)
	switch {
	case err == nil:
		out.Requester = &r
	case !errors.Is(err, store.ErrNotFound):
		return Parties{}, err
	}
	return out, nil
}

type Parties struct {
	Provider  *domain.Provider
	Requester *domain.Requester
}

// CancelRole reports which side of a the caller is on. When one email is
// registered on both sides the provider role wins.
func (p Parties) CancelRole(a domain.Appointment) (domain.CancelledBy, error) {
	if p.Provider != nil && p.Provider.ID == a.ProviderID {
		return domain.CancelledByProvider, nil
	}
	if p.Requester != nil && p.Requester.ID == a.RequesterID {
		return domain.CancelledByRequester, nil
	}
	return "", unauthorized("Not authorized to cancel this appointment")
}

func CanResolve(p domain.Provider, a domain.Appointment) error {
	if p.ID != a.ProviderID {
		return unauthorized("Not authorized")
	}
	return nil
}

func CanResend(r domain.Requester, a domain.Appointment) error {
	if r.ID != a.RequesterID {
		return unauthorized("Not authorized")
	}
	return nil
}
