package store

import (
	"context"

	"github.com/google/uuid"

	"bookingdesk/backend/internal/domain"
)

// AccountStore is read-only: accounts are owned by the registration and
// profile workflows.
type AccountStore interface {
	FindRequesterByEmail(ctx context.Context, email string) (domain.Requester, error)
	FindProviderByEmail(ctx context.Context, email string) (domain.Provider, error)
	FindRequester(ctx context.Context, id uuid.UUID) (domain.Requester, error)
	FindProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	FindRequesters(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Requester, error)
	FindProviders(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Provider, error)
}
