package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/store"
)

type AccountRepo struct {
	db *bun.DB
}

func NewAccountRepo(db *bun.DB) *AccountRepo {
	return &AccountRepo{db: db}
}

var _ store.AccountStore = (*AccountRepo)(nil)

func (r *AccountRepo) FindRequesterByEmail(ctx context.Context, email string) (domain.Requester, error) {
	var m domain.Requester
	err := r.db.NewSelect().Model(&m).Where("lower(email) = lower(?)", email).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Requester{}, mapError(err)
	}
	return m, nil
}

func (r *AccountRepo) FindProviderByEmail(ctx context.Context, email string) (domain.Provider, error) {
	var m domain.Provider
	err := r.db.NewSelect().Model(&m).Where("lower(email) = lower(?)", email).Limit(1).Scan(ctx)
	if err != nil {
		return domain.Provider{}, mapError(err)
	}
	return m, nil
}

func (r *AccountRepo) FindRequester(ctx context.Context, id uuid.UUID) (domain.Requester, error) {
	var m domain.Requester
	if err := r.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Requester{}, mapError(err)
	}
	return m, nil
}

func (r *AccountRepo) FindProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	var m domain.Provider
	if err := r.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx); err != nil {
		return domain.Provider{}, mapError(err)
	}
	return m, nil
}

func (r *AccountRepo) FindRequesters(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Requester, error) {
	out := make(map[uuid.UUID]domain.Requester, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Requester
	if err := r.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *AccountRepo) FindProviders(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Provider, error) {
	out := make(map[uuid.UUID]domain.Provider, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Provider
	if err := r.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}
