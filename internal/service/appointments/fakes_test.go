package appointments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookingdesk/backend/internal/domain"
	"bookingdesk/backend/internal/notify"
	"bookingdesk/backend/internal/store"
)

// memStore serializes every transaction behind one mutex and rolls back on
// error, which is enough to stand in for row and advisory locks.
type memStore struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]domain.Appointment
	closed map[string]domain.ClosedDate

	insertFn func(ctx context.Context, appt domain.Appointment) error
	listFn   func(ctx context.Context, f store.ListFilter) (store.Page[domain.Appointment], error)
}

func newMemStore() *memStore {
	return &memStore{
		rows:   map[uuid.UUID]domain.Appointment{},
		closed: map[string]domain.ClosedDate{},
	}
}

func (m *memStore) run(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[uuid.UUID]domain.Appointment, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = v
	}
	if err := fn(ctx, memTx{m: m}); err != nil {
		m.rows = snapshot
		return err
	}
	return nil
}

func (m *memStore) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return m.run(ctx, fn)
}

func (m *memStore) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return m.run(ctx, fn)
}

func (m *memStore) FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (m *memStore) ListAppointments(ctx context.Context, f store.ListFilter) (store.Page[domain.Appointment], error) {
	if m.listFn != nil {
		return m.listFn(ctx, f)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []domain.Appointment
	for _, a := range m.rows {
		if f.Party == store.PartyRequester && a.RequesterID != f.PartyID {
			continue
		}
		if f.Party == store.PartyProvider && a.ProviderID != f.PartyID {
			continue
		}
		switch f.View {
		case store.ViewUpcoming:
			if a.Status != domain.StatusPending || !a.ScheduledAt.After(f.Now) {
				continue
			}
		case store.ViewHistory:
			if !a.Status.Terminal() {
				continue
			}
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if f.View == store.ViewHistory {
			return matched[i].ScheduledAt.After(matched[j].ScheduledAt)
		}
		return matched[i].ScheduledAt.Before(matched[j].ScheduledAt)
	})

	out := store.Page[domain.Appointment]{Page: f.Page, Size: f.Size, Total: len(matched)}
	start := f.Page * f.Size
	if start < len(matched) {
		end := start + f.Size
		if end > len(matched) {
			end = len(matched)
		}
		out.Items = matched[start:end]
	}
	return out, nil
}

type memTx struct {
	m *memStore
}

func (t memTx) FindAppointment(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.m.rows[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t memTx) FindAppointmentForUpdate(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return t.FindAppointment(ctx, id)
}

func (t memTx) HasPendingAt(ctx context.Context, providerID uuid.UUID, scheduledAt time.Time) (bool, error) {
	for _, a := range t.m.rows {
		if a.ProviderID == providerID && a.Status == domain.StatusPending && a.ScheduledAt.Equal(scheduledAt) {
			return true, nil
		}
	}
	return false, nil
}

func (t memTx) FindClosedDate(ctx context.Context, providerID uuid.UUID, day time.Time) (*domain.ClosedDate, error) {
	cd, ok := t.m.closed[providerID.String()+"/"+day.Format(time.DateOnly)]
	if !ok {
		return nil, nil
	}
	return &cd, nil
}

func (t memTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if t.m.insertFn != nil {
		if err := t.m.insertFn(ctx, appt); err != nil {
			return domain.Appointment{}, err
		}
	}
	if appt.Status == domain.StatusPending {
		if taken, _ := t.HasPendingAt(ctx, appt.ProviderID, appt.ScheduledAt); taken {
			return domain.Appointment{}, store.ErrConflict
		}
	}
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	appt.CreatedAt = time.Now().UTC()
	appt.UpdatedAt = appt.CreatedAt
	t.m.rows[appt.ID] = appt
	return appt, nil
}

func (t memTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if _, ok := t.m.rows[appt.ID]; !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	appt.UpdatedAt = time.Now().UTC()
	t.m.rows[appt.ID] = appt
	return appt, nil
}

type fakeAccounts struct {
	requesters map[uuid.UUID]domain.Requester
	providers  map[uuid.UUID]domain.Provider
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		requesters: map[uuid.UUID]domain.Requester{},
		providers:  map[uuid.UUID]domain.Provider{},
	}
}

func (f *fakeAccounts) FindRequesterByEmail(ctx context.Context, email string) (domain.Requester, error) {
	for _, r := range f.requesters {
		if strings.EqualFold(r.Email, email) {
			return r, nil
		}
	}
	return domain.Requester{}, store.ErrNotFound
}

func (f *fakeAccounts) FindProviderByEmail(ctx context.Context, email string) (domain.Provider, error) {
	for _, p := range f.providers {
		if strings.EqualFold(p.Email, email) {
			return p, nil
		}
	}
	return domain.Provider{}, store.ErrNotFound
}

func (f *fakeAccounts) FindRequester(ctx context.Context, id uuid.UUID) (domain.Requester, error) {
	r, ok := f.requesters[id]
	if !ok {
		return domain.Requester{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeAccounts) FindProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeAccounts) FindRequesters(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Requester, error) {
	out := map[uuid.UUID]domain.Requester{}
	for _, id := range ids {
		if r, ok := f.requesters[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

func (f *fakeAccounts) FindProviders(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Provider, error) {
	out := map[uuid.UUID]domain.Provider{}
	for _, id := range ids {
		if p, ok := f.providers[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	sent     []notify.Message
	failWith error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeDispatcher) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.sent...)
}

var errDeliveryDown = errors.New("smtp relay down")
