package scheduler

import (
	"context"
	"sync"

	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/store"
)

// mockStore is a minimal in-memory store.Store. Writes to a record listed
// in block wait until its channel is closed.
type mockStore struct {
	mu      sync.Mutex
	users   map[string]*model.User
	records map[string]*model.AttendanceRecord
	writes  []string // record IDs in write order
	block   map[string]chan struct{}

	errUpdate error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:   make(map[string]*model.User),
		records: make(map[string]*model.AttendanceRecord),
		block:   make(map[string]chan struct{}),
	}
}

func (m *mockStore) put(r *model.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.records[r.ID] = &c
}

func (m *mockStore) status(id string, dir model.Direction) model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return ""
	}
	return r.StatusFor(dir)
}

func (m *mockStore) written(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.writes {
		if w == id {
			return true
		}
	}
	return false
}

func (m *mockStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

func (m *mockStore) GetUserWithSite(_ context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *mockStore) FindOpenRecord(_ context.Context, userID, date string, dir model.Direction) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == userID && r.Date == date {
			if dir == model.CheckOut && r.Status != model.StatusValid {
				return nil, nil
			}
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockStore) CreateRecord(_ context.Context, rec *model.AttendanceRecord) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *rec
	m.records[rec.ID] = &c
	out := c
	return &out, nil
}

func (m *mockStore) UpdateRecordStatus(ctx context.Context, id string, dir model.Direction, status model.Status, upd model.RecordUpdate) error {
	m.mu.Lock()
	ch := m.block[id]
	m.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errUpdate != nil {
		return m.errUpdate
	}
	r, ok := m.records[id]
	if !ok {
		return store.ErrNotFound
	}
	r.SetStatus(dir, status)
	if upd.CheckOutAt != nil {
		r.CheckOutAt = upd.CheckOutAt
	}
	if upd.LatenessMinutes != nil {
		r.LatenessMinutes = *upd.LatenessMinutes
	}
	m.writes = append(m.writes, id)
	return nil
}

func (m *mockStore) GetRecord(_ context.Context, id string) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *mockStore) ListRecords(context.Context, model.RecordFilter) ([]*model.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (m *mockStore) RecordEvent(context.Context, *model.Event) error { return nil }

func (m *mockStore) GetEvents(context.Context, string) ([]*model.Event, error) { return nil, nil }

func (m *mockStore) Close() error { return nil }
