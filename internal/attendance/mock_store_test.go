package attendance

import (
	"context"
	"sort"
	"sync"

	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/store"
)

type statusUpdate struct {
	ID     string
	Dir    model.Direction
	Status model.Status
	Upd    model.RecordUpdate
}

// mockStore is an in-memory store.Store for gateway tests.
type mockStore struct {
	mu      sync.Mutex
	users   map[string]*model.User
	records map[string]*model.AttendanceRecord
	events  map[string][]*model.Event
	updates []statusUpdate
	creates int

	errGetUser error
	errFind    error
	errCreate  error
	errUpdate  error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:   make(map[string]*model.User),
		records: make(map[string]*model.AttendanceRecord),
		events:  make(map[string][]*model.Event),
	}
}

func cloneRecord(r *model.AttendanceRecord) *model.AttendanceRecord {
	c := *r
	if r.CheckOutAt != nil {
		t := *r.CheckOutAt
		c.CheckOutAt = &t
	}
	return &c
}

func (m *mockStore) addRecord(r *model.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = cloneRecord(r)
}

func (m *mockStore) record(id string) *model.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil
	}
	return cloneRecord(r)
}

func (m *mockStore) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *mockStore) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

func (m *mockStore) GetUserWithSite(_ context.Context, userID string) (*model.User, error) {
	if m.errGetUser != nil {
		return nil, m.errGetUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *mockStore) FindOpenRecord(_ context.Context, userID, date string, dir model.Direction) (*model.AttendanceRecord, error) {
	if m.errFind != nil {
		return nil, m.errFind
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID != userID || r.Date != date {
			continue
		}
		if dir == model.CheckOut && r.Status != model.StatusValid {
			return nil, nil
		}
		return cloneRecord(r), nil
	}
	return nil, nil
}

func (m *mockStore) CreateRecord(_ context.Context, rec *model.AttendanceRecord) (*model.AttendanceRecord, error) {
	if m.errCreate != nil {
		return nil, m.errCreate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.UserID == rec.UserID && r.Date == rec.Date {
			return nil, store.ErrConflict
		}
	}
	m.records[rec.ID] = cloneRecord(rec)
	m.creates++
	return cloneRecord(rec), nil
}

func (m *mockStore) UpdateRecordStatus(_ context.Context, id string, dir model.Direction, status model.Status, upd model.RecordUpdate) error {
	if m.errUpdate != nil {
		return m.errUpdate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return store.ErrNotFound
	}
	r.SetStatus(dir, status)
	if upd.CheckOutAt != nil {
		t := *upd.CheckOutAt
		r.CheckOutAt = &t
	}
	if upd.LatenessMinutes != nil {
		r.LatenessMinutes = *upd.LatenessMinutes
	}
	m.updates = append(m.updates, statusUpdate{ID: id, Dir: dir, Status: status, Upd: upd})
	return nil
}

func (m *mockStore) GetRecord(_ context.Context, id string) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneRecord(r), nil
}

func (m *mockStore) ListRecords(_ context.Context, filter model.RecordFilter) ([]*model.AttendanceRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.AttendanceRecord
	for _, r := range m.records {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		out = append(out, cloneRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	total := len(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *mockStore) RecordEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.RecordID] = append(m.events[e.RecordID], e)
	return nil
}

func (m *mockStore) GetEvents(_ context.Context, recordID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[recordID], nil
}

func (m *mockStore) Close() error { return nil }
