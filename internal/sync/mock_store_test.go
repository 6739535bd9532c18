package sync

import (
	"context"
	"sort"
	"sync"

	"github.com/skariga/absenku/internal/model"
)

// mockSource is a minimal in-memory Source for sync tests. It honours
// Limit/Offset so paging is exercised.
type mockSource struct {
	mu       sync.Mutex
	records  map[string]*model.AttendanceRecord
	events   map[string][]*model.Event
	listErr  error
	listCall int
}

func newMockSource() *mockSource {
	return &mockSource{
		records: make(map[string]*model.AttendanceRecord),
		events:  make(map[string][]*model.Event),
	}
}

func (m *mockSource) ListRecords(_ context.Context, filter model.RecordFilter) ([]*model.AttendanceRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCall++
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	all := make([]*model.AttendanceRecord, 0, len(m.records))
	for _, r := range m.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if filter.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, total, nil
}

func (m *mockSource) GetEvents(_ context.Context, recordID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[recordID], nil
}
