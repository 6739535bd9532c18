package attendance

import (
	"context"
	"fmt"

	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/session"
)

// DefaultHistoryLimit is how many days the attendance history shows.
const DefaultHistoryLimit = 5

// Records lists attendance records for the dashboard.
func (g *Gateway) Records(ctx context.Context, filter model.RecordFilter) ([]*model.AttendanceRecord, int, error) {
	recs, total, err := g.store.ListRecords(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	return recs, total, nil
}

// Record returns a single attendance record.
func (g *Gateway) Record(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	rec, err := g.store.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return rec, nil
}

// RecordEvents returns the audit trail of a record.
func (g *Gateway) RecordEvents(ctx context.Context, id string) ([]*model.Event, error) {
	if _, err := g.Record(ctx, id); err != nil {
		return nil, err
	}
	evts, err := g.store.GetEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get events for %s: %w", id, err)
	}
	return evts, nil
}

// History returns a student's most recent records, newest first.
func (g *Gateway) History(ctx context.Context, userID string, limit int) ([]*model.AttendanceRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	recs, _, err := g.Records(ctx, model.RecordFilter{UserID: userID, Sort: "-date", Limit: limit})
	return recs, err
}

// Sessions returns the verifications currently in flight.
func (g *Gateway) Sessions() []session.Session {
	return g.registry.Snapshot()
}
