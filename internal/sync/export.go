package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/skariga/absenku/internal/model"
)

// exportPageSize is how many records ExportJSONL reads per query.
const exportPageSize = 500

// Source is the part of the store an export reads from.
type Source interface {
	ListRecords(ctx context.Context, filter model.RecordFilter) ([]*model.AttendanceRecord, int, error)
	GetEvents(ctx context.Context, recordID string) ([]*model.Event, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	UpdatedAt   time.Time `json:"updated_at"` // newest record change; keeps unchanged exports byte-identical
	RecordCount int       `json:"record_count"`
	EventCount  int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// exportedRecord is an attendance record with its audit trail.
type exportedRecord struct {
	*model.AttendanceRecord
	Events []*model.Event `json:"events"`
}

// ExportJSONL writes every attendance record, with its events, as JSONL to w.
// Records are ordered by date then student.
func ExportJSONL(ctx context.Context, s Source, w io.Writer) error {
	var recs []*model.AttendanceRecord
	for offset := 0; ; offset += exportPageSize {
		page, total, err := s.ListRecords(ctx, model.RecordFilter{
			Sort:   "created_at",
			Limit:  exportPageSize,
			Offset: offset,
		})
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		recs = append(recs, page...)
		if len(page) < exportPageSize || len(recs) >= total {
			break
		}
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date < recs[j].Date
		}
		return recs[i].UserID < recs[j].UserID
	})

	out := make([]exportedRecord, 0, len(recs))
	events := 0
	var updated time.Time
	for _, r := range recs {
		if r.UpdatedAt.After(updated) {
			updated = r.UpdatedAt.UTC()
		}
		evts, err := s.GetEvents(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("get events for %s: %w", r.ID, err)
		}
		if evts == nil {
			evts = []*model.Event{}
		}
		events += len(evts)
		out = append(out, exportedRecord{AttendanceRecord: r, Events: evts})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     "1",
		Type:        "header",
		UpdatedAt:   updated,
		RecordCount: len(out),
		EventCount:  events,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range out {
		if err := enc.Encode(record{Type: "attendance", Data: r}); err != nil {
			return fmt.Errorf("encode record %s: %w", r.ID, err)
		}
	}

	return nil
}
