package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/skariga/absenku/internal/model"
)

func TestDiffRecords(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	later := now.Add(15 * time.Minute)

	tests := []struct {
		name    string
		seen    map[string]time.Time
		recs    []*model.AttendanceRecord
		changed []string
	}{
		{
			name:    "initial query",
			seen:    map[string]time.Time{},
			recs:    []*model.AttendanceRecord{{ID: "a", UpdatedAt: now}, {ID: "b", UpdatedAt: now}},
			changed: []string{"a", "b"},
		},
		{
			name:    "no changes",
			seen:    map[string]time.Time{"a": now, "b": now},
			recs:    []*model.AttendanceRecord{{ID: "a", UpdatedAt: now}, {ID: "b", UpdatedAt: now}},
			changed: nil,
		},
		{
			name:    "new record",
			seen:    map[string]time.Time{"a": now},
			recs:    []*model.AttendanceRecord{{ID: "a", UpdatedAt: now}, {ID: "b", UpdatedAt: now}},
			changed: []string{"b"},
		},
		{
			name:    "validated",
			seen:    map[string]time.Time{"a": now, "b": now},
			recs:    []*model.AttendanceRecord{{ID: "a", UpdatedAt: later}, {ID: "b", UpdatedAt: now}},
			changed: []string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := diffRecords(tt.recs, tt.seen)
			if len(changed) != len(tt.changed) {
				t.Fatalf("got %d changed, want %d", len(changed), len(tt.changed))
			}
			for i, id := range tt.changed {
				if changed[i].ID != id {
					t.Errorf("changed[%d] = %q, want %q", i, changed[i].ID, id)
				}
			}
			for _, r := range tt.recs {
				if !tt.seen[r.ID].Equal(r.UpdatedAt) {
					t.Errorf("seen[%s] not updated", r.ID)
				}
			}
		})
	}
}

func TestPrintRecordList(t *testing.T) {
	in := time.Date(2026, 3, 2, 0, 20, 0, 0, time.UTC)
	var buf bytes.Buffer
	printRecordList(&buf, []*model.AttendanceRecord{
		{ID: "att-1", UserID: "42", Date: "2026-03-02", CheckInAt: in, Status: model.StatusValid, LatenessMinutes: 5},
	}, 9)
	out := buf.String()
	for _, want := range []string{"att-1", "2026-03-02", "42", "VALID", "1 records (9 total)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printRecordList(&buf, nil, -1)
	if strings.Contains(buf.String(), "total") {
		t.Errorf("history listing should not print totals:\n%s", buf.String())
	}
}

func TestTodayIn(t *testing.T) {
	// 17:30 UTC on 1 March is already 2 March in Jakarta.
	now := time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC)

	tests := []struct {
		tz      string
		want    string
		wantErr bool
	}{
		{tz: "Asia/Jakarta", want: "2026-03-02"},
		{tz: "UTC", want: "2026-03-01"},
		{tz: "America/Los_Angeles", want: "2026-03-01"},
		{tz: "Mars/Olympus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			got, err := todayIn(now, tt.tz)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("todayIn = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimezoneDefault(t *testing.T) {
	t.Setenv("ABSENKU_TIMEZONE", "")
	if got := timezoneDefault(); got != "Asia/Jakarta" {
		t.Errorf("timezoneDefault() = %q, want Asia/Jakarta", got)
	}
	t.Setenv("ABSENKU_TIMEZONE", "Asia/Makassar")
	if got := timezoneDefault(); got != "Asia/Makassar" {
		t.Errorf("timezoneDefault() = %q, want Asia/Makassar", got)
	}
}
