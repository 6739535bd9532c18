// Package store defines the persistence collaborator of the attendance core.
package store

import (
	"context"
	"errors"

	"github.com/skariga/absenku/internal/model"
)

var (
	// ErrNotFound is returned when an addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would break the one-record-per-
	// user-per-day invariant.
	ErrConflict = errors.New("conflict")
)

// Store defines the persistence interface for attendance.
type Store interface {
	// Identity / placement (read-only to the core).
	// GetUserWithSite returns nil, nil when the user is unknown.
	GetUserWithSite(ctx context.Context, userID string) (*model.User, error)

	// Attendance records.
	// FindOpenRecord returns the user's record for date that the given
	// direction can act on: for CHECK_IN the day's record, for CHECK_OUT the
	// day's record only once its check-in is VALID. Returns nil, nil if none.
	FindOpenRecord(ctx context.Context, userID, date string, dir model.Direction) (*model.AttendanceRecord, error)
	CreateRecord(ctx context.Context, rec *model.AttendanceRecord) (*model.AttendanceRecord, error)
	UpdateRecordStatus(ctx context.Context, id string, dir model.Direction, status model.Status, upd model.RecordUpdate) error
	GetRecord(ctx context.Context, id string) (*model.AttendanceRecord, error)
	ListRecords(ctx context.Context, filter model.RecordFilter) ([]*model.AttendanceRecord, int, error) // returns records, total count, error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, recordID string) ([]*model.Event, error)

	// Lifecycle
	Close() error
}
