// Package client provides a transport-agnostic interface for the absenku
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"time"

	"github.com/skariga/absenku/internal/model"
)

// HealthChecker reports server health. It is implemented by HTTPClient and
// GRPCClient.
type HealthChecker interface {
	Health(ctx context.Context) (string, error)
	Close() error
}

// AttendanceClient is the interface the absenku CLI commands use to talk to
// the server.
type AttendanceClient interface {
	HealthChecker

	// Ingestion
	SendLocation(ctx context.Context, userID string, req *LocationRequest) (*LocationResult, error)
	SetIntent(ctx context.Context, userID string, dir model.Direction) (string, error)

	// Records
	ListRecords(ctx context.Context, filter model.RecordFilter) (*ListRecordsResponse, error)
	GetRecord(ctx context.Context, id string) (*model.AttendanceRecord, error)
	GetRecordEvents(ctx context.Context, id string) ([]*model.Event, error)
	History(ctx context.Context, userID string, limit int) ([]*model.AttendanceRecord, error)

	// Live verifications
	Sessions(ctx context.Context) ([]SessionEntry, error)
}

// LocationRequest is a location ping as sent by a chat client.
type LocationRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Live      bool     `json:"live"`
	Forwarded bool     `json:"forwarded"`
}

// LocationResult is the server's verdict on one location ping.
type LocationResult struct {
	Outcome          model.Outcome           `json:"outcome"`
	Direction        model.Direction         `json:"direction,omitempty"`
	RecordID         string                  `json:"record_id,omitempty"`
	Record           *model.AttendanceRecord `json:"record,omitempty"`
	Distance         float64                 `json:"distance_m,omitempty"`
	RemainingSeconds int                     `json:"remaining_seconds,omitempty"`
	Notification     string                  `json:"notification"`
}

// ListRecordsResponse is one page of attendance records.
type ListRecordsResponse struct {
	Records []*model.AttendanceRecord `json:"records"`
	Total   int                       `json:"total"`
}

// SessionEntry is one in-flight verification.
type SessionEntry struct {
	UserID      string          `json:"user_id"`
	RecordID    string          `json:"record_id"`
	Date        string          `json:"date"`
	Direction   model.Direction `json:"direction"`
	Status      model.Status    `json:"status"`
	StartTime   time.Time       `json:"start_time"`
	LastSeen    time.Time       `json:"last_seen"`
	Invalid     bool            `json:"invalid"`
	PingCount   int64           `json:"ping_count"`
	ElapsedSecs float64         `json:"elapsed_secs"`
	IdleSecs    float64         `json:"idle_secs"`
}
