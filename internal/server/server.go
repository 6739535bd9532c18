package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skariga/absenku/internal/attendance"
	"github.com/skariga/absenku/internal/clock"
	"github.com/skariga/absenku/internal/events"
	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/session"
	"github.com/skariga/absenku/internal/store"
)

// Gateway is the attendance surface the transports call into.
type Gateway interface {
	HandleLocationUpdate(ctx context.Context, userID string, u model.LocationUpdate) (attendance.Result, error)
	HandleDirectionIntent(ctx context.Context, userID string, dir model.Direction) (string, error)
	Records(ctx context.Context, filter model.RecordFilter) ([]*model.AttendanceRecord, int, error)
	Record(ctx context.Context, id string) (*model.AttendanceRecord, error)
	RecordEvents(ctx context.Context, id string) ([]*model.Event, error)
	History(ctx context.Context, userID string, limit int) ([]*model.AttendanceRecord, error)
	Sessions() []session.Session
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AttendanceServer serves the HTTP and gRPC surfaces and is the event sink
// for the gateway and the scheduler.
type AttendanceServer struct {
	// Gateway must be set before serving; it is assigned after construction
	// because the gateway takes the server as its Emitter.
	Gateway Gateway

	store     store.Store
	publisher events.Publisher
	feed      *feed
	validate  *validator.Validate
	clock     clock.Clock
}

// Compile-time check that AttendanceServer can receive attendance events.
var _ events.Emitter = (*AttendanceServer)(nil)

// NewAttendanceServer returns a server backed by the given store and publisher.
func NewAttendanceServer(s store.Store, p events.Publisher) *AttendanceServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	return &AttendanceServer{
		store:     s,
		publisher: p,
		feed:      newFeed(),
		validate:  newValidator(),
		clock:     clock.Real{},
	}
}

// WithClock replaces the clock used for idle times in the session roster.
func (s *AttendanceServer) WithClock(c clock.Clock) *AttendanceServer {
	s.clock = c
	return s
}

// Emit implements events.Emitter.
func (s *AttendanceServer) Emit(ctx context.Context, topic, recordID, userID string, event any) {
	s.recordAndPublish(ctx, topic, recordID, userID, event)
}

// recordAndPublish persists an event to the store and publishes it to NATS.
// Both operations are best-effort; failures are logged but do not block the caller.
func (s *AttendanceServer) recordAndPublish(ctx context.Context, topic, recordID, userID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("server: failed to marshal event", "topic", topic, "record_id", recordID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:     topic,
		RecordID:  recordID,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		slog.Warn("server: failed to record event", "topic", topic, "record_id", recordID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("server: failed to publish event", "topic", topic, "record_id", recordID, "error", err)
	}
	s.feed.publish(topic, userID, payload)
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }
