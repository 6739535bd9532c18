package events

import (
	"context"
	"time"

	"github.com/skariga/absenku/internal/model"
)

// Outbound topics. Every attendance topic starts with TopicAttendancePrefix.
const (
	TopicAttendancePrefix = "absenku.attendance."

	TopicRecordCreated = "absenku.attendance.created"
	TopicStatusChanged = "absenku.attendance.status"
	TopicValidated     = "absenku.attendance.validated"
	TopicInvalidated   = "absenku.attendance.invalidated"
	TopicRecovered     = "absenku.attendance.recovered"

	// Notifications are published per student on TopicNotifyPrefix + userID
	// so a chat bridge can subscribe to "absenku.notify.>".
	TopicNotifyPrefix = "absenku.notify."
)

// Inbound subjects, consumed by the ingest subscriber.
const (
	SubjectLocationPrefix = "absenku.location."
	SubjectIntentPrefix   = "absenku.intent."
)

// NotifyTopic returns the notification topic for a student.
func NotifyTopic(userID string) string {
	return TopicNotifyPrefix + userID
}

// Event types

type RecordCreated struct {
	Record *model.AttendanceRecord `json:"record"`
}

type StatusChanged struct {
	RecordID  string          `json:"record_id"`
	UserID    string          `json:"user_id"`
	Direction model.Direction `json:"direction"`
	From      model.Status    `json:"from"`
	To        model.Status    `json:"to"`
	Reason    string          `json:"reason,omitempty"` // e.g. "out_of_radius", "signal_lost", "min_duration"
	At        time.Time       `json:"at"`
}

// Notification levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notification is human-readable text addressed to one student.
type Notification struct {
	UserID   string        `json:"user_id"`
	RecordID string        `json:"record_id,omitempty"`
	Level    string        `json:"level"`
	Outcome  model.Outcome `json:"outcome,omitempty"`
	Text     string        `json:"text"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Emitter records and fans out an attendance event. Emit must not fail the
// caller: delivery problems are the implementation's to log.
type Emitter interface {
	Emit(ctx context.Context, topic, recordID, userID string, event any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, topic, recordID, userID string, event any)

func (f EmitterFunc) Emit(ctx context.Context, topic, recordID, userID string, event any) {
	f(ctx, topic, recordID, userID, event)
}
