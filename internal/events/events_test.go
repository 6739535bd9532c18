package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/skariga/absenku/internal/model"
)

func TestNoopPublisher(t *testing.T) {
	pub := &NoopPublisher{}
	if err := pub.Publish(context.Background(), TopicRecordCreated, RecordCreated{}); err != nil {
		t.Fatalf("NoopPublisher.Publish returned unexpected error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("NoopPublisher.Close returned unexpected error: %v", err)
	}
}

func TestPublishersImplementPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	var _ Publisher = (*NATSPublisher)(nil)
	var _ Emitter = NoopEmitter{}
}

func TestEmitterFunc(t *testing.T) {
	var gotTopic, gotUser string
	var e Emitter = EmitterFunc(func(_ context.Context, topic, _, userID string, _ any) {
		gotTopic, gotUser = topic, userID
	})
	e.Emit(context.Background(), TopicValidated, "att-1", "u1", nil)
	if gotTopic != TopicValidated || gotUser != "u1" {
		t.Fatalf("got topic=%q user=%q", gotTopic, gotUser)
	}
}

func TestNotifyTopic(t *testing.T) {
	if got := NotifyTopic("7777777"); got != "absenku.notify.7777777" {
		t.Fatalf("NotifyTopic = %q", got)
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(TopicRecordCreated, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	event := RecordCreated{Record: &model.AttendanceRecord{ID: "att-pub1", UserID: "u1", Status: model.StatusValidating}}
	if err := pub.Publish(context.Background(), TopicRecordCreated, event); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		var got RecordCreated
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Record.ID != "att-pub1" || got.Record.Status != model.StatusValidating {
			t.Errorf("got record %+v", got.Record)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestNATSPublisher_NotificationsPerUser(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe(TopicNotifyPrefix+">", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	for _, u := range []string{"u1", "u2"} {
		n := Notification{UserID: u, Level: LevelWarning, Text: "signal lost"}
		if err := pub.Publish(context.Background(), NotifyTopic(u), n); err != nil {
			t.Fatalf("Publish(%s): %v", u, err)
		}
	}
	pub.conn.Flush()

	for _, want := range []string{"absenku.notify.u1", "absenku.notify.u2"} {
		select {
		case msg := <-ch:
			if msg.Subject != want {
				t.Errorf("subject = %q, want %q", msg.Subject, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// Publishing after close should fail.
	if err := pub.Publish(context.Background(), TopicRecordCreated, RecordCreated{}); err == nil {
		t.Error("expected error publishing after close")
	}
}
