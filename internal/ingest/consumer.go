// Package ingest consumes location pings and direction intents from the
// event bus and feeds them to the attendance gateway. Each reply goes back
// out as a per-student notification.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/skariga/absenku/internal/attendance"
	"github.com/skariga/absenku/internal/events"
	"github.com/skariga/absenku/internal/model"
)

// Gateway is the part of attendance.Gateway the consumer drives.
type Gateway interface {
	HandleLocationUpdate(ctx context.Context, userID string, u model.LocationUpdate) (attendance.Result, error)
	HandleDirectionIntent(ctx context.Context, userID string, dir model.Direction) (string, error)
}

// InvalidLocationText is sent back when a ping carries impossible
// coordinates or accuracy.
const InvalidLocationText = "Your location could not be read. Please share your live location again."

// IntentMessage is the payload on absenku.intent.<userID>.
type IntentMessage struct {
	Direction string `json:"direction"`
}

// DefaultConcurrency bounds how many students are handled at once.
const DefaultConcurrency = 64

// Consumer subscribes to the inbound subjects and dispatches messages.
// Each student's messages are handled in arrival order by one worker at a
// time; different students are handled in parallel.
type Consumer struct {
	sub     events.Subscriber
	pub     events.Publisher
	gateway Gateway
	logger  *slog.Logger

	mu      sync.Mutex
	cancels []func()
	wg      sync.WaitGroup

	workers   errgroup.Group
	boxesMu   sync.Mutex
	mailboxes map[string]*mailbox
}

// mailbox queues the messages of one student while a worker drains them.
type mailbox struct {
	msgs []events.Message
}

// New creates a Consumer. A nil publisher drops replies.
func New(sub events.Subscriber, pub events.Publisher, gw Gateway, logger *slog.Logger) *Consumer {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Consumer{sub: sub, pub: pub, gateway: gw, logger: logger, mailboxes: make(map[string]*mailbox)}
	c.workers.SetLimit(DefaultConcurrency)
	return c
}

// WithConcurrency sets how many students may be handled at once. Call it
// before Start.
func (c *Consumer) WithConcurrency(n int) *Consumer {
	if n > 0 {
		c.workers.SetLimit(n)
	}
	return c
}

// Start subscribes to location and intent subjects and processes messages
// until ctx is cancelled or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	for _, subject := range []string{events.SubjectLocationPrefix + ">", events.SubjectIntentPrefix + ">"} {
		ch, cancel, err := c.sub.Subscribe(subject)
		if err != nil {
			c.Stop()
			return fmt.Errorf("ingest: %w", err)
		}
		c.mu.Lock()
		c.cancels = append(c.cancels, cancel)
		c.mu.Unlock()

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					c.dispatch(ctx, msg)
				}
			}
		}()
	}
	c.logger.Info("ingest: consumer started")
	return nil
}

// Stop unsubscribes and waits for in-flight messages to finish.
func (c *Consumer) Stop() {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
	c.wg.Wait()
	_ = c.workers.Wait()
}

// dispatch queues msg on its student's mailbox, starting a worker for the
// mailbox if none is running. Starting a worker blocks while the
// concurrency limit is reached.
func (c *Consumer) dispatch(ctx context.Context, msg events.Message) {
	userID, ok := subjectUser(msg.Subject)
	if !ok {
		c.HandleMessage(ctx, msg)
		return
	}

	c.boxesMu.Lock()
	if mb, busy := c.mailboxes[userID]; busy {
		mb.msgs = append(mb.msgs, msg)
		c.boxesMu.Unlock()
		return
	}
	mb := &mailbox{msgs: []events.Message{msg}}
	c.mailboxes[userID] = mb
	c.boxesMu.Unlock()

	c.workers.Go(func() error {
		c.drain(ctx, userID, mb)
		return nil
	})
}

func (c *Consumer) drain(ctx context.Context, userID string, mb *mailbox) {
	for {
		c.boxesMu.Lock()
		if len(mb.msgs) == 0 {
			delete(c.mailboxes, userID)
			c.boxesMu.Unlock()
			return
		}
		msg := mb.msgs[0]
		mb.msgs = mb.msgs[1:]
		c.boxesMu.Unlock()

		c.HandleMessage(ctx, msg)
	}
}

// subjectUser returns the student a location or intent subject is about.
func subjectUser(subject string) (string, bool) {
	for _, prefix := range []string{events.SubjectLocationPrefix, events.SubjectIntentPrefix} {
		if id, ok := strings.CutPrefix(subject, prefix); ok && validUserID(id) {
			return id, true
		}
	}
	return "", false
}

// HandleMessage dispatches one message by subject. Malformed messages are
// logged and dropped.
func (c *Consumer) HandleMessage(ctx context.Context, msg events.Message) {
	switch {
	case strings.HasPrefix(msg.Subject, events.SubjectLocationPrefix):
		userID := strings.TrimPrefix(msg.Subject, events.SubjectLocationPrefix)
		if !validUserID(userID) {
			c.logger.Warn("ingest: bad location subject", "subject", msg.Subject)
			return
		}
		c.handleLocation(ctx, userID, msg.Data)
	case strings.HasPrefix(msg.Subject, events.SubjectIntentPrefix):
		userID := strings.TrimPrefix(msg.Subject, events.SubjectIntentPrefix)
		if !validUserID(userID) {
			c.logger.Warn("ingest: bad intent subject", "subject", msg.Subject)
			return
		}
		c.handleIntent(ctx, userID, msg.Data)
	default:
		c.logger.Warn("ingest: unexpected subject", "subject", msg.Subject)
	}
}

// validUserID rejects empty ids and ids that span more than one token.
func validUserID(id string) bool {
	return id != "" && !strings.Contains(id, ".")
}

func (c *Consumer) handleLocation(ctx context.Context, userID string, data []byte) {
	var u model.LocationUpdate
	if err := json.Unmarshal(data, &u); err != nil {
		c.logger.Warn("ingest: decode location", "user_id", userID, "err", err)
		return
	}
	if err := model.ValidateLocationUpdate(&u); err != nil {
		c.logger.Warn("ingest: invalid location", "user_id", userID, "err", err)
		c.notify(ctx, events.Notification{UserID: userID, Level: events.LevelWarning, Text: InvalidLocationText})
		return
	}

	res, err := c.gateway.HandleLocationUpdate(ctx, userID, u)
	if err != nil {
		c.logger.Error("ingest: handle location", "user_id", userID, "err", err)
		c.notify(ctx, events.Notification{UserID: userID, Level: events.LevelError, Text: attendance.FailureText})
		return
	}

	level := events.LevelInfo
	if !res.Outcome.Accepted() {
		level = events.LevelWarning
	}
	c.notify(ctx, events.Notification{
		UserID:   userID,
		RecordID: res.RecordID,
		Level:    level,
		Outcome:  res.Outcome,
		Text:     res.Notification,
	})
}

func (c *Consumer) handleIntent(ctx context.Context, userID string, data []byte) {
	var in IntentMessage
	if err := json.Unmarshal(data, &in); err != nil {
		c.logger.Warn("ingest: decode intent", "user_id", userID, "err", err)
		return
	}
	dir, err := model.ParseDirection(in.Direction)
	if err != nil {
		c.notify(ctx, events.Notification{UserID: userID, Level: events.LevelWarning, Text: "Unknown direction. Choose check-in or check-out."})
		return
	}

	text, err := c.gateway.HandleDirectionIntent(ctx, userID, dir)
	switch {
	case errors.Is(err, attendance.ErrInvalidDirection):
		c.notify(ctx, events.Notification{UserID: userID, Level: events.LevelWarning, Text: "Unknown direction. Choose check-in or check-out."})
	case err != nil:
		c.logger.Error("ingest: handle intent", "user_id", userID, "err", err)
		c.notify(ctx, events.Notification{UserID: userID, Level: events.LevelError, Text: attendance.FailureText})
	default:
		c.notify(ctx, events.Notification{UserID: userID, Level: events.LevelInfo, Text: text})
	}
}

func (c *Consumer) notify(ctx context.Context, n events.Notification) {
	if err := c.pub.Publish(ctx, events.NotifyTopic(n.UserID), n); err != nil {
		c.logger.Warn("ingest: publish notification", "user_id", n.UserID, "err", err)
	}
}
