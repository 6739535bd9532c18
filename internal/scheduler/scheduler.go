// Package scheduler runs the periodic validation sweep over live sessions.
//
// Each tick snapshots the registry keys and evaluates every session under
// its student's lock: a session that has lasted MinDuration is finalized
// as VALID and removed, a session that has gone quiet for longer than
// MaxSilence is marked INVALID_SIGNAL and kept for recovery. Evaluations
// run in parallel so one slow store write does not hold up other students.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skariga/absenku/internal/clock"
	"github.com/skariga/absenku/internal/events"
	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/session"
	"github.com/skariga/absenku/internal/store"
)

// Defaults.
const (
	DefaultMinDuration = 15 * time.Minute
	DefaultMaxSilence  = 60 * time.Second
	DefaultInterval    = 5 * time.Second
	DefaultConcurrency = 16
)

// Config configures a Scheduler. Zero values fall back to the defaults.
type Config struct {
	MinDuration time.Duration
	MaxSilence  time.Duration
	Interval    time.Duration
	Concurrency int
	Location    *time.Location // calendar-day boundary; default UTC
}

// Action is what a sweep did to one session.
type Action string

const (
	ActionNone        Action = "none"
	ActionValidated   Action = "validated"
	ActionInvalidated Action = "invalidated"
	ActionDropped     Action = "dropped" // session from a previous day
	ActionFailed      Action = "failed"  // store write failed; retried next tick
)

// Report summarises one sweep.
type Report struct {
	Checked     int
	Validated   int
	Invalidated int
	Dropped     int
	Failed      int
}

// Scheduler promotes and demotes sessions on a fixed interval.
type Scheduler struct {
	registry *session.Registry
	store    store.Store
	clock    clock.Clock
	emitter  events.Emitter
	logger   *slog.Logger
	cfg      Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. A nil emitter discards events and a nil logger
// uses slog.Default.
func New(reg *session.Registry, s store.Store, clk clock.Clock, em events.Emitter, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = DefaultMinDuration
	}
	if cfg.MaxSilence <= 0 {
		cfg.MaxSilence = DefaultMaxSilence
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if em == nil {
		em = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		registry: reg,
		store:    s,
		clock:    clk,
		emitter:  em,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start launches the background sweep loop. Call Stop to shut it down.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	s.logger.Info("scheduler: started",
		"interval", s.cfg.Interval,
		"min_duration", s.cfg.MinDuration,
		"max_silence", s.cfg.MaxSilence)
}

// Stop cancels the loop and waits for the current sweep to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rep := s.Sweep(ctx)
			if rep.Validated+rep.Invalidated+rep.Dropped+rep.Failed > 0 {
				s.logger.Info("scheduler: sweep",
					"checked", rep.Checked,
					"validated", rep.Validated,
					"invalidated", rep.Invalidated,
					"dropped", rep.Dropped,
					"failed", rep.Failed)
			}
		}
	}
}

// Sweep evaluates every live session once at the clock's current time.
func (s *Scheduler) Sweep(ctx context.Context) Report {
	now := s.clock.Now().In(s.cfg.Location)
	keys := s.registry.Keys()

	var (
		mu  sync.Mutex
		rep = Report{Checked: len(keys)}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, userID := range keys {
		g.Go(func() error {
			act := s.evaluate(gctx, userID, now)
			mu.Lock()
			switch act {
			case ActionValidated:
				rep.Validated++
			case ActionInvalidated:
				rep.Invalidated++
			case ActionDropped:
				rep.Dropped++
			case ActionFailed:
				rep.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

// evaluate applies the sweep rules to one student's session. Duration is
// checked before silence so a session that reached MinDuration is
// validated even if its silence timer expired in the same tick.
func (s *Scheduler) evaluate(ctx context.Context, userID string, now time.Time) Action {
	unlock := s.registry.Lock(userID)
	defer unlock()

	sess, ok := s.registry.Get(userID)
	if !ok {
		return ActionNone
	}
	if sess.Date != model.DateOf(now, s.cfg.Location) {
		s.registry.Remove(userID)
		s.logger.Info("scheduler: dropped stale session",
			"user_id", userID, "record_id", sess.RecordID, "date", sess.Date)
		return ActionDropped
	}

	switch {
	case !sess.Invalid && sess.Elapsed(now) >= s.cfg.MinDuration:
		return s.validate(ctx, sess, now)
	case !sess.Invalid && sess.Silence(now) > s.cfg.MaxSilence:
		return s.invalidate(ctx, sess, now)
	}
	return ActionNone
}

func (s *Scheduler) validate(ctx context.Context, sess session.Session, now time.Time) Action {
	if err := s.store.UpdateRecordStatus(ctx, sess.RecordID, sess.Direction, model.StatusValid, model.RecordUpdate{}); err != nil {
		s.logger.Error("scheduler: validate failed",
			"user_id", sess.UserID, "record_id", sess.RecordID, "direction", sess.Direction, "err", err)
		return ActionFailed
	}
	s.registry.Remove(sess.UserID)
	s.registry.Finish(sess.UserID, session.Finished{
		Direction: sess.Direction,
		Date:      sess.Date,
		LastSeen:  sess.LastSeen,
	})

	s.logger.Info("scheduler: session validated",
		"user_id", sess.UserID,
		"record_id", sess.RecordID,
		"direction", sess.Direction,
		"elapsed", sess.Elapsed(now).Round(time.Second))

	s.emitter.Emit(ctx, events.TopicValidated, sess.RecordID, sess.UserID, events.StatusChanged{
		RecordID:  sess.RecordID,
		UserID:    sess.UserID,
		Direction: sess.Direction,
		From:      sess.Status,
		To:        model.StatusValid,
		Reason:    "min_duration",
		At:        now,
	})
	s.notify(ctx, sess, events.LevelSuccess, validatedText(sess.Direction, now))
	return ActionValidated
}

func (s *Scheduler) invalidate(ctx context.Context, sess session.Session, now time.Time) Action {
	if err := s.store.UpdateRecordStatus(ctx, sess.RecordID, sess.Direction, model.StatusInvalidSignal, model.RecordUpdate{}); err != nil {
		s.logger.Error("scheduler: invalidate failed",
			"user_id", sess.UserID, "record_id", sess.RecordID, "direction", sess.Direction, "err", err)
		return ActionFailed
	}

	from := sess.Status
	sess.PreInvalidStatus = sess.Status
	if sess.PreInvalidStatus == "" || sess.PreInvalidStatus.IsInvalid() {
		sess.PreInvalidStatus = model.StatusValidating
	}
	sess.Invalid = true
	sess.Status = model.StatusInvalidSignal
	s.registry.Put(sess)

	s.logger.Warn("scheduler: signal lost",
		"user_id", sess.UserID,
		"record_id", sess.RecordID,
		"direction", sess.Direction,
		"silence", sess.Silence(now).Round(time.Second))

	s.emitter.Emit(ctx, events.TopicInvalidated, sess.RecordID, sess.UserID, events.StatusChanged{
		RecordID:  sess.RecordID,
		UserID:    sess.UserID,
		Direction: sess.Direction,
		From:      from,
		To:        model.StatusInvalidSignal,
		Reason:    "signal_lost",
		At:        now,
	})
	s.notify(ctx, sess, events.LevelWarning, signalLostText(s.cfg.MaxSilence))
	return ActionInvalidated
}

func (s *Scheduler) notify(ctx context.Context, sess session.Session, level, text string) {
	s.emitter.Emit(ctx, events.NotifyTopic(sess.UserID), sess.RecordID, sess.UserID, events.Notification{
		UserID:   sess.UserID,
		RecordID: sess.RecordID,
		Level:    level,
		Text:     text,
	})
}

func validatedText(d model.Direction, now time.Time) string {
	if d == model.CheckOut {
		return fmt.Sprintf("Check-out confirmed at %s. See you tomorrow.", now.Format("15:04"))
	}
	return fmt.Sprintf("Check-in confirmed at %s. You may stop sharing your location.", now.Format("15:04"))
}

func signalLostText(maxSilence time.Duration) string {
	return fmt.Sprintf("No location received for over %s. Keep live location sharing on to continue verification.", maxSilence)
}
