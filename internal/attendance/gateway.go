// Package attendance is the entry point for location pings and direction
// intents. The Gateway classifies each ping, applies the per-direction
// state machine to the day's attendance record, and keeps the in-memory
// verification session in step with what it persisted.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skariga/absenku/internal/classifier"
	"github.com/skariga/absenku/internal/clock"
	"github.com/skariga/absenku/internal/events"
	"github.com/skariga/absenku/internal/idgen"
	"github.com/skariga/absenku/internal/model"
	"github.com/skariga/absenku/internal/session"
	"github.com/skariga/absenku/internal/store"
)

// ErrInvalidDirection is returned for a direction intent that is neither
// CHECK_IN nor CHECK_OUT.
var ErrInvalidDirection = errors.New("invalid direction")

// LatenessPolicy decides what happens to lateness when an invalidated
// check-in recovers.
type LatenessPolicy string

const (
	// LatenessKeep leaves the lateness computed at first acceptance.
	LatenessKeep LatenessPolicy = "keep"
	// LatenessRecompute recalculates lateness from the recovery ping.
	LatenessRecompute LatenessPolicy = "recompute"
)

// ParseLatenessPolicy parses "keep" or "recompute". Empty means keep.
func ParseLatenessPolicy(s string) (LatenessPolicy, error) {
	switch LatenessPolicy(s) {
	case "", LatenessKeep:
		return LatenessKeep, nil
	case LatenessRecompute:
		return LatenessRecompute, nil
	}
	return "", fmt.Errorf("unknown lateness policy %q", s)
}

// DefaultMinDuration is how long a student must stay inside the radius.
const DefaultMinDuration = 15 * time.Minute

// DefaultMaxSilence is the largest ping gap that still counts as the same
// location stream.
const DefaultMaxSilence = 60 * time.Second

// Options tunes a Gateway. Zero values fall back to defaults.
type Options struct {
	Location    *time.Location // calendar-day boundary and schedule times; default UTC
	MinDuration time.Duration  // only used for progress text
	MaxSilence  time.Duration  // gap after which a finished stream is over
	Lateness    LatenessPolicy
}

// Result is what the gateway tells the transport about one ping.
type Result struct {
	Outcome          model.Outcome           `json:"outcome"`
	Direction        model.Direction         `json:"direction,omitempty"`
	RecordID         string                  `json:"record_id,omitempty"`
	Record           *model.AttendanceRecord `json:"record,omitempty"` // set when the ping created or changed the record
	Distance         float64                 `json:"distance_m,omitempty"`
	RemainingSeconds int                     `json:"remaining_seconds,omitempty"`
	Notification     string                  `json:"notification"`
}

// Gateway orchestrates classification, the session registry and the store.
type Gateway struct {
	store      store.Store
	registry   *session.Registry
	classifier *classifier.Classifier
	clock      clock.Clock
	emitter    events.Emitter

	loc         *time.Location
	minDuration time.Duration
	maxSilence  time.Duration
	lateness    LatenessPolicy
}

// New creates a Gateway. A nil emitter discards events.
func New(s store.Store, reg *session.Registry, c *classifier.Classifier, clk clock.Clock, em events.Emitter, opts Options) *Gateway {
	if em == nil {
		em = events.NoopEmitter{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MinDuration <= 0 {
		opts.MinDuration = DefaultMinDuration
	}
	if opts.MaxSilence <= 0 {
		opts.MaxSilence = DefaultMaxSilence
	}
	if opts.Lateness == "" {
		opts.Lateness = LatenessKeep
	}
	return &Gateway{
		store:       s,
		registry:    reg,
		classifier:  c,
		clock:       clk,
		emitter:     em,
		loc:         opts.Location,
		minDuration: opts.MinDuration,
		maxSilence:  opts.MaxSilence,
		lateness:    opts.Lateness,
	}
}

// HandleLocationUpdate processes one ping from userID. Rejections are
// reported through Result.Outcome; a non-nil error means a collaborator
// failed and nothing was changed by this call.
func (g *Gateway) HandleLocationUpdate(ctx context.Context, userID string, u model.LocationUpdate) (Result, error) {
	unlock := g.registry.Lock(userID)
	defer unlock()

	now := g.clock.Now().In(g.loc)
	date := model.DateOf(now, g.loc)

	user, err := g.store.GetUserWithSite(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	if user == nil {
		return reject(model.OutcomeNotRegistered, ""), nil
	}
	if !user.Active {
		return reject(model.OutcomeAccountPending, ""), nil
	}
	if user.Site != nil {
		if err := model.ValidateSite(user.Site); err != nil {
			slog.Warn("attendance: ignoring misconfigured site", "user_id", userID, "site_id", user.Site.ID, "err", err)
			u := *user
			u.Site = nil
			user = &u
		}
	}

	sess, open := g.registry.Get(userID)
	if open && sess.Date != date {
		g.registry.Remove(userID)
		open = false
	}

	res := g.classifier.Classify(classifier.Input{
		Update:      u,
		Site:        user.Site,
		SessionOpen: open,
		Now:         now,
	})

	if res.Demote {
		return g.demote(ctx, sess, res, user.Site)
	}
	if !res.Outcome.Accepted() {
		out := reject(res.Outcome, "")
		if open {
			out.Direction = sess.Direction
			out.RecordID = sess.RecordID
		}
		out.Distance = res.Distance
		if res.Outcome == model.OutcomeOutOfRadius {
			out.Notification = outOfRadiusText(res.Distance, user.Site)
		}
		return out, nil
	}

	if open {
		return g.continueSession(ctx, sess, res, user.Site, now)
	}
	return g.openSession(ctx, user, u, res, now, date)
}

func reject(o model.Outcome, dir model.Direction) Result {
	return Result{Outcome: o, Direction: dir, Notification: Message(o)}
}

// demote handles an out-of-radius ping while a session is running: the
// direction becomes INVALID_RADIUS and the session waits for recovery.
func (g *Gateway) demote(ctx context.Context, sess session.Session, res classifier.Result, site *model.Site) (Result, error) {
	out := Result{
		Outcome:      model.OutcomeOutOfRadius,
		Direction:    sess.Direction,
		RecordID:     sess.RecordID,
		Distance:     res.Distance,
		Notification: outOfRadiusText(res.Distance, site),
	}
	if sess.Status == model.StatusInvalidRadius {
		return out, nil
	}

	if err := g.store.UpdateRecordStatus(ctx, sess.RecordID, sess.Direction, model.StatusInvalidRadius, model.RecordUpdate{}); err != nil {
		return Result{}, fmt.Errorf("invalidate record %s: %w", sess.RecordID, err)
	}

	from := sess.Status
	if !sess.Invalid {
		sess.PreInvalidStatus = sess.Status
		sess.Invalid = true
	}
	sess.Status = model.StatusInvalidRadius
	g.registry.Put(sess)

	g.emitter.Emit(ctx, events.TopicInvalidated, sess.RecordID, sess.UserID, events.StatusChanged{
		RecordID:  sess.RecordID,
		UserID:    sess.UserID,
		Direction: sess.Direction,
		From:      from,
		To:        model.StatusInvalidRadius,
		Reason:    "out_of_radius",
		At:        res.At,
	})
	return out, nil
}

// continueSession refreshes a running session and recovers it if it was
// invalidated. StartTime is never reset.
func (g *Gateway) continueSession(ctx context.Context, sess session.Session, res classifier.Result, site *model.Site, now time.Time) (Result, error) {
	out := Result{
		Outcome:   model.OutcomeAccepted,
		Direction: sess.Direction,
		RecordID:  sess.RecordID,
		Distance:  res.Distance,
	}

	if sess.Invalid {
		restore := sess.PreInvalidStatus
		if restore == "" || restore.IsInvalid() {
			restore = model.StatusValidating
		}
		upd := g.recoveryUpdate(sess.Direction, site, now)
		if err := g.store.UpdateRecordStatus(ctx, sess.RecordID, sess.Direction, restore, upd); err != nil {
			return Result{}, fmt.Errorf("recover record %s: %w", sess.RecordID, err)
		}
		from := sess.Status
		sess.Invalid = false
		sess.PreInvalidStatus = ""
		sess.Status = restore

		g.emitter.Emit(ctx, events.TopicRecovered, sess.RecordID, sess.UserID, events.StatusChanged{
			RecordID:  sess.RecordID,
			UserID:    sess.UserID,
			Direction: sess.Direction,
			From:      from,
			To:        restore,
			Reason:    "recovered",
			At:        now,
		})
		out.Notification = recoveredText(g.remaining(sess, now))
	}

	sess.LastSeen = now
	sess.PingCount++
	g.registry.Put(sess)

	rem := g.remaining(sess, now)
	out.RemainingSeconds = int(rem / time.Second)
	if out.Notification == "" {
		out.Notification = progressText(sess.Direction, rem)
	}
	return out, nil
}

// recoveryUpdate returns the column changes that accompany recovery under
// the configured lateness policy.
func (g *Gateway) recoveryUpdate(dir model.Direction, site *model.Site, now time.Time) model.RecordUpdate {
	if g.lateness != LatenessRecompute || dir != model.CheckIn || site == nil {
		return model.RecordUpdate{}
	}
	late := model.Lateness(site.ExpectedCheckIn.On(now), now)
	return model.RecordUpdate{LatenessMinutes: &late}
}

// openSession starts verification for the first accepted ping of a
// direction today, or resumes it on an existing record after a restart.
func (g *Gateway) openSession(ctx context.Context, user *model.User, u model.LocationUpdate, res classifier.Result, now time.Time, date string) (Result, error) {
	dir, src, rec, err := g.resolveDirection(ctx, user.ID, date, now)
	if err != nil {
		return Result{}, err
	}

	switch dir {
	case model.CheckOut:
		rec, err = g.startCheckOut(ctx, user, rec, now, date)
	default:
		rec, err = g.startCheckIn(ctx, user, u, rec, now, date)
	}
	var rej rejection
	if errors.As(err, &rej) {
		out := reject(rej.outcome, dir)
		out.Distance = res.Distance
		if rec != nil {
			out.RecordID = rec.ID
		}
		if rej.outcome == model.OutcomeCheckoutBeforeSchedule && user.Site != nil {
			out.Notification = checkoutTooEarlyText(user.Site.ExpectedCheckOut)
		}
		return out, nil
	}
	if err != nil {
		return Result{}, err
	}

	sess := session.Session{
		UserID:    user.ID,
		RecordID:  rec.ID,
		Date:      date,
		Direction: dir,
		Status:    rec.StatusFor(dir),
		StartTime: now,
		LastSeen:  now,
		PingCount: 1,
	}
	g.registry.Put(sess)
	if src == fromIntent {
		g.registry.TakeIntent(user.ID, date)
	}
	g.registry.ClearFinished(user.ID)

	rem := g.remaining(sess, now)
	return Result{
		Outcome:          model.OutcomeAccepted,
		Direction:        dir,
		RecordID:         rec.ID,
		Record:           rec,
		Distance:         res.Distance,
		RemainingSeconds: int(rem / time.Second),
		Notification:     startedText(dir, rem, rec),
	}, nil
}

// directionSource says how resolveDirection chose a direction.
type directionSource int

const (
	inferred directionSource = iota
	fromIntent
	fromFinished
)

// resolveDirection picks the direction of a stream that has no open
// session. In order: a pending intent set today, the direction of a
// finalized session whose stream is still running, then CHECK_OUT once
// the day's check-in is VALID and CHECK_IN before that. The intent is only
// peeked; openSession consumes it once a session starts. It returns the
// day's record when it had to look it up.
func (g *Gateway) resolveDirection(ctx context.Context, userID, date string, now time.Time) (model.Direction, directionSource, *model.AttendanceRecord, error) {
	if dir, ok := g.registry.Intent(userID, date); ok {
		rec, err := g.store.FindOpenRecord(ctx, userID, date, dir)
		if err != nil {
			return "", 0, nil, fmt.Errorf("find %s record for %s on %s: %w", dir, userID, date, err)
		}
		return dir, fromIntent, rec, nil
	}

	if f, ok := g.registry.Finished(userID); ok {
		if f.Date == date && now.Sub(f.LastSeen) <= g.maxSilence {
			f.LastSeen = now
			g.registry.Finish(userID, f)
			rec, err := g.store.FindOpenRecord(ctx, userID, date, f.Direction)
			if err != nil {
				return "", 0, nil, fmt.Errorf("find %s record for %s on %s: %w", f.Direction, userID, date, err)
			}
			return f.Direction, fromFinished, rec, nil
		}
		g.registry.ClearFinished(userID)
	}

	rec, err := g.store.FindOpenRecord(ctx, userID, date, model.CheckIn)
	if err != nil {
		return "", 0, nil, fmt.Errorf("find record for %s on %s: %w", userID, date, err)
	}
	if rec != nil && rec.Status == model.StatusValid {
		return model.CheckOut, inferred, rec, nil
	}
	return model.CheckIn, inferred, rec, nil
}

type rejection struct {
	outcome model.Outcome
}

func (r rejection) Error() string { return "rejected: " + string(r.outcome) }

func (g *Gateway) startCheckIn(ctx context.Context, user *model.User, u model.LocationUpdate, rec *model.AttendanceRecord, now time.Time, date string) (*model.AttendanceRecord, error) {
	if rec == nil {
		return g.createRecord(ctx, user, u, now, date)
	}
	if rec.Status == model.StatusValid {
		return rec, rejection{model.OutcomeAlreadyValid}
	}
	// The record outlived its session (process restart): verification
	// starts over on the same row.
	if rec.Status != model.StatusValidating {
		from := rec.Status
		upd := model.RecordUpdate{}
		if from.IsInvalid() {
			upd = g.recoveryUpdate(model.CheckIn, user.Site, now)
		}
		if err := g.store.UpdateRecordStatus(ctx, rec.ID, model.CheckIn, model.StatusValidating, upd); err != nil {
			return nil, fmt.Errorf("reopen record %s: %w", rec.ID, err)
		}
		rec.Status = model.StatusValidating
		if upd.LatenessMinutes != nil {
			rec.LatenessMinutes = *upd.LatenessMinutes
		}
		rec.UpdatedAt = now
		g.emitStatus(ctx, rec, model.CheckIn, from, "reopened", now)
	}
	return rec, nil
}

func (g *Gateway) createRecord(ctx context.Context, user *model.User, u model.LocationUpdate, now time.Time, date string) (*model.AttendanceRecord, error) {
	id, err := idgen.NewRecordID()
	if err != nil {
		return nil, err
	}
	rec := &model.AttendanceRecord{
		ID:              id,
		UserID:          user.ID,
		Date:            date,
		CheckInAt:       now,
		CheckInLat:      u.Latitude,
		CheckInLng:      u.Longitude,
		Status:          model.StatusValidating,
		CheckOutStatus:  model.StatusNone,
		LatenessMinutes: model.Lateness(user.Site.ExpectedCheckIn.On(now), now),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	created, err := g.store.CreateRecord(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("create record for %s on %s: %w", user.ID, date, err)
	}
	g.emitter.Emit(ctx, events.TopicRecordCreated, created.ID, created.UserID, events.RecordCreated{Record: created})
	return created, nil
}

func (g *Gateway) startCheckOut(ctx context.Context, user *model.User, rec *model.AttendanceRecord, now time.Time, date string) (*model.AttendanceRecord, error) {
	if rec == nil || rec.Status != model.StatusValid {
		return rec, rejection{model.OutcomeNoOpenCheckIn}
	}
	if rec.StatusFor(model.CheckOut) == model.StatusValid {
		return rec, rejection{model.OutcomeAlreadyValid}
	}
	if now.Before(user.Site.ExpectedCheckOut.On(now)) {
		return rec, rejection{model.OutcomeCheckoutBeforeSchedule}
	}

	from := rec.StatusFor(model.CheckOut)
	upd := model.RecordUpdate{}
	if rec.CheckOutAt == nil {
		at := now
		upd.CheckOutAt = &at
	}
	if from == model.StatusValidating && upd.CheckOutAt == nil {
		return rec, nil
	}
	if err := g.store.UpdateRecordStatus(ctx, rec.ID, model.CheckOut, model.StatusValidating, upd); err != nil {
		return nil, fmt.Errorf("start check-out on %s: %w", rec.ID, err)
	}
	rec.CheckOutStatus = model.StatusValidating
	if upd.CheckOutAt != nil {
		rec.CheckOutAt = upd.CheckOutAt
	}
	rec.UpdatedAt = now
	g.emitStatus(ctx, rec, model.CheckOut, from, "check_out_started", now)
	return rec, nil
}

func (g *Gateway) emitStatus(ctx context.Context, rec *model.AttendanceRecord, dir model.Direction, from model.Status, reason string, at time.Time) {
	if to := rec.StatusFor(dir); from != to && !model.CanTransition(from, to) {
		slog.Warn("attendance: unexpected status transition",
			"record_id", rec.ID, "direction", dir, "from", from, "to", to, "reason", reason)
	}
	g.emitter.Emit(ctx, events.TopicStatusChanged, rec.ID, rec.UserID, events.StatusChanged{
		RecordID:  rec.ID,
		UserID:    rec.UserID,
		Direction: dir,
		From:      from,
		To:        rec.StatusFor(dir),
		Reason:    reason,
		At:        at,
	})
}

func (g *Gateway) remaining(sess session.Session, now time.Time) time.Duration {
	rem := g.minDuration - sess.Elapsed(now)
	if rem < 0 {
		return 0
	}
	return rem
}

// HandleDirectionIntent records which direction the student's next
// location stream claims. It returns the prompt to show the student.
func (g *Gateway) HandleDirectionIntent(ctx context.Context, userID string, dir model.Direction) (string, error) {
	if !dir.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	user, err := g.store.GetUserWithSite(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get user %s: %w", userID, err)
	}
	if user == nil {
		return Message(model.OutcomeNotRegistered), nil
	}
	if !user.Active {
		return Message(model.OutcomeAccountPending), nil
	}
	g.registry.SetIntent(userID, dir, model.DateOf(g.clock.Now(), g.loc))
	return intentText(dir), nil
}
