// Package session holds the in-flight presence verifications.
//
// A Session exists only in memory, one per student with an attendance
// direction still being verified. The Registry also owns the per-student
// locks that serialise ping handling against the validation sweep, and the
// pending direction intents set by the chat layer ("/masuk", "/pulang").
//
// Sessions are stored by value: Get returns a copy and changes become
// visible only through Put. Callers must hold the student's lock (see Lock)
// around any Get/Put/Remove sequence that depends on what it read.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/skariga/absenku/internal/model"
)

// Session tracks one in-progress presence verification.
type Session struct {
	UserID           string          `json:"user_id"`
	RecordID         string          `json:"record_id"`
	Date             string          `json:"date"`
	Direction        model.Direction `json:"direction"`
	Status           model.Status    `json:"status"` // last status persisted for Direction
	StartTime        time.Time       `json:"start_time"`
	LastSeen         time.Time       `json:"last_seen"`
	Invalid          bool            `json:"invalid"`
	PreInvalidStatus model.Status    `json:"pre_invalid_status,omitempty"` // status to restore on recovery
	PingCount        int64           `json:"ping_count"`
}

// Elapsed returns how long the session has been running at now.
func (s Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}

// Silence returns how long it has been since the last accepted ping.
func (s Session) Silence(now time.Time) time.Duration {
	return now.Sub(s.LastSeen)
}

type intent struct {
	direction model.Direction
	date      string
}

// Finished is the stream whose session the sweep finalized. Pings that
// keep arriving on it belong to the finished direction, not a new one.
type Finished struct {
	Direction model.Direction
	Date      string
	LastSeen  time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Registry is the concurrency-safe set of live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	intents  map[string]intent
	finished map[string]Finished

	locksMu sync.Mutex
	locks   map[string]*userLock
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		intents:  make(map[string]intent),
		finished: make(map[string]Finished),
		locks:    make(map[string]*userLock),
	}
}

// Lock acquires the exclusive lock for userID and returns the function that
// releases it. Locks are reference counted so idle students cost nothing.
func (r *Registry) Lock(userID string) (unlock func()) {
	r.locksMu.Lock()
	l, ok := r.locks[userID]
	if !ok {
		l = &userLock{}
		r.locks[userID] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			r.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(r.locks, userID)
			}
			r.locksMu.Unlock()
		})
	}
}

// Get returns a copy of the session for userID.
func (r *Registry) Get(userID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Put inserts or replaces the session for s.UserID.
func (r *Registry) Put(s Session) {
	r.mu.Lock()
	r.sessions[s.UserID] = s
	r.mu.Unlock()
}

// Remove deletes the session for userID, if any.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Keys returns a snapshot of the user IDs with a live session. Sessions may
// be removed after the snapshot is taken; callers must re-Get each one.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns copies of all live sessions, most recently seen first.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// SetIntent records which direction the student's next location stream
// claims. It replaces any earlier intent and is only honoured on date.
// A new intent also ends any finished stream.
func (r *Registry) SetIntent(userID string, d model.Direction, date string) {
	r.mu.Lock()
	r.intents[userID] = intent{direction: d, date: date}
	delete(r.finished, userID)
	r.mu.Unlock()
}

// Intent returns the pending intent for userID without consuming it.
func (r *Registry) Intent(userID, date string) (model.Direction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	in, ok := r.intents[userID]
	if !ok || in.date != date {
		return "", false
	}
	return in.direction, true
}

// TakeIntent consumes the pending intent for userID. Intents set on a
// different date are discarded and reported as absent.
func (r *Registry) TakeIntent(userID, date string) (model.Direction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.intents[userID]
	if !ok {
		return "", false
	}
	delete(r.intents, userID)
	if in.date != date {
		return "", false
	}
	return in.direction, true
}

// Finish remembers the stream of a session that was just finalized.
func (r *Registry) Finish(userID string, f Finished) {
	r.mu.Lock()
	r.finished[userID] = f
	r.mu.Unlock()
}

// Finished returns the last finalized stream for userID.
func (r *Registry) Finished(userID string) (Finished, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.finished[userID]
	return f, ok
}

// ClearFinished forgets the finalized stream for userID.
func (r *Registry) ClearFinished(userID string) {
	r.mu.Lock()
	delete(r.finished, userID)
	r.mu.Unlock()
}
