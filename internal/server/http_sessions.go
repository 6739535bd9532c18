package server

import (
	"net/http"
	"time"

	"github.com/skariga/absenku/internal/model"
)

// sessionEntry is one row of the live verification roster.
type sessionEntry struct {
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

// handleSessions handles GET /v1/sessions.
// Returns the verifications currently held in memory.
func (s *AttendanceServer) handleSessions(w http.ResponseWriter, _ *http.Request) {
	now := s.clock.Now()
	snap := s.Gateway.Sessions()

	out := make([]sessionEntry, 0, len(snap))
	for _, sess := range snap {
		out = append(out, sessionEntry{
			UserID:      sess.UserID,
			RecordID:    sess.RecordID,
			Date:        sess.Date,
			Direction:   sess.Direction,
			Status:      sess.Status,
			StartTime:   sess.StartTime,
			LastSeen:    sess.LastSeen,
			Invalid:     sess.Invalid,
			PingCount:   sess.PingCount,
			ElapsedSecs: sess.Elapsed(now).Seconds(),
			IdleSecs:    sess.Silence(now).Seconds(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}
