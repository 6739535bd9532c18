package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/skariga/absenku/internal/attendance"
	"github.com/skariga/absenku/internal/model"
)

// handleLocation handles POST /v1/users/{id}/location.
func (s *AttendanceServer) handleLocation(w http.ResponseWriter, r *http.Request) {
	var in locationRequest
	if err := s.decodeBody(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}

	res, err := s.Gateway.HandleLocationUpdate(r.Context(), r.PathValue("id"), in.toUpdate())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleIntent handles POST /v1/users/{id}/intent.
func (s *AttendanceServer) handleIntent(w http.ResponseWriter, r *http.Request) {
	var in intentRequest
	if err := s.decodeBody(r, &in); err != nil {
		writeErr(w, r, err)
		return
	}
	dir, err := model.ParseDirection(in.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := s.Gateway.HandleDirectionIntent(r.Context(), r.PathValue("id"), dir)
	if errors.Is(err, attendance.ErrInvalidDirection) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"direction": string(dir), "notification": text})
}

// handleListRecords handles GET /v1/attendance.
func (s *AttendanceServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	q, err := parseRecordQuery(r)
	if err == nil {
		err = s.check(q)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}

	recs, total, err := s.Gateway.Records(r.Context(), q.filter())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if recs == nil {
		recs = []*model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs, "total": total})
}

// handleGetRecord handles GET /v1/attendance/{id}.
func (s *AttendanceServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Gateway.Record(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleGetRecordEvents handles GET /v1/attendance/{id}/events.
func (s *AttendanceServer) handleGetRecordEvents(w http.ResponseWriter, r *http.Request) {
	evts, err := s.Gateway.RecordEvents(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}

// handleUserHistory handles GET /v1/users/{id}/attendance, the student's
// recent days newest first.
func (s *AttendanceServer) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	limit := attendance.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	recs, err := s.Gateway.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if recs == nil {
		recs = []*model.AttendanceRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}
