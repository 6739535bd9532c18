package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skariga/absenku/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// recordDest returns the scan destinations for recordColumns into r.
// checkOutAt must be copied into r after the scan.
func recordDest(r *model.AttendanceRecord, checkOutAt *sql.NullTime) []any {
	return []any{
		&r.ID,
		&r.UserID,
		&r.Date,
		&r.CheckInAt,
		checkOutAt,
		&r.CheckInLat,
		&r.CheckInLng,
		&r.Status,
		&r.CheckOutStatus,
		&r.LatenessMinutes,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

// scanRecord scans a single row into a model.AttendanceRecord.
// The row must contain columns in the order defined by recordColumns.
func scanRecord(row scannable) (*model.AttendanceRecord, error) {
	var r model.AttendanceRecord
	var checkOutAt sql.NullTime
	if err := row.Scan(recordDest(&r, &checkOutAt)...); err != nil {
		return nil, err
	}
	if checkOutAt.Valid {
		t := checkOutAt.Time
		r.CheckOutAt = &t
	}
	return &r, nil
}

// scanRecordWithTotal scans a row that has a leading total_count column
// followed by the standard record columns. Used by queryListRecords with
// COUNT(*) OVER().
func scanRecordWithTotal(row scannable) (*model.AttendanceRecord, int, error) {
	var total int
	var r model.AttendanceRecord
	var checkOutAt sql.NullTime
	dest := append([]any{&total}, recordDest(&r, &checkOutAt)...)
	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}
	if checkOutAt.Valid {
		t := checkOutAt.Time
		r.CheckOutAt = &t
	}
	return &r, total, nil
}

// scanUserWithSite scans a users LEFT JOIN sites row. The site is nil when
// the student has not been placed.
func scanUserWithSite(row scannable) (*model.User, error) {
	var u model.User
	var (
		siteID, siteName  sql.NullString
		lat, lng, radius  sql.NullFloat64
		checkIn, checkOut sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Active,
		&siteID, &siteName, &lat, &lng, &radius,
		&checkIn, &checkOut,
	)
	if err != nil {
		return nil, err
	}
	if !siteID.Valid {
		return &u, nil
	}

	s := &model.Site{
		ID:           siteID.String,
		Name:         siteName.String,
		Latitude:     lat.Float64,
		Longitude:    lng.Float64,
		RadiusMeters: radius.Float64,
	}
	if s.ExpectedCheckIn, err = model.ParseClockTime(checkIn.String); err != nil {
		return nil, fmt.Errorf("site %s: %w", s.ID, err)
	}
	if s.ExpectedCheckOut, err = model.ParseClockTime(checkOut.String); err != nil {
		return nil, fmt.Errorf("site %s: %w", s.ID, err)
	}
	u.Site = s
	return &u, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		recordID sql.NullString
		userID   sql.NullString
		payload  []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &recordID, &userID, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.RecordID = recordID.String
	e.UserID = userID.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
