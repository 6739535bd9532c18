package model

import (
	"fmt"
	"time"
)

// DateLayout is the format of AttendanceRecord.Date.
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in loc.
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// Direction says whether a location stream is claiming arrival or departure.
type Direction string

const (
	CheckIn  Direction = "CHECK_IN"
	CheckOut Direction = "CHECK_OUT"
)

func (d Direction) String() string {
	return string(d)
}

// IsValid checks whether the direction is a known value.
func (d Direction) IsValid() bool {
	return d == CheckIn || d == CheckOut
}

// ParseDirection accepts the canonical names plus the chat command aliases
// students actually type ("masuk", "pulang").
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "CHECK_IN", "check_in", "check-in", "checkin", "in", "masuk":
		return CheckIn, nil
	case "CHECK_OUT", "check_out", "check-out", "checkout", "out", "pulang":
		return CheckOut, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Status is the validation state of one direction of an attendance record.
type Status string

const (
	StatusNone          Status = "NONE"
	StatusValidating    Status = "VALIDATING"
	StatusValid         Status = "VALID"
	StatusInvalidRadius Status = "INVALID_RADIUS"
	StatusInvalidSignal Status = "INVALID_SIGNAL"
)

func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusNone, StatusValidating, StatusValid, StatusInvalidRadius, StatusInvalidSignal:
		return true
	}
	return false
}

// IsInvalid reports whether s is one of the demoted states awaiting recovery.
func (s Status) IsInvalid() bool {
	return s == StatusInvalidRadius || s == StatusInvalidSignal
}

// CanTransition reports whether a direction may move from one status to
// another. Progress is monotonic except for the recovery edge from an
// invalid state back to VALIDATING.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusNone:
		return to == StatusValidating
	case StatusValidating:
		return to == StatusValid || to.IsInvalid()
	case StatusValid:
		return to.IsInvalid()
	case StatusInvalidRadius, StatusInvalidSignal:
		return to == StatusValidating || to.IsInvalid()
	}
	return false
}

// AttendanceRecord is one student's attendance for one calendar day.
// Status tracks the check-in direction, CheckOutStatus the check-out
// direction; each runs the same sub-machine independently.
type AttendanceRecord struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Date            string     `json:"date"`
	CheckInAt       time.Time  `json:"check_in_at"`
	CheckOutAt      *time.Time `json:"check_out_at,omitempty"`
	CheckInLat      float64    `json:"check_in_lat"`
	CheckInLng      float64    `json:"check_in_lng"`
	Status          Status     `json:"status"`
	CheckOutStatus  Status     `json:"check_out_status"`
	LatenessMinutes int        `json:"lateness_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// StatusFor returns the status of the given direction.
func (r *AttendanceRecord) StatusFor(d Direction) Status {
	if d == CheckOut {
		if r.CheckOutStatus == "" {
			return StatusNone
		}
		return r.CheckOutStatus
	}
	return r.Status
}

// SetStatus sets the status of the given direction.
func (r *AttendanceRecord) SetStatus(d Direction, s Status) {
	if d == CheckOut {
		r.CheckOutStatus = s
		return
	}
	r.Status = s
}

// Complete reports whether no further validation can happen on the record.
func (r *AttendanceRecord) Complete() bool {
	return r.Status == StatusValid && r.CheckOutStatus == StatusValid
}

// RecordUpdate carries the optional column changes that accompany a status
// change. Nil fields are left untouched.
type RecordUpdate struct {
	CheckOutAt      *time.Time
	LatenessMinutes *int
}

// Lateness returns whole minutes between expected and actual, floored at 0.
func Lateness(expected, actual time.Time) int {
	if !actual.After(expected) {
		return 0
	}
	return int(actual.Sub(expected) / time.Minute)
}
