package model

import (
	"fmt"
	"time"

	"github.com/skariga/absenku/internal/geo"
)

// ClockTime is a wall-clock time of day, serialised as "HH:MM".
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses an "HH:MM" string.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String returns the "HH:MM" representation.
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant at which this clock time occurs on the calendar
// day of t, in t's location.
func (c ClockTime) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, t.Location())
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	parsed, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Site is a geofenced placement location (the internship company).
type Site struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	RadiusMeters     float64   `json:"radius_m"`
	ExpectedCheckIn  ClockTime `json:"expected_check_in"`
	ExpectedCheckOut ClockTime `json:"expected_check_out"`
}

// Center returns the geofence center.
func (s *Site) Center() geo.Point {
	return geo.Point{Lat: s.Latitude, Lng: s.Longitude}
}

// User is a student as seen by the attendance core. Site is nil when the
// student has not been placed yet.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"` // account approved by a teacher
	Site   *Site  `json:"site,omitempty"`
}
